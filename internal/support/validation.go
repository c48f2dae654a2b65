package support

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// newValidator returns a validator that reports fields by their JSON names
// and knows the "simpleemail" rule used by the site forms.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("simpleemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

// SupportRequest is the support form as submitted by the browser.
type SupportRequest struct {
	FirstName              string   `json:"firstName" validate:"required,max=50"`
	LastName               string   `json:"lastName" validate:"required,max=50"`
	Email                  string   `json:"email" validate:"required,max=100,simpleemail"`
	Phone                  string   `json:"phone" validate:"required_if=PreferredContactMethod phone,max=30"`
	PreferredContactMethod string   `json:"preferredContactMethod" validate:"oneof=email phone"`
	Subject                string   `json:"subject" validate:"required,max=200"`
	Description            string   `json:"description" validate:"required,min=10,max=2000"`
	Applications           []string `json:"applications" validate:"max=50,dive,required,max=64"`
	TurnstileToken         string   `json:"turnstileToken" validate:"required"`
}

// ContactRequest is the contact form as submitted by the browser.
type ContactRequest struct {
	FirstName      string `json:"firstName" validate:"required,max=50"`
	LastName       string `json:"lastName" validate:"required,max=50"`
	Email          string `json:"email" validate:"required,max=100,simpleemail"`
	Company        string `json:"company" validate:"max=100"`
	Message        string `json:"message" validate:"required,min=10,max=2000"`
	TurnstileToken string `json:"turnstileToken" validate:"required"`
}

// normalize trims every text field and applies defaults.
func (r *SupportRequest) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.PreferredContactMethod = strings.ToLower(strings.TrimSpace(r.PreferredContactMethod))
	if r.PreferredContactMethod == "" {
		r.PreferredContactMethod = "email"
	}
	r.Subject = strings.TrimSpace(r.Subject)
	r.Description = strings.TrimSpace(r.Description)
	r.TurnstileToken = strings.TrimSpace(r.TurnstileToken)

	apps := make([]string, 0, len(r.Applications))
	for _, a := range r.Applications {
		if a = strings.TrimSpace(a); a != "" {
			apps = append(apps, a)
		}
	}
	r.Applications = apps
}

func (r *ContactRequest) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	r.Company = strings.TrimSpace(r.Company)
	r.Message = strings.TrimSpace(r.Message)
	r.TurnstileToken = strings.TrimSpace(r.TurnstileToken)
}

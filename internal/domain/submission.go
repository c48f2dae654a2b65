package domain

import (
	"encoding/json"
	"time"
)

// ContactMethod is how a customer prefers to be reached.
type ContactMethod string

// Contact methods.
const (
	ContactMethodEmail ContactMethod = "email"
	ContactMethodPhone ContactMethod = "phone"
)

// SupportSubmission is a validated support request.
type SupportSubmission struct {
	FirstName              string        `json:"firstName"`
	LastName               string        `json:"lastName"`
	Email                  string        `json:"email"`
	Phone                  string        `json:"phone,omitempty"`
	PreferredContactMethod ContactMethod `json:"preferredContactMethod"`
	Subject                string        `json:"subject"`
	Description            string        `json:"description"`
	Applications           []string      `json:"applications"`
	ScreenshotURLs         []string      `json:"screenshotUrls,omitempty"`
}

// ContactSubmission is a validated contact form message.
type ContactSubmission struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Company   string `json:"company,omitempty"`
	Message   string `json:"message"`
}

// SubmissionKind identifies the form a submission came from.
type SubmissionKind string

// Submission kinds.
const (
	SubmissionKindSupport SubmissionKind = "support"
	SubmissionKindContact SubmissionKind = "contact"
)

// FailedSubmission is a submission that could not be forwarded to the
// content source and is kept for manual follow-up.
type FailedSubmission struct {
	ID        string          `json:"id"`
	Kind      SubmissionKind  `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	CreatedAt time.Time       `json:"createdAt"`
}

package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cofabri/site-backend/internal/captcha"
	"github.com/cofabri/site-backend/internal/domain"
	"github.com/cofabri/site-backend/internal/pkg/ctxlog"
	"github.com/cofabri/site-backend/internal/pkg/httputil"
	"github.com/cofabri/site-backend/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// errFormFieldsTooLarge is returned when the text fields of a support form
// exceed formOverhead.
var errFormFieldsTooLarge = errors.New("form fields too large")

const (
	// formOverhead caps the combined text fields of a multipart body.
	formOverhead = 1 << 20
	// contactBodyLimit caps JSON and urlencoded contact bodies.
	contactBodyLimit = 64 << 10

	defaultFailedLimit = 50
	maxFailedLimit     = 500
)

// Handler handles HTTP requests for the support module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new support handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: newValidator(),
	}
}

// RegisterRoutes registers the public form routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/support", h.SubmitSupport)
	r.Post("/api/contact", h.SubmitContact)
}

// RegisterAdminRoutes registers routes that require an operator token.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/failed-submissions", h.ListFailedSubmissions)
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrInvalidInput, Status: http.StatusBadRequest},
	{Error: captcha.ErrRejected, Status: http.StatusBadRequest, Message: "CAPTCHA verification failed, please try again"},
	{Error: captcha.ErrUnavailable, Status: http.StatusServiceUnavailable, Message: "CAPTCHA service is temporarily unavailable, please try again later"},
	{Error: ErrSubmissionFailed, Status: http.StatusInternalServerError, Message: "we could not submit your request, please try again later"},
}

// SubmitSupport handles POST /api/support.
func (h *Handler) SubmitSupport(w http.ResponseWriter, r *http.Request) {
	ctx := ctxlog.With(r.Context(), "form", domain.SubmissionKindSupport)
	r = r.WithContext(ctx)
	cfg := h.service.Config()
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxRequestBytes)

	values, files, err := readSupportForm(r, cfg)
	if err != nil {
		h.formError(w, r, err)
		return
	}

	apps, err := parseApplications(values.Get("applications"))
	if err != nil {
		h.reject(w, domain.SubmissionKindSupport, err)
		return
	}

	req := SupportRequest{
		FirstName:              values.Get("firstName"),
		LastName:               values.Get("lastName"),
		Email:                  values.Get("email"),
		Phone:                  values.Get("phone"),
		PreferredContactMethod: values.Get("preferredContactMethod"),
		Subject:                values.Get("subject"),
		Description:            values.Get("description"),
		Applications:           apps,
		TurnstileToken:         turnstileToken(values),
	}
	req.normalize()
	if err := h.validator.Struct(req); err != nil {
		h.reject(w, domain.SubmissionKindSupport, err)
		return
	}

	receipt, err := h.service.SubmitSupport(ctx, req, httputil.ClientIP(r), files)
	if err != nil {
		httputil.HandleError(ctx, w, err, errorMappings)
		return
	}
	httputil.JSON(w, http.StatusOK, receipt)
}

// SubmitContact handles POST /api/contact. Accepts JSON, urlencoded or
// multipart bodies.
func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	ctx := ctxlog.With(r.Context(), "form", domain.SubmissionKindContact)
	r = r.WithContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, contactBodyLimit)

	var req ContactRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.reject(w, domain.SubmissionKindContact, fmt.Errorf("%w: invalid json", ErrInvalidInput))
			return
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(contactBodyLimit); err != nil {
			h.formError(w, r, err)
			return
		}
		req = contactFromForm(r.Form)
	default:
		if err := r.ParseForm(); err != nil {
			h.formError(w, r, err)
			return
		}
		req = contactFromForm(r.Form)
	}

	req.normalize()
	if err := h.validator.Struct(req); err != nil {
		h.reject(w, domain.SubmissionKindContact, err)
		return
	}

	receipt, err := h.service.SubmitContact(ctx, req, httputil.ClientIP(r))
	if err != nil {
		httputil.HandleError(ctx, w, err, errorMappings)
		return
	}
	httputil.JSON(w, http.StatusOK, receipt)
}

// ListFailedSubmissions handles GET /api/admin/failed-submissions.
func (h *Handler) ListFailedSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := defaultFailedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxFailedLimit)
	}

	subs, err := h.service.ListFailed(r.Context(), limit)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	if subs == nil {
		subs = []domain.FailedSubmission{}
	}
	ctxlog.FromContext(r.Context()).Info("failed submissions listed",
		"operator", httputil.GetUserID(r.Context()),
		"role", httputil.GetRole(r.Context()),
		"count", len(subs))
	httputil.JSON(w, http.StatusOK, subs)
}

func (h *Handler) reject(w http.ResponseWriter, kind domain.SubmissionKind, err error) {
	metrics.SubmissionsTotal.WithLabelValues(string(kind), "invalid").Inc()
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		httputil.ValidationError(w, err)
		return
	}
	httputil.Error(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "))
}

func (h *Handler) formError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr), errors.Is(err, errFormFieldsTooLarge):
		httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, http.ErrNotMultipart):
		httputil.Error(w, http.StatusBadRequest, "expected multipart form data")
	default:
		ctxlog.FromContext(r.Context()).Debug("malformed form body", "error", err)
		httputil.Error(w, http.StatusBadRequest, "malformed form data")
	}
}

func contactFromForm(values url.Values) ContactRequest {
	return ContactRequest{
		FirstName:      values.Get("firstName"),
		LastName:       values.Get("lastName"),
		Email:          values.Get("email"),
		Company:        values.Get("company"),
		Message:        values.Get("message"),
		TurnstileToken: turnstileToken(values),
	}
}

// turnstileToken reads the token under the form field name or the one the
// Turnstile script injects by default.
func turnstileToken(values url.Values) string {
	if v := values.Get("turnstileToken"); v != "" {
		return v
	}
	return values.Get("cf-turnstile-response")
}

// parseApplications accepts a JSON array of application IDs. An empty value
// means none.
func parseApplications(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, nil
	}
	var apps []string
	if err := json.Unmarshal([]byte(raw), &apps); err != nil {
		return nil, fmt.Errorf("%w: applications must be a JSON array of strings", ErrInvalidInput)
	}
	return apps, nil
}

// readSupportForm streams a multipart body. Text fields share a
// formOverhead budget. Screenshot parts past MaxScreenshots or over
// MaxScreenshotBytes are skipped with a warning and never buffered in full,
// so attachments cannot fail the submission.
func readSupportForm(r *http.Request, cfg Config) (url.Values, []Attachment, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, err
	}
	logger := ctxlog.FromContext(r.Context())

	values := make(url.Values)
	files := make([]Attachment, 0, cfg.MaxScreenshots)
	var textBytes int64

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return values, files, nil
		}
		if err != nil {
			return nil, nil, err
		}

		name := part.FormName()
		if part.FileName() == "" {
			data, err := io.ReadAll(io.LimitReader(part, formOverhead-textBytes+1))
			_ = part.Close()
			if err != nil {
				return nil, nil, err
			}
			textBytes += int64(len(data))
			if textBytes > formOverhead {
				return nil, nil, errFormFieldsTooLarge
			}
			values.Add(name, string(data))
			continue
		}

		if name != "screenshots" && name != "screenshots[]" {
			logger.Warn("form file skipped: unknown field", "field", name, "filename", part.FileName())
			_ = part.Close()
			continue
		}
		if len(files) >= cfg.MaxScreenshots {
			logger.Warn("screenshot skipped: too many files",
				"filename", part.FileName(), "max_files", cfg.MaxScreenshots)
			_ = part.Close()
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, cfg.MaxScreenshotBytes+1))
		_ = part.Close()
		if err != nil {
			return nil, nil, err
		}
		if int64(len(data)) > cfg.MaxScreenshotBytes {
			logger.Warn("screenshot skipped: file too large",
				"filename", part.FileName(), "max_bytes", cfg.MaxScreenshotBytes)
			continue
		}
		files = append(files, Attachment{Filename: part.FileName(), Data: data})
	}
}

// Package support accepts the support and contact forms, forwards them to
// the content source and keeps anything that could not be forwarded.
package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/cofabri/site-backend/internal/airtable"
	"github.com/cofabri/site-backend/internal/blob"
	"github.com/cofabri/site-backend/internal/captcha"
	"github.com/cofabri/site-backend/internal/domain"
	"github.com/cofabri/site-backend/internal/pkg/ctxlog"
	"github.com/cofabri/site-backend/internal/pkg/metrics"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Defaults for Config.
const (
	DefaultSupportTable       = "Support Requests"
	DefaultContactTable       = "Contact Submissions"
	DefaultMaxScreenshotBytes = 10 << 20
	DefaultMaxScreenshots     = 5
	DefaultMaxRequestBytes    = 100 << 20
)

// Confirmation messages returned to the browser.
const (
	supportReceivedMessage = "Your support request has been submitted. We'll get back to you soon."
	contactReceivedMessage = "Thank you for reaching out. We'll be in touch soon."
)

// allowedImageTypes are the screenshot formats accepted, keyed by sniffed MIME type.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// Content source column names.
const (
	fieldFirstName       = "First Name"
	fieldLastName        = "Last Name"
	fieldEmail           = "Email"
	fieldPhone           = "Phone"
	fieldPreferredMethod = "Preferred Contact Method"
	fieldSubject         = "Subject"
	fieldDescription     = "Description"
	fieldApplications    = "Applications"
	fieldScreenshots     = "Screenshots"
	fieldCompany         = "Company"
	fieldMessage         = "Message"
	fieldStatus          = "Status"
	fieldSubmittedAt     = "Submitted At"
)

// Verifier checks a CAPTCHA token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// Uploader stores a file and returns its public location.
type Uploader interface {
	Put(ctx context.Context, pathname, contentType string, data []byte) (blob.Object, error)
}

// RecordCreator creates records in the content source.
type RecordCreator interface {
	CreateRecord(ctx context.Context, table string, fields map[string]interface{}, typecast bool) (airtable.Record, error)
}

// Repository keeps submissions that could not be recorded.
type Repository interface {
	SaveFailed(ctx context.Context, sub *domain.FailedSubmission) error
	ListFailed(ctx context.Context, limit int) ([]domain.FailedSubmission, error)
}

// Alerter notifies operators. It may be nil.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// Config configures the submission service.
type Config struct {
	SupportTable       string
	ContactTable       string
	MaxScreenshotBytes int64
	MaxScreenshots     int
	// MaxRequestBytes caps a whole support request body.
	MaxRequestBytes    int64
}

// Attachment is an uploaded file as received from the browser. Data holds
// at most MaxScreenshotBytes+1 bytes so oversized files can be detected.
type Attachment struct {
	Filename string
	Data     []byte
}

// Receipt is returned to the browser after a successful submission.
type Receipt struct {
	Message  string `json:"message"`
	RecordID string `json:"recordId"`
}

// Service forwards form submissions to the content source.
type Service struct {
	verifier Verifier
	uploader Uploader
	records  RecordCreator
	repo     Repository
	alerter  Alerter
	alerts   *AlertRenderer
	config   Config
	now      func() time.Time
}

// NewService creates a new submission service. alerter may be nil.
func NewService(
	verifier Verifier,
	uploader Uploader,
	records RecordCreator,
	repo Repository,
	alerter Alerter,
	config Config,
) *Service {
	if config.SupportTable == "" {
		config.SupportTable = DefaultSupportTable
	}
	if config.ContactTable == "" {
		config.ContactTable = DefaultContactTable
	}
	if config.MaxScreenshotBytes <= 0 {
		config.MaxScreenshotBytes = DefaultMaxScreenshotBytes
	}
	if config.MaxScreenshots <= 0 {
		config.MaxScreenshots = DefaultMaxScreenshots
	}
	if config.MaxRequestBytes <= 0 {
		config.MaxRequestBytes = DefaultMaxRequestBytes
	}

	return &Service{
		verifier: verifier,
		uploader: uploader,
		records:  records,
		repo:     repo,
		alerter:  alerter,
		alerts:   NewAlertRenderer(),
		config:   config,
		now:      time.Now,
	}
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.config
}

// SubmitSupport verifies the CAPTCHA, uploads acceptable screenshots and
// creates a support record. req must already be validated.
func (s *Service) SubmitSupport(ctx context.Context, req SupportRequest, remoteIP string, files []Attachment) (Receipt, error) {
	kind := domain.SubmissionKindSupport
	if err := s.verify(ctx, kind, req.TurnstileToken, remoteIP); err != nil {
		return Receipt{}, err
	}

	sub := domain.SupportSubmission{
		FirstName:              req.FirstName,
		LastName:               req.LastName,
		Email:                  req.Email,
		Phone:                  req.Phone,
		PreferredContactMethod: domain.ContactMethod(req.PreferredContactMethod),
		Subject:                req.Subject,
		Description:            req.Description,
		Applications:           req.Applications,
		ScreenshotURLs:         s.uploadScreenshots(ctx, files),
	}

	fields := map[string]interface{}{
		fieldFirstName:       sub.FirstName,
		fieldLastName:        sub.LastName,
		fieldEmail:           sub.Email,
		fieldPreferredMethod: string(sub.PreferredContactMethod),
		fieldSubject:         sub.Subject,
		fieldDescription:     sub.Description,
		fieldStatus:          "New",
		fieldSubmittedAt:     s.now().UTC().Format(time.RFC3339),
	}
	if sub.Phone != "" {
		fields[fieldPhone] = sub.Phone
	}
	if len(sub.Applications) > 0 {
		fields[fieldApplications] = sub.Applications
	}
	if len(sub.ScreenshotURLs) > 0 {
		attachments := make([]map[string]string, 0, len(sub.ScreenshotURLs))
		for _, u := range sub.ScreenshotURLs {
			attachments = append(attachments, map[string]string{"url": u})
		}
		fields[fieldScreenshots] = attachments
	}

	rec, err := s.records.CreateRecord(ctx, s.config.SupportTable, fields, true)
	if err != nil {
		s.deadLetter(ctx, kind, sub, alertSummary{
			Name:    sub.FirstName + " " + sub.LastName,
			Email:   sub.Email,
			Subject: sub.Subject,
		}, err)
		return Receipt{}, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	metrics.SubmissionsTotal.WithLabelValues(string(kind), "accepted").Inc()
	ctxlog.FromContext(ctx).Info("support request recorded",
		slog.String("record_id", rec.ID),
		slog.Int("screenshots", len(sub.ScreenshotURLs)),
		slog.Int("applications", len(sub.Applications)),
	)
	return Receipt{Message: supportReceivedMessage, RecordID: rec.ID}, nil
}

// SubmitContact verifies the CAPTCHA and creates a contact record. req must
// already be validated.
func (s *Service) SubmitContact(ctx context.Context, req ContactRequest, remoteIP string) (Receipt, error) {
	kind := domain.SubmissionKindContact
	if err := s.verify(ctx, kind, req.TurnstileToken, remoteIP); err != nil {
		return Receipt{}, err
	}

	sub := domain.ContactSubmission{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Company:   req.Company,
		Message:   req.Message,
	}

	fields := map[string]interface{}{
		fieldFirstName:   sub.FirstName,
		fieldLastName:    sub.LastName,
		fieldEmail:       sub.Email,
		fieldMessage:     sub.Message,
		fieldStatus:      "New",
		fieldSubmittedAt: s.now().UTC().Format(time.RFC3339),
	}
	if sub.Company != "" {
		fields[fieldCompany] = sub.Company
	}

	rec, err := s.records.CreateRecord(ctx, s.config.ContactTable, fields, true)
	if err != nil {
		s.deadLetter(ctx, kind, sub, alertSummary{
			Name:  sub.FirstName + " " + sub.LastName,
			Email: sub.Email,
		}, err)
		return Receipt{}, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	metrics.SubmissionsTotal.WithLabelValues(string(kind), "accepted").Inc()
	ctxlog.FromContext(ctx).Info("contact message recorded", slog.String("record_id", rec.ID))
	return Receipt{Message: contactReceivedMessage, RecordID: rec.ID}, nil
}

// ListFailed returns the most recent submissions kept for follow-up.
func (s *Service) ListFailed(ctx context.Context, limit int) ([]domain.FailedSubmission, error) {
	subs, err := s.repo.ListFailed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed submissions: %w", err)
	}
	return subs, nil
}

func (s *Service) verify(ctx context.Context, kind domain.SubmissionKind, token, remoteIP string) error {
	err := s.verifier.Verify(ctx, token, remoteIP)
	if err == nil {
		return nil
	}

	logger := ctxlog.FromContext(ctx)
	switch {
	case errors.Is(err, captcha.ErrRejected):
		metrics.SubmissionsTotal.WithLabelValues(string(kind), "captcha_rejected").Inc()
		logger.Info("captcha rejected", "kind", kind, "error", err)
	default:
		metrics.SubmissionsTotal.WithLabelValues(string(kind), "captcha_unavailable").Inc()
		logger.Error("captcha verification unavailable", "kind", kind, "error", err)
	}
	return fmt.Errorf("verify captcha: %w", err)
}

// uploadScreenshots stores every acceptable file and returns the public
// URLs. Files that are too large, of the wrong type, over the count limit
// or that fail to upload are skipped.
func (s *Service) uploadScreenshots(ctx context.Context, files []Attachment) []string {
	logger := ctxlog.FromContext(ctx)
	urls := make([]string, 0, len(files))

	for i, f := range files {
		if i >= s.config.MaxScreenshots {
			logger.Warn("screenshot skipped: too many files",
				"filename", f.Filename, "max_files", s.config.MaxScreenshots)
			continue
		}
		if len(f.Data) == 0 {
			logger.Warn("screenshot skipped: empty file", "filename", f.Filename)
			continue
		}
		if int64(len(f.Data)) > s.config.MaxScreenshotBytes {
			logger.Warn("screenshot skipped: file too large",
				"filename", f.Filename, "max_bytes", s.config.MaxScreenshotBytes)
			continue
		}

		mtype := mimetype.Detect(f.Data)
		if !allowedImageTypes[mtype.String()] {
			logger.Warn("screenshot skipped: unsupported type",
				"filename", f.Filename, "content_type", mtype.String())
			continue
		}

		pathname := path.Join("support", uuid.NewString()+mtype.Extension())
		obj, err := s.uploader.Put(ctx, pathname, mtype.String(), f.Data)
		if err != nil {
			logger.Warn("screenshot skipped: upload failed", "filename", f.Filename, "error", err)
			continue
		}
		urls = append(urls, obj.URL)
	}
	return urls
}

// deadLetter logs the full payload, stores it and alerts operators. Each
// step is best effort; the caller reports the original failure.
func (s *Service) deadLetter(ctx context.Context, kind domain.SubmissionKind, payload interface{}, summary alertSummary, cause error) {
	logger := ctxlog.FromContext(ctx)
	metrics.SubmissionsTotal.WithLabelValues(string(kind), "failed").Inc()

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("encode failed submission", "kind", kind, "error", err)
		data = []byte("null")
	}

	logger.Error("submission could not be recorded, keeping payload for follow-up",
		slog.String("kind", string(kind)),
		slog.String("payload", string(data)),
		slog.String("error", cause.Error()),
	)

	failed := &domain.FailedSubmission{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   data,
		Error:     cause.Error(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.SaveFailed(ctx, failed); err != nil {
		logger.Error("store failed submission", "kind", kind, "error", err)
	}

	if s.alerter == nil {
		return
	}
	subject, body, err := s.alerts.FailedSubmission(failed, summary)
	if err != nil {
		logger.Error("render failed submission alert", "error", err)
		return
	}
	if err := s.alerter.Alert(ctx, subject, body); err != nil {
		logger.Warn("failed submission alert not delivered", "submission_id", failed.ID, "error", err)
	}
}

package support

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cofabri/site-backend/internal/airtable"
	"github.com/cofabri/site-backend/internal/captcha"
	"github.com/cofabri/site-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSupportRequest() SupportRequest {
	return SupportRequest{
		FirstName:              "Ada",
		LastName:               "Lovelace",
		Email:                  "ada@example.com",
		PreferredContactMethod: "email",
		Subject:                "Invoice export fails",
		Description:            "Exporting invoices to CSV returns an empty file.",
		Applications:           []string{"recInvoicePro"},
		TurnstileToken:         "token-123",
	}
}

func validContactRequest() ContactRequest {
	return ContactRequest{
		FirstName:      "Grace",
		LastName:       "Hopper",
		Email:          "grace@example.com",
		Company:        "Navy",
		Message:        "I would like a demo for my team.",
		TurnstileToken: "token-456",
	}
}

func TestSubmitSupport_Success(t *testing.T) {
	f := newFixture(Config{MaxScreenshotBytes: 1024})
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.service.now = func() time.Time { return fixed }

	receipt, err := f.service.SubmitSupport(context.Background(), validSupportRequest(), "203.0.113.7", []Attachment{
		{Filename: "a.png", Data: pngData},
		{Filename: "notes.txt", Data: textData},
		{Filename: "huge.png", Data: append(append([]byte(nil), pngData...), make([]byte, 2048)...)},
		{Filename: "b.gif", Data: gifData},
		{Filename: "empty.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, "rec1", receipt.RecordID)
	assert.NotEmpty(t, receipt.Message)

	assert.Equal(t, []string{"token-123"}, f.verifier.tokens)
	assert.Equal(t, []string{"203.0.113.7"}, f.verifier.ips)

	require.Len(t, f.uploader.calls, 2)
	assert.True(t, strings.HasPrefix(f.uploader.calls[0].Pathname, "support/"))
	assert.True(t, strings.HasSuffix(f.uploader.calls[0].Pathname, ".png"))
	assert.Equal(t, "image/png", f.uploader.calls[0].ContentType)
	assert.True(t, strings.HasSuffix(f.uploader.calls[1].Pathname, ".gif"))

	require.Len(t, f.records.calls, 1)
	call := f.records.calls[0]
	assert.Equal(t, DefaultSupportTable, call.Table)
	assert.True(t, call.Typecast)
	assert.Equal(t, "Ada", call.Fields[fieldFirstName])
	assert.Equal(t, "email", call.Fields[fieldPreferredMethod])
	assert.Equal(t, []string{"recInvoicePro"}, call.Fields[fieldApplications])
	assert.Equal(t, "2025-03-01T12:00:00Z", call.Fields[fieldSubmittedAt])
	assert.NotContains(t, call.Fields, fieldPhone)

	shots, ok := call.Fields[fieldScreenshots].([]map[string]string)
	require.True(t, ok)
	require.Len(t, shots, 2)
	assert.Equal(t, "https://blob.example.com/"+f.uploader.calls[0].Pathname, shots[0]["url"])

	assert.Empty(t, f.alerter.alerts)
}

func TestSubmitSupport_ScreenshotLimits(t *testing.T) {
	tests := []struct {
		name        string
		max         int
		failOn      int
		files       []Attachment
		wantUploads int
		wantURLs    int
	}{
		{
			name:        "extra files beyond the limit are skipped",
			max:         2,
			files:       []Attachment{{Data: pngData}, {Data: jpegData}, {Data: gifData}},
			wantUploads: 2,
			wantURLs:    2,
		},
		{
			name:        "failed upload is skipped",
			max:         5,
			failOn:      1,
			files:       []Attachment{{Data: pngData}, {Data: jpegData}},
			wantUploads: 2,
			wantURLs:    1,
		},
		{
			name:        "no files",
			max:         5,
			wantUploads: 0,
			wantURLs:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Config{MaxScreenshots: tt.max})
			f.uploader.failOn = tt.failOn

			_, err := f.service.SubmitSupport(context.Background(), validSupportRequest(), "", tt.files)
			require.NoError(t, err)

			assert.Len(t, f.uploader.calls, tt.wantUploads)
			require.Len(t, f.records.calls, 1)
			shots, _ := f.records.calls[0].Fields[fieldScreenshots].([]map[string]string)
			assert.Len(t, shots, tt.wantURLs)
		})
	}
}

func TestSubmitSupport_Captcha(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"rejected", captcha.ErrRejected, captcha.ErrRejected},
		{"unavailable", captcha.ErrUnavailable, captcha.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Config{})
			f.verifier.err = tt.err

			_, err := f.service.SubmitSupport(context.Background(), validSupportRequest(), "", []Attachment{{Data: pngData}})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Empty(t, f.uploader.calls, "no upload before the captcha passes")
			assert.Empty(t, f.records.calls)
		})
	}
}

func TestSubmitSupport_RecordFailureIsKept(t *testing.T) {
	f := newFixture(Config{})
	f.records.err = &airtable.APIError{StatusCode: 422, Type: "INVALID_VALUE_FOR_COLUMN", Message: "bad value"}

	_, err := f.service.SubmitSupport(context.Background(), validSupportRequest(), "", []Attachment{{Data: pngData}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.ErrorIs(t, err, airtable.ErrUpstream)

	kept, err := f.repo.ListFailed(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, domain.SubmissionKindSupport, kept[0].Kind)
	assert.Contains(t, kept[0].Error, "bad value")

	var payload domain.SupportSubmission
	require.NoError(t, json.Unmarshal(kept[0].Payload, &payload))
	assert.Equal(t, "ada@example.com", payload.Email)
	assert.Equal(t, "Exporting invoices to CSV returns an empty file.", payload.Description)
	assert.Len(t, payload.ScreenshotURLs, 1)

	require.Len(t, f.alerter.alerts, 1)
	assert.Equal(t, "Support submission needs manual follow-up", f.alerter.alerts[0].Subject)
	assert.Contains(t, f.alerter.alerts[0].Body, kept[0].ID)
	assert.Contains(t, f.alerter.alerts[0].Body, "ada@example.com")
	assert.Contains(t, f.alerter.alerts[0].Body, "Invoice export fails")
}

func TestSubmitSupport_RecordFailureWithBrokenStoreAndNoAlerter(t *testing.T) {
	records := &mockRecords{err: errors.New("connection refused")}
	svc := NewService(&mockVerifier{}, &mockUploader{}, records, failingRepository{}, nil, Config{})

	_, err := svc.SubmitSupport(context.Background(), validSupportRequest(), "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmissionFailed)
}

func TestSubmitSupport_AlertFailureDoesNotChangeResult(t *testing.T) {
	f := newFixture(Config{})
	f.records.err = errors.New("timeout")
	f.alerter.err = errors.New("webhook down")

	_, err := f.service.SubmitSupport(context.Background(), validSupportRequest(), "", nil)
	assert.ErrorIs(t, err, ErrSubmissionFailed)

	kept, _ := f.repo.ListFailed(context.Background(), 0)
	assert.Len(t, kept, 1)
}

func TestSubmitContact(t *testing.T) {
	f := newFixture(Config{})

	receipt, err := f.service.SubmitContact(context.Background(), validContactRequest(), "198.51.100.1")
	require.NoError(t, err)
	assert.Equal(t, "rec1", receipt.RecordID)

	require.Len(t, f.records.calls, 1)
	call := f.records.calls[0]
	assert.Equal(t, DefaultContactTable, call.Table)
	assert.Equal(t, "Navy", call.Fields[fieldCompany])
	assert.Equal(t, "I would like a demo for my team.", call.Fields[fieldMessage])
	assert.Empty(t, f.uploader.calls)
}

func TestSubmitContact_RecordFailure(t *testing.T) {
	f := newFixture(Config{ContactTable: "Leads"})
	f.records.err = errors.New("unreachable")

	_, err := f.service.SubmitContact(context.Background(), validContactRequest(), "")
	require.ErrorIs(t, err, ErrSubmissionFailed)
	assert.Equal(t, "Leads", f.records.calls[0].Table)

	kept, _ := f.repo.ListFailed(context.Background(), 10)
	require.Len(t, kept, 1)
	assert.Equal(t, domain.SubmissionKindContact, kept[0].Kind)

	require.Len(t, f.alerter.alerts, 1)
	assert.Equal(t, "Contact submission needs manual follow-up", f.alerter.alerts[0].Subject)
	assert.NotContains(t, f.alerter.alerts[0].Body, "**Subject**")
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository(3)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, repo.SaveFailed(ctx, &domain.FailedSubmission{ID: id}))
	}

	all, err := repo.ListFailed(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, s := range all {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"d", "c", "b"}, ids)

	limited, err := repo.ListFailed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "d", limited[0].ID)
}

func TestAlertRenderer_FailedSubmission(t *testing.T) {
	r := NewAlertRenderer()
	sub := &domain.FailedSubmission{
		ID:        "0b9d2d4e-0000-4000-8000-000000000000",
		Kind:      domain.SubmissionKindSupport,
		Error:     "content source unavailable",
		CreatedAt: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
	}

	subject, body, err := r.FailedSubmission(sub, alertSummary{Name: "Ada Lovelace", Email: "ada@example.com", Subject: "Login"})
	require.NoError(t, err)
	assert.Equal(t, "Support submission needs manual follow-up", subject)
	assert.Contains(t, body, "`0b9d2d4e-0000-4000-8000-000000000000`")
	assert.Contains(t, body, "Ada Lovelace (ada@example.com)")
	assert.Contains(t, body, "| **Subject** | Login |")
	assert.Contains(t, body, "Mar 1, 2025 09:30 UTC")
	assert.Contains(t, body, "content source unavailable")
}

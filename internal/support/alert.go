package support

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
	"time"

	"github.com/cofabri/site-backend/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var titleCaser = cases.Title(language.English)

// alertSummary carries the fields operators need to reach the customer.
type alertSummary struct {
	Name    string
	Email   string
	Subject string
}

type alertData struct {
	Submission *domain.FailedSubmission
	Name       string
	Email      string
	Subject    string
}

// AlertRenderer renders operator alerts from templates.
type AlertRenderer struct {
	failed *template.Template
}

// NewAlertRenderer parses the embedded alert templates.
func NewAlertRenderer() *AlertRenderer {
	funcMap := template.FuncMap{
		"title":      titleCaser.String,
		"formatTime": formatTime,
	}
	return &AlertRenderer{
		failed: template.Must(template.New("failed_submission.tmpl").
			Funcs(funcMap).
			ParseFS(templatesFS, "templates/failed_submission.tmpl")),
	}
}

// FailedSubmission renders the subject and body of a dead-letter alert.
func (r *AlertRenderer) FailedSubmission(sub *domain.FailedSubmission, summary alertSummary) (string, string, error) {
	var buf bytes.Buffer
	if err := r.failed.Execute(&buf, alertData{
		Submission: sub,
		Name:       summary.Name,
		Email:      summary.Email,
		Subject:    summary.Subject,
	}); err != nil {
		return "", "", fmt.Errorf("execute template: %w", err)
	}
	subject := fmt.Sprintf("%s submission needs manual follow-up", titleCaser.String(string(sub.Kind)))
	return subject, buf.String(), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

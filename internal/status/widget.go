package status

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html.tmpl
var templatesFS embed.FS

//go:embed static/*.js
var staticFS embed.FS

// RefreshInterval is how often widgets reload themselves.
const RefreshInterval = 5 * time.Minute

// WidgetData is the view model of one HTML widget.
type WidgetData struct {
	AppName       string
	Indicator     Indicator
	StatusPageURL string
	RefreshMillis int64
	GeneratedAt   time.Time
}

// WidgetRenderer renders the self-contained HTML status widgets.
type WidgetRenderer struct {
	tmpl *template.Template
}

// NewWidgetRenderer parses the embedded widget template.
func NewWidgetRenderer() (*WidgetRenderer, error) {
	funcMap := template.FuncMap{
		"formatTime": formatTime,
	}

	tmpl, err := template.New("widget.html.tmpl").Funcs(funcMap).ParseFS(templatesFS, "templates/widget.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse widget template: %w", err)
	}
	return &WidgetRenderer{tmpl: tmpl}, nil
}

// Render produces the widget page for ind. app is the raw identifier from
// the URL and is empty for the global widget.
func (r *WidgetRenderer) Render(app string, ind Indicator, statusPageURL string, now time.Time) ([]byte, error) {
	data := WidgetData{
		AppName:       DisplayName(app),
		Indicator:     ind,
		StatusPageURL: statusPageURL,
		RefreshMillis: RefreshInterval.Milliseconds(),
		GeneratedAt:   now,
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute widget template: %w", err)
	}
	return buf.Bytes(), nil
}

// Script returns an embedded widget script by file name.
func Script(name string) ([]byte, bool) {
	if strings.Contains(name, "/") {
		return nil, false
	}
	data, err := staticFS.ReadFile("static/" + name)
	if err != nil {
		return nil, false
	}
	return data, true
}

var titleCaser = cases.Title(language.English)

// DisplayName turns a URL identifier such as "invoice-pro" into "Invoice Pro".
func DisplayName(app string) string {
	app = strings.TrimSpace(app)
	if app == "" {
		return ""
	}
	app = strings.NewReplacer("-", " ", "_", " ").Replace(app)
	return titleCaser.String(strings.Join(strings.Fields(app), " "))
}

func formatTime(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

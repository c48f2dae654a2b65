package status

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cofabri/site-backend/internal/airtable"
	"github.com/cofabri/site-backend/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, lister *mockLister) http.Handler {
	t.Helper()

	svc, _ := newTestService(lister)
	widgets, err := NewWidgetRenderer()
	require.NoError(t, err)

	h := NewHandler(svc, widgets, HandlerConfig{StatusPageURL: "https://cofabri.com/status"})
	h.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandler_ListIncidents(t *testing.T) {
	lister := &mockLister{records: []airtable.Record{
		record("1", "Investigating", "Invoicer", "Billing"),
	}}
	rec := get(t, newTestRouter(t, lister), "/api/status")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var incidents []domain.Incident
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &incidents))
	require.Len(t, incidents, 1)
	assert.Equal(t, "INC-1", incidents[0].TicketID)
	assert.Equal(t, domain.PublicStatusInvestigating, incidents[0].PublicStatus)
}

func TestHandler_ListIncidents_Unavailable(t *testing.T) {
	rec := get(t, newTestRouter(t, &mockLister{err: airtable.ErrUpstream}), "/api/status")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestHandler_Summary(t *testing.T) {
	lister := &mockLister{records: []airtable.Record{
		record("1", "Resolved", "Invoicer"),
		record("2", "Monitoring", "Invoicer"),
		record("3", "Identified", "Scheduler"),
	}}
	router := newTestRouter(t, lister)

	tests := []struct {
		target      string
		color       string
		label       string
		operational bool
	}{
		{"/api/status/summary", ColorIdentified, "System Status - Identified", false},
		{"/api/status/summary?app=invoicer", ColorMonitoring, "System Status - Monitoring", false},
		{"/api/status/summary?app=unknown", ColorOperational, "System Status", true},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, router, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.color, body["color"])
			assert.Equal(t, tt.label, body["label"])
			assert.Equal(t, tt.operational, body["operational"])
			if tt.operational {
				assert.NotContains(t, body, "incident")
			} else {
				assert.Contains(t, body, "incident")
			}
		})
	}
}

func TestHandler_Summary_Unknown(t *testing.T) {
	rec := get(t, newTestRouter(t, &mockLister{err: errors.New("down")}), "/api/status/summary")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ColorUnknown, body["color"])
	assert.Equal(t, true, body["unknown"])
	assert.Equal(t, false, body["operational"])
}

func assertNoCache(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "no-cache, no-store, must-revalidate, max-age=0", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.Equal(t, "0", rec.Header().Get("Expires"))
}

func TestHandler_AppWidget(t *testing.T) {
	lister := &mockLister{records: []airtable.Record{
		record("1", "Identified", "invoice-pro"),
		record("2", "Investigating", "scheduler"),
	}}
	rec := get(t, newTestRouter(t, lister), "/api/status/invoice-pro")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assertNoCache(t, rec)

	body := rec.Body.String()
	assert.Contains(t, body, "Invoice Pro")
	assert.Contains(t, body, ColorIdentified)
	assert.Contains(t, body, "System Status - Identified")
	assert.NotContains(t, body, ColorInvestigating)
	assert.Contains(t, body, "setTimeout")
	assert.Contains(t, body, "300000")
	assert.Contains(t, body, "https://cofabri.com/status")
}

func TestHandler_GlobalWidget(t *testing.T) {
	lister := &mockLister{records: []airtable.Record{
		record("1", "Identified", "invoice-pro"),
		record("2", "Investigating", "scheduler"),
	}}
	rec := get(t, newTestRouter(t, lister), "/api/status-widget")

	require.Equal(t, http.StatusOK, rec.Code)
	assertNoCache(t, rec)
	assert.Contains(t, rec.Body.String(), ColorInvestigating)
	assert.Contains(t, rec.Body.String(), "System Status - Investigating")
}

func TestHandler_Widget_DegradesToGray(t *testing.T) {
	rec := get(t, newTestRouter(t, &mockLister{err: airtable.ErrUpstream}), "/api/status/invoice-pro")

	require.Equal(t, http.StatusOK, rec.Code)
	assertNoCache(t, rec)
	assert.Contains(t, rec.Body.String(), ColorUnknown)
	assert.Contains(t, rec.Body.String(), "System Status")
}

func TestHandler_Widget_EscapesAppName(t *testing.T) {
	rec := get(t, newTestRouter(t, &mockLister{}), "/api/status/%3Cscript%3Ealert(1)%3C%2Fscript%3E")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<script>alert(1)")
}

func TestHandler_AppWidget_DecodesPathOnce(t *testing.T) {
	tests := []struct {
		name   string
		target string
		app    string
	}{
		{"escaped slash", "/api/status/Billing%2FOps", "Billing/Ops"},
		{"literal percent", "/api/status/a%2541", "a%41"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &mockLister{records: []airtable.Record{record("1", "Investigating", tt.app)}}
			rec := get(t, newTestRouter(t, lister), tt.target)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), ColorInvestigating)
		})
	}
}

func TestHandler_Feed(t *testing.T) {
	lister := &mockLister{records: []airtable.Record{
		record("1", "Investigating", "Invoicer", "Billing"),
		record("2", "Resolved", "Scheduler"),
	}}
	rec := get(t, newTestRouter(t, lister), "/api/status/feed.rss")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/rss+xml; charset=utf-8", rec.Header().Get("Content-Type"))

	feed, err := gofeed.NewParser().ParseString(rec.Body.String())
	require.NoError(t, err)
	assert.Equal(t, "rss", feed.FeedType)
	assert.Equal(t, "CoFabri System Status", feed.Title)
	require.Len(t, feed.Items, 2)
	assert.Equal(t, "[Investigating] Incident 1", feed.Items[0].Title)
	assert.Equal(t, "https://cofabri.com/status#INC-1", feed.Items[0].Link)
	assert.Contains(t, feed.Items[0].Description, "Affected services: Billing")
}

func TestHandler_Feed_Unavailable(t *testing.T) {
	rec := get(t, newTestRouter(t, &mockLister{err: airtable.ErrUpstream}), "/api/status/feed.rss")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandler_Scripts(t *testing.T) {
	router := newTestRouter(t, &mockLister{})

	for _, name := range []string{"status-widget.js", "app-status-widget.js"} {
		t.Run(name, func(t *testing.T) {
			rec := get(t, router, "/widgets/"+name)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/javascript"))
			assert.Contains(t, rec.Body.String(), "/api/status/summary")
			assert.Contains(t, rec.Body.String(), "300000")
		})
	}

	rec := get(t, router, "/widgets/missing.js")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

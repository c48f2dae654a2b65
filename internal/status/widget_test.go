package status

import (
	"testing"
	"time"

	"github.com/cofabri/site-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"invoice-pro", "Invoice Pro"},
		{"task_board", "Task Board"},
		{"  crm  ", "Crm"},
		{"Already Titled", "Already Titled"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DisplayName(tt.in), tt.in)
	}
}

func TestWidgetRenderer_Render(t *testing.T) {
	r, err := NewWidgetRenderer()
	require.NoError(t, err)

	inc := domain.Incident{Title: "Payments delayed", PublicStatus: domain.PublicStatusMonitoring}
	ind := Aggregate([]domain.Incident{inc})

	out, err := r.Render("invoice-pro", ind, "https://cofabri.com/status", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, "Invoice Pro")
	assert.Contains(t, html, "background-color: #3b82f6")
	assert.Contains(t, html, "System Status - Monitoring")
	assert.Contains(t, html, "Payments delayed")
	assert.Contains(t, html, "Mar 1, 2025 12:00 UTC")
	assert.Contains(t, html, "dot active")
}

func TestWidgetRenderer_Operational(t *testing.T) {
	r, err := NewWidgetRenderer()
	require.NoError(t, err)

	out, err := r.Render("", Aggregate(nil), "https://cofabri.com/status", time.Now())
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, ColorOperational)
	assert.NotContains(t, html, "dot active")
	assert.NotContains(t, html, `class="app"`)
}

func TestScript(t *testing.T) {
	data, ok := Script("status-widget.js")
	assert.True(t, ok)
	assert.NotEmpty(t, data)

	_, ok = Script("../widget.go")
	assert.False(t, ok)
	_, ok = Script("nope.js")
	assert.False(t, ok)
}

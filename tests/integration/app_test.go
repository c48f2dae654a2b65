//go:build integration

package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cofabri/site-backend/internal/app"
	"github.com/cofabri/site-backend/internal/config"
	"github.com/cofabri/site-backend/internal/domain"
	"github.com/cofabri/site-backend/internal/identity"
	"github.com/cofabri/site-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminPassword = "integration-passphrase"

func newApp(t *testing.T) (*testutil.FakeAirtable, *testutil.Client) {
	t.Helper()

	fake := testutil.NewFakeAirtable(t)
	hash, err := identity.HashPassword(adminPassword)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Server.MetricsPort = 0
	cfg.Log = config.LogConfig{Level: "error", Format: "text"}
	cfg.Airtable.BaseURL = fake.URL
	cfg.Airtable.APIKey = "key-test"
	cfg.Airtable.BaseID = "appTest"
	cfg.Airtable.RateLimit = 1000
	cfg.Outbound.AllowPrivateNetworks = true
	cfg.Turnstile.Enabled = false
	cfg.Cache.Backend = config.CacheBackendPostgres
	cfg.Database.URL = testDBURL
	cfg.Database.ConnectAttempts = 3
	cfg.Admin.PasswordHash = hash
	cfg.Admin.JWTSecret = "integration-secret-integration-secret"
	require.NoError(t, cfg.Validate())

	application, err := app.New(&cfg)
	require.NoError(t, err)

	server := httptest.NewServer(application.Router())
	t.Cleanup(func() {
		server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Shutdown(ctx)
	})

	return fake, testutil.NewClientWithValidator(t, server.URL, testutil.NewEmbeddedValidator(t))
}

func TestApp_ReadyWithDatabase(t *testing.T) {
	_, client := newApp(t)

	resp, err := client.GET("/readyz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestApp_ContentIsCachedInDatabase(t *testing.T) {
	resetTables(t)
	fake, client := newApp(t)
	fake.SetRecords("Testimonials",
		map[string]interface{}{"id": "recT", "Name": "Lin", "Quote": "Saved us hours every week.", "Rating": 5, "Approved": true},
	)

	for i := 0; i < 3; i++ {
		resp, err := client.GET("/api/testimonials")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}
	assert.Equal(t, 1, fake.ListCalls("Testimonials"))

	var n int
	require.NoError(t, testDB.QueryRow(context.Background(),
		`SELECT count(*) FROM cache_entries WHERE key = 'testimonials'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestApp_FailedSubmissionsPersist(t *testing.T) {
	resetTables(t)
	fake, client := newApp(t)
	fake.SetFailing(true)

	resp, err := client.POST("/api/contact", map[string]string{
		"firstName":      "Grace",
		"lastName":       "Hopper",
		"email":          "grace@example.com",
		"message":        "Please call me about pricing.",
		"turnstileToken": "token",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	_ = resp.Body.Close()

	client.Login(t, "admin", adminPassword)

	resp, err = client.GET("/api/admin/failed-submissions?limit=10")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var subs []domain.FailedSubmission
	testutil.DecodeJSON(t, resp, &subs)
	require.Len(t, subs, 1)
	assert.Equal(t, domain.SubmissionKindContact, subs[0].Kind)
	assert.Contains(t, string(subs[0].Payload), "grace@example.com")
}

// Package captcha verifies Cloudflare Turnstile tokens.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cofabri/site-backend/internal/pkg/ctxlog"
	"github.com/cofabri/site-backend/internal/pkg/metrics"
)

// DefaultVerifyURL is Cloudflare's siteverify endpoint.
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

var (
	// ErrRejected means the provider answered and the token is not valid.
	ErrRejected = errors.New("captcha verification failed")
	// ErrUnavailable means the provider could not be asked.
	ErrUnavailable = errors.New("captcha service unavailable")
)

// Config configures the verifier.
type Config struct {
	SecretKey string
	VerifyURL string
}

// Turnstile verifies tokens against the siteverify API.
type Turnstile struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
}

// NewTurnstile creates a verifier. A nil httpClient gets a default one.
func NewTurnstile(cfg Config, httpClient *http.Client) *Turnstile {
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = DefaultVerifyURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Turnstile{
		secret:     cfg.SecretKey,
		verifyURL:  cfg.VerifyURL,
		httpClient: httpClient,
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
	Action     string   `json:"action"`
}

// Verify checks token for the client at remoteIP. An empty token is
// rejected without a network call.
func (t *Turnstile) Verify(ctx context.Context, token, remoteIP string) (err error) {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: missing token", ErrRejected)
	}

	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case errors.Is(err, ErrRejected):
			outcome = "rejected"
		case err != nil:
			outcome = "error"
		}
		metrics.UpstreamRequestDuration.WithLabelValues("turnstile", "verify", outcome).Observe(time.Since(start).Seconds())
	}()

	form := url.Values{}
	form.Set("secret", t.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}

	if !result.Success {
		// internal-error is Cloudflare's side, not the visitor's.
		for _, code := range result.ErrorCodes {
			if code == "internal-error" {
				return fmt.Errorf("%w: %s", ErrUnavailable, code)
			}
		}
		ctxlog.FromContext(ctx).Info("captcha rejected", "error_codes", result.ErrorCodes)
		return fmt.Errorf("%w: %s", ErrRejected, strings.Join(result.ErrorCodes, ","))
	}

	return nil
}

// Noop accepts every token. Used when verification is disabled in config.
type Noop struct{}

// Verify always succeeds.
func (Noop) Verify(context.Context, string, string) error {
	return nil
}

package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerifier(t *testing.T, handler http.HandlerFunc) *Turnstile {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewTurnstile(Config{SecretKey: "secret", VerifyURL: server.URL}, server.Client())
}

func TestVerify_Success(t *testing.T) {
	v := newVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("secret"))
		assert.Equal(t, "tok", r.PostForm.Get("response"))
		assert.Equal(t, "203.0.113.7", r.PostForm.Get("remoteip"))

		_, _ = w.Write([]byte(`{"success":true,"hostname":"cofabri.com"}`))
	})

	assert.NoError(t, v.Verify(context.Background(), "tok", "203.0.113.7"))
}

func TestVerify_Rejected(t *testing.T) {
	v := newVerifier(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	})

	err := v.Verify(context.Background(), "tok", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "invalid-input-response")
}

func TestVerify_EmptyTokenSkipsNetwork(t *testing.T) {
	v := newVerifier(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("provider must not be called")
	})

	err := v.Verify(context.Background(), "  ", "")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestVerify_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"garbage body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
		{"provider internal error", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"error-codes":["internal-error"]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newVerifier(t, tt.handler)
			err := v.Verify(context.Background(), "tok", "")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnavailable)
			assert.NotErrorIs(t, err, ErrRejected)
		})
	}
}

func TestVerify_NetworkError(t *testing.T) {
	v := NewTurnstile(Config{VerifyURL: "http://127.0.0.1:1"}, nil)
	err := v.Verify(context.Background(), "tok", "")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewTurnstile_Defaults(t *testing.T) {
	v := NewTurnstile(Config{}, nil)
	assert.Equal(t, DefaultVerifyURL, v.verifyURL)
	assert.NotNil(t, v.httpClient)
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Verify(context.Background(), "", ""))
}

package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cofabri/site-backend/internal/domain"
	"github.com/cofabri/site-backend/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key-with-enough-entropy"

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService([]Operator{
		{Username: "Ops", PasswordHash: hash(t, "correct horse battery")},
		{Username: "root", PasswordHash: hash(t, "staple staple staple"), Role: domain.RoleAdmin},
	}, NewAuthenticator(JWTConfig{SecretKey: testSecret}))
	require.NoError(t, err)
	return svc
}

func TestLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		input    LoginInput
		wantErr  error
		wantRole domain.Role
	}{
		{"operator", LoginInput{Username: "ops", Password: "correct horse battery"}, nil, domain.RoleOperator},
		{"username is case-insensitive", LoginInput{Username: " OPS ", Password: "correct horse battery"}, nil, domain.RoleOperator},
		{"admin role", LoginInput{Username: "root", Password: "staple staple staple"}, nil, domain.RoleAdmin},
		{"wrong password", LoginInput{Username: "ops", Password: "wrong"}, ErrInvalidCredentials, ""},
		{"unknown user", LoginInput{Username: "nobody", Password: "correct horse battery"}, ErrInvalidCredentials, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := svc.Login(ctx, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, token)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, token.Role)

			subject, role, err := svc.ValidateToken(ctx, token.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(strings.TrimSpace(tt.input.Username)), subject)
			assert.Equal(t, tt.wantRole, role)
		})
	}
}

func TestLogin_NoOperators(t *testing.T) {
	svc, err := NewService(nil, NewAuthenticator(JWTConfig{SecretKey: testSecret}))
	require.NoError(t, err)

	assert.False(t, svc.Enabled())
	_, err = svc.Login(context.Background(), LoginInput{Username: "ops", Password: "x"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNewService_RejectsBadConfig(t *testing.T) {
	auth := NewAuthenticator(JWTConfig{SecretKey: testSecret})

	_, err := NewService([]Operator{{Username: "ops", PasswordHash: "plaintext"}}, auth)
	assert.Error(t, err)

	_, err = NewService([]Operator{{Username: "ops", PasswordHash: hash(t, "pw"), Role: "superuser"}}, auth)
	assert.Error(t, err)
}

func TestAuthenticator_ValidateToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	auth := NewAuthenticator(JWTConfig{SecretKey: testSecret, TokenDuration: time.Hour})
	auth.now = func() time.Time { return now }

	token, err := auth.Issue("ops", domain.RoleOperator)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), token.ExpiresAt)

	subject, role, err := auth.ValidateToken(context.Background(), token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ops", subject)
	assert.Equal(t, domain.RoleOperator, role)

	t.Run("expired", func(t *testing.T) {
		later := NewAuthenticator(JWTConfig{SecretKey: testSecret})
		later.now = func() time.Time { return now.Add(2 * time.Hour) }
		_, _, err := later.ValidateToken(context.Background(), token.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewAuthenticator(JWTConfig{SecretKey: "another-secret"})
		other.now = auth.now
		_, _, err := other.ValidateToken(context.Background(), token.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other issuer", func(t *testing.T) {
		other := NewAuthenticator(JWTConfig{SecretKey: testSecret, Issuer: "someone-else"})
		other.now = auth.now
		_, _, err := other.ValidateToken(context.Background(), token.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		claims := Claims{
			Role: domain.RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    defaultIssuer,
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, _, err = auth.ValidateToken(context.Background(), unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := auth.ValidateToken(context.Background(), "not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestAuthenticator_NoSecret(t *testing.T) {
	auth := NewAuthenticator(JWTConfig{})

	_, err := auth.Issue("ops", domain.RoleOperator)
	assert.ErrorIs(t, err, ErrDisabled)

	_, _, err = auth.ValidateToken(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)

	h, err := HashPassword("a long enough password")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("a long enough password")))
}

func TestLoginHandler(t *testing.T) {
	svc := newTestService(t)
	r := chi.NewRouter()
	r.Route("/api/admin", NewHandler(svc).RegisterRoutes)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"success", `{"username":"ops","password":"correct horse battery"}`, http.StatusOK},
		{"wrong password", `{"username":"ops","password":"nope"}`, http.StatusUnauthorized},
		{"missing password", `{"username":"ops"}`, http.StatusBadRequest},
		{"invalid json", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}

			var token Token
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &token))
			assert.NotEmpty(t, token.AccessToken)
			assert.Equal(t, domain.RoleOperator, token.Role)
			assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
		})
	}
}

func TestAuthMiddlewareWithIssuedToken(t *testing.T) {
	svc := newTestService(t)
	token, err := svc.Login(context.Background(), LoginInput{Username: "ops", Password: "correct horse battery"})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(httputil.AuthMiddleware(svc))
		r.Use(httputil.RequireRole(domain.RoleOperator))
		r.Get("/protected", func(w http.ResponseWriter, r *http.Request) {
			httputil.Text(w, http.StatusOK, httputil.GetUserID(r.Context()))
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ops", rr.Body.String())
}

package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/cofabri/site-backend/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenDuration is the lifetime of an issued admin token.
const DefaultTokenDuration = 12 * time.Hour

const defaultIssuer = "cofabri-site"

// JWTConfig configures token signing.
type JWTConfig struct {
	SecretKey     string
	TokenDuration time.Duration
	Issuer        string
}

// Claims are the JWT claims carried by an admin token.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and validates HS256 tokens.
type Authenticator struct {
	secret   []byte
	duration time.Duration
	issuer   string
	now      func() time.Time
}

// NewAuthenticator creates a token authenticator.
func NewAuthenticator(cfg JWTConfig) *Authenticator {
	if cfg.TokenDuration <= 0 {
		cfg.TokenDuration = DefaultTokenDuration
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	return &Authenticator{
		secret:   []byte(cfg.SecretKey),
		duration: cfg.TokenDuration,
		issuer:   cfg.Issuer,
		now:      time.Now,
	}
}

// Token is a signed token and when it stops being accepted.
type Token struct {
	AccessToken string      `json:"token"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	Role        domain.Role `json:"role"`
}

// Issue signs a token for subject with role.
func (a *Authenticator) Issue(subject string, role domain.Role) (*Token, error) {
	if len(a.secret) == 0 {
		return nil, ErrDisabled
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	now := a.now()
	expires := now.Add(a.duration)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{AccessToken: signed, ExpiresAt: expires.UTC(), Role: role}, nil
}

// ValidateToken checks signature, issuer and expiry and returns the subject
// and role carried by the token.
func (a *Authenticator) ValidateToken(_ context.Context, tokenString string) (string, domain.Role, error) {
	if len(a.secret) == 0 {
		return "", "", ErrDisabled
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !claims.Role.IsValid() {
		return "", "", fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return claims.Subject, claims.Role, nil
}

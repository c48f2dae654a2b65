// Package identity authenticates site operators for the admin endpoints.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cofabri/site-backend/internal/domain"
	"github.com/cofabri/site-backend/internal/pkg/ctxlog"
	"golang.org/x/crypto/bcrypt"
)

// Operator is an account allowed to sign in to the admin endpoints.
type Operator struct {
	Username     string
	PasswordHash string
	Role         domain.Role
}

// LoginInput contains data for login.
type LoginInput struct {
	Username string
	Password string
}

// Service implements operator login and token validation.
type Service struct {
	operators map[string]Operator
	auth      *Authenticator
	// dummyHash is compared against for unknown usernames so a miss costs
	// the same as a wrong password.
	dummyHash []byte
}

// NewService creates a new identity service.
func NewService(operators []Operator, auth *Authenticator) (*Service, error) {
	byName := make(map[string]Operator, len(operators))
	for _, op := range operators {
		name := strings.ToLower(strings.TrimSpace(op.Username))
		if name == "" || op.PasswordHash == "" {
			continue
		}
		if op.Role == "" {
			op.Role = domain.RoleOperator
		}
		if !op.Role.IsValid() {
			return nil, fmt.Errorf("operator %s: unknown role %q", name, op.Role)
		}
		if _, err := bcrypt.Cost([]byte(op.PasswordHash)); err != nil {
			return nil, fmt.Errorf("operator %s: password hash: %w", name, err)
		}
		byName[name] = op
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	return &Service{operators: byName, auth: auth, dummyHash: dummy}, nil
}

// Enabled reports whether any operator can sign in.
func (s *Service) Enabled() bool {
	return len(s.operators) > 0
}

// Login checks the password and issues a token.
func (s *Service) Login(ctx context.Context, input LoginInput) (*Token, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	name := strings.ToLower(strings.TrimSpace(input.Username))
	op, ok := s.operators[name]

	hash := s.dummyHash
	if ok {
		hash = []byte(op.PasswordHash)
	}
	err := bcrypt.CompareHashAndPassword(hash, []byte(input.Password))
	if !ok || err != nil {
		if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			ctxlog.FromContext(ctx).Error("compare password hash", "error", err)
		}
		ctxlog.FromContext(ctx).Warn("admin login failed", "username", name)
		return nil, ErrInvalidCredentials
	}

	token, err := s.auth.Issue(name, op.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	ctxlog.FromContext(ctx).Info("admin login", "username", name, "role", op.Role)
	return token, nil
}

// ValidateToken implements httputil.TokenValidator.
func (s *Service) ValidateToken(ctx context.Context, token string) (string, domain.Role, error) {
	return s.auth.ValidateToken(ctx, token)
}

// HashPassword returns a bcrypt hash suitable for the admin configuration.
func HashPassword(password string) (string, error) {
	if len(password) < 12 {
		return "", errors.New("password must be at least 12 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

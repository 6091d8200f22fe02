package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/eishro/storeguard/internal/models"
	pkgauth "github.com/eishro/storeguard/pkg/auth"
)

// AdminAuthenticator checks credentials against the single configured
// operator account.
type AdminAuthenticator struct {
	email        string
	passwordHash string
}

// NewAdminAuthenticator takes a bcrypt hash of the admin password.
func NewAdminAuthenticator(email, passwordHash string) (*AdminAuthenticator, error) {
	if email == "" || passwordHash == "" {
		return nil, fmt.Errorf("admin email and password hash are required")
	}
	return &AdminAuthenticator{
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: passwordHash,
	}, nil
}

// Authenticate returns models.ErrInvalidCredentials for any mismatch. The bcrypt
// comparison runs even for an unknown email so both cases cost the same.
func (a *AdminAuthenticator) Authenticate(_ context.Context, email, password string) error {
	emailMatch := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(email))),
		[]byte(a.email),
	) == 1

	passwordErr := pkgauth.ComparePassword(a.passwordHash, password)

	if !emailMatch || passwordErr != nil {
		return models.ErrInvalidCredentials
	}
	return nil
}

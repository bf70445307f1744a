package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid admin token")
	ErrNoSecret           = errors.New("admin token or token hash must be configured")
)

// SecretAuthenticator checks the admin credential against a configured
// secret. When a bcrypt hash is configured it takes precedence over the
// plain secret.
type SecretAuthenticator struct {
	secret []byte
	hash   []byte
}

// NewSecretAuthenticator creates an authenticator. At least one of secret
// and hash must be non-empty.
func NewSecretAuthenticator(secret, hash string) (*SecretAuthenticator, error) {
	if secret == "" && hash == "" {
		return nil, ErrNoSecret
	}
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid admin token hash: %w", err)
		}
	}
	return &SecretAuthenticator{secret: []byte(secret), hash: []byte(hash)}, nil
}

// Authenticate compares in constant time.
func (a *SecretAuthenticator) Authenticate(_ context.Context, credential string) error {
	if credential == "" {
		return ErrInvalidCredentials
	}
	if len(a.hash) > 0 {
		if err := bcrypt.CompareHashAndPassword(a.hash, []byte(credential)); err != nil {
			return ErrInvalidCredentials
		}
		return nil
	}
	if subtle.ConstantTimeCompare(a.secret, []byte(credential)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// HashSecret returns a bcrypt hash suitable for ADMIN_TOKEN_HASH.
func HashSecret(secret string) (string, error) {
	if len(secret) < 8 {
		return "", errors.New("admin token must be at least 8 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hashed), nil
}

package auth

import "context"

// Authenticator verifies the admin credential.
// This abstraction allows swapping between a plain shared secret, a bcrypt
// hash or an external identity provider without changing the service layer.
type Authenticator interface {
	// Authenticate returns nil if credential grants admin access and
	// ErrInvalidCredentials otherwise.
	Authenticate(ctx context.Context, credential string) error
}

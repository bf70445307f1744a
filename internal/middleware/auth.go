package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// AdminKey is the context key for the authenticated admin subject.
const AdminKey contextKey = "admin"

// AdminTokenHeader carries the raw admin secret as an alternative to a session token.
const AdminTokenHeader = "X-Admin-Token"

// GetAdmin extracts the admin subject from the context.
// Returns empty string if the request is not authenticated.
func GetAdmin(ctx context.Context) string {
	subject, _ := ctx.Value(AdminKey).(string)
	return subject
}

// WithAdmin returns a copy of ctx carrying the admin subject.
func WithAdmin(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, AdminKey, subject)
}

// Authorize resolves the admin subject from an Authorization bearer token or
// the X-Admin-Token header. It returns auth.ErrMissingToken when neither is
// present.
func Authorize(ctx context.Context, jwtManager *auth.JWTManager, authenticator auth.Authenticator, authHeader, adminToken string) (string, error) {
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", auth.ErrInvalidToken
		}
		claims, err := jwtManager.Validate(parts[1])
		if err != nil {
			return "", err
		}
		return claims.Subject, nil
	}
	if adminToken != "" {
		if err := authenticator.Authenticate(ctx, adminToken); err != nil {
			return "", err
		}
		return auth.RoleAdmin, nil
	}
	return "", auth.ErrMissingToken
}

// RequireAdmin returns an interceptor that rejects calls to procedures
// matched by protected unless they carry admin credentials. Unprotected
// procedures pass through untouched.
func RequireAdmin(jwtManager *auth.JWTManager, authenticator auth.Authenticator, protected func(procedure string) bool) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if !protected(req.Spec().Procedure) {
				return next(ctx, req)
			}

			subject, err := Authorize(ctx, jwtManager, authenticator,
				req.Header().Get("Authorization"), req.Header().Get(AdminTokenHeader))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithAdmin(ctx, subject), req)
		}
	}
}

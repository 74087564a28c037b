// internal/app/system/identity/client.go
package identity

import (
	"context"
	"errors"
)

// Sentinel errors returned by Provider implementations.
var (
	// ErrInvalidCredentials means the email/password pair was rejected.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")

	// ErrSessionExpired means the refresh token is no longer usable.
	ErrSessionExpired = errors.New("identity: session expired")
)

// Provider is the subset of an external identity service the access
// core depends on. Implementations must be safe for concurrent use.
type Provider interface {
	// SignIn exchanges credentials for a session.
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// Refresh exchanges a refresh token for a renewed session.
	Refresh(ctx context.Context, refreshToken string) (*Session, error)

	// SignOut revokes the session behind the given refresh token.
	SignOut(ctx context.Context, refreshToken string) error

	// RecoverPassword starts a password-recovery flow for the email.
	// Implementations must not reveal whether the email exists.
	RecoverPassword(ctx context.Context, email string) error
}

// internal/app/system/identity/events.go

// Package identity defines the contract between the access core and the
// external identity provider: the session shape, the auth-state events
// the provider emits, and the client interface used to authenticate.
package identity

import "time"

// EventType classifies an auth-state change reported by the identity
// provider.
type EventType string

const (
	// EventInitialSession is the first report after startup, carrying
	// whatever session (possibly none) the provider restored.
	EventInitialSession EventType = "initial_session"

	// EventSignedIn means a user completed authentication.
	EventSignedIn EventType = "signed_in"

	// EventSignedOut means the session ended.
	EventSignedOut EventType = "signed_out"

	// EventTokenRefreshed means an existing session's tokens were
	// renewed. The subject does not change.
	EventTokenRefreshed EventType = "token_refreshed"

	// EventPasswordRecovery means the user entered a password-recovery
	// flow. Treated like a refresh when a live session exists.
	EventPasswordRecovery EventType = "password_recovery"
)

// Session is the provider-issued authentication state for one subject.
type Session struct {
	SubjectID    string
	Email        string
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the session's access token is past its
// expiry at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Event is one auth-state change. Session is nil for EventSignedOut
// and for an EventInitialSession with no restored session.
type Event struct {
	Type    EventType
	Session *Session
}

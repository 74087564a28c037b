// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (ports, TLS,
// logging, CORS). AppConfig is everything specific to this application:
// the MongoDB connection, session cookies, the identity provider, and
// the session-reconciliation tuning knobs.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // secret key for signing session cookies (must be strong in production)
	SessionName   string // cookie name for sessions
	SessionDomain string // cookie domain (blank means current host)

	// Identity provider selection. "dev" runs the in-memory provider
	// for local development; "oauth" talks to a real token endpoint.
	AuthProvider      string
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string
	DevSessionTTL     time.Duration // access-token lifetime for the dev provider

	// Profile fetch tuning for session reconciliation. The initial
	// restore after startup gets the longer deadline; not-yet-created
	// profiles are retried before degrading.
	ProfileFetchInitialTimeout time.Duration
	ProfileFetchEventTimeout   time.Duration
	ProfileFetchRetries        int
	ProfileFetchRetryDelay     time.Duration

	// FallbackRole is the role a degraded session falls back to when
	// the profile cannot be fetched in time.
	FallbackRole string

	// Admin bootstrap. When set, this profile is created (or promoted)
	// as an approved admin on startup so a fresh deployment always has
	// someone who can review approval requests.
	SeedAdminEmail string
	SeedAdminName  string
}

// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"

	"github.com/zamanic/numerizam/internal/domain/models"
)

// appConfigKeys defines the configuration keys for Numerizam.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: NUMERIZAM_MONGO_URI, NUMERIZAM_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "numerizam", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "numerizam-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	// Identity provider configuration
	{Name: "auth_provider", Default: "dev", Desc: "Identity provider: 'dev' (in-memory) or 'oauth'"},
	{Name: "oauth_token_url", Default: "", Desc: "OAuth2 token endpoint URL"},
	{Name: "oauth_client_id", Default: "", Desc: "OAuth2 client ID"},
	{Name: "oauth_client_secret", Default: "", Desc: "OAuth2 client secret"},
	{Name: "dev_session_ttl", Default: "1h", Desc: "Access-token lifetime for the dev provider (e.g. 1h, 30m)"},

	// Session reconciliation tuning
	{Name: "profile_fetch_initial_timeout", Default: "10s", Desc: "Profile fetch deadline for the initial session restore"},
	{Name: "profile_fetch_event_timeout", Default: "5s", Desc: "Profile fetch deadline for later auth events"},
	{Name: "profile_fetch_retries", Default: 2, Desc: "Retries for a not-yet-created profile before degrading"},
	{Name: "profile_fetch_retry_delay", Default: "250ms", Desc: "Pause between profile fetch retries"},
	{Name: "fallback_role", Default: "accountant", Desc: "Role a degraded session falls back to"},

	// Admin bootstrap
	{Name: "seed_admin_email", Default: "", Desc: "Email of the bootstrap admin (created/promoted on startup)"},
	{Name: "seed_admin_name", Default: "Administrator", Desc: "Display name for the bootstrap admin"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, NUMERIZAM_* for app) and
// command-line flags, merged with precedence flags > env > files >
// defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "NUMERIZAM", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),

		AuthProvider:      appValues.String("auth_provider"),
		OAuthTokenURL:     appValues.String("oauth_token_url"),
		OAuthClientID:     appValues.String("oauth_client_id"),
		OAuthClientSecret: appValues.String("oauth_client_secret"),
		DevSessionTTL:     appValues.Duration("dev_session_ttl", time.Hour),

		ProfileFetchInitialTimeout: appValues.Duration("profile_fetch_initial_timeout", 10*time.Second),
		ProfileFetchEventTimeout:   appValues.Duration("profile_fetch_event_timeout", 5*time.Second),
		ProfileFetchRetries:        appValues.Int("profile_fetch_retries"),
		ProfileFetchRetryDelay:     appValues.Duration("profile_fetch_retry_delay", 250*time.Millisecond),
		FallbackRole:               appValues.String("fallback_role"),

		SeedAdminEmail: appValues.String("seed_admin_email"),
		SeedAdminName:  appValues.String("seed_admin_name"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// This is the right place to enforce required fields or invariants that
// involve both the core and app configs.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if _, ok := models.ParseRole(appCfg.FallbackRole); !ok {
		return fmt.Errorf("unknown fallback_role %q", appCfg.FallbackRole)
	}

	switch appCfg.AuthProvider {
	case "dev":
		if coreCfg.Env == "prod" {
			return fmt.Errorf("auth_provider 'dev' is not allowed in prod")
		}
	case "oauth":
		if appCfg.OAuthTokenURL == "" || appCfg.OAuthClientID == "" {
			return fmt.Errorf("auth_provider 'oauth' requires oauth_token_url and oauth_client_id")
		}
	default:
		return fmt.Errorf("unknown auth_provider %q (want 'dev' or 'oauth')", appCfg.AuthProvider)
	}

	return nil
}

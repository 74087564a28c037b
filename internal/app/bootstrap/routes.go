// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	approvalsfeature "github.com/zamanic/numerizam/internal/app/features/approvals"
	"github.com/zamanic/numerizam/internal/app/features/authapi"
	healthfeature "github.com/zamanic/numerizam/internal/app/features/health"
	approvalstore "github.com/zamanic/numerizam/internal/app/store/approvals"
	notificationstore "github.com/zamanic/numerizam/internal/app/store/notifications"
	profilestore "github.com/zamanic/numerizam/internal/app/store/profiles"
	"github.com/zamanic/numerizam/internal/app/system/approval"
	"github.com/zamanic/numerizam/internal/app/system/auth"
	"github.com/zamanic/numerizam/internal/app/system/identity"
	"github.com/zamanic/numerizam/internal/app/system/reconciler"
	"github.com/zamanic/numerizam/internal/domain/models"
)

// BuildHandler constructs the root HTTP handler (router) for this
// WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and any Startup hooks have completed. It builds the stores, the
// identity provider, the session reconciler and the approval engine,
// then mounts the feature routers on a chi router with the session
// middleware applied globally.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	profiles := profilestore.New(deps.MongoDatabase)
	requests := approvalstore.New(deps.MongoDatabase)
	notifications := notificationstore.New(deps.MongoDatabase)

	provider := buildProvider(appCfg, logger)

	fallbackRole, _ := models.ParseRole(appCfg.FallbackRole)
	rec := reconciler.New(profiles, reconciler.Config{
		InitialTimeout:  appCfg.ProfileFetchInitialTimeout,
		EventTimeout:    appCfg.ProfileFetchEventTimeout,
		NotFoundRetries: appCfg.ProfileFetchRetries,
		RetryDelay:      appCfg.ProfileFetchRetryDelay,
		FallbackRole:    fallbackRole,
	}, logger)

	engine := approval.NewEngine(requests, profiles, notifications, logger)

	r := chi.NewRouter()

	// Global auth middleware: loads the reconciled user into context if
	// a valid session cookie is present.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Prometheus metrics.
	r.Handle("/metrics", promhttp.Handler())

	// Authentication API: login, refresh, logout, recover, me.
	authHandler := authapi.NewHandler(provider, rec, sessionMgr, profiles, logger)
	r.Mount("/api/auth", authapi.Routes(authHandler))

	// Role approval workflow and admin notifications.
	approvalsHandler := approvalsfeature.NewHandler(engine, logger)
	r.Mount("/api", approvalsfeature.Routes(approvalsHandler))

	return r, nil
}

// buildProvider selects the identity provider from config. Validation
// has already rejected unknown modes and dev-in-prod.
func buildProvider(appCfg AppConfig, logger *zap.Logger) identity.Provider {
	if appCfg.AuthProvider == "oauth" {
		return identity.NewOAuthProvider(identity.OAuthConfig{
			TokenURL:     appCfg.OAuthTokenURL,
			ClientID:     appCfg.OAuthClientID,
			ClientSecret: appCfg.OAuthClientSecret,
		}, logger)
	}
	logger.Warn("using in-memory dev identity provider")
	return identity.NewDevProvider(appCfg.DevSessionTTL)
}

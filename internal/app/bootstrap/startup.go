// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"

	profilestore "github.com/zamanic/numerizam/internal/app/store/profiles"
	"github.com/zamanic/numerizam/internal/domain/models"
)

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if appCfg.SeedAdminEmail != "" {
		if err := seedAdmin(ctx, appCfg, deps, logger); err != nil {
			return err
		}
	}
	return nil
}

// seedAdmin guarantees an approved admin exists so a fresh deployment
// can review approval requests. An existing profile is promoted; a
// missing one is created.
func seedAdmin(ctx context.Context, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	profiles := profilestore.New(deps.MongoDatabase)

	existing, err := profiles.GetByEmail(ctx, appCfg.SeedAdminEmail)
	switch {
	case err == nil:
		if existing.Role == models.RoleAdmin && existing.IsApproved {
			return nil
		}
		if err := profiles.SetRoleApproved(ctx, existing.ID, models.RoleAdmin, "system"); err != nil {
			return err
		}
		logger.Info("promoted bootstrap admin",
			zap.String("email", appCfg.SeedAdminEmail))
		return nil
	case errors.Is(err, profilestore.ErrNotFound):
		_, err := profiles.Create(ctx, models.UserProfile{
			Email:      appCfg.SeedAdminEmail,
			FullName:   appCfg.SeedAdminName,
			Role:       models.RoleAdmin,
			IsApproved: true,
		})
		if err != nil {
			return err
		}
		logger.Info("created bootstrap admin",
			zap.String("email", appCfg.SeedAdminEmail))
		return nil
	default:
		return err
	}
}

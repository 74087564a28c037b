// internal/app/system/approval/fanout.go
package approval

import (
	"context"

	"go.uber.org/zap"

	"github.com/zamanic/numerizam/internal/app/system/metrics"
	"github.com/zamanic/numerizam/internal/domain/models"
)

// Fanout broadcasts a new approval request to every currently approved
// admin. Delivery is best effort; admin UIs recompute unread counts by
// querying, so a dropped row costs a badge, not correctness.
type Fanout struct {
	profiles      ProfileStore
	notifications NotificationStore
	logger        *zap.Logger
}

// NewFanout builds a Fanout over the given stores.
func NewFanout(profiles ProfileStore, notifications NotificationStore, logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{profiles: profiles, notifications: notifications, logger: logger}
}

// Notify creates one notification per approved admin for the request.
// The admin roster is read at call time; later roster changes do not
// affect already-written rows.
func (f *Fanout) Notify(ctx context.Context, req models.ApprovalRequest) error {
	admins, err := f.profiles.ListByRole(ctx, models.RoleAdmin, true)
	if err != nil {
		metrics.FanoutFailures.Inc()
		return err
	}
	if len(admins) == 0 {
		f.logger.Warn("no approved admins to notify",
			zap.String("request_id", req.ID.Hex()))
		return nil
	}

	batch := make([]models.ApprovalNotification, 0, len(admins))
	for _, a := range admins {
		batch = append(batch, models.ApprovalNotification{
			AdminEmail: a.Email,
			RequestID:  req.ID,
		})
	}

	inserted, err := f.notifications.InsertBatch(ctx, batch)
	if err != nil {
		metrics.FanoutFailures.Inc()
		return err
	}
	if inserted < len(batch) {
		f.logger.Warn("partial notification fanout",
			zap.String("request_id", req.ID.Hex()),
			zap.Int("wanted", len(batch)),
			zap.Int("inserted", inserted))
	}
	return nil
}

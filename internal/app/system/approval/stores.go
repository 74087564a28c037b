// internal/app/system/approval/stores.go
package approval

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zamanic/numerizam/internal/domain/models"
)

// RequestStore is the slice of the approval-request store the engine
// uses. Duplicate pending submissions must surface as
// approvalstore.ErrDuplicatePending and lost review races as
// approvalstore.ErrAlreadyReviewed; both are storage-enforced, not
// checked read-then-write.
type RequestStore interface {
	Insert(ctx context.Context, r models.ApprovalRequest) (models.ApprovalRequest, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.ApprovalRequest, error)
	ListAll(ctx context.Context) ([]models.ApprovalRequest, error)
	ListPending(ctx context.Context) ([]models.ApprovalRequest, error)
	MarkReviewed(ctx context.Context, id primitive.ObjectID, status, adminEmail, notes string) error
}

// ProfileStore is the slice of the profile store the engine and the
// fanout use.
type ProfileStore interface {
	SetRoleApproved(ctx context.Context, id primitive.ObjectID, role models.Role, approvedBy string) error
	ListByRole(ctx context.Context, role models.Role, approvedOnly bool) ([]models.UserProfile, error)
}

// NotificationStore is the slice of the notification store the engine
// and the fanout use.
type NotificationStore interface {
	InsertBatch(ctx context.Context, batch []models.ApprovalNotification) (int, error)
	ListForAdmin(ctx context.Context, adminEmail string) ([]models.ApprovalNotification, error)
	UnreadCount(ctx context.Context, adminEmail string) (int64, error)
	MarkRead(ctx context.Context, adminEmail string, requestIDs ...primitive.ObjectID) error
	MarkReadByRequest(ctx context.Context, requestID primitive.ObjectID) error
}

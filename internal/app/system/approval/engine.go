// internal/app/system/approval/engine.go

// Package approval runs the role-upgrade workflow: submission, admin
// review, and the one-way pending -> approved|rejected transition.
// Concurrency safety is delegated to the storage layer (a partial
// unique index for duplicate submissions, a conditional update for
// racing reviewers); the engine sequences its mutations so a partial
// failure leaves the meaningful state correct.
package approval

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	approvalstore "github.com/zamanic/numerizam/internal/app/store/approvals"
	"github.com/zamanic/numerizam/internal/app/system/htmlsanitize"
	"github.com/zamanic/numerizam/internal/app/system/metrics"
	"github.com/zamanic/numerizam/internal/app/system/normalize"
	"github.com/zamanic/numerizam/internal/domain/models"
)

var (
	// ErrInvalidRole is returned when the requested role is not one of
	// the known roles.
	ErrInvalidRole = errors.New("approval: invalid requested role")

	// ErrMissingJustification is returned when a submission has no
	// business justification after sanitization.
	ErrMissingJustification = errors.New("approval: business justification is required")
)

// Engine coordinates the approval workflow against shared storage.
type Engine struct {
	requests      RequestStore
	profiles      ProfileStore
	notifications NotificationStore
	fanout        *Fanout
	logger        *zap.Logger
}

// NewEngine builds an Engine over the given stores.
func NewEngine(requests RequestStore, profiles ProfileStore, notifications NotificationStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		requests:      requests,
		profiles:      profiles,
		notifications: notifications,
		fanout:        NewFanout(profiles, notifications, logger),
		logger:        logger,
	}
}

// SubmitInput carries one role-upgrade submission. The identity fields
// are snapshotted into the request so the audit trail survives later
// profile edits.
type SubmitInput struct {
	UserID      primitive.ObjectID
	Email       string
	FullName    string
	CompanyName string

	RequestedRole         models.Role
	BusinessJustification string
	Experience            string
	AdditionalInfo        string
}

// Submit creates a pending request and fans out admin notifications.
// At most one pending request may exist per user; the storage
// constraint decides the winner of a concurrent double submission and
// the loser gets approvalstore.ErrDuplicatePending. A notification
// failure never fails the submission.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (models.ApprovalRequest, error) {
	role, ok := models.ParseRole(string(in.RequestedRole))
	if !ok {
		return models.ApprovalRequest{}, ErrInvalidRole
	}

	justification := htmlsanitize.Strict(in.BusinessJustification)
	if justification == "" {
		return models.ApprovalRequest{}, ErrMissingJustification
	}

	req, err := e.requests.Insert(ctx, models.ApprovalRequest{
		UserID:                in.UserID,
		Email:                 normalize.Email(in.Email),
		FullName:              normalize.Name(in.FullName),
		CompanyName:           htmlsanitize.Strict(in.CompanyName),
		RequestedRole:         role,
		BusinessJustification: justification,
		Experience:            htmlsanitize.Strict(in.Experience),
		AdditionalInfo:        htmlsanitize.Strict(in.AdditionalInfo),
	})
	if err != nil {
		return models.ApprovalRequest{}, err
	}

	if err := e.fanout.Notify(ctx, req); err != nil {
		e.logger.Warn("admin notification fanout failed",
			zap.String("request_id", req.ID.Hex()),
			zap.Error(err))
	}
	return req, nil
}

// Approve grants the requested role and closes the request.
//
// The profile mutation runs first: the role grant is the meaningful
// state and the request status only an audit marker, so a crash
// between the two leaves the user correctly upgraded rather than
// approved-on-paper-only. When two approvers race, both may write the
// profile (last writer wins, both writes grant the same role) but the
// conditional status update commits exactly once; the loser gets
// approvalstore.ErrAlreadyReviewed.
func (e *Engine) Approve(ctx context.Context, id primitive.ObjectID, adminEmail, notes string) error {
	req, err := e.requests.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if req.Terminal() {
		return approvalstore.ErrAlreadyReviewed
	}

	if err := e.profiles.SetRoleApproved(ctx, req.UserID, req.RequestedRole, adminEmail); err != nil {
		return err
	}

	if err := e.requests.MarkReviewed(ctx, id, models.RequestApproved, adminEmail, htmlsanitize.Strict(notes)); err != nil {
		return err
	}
	metrics.ApprovalDecisions.WithLabelValues(models.RequestApproved).Inc()

	// Best effort: a reviewed request should stop counting as unread
	// for every admin. Failure does not roll back the approval.
	if err := e.notifications.MarkReadByRequest(ctx, id); err != nil {
		e.logger.Warn("failed to mark notifications read after approval",
			zap.String("request_id", id.Hex()),
			zap.Error(err))
	}
	return nil
}

// Reject closes the request without touching the profile. Idempotent
// under retry: a second call observes the terminal status and gets
// approvalstore.ErrAlreadyReviewed.
func (e *Engine) Reject(ctx context.Context, id primitive.ObjectID, adminEmail, notes string) error {
	if err := e.requests.MarkReviewed(ctx, id, models.RequestRejected, adminEmail, htmlsanitize.Strict(notes)); err != nil {
		return err
	}
	metrics.ApprovalDecisions.WithLabelValues(models.RequestRejected).Inc()

	if err := e.notifications.MarkReadByRequest(ctx, id); err != nil {
		e.logger.Warn("failed to mark notifications read after rejection",
			zap.String("request_id", id.Hex()),
			zap.Error(err))
	}
	return nil
}

// ListAll returns every request, newest first.
func (e *Engine) ListAll(ctx context.Context) ([]models.ApprovalRequest, error) {
	return e.requests.ListAll(ctx)
}

// ListPending returns requests awaiting review, newest first.
func (e *Engine) ListPending(ctx context.Context) ([]models.ApprovalRequest, error) {
	return e.requests.ListPending(ctx)
}

// GetNotifications returns the admin's notifications, newest first.
func (e *Engine) GetNotifications(ctx context.Context, adminEmail string) ([]models.ApprovalNotification, error) {
	return e.notifications.ListForAdmin(ctx, adminEmail)
}

// GetUnreadCount counts the admin's unread notifications.
func (e *Engine) GetUnreadCount(ctx context.Context, adminEmail string) (int64, error) {
	return e.notifications.UnreadCount(ctx, adminEmail)
}

// MarkRead marks the admin's notifications read, optionally scoped to
// specific requests.
func (e *Engine) MarkRead(ctx context.Context, adminEmail string, requestIDs ...primitive.ObjectID) error {
	return e.notifications.MarkRead(ctx, adminEmail, requestIDs...)
}

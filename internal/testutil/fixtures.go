package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zamanic/numerizam/internal/domain/models"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateProfile inserts a profile with the given email and role.
func (f *Fixtures) CreateProfile(ctx context.Context, email string, role models.Role, approved bool) models.UserProfile {
	f.t.Helper()

	now := time.Now().UTC()
	name := "Test " + string(role)
	p := models.UserProfile{
		ID:         primitive.NewObjectID(),
		Email:      email,
		FullName:   name,
		FullNameCI: text.Fold(name),
		Role:       role,
		IsApproved: approved,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("user_profiles").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test profile: %v", err)
	}
	return p
}

// CreateAdmin inserts an approved admin profile.
func (f *Fixtures) CreateAdmin(ctx context.Context, email string) models.UserProfile {
	f.t.Helper()
	return f.CreateProfile(ctx, email, models.RoleAdmin, true)
}

// CreatePendingRequest inserts a pending approval request for the user.
func (f *Fixtures) CreatePendingRequest(ctx context.Context, user models.UserProfile, requested models.Role) models.ApprovalRequest {
	f.t.Helper()

	now := time.Now().UTC()
	r := models.ApprovalRequest{
		ID:                    primitive.NewObjectID(),
		UserID:                user.ID,
		Email:                 user.Email,
		FullName:              user.FullName,
		RequestedRole:         requested,
		BusinessJustification: "test justification",
		Status:                models.RequestPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if _, err := f.db.Collection("approval_requests").InsertOne(ctx, r); err != nil {
		f.t.Fatalf("failed to create test approval request: %v", err)
	}
	return r
}

// CreateNotification inserts a notification row for the admin.
func (f *Fixtures) CreateNotification(ctx context.Context, adminEmail string, requestID primitive.ObjectID) models.ApprovalNotification {
	f.t.Helper()

	n := models.ApprovalNotification{
		ID:         primitive.NewObjectID(),
		AdminEmail: adminEmail,
		RequestID:  requestID,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := f.db.Collection("approval_notifications").InsertOne(ctx, n); err != nil {
		f.t.Fatalf("failed to create test notification: %v", err)
	}
	return n
}

package approvalstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zamanic/numerizam/internal/app/system/normalize"
	"github.com/zamanic/numerizam/internal/domain/models"
)

var (
	// ErrNotFound is returned when no request matches the id.
	ErrNotFound = errors.New("approval request not found")

	// ErrDuplicatePending is returned when the user already has a
	// pending request. Enforced by a partial unique index, not by a
	// read-then-write check.
	ErrDuplicatePending = errors.New("a pending approval request already exists for this user")

	// ErrAlreadyReviewed is returned when a decision targets a request
	// another reviewer already transitioned out of pending.
	ErrAlreadyReviewed = errors.New("approval request has already been reviewed")

	errBadStatus = errors.New(`decision status must be "approved"|"rejected"`)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("approval_requests")}
}

// Insert creates a new pending request. The partial unique index on
// user_id (status=pending) makes two concurrent submissions for the
// same user impossible; the loser gets ErrDuplicatePending.
func (s *Store) Insert(ctx context.Context, r models.ApprovalRequest) (models.ApprovalRequest, error) {
	r.ID = primitive.NewObjectID()
	r.Email = normalize.Email(r.Email)
	r.FullName = normalize.Name(r.FullName)
	r.Status = models.RequestPending
	r.AdminNotes = ""
	r.ReviewedBy = ""
	r.ReviewedAt = nil

	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, r); err != nil {
		if wafflemongo.IsDup(err) {
			return models.ApprovalRequest{}, ErrDuplicatePending
		}
		return models.ApprovalRequest{}, err
	}
	return r, nil
}

// GetByID loads a request by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.ApprovalRequest, error) {
	var r models.ApprovalRequest
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// ListAll returns every request, newest first.
func (s *Store) ListAll(ctx context.Context) ([]models.ApprovalRequest, error) {
	return s.list(ctx, bson.M{})
}

// ListPending returns requests still awaiting review, newest first.
func (s *Store) ListPending(ctx context.Context) ([]models.ApprovalRequest, error) {
	return s.list(ctx, bson.M{"status": models.RequestPending})
}

// PendingForUser returns the user's pending request, if any.
func (s *Store) PendingForUser(ctx context.Context, userID primitive.ObjectID) (*models.ApprovalRequest, error) {
	var r models.ApprovalRequest
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "status": models.RequestPending}).Decode(&r)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// MarkReviewed transitions a pending request to the terminal status via
// a conditional update keyed on status=pending. When two reviewers
// race, exactly one update matches; the other gets ErrAlreadyReviewed.
func (s *Store) MarkReviewed(ctx context.Context, id primitive.ObjectID, status, adminEmail, notes string) error {
	if status != models.RequestApproved && status != models.RequestRejected {
		return errBadStatus
	}

	now := time.Now()
	set := bson.M{
		"status":      status,
		"admin_notes": notes,
		"reviewed_by": normalize.Email(adminEmail),
		"reviewed_at": now,
		"updated_at":  now,
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.RequestPending},
		bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Distinguish a lost race from a bad id.
		if err := s.c.FindOne(ctx, bson.M{"_id": id}).Err(); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return ErrNotFound
			}
			return err
		}
		return ErrAlreadyReviewed
	}
	return nil
}

func (s *Store) list(ctx context.Context, filter bson.M) ([]models.ApprovalRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ApprovalRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

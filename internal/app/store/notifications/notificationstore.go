package notificationstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zamanic/numerizam/internal/app/system/normalize"
	"github.com/zamanic/numerizam/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("approval_notifications")}
}

// InsertBatch inserts the batch unordered so one bad row does not sink
// the rest. Returns how many rows were written; a bulk write error with
// partial success is not treated as a failure.
func (s *Store) InsertBatch(ctx context.Context, batch []models.ApprovalNotification) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, 0, len(batch))
	now := time.Now()
	for _, n := range batch {
		n.ID = primitive.NewObjectID()
		n.AdminEmail = normalize.Email(n.AdminEmail)
		n.IsRead = false
		n.CreatedAt = now
		docs = append(docs, n)
	}

	res, err := s.c.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	inserted := 0
	if res != nil {
		inserted = len(res.InsertedIDs)
	}
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) && inserted > 0 {
			return inserted, nil
		}
		return inserted, err
	}
	return inserted, nil
}

// ListForAdmin returns the admin's notifications, newest first.
func (s *Store) ListForAdmin(ctx context.Context, adminEmail string) ([]models.ApprovalNotification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"admin_email": normalize.Email(adminEmail)}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ApprovalNotification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadCount counts the admin's unread notifications.
func (s *Store) UnreadCount(ctx context.Context, adminEmail string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"admin_email": normalize.Email(adminEmail),
		"is_read":     false,
	})
}

// MarkRead flips is_read for the admin's notifications. With request
// ids given, only notifications for those requests are touched;
// otherwise everything unread for the admin is marked.
func (s *Store) MarkRead(ctx context.Context, adminEmail string, requestIDs ...primitive.ObjectID) error {
	filter := bson.M{
		"admin_email": normalize.Email(adminEmail),
		"is_read":     false,
	}
	if len(requestIDs) > 0 {
		filter["request_id"] = bson.M{"$in": requestIDs}
	}
	_, err := s.c.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"is_read": true}})
	return err
}

// MarkReadByRequest marks every admin's notifications for one request
// read. Used after a decision so reviewed requests stop counting as
// unread anywhere.
func (s *Store) MarkReadByRequest(ctx context.Context, requestID primitive.ObjectID) error {
	_, err := s.c.UpdateMany(ctx,
		bson.M{"request_id": requestID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}})
	return err
}

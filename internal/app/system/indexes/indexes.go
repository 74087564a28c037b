// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/zamanic/numerizam/internal/domain/models"
)

// EnsureAll is called at startup. Each ensure* function is idempotent.
// Errors are aggregated so every problem is visible and startup can
// fail fast.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureProfiles(ctx, db); err != nil {
		problems = append(problems, "user_profiles: "+err.Error())
	}
	if err := ensureApprovalRequests(ctx, db); err != nil {
		problems = append(problems, "approval_requests: "+err.Error())
	}
	if err := ensureNotifications(ctx, db); err != nil {
		problems = append(problems, "approval_notifications: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameUnique(a, b *bool) bool {
	av, bv := false, false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// ensureIndexSet reconciles the desired indexes for one collection.
// An existing index with the same keys and uniqueness is reused; a
// mismatch is dropped and recreated under the desired name.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, desired []mongo.IndexModel) error {
	var errs []string

	for _, m := range desired {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			desiredUnique = m.Options.Unique
		}
		desiredSig := keySig(m.Keys.(bson.D))
		start := time.Now()

		existing := map[string]existingIndex{}
		cur, err := coll.Indexes().List(ctx)
		if err == nil {
			for cur.Next(ctx) {
				var idx existingIndex
				if err := cur.Decode(&idx); err != nil {
					continue
				}
				existing[keySig(idx.Key)] = idx
			}
			cur.Close(ctx)
		}

		if ex, ok := existing[desiredSig]; ok {
			if sameUnique(desiredUnique, ex.Unique) && (desiredName == "" || ex.Name == desiredName) {
				zap.L().Info("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig))
				continue
			}
			// Name or options mismatch: drop and recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && desiredUnique != nil && *desiredUnique {
				errs = append(errs, fmt.Sprintf(
					"%s(%s): cannot create unique index, duplicates present", coll.Name(), desiredName))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			}
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func ensureProfiles(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("user_profiles")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Email is the lookup key used by session reconciliation and
		// must be unique.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_profiles_email"),
		},
		// Admin roster scans for the notification fanout.
		{
			Keys: bson.D{
				{Key: "role", Value: 1},
				{Key: "is_approved", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_profiles_role_approved_created"),
		},
		{
			Keys:    bson.D{{Key: "auth_subject_id", Value: 1}},
			Options: options.Index().SetName("idx_profiles_subject"),
		},
	})
}

func ensureApprovalRequests(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("approval_requests")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// At most one pending request per user. The partial filter
		// scopes uniqueness to status=pending so reviewed requests
		// keep their history.
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_requests_pending_user").
				SetPartialFilterExpression(bson.D{
					{Key: "status", Value: models.RequestPending},
				}),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_requests_status_created"),
		},
	})
}

func ensureNotifications(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("approval_notifications")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Unread-count and listing queries for one admin.
		{
			Keys: bson.D{
				{Key: "admin_email", Value: 1},
				{Key: "is_read", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_notifications_admin_read_created"),
		},
		// Mark-read-by-request after a decision.
		{
			Keys:    bson.D{{Key: "request_id", Value: 1}},
			Options: options.Index().SetName("idx_notifications_request"),
		},
	})
}

// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ApprovalNotification tells one admin about one new approval request.
// A batch is created at submission time, one row per approved admin;
// the only later mutation is flipping IsRead.
type ApprovalNotification struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AdminEmail string             `bson:"admin_email" json:"admin_email"`
	RequestID  primitive.ObjectID `bson:"request_id" json:"request_id"`
	IsRead     bool               `bson:"is_read" json:"is_read"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// internal/domain/models/approvalrequest.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Approval request statuses. pending is the only non-terminal state;
// once a request is approved or rejected it never transitions again.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// ApprovalRequest is a user's request to be granted a new role.
// The requester identity fields are a snapshot taken at submission
// time so the audit trail survives later profile edits.
type ApprovalRequest struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`

	// Requester snapshot
	Email       string `bson:"email" json:"email"`
	FullName    string `bson:"full_name" json:"full_name"`
	CompanyName string `bson:"company_name,omitempty" json:"company_name,omitempty"`

	RequestedRole         Role   `bson:"requested_role" json:"requested_role"`
	BusinessJustification string `bson:"business_justification" json:"business_justification"`
	Experience            string `bson:"experience,omitempty" json:"experience,omitempty"`
	AdditionalInfo        string `bson:"additional_info,omitempty" json:"additional_info,omitempty"`

	Status     string     `bson:"status" json:"status"` // pending | approved | rejected
	AdminNotes string     `bson:"admin_notes,omitempty" json:"admin_notes,omitempty"`
	ReviewedBy string     `bson:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Terminal reports whether the request has been reviewed.
func (r *ApprovalRequest) Terminal() bool {
	return r.Status == RequestApproved || r.Status == RequestRejected
}

// internal/domain/models/profile.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserProfile is the durable, authorization-bearing record for one user.
//
// NOTE:
//   - AuthSubjectID stays nil until the external identity provider's
//     subject is linked on first sign-in.
//   - Role and IsApproved are mutated only by approval-workflow
//     decisions or explicit admin edits.
type UserProfile struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AuthSubjectID *string            `bson:"auth_subject_id,omitempty" json:"auth_subject_id,omitempty"`
	Email         string             `bson:"email" json:"email"`
	FullName      string             `bson:"full_name" json:"full_name"`
	FullNameCI    string             `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped
	CompanyName   string             `bson:"company_name,omitempty" json:"company_name,omitempty"`
	Role          Role               `bson:"role" json:"role"`
	IsApproved    bool               `bson:"is_approved" json:"is_approved"`

	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updated_at"`
	ApprovedAt *time.Time `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	ApprovedBy string     `bson:"approved_by,omitempty" json:"approved_by,omitempty"`
}

package profilestore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zamanic/numerizam/internal/app/system/normalize"
	"github.com/zamanic/numerizam/internal/domain/models"
)

var (
	// ErrNotFound is returned when no profile matches the lookup.
	ErrNotFound = errors.New("profile not found")
	// ErrDuplicateEmail is returned when a profile with this email already exists.
	ErrDuplicateEmail = errors.New("a profile with this email already exists")

	errBadRole = errors.New(`role must be "admin"|"accountant"|"viewer"|"auditor"|"investor"`)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("user_profiles")}
}

// GetByID loads a profile by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByEmail looks up a profile by normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a new profile after normalizing and validating fields.
// New profiles start unapproved unless the caller says otherwise.
func (s *Store) Create(ctx context.Context, p models.UserProfile) (models.UserProfile, error) {
	p.ID = primitive.NewObjectID()
	p.FullName = normalize.Name(p.FullName)
	p.FullNameCI = text.Fold(p.FullName)
	p.Email = normalize.Email(p.Email)

	if !p.Role.Valid() {
		return models.UserProfile{}, errBadRole
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.UserProfile{}, ErrDuplicateEmail
		}
		return models.UserProfile{}, err
	}
	return p, nil
}

// ProfileUpdate holds the admin-editable profile fields.
type ProfileUpdate struct {
	FullName    string
	Email       string
	CompanyName string
}

// Update rewrites the admin-editable fields.
// Returns ErrDuplicateEmail if the email belongs to another profile.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) error {
	set := bson.M{
		"full_name":    normalize.Name(upd.FullName),
		"full_name_ci": text.Fold(upd.FullName),
		"email":        normalize.Email(upd.Email),
		"company_name": upd.CompanyName,
		"updated_at":   time.Now(),
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRoleApproved grants the role and flips the approval flag. This is
// the authoritative mutation behind an approval decision; last writer
// wins if two approvals race.
func (s *Store) SetRoleApproved(ctx context.Context, id primitive.ObjectID, role models.Role, approvedBy string) error {
	if !role.Valid() {
		return errBadRole
	}
	now := time.Now()
	set := bson.M{
		"role":        role,
		"is_approved": true,
		"approved_at": now,
		"approved_by": normalize.Email(approvedBy),
		"updated_at":  now,
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkSubject records the identity provider's subject id the first time
// the user signs in. A profile already linked to a different subject is
// left alone.
func (s *Store) LinkSubject(ctx context.Context, id primitive.ObjectID, subjectID string) error {
	filter := bson.M{
		"_id": id,
		"$or": []bson.M{
			{"auth_subject_id": nil},
			{"auth_subject_id": subjectID},
		},
	}
	set := bson.M{"auth_subject_id": subjectID, "updated_at": time.Now()}
	_, err := s.c.UpdateOne(ctx, filter, bson.M{"$set": set})
	return err
}

// ListByRole returns profiles holding the role, newest first.
// With approvedOnly set, unapproved profiles are excluded.
func (s *Store) ListByRole(ctx context.Context, role models.Role, approvedOnly bool) ([]models.UserProfile, error) {
	filter := bson.M{"role": role}
	if approvedOnly {
		filter["is_approved"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.UserProfile
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteUnapproved removes a profile only while it is still unapproved.
// Approved profiles are never deleted. Returns the number deleted (0 or 1).
func (s *Store) DeleteUnapproved(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "is_approved": false})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

package profilestore_test

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	profilestore "github.com/zamanic/numerizam/internal/app/store/profiles"
	"github.com/zamanic/numerizam/internal/app/system/indexes"
	"github.com/zamanic/numerizam/internal/domain/models"
	"github.com/zamanic/numerizam/internal/testutil"
)

func setup(t *testing.T) *profilestore.Store {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	return profilestore.New(db)
}

func TestCreateAndGetByEmail(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.UserProfile{
		Email:    "Casey@Example.com",
		FullName: "  Casey Jordan  ",
		Role:     models.RoleViewer,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Email != "casey@example.com" {
		t.Errorf("email should be normalized, got %q", created.Email)
	}
	if created.FullName != "Casey Jordan" {
		t.Errorf("name should be trimmed, got %q", created.FullName)
	}
	if created.IsApproved {
		t.Error("new profiles start unapproved")
	}

	got, err := store.GetByEmail(ctx, "CASEY@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("expected profile %s, got %s", created.ID.Hex(), got.ID.Hex())
	}
}

func TestGetByEmail_NotFound(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByEmail(ctx, "nobody@example.com")
	if !errors.Is(err, profilestore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p := models.UserProfile{Email: "casey@example.com", FullName: "Casey", Role: models.RoleViewer}
	if _, err := store.Create(ctx, p); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	if _, err := store.Create(ctx, p); !errors.Is(err, profilestore.ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestCreate_InvalidRole(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, models.UserProfile{Email: "x@example.com", FullName: "X", Role: "wizard"})
	if err == nil {
		t.Error("expected an error for an unknown role")
	}
}

func TestSetRoleApproved(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.UserProfile{
		Email: "casey@example.com", FullName: "Casey", Role: models.RoleViewer,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.SetRoleApproved(ctx, created.ID, models.RoleAccountant, "Admin@Example.com"); err != nil {
		t.Fatalf("SetRoleApproved failed: %v", err)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Role != models.RoleAccountant {
		t.Errorf("expected role accountant, got %q", got.Role)
	}
	if !got.IsApproved {
		t.Error("profile should be approved")
	}
	if got.ApprovedBy != "admin@example.com" {
		t.Errorf("approver email should be normalized, got %q", got.ApprovedBy)
	}
	if got.ApprovedAt == nil {
		t.Error("approved_at should be set")
	}
}

func TestSetRoleApproved_UnknownProfile(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := store.SetRoleApproved(ctx, primitive.NewObjectID(), models.RoleViewer, "admin@example.com")
	if !errors.Is(err, profilestore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListByRole(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mk := func(email string, role models.Role, approved bool) {
		created, err := store.Create(ctx, models.UserProfile{Email: email, FullName: "T", Role: role})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if approved {
			if err := store.SetRoleApproved(ctx, created.ID, role, "admin@example.com"); err != nil {
				t.Fatalf("SetRoleApproved failed: %v", err)
			}
		}
	}
	mk("a1@example.com", models.RoleAdmin, true)
	mk("a2@example.com", models.RoleAdmin, false)
	mk("v1@example.com", models.RoleViewer, true)

	all, err := store.ListByRole(ctx, models.RoleAdmin, false)
	if err != nil {
		t.Fatalf("ListByRole failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 admins, got %d", len(all))
	}

	approved, err := store.ListByRole(ctx, models.RoleAdmin, true)
	if err != nil {
		t.Fatalf("ListByRole(approvedOnly) failed: %v", err)
	}
	if len(approved) != 1 || approved[0].Email != "a1@example.com" {
		t.Errorf("expected only a1 approved, got %+v", approved)
	}
}

func TestLinkSubject(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.UserProfile{Email: "casey@example.com", FullName: "Casey", Role: models.RoleViewer})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.LinkSubject(ctx, created.ID, "sub-1"); err != nil {
		t.Fatalf("LinkSubject failed: %v", err)
	}
	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.AuthSubjectID == nil || *got.AuthSubjectID != "sub-1" {
		t.Errorf("expected linked subject sub-1, got %v", got.AuthSubjectID)
	}

	// A different subject must not overwrite the link.
	if err := store.LinkSubject(ctx, created.ID, "sub-2"); err != nil {
		t.Fatalf("LinkSubject (second) failed: %v", err)
	}
	got, _ = store.GetByID(ctx, created.ID)
	if got.AuthSubjectID == nil || *got.AuthSubjectID != "sub-1" {
		t.Errorf("link should be immutable once set, got %v", got.AuthSubjectID)
	}
}

func TestDeleteUnapproved(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.UserProfile{Email: "casey@example.com", FullName: "Casey", Role: models.RoleViewer})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	n, err := store.DeleteUnapproved(ctx, created.ID)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 deletion, got n=%d err=%v", n, err)
	}

	// Approved profiles are immune.
	approvedProfile, err := store.Create(ctx, models.UserProfile{Email: "keep@example.com", FullName: "Keep", Role: models.RoleViewer})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.SetRoleApproved(ctx, approvedProfile.ID, models.RoleViewer, "admin@example.com"); err != nil {
		t.Fatalf("SetRoleApproved failed: %v", err)
	}
	n, err = store.DeleteUnapproved(ctx, approvedProfile.ID)
	if err != nil || n != 0 {
		t.Errorf("approved profile must not be deleted, got n=%d err=%v", n, err)
	}
}

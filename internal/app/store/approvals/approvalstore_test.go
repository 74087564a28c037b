package approvalstore_test

import (
	"errors"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	approvalstore "github.com/zamanic/numerizam/internal/app/store/approvals"
	"github.com/zamanic/numerizam/internal/app/system/indexes"
	"github.com/zamanic/numerizam/internal/domain/models"
	"github.com/zamanic/numerizam/internal/testutil"
)

func setup(t *testing.T) *approvalstore.Store {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	return approvalstore.New(db)
}

func pendingRequest(userID primitive.ObjectID) models.ApprovalRequest {
	return models.ApprovalRequest{
		UserID:                userID,
		Email:                 "casey@example.com",
		FullName:              "Casey Jordan",
		RequestedRole:         models.RoleAccountant,
		BusinessJustification: "Quarterly close work.",
	}
}

func TestInsertAndGet(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Insert(ctx, pendingRequest(primitive.NewObjectID()))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if created.Status != models.RequestPending {
		t.Errorf("expected pending, got %q", created.Status)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.RequestedRole != models.RoleAccountant {
		t.Errorf("expected requested role accountant, got %q", got.RequestedRole)
	}
}

// The partial unique index admits only one pending request per user.
func TestInsert_DuplicatePending(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	if _, err := store.Insert(ctx, pendingRequest(userID)); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}
	if _, err := store.Insert(ctx, pendingRequest(userID)); !errors.Is(err, approvalstore.ErrDuplicatePending) {
		t.Errorf("expected ErrDuplicatePending, got %v", err)
	}

	// A different user is unaffected.
	if _, err := store.Insert(ctx, pendingRequest(primitive.NewObjectID())); err != nil {
		t.Errorf("other user's Insert should succeed, got %v", err)
	}
}

func TestInsert_AllowedAfterReview(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	created, err := store.Insert(ctx, pendingRequest(userID))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.MarkReviewed(ctx, created.ID, models.RequestRejected, "admin@example.com", ""); err != nil {
		t.Fatalf("MarkReviewed failed: %v", err)
	}

	if _, err := store.Insert(ctx, pendingRequest(userID)); err != nil {
		t.Errorf("insert after review should succeed, got %v", err)
	}
}

func TestMarkReviewed(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Insert(ctx, pendingRequest(primitive.NewObjectID()))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.MarkReviewed(ctx, created.ID, models.RequestApproved, "Admin@Example.com", "ok"); err != nil {
		t.Fatalf("MarkReviewed failed: %v", err)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.RequestApproved {
		t.Errorf("expected approved, got %q", got.Status)
	}
	if got.ReviewedBy != "admin@example.com" {
		t.Errorf("reviewer email should be normalized, got %q", got.ReviewedBy)
	}
	if got.ReviewedAt == nil {
		t.Error("reviewed_at should be set")
	}
	if !got.Terminal() {
		t.Error("reviewed request should be terminal")
	}
}

func TestMarkReviewed_AlreadyReviewed(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Insert(ctx, pendingRequest(primitive.NewObjectID()))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.MarkReviewed(ctx, created.ID, models.RequestApproved, "a@example.com", ""); err != nil {
		t.Fatalf("first MarkReviewed failed: %v", err)
	}

	err = store.MarkReviewed(ctx, created.ID, models.RequestRejected, "b@example.com", "")
	if !errors.Is(err, approvalstore.ErrAlreadyReviewed) {
		t.Errorf("expected ErrAlreadyReviewed, got %v", err)
	}

	// The first decision stands.
	got, _ := store.GetByID(ctx, created.ID)
	if got.Status != models.RequestApproved || got.ReviewedBy != "a@example.com" {
		t.Errorf("decision should be immutable, got %+v", got)
	}
}

func TestMarkReviewed_UnknownID(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := store.MarkReviewed(ctx, primitive.NewObjectID(), models.RequestApproved, "a@example.com", "")
	if !errors.Is(err, approvalstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// Concurrent decisions on the same request: exactly one commits.
func TestMarkReviewed_ConcurrentOneWins(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Insert(ctx, pendingRequest(primitive.NewObjectID()))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, admin := range []string{"a@example.com", "b@example.com"} {
		wg.Add(1)
		go func(admin string) {
			defer wg.Done()
			errs <- store.MarkReviewed(ctx, created.ID, models.RequestApproved, admin, "")
		}(admin)
	}
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, approvalstore.ErrAlreadyReviewed):
			losses++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Errorf("expected one winner and one loser, got wins=%d losses=%d", wins, losses)
	}
}

func TestListPending(t *testing.T) {
	store := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	first, err := store.Insert(ctx, pendingRequest(primitive.NewObjectID()))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := store.Insert(ctx, pendingRequest(primitive.NewObjectID())); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.MarkReviewed(ctx, first.ID, models.RequestRejected, "a@example.com", ""); err != nil {
		t.Fatalf("MarkReviewed failed: %v", err)
	}

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("expected 1 pending request, got %d", len(pending))
	}

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 requests, got %d", len(all))
	}
}

package bootstrap

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/zamanic/numerizam/internal/domain/models"
	"github.com/zamanic/numerizam/internal/testutil"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestSeedAdmin_CreatesNew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{MongoDatabase: db}
	appCfg := AppConfig{SeedAdminEmail: "admin@test.com", SeedAdminName: "Administrator"}

	if err := seedAdmin(ctx, appCfg, deps, testLogger()); err != nil {
		t.Fatalf("seedAdmin failed: %v", err)
	}

	var profile models.UserProfile
	err := db.Collection("user_profiles").FindOne(ctx, bson.M{"email": "admin@test.com"}).Decode(&profile)
	if err != nil {
		t.Fatalf("failed to find created profile: %v", err)
	}
	if profile.Role != models.RoleAdmin {
		t.Errorf("expected role admin, got %q", profile.Role)
	}
	if !profile.IsApproved {
		t.Error("expected bootstrap admin to be approved")
	}
}

func TestSeedAdmin_PromotesExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	existing := fx.CreateProfile(ctx, "existing@test.com", models.RoleViewer, false)

	deps := DBDeps{MongoDatabase: db}
	appCfg := AppConfig{SeedAdminEmail: "existing@test.com"}

	if err := seedAdmin(ctx, appCfg, deps, testLogger()); err != nil {
		t.Fatalf("seedAdmin failed: %v", err)
	}

	var profile models.UserProfile
	err := db.Collection("user_profiles").FindOne(ctx, bson.M{"_id": existing.ID}).Decode(&profile)
	if err != nil {
		t.Fatalf("failed to find profile: %v", err)
	}
	if profile.Role != models.RoleAdmin || !profile.IsApproved {
		t.Errorf("expected promotion to approved admin, got role=%q approved=%v",
			profile.Role, profile.IsApproved)
	}
}

func TestSeedAdmin_AlreadyAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, db)
	existing := fx.CreateAdmin(ctx, "admin@test.com")

	var before models.UserProfile
	if err := db.Collection("user_profiles").FindOne(ctx, bson.M{"_id": existing.ID}).Decode(&before); err != nil {
		t.Fatalf("failed to load profile: %v", err)
	}

	deps := DBDeps{MongoDatabase: db}
	appCfg := AppConfig{SeedAdminEmail: "admin@test.com"}

	if err := seedAdmin(ctx, appCfg, deps, testLogger()); err != nil {
		t.Fatalf("seedAdmin failed: %v", err)
	}

	var after models.UserProfile
	if err := db.Collection("user_profiles").FindOne(ctx, bson.M{"_id": existing.ID}).Decode(&after); err != nil {
		t.Fatalf("failed to load profile: %v", err)
	}
	if !after.UpdatedAt.Truncate(time.Millisecond).Equal(before.UpdatedAt.Truncate(time.Millisecond)) {
		t.Error("expected no write for an already-approved admin")
	}
}

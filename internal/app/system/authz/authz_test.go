package authz_test

import (
	"testing"

	"github.com/zamanic/numerizam/internal/app/system/authz"
	"github.com/zamanic/numerizam/internal/app/system/reconciler"
	"github.com/zamanic/numerizam/internal/domain/models"
)

func user(role models.Role, approved bool) *reconciler.User {
	return &reconciler.User{
		Profile: models.UserProfile{
			Email:      "casey@example.com",
			Role:       role,
			IsApproved: approved,
		},
	}
}

func TestAllow_NilUserDenied(t *testing.T) {
	if authz.Allow(nil) {
		t.Error("nil user must be denied")
	}
	if authz.Allow(nil, models.RoleViewer) {
		t.Error("nil user must be denied regardless of required roles")
	}
}

func TestAllow_UnapprovedDenied(t *testing.T) {
	u := user(models.RoleAdmin, false)
	if authz.Allow(u) {
		t.Error("unapproved user must be denied even with no required roles")
	}
	if authz.Allow(u, models.RoleAdmin) {
		t.Error("unapproved admin must be denied")
	}
}

func TestAllow_EmptyRequirementAdmitsAnyApproved(t *testing.T) {
	for _, role := range models.AllRoles {
		if !authz.Allow(user(role, true)) {
			t.Errorf("approved %s should pass an empty requirement", role)
		}
	}
}

func TestAllow_RoleMatching(t *testing.T) {
	tests := []struct {
		name     string
		role     models.Role
		required []models.Role
		want     bool
	}{
		{"exact match", models.RoleAdmin, []models.Role{models.RoleAdmin}, true},
		{"mismatch", models.RoleViewer, []models.Role{models.RoleAdmin}, false},
		{"in set", models.RoleAuditor, []models.Role{models.RoleAdmin, models.RoleAuditor}, true},
		{"not in set", models.RoleInvestor, []models.Role{models.RoleAdmin, models.RoleAccountant}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := authz.Allow(user(tt.role, true), tt.required...); got != tt.want {
				t.Errorf("Allow(%s, %v) = %v, want %v", tt.role, tt.required, got, tt.want)
			}
		})
	}
}

// The degraded fallback carries the accountant role and an approval
// flag, so it passes accountant gates but never admin gates.
func TestAllow_DegradedFallback(t *testing.T) {
	u := user(models.RoleAccountant, true)
	u.Degraded = true
	if !authz.Allow(u, models.RoleAccountant) {
		t.Error("degraded fallback should pass accountant gates")
	}
	if authz.Allow(u, models.RoleAdmin) {
		t.Error("degraded fallback must not pass admin gates")
	}
}

func TestIsAdmin(t *testing.T) {
	if !authz.IsAdmin(user(models.RoleAdmin, true)) {
		t.Error("approved admin should be admin")
	}
	if authz.IsAdmin(user(models.RoleAdmin, false)) {
		t.Error("unapproved admin is not admin")
	}
	if authz.IsAdmin(user(models.RoleAccountant, true)) {
		t.Error("accountant is not admin")
	}
}

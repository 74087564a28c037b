// internal/app/system/authz/authz.go

// Package authz holds the pure authorization decision for protected
// operations. The gate only ever sees the reconciled user view; it
// performs no I/O and holds no state.
package authz

import (
	"github.com/zamanic/numerizam/internal/app/system/reconciler"
	"github.com/zamanic/numerizam/internal/domain/models"
)

// Allow decides whether the user may pass a gate requiring any of the
// given roles.
//
// Rules, in order:
//   - no user: deny. A session without a resolved profile is denied
//     until reconciliation produces a view (fail closed).
//   - unapproved user: deny regardless of role.
//   - no required roles: any approved user passes.
//   - otherwise the user's role must be one of the required roles.
func Allow(u *reconciler.User, required ...models.Role) bool {
	if u == nil {
		return false
	}
	if !u.Profile.IsApproved {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, want := range required {
		if u.Profile.Role == want {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user is an approved admin.
func IsAdmin(u *reconciler.User) bool {
	return Allow(u, models.RoleAdmin)
}

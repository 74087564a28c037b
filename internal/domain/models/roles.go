// internal/domain/models/roles.go
package models

import "strings"

// Role is the closed set of authorization tiers a profile can hold.
// Stored lowercase; ParseRole normalizes and rejects anything outside
// the set so typos never reach the database.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAccountant Role = "accountant"
	RoleViewer     Role = "viewer"
	RoleAuditor    Role = "auditor"
	RoleInvestor   Role = "investor"
)

// AllRoles lists every valid role, in display order.
var AllRoles = []Role{RoleAdmin, RoleAccountant, RoleViewer, RoleAuditor, RoleInvestor}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAccountant, RoleViewer, RoleAuditor, RoleInvestor:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole normalizes s (case, surrounding space) and returns the
// matching Role. ok is false for anything outside the closed set.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

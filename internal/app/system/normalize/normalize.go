// internal/app/system/normalize/normalize.go

// Package normalize holds the canonical string normalizations applied
// before anything is persisted or compared. Keeping them in one place
// means the stores, the reconciler, and the HTTP layer can never
// disagree about what "the same email" means.
package normalize

import "strings"

// Email lowercases and trims an email address. Uniqueness and lookups
// are always performed on the normalized form.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

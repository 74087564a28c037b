// internal/app/system/htmlsanitize/htmlsanitize.go

// Package htmlsanitize cleans user-supplied free text before it is
// persisted. Approval requests carry justification/experience fields
// typed by arbitrary users and later rendered in admin tooling, so
// everything is pushed through bluemonday on the way in.
package htmlsanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// strict strips all markup, leaving text content only.
	strict = bluemonday.StrictPolicy()
)

// Strict removes every HTML tag and trims surrounding whitespace.
// Used for fields that are semantically plain text (names, notes,
// justifications).
func Strict(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}

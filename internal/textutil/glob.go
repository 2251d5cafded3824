// Package textutil holds the shared matching and classification helpers
// used by the pane filter, the task engine's filename search, and file
// associations: glob matching (via bmatcuk/doublestar) and binary/text
// classification for content search.
package textutil

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// GlobMatch reports whether name matches pattern, case-insensitively. An
// empty pattern matches everything (the pane filter with no text shows all
// entries); the task engine's search input validation separately rejects an
// empty search pattern before it ever reaches this matcher.
func GlobMatch(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	ok, err := doublestar.Match(strings.ToLower(pattern), strings.ToLower(name))
	if err != nil {
		return false
	}
	return ok
}

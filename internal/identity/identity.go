// Package identity sanitizes engine identifiers before they are ever
// interpolated into a dynamically constructed table name. This is the
// single chokepoint spec.md §3 and §9 require: no other package may build
// an "ovl_<engine>" table name without going through Sanitize.
package identity

import (
	"regexp"
	"strings"

	"github.com/railyard/codesearch/internal/railerr"
)

var validEngineID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Sanitize validates engineID against the trust-boundary regex and returns
// the table-name-safe form (hyphens replaced with underscores). It refuses
// before any SQL is built, as InvalidIdentity errors are never retried.
func Sanitize(engineID string) (string, error) {
	if engineID == "" {
		return "", railerr.InvalidIdentity("engine id must not be empty")
	}
	if !validEngineID.MatchString(engineID) {
		return "", railerr.InvalidIdentity("engine id %q contains characters outside [A-Za-z0-9_-]", engineID)
	}
	return strings.ReplaceAll(engineID, "-", "_"), nil
}

// OverlayTableName composes the overlay table name for engineID under the
// configured prefix. It is the only function in this module that produces
// an overlay table name; all overlay table names flow through it.
func OverlayTableName(prefix, engineID string) (string, error) {
	safe, err := Sanitize(engineID)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		prefix = "ovl_"
	}
	return prefix + safe, nil
}

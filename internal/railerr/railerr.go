// Package railerr provides the structured error taxonomy used across
// the indexer, overlay, search, and tool-server packages.
package railerr

import (
	"errors"
	"fmt"
)

// Category classifies an error per the recovery policy in spec.md §7.
type Category string

const (
	// CategoryInvalidIdentity: engine id failed sanitization. Fatal, never retried.
	CategoryInvalidIdentity Category = "INVALID_IDENTITY"
	// CategoryRepo: the repository diff query failed.
	CategoryRepo Category = "REPO"
	// CategoryStore: a database connection or query failed.
	CategoryStore Category = "STORE"
	// CategoryConfig: missing required environment or CLI argument.
	CategoryConfig Category = "CONFIG"
	// CategoryFile: a specific source file was unreadable. Recovered locally.
	CategoryFile Category = "FILE"
	// CategorySubprocess: the overlay refresh subprocess failed.
	CategorySubprocess Category = "SUBPROCESS"
	// CategoryTableMissing: a dispatcher-mode table does not exist yet.
	CategoryTableMissing Category = "TABLE_MISSING"
)

// Error is the structured error type returned by the packages in this module.
type Error struct {
	Category Category
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by category, so callers can do errors.Is(err, railerr.InvalidIdentity).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Category == t.Category
}

func newf(cat Category, format string, args ...any) *Error {
	return &Error{Category: cat, Message: fmt.Sprintf(format, args...)}
}

func wrap(cat Category, cause error, format string, args ...any) *Error {
	return &Error{Category: cat, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// InvalidIdentity builds a CategoryInvalidIdentity error.
func InvalidIdentity(format string, args ...any) *Error {
	return newf(CategoryInvalidIdentity, format, args...)
}

// Repo builds a CategoryRepo error, wrapping cause.
func Repo(cause error, format string, args ...any) *Error {
	return wrap(CategoryRepo, cause, format, args...)
}

// Store builds a CategoryStore error, wrapping cause.
func Store(cause error, format string, args ...any) *Error {
	return wrap(CategoryStore, cause, format, args...)
}

// Config builds a CategoryConfig error.
func Config(format string, args ...any) *Error {
	return newf(CategoryConfig, format, args...)
}

// File builds a CategoryFile error, wrapping cause. Callers recover locally
// (skip the file) rather than surfacing this to the top-level caller.
func File(cause error, format string, args ...any) *Error {
	return wrap(CategoryFile, cause, format, args...)
}

// Subprocess builds a CategorySubprocess error, wrapping cause.
func Subprocess(cause error, format string, args ...any) *Error {
	return wrap(CategorySubprocess, cause, format, args...)
}

// TableMissing builds a CategoryTableMissing error, wrapping cause.
func TableMissing(cause error, format string, args ...any) *Error {
	return wrap(CategoryTableMissing, cause, format, args...)
}

// Sentinels for errors.Is comparisons against a bare category.
var (
	InvalidIdentitySentinel = &Error{Category: CategoryInvalidIdentity}
	RepoSentinel            = &Error{Category: CategoryRepo}
	StoreSentinel           = &Error{Category: CategoryStore}
	ConfigSentinel          = &Error{Category: CategoryConfig}
	FileSentinel            = &Error{Category: CategoryFile}
	SubprocessSentinel      = &Error{Category: CategorySubprocess}
	TableMissingSentinel    = &Error{Category: CategoryTableMissing}
)

// IsTableMissing reports whether err is (or wraps) a CategoryTableMissing error.
func IsTableMissing(err error) bool {
	return errors.Is(err, TableMissingSentinel)
}

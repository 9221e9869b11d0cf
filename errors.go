// Package spaces defines the error vocabulary shared by the storage
// space backends, the dispatcher, and their network clients.
//
// Errors are raised through github.com/warpfork/go-errcat so that
// callers can branch on a closed set of categories instead of matching
// message strings. BagNotFound in particular is a control-flow signal
// (it selects create-vs-update ingest typing), never a user-facing
// failure.
package spaces

import (
	"github.com/warpfork/go-errcat"
)

type ErrorCategory string

const (
	// ErrStorage covers operation-level failures a user can act on:
	// missing source files, upload failures, a remote ingest that ended
	// in failure. Messages embed the offending path.
	ErrStorage = ErrorCategory("storage-error")

	// ErrPathEscape is raised when a resolved delete or move target
	// falls outside the owning Space's configured base path.
	ErrPathEscape = ErrorCategory("path-escape")

	// ErrUnknownProtocol is raised when a Space carries an unregistered
	// protocol tag or has no protocol configuration record.
	ErrUnknownProtocol = ErrorCategory("unknown-protocol")

	// ErrNoIdentifier is raised when the identifier resolver exhausts
	// every strategy. Callers fall back to the package UUID.
	ErrNoIdentifier = ErrorCategory("no-identifier-found")

	// ErrBagNotFound is raised when a remote bag lookup misses.
	ErrBagNotFound = ErrorCategory("bag-not-found")

	// ErrNotSupported is raised when a backend does not implement an
	// operation for which the dispatcher has no safe generic fallback.
	ErrNotSupported = ErrorCategory("not-supported")
)

// CategoryOf returns the ErrorCategory attached to err, or the empty
// category if err is nil or was not raised through errcat.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrorCategory("")
	}
	if e, ok := err.(errcat.Error); ok {
		if category, ok := e.Category().(ErrorCategory); ok {
			return category
		}
	}
	return ErrorCategory("")
}

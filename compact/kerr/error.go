// Package kerr defines the error values shared across the compact packages.
//
// Errors are grouped by the component that raises them, mirroring the
// kernel's convention of tagging every error with its owning module; unlike
// the kernel we have a live heap and a real error interface, so wrapping a
// collaborator's failure (e.g. a migration engine returning ENOMEM) uses
// github.com/pkg/errors instead of hand-rolled context fields.
package kerr

import "github.com/pkg/errors"

// Error is a comparable, module-tagged error value.
type Error struct {
	// Module is the package that raised the error.
	Module string
	// Message describes the failure.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Module + ": " + e.Message
}

// Wrap attaches a compaction-component tag to an underlying error returned
// by an external collaborator (migration engine, buddy allocator, ...).
func Wrap(module string, cause error) error {
	if cause == nil {
		return nil
	}
	return errors.Wrap(cause, module)
}

var (
	// ErrOutOfMemory is returned by a migration engine when it cannot
	// obtain a free page for a migrating page. The zone driver ends a run
	// with COMPACT_PARTIAL on any error the engine returns, this one and
	// ErrFatalSignal alike (spec.md §4.6).
	ErrOutOfMemory = &Error{Module: "migrate", Message: "out of memory"}

	// ErrContended is the sentinel the lock helper associates with an
	// aborted async lock attempt (spec.md §4.4).
	ErrContended = &Error{Module: "lock", Message: "lock contended, async abort"}

	// ErrFatalSignal stands in for a pending fatal signal in the
	// original kernel source; in user space it is set explicitly via a
	// cancelled context.
	ErrFatalSignal = &Error{Module: "compact", Message: "run cancelled"}
)

// Package errors defines the error types used throughout the pfnalloc
// kernel packages.
package errors

import "fmt"

// KernelError is a simple string-based error, used for sentinel errors that
// callers are expected to compare against with errors.Is/==.
type KernelError string

// Error implements the error interface.
func (e KernelError) Error() string { return string(e) }

// Sentinel errors returned at public API boundaries. These represent
// ordinary, expected failure modes (resource exhaustion, reservation
// conflicts) rather than programmer errors.
const (
	// ErrInvalidParamValue is returned when a caller-supplied parameter
	// (order, alignment, mask, ...) is out of the valid range.
	ErrInvalidParamValue = KernelError("invalid parameter value")

	// ErrOutOfMemory is returned when no block large enough to satisfy a
	// request exists in any eligible area.
	ErrOutOfMemory = KernelError("out of memory")

	// ErrNoSuchArea describes an area number that has not been
	// initialized. No allocator operation returns it: an area mask with
	// no initialized area yields ErrOutOfMemory.
	ErrNoSuchArea = KernelError("no such area")

	// ErrReservationConflict is returned when a page targeted for
	// reservation is already ALLOC, already SPECIAL, or outside any area.
	ErrReservationConflict = KernelError("reservation conflict")

	// ErrPageNotAllocated is the message of the fatal panic raised when
	// FreePages is asked to free a page that is not currently marked
	// ALLOC; FreePages itself returns no error.
	ErrPageNotAllocated = KernelError("attempted to free non-allocated page")

	// ErrPageNotReserved is returned when UnreservePages targets a page
	// that is not currently marked SPECIAL.
	ErrPageNotReserved = KernelError("attempted to unreserve non-reserved page")
)

// Error is a structured kernel error carrying the name of the module that
// raised it, mirroring the {Module, Message} shape used across the
// gopher-os/gopheros lineage for fatal, non-sentinel failures.
type Error struct {
	Module  string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Fatal panics with a *Error describing a violated invariant. The
// allocator's contract is that its own invariants are ground truth: once
// one is violated there is no recovery path, only a fatal assertion.
func Fatal(module, format string, args ...interface{}) {
	panic(&Error{Module: module, Message: fmt.Sprintf(format, args...)})
}

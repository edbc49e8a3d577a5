// Package vlerr defines the error taxonomy shared by every analyzer in the
// core: invalid arguments, allocation failure, use-before-process, and the
// non-error "terminal octave" sentinel returned by the pyramid's incremental
// advance.
package vlerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Wrap one of these with fmt.Errorf("...: %w", kind) so
// callers can recover the kind with errors.Is.
var (
	// ErrInvalidArgument marks a parameter out of range, incompatible
	// dimensions, or a nil grid.
	ErrInvalidArgument = errors.New("vlerr: invalid argument")

	// ErrAllocationFailure marks an internal buffer allocation failure.
	// The analyzer is left in its empty, pre-Process state.
	ErrAllocationFailure = errors.New("vlerr: allocation failure")

	// ErrNotConfigured marks a query made before Process was called.
	ErrNotConfigured = errors.New("vlerr: not configured")

	// ErrTerminalOctave is not a failure: it is the value returned by the
	// pyramid's incremental advance once no further octave can be built.
	ErrTerminalOctave = errors.New("vlerr: terminal octave")
)

// InvalidArgument wraps a message as an ErrInvalidArgument.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// AllocationFailure wraps a message as an ErrAllocationFailure.
func AllocationFailure(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrAllocationFailure)
}

// NotConfigured wraps a message as an ErrNotConfigured.
func NotConfigured(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotConfigured)
}

// IsTerminalOctave reports whether err is (or wraps) ErrTerminalOctave.
func IsTerminalOctave(err error) bool {
	return errors.Is(err, ErrTerminalOctave)
}

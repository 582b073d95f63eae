// Package hserr defines the typed error kinds shared across every
// component. Errors are values, never panics; every error carries a
// human-readable reason and a machine-readable Kind.
package hserr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error into one of the eight recognized error kinds.
type Kind string

const (
	// Config: missing or invalid configuration. Fatal at startup.
	Config Kind = "config"
	// Io: filesystem or on-disk index I/O. Local to the offending file
	// or index operation.
	Io Kind = "io"
	// Parse: source failed to parse. Symbol extraction yields empty;
	// the file is still indexed for text and vectors.
	Parse Kind = "parse"
	// ModelFormat: on-disk model header/tensor table invalid, or a
	// quantized block decodes to an invalid scale. Fatal for the
	// embedder.
	ModelFormat Kind = "model_format"
	// Resource: a bounded allocation would exceed its cap.
	Resource Kind = "resource"
	// Timeout: a per-backend deadline elapsed.
	Timeout Kind = "timeout"
	// Cancelled: caller cancelled the operation.
	Cancelled Kind = "cancelled"
	// Corruption: on-disk index rows inconsistent with meta. Fatal;
	// requires clear + reindex.
	Corruption Kind = "corruption"
)

// Error is the single typed-error value used across component
// boundaries. It is never used for stack-unwinding control flow.
type Error struct {
	Kind    Kind
	Message string
	Path    string // optional: file or resource the error concerns
	Cause   error
}

func (e *Error) Error() string {
	if e.Path != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Message, e.Path, e.Cause)
		}
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, enabling
// errors.Is(err, hserr.Kind(...)) style callers via errors.As instead.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithPath returns a copy of e with Path set.
func (e *Error) WithPath(path string) *Error {
	cp := *e
	cp.Path = path
	return &cp
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, and
// reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Fatal reports whether errors of this kind must abort the whole
// operation rather than being recovered locally.
func (k Kind) Fatal() bool {
	switch k {
	case Config, ModelFormat, Corruption:
		return true
	default:
		return false
	}
}

// Retryable reports whether a caller may reasonably retry an operation
// that failed with this kind.
func (k Kind) Retryable() bool {
	switch k {
	case Timeout, Io:
		return true
	default:
		return false
	}
}

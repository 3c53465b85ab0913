// Package failure defines the typed errors returned across the conversion
// and merge boundaries.
//
// Every error that leaves the dispatcher, a container codec or the merger is
// a *Error carrying a machine-readable Kind and a human-readable Detail.
// Callers branch on the kind with errors.Is against the package sentinels:
//
//	if errors.Is(err, failure.ErrBackendUnavailable) {
//	    // degrade gracefully
//	}
//
// or read it directly with KindOf.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// KindUnsupportedConversion means no route exists for the format pair.
	KindUnsupportedConversion Kind = "unsupported_conversion"
	// KindBackendUnavailable means an optional backend is not installed.
	KindBackendUnavailable Kind = "backend_unavailable"
	// KindBackendExecutionFailed means a command exited nonzero or a library faulted.
	KindBackendExecutionFailed Kind = "backend_execution_failed"
	// KindEmptyDocument means a fan-out produced zero units.
	KindEmptyDocument Kind = "empty_document"
	// KindMergeBaseNotFound means no normalized input can host the others.
	KindMergeBaseNotFound Kind = "merge_base_not_found"
	// KindContainerIntegrityFailed means post-embed verification failed.
	KindContainerIntegrityFailed Kind = "container_integrity_failed"
	// KindInvalidRequest means the request itself is malformed.
	KindInvalidRequest Kind = "invalid_request"
)

// Sentinels for errors.Is comparisons. Only the Kind is compared.
var (
	ErrUnsupportedConversion    = &Error{Kind: KindUnsupportedConversion}
	ErrBackendUnavailable       = &Error{Kind: KindBackendUnavailable}
	ErrBackendExecutionFailed   = &Error{Kind: KindBackendExecutionFailed}
	ErrEmptyDocument            = &Error{Kind: KindEmptyDocument}
	ErrMergeBaseNotFound        = &Error{Kind: KindMergeBaseNotFound}
	ErrContainerIntegrityFailed = &Error{Kind: KindContainerIntegrityFailed}
	ErrInvalidRequest           = &Error{Kind: KindInvalidRequest}
)

// Error is a typed conversion or merge failure.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns a failure of the given kind with a formatted detail.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and detail to an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Ensure returns err unchanged if it already carries a kind, and otherwise
// wraps it as the fallback kind. A nil err stays nil.
func Ensure(err error, fallback Kind, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	return Wrap(fallback, err, format, args...)
}

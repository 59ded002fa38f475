package registry

import (
	"errors"
	"fmt"
)

// notFoundError signals that a model, version or alias does not exist.
// An absent production alias is an expected empty state for callers, not
// a failure.
type notFoundError struct{ what string }

func (e notFoundError) Error() string { return "not found: " + e.what }

// ErrNotFound constructs a NotFound error for the given subject.
func ErrNotFound(format string, args ...any) error {
	return notFoundError{what: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err indicates a missing model/version/alias.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// unavailableError signals that the registry backend could not be reached
// or answered with a server-side failure. The current operation fails;
// nothing persisted changes.
type unavailableError struct {
	msg string
	err error
}

func (e unavailableError) Error() string {
	if e.err != nil {
		return "registry unavailable: " + e.msg + ": " + e.err.Error()
	}
	return "registry unavailable: " + e.msg
}

func (e unavailableError) Unwrap() error { return e.err }

// ErrUnavailable wraps err as a registry availability failure.
func ErrUnavailable(msg string, err error) error {
	return unavailableError{msg: msg, err: err}
}

// IsUnavailable reports whether err indicates an unreachable registry.
func IsUnavailable(err error) bool {
	var e unavailableError
	return errors.As(err, &e)
}

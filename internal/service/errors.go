package service

import (
	"errors"
	"fmt"
)

var ErrStorageNotConfigured = errors.New("storage not configured")

// ValidationError is a request rejected before any network or store call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// AuthorizationError is an operation the caller is not allowed to perform.
// It is raised at the service boundary, not hidden in a rendering layer.
type AuthorizationError struct {
	Action string
}

func (e *AuthorizationError) Error() string {
	return "not authorized to " + e.Action
}

// TransientStoreError wraps a store or network failure that the caller may
// retry with backoff.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

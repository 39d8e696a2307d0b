package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/longform/internal/store"
)

// Common service errors. Callers check them with errors.Is; the API layer
// maps them to HTTP status codes.
var (
	// ErrRunNotFound indicates that the run does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotFinished indicates that the run has not produced the requested
	// artifact yet.
	ErrRunNotFinished = errors.New("run has not finished")

	// ErrArtifactMissing indicates that the run finished without producing the
	// requested artifact, or that it has since expired.
	ErrArtifactMissing = errors.New("artifact not available")
)

// RunServiceError wraps errors from the run service with context.
type RunServiceError struct {
	// Operation is the operation that failed (e.g., "create_run", "get_run")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for RunServiceError.
func (e *RunServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("run service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("run service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *RunServiceError) Unwrap() error {
	return e.Err
}

// NewRunServiceError creates a new RunServiceError.
// It returns known sentinel errors directly without wrapping.
func NewRunServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRunNotFound) || errors.Is(err, store.ErrRunNotFound) {
		return ErrRunNotFound
	}
	return &RunServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

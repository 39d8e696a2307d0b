package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Errors returned by text and image services. They form the failure taxonomy
// the pipelines and retry policies act on.
var (
	// ErrRateLimited is returned when the upstream service answers 429.
	ErrRateLimited = errors.New("rate limited by upstream service")

	// ErrTransport is returned for any other HTTP or network failure.
	ErrTransport = errors.New("upstream transport failure")

	// ErrInvalidResponse is returned when a response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from upstream service")

	// ErrContentBlocked is returned when the service refuses the prompt due to safety filters
	ErrContentBlocked = errors.New("content blocked by upstream safety filters")

	// ErrInvalidConfig is returned when a service is constructed with invalid settings
	ErrInvalidConfig = errors.New("invalid generation service configuration")

	// ErrMissingCredential is returned when no API key is available for a provider
	ErrMissingCredential = errors.New("missing API credential")
)

// FromStatus wraps err with the taxonomy entry for an HTTP status code.
// 429 becomes ErrRateLimited; every other status, 401 and 403 included,
// becomes ErrTransport.
func FromStatus(status int, err error) error {
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d: %w", ErrRateLimited, status, err)
	}
	return fmt.Errorf("%w: status %d: %w", ErrTransport, status, err)
}

// IsRetryable reports whether a failed call is worth repeating. Every upstream
// failure is retried on the policy's schedule, including HTTP errors, safety
// refusals and malformed responses. Only a missing credential, which is
// checked before a run starts, and caller cancellation are final.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrMissingCredential):
		return false
	default:
		return true
	}
}

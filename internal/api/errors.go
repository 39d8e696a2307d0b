package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/longform/internal/api/shared"
	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/service"
	"github.com/phrazzld/longform/internal/service/auth"
	"github.com/phrazzld/longform/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrRunNotFound),
		errors.Is(err, service.ErrArtifactMissing):
		return http.StatusNotFound

	// The artifact will exist once the run finishes
	case errors.Is(err, service.ErrRunNotFinished):
		return http.StatusConflict

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidCounts),
		errors.Is(err, domain.ErrInvalidFormat):
		return http.StatusBadRequest

	case errors.Is(err, task.ErrRunnerStopped),
		errors.Is(err, task.ErrQueueFull):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, service.ErrRunNotFound):
		return "Run not found"

	case errors.Is(err, service.ErrRunNotFinished):
		return "Run has not finished yet"

	case errors.Is(err, service.ErrArtifactMissing):
		return "Artifact not available"

	case errors.Is(err, domain.ErrInvalidCounts):
		return fmt.Sprintf("main_headings must be between %d and %d and sub_headings between %d and %d",
			domain.MinMainHeadings, domain.MaxMainHeadings, domain.MinSubHeadings, domain.MaxSubHeadings)

	case errors.Is(err, domain.ErrValidation):
		return "Topic and audience are required"

	case errors.Is(err, task.ErrRunnerStopped),
		errors.Is(err, task.ErrQueueFull):
		return "Generation queue is unavailable, try again later"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the response for err using its mapped status code.
// A non-empty defaultMsg replaces the generic message for unmapped errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	msg := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && defaultMsg != "" {
		msg = defaultMsg
	}
	shared.RespondWithErrorAndLog(w, r, status, msg, err)
}

// SanitizeValidationError turns validator errors into a message naming the
// first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	field := fe.Field()
	if tag := getValidationTagMessage(fe.Tag()); tag != "" {
		return fmt.Sprintf("Invalid %s: %s", field, tag)
	}
	return fmt.Sprintf("Invalid %s", field)
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte":
		return "too small"
	case "max", "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

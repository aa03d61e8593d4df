package apierrors

import (
	"errors"

	hospitalityProcessor "hospitality-server/internal/hospitality/processor"
	"hospitality-server/internal/store"
)

// MapError converts domain/processor errors to APIErrors. This function
// centralizes all error mapping logic so error responses stay consistent
// across the API.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	// Check if already an APIError
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, hospitalityProcessor.ErrInvalidIdentity):
		return BadRequest(CodeInvalidIdentity, "Event requires exactly one of user id or session token")

	case errors.Is(err, hospitalityProcessor.ErrEmptyEventType):
		return BadRequest(CodeInvalidInput, "Event type is required")

	case errors.Is(err, hospitalityProcessor.ErrUnknownOutcome):
		return BadRequest(CodeInvalidInput, "Unknown action outcome")

	case errors.Is(err, hospitalityProcessor.ErrInvalidTransition):
		return Conflict(CodeInvalidTransition, "Action outcome can only move forward")

	case errors.Is(err, hospitalityProcessor.ErrActionNotFound):
		return NotFound(CodeActionNotFound, "Action not found")

	case errors.Is(err, hospitalityProcessor.ErrRuleNotFound):
		return NotFound(CodeRuleNotFound, "Rule not found")

	case errors.Is(err, hospitalityProcessor.ErrVisitorNotFound):
		return NotFound(CodeVisitorNotFound, "Visitor not found")

	case errors.Is(err, store.ErrNotFound):
		return NotFound(CodeNotFound, "Not found")
	}

	return InternalError(err)
}

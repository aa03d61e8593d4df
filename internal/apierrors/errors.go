package apierrors

import (
	"fmt"
	"net/http"

	"hospitality-server/internal/observability"

	"github.com/gin-gonic/gin"
)

var logger = observability.NewLogger()

// Machine-readable error codes returned to API clients
const (
	CodeInvalidIdentity     = "INVALID_IDENTITY"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeActionNotFound      = "ACTION_NOT_FOUND"
	CodeRuleNotFound        = "RULE_NOT_FOUND"
	CodeVisitorNotFound     = "VISITOR_NOT_FOUND"
	CodeNotFound            = "NOT_FOUND"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInternalError       = "INTERNAL_ERROR"
)

// APIError pairs an HTTP status with a sanitized client-facing message
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	internal   error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.internal)
	}
	return e.Message
}

// Unwrap exposes the internal error for errors.Is checks
func (e *APIError) Unwrap() error {
	return e.internal
}

// BadRequest builds a 400 error
func BadRequest(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, Code: code, Message: message}
}

// NotFound builds a 404 error
func NotFound(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusNotFound, Code: code, Message: message}
}

// Conflict builds a 409 error
func Conflict(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusConflict, Code: code, Message: message}
}

// ServiceUnavailable builds a 503 error
func ServiceUnavailable(message string, internalErr error) *APIError {
	return &APIError{StatusCode: http.StatusServiceUnavailable, Code: CodeServiceUnavailable, Message: message, internal: internalErr}
}

// InternalError builds a sanitized 500 error that never exposes details
func InternalError(internalErr error) *APIError {
	return &APIError{
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
		Message:    "An internal error occurred. Please try again later.",
		internal:   internalErr,
	}
}

// ErrorResponse is the JSON structure returned to API clients
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RespondWithError maps err to an APIError, logs correlation info, and
// sends the sanitized JSON response. The processor has already logged the
// detailed error with full context.
func RespondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	apiErr := MapError(err)

	ctx := observability.WithFields(c.Request.Context(),
		observability.Field{Key: "status_code", Value: apiErr.StatusCode},
		observability.Field{Key: "error_code", Value: apiErr.Code},
	)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.Error(ctx, "API error response", err)
	} else {
		logger.Info(ctx, "API error response")
	}

	c.JSON(apiErr.StatusCode, ErrorResponse{
		Error: apiErr.Message,
		Code:  apiErr.Code,
	})
}

package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a prepd error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"  // 404
	ErrConflict       ErrorCode = "CONFLICT"        // 409
	ErrRateLimited    ErrorCode = "RATE_LIMITED"    // 429
	ErrCancelled      ErrorCode = "CANCELLED"       // 499 (client closed request)
	ErrInternal       ErrorCode = "INTERNAL"        // 500
	ErrProvider       ErrorCode = "PROVIDER"        // 502
)

// PrepdError represents a structured error with code, status, and details.
type PrepdError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *PrepdError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *PrepdError {
	return &PrepdError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a record cannot be found.
func NewNotFound(kind, identifier string) *PrepdError {
	return &PrepdError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing file path.
func NewFileNotFound(path string) *PrepdError {
	return &PrepdError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *PrepdError {
	return &PrepdError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewRateLimited creates a 429 error for provider throttling. retryAfter
// carries the provider's Retry-After hint in seconds, 0 when absent.
func NewRateLimited(retryAfter int) *PrepdError {
	e := &PrepdError{
		Code:    ErrRateLimited,
		Status:  429,
		Message: "provider rate limit exceeded",
		Details: map[string]any{},
	}
	if retryAfter > 0 {
		e.Details["retry_after_seconds"] = retryAfter
	}
	return e
}

// NewCancelled creates a 499 error for a cancelled operation.
func NewCancelled() *PrepdError {
	return &PrepdError{
		Code:    ErrCancelled,
		Status:  499,
		Message: "operation cancelled",
	}
}

// NewInternal creates a 500 error for unexpected internal errors. The
// message stays generic; the original error is kept in Details for logging.
func NewInternal(err error) *PrepdError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &PrepdError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// NewProvider creates a 502 error for upstream model provider failures.
func NewProvider(msg string) *PrepdError {
	return &PrepdError{
		Code:    ErrProvider,
		Status:  502,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a PrepdError with the given code.
func Is(err error, code ErrorCode) bool {
	var pErr *PrepdError
	if stderrors.As(err, &pErr) {
		return pErr.Code == code
	}
	return false
}

package apierrors

import (
	"fmt"
	"net/http"
)

// Application-specific error codes
const (
	ErrCodeUnknown          = "UNKNOWN_ERROR"
	ErrCodeNotFound         = "RESOURCE_NOT_FOUND"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeSimulatedFailure = "SIMULATED_FAILURE"
)

// AppError defines a standard application error.
type AppError struct {
	Code       string // Application-specific error code
	Message    string // User-friendly error message
	StatusCode int    // HTTP status to respond with
	Err        error  // Original underlying error (optional)
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		// Include cause for better internal logging
		return fmt.Sprintf("AppError(Code=%s, Message=%s, Cause=%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("AppError(Code=%s, Message=%s)", e.Code, e.Message)
}

// Unwrap provides compatibility for errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError. Use this for generating errors.
func NewAppError(code, message string, statusCode int, cause error) *AppError {
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        cause,
	}
}

// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Pipeline errors
	ErrDataGap      = &Error{Code: "DATA_GAP", Message: "series has no observations in range"}
	ErrLoadFailed   = &Error{Code: "LOAD_FAILED", Message: "loading input failed"}
	ErrInvalidInput = &Error{Code: "INVALID_INPUT", Message: "invalid input"}
	ErrInvalidTable = &Error{Code: "INVALID_TABLE", Message: "feature table violates its invariants"}

	// Prediction errors
	ErrUnknownInstrument = &Error{Code: "UNKNOWN_INSTRUMENT", Message: "unknown instrument"}
	ErrNoData            = &Error{Code: "NO_DATA", Message: "no feature rows for instrument"}
	ErrStaleArtifact     = &Error{Code: "STALE_ARTIFACT", Message: "model features do not match feature table"}
	ErrModelNotLoaded    = &Error{Code: "MODEL_NOT_LOADED", Message: "no model loaded"}
	ErrTrainingFailed    = &Error{Code: "TRAINING_FAILED", Message: "model training failed"}

	// External errors
	ErrStoreFailed     = &Error{Code: "STORE_FAILED", Message: "store operation failed"}
	ErrCollectorFailed = &Error{Code: "COLLECTOR_FAILED", Message: "collector failed"}

	// Request errors
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}
	ErrJobNotFound  = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)

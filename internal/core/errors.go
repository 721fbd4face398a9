package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation          ErrorCategory = "validation"           // Malformed identifiers or payload
	ErrCatNotFound            ErrorCategory = "not_found"            // Unknown venue or report
	ErrCatConflict            ErrorCategory = "conflict"             // Concurrent venue modification
	ErrCatStorage             ErrorCategory = "storage"              // Persistence layer unavailable
	ErrCatEvidenceUnavailable ErrorCategory = "evidence_unavailable" // Evidence could not be fetched
	ErrCatInference           ErrorCategory = "inference"            // Inference gateway failed
	ErrCatTimeout             ErrorCategory = "timeout"              // Operation timed out
	ErrCatAuth                ErrorCategory = "auth"                 // Authentication failure
	ErrCatInternal            ErrorCategory = "internal"             // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      "NOT_FOUND",
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// ErrConflict creates a concurrency conflict error. Conflicts are retryable:
// the caller may re-read the current state and try again.
func ErrConflict(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatConflict,
		Code:      CodeVersionConflict,
		Message:   fmt.Sprintf("%s was modified concurrently: %s", resource, id),
		Retryable: true,
	}
}

// ErrStorage creates a storage error.
func ErrStorage(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatStorage,
		Code:      "STORAGE_UNAVAILABLE",
		Message:   message,
		Retryable: false,
	}
}

// ErrEvidenceUnavailable creates an error for evidence that could not be fetched.
func ErrEvidenceUnavailable(ref EvidenceRef, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatEvidenceUnavailable,
		Code:      "EVIDENCE_UNAVAILABLE",
		Message:   message,
		Retryable: false,
		Details:   map[string]interface{}{"evidence_ref": string(ref)},
	}
}

// ErrInference creates an inference failure.
func ErrInference(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatInference,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrAuth creates an authentication error.
func ErrAuth(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatAuth,
		Code:      "AUTH_FAILED",
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	CodeVersionConflict = "VERSION_CONFLICT"

	// Validation error codes
	CodeInvalidID          = "INVALID_ID"
	CodeInvalidEvidenceRef = "INVALID_EVIDENCE_REF"
	CodeTooManyEvidence    = "TOO_MANY_EVIDENCE_REFS"
	CodeTextTooLong        = "TEXT_TOO_LONG"
	CodeInvalidName        = "INVALID_NAME"
	CodeInvalidPayload     = "INVALID_PAYLOAD"
	CodeDuplicateID        = "DUPLICATE_ID"

	// Inference error codes
	CodeUnsupportedMedia = "UNSUPPORTED_MEDIA"
	CodeModelFailed      = "MODEL_FAILED"
	CodeUnparseable      = "UNPARSEABLE_RESPONSE"
	CodeUndetermined     = "UNDETERMINED"
	CodeGatewayDisabled  = "GATEWAY_DISABLED"
)

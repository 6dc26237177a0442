package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of a reconciliation failure.
type ErrorClass string

const (
	// ErrorClassNotFound indicates a referenced object does not exist
	// (for example a space named by a task parameter).
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassTransport indicates the tenant API rejected or failed a call.
	// The underlying error carries the HTTP status and response body.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassAuth indicates missing or rejected credentials.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassValidation indicates invalid task parameters or schema.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassPolicy indicates a mutation was denied by policy.
	ErrorClassPolicy ErrorClass = "policy"

	// ErrorClassUnsupported indicates an operation the resource kind does not allow.
	ErrorClassUnsupported ErrorClass = "unsupported"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the resource kind that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s, %s", e.Message, e.Err.Error())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(message string) *EngineError {
	return &EngineError{
		Class:   ErrorClassNotFound,
		Message: message,
		Code:    ErrCodeNotFound,
	}
}

// NewTransportError wraps a failed tenant API call. The message follows the
// "error <verb> <kind>" form so the wrapped HTTP status and body read
// naturally after it.
func NewTransportError(operation OperationType, kind string, err error) *EngineError {
	return &EngineError{
		Class:     ErrorClassTransport,
		Message:   fmt.Sprintf("error %s %s", operation.Gerund(), kind),
		Code:      ErrCodeAPI,
		Resource:  kind,
		Operation: string(operation),
		Err:       err,
	}
}

// NewAuthError creates a new authentication error.
func NewAuthError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassAuth,
		Message: message,
		Code:    ErrCodePermissionDenied,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassValidation,
		Message: message,
		Code:    ErrCodeValidation,
		Err:     err,
	}
}

// NewPolicyError creates a new policy denial error.
func NewPolicyError(message string) *EngineError {
	return &EngineError{
		Class:   ErrorClassPolicy,
		Message: message,
		Code:    ErrCodePolicyDenied,
	}
}

// NewUnsupportedError creates an error for an operation the resource kind
// cannot perform.
func NewUnsupportedError(operation OperationType, kind string) *EngineError {
	return &EngineError{
		Class:     ErrorClassUnsupported,
		Message:   fmt.Sprintf("%s was called on %s but is not supported", operation, kind),
		Code:      ErrCodeUnsupported,
		Resource:  kind,
		Operation: string(operation),
	}
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(kind string) *EngineError {
	e.Resource = kind
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func classOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// IsNotFound returns true if the error is classified as not found.
func IsNotFound(err error) bool { return classOf(err) == ErrorClassNotFound }

// IsTransport returns true if the error came from a failed API call.
func IsTransport(err error) bool { return classOf(err) == ErrorClassTransport }

// IsAuth returns true if the error is classified as an authentication failure.
func IsAuth(err error) bool { return classOf(err) == ErrorClassAuth }

// IsValidation returns true if the error is classified as a validation failure.
func IsValidation(err error) bool { return classOf(err) == ErrorClassValidation }

// IsPolicy returns true if the error is a policy denial.
func IsPolicy(err error) bool { return classOf(err) == ErrorClassPolicy }

// IsUnsupported returns true if the error is classified as unsupported.
func IsUnsupported(err error) bool { return classOf(err) == ErrorClassUnsupported }

// Common error codes.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeAPI              = "API_ERROR"
	ErrCodePolicyDenied     = "POLICY_DENIED"
	ErrCodeUnsupported      = "UNSUPPORTED"
	ErrCodeUnknownState     = "UNKNOWN_STATE"
)

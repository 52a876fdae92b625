package domain

import (
	"fmt"
)

// ErrorCode represents the type of domain error
type ErrorCode string

const (
	// ErrCodeNotFound indicates that a requested resource was not found
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidInput indicates that the input provided is invalid
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeInvalidState indicates an invalid state transition
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeStorage indicates a metrics storage operation error
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"

	// ErrCodeQuery indicates a metric query error
	ErrCodeQuery ErrorCode = "QUERY_ERROR"

	// ErrCodeCollector indicates an ingestion-path error
	ErrCodeCollector ErrorCode = "COLLECTOR_ERROR"

	// ErrCodeEventProcessing indicates an upstream event normalization error
	ErrCodeEventProcessing ErrorCode = "EVENT_PROCESSING_ERROR"

	// ErrCodeEventBus indicates an event bus publish/subscribe error
	ErrCodeEventBus ErrorCode = "EVENT_BUS_ERROR"

	// ErrCodeExport indicates a metrics export error
	ErrCodeExport ErrorCode = "EXPORT_ERROR"

	// ErrCodeFileOperation indicates a file operation error
	ErrCodeFileOperation ErrorCode = "FILE_OPERATION_ERROR"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error
func (e *DomainError) WithDetails(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// NewDomainErrorWithCause creates a new domain error with an underlying cause
func NewDomainErrorWithCause(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// Common domain errors

// ErrNotFound creates a not found error
func ErrNotFound(resource string, id string) *DomainError {
	return NewDomainError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

// ErrInvalidInput creates an invalid input error
func ErrInvalidInput(field string, reason string) *DomainError {
	return NewDomainError(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason)).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

// ErrInvalidState creates an invalid state error
func ErrInvalidState(entity string, currentState string, attemptedAction string) *DomainError {
	return NewDomainError(ErrCodeInvalidState,
		fmt.Sprintf("invalid state transition for %s: cannot %s in state %s", entity, attemptedAction, currentState)).
		WithDetails("entity", entity).
		WithDetails("currentState", currentState).
		WithDetails("attemptedAction", attemptedAction)
}

// ErrNotInitialized creates an invalid state error for an uninitialized component
func ErrNotInitialized(component string, attemptedAction string) *DomainError {
	return ErrInvalidState(component, "uninitialized", attemptedAction)
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	if domainErr, ok := err.(*DomainError); ok {
		return domainErr.Code
	}
	return ""
}

// Storage errors

// ErrStorage creates a storage error
func ErrStorage(operation string, reason string) *DomainError {
	return NewDomainError(ErrCodeStorage, fmt.Sprintf("storage error in %s: %s", operation, reason)).
		WithDetails("operation", operation).
		WithDetails("reason", reason)
}

// ErrStorageWithCause creates a storage error with cause
func ErrStorageWithCause(operation string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeStorage, fmt.Sprintf("storage error in %s", operation), err).
		WithDetails("operation", operation)
}

// Query errors

// ErrQuery creates a query error
func ErrQuery(operation string, reason string) *DomainError {
	return NewDomainError(ErrCodeQuery, fmt.Sprintf("query error in %s: %s", operation, reason)).
		WithDetails("operation", operation).
		WithDetails("reason", reason)
}

// ErrQueryWithCause creates a query error with cause
func ErrQueryWithCause(operation string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeQuery, fmt.Sprintf("query error in %s", operation), err).
		WithDetails("operation", operation)
}

// Collector errors

// ErrCollector creates an ingestion-path error
func ErrCollector(reason string) *DomainError {
	return NewDomainError(ErrCodeCollector, fmt.Sprintf("collector error: %s", reason)).
		WithDetails("reason", reason)
}

// ErrCollectorShuttingDown creates an error for records rejected during shutdown
func ErrCollectorShuttingDown() *DomainError {
	return NewDomainError(ErrCodeCollector, "collector is shutting down").
		WithDetails("reason", "shutdown")
}

// Event processing errors

// ErrEventProcessing creates an event processing error
func ErrEventProcessing(eventID string, category string, reason string) *DomainError {
	return NewDomainError(ErrCodeEventProcessing,
		fmt.Sprintf("failed to process event %s (%s): %s", eventID, category, reason)).
		WithDetails("eventId", eventID).
		WithDetails("category", category).
		WithDetails("reason", reason)
}

// ErrEventProcessingWithCause creates an event processing error with cause
func ErrEventProcessingWithCause(eventID string, category string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEventProcessing,
		fmt.Sprintf("failed to process event %s (%s)", eventID, category), err).
		WithDetails("eventId", eventID).
		WithDetails("category", category)
}

// Event bus errors

// ErrEventBus creates an event bus error
func ErrEventBus(operation string, reason string) *DomainError {
	return NewDomainError(ErrCodeEventBus, fmt.Sprintf("event bus error in %s: %s", operation, reason)).
		WithDetails("operation", operation).
		WithDetails("reason", reason)
}

// Export errors

// ErrExport creates a metrics export error
func ErrExport(target string, reason string) *DomainError {
	return NewDomainError(ErrCodeExport, fmt.Sprintf("export error to %s: %s", target, reason)).
		WithDetails("target", target).
		WithDetails("reason", reason)
}

// ErrExportWithCause creates a metrics export error with cause
func ErrExportWithCause(target string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeExport, fmt.Sprintf("export error to %s", target), err).
		WithDetails("target", target)
}

// File operation errors

// ErrFileOperation creates a file operation error
func ErrFileOperation(operation string, path string, reason string) *DomainError {
	return NewDomainError(ErrCodeFileOperation, fmt.Sprintf("file operation error in %s: %s", operation, reason)).
		WithDetails("operation", operation).
		WithDetails("path", path).
		WithDetails("reason", reason)
}

// ErrPathTraversal creates a path traversal error
func ErrPathTraversal(path string) *DomainError {
	return NewDomainError(ErrCodeFileOperation, "path contains directory traversal").
		WithDetails("path", path).
		WithDetails("securityViolation", "directory_traversal")
}

// Package errors provides typed errors for cache-worker
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// ErrConfig indicates a configuration error
	ErrConfig ErrorType = iota
	// ErrNetwork indicates a transport-level fetch failure
	ErrNetwork
	// ErrStorage indicates a cache storage failure
	ErrStorage
	// ErrMessage indicates a malformed control message
	ErrMessage
	// ErrLifecycle indicates an illegal worker state transition
	ErrLifecycle
	// ErrValidation indicates an input validation error
	ErrValidation
)

// WorkerError is the base error type for all cache-worker errors
type WorkerError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error returns the error message
func (e *WorkerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", errorTypeString(e.Type), e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", errorTypeString(e.Type), e.Message)
}

// Unwrap returns the underlying cause
func (e *WorkerError) Unwrap() error {
	return e.Cause
}

// New creates a new WorkerError
func New(errType ErrorType, message string, cause error) *WorkerError {
	return &WorkerError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *WorkerError) WithContext(key string, value interface{}) *WorkerError {
	e.Context[key] = value
	return e
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var workerErr *WorkerError
	if err == nil {
		return false
	}
	if errors.As(err, &workerErr) {
		return workerErr.Type == errType
	}
	return false
}

// IsRecoverable reports whether err is a transport failure, one the
// interceptor falls back to the cache for. The proxy answers unrecovered
// transport failures with 502 and every other failure with 500.
func IsRecoverable(err error) bool {
	var workerErr *WorkerError
	if !errors.As(err, &workerErr) {
		return false
	}

	switch workerErr.Type {
	case ErrNetwork:
		return true
	default:
		return false
	}
}

func errorTypeString(et ErrorType) string {
	switch et {
	case ErrConfig:
		return "CONFIG"
	case ErrNetwork:
		return "NETWORK"
	case ErrStorage:
		return "STORAGE"
	case ErrMessage:
		return "MESSAGE"
	case ErrLifecycle:
		return "LIFECYCLE"
	case ErrValidation:
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}

// Convenience functions for common errors

// ConfigError creates a configuration error
func ConfigError(message string, cause error) *WorkerError {
	return New(ErrConfig, message, cause)
}

// NetworkError creates a network error
func NetworkError(message string, cause error) *WorkerError {
	return New(ErrNetwork, message, cause)
}

// StorageError creates a cache storage error
func StorageError(message string, cause error) *WorkerError {
	return New(ErrStorage, message, cause)
}

// MessageError creates a control message error
func MessageError(message string, cause error) *WorkerError {
	return New(ErrMessage, message, cause)
}

// LifecycleError creates a lifecycle transition error
func LifecycleError(message string, cause error) *WorkerError {
	return New(ErrLifecycle, message, cause)
}

// ValidationError creates a validation error
func ValidationError(message string, cause error) *WorkerError {
	return New(ErrValidation, message, cause)
}

// Package dserrors provides structured error handling for the dataset
// engine. Errors carry a category, key-value details (such as the logical
// row index or worker rank at which a callback failed) and the call stack
// captured at creation time.
package dserrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeSchemaMismatch signals incompatible schemas, e.g. when
	// concatenating datasets whose features differ.
	ErrorTypeSchemaMismatch ErrorType = "schema_mismatch"
	// ErrorTypeIndexOutOfRange signals an index outside the valid row range.
	ErrorTypeIndexOutOfRange ErrorType = "index_out_of_range"
	// ErrorTypeTypeCoercion signals a cast that cannot represent a value in
	// the target feature type.
	ErrorTypeTypeCoercion ErrorType = "type_coercion"
	// ErrorTypeNameCollision signals a duplicate column name.
	ErrorTypeNameCollision ErrorType = "name_collision"
	// ErrorTypeNotFound signals a missing column, feature or stored object.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeCallback signals a failure inside a user-supplied function.
	ErrorTypeCallback ErrorType = "callback"
	// ErrorTypeResourceExhausted signals an exceeded concurrency bound or an
	// externally signaled rate limit.
	ErrorTypeResourceExhausted ErrorType = "resource_exhausted"
	// ErrorTypeValidation signals invalid arguments to an engine operation.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeIO signals a persistence or export failure.
	ErrorTypeIO ErrorType = "io"
	// ErrorTypeConfig signals invalid engine configuration.
	ErrorTypeConfig ErrorType = "config"
)

// Error represents a structured error with context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable returns true if the error is retryable. The engine never
// retries on its own; callers may use this to drive their own backoff.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == ErrorTypeResourceExhausted
}

// IsType checks if the error is of the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// captureStack captures the current call stack.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}

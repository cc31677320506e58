// Package errors provides structured error handling for polyload.
//
// Errors are categorized by ErrorType so callers can decide how far a
// failure propagates: sink failures stop at the fan-out boundary, parse
// failures follow the configured file policy, configuration failures are
// fatal before any batch is read.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents resource not found errors
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeParse represents malformed source rows
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeInsert represents write failures inside a sink
	ErrorTypeInsert ErrorType = "insert"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeQuery represents query execution errors
	ErrorTypeQuery ErrorType = "query"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
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

// ParseError reports a malformed row while streaming a source file.
type ParseError struct {
	File  string
	Line  int
	Cause error
}

// NewParseError creates a parse error for the given file position.
func NewParseError(file string, line int, cause error) *ParseError {
	return &ParseError{File: file, Line: line, Cause: cause}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s line %d: %v", ErrorTypeParse, e.File, e.Line, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// SinkError attributes a failure to one sink and one table or label.
// Kind is ErrorTypeConnection when the sink could not be reached and
// ErrorTypeInsert when the write itself failed.
type SinkError struct {
	Sink   string
	Target string
	Kind   ErrorType
	Cause  error
}

// NewSinkError creates an attributed sink failure.
func NewSinkError(sink, target string, kind ErrorType, cause error) *SinkError {
	return &SinkError{Sink: sink, Target: target, Kind: kind, Cause: cause}
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s: sink %s, target %s: %v", e.Kind, e.Sink, e.Target, e.Cause)
}

func (e *SinkError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if the error is of a transient category.
// Nothing in polyload retries automatically; this is for classification
// in logs and summaries only.
func IsRetryable(err error) bool {
	var se *SinkError
	if errors.As(err, &se) {
		return se.Kind == ErrorTypeConnection || se.Kind == ErrorTypeTimeout
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var pe *ParseError
	if errType == ErrorTypeParse && errors.As(err, &pe) {
		return true
	}
	var se *SinkError
	if errors.As(err, &se) && se.Kind == errType {
		return true
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// As is errors.As, re-exported so callers need a single errors import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is errors.Is, re-exported so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Join is errors.Join, re-exported so callers need a single errors import.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// captureStack captures the current call stack
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

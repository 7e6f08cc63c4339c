// Package errors provides structured error handling for the tool-calling
// runtime. It defines typed errors that carry a wire-level error code and
// rich context for debugging and programmatic handling, plus the recovery
// classifier used by retrying callers.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"
)

// Category represents the kind of an error for classification and handling
type Category string

const (
	CategoryConnection    Category = "connection"
	CategoryServer        Category = "server"
	CategoryAuth          Category = "auth"
	CategoryValidation    Category = "validation"
	CategorySerialization Category = "serialization"
	CategoryConfig        Category = "config"
	CategoryTimeout       Category = "timeout"
	CategoryCancelled     Category = "cancelled"
	CategoryCapability    Category = "capability"
	CategoryInternal      Category = "internal"
)

// Severity indicates how critical an error is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context provides additional context about where and when an error occurred
type Context struct {
	RequestID string            `json:"request_id,omitempty"`
	Method    string            `json:"method,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Component string            `json:"component,omitempty"`
	Operation string            `json:"operation,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// RuntimeError is the interface implemented by all errors produced by this
// module. Callers can rely on Category for recovery decisions and Code for
// wire-level reporting.
type RuntimeError interface {
	error

	// Code returns the wire-level error code
	Code() int

	// Message returns a human-readable error message
	Message() string

	// Details returns detailed technical description for debugging
	Details() string

	// Data returns structured error data for programmatic handling
	Data() interface{}

	// Category returns the error category for classification
	Category() Category

	// Severity returns the error severity level
	Severity() Severity

	// Context returns the error context information
	Context() *Context

	// WithContext returns a new error with the provided context
	WithContext(ctx *Context) RuntimeError

	// WithDetail returns a new error with additional detail
	WithDetail(detail string) RuntimeError

	// WithData returns a new error with structured data
	WithData(data interface{}) RuntimeError

	// Unwrap returns the underlying error for error chain traversal
	Unwrap() error
}

type baseError struct {
	code     int
	message  string
	details  string
	data     interface{}
	category Category
	severity Severity
	context  *Context
	cause    error
}

func (e *baseError) Error() string {
	if e.details != "" {
		return fmt.Sprintf("%s: %s", e.message, e.details)
	}
	return e.message
}

func (e *baseError) Code() int          { return e.code }
func (e *baseError) Message() string    { return e.message }
func (e *baseError) Details() string    { return e.details }
func (e *baseError) Data() interface{}  { return e.data }
func (e *baseError) Category() Category { return e.category }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) Context() *Context  { return e.context }

// WithContext returns a new error with the provided context
func (e *baseError) WithContext(ctx *Context) RuntimeError {
	newErr := *e
	newErr.context = ctx
	return &newErr
}

// WithDetail returns a new error with additional detail
func (e *baseError) WithDetail(detail string) RuntimeError {
	newErr := *e
	if newErr.details != "" {
		newErr.details = fmt.Sprintf("%s; %s", newErr.details, detail)
	} else {
		newErr.details = detail
	}
	return &newErr
}

// WithData returns a new error with structured data
func (e *baseError) WithData(data interface{}) RuntimeError {
	newErr := *e
	newErr.data = data
	return &newErr
}

// Unwrap returns the underlying error
func (e *baseError) Unwrap() error { return e.cause }

// MarshalJSON implements json.Marshaler for baseError
func (e *baseError) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"code":     e.code,
		"message":  e.message,
		"category": string(e.category),
		"severity": string(e.severity),
	}
	if e.details != "" {
		out["details"] = e.details
	}
	if e.data != nil {
		out["data"] = e.data
	}
	if e.context != nil {
		out["context"] = e.context
	}
	if e.cause != nil {
		out["cause"] = e.cause.Error()
	}
	return json.Marshal(out)
}

// New creates a new RuntimeError with the specified parameters
func New(code int, message string, category Category, severity Severity) RuntimeError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		context:  &Context{Timestamp: time.Now()},
	}
}

// Newf creates a new RuntimeError with a formatted message
func Newf(code int, category Category, severity Severity, format string, args ...interface{}) RuntimeError {
	return &baseError{
		code:     code,
		message:  fmt.Sprintf(format, args...),
		category: category,
		severity: severity,
		context:  &Context{Timestamp: time.Now()},
	}
}

// Wrap wraps an existing error as a RuntimeError
func Wrap(err error, code int, message string, category Category, severity Severity) RuntimeError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		cause:    err,
		context:  &Context{Timestamp: time.Now()},
	}
}

// AsRuntimeError extracts a RuntimeError from any error, traversing wrapped
// error chains.
func AsRuntimeError(err error) (RuntimeError, bool) {
	if err == nil {
		return nil, false
	}
	var re RuntimeError
	if stderrors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsCategory checks if an error is of a specific category
func IsCategory(err error, category Category) bool {
	if re, ok := AsRuntimeError(err); ok {
		return re.Category() == category
	}
	return false
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code int) bool {
	if re, ok := AsRuntimeError(err); ok {
		return re.Code() == code
	}
	return false
}

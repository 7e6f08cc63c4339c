package errors

import (
	"fmt"
	"time"
)

// TransportErrorData contains structured data for transport-related errors
type TransportErrorData struct {
	Transport  string        `json:"transport"`
	Operation  string        `json:"operation,omitempty"`
	Endpoint   string        `json:"endpoint,omitempty"`
	Retryable  bool          `json:"retryable"`
	StatusCode int           `json:"status_code,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

// ConnectionError creates an error for an unreachable transport, a dead
// process, or a closed stream.
func ConnectionError(transport, reason string, cause error) RuntimeError {
	message := fmt.Sprintf("%s connection error: %s", transport, reason)
	return Wrap(cause, CodeConnectionFailed, message, CategoryConnection, SeverityError).
		WithData(&TransportErrorData{
			Transport: transport,
			Retryable: true,
			Reason:    reason,
		})
}

// ConnectionLost creates an error for a connection dropped mid-operation
func ConnectionLost(transport, operation string, cause error) RuntimeError {
	message := fmt.Sprintf("%s connection lost during %s", transport, operation)
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}
	return Wrap(cause, CodeConnectionLost, message, CategoryConnection, SeverityError).
		WithData(&TransportErrorData{
			Transport: transport,
			Operation: operation,
			Retryable: true,
		})
}

// ConnectionTimeout creates an error for a connection that timed out
func ConnectionTimeout(transport, endpoint string, timeout time.Duration) RuntimeError {
	message := fmt.Sprintf("connection timeout via %s after %s", transport, timeout)
	if endpoint != "" {
		message = fmt.Sprintf("connection timeout to %s via %s after %s", endpoint, transport, timeout)
	}
	return New(CodeConnectionTimeout, message, CategoryConnection, SeverityError).
		WithData(&TransportErrorData{
			Transport: transport,
			Endpoint:  endpoint,
			Retryable: true,
			Timeout:   timeout,
		})
}

// ServerError creates an error for a remote endpoint that returned a failure
// status. The status code and response body are preserved for diagnosis.
func ServerError(transport string, statusCode int, body string) RuntimeError {
	message := fmt.Sprintf("%s server returned status %d", transport, statusCode)
	return New(CodeServerError, message, CategoryServer, SeverityError).
		WithDetail(body).
		WithData(&TransportErrorData{
			Transport:  transport,
			Retryable:  true,
			StatusCode: statusCode,
		})
}

// AuthenticationError creates an error for missing or rejected credentials
func AuthenticationError(reason string) RuntimeError {
	return New(CodeAuthRequired, fmt.Sprintf("authentication failed: %s", reason),
		CategoryAuth, SeverityError)
}

// AuthorizationError creates an error for a caller lacking permission or a
// token that could not be resolved.
func AuthorizationError(reason string) RuntimeError {
	return New(CodeUnauthorized, reason, CategoryAuth, SeverityError)
}

// PermissionDenied creates an error for an RBAC check failure
func PermissionDenied(userID, permission string) RuntimeError {
	return New(CodeInsufficientPerms,
		fmt.Sprintf("user %s lacks permission %s", userID, permission),
		CategoryAuth, SeverityError)
}

// ValidationError creates an error for a malformed method or envelope
func ValidationError(reason string) RuntimeError {
	return New(CodeValidationError, reason, CategoryValidation, SeverityError)
}

// InvalidMethod creates an error for a method name that fails validation
func InvalidMethod(reason string) RuntimeError {
	return New(CodeInvalidMethod, fmt.Sprintf("invalid method name: %s", reason),
		CategoryValidation, SeverityError)
}

// SerializationError creates an error for malformed JSON
func SerializationError(operation string, cause error) RuntimeError {
	message := fmt.Sprintf("serialization failed during %s", operation)
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}
	return Wrap(cause, CodeSerialization, message, CategorySerialization, SeverityError)
}

// ConfigError creates an error for a missing or invalid configuration
// section. Raised at construction time so it never reaches a hot path.
func ConfigError(section string) RuntimeError {
	return New(CodeConfigMissing, fmt.Sprintf("%s config required", section),
		CategoryConfig, SeverityCritical)
}

// CapabilityError creates an error for an operation a transport does not
// support (for example Receive on the HTTP transport).
func CapabilityError(transport, operation string) RuntimeError {
	return New(CodeCapabilityUnsupported,
		fmt.Sprintf("%s transport does not support %s", transport, operation),
		CategoryCapability, SeverityError)
}

// OperationTimeout creates an error for a tool call that exceeded its deadline
func OperationTimeout(tool string, timeout time.Duration) RuntimeError {
	return New(CodeOperationTimeout,
		fmt.Sprintf("tool %s timed out after %s", tool, timeout),
		CategoryTimeout, SeverityError)
}

// OperationCancelled creates an error for a cancelled tool call
func OperationCancelled(tool string) RuntimeError {
	return New(CodeOperationCancelled, fmt.Sprintf("tool %s cancelled", tool),
		CategoryCancelled, SeverityInfo)
}

// PoolExhausted creates an error for an acquire that found no free connection
func PoolExhausted(serverID string, timeout time.Duration) RuntimeError {
	return New(CodePoolExhausted,
		fmt.Sprintf("no connection for %s within %s", serverID, timeout),
		CategoryTimeout, SeverityError)
}

// PoolClosed creates an error for operations on a closed pool
func PoolClosed() RuntimeError {
	return New(CodePoolClosed, "connection pool is closed", CategoryInternal, SeverityError)
}

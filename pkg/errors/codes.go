package errors

// JSON-RPC 2.0 standard error codes
const (
	// CodeParseError indicates invalid JSON was received
	CodeParseError int = -32700

	// CodeInvalidRequest indicates the payload is not a valid request object
	CodeInvalidRequest int = -32600

	// CodeMethodNotFound indicates the method does not exist
	CodeMethodNotFound int = -32601

	// CodeInvalidParams indicates invalid method parameter(s)
	CodeInvalidParams int = -32602

	// CodeInternalError indicates an internal protocol error
	CodeInternalError int = -32603
)

// Runtime-specific error codes, grouped by concern
const (
	// Authentication and authorization errors (-32100 to -32199)
	CodeUnauthorized      int = -32100 // Caller is not authorized
	CodeAuthRequired      int = -32101 // Authentication required
	CodeInvalidToken      int = -32102 // Invalid authentication token
	CodeTokenExpired      int = -32103 // Authentication token expired
	CodeInsufficientPerms int = -32104 // Insufficient permissions

	// Operation errors (-32300 to -32399)
	CodeOperationCancelled int = -32300 // Operation was cancelled
	CodeOperationTimeout   int = -32301 // Operation timed out
	CodeOperationFailed    int = -32302 // Operation failed

	// Capability errors (-32400 to -32499)
	CodeCapabilityUnsupported int = -32400 // Transport does not support the operation

	// Transport errors (-32500 to -32599)
	CodeTransportError    int = -32500 // Generic transport error
	CodeConnectionFailed  int = -32501 // Failed to establish connection
	CodeConnectionLost    int = -32502 // Connection lost during operation
	CodeConnectionTimeout int = -32503 // Connection timed out

	// Remote server errors (-32600 range is taken; use -32050s)
	CodeServerError int = -32050 // Remote endpoint returned a failure status

	// Validation errors (-32750 to -32799)
	CodeValidationError  int = -32750 // Generic validation error
	CodeInvalidMethod    int = -32751 // Malformed method name
	CodePayloadTooDeep   int = -32752 // Payload nesting exceeds the depth cap
	CodeSerialization    int = -32753 // Malformed JSON payload
	CodeEnvelopeMismatch int = -32754 // Envelope type does not match payload

	// Configuration errors (-32850 to -32899)
	CodeConfigError   int = -32850 // Missing or invalid configuration section
	CodeConfigMissing int = -32851 // Required configuration section absent

	// Pool errors (-32860 to -32869)
	CodePoolExhausted int = -32860 // No pooled connection became available
	CodePoolClosed    int = -32861 // Pool has been closed
)

// Package toolgrid provides a Golang runtime for client-side tool calling
package toolgrid

import (
	"github.com/toolgrid/toolgrid-go/pkg/auth"
	"github.com/toolgrid/toolgrid-go/pkg/executor"
	"github.com/toolgrid/toolgrid-go/pkg/pool"
	"github.com/toolgrid/toolgrid-go/pkg/protocol"
	"github.com/toolgrid/toolgrid-go/pkg/transport"
)

// Version represents the current version of the runtime
const Version = "1.0.0"

// These exports provide direct access to the core runtime components
var (
	// NewExecutor creates a new tool executor
	NewExecutor = executor.New

	// NewTransport builds a transport from a declarative configuration
	NewTransport = transport.New

	// NewStdioTransport creates a new stdio transport
	NewStdioTransport = transport.NewStdioTransport

	// NewHTTPTransport creates a new HTTP transport
	NewHTTPTransport = transport.NewHTTPTransport

	// NewSSETransport creates a new server-push stream transport
	NewSSETransport = transport.NewSSETransport

	// NewPool creates a bounded connection pool
	NewPool = pool.New

	// NewRBACManager creates a role-based access control manager
	NewRBACManager = auth.NewRBACManager

	// NewTokenStore creates an in-memory OAuth2 token store
	NewTokenStore = auth.NewTokenStore
)

// Envelope constructors
var (
	NewRequest      = protocol.NewRequest
	NewResponse     = protocol.NewResponse
	NewNotification = protocol.NewNotification
	NewErrorMessage = protocol.NewError
)

// Transport type constants
const (
	TransportTypeStdio = transport.TransportTypeStdio
	TransportTypeHTTP  = transport.TransportTypeHTTP
	TransportTypeSSE   = transport.TransportTypeSSE
)

// Execution outcomes
const (
	OutcomeSuccess = executor.OutcomeSuccess
	OutcomeDenied  = executor.OutcomeDenied
	OutcomeTimeout = executor.OutcomeTimeout
	OutcomeFailed  = executor.OutcomeFailed
)

// Package transport provides a config-driven transport layer for tool-calling
// communication.
//
// Three transports are supported behind one interface: a stdio transport that
// owns a child process, an HTTP transport for synchronous request/response
// and fire-and-forget notifications, and a receive-only server-push stream
// transport. Transports are built from a declarative Config via New, which
// fails fast when the sub-config matching the transport type is absent.
package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/toolgrid/toolgrid-go/pkg/auth"
	"github.com/toolgrid/toolgrid-go/pkg/errors"
	"github.com/toolgrid/toolgrid-go/pkg/logging"
	"github.com/toolgrid/toolgrid-go/pkg/protocol"
)

// Transport is a channel abstraction capable of sending and/or receiving
// envelopes. Implementations differ in capability: the stdio transport is
// bidirectional, the HTTP transport is send-only, and the server-push stream
// transport is receive-only. Unsupported operations return a capability
// error rather than blocking or panicking.
type Transport interface {
	// Send transmits an envelope. Synchronous request/response transports
	// (HTTP) return the terminal reply; transports whose replies arrive
	// through Receive return a nil envelope on success.
	Send(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error)

	// Receive blocks until the next inbound envelope is available
	Receive(ctx context.Context) (*protocol.Envelope, error)

	// IsConnected reports transport liveness without blocking
	IsConnected() bool

	// Close releases the transport's resources. Close is idempotent.
	Close() error
}

// TransportType identifies the transport implementation
type TransportType string

const (
	TransportTypeStdio TransportType = "stdio"
	TransportTypeHTTP  TransportType = "http"
	TransportTypeSSE   TransportType = "sse"
)

// StdioConfig configures the child-process stdio transport
type StdioConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// HTTPConfig configures the HTTP transport
type HTTPConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout,omitempty"`
	Auth    *auth.Config  `json:"auth_config,omitempty"`
}

// SSEConfig configures the server-push stream transport
type SSEConfig struct {
	URL               string        `json:"url"`
	ReconnectInterval time.Duration `json:"reconnect_interval,omitempty"`
	QueueSize         int           `json:"queue_size,omitempty"`
}

// Config is the discriminated transport configuration: exactly the sub-config
// matching Type must be present.
type Config struct {
	Type  TransportType `json:"transport_type"`
	Stdio *StdioConfig  `json:"stdio_config,omitempty"`
	HTTP  *HTTPConfig   `json:"http_config,omitempty"`
	SSE   *SSEConfig    `json:"sse_config,omitempty"`
}

// options carries cross-transport dependencies injected at construction
type options struct {
	logger     logging.Logger
	validator  auth.TokenValidator
	httpClient *http.Client
}

// Option configures a transport at construction time
type Option func(*options)

// WithLogger injects a structured logger
func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTokenValidator injects the OAuth2 token validator used to resolve
// per-request access tokens.
func WithTokenValidator(v auth.TokenValidator) Option {
	return func(o *options) { o.validator = v }
}

// WithHTTPClient overrides the HTTP client used by the HTTP and SSE
// transports (testing, custom TLS).
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func newOptions(opts []Option) *options {
	o := &options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New builds a concrete Transport from a declarative configuration. Every
// transport it returns is ready to use through the interface alone: the
// stdio transport has its child running and the stream transport is already
// streaming. A missing sub-config fails immediately with a config error
// naming the missing section; no partially constructed transport escapes.
func New(config Config, opts ...Option) (Transport, error) {
	o := newOptions(opts)

	switch config.Type {
	case TransportTypeStdio:
		if config.Stdio == nil {
			return nil, errors.ConfigError("stdio")
		}
		return newStdioTransport(config.Stdio, o)
	case TransportTypeHTTP:
		if config.HTTP == nil {
			return nil, errors.ConfigError("http")
		}
		return newHTTPTransport(config.HTTP, o)
	case TransportTypeSSE:
		if config.SSE == nil {
			return nil, errors.ConfigError("sse")
		}
		t, err := newSSETransport(config.SSE, o)
		if err != nil {
			return nil, err
		}
		if err := t.Connect(context.Background()); err != nil {
			_ = t.Close()
			return nil, err
		}
		return t, nil
	default:
		return nil, errors.New(errors.CodeConfigError,
			"unsupported transport type: "+string(config.Type),
			errors.CategoryConfig, errors.SeverityCritical)
	}
}

// DefaultConfig returns a transport configuration with sensible defaults for
// the given type. Callers still fill in the type-specific required fields.
func DefaultConfig(transportType TransportType) Config {
	config := Config{Type: transportType}
	switch transportType {
	case TransportTypeStdio:
		config.Stdio = &StdioConfig{}
	case TransportTypeHTTP:
		config.HTTP = &HTTPConfig{Timeout: 30 * time.Second}
	case TransportTypeSSE:
		config.SSE = &SSEConfig{
			ReconnectInterval: 3 * time.Second,
			QueueSize:         100,
		}
	}
	return config
}

// Package audit provides the audit event contract and a compliance finding
// store. The logger defines only the call surface; storage belongs to the
// injected sink.
package audit

import (
	"context"
	"time"

	"github.com/toolgrid/toolgrid-go/pkg/logging"
)

// Event types emitted by the runtime
const (
	EventToolExecution     = "tool_execution"
	EventPermissionCheck   = "permission_check"
	EventProtocolViolation = "protocol_violation"
)

// Event is one audit record
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Tool      string            `json:"tool,omitempty"`
	Success   bool              `json:"success"`
	Detail    string            `json:"detail,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Sink receives audit events. Implementations own durability; the runtime
// never buffers or retries on the sink's behalf.
type Sink interface {
	LogEvent(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) LogEvent(ctx context.Context, event Event) error { return f(ctx, event) }

// Logger forwards structured audit events to a sink. Sink failures are logged
// and swallowed so an unavailable sink never fails the audited operation.
type Logger struct {
	sink   Sink
	logger logging.Logger
}

// NewLogger creates an audit logger over the given sink. A nil sink produces
// a logger that drops every event.
func NewLogger(sink Sink, logger logging.Logger) *Logger {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Logger{sink: sink, logger: logger.WithComponent("audit")}
}

// LogToolExecution records the outcome of one tool invocation
func (l *Logger) LogToolExecution(ctx context.Context, tool, userID, sessionID string, success bool, detail string) {
	l.emit(ctx, Event{
		Type:      EventToolExecution,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		SessionID: sessionID,
		Tool:      tool,
		Success:   success,
		Detail:    detail,
	})
}

// LogPermissionCheck records an RBAC decision
func (l *Logger) LogPermissionCheck(ctx context.Context, tool, userID string, granted bool, reason string) {
	l.emit(ctx, Event{
		Type:      EventPermissionCheck,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Tool:      tool,
		Success:   granted,
		Detail:    reason,
	})
}

// LogProtocolViolation records a malformed or out-of-contract message
func (l *Logger) LogProtocolViolation(ctx context.Context, message, userID, reason string) {
	l.emit(ctx, Event{
		Type:      EventProtocolViolation,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Success:   false,
		Detail:    reason,
		Fields:    map[string]string{"message": message},
	})
}

func (l *Logger) emit(ctx context.Context, event Event) {
	if l.sink == nil {
		return
	}
	if err := l.sink.LogEvent(ctx, event); err != nil {
		l.logger.Warn("audit sink rejected event",
			logging.String("event_type", event.Type),
			logging.ErrorField(err))
	}
}

// Package executor runs single tool invocations: a permission check, a
// request over a transport, and a reply raced against the caller's deadline,
// with every outcome audited.
package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/toolgrid/toolgrid-go/pkg/audit"
	"github.com/toolgrid/toolgrid-go/pkg/auth"
	"github.com/toolgrid/toolgrid-go/pkg/errors"
	"github.com/toolgrid/toolgrid-go/pkg/logging"
	"github.com/toolgrid/toolgrid-go/pkg/observability"
	"github.com/toolgrid/toolgrid-go/pkg/protocol"
	"github.com/toolgrid/toolgrid-go/pkg/transport"
)

const defaultTimeout = 30 * time.Second

// Outcome classifies a completed execution. Denials and timeouts are
// distinguishable from generic failure so callers can retry a timeout but
// not a denial.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
	OutcomeTimeout Outcome = "timeout"
	OutcomeFailed  Outcome = "failed"
)

// ExecutionContext describes one tool invocation
type ExecutionContext struct {
	ToolName   string                 `json:"tool_name"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	UserID     string                 `json:"user_id"`
	SessionID  string                 `json:"session_id,omitempty"`
	Timeout    time.Duration          `json:"timeout,omitempty"`
	Metadata   map[string]string      `json:"metadata,omitempty"`
}

// ToolResult is the terminal result of one execution
type ToolResult struct {
	Outcome   Outcome         `json:"outcome"`
	Result    json.RawMessage `json:"result,omitempty"`
	Err       error           `json:"-"`
	RequestID string          `json:"request_id"`
	Duration  time.Duration   `json:"duration"`
}

// Success reports whether the execution produced a result
func (r *ToolResult) Success() bool { return r.Outcome == OutcomeSuccess }

// Executor composes a transport with RBAC and auditing
type Executor struct {
	transport transport.Transport
	rbac      *auth.RBACManager
	audit     *audit.Logger
	logger    logging.Logger
	metrics   *observability.Metrics
	tracing   *observability.TracingProvider
}

// Option configures an executor at construction time
type Option func(*Executor)

// WithLogger injects a structured logger
func WithLogger(logger logging.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithMetrics wires execution counters and latency into a metrics provider
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithTracing starts a client span per execution
func WithTracing(tp *observability.TracingProvider) Option {
	return func(e *Executor) { e.tracing = tp }
}

// New creates an executor. The transport and RBAC manager are required; the
// audit logger may be nil when no sink is attached.
func New(t transport.Transport, rbac *auth.RBACManager, auditLogger *audit.Logger, opts ...Option) (*Executor, error) {
	if t == nil {
		return nil, errors.ConfigError("executor").WithDetail("transport must not be nil")
	}
	if rbac == nil {
		return nil, errors.ConfigError("executor").WithDetail("rbac manager must not be nil")
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger(nil, nil)
	}

	e := &Executor{
		transport: t,
		rbac:      rbac,
		audit:     auditLogger,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("executor")
	return e, nil
}

// Execute runs one tool invocation. The permission check, the transport
// send, and the reply race against the deadline are each independently
// observable through audit records and metrics. A tool_execution record is
// emitted on every path.
func (e *Executor) Execute(ctx context.Context, execCtx *ExecutionContext) *ToolResult {
	start := time.Now()

	if e.tracing != nil {
		spanCtx, span := e.tracing.StartToolSpan(ctx, execCtx.ToolName, execCtx.UserID)
		defer span.End()
		ctx = spanCtx
	}

	result := e.execute(ctx, execCtx)
	result.Duration = time.Since(start)

	if e.metrics != nil {
		e.metrics.RecordToolCall(execCtx.ToolName, string(result.Outcome), result.Duration)
	}
	if e.tracing != nil && result.Err != nil {
		e.tracing.RecordError(ctx, result.Err)
	}

	detail := ""
	if result.Err != nil {
		detail = result.Err.Error()
	}
	e.audit.LogToolExecution(ctx, execCtx.ToolName, execCtx.UserID, execCtx.SessionID,
		result.Success(), detail)

	e.logger.Debug("tool execution finished",
		logging.String("tool", execCtx.ToolName),
		logging.String("user_id", execCtx.UserID),
		logging.String("outcome", string(result.Outcome)),
		logging.Duration("duration", result.Duration))

	return result
}

func (e *Executor) execute(ctx context.Context, execCtx *ExecutionContext) *ToolResult {
	permission := "tool:" + execCtx.ToolName
	granted := e.rbac.CheckUserPermission(execCtx.UserID, permission)

	if e.metrics != nil {
		e.metrics.RecordPermissionCheck(granted)
	}
	reason := "granted"
	if !granted {
		reason = "no role grants " + permission
	}
	e.audit.LogPermissionCheck(ctx, execCtx.ToolName, execCtx.UserID, granted, reason)

	if !granted {
		return &ToolResult{
			Outcome: OutcomeDenied,
			Err:     errors.PermissionDenied(execCtx.UserID, permission),
		}
	}

	requestID := uuid.New().String()
	env, err := protocol.NewRequest(requestID, execCtx.ToolName, execCtx.Parameters)
	if err != nil {
		return &ToolResult{Outcome: OutcomeFailed, Err: err, RequestID: requestID}
	}

	timeout := execCtx.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type replyResult struct {
		env *protocol.Envelope
		err error
	}
	replyCh := make(chan replyResult, 1)

	// The send and the reply wait run off to the side so a deadline expiry
	// returns promptly. cancel unblocks the transport call; the buffered
	// channel lets the goroutine finish either way.
	go func() {
		reply, err := e.transport.Send(callCtx, env)
		if err == nil && reply == nil {
			reply, err = e.awaitReply(callCtx, requestID)
		}
		replyCh <- replyResult{reply, err}
	}()

	select {
	case r := <-replyCh:
		if r.err != nil {
			return e.failure(execCtx, requestID, timeout, r.err)
		}
		return e.fromReply(requestID, r.env)
	case <-callCtx.Done():
		return e.failure(execCtx, requestID, timeout, callCtx.Err())
	}
}

// awaitReply drains inbound envelopes until one correlates with the request.
// Unrelated envelopes are logged and skipped since no ordering is guaranteed
// between concurrent callers of the same transport.
func (e *Executor) awaitReply(ctx context.Context, requestID string) (*protocol.Envelope, error) {
	for {
		env, err := e.transport.Receive(ctx)
		if err != nil {
			return nil, err
		}
		if env.CorrelationID() == requestID {
			return env, nil
		}
		e.logger.Debug("skipping uncorrelated envelope",
			logging.String("want", requestID),
			logging.String("got", env.CorrelationID()),
			logging.String("type", string(env.Type)))
	}
}

// fromReply converts a terminal reply envelope into a result
func (e *Executor) fromReply(requestID string, env *protocol.Envelope) *ToolResult {
	switch env.Type {
	case protocol.TypeResponse:
		return &ToolResult{
			Outcome:   OutcomeSuccess,
			Result:    env.Response.Result,
			RequestID: requestID,
		}
	case protocol.TypeError:
		return &ToolResult{
			Outcome:   OutcomeFailed,
			RequestID: requestID,
			Err: errors.New(env.Error.Code, env.Error.Message,
				errors.CategoryServer, errors.SeverityError),
		}
	default:
		return &ToolResult{
			Outcome:   OutcomeFailed,
			RequestID: requestID,
			Err: errors.ValidationError(
				"reply envelope has type " + string(env.Type)),
		}
	}
}

// failure maps an error to the timeout outcome when the deadline expired and
// the generic failure outcome otherwise.
func (e *Executor) failure(execCtx *ExecutionContext, requestID string, timeout time.Duration, err error) *ToolResult {
	switch {
	case err == context.DeadlineExceeded || errors.IsCategory(err, errors.CategoryTimeout):
		return &ToolResult{
			Outcome:   OutcomeTimeout,
			RequestID: requestID,
			Err:       errors.OperationTimeout(execCtx.ToolName, timeout),
		}
	case err == context.Canceled:
		return &ToolResult{
			Outcome:   OutcomeFailed,
			RequestID: requestID,
			Err:       errors.OperationCancelled(execCtx.ToolName),
		}
	default:
		return &ToolResult{Outcome: OutcomeFailed, RequestID: requestID, Err: err}
	}
}

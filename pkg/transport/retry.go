package transport

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/toolgrid/toolgrid-go/pkg/errors"
	"github.com/toolgrid/toolgrid-go/pkg/logging"
	"github.com/toolgrid/toolgrid-go/pkg/protocol"
)

// RetryPolicy configures the retrying transport wrapper
type RetryPolicy struct {
	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`

	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
}

// CircuitBreakerConfig configures the circuit breaker pattern
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled"`
	FailureThreshold int           `json:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	Timeout          time.Duration `json:"timeout"`
}

// DefaultRetryPolicy returns a retry policy with sensible defaults
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          60 * time.Second,
		},
	}
}

// RetryTransport decorates a Transport with retry logic and a circuit
// breaker. Only failures the recovery classifier maps to Retry are retried;
// authentication, validation, serialization, and configuration failures
// surface immediately.
type RetryTransport struct {
	next    Transport
	policy  RetryPolicy
	breaker *circuitBreaker
	logger  logging.Logger
}

// NewRetryTransport wraps next with the given retry policy
func NewRetryTransport(next Transport, policy RetryPolicy, opts ...Option) *RetryTransport {
	o := newOptions(opts)
	rt := &RetryTransport{
		next:   next,
		policy: policy,
		logger: o.logger.WithComponent("retry_transport"),
	}
	if policy.CircuitBreaker.Enabled {
		rt.breaker = newCircuitBreaker(policy.CircuitBreaker)
	}
	return rt
}

// Send retries the wrapped Send on transient failure with exponential backoff
func (rt *RetryTransport) Send(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error) {
	if rt.breaker != nil && !rt.breaker.allow() {
		return nil, errors.New(errors.CodeTransportError, "circuit breaker is open",
			errors.CategoryConnection, errors.SeverityError)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = rt.policy.InitialDelay
	bo.MaxInterval = rt.policy.MaxDelay
	bo.Multiplier = rt.policy.BackoffFactor
	bo.MaxElapsedTime = 0

	var lastErr error
	attempts := rt.policy.MaxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if attempt > 0 {
			select {
			case <-time.After(bo.NextBackOff()):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		reply, err := rt.next.Send(ctx, env)
		if err == nil {
			if rt.breaker != nil {
				rt.breaker.recordSuccess()
			}
			return reply, nil
		}

		lastErr = err
		if errors.Classify(err) == errors.StrategyFail {
			// Rejections like auth or validation failures say nothing about
			// endpoint health, so they do not count toward opening the
			// breaker.
			return nil, err
		}
		if rt.breaker != nil {
			rt.breaker.recordFailure()
		}

		rt.logger.Warn("retrying send after transient failure",
			logging.Int("attempt", attempt+1),
			logging.Int("max_attempts", attempts),
			logging.ErrorField(err))
	}

	return nil, errors.Wrap(lastErr, errors.CodeOperationFailed,
		"send failed after retries exhausted",
		errors.CategoryConnection, errors.SeverityError)
}

// Receive delegates to the wrapped transport
func (rt *RetryTransport) Receive(ctx context.Context) (*protocol.Envelope, error) {
	return rt.next.Receive(ctx)
}

// IsConnected delegates to the wrapped transport
func (rt *RetryTransport) IsConnected() bool { return rt.next.IsConnected() }

// Close delegates to the wrapped transport
func (rt *RetryTransport) Close() error { return rt.next.Close() }

// circuitBreaker implements a closed/open/half-open breaker
type circuitBreaker struct {
	config    CircuitBreakerConfig
	mu        sync.Mutex
	state     circuitState
	failures  int
	successes int
	openedAt  time.Time
}

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

func newCircuitBreaker(config CircuitBreakerConfig) *circuitBreaker {
	return &circuitBreaker{config: config, state: circuitClosed}
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitClosed, circuitHalfOpen:
		return true
	case circuitOpen:
		if time.Since(cb.openedAt) > cb.config.Timeout {
			cb.state = circuitHalfOpen
			cb.successes = 0
			return true
		}
		return false
	}
	return false
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == circuitHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = circuitClosed
		}
	}
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == circuitHalfOpen {
		cb.state = circuitOpen
		cb.openedAt = time.Now()
		return
	}
	if cb.failures >= cb.config.FailureThreshold {
		cb.state = circuitOpen
		cb.openedAt = time.Now()
	}
}

// Package pool provides a bounded cache of live transports keyed by server
// identity. The pool is the single owner of pooled transports: a caller
// holding a PooledConnection drives it exclusively until Release, and a
// background sweep closes connections idle beyond the configured limit.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/toolgrid/toolgrid-go/pkg/errors"
	"github.com/toolgrid/toolgrid-go/pkg/logging"
	"github.com/toolgrid/toolgrid-go/pkg/observability"
	"github.com/toolgrid/toolgrid-go/pkg/transport"
)

// Config bounds the pool
type Config struct {
	// MaxConnections caps live connections across all servers. Zero means
	// the pool holds no connections and every acquire fails or times out.
	MaxConnections int `json:"max_connections"`

	// MinConnections is the floor the idle sweep will not evict below
	MinConnections int `json:"min_connections"`

	// MaxIdleTime evicts idle connections older than this
	MaxIdleTime time.Duration `json:"max_idle_time"`

	// ConnectionTimeout bounds each acquire call
	ConnectionTimeout time.Duration `json:"connection_timeout"`
}

// DefaultConfig returns a pool configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConnections:    10,
		MinConnections:    0,
		MaxIdleTime:       5 * time.Minute,
		ConnectionTimeout: 10 * time.Second,
	}
}

// Dialer creates a live transport for a server identity. The pool calls it
// when no idle connection is available and capacity remains.
type Dialer func(ctx context.Context, serverID string) (transport.Transport, error)

// PooledConnection wraps one live transport owned by the pool
type PooledConnection struct {
	serverID  string
	transport transport.Transport
	lastUsed  time.Time
	pool      *Pool
}

// ServerID returns the server identity this connection is keyed by
func (pc *PooledConnection) ServerID() string { return pc.serverID }

// Transport returns the underlying transport for the caller to drive
func (pc *PooledConnection) Transport() transport.Transport { return pc.transport }

// Release returns the connection to the pool's idle set
func (pc *PooledConnection) Release() { pc.pool.Release(pc) }

// Stats is a point-in-time snapshot of pool occupancy
type Stats struct {
	MaxConnections   int `json:"max_connections"`
	TotalConnections int `json:"total_connections"`
	IdleConnections  int `json:"idle_connections"`
}

// Pool is a bounded connection pool. Capacity is enforced with a token
// channel: creating a connection takes a token, destroying one returns it.
// A zero-capacity pool has no tokens, so acquisition can never succeed.
type Pool struct {
	config  Config
	dialer  Dialer
	logger  logging.Logger
	metrics *observability.Metrics

	tokens chan struct{}

	mu     sync.Mutex
	idle   map[string][]*PooledConnection
	total  int
	closed bool

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
	closeOnce   sync.Once
}

// Option configures a pool at construction time
type Option func(*Pool)

// WithLogger injects a structured logger
func WithLogger(logger logging.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// WithMetrics wires pool occupancy and acquire outcomes into a metrics provider
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// New creates a pool that dials connections on demand
func New(config Config, dialer Dialer, opts ...Option) (*Pool, error) {
	if dialer == nil {
		return nil, errors.ConfigError("pool").WithDetail("dialer must not be nil")
	}
	if config.MaxConnections < 0 {
		return nil, errors.ConfigError("pool").WithDetail("max_connections must not be negative")
	}
	if config.ConnectionTimeout == 0 {
		config.ConnectionTimeout = 10 * time.Second
	}
	if config.MaxIdleTime == 0 {
		config.MaxIdleTime = 5 * time.Minute
	}

	p := &Pool{
		config:    config,
		dialer:    dialer,
		logger:    logging.NewNop(),
		tokens:    make(chan struct{}, config.MaxConnections),
		idle:      make(map[string][]*PooledConnection),
		sweepDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("pool")

	for i := 0; i < config.MaxConnections; i++ {
		p.tokens <- struct{}{}
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	p.sweepCancel = cancel
	go p.sweep(sweepCtx)

	return p, nil
}

// Acquire returns a connection for the given server, reusing an idle one when
// available and dialing otherwise. It fails with a pool-exhausted timeout when
// no connection can be had within the configured connection timeout.
func (p *Pool) Acquire(ctx context.Context, serverID string) (*PooledConnection, error) {
	if pc := p.takeIdle(serverID); pc != nil {
		p.recordAcquire("reused")
		return pc, nil
	}

	timer := time.NewTimer(p.config.ConnectionTimeout)
	defer timer.Stop()

	select {
	case <-p.tokens:
	case <-timer.C:
		p.recordAcquire("timeout")
		return nil, errors.PoolExhausted(serverID, p.config.ConnectionTimeout)
	case <-ctx.Done():
		p.recordAcquire("cancelled")
		return nil, ctx.Err()
	}

	// Another idle connection may have been released while we waited.
	if pc := p.takeIdle(serverID); pc != nil {
		p.tokens <- struct{}{}
		p.recordAcquire("reused")
		return pc, nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.tokens <- struct{}{}
		p.recordAcquire("closed")
		return nil, errors.PoolClosed()
	}
	p.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, p.config.ConnectionTimeout)
	defer cancel()

	t, err := p.dialer(dialCtx, serverID)
	if err != nil {
		p.tokens <- struct{}{}
		p.recordAcquire("dial_failed")
		return nil, err
	}

	p.mu.Lock()
	p.total++
	p.publishGaugesLocked()
	p.mu.Unlock()

	p.logger.Debug("dialed pooled connection", logging.String("server_id", serverID))
	p.recordAcquire("dialed")

	return &PooledConnection{
		serverID:  serverID,
		transport: t,
		lastUsed:  time.Now(),
		pool:      p,
	}, nil
}

// Release returns a connection to the idle set, refreshing its last-used
// timestamp. Connections whose transport died, and releases after Close, are
// destroyed instead of cached.
func (p *Pool) Release(pc *PooledConnection) {
	if pc == nil || pc.pool != p {
		return
	}

	// Liveness probes can block (the HTTP transport issues a health check),
	// so evaluate outside the lock.
	alive := pc.transport.IsConnected()

	p.mu.Lock()
	if p.closed || !alive {
		p.mu.Unlock()
		p.destroy(pc)
		return
	}
	pc.lastUsed = time.Now()
	p.idle[pc.serverID] = append(p.idle[pc.serverID], pc)
	p.publishGaugesLocked()
	p.mu.Unlock()
}

// Stats reports pool occupancy. With no connections created it reflects the
// configuration exactly.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	idle := 0
	for _, conns := range p.idle {
		idle += len(conns)
	}
	return Stats{
		MaxConnections:   p.config.MaxConnections,
		TotalConnections: p.total,
		IdleConnections:  idle,
	}
}

// Close stops the idle sweep and closes every idle connection. Connections
// still held by callers are destroyed on release.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.sweepCancel()
		<-p.sweepDone

		p.mu.Lock()
		p.closed = true
		evicted := make([]*PooledConnection, 0)
		for _, conns := range p.idle {
			evicted = append(evicted, conns...)
		}
		p.idle = make(map[string][]*PooledConnection)
		p.mu.Unlock()

		for _, pc := range evicted {
			p.destroy(pc)
		}
	})
	return nil
}

// takeIdle pops the most recently used live idle connection for a server.
// Dead idle connections found along the way are destroyed.
func (p *Pool) takeIdle(serverID string) *PooledConnection {
	for {
		p.mu.Lock()
		conns := p.idle[serverID]
		if len(conns) == 0 {
			delete(p.idle, serverID)
			p.mu.Unlock()
			return nil
		}

		pc := conns[len(conns)-1]
		conns = conns[:len(conns)-1]
		if len(conns) == 0 {
			delete(p.idle, serverID)
		} else {
			p.idle[serverID] = conns
		}
		p.publishGaugesLocked()
		p.mu.Unlock()

		if !pc.transport.IsConnected() {
			p.destroy(pc)
			continue
		}

		pc.lastUsed = time.Now()
		return pc
	}
}

// destroy closes a connection's transport and returns its capacity token
func (p *Pool) destroy(pc *PooledConnection) {
	if err := pc.transport.Close(); err != nil {
		p.logger.Warn("failed to close pooled transport",
			logging.String("server_id", pc.serverID),
			logging.ErrorField(err))
	}

	p.mu.Lock()
	p.total--
	p.publishGaugesLocked()
	p.mu.Unlock()

	select {
	case p.tokens <- struct{}{}:
	default:
		// Token channel is full only if destroy was called twice for the
		// same connection; dropping the token keeps capacity conservative.
	}
}

// sweep periodically evicts idle connections older than the idle limit
func (p *Pool) sweep(ctx context.Context) {
	defer close(p.sweepDone)

	interval := p.config.MaxIdleTime / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evictIdle()
		case <-ctx.Done():
			return
		}
	}
}

// evictIdle removes and closes idle connections past MaxIdleTime, keeping at
// least MinConnections alive.
func (p *Pool) evictIdle() {
	cutoff := time.Now().Add(-p.config.MaxIdleTime)
	var evicted []*PooledConnection

	p.mu.Lock()
	for serverID, conns := range p.idle {
		kept := conns[:0]
		for _, pc := range conns {
			if pc.lastUsed.Before(cutoff) && p.total-len(evicted) > p.config.MinConnections {
				evicted = append(evicted, pc)
			} else {
				kept = append(kept, pc)
			}
		}
		if len(kept) == 0 {
			delete(p.idle, serverID)
		} else {
			p.idle[serverID] = kept
		}
	}
	p.mu.Unlock()

	for _, pc := range evicted {
		p.logger.Debug("evicting idle connection",
			logging.String("server_id", pc.serverID),
			logging.Duration("idle", time.Since(pc.lastUsed)))
		p.destroy(pc)
	}
}

func (p *Pool) recordAcquire(outcome string) {
	if p.metrics != nil {
		p.metrics.RecordPoolAcquire(outcome)
	}
}

// publishGaugesLocked pushes occupancy gauges; callers hold p.mu
func (p *Pool) publishGaugesLocked() {
	if p.metrics == nil {
		return
	}
	idle := 0
	for _, conns := range p.idle {
		idle += len(conns)
	}
	p.metrics.SetPoolConnections(p.total, idle)
}

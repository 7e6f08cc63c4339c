package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/toolgrid/toolgrid-go/pkg/errors"
	"github.com/toolgrid/toolgrid-go/pkg/logging"
	"github.com/toolgrid/toolgrid-go/pkg/protocol"
)

// streamState tracks the per-instance lifecycle:
// unconnected → connecting → streaming → closed. A transient stream error
// moves streaming back to connecting while the background task retries.
type streamState int32

const (
	stateUnconnected streamState = iota
	stateConnecting
	stateStreaming
	stateClosed
)

// SSETransport is the receive-only server-push stream transport. Connect
// launches a background task that holds a long-lived GET open, splits the
// event stream on blank-line boundaries, and pushes each event's data payload
// into a bounded queue that Receive drains. The write end of the queue
// belongs exclusively to the background task, the read end to Receive.
type SSETransport struct {
	url       string
	client    *http.Client
	reconnect time.Duration
	logger    logging.Logger

	queue chan []byte
	state atomic.Int32

	mu        sync.Mutex // guards cancel and group across Connect/Close
	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
}

// NewSSETransport creates a server-push stream transport for the given URL
func NewSSETransport(url string, opts ...Option) (*SSETransport, error) {
	return newSSETransport(&SSEConfig{URL: url}, newOptions(opts))
}

func newSSETransport(config *SSEConfig, o *options) (*SSETransport, error) {
	if config.URL == "" {
		return nil, errors.ConfigError("sse").WithDetail("url must not be empty")
	}

	reconnect := config.ReconnectInterval
	if reconnect == 0 {
		reconnect = 3 * time.Second
	}
	queueSize := config.QueueSize
	if queueSize == 0 {
		queueSize = 100
	}

	client := o.httpClient
	if client == nil {
		// No client timeout: the GET is long-lived by design.
		client = &http.Client{}
	}

	return &SSETransport{
		url:       config.URL,
		client:    client,
		reconnect: reconnect,
		logger:    o.logger.WithComponent("sse_transport"),
		queue:     make(chan []byte, queueSize),
	}, nil
}

// Connect launches the background streaming task. The task retries with a
// fixed backoff on stream failure rather than terminating silently, and runs
// until ctx is cancelled or Close is called.
func (t *SSETransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch streamState(t.state.Load()) {
	case stateClosed:
		return errors.ConnectionError("sse", "transport closed", nil)
	case stateConnecting, stateStreaming:
		return nil
	}
	t.state.Store(int32(stateConnecting))

	streamCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	g, gctx := errgroup.WithContext(streamCtx)
	t.group = g
	g.Go(func() error { return t.streamLoop(gctx) })

	return nil
}

// streamLoop keeps one event stream open, reconnecting on transient failure
func (t *SSETransport) streamLoop(ctx context.Context) error {
	bo := backoff.NewConstantBackOff(t.reconnect)

	for {
		err := t.streamOnce(ctx)
		if ctx.Err() != nil || streamState(t.state.Load()) == stateClosed {
			return nil
		}

		t.state.Store(int32(stateConnecting))
		t.logger.Warn("event stream interrupted, reconnecting",
			logging.ErrorField(err),
			logging.Duration("backoff", t.reconnect))

		select {
		case <-time.After(bo.NextBackOff()):
		case <-ctx.Done():
			return nil
		}
	}
}

// streamOnce opens the long-lived GET and pumps events until the stream ends
func (t *SSETransport) streamOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return errors.ConnectionError("sse", "failed to build request", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.ConnectionError("sse", "failed to open stream", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errors.ServerError("sse", resp.StatusCode, resp.Status)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return errors.ConnectionError("sse",
			fmt.Sprintf("unexpected content type %q", resp.Header.Get("Content-Type")), nil)
	}

	t.state.Store(int32(stateStreaming))
	t.logger.Debug("event stream open", logging.String("url", t.url))

	reader := bufio.NewReader(resp.Body)
	var data bytes.Buffer

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return errors.ConnectionLost("sse", "read stream", err)
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			// Blank line terminates the event.
			if data.Len() > 0 {
				payload := make([]byte, data.Len())
				copy(payload, data.Bytes())
				data.Reset()

				select {
				case t.queue <- payload:
				case <-ctx.Done():
					return nil
				}
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// event:/id:/retry: fields and comments are ignored.
		}
	}
}

// Send always fails: this transport is receive-only
func (t *SSETransport) Send(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error) {
	return nil, errors.CapabilityError("sse", "send")
}

// Receive pulls the next event payload from the queue and parses it as an
// envelope. A malformed payload yields a serialization error for that call
// only; the queue continues to drain on subsequent calls.
func (t *SSETransport) Receive(ctx context.Context) (*protocol.Envelope, error) {
	switch streamState(t.state.Load()) {
	case stateUnconnected:
		return nil, errors.ConnectionError("sse", "not connected", nil)
	case stateClosed:
		return nil, errors.ConnectionError("sse", "transport closed", nil)
	}

	select {
	case payload := <-t.queue:
		return protocol.Unmarshal(payload)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// IsConnected reports whether the background streaming task exists
func (t *SSETransport) IsConnected() bool {
	s := streamState(t.state.Load())
	return s == stateConnecting || s == stateStreaming
}

// Close aborts the background task and stops the queue from refilling
func (t *SSETransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.state.Store(int32(stateClosed))
		cancel, group := t.cancel, t.group
		t.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if group != nil {
			_ = group.Wait()
		}
	})
	return nil
}

package transport

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/toolgrid/toolgrid-go/pkg/errors"
	"github.com/toolgrid/toolgrid-go/pkg/logging"
	"github.com/toolgrid/toolgrid-go/pkg/protocol"
)

// lineQueueSize bounds how far the reader pump may run ahead of Receive
const lineQueueSize = 16

// StdioTransport exclusively owns a child process and exchanges
// newline-delimited JSON envelopes over its stdin/stdout pipes. Stderr is
// inherited so server diagnostics stay visible.
//
// Writes are serialized under one lock. Reads are served by a single pump
// goroutine that owns the stdout pipe and feeds a channel, so Receive is
// cancellable: a caller that gives up on a context leaves the next envelope
// in the queue for the next caller instead of consuming it. The pump drains
// stdout to EOF before the child is reaped, so a reply written by a child
// that exits immediately afterwards is never lost. No ordering is guaranteed
// between envelopes written by different logical callers; pairing request N
// with response N across concurrent callers requires id correlation above
// this layer.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	writer *bufio.Writer
	logger logging.Logger

	writeMu sync.Mutex

	lines   chan []byte
	readErr error // set by the pump before lines is closed

	quit      chan struct{} // closed by Close to unblock the pump
	done      chan struct{} // closed when the child has been reaped
	closeOnce sync.Once
	closeErr  error
}

// NewStdioTransport spawns command with piped stdin/stdout and inherited
// stderr. It fails with a connection error if the process cannot be started.
func NewStdioTransport(command string, args []string, opts ...Option) (*StdioTransport, error) {
	return newStdioTransport(&StdioConfig{Command: command, Args: args}, newOptions(opts))
}

func newStdioTransport(config *StdioConfig, o *options) (*StdioTransport, error) {
	if config.Command == "" {
		return nil, errors.ConfigError("stdio").WithDetail("command must not be empty")
	}

	cmd := exec.Command(config.Command, config.Args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.ConnectionError("stdio", "failed to open stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.ConnectionError("stdio", "failed to open stdout pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.ConnectionError("stdio", "failed to spawn "+config.Command, err)
	}

	t := &StdioTransport{
		cmd:    cmd,
		stdin:  stdin,
		writer: bufio.NewWriter(stdin),
		logger: o.logger.WithComponent("stdio_transport"),
		lines:  make(chan []byte, lineQueueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	go t.pump(stdout)

	// Safety net: a transport dropped without Close must not leave the
	// child running.
	runtime.SetFinalizer(t, func(t *StdioTransport) { _ = t.Close() })

	t.logger.Debug("spawned child process",
		logging.String("command", config.Command),
		logging.Int("pid", cmd.Process.Pid))

	return t, nil
}

// pump owns the stdout pipe: it reads newline-delimited messages into the
// line queue until EOF or Close, then reaps the child. Wait must not run
// before the pipe has been drained, or replies still buffered at child exit
// would be destroyed with it.
func (t *StdioTransport) pump(stdout io.Reader) {
	defer func() {
		close(t.lines)
		_ = t.cmd.Wait()
		close(t.done)
	}()

	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			// A final unterminated line is still a complete message.
			select {
			case t.lines <- line:
			case <-t.quit:
				return
			}
		}
		if err != nil {
			t.readErr = err
			return
		}
	}
}

// Send serializes the envelope, appends the newline framing delimiter, and
// flushes. Replies arrive through Receive, so the returned envelope is
// always nil.
func (t *StdioTransport) Send(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error) {
	if err := protocol.Validate(env); err != nil {
		return nil, err
	}
	data, err := protocol.Marshal(env)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.writer.Write(data); err != nil {
		return nil, errors.ConnectionLost("stdio", "write", err)
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return nil, errors.ConnectionLost("stdio", "write", err)
	}
	if err := t.writer.Flush(); err != nil {
		return nil, errors.ConnectionLost("stdio", "flush", err)
	}
	return nil, nil
}

// Receive returns the next newline-delimited envelope from the child's
// stdout, or fails when ctx expires. Giving up does not consume a message.
func (t *StdioTransport) Receive(ctx context.Context) (*protocol.Envelope, error) {
	select {
	case line, ok := <-t.lines:
		if !ok {
			err := t.readErr
			if err == nil || err == io.EOF {
				return nil, errors.ConnectionError("stdio", "EOF", err)
			}
			return nil, errors.ConnectionLost("stdio", "read", err)
		}
		return protocol.Unmarshal(line)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// IsConnected polls the child's exit status without blocking
func (t *StdioTransport) IsConnected() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Close kills and reaps the child process. Every exit path ends here: the
// finalizer set at construction invokes Close if the caller never does.
func (t *StdioTransport) Close() error {
	t.closeOnce.Do(func() {
		runtime.SetFinalizer(t, nil)
		close(t.quit)
		_ = t.stdin.Close()

		select {
		case <-t.done:
			// Child already exited and was reaped.
		default:
			if err := t.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
				t.closeErr = errors.ConnectionError("stdio", "failed to kill child", err)
			}
			<-t.done
		}
		t.logger.Debug("child process terminated")
	})
	return t.closeErr
}

package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/toolgrid/toolgrid-go/pkg/errors"
	"github.com/toolgrid/toolgrid-go/pkg/protocol"
)

// eventStreamHandler serves the given payloads as one event stream and then
// blocks until the client goes away.
func eventStreamHandler(t *testing.T, payloads ...string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if accept := r.Header.Get("Accept"); accept != "text/event-stream" {
			t.Errorf("Expected event-stream accept header, got %q", accept)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("Expected response writer to support flushing")
		}
		for _, p := range payloads {
			fmt.Fprintf(w, "data: %s\n\n", p)
			flusher.Flush()
		}
		<-r.Context().Done()
	}
}

func TestSSEReceiveBeforeConnect(t *testing.T) {
	tr, err := NewSSETransport("http://localhost:0/events")
	if err != nil {
		t.Fatalf("NewSSETransport failed: %v", err)
	}

	_, err = tr.Receive(context.Background())
	if err == nil {
		t.Fatal("Expected Receive before Connect to fail")
	}
	if !errors.IsCategory(err, errors.CategoryConnection) {
		t.Errorf("Expected connection error, got %v", err)
	}
}

func TestSSEReceiveEvents(t *testing.T) {
	server := httptest.NewServer(eventStreamHandler(t,
		`{"type":"notification","data":{"method":"progress","params":{"pct":10}}}`,
		`{"type":"response","data":{"id":"7","result":{"done":true}}}`,
	))
	defer server.Close()

	tr, err := NewSSETransport(server.URL)
	if err != nil {
		t.Fatalf("NewSSETransport failed: %v", err)
	}
	defer tr.Close()

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := tr.Receive(ctx)
	if err != nil {
		t.Fatalf("First Receive failed: %v", err)
	}
	if first.Type != protocol.TypeNotification || first.Method() != "progress" {
		t.Errorf("Expected progress notification, got %q %q", first.Type, first.Method())
	}

	second, err := tr.Receive(ctx)
	if err != nil {
		t.Fatalf("Second Receive failed: %v", err)
	}
	if second.CorrelationID() != "7" {
		t.Errorf("Expected correlation id '7', got %q", second.CorrelationID())
	}
}

func TestSSEMalformedEventDoesNotPoisonQueue(t *testing.T) {
	server := httptest.NewServer(eventStreamHandler(t,
		`this is not json`,
		`{"type":"notification","data":{"method":"after","params":{}}}`,
	))
	defer server.Close()

	tr, err := NewSSETransport(server.URL)
	if err != nil {
		t.Fatalf("NewSSETransport failed: %v", err)
	}
	defer tr.Close()

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = tr.Receive(ctx)
	if err == nil {
		t.Fatal("Expected the malformed event to fail")
	}
	if !errors.IsCategory(err, errors.CategorySerialization) {
		t.Errorf("Expected serialization error, got %v", err)
	}

	// The queue keeps draining after the bad payload.
	env, err := tr.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive after malformed event failed: %v", err)
	}
	if env.Method() != "after" {
		t.Errorf("Expected the following event, got method %q", env.Method())
	}
}

func TestSSEMultilineData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		// Two data lines in one event join with a newline; comments and
		// event fields are ignored.
		fmt.Fprint(w, ": comment\n")
		fmt.Fprint(w, "event: message\n")
		fmt.Fprint(w, "data: {\"type\":\"notification\",\n")
		fmt.Fprint(w, "data: \"data\":{\"method\":\"split\"}}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	tr, err := NewSSETransport(server.URL)
	if err != nil {
		t.Fatalf("NewSSETransport failed: %v", err)
	}
	defer tr.Close()

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	env, err := tr.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if env.Method() != "split" {
		t.Errorf("Expected joined multiline payload, got method %q", env.Method())
	}
}

func TestSSESendUnsupported(t *testing.T) {
	tr, err := NewSSETransport("http://localhost:0/events")
	if err != nil {
		t.Fatalf("NewSSETransport failed: %v", err)
	}

	notif, _ := protocol.NewNotification("x", nil)
	_, err = tr.Send(context.Background(), notif)
	if err == nil {
		t.Fatal("Expected Send to be unsupported")
	}
	if !errors.IsCategory(err, errors.CategoryCapability) {
		t.Errorf("Expected capability error, got %v", err)
	}
}

func TestSSEReconnects(t *testing.T) {
	var served int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: {\"type\":\"notification\",\"data\":{\"method\":\"stream-%d\"}}\n\n", served)
		flusher.Flush()
		// Returning closes the stream, forcing the client to reconnect.
	}))
	defer server.Close()

	tr, err := newSSETransport(&SSEConfig{
		URL:               server.URL,
		ReconnectInterval: 50 * time.Millisecond,
	}, newOptions(nil))
	if err != nil {
		t.Fatalf("newSSETransport failed: %v", err)
	}
	defer tr.Close()

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 1; i <= 2; i++ {
		env, err := tr.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive %d failed: %v", i, err)
		}
		want := fmt.Sprintf("stream-%d", i)
		if env.Method() != want {
			t.Errorf("Expected %q, got %q", want, env.Method())
		}
	}
}

func TestSSEFactoryBuiltTransportStreams(t *testing.T) {
	server := httptest.NewServer(eventStreamHandler(t,
		`{"type":"notification","data":{"method":"hello","params":{}}}`,
	))
	defer server.Close()

	// The factory returns the Transport interface only; receiving must work
	// without reaching for the concrete type.
	tr, err := New(Config{Type: TransportTypeSSE, SSE: &SSEConfig{URL: server.URL}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	env, err := tr.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive on a factory-built transport failed: %v", err)
	}
	if env.Method() != "hello" {
		t.Errorf("Expected the streamed event, got method %q", env.Method())
	}
}

func TestSSECloseRacingConnect(t *testing.T) {
	server := httptest.NewServer(eventStreamHandler(t))
	defer server.Close()

	for i := 0; i < 20; i++ {
		tr, err := NewSSETransport(server.URL)
		if err != nil {
			t.Fatalf("NewSSETransport failed: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = tr.Connect(context.Background())
		}()
		go func() {
			defer wg.Done()
			_ = tr.Close()
		}()
		wg.Wait()

		// Whatever the interleaving, the transport must end up closed with
		// no stream task left behind.
		_ = tr.Close()
		if tr.IsConnected() {
			t.Fatalf("Expected a closed transport on iteration %d", i)
		}
		if _, err := tr.Receive(context.Background()); err == nil {
			t.Fatalf("Expected Receive after Close to fail on iteration %d", i)
		}
	}
}

func TestSSECloseAbortsStream(t *testing.T) {
	server := httptest.NewServer(eventStreamHandler(t))
	defer server.Close()

	tr, err := NewSSETransport(server.URL)
	if err != nil {
		t.Fatalf("NewSSETransport failed: %v", err)
	}
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !tr.IsConnected() {
		t.Error("Expected transport to report connected after Connect")
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if tr.IsConnected() {
		t.Error("Expected transport to report disconnected after Close")
	}

	_, err = tr.Receive(context.Background())
	if err == nil {
		t.Fatal("Expected Receive after Close to fail")
	}
	if err := tr.Connect(context.Background()); err == nil {
		t.Error("Expected Connect after Close to fail")
	}
}

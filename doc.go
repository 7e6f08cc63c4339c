// Package toolgrid provides a client-side runtime for invoking remote tools
// over pluggable transports with access control and auditing built in.
//
// This package is the root of the runtime, providing convenient exports of
// the core components from the sub-packages.
//
// # Overview
//
// The runtime consists of several sub-packages:
//
//   - pkg/protocol: the message envelope and its validation rules
//   - pkg/transport: stdio, HTTP, and server-push stream transports behind
//     one interface, plus a retrying decorator
//   - pkg/pool: a bounded connection pool keyed by server identity
//   - pkg/auth: role-based access control and OAuth2 token validation
//   - pkg/executor: single tool invocations under a deadline
//   - pkg/audit: audit event contract and compliance findings
//   - pkg/errors: the error taxonomy and the recovery classifier
//   - pkg/observability: Prometheus metrics and OpenTelemetry tracing
//
// # Running a Tool
//
// To execute a tool against a child process speaking newline-delimited JSON:
//
//	import (
//	    "context"
//	    "time"
//
//	    "github.com/toolgrid/toolgrid-go"
//	    "github.com/toolgrid/toolgrid-go/pkg/executor"
//	)
//
//	func main() {
//	    t, err := toolgrid.NewStdioTransport("tool-server", []string{"--stdio"})
//	    if err != nil {
//	        // Handle error
//	    }
//	    defer t.Close()
//
//	    rbac := toolgrid.NewRBACManager()
//	    _ = rbac.CreateRole("operator")
//	    _ = rbac.AssignPermissionToRole("operator", "tool:*")
//	    _ = rbac.AssignUserToRole("alice", "operator")
//
//	    exec, err := toolgrid.NewExecutor(t, rbac, nil)
//	    if err != nil {
//	        // Handle error
//	    }
//
//	    result := exec.Execute(context.Background(), &executor.ExecutionContext{
//	        ToolName: "search",
//	        UserID:   "alice",
//	        Timeout:  10 * time.Second,
//	    })
//	    if result.Success() {
//	        // Use result.Result
//	    }
//	}
//
// # Pooling Connections
//
// When many servers are in play, the pool bounds the number of live
// transports and evicts idle ones:
//
//	p, err := toolgrid.NewPool(pool.DefaultConfig(), func(ctx context.Context, serverID string) (transport.Transport, error) {
//	    return toolgrid.NewTransport(configFor(serverID))
//	})
//	if err != nil {
//	    // Handle error
//	}
//	defer p.Close()
//
//	conn, err := p.Acquire(ctx, "search-server")
//	if err != nil {
//	    // Handle error
//	}
//	defer conn.Release()
package toolgrid

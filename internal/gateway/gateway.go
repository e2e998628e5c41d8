// Package gateway defines the interface for external entry points.
package gateway

import "context"

// Gateway is an external interface (HTTP API, WebSocket event stream).
type Gateway interface {
	// Name identifies the gateway in logs.
	Name() string

	// Start launches the gateway's event loop and blocks until the gateway
	// exits or the context is canceled. Returns an error only on failure.
	Start(ctx context.Context) error

	// Stop performs graceful shutdown. The context carries a deadline
	// for the grace period. In-flight requests should drain before returning.
	Stop(ctx context.Context) error
}

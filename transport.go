package xplorer

import "context"

// Transport is the contract any wire protocol adapter must satisfy.
// Multiple Transport instances may be bound to the same Router concurrently
// — the HTTP and P2P adapters are simply two implementations of this one
// interface, composed by the Server façade.
type Transport interface {
	// Start begins accepting connections. It must be idempotent when the
	// transport is already running.
	Start(ctx context.Context) error

	// Stop stops accepting new connections and shuts down. In-flight
	// streams are allowed to complete or fail on their own.
	Stop(ctx context.Context) error

	// Running reports whether Start has completed successfully and Stop
	// has not yet been called.
	Running() bool
}

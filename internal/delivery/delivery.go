// Package delivery defines the transports that expose the use cases.
package delivery

import "context"

// Delivery is a long-running server started by fx.
type Delivery interface {
	// Serve blocks until the server stops.
	Serve(ctx context.Context) error
}

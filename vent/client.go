// Package vent implements the native VentAxia wifi protocol: a PSK-secured
// session carrying keyed JSON messages, the mutable device state model those
// messages feed, and the request builders for outbound control.
package vent

import (
	"context"
	"errors"
)

// ErrClosed is returned by Receive and Send once the client has been closed
// locally. Callers treat it as a clean shutdown, not a link failure.
var ErrClosed = errors.New("vent: client closed")

// Client is a single logical connection to a VentAxia unit. A client may be
// reconnected after Close by calling Connect again; implementations reset
// their closing state on Connect.
type Client interface {
	// Connect establishes the secured session. The context bounds the
	// attempt; errors propagate to the caller.
	Connect(ctx context.Context) error

	// Receive blocks until the next decoded inbound message, the context is
	// cancelled, or the connection fails.
	Receive(ctx context.Context) (Message, error)

	// Send serializes and transmits one message through the live session.
	Send(msg Message) error

	// Close tears the session down. Safe to call repeatedly.
	Close() error

	// Closing reports whether teardown is already in progress, so callers
	// can avoid a redundant second close.
	Closing() bool
}

// Package transport moves encoded chord messages between peers and provides
// implementations for production (TCP) and testing (in-memory).
//
// A transport carries opaque frames; it never looks inside them. Each frame
// is exactly one encoded message.
package transport

import "errors"

// MaxFrameSize bounds a single frame. It is also what bounds relay nesting,
// since the message format itself does not.
const MaxFrameSize = 1 << 20

var (
	ErrFrameSize = errors.New("transport: frame empty or larger than MaxFrameSize")
	ErrClosed    = errors.New("transport: closed")
)

// Frame is one message received from a peer. From is the address a reply
// should be sent to.
type Frame struct {
	From string
	Data []byte
}

// Transport abstracts peer-to-peer frame I/O.
// The node uses this interface exclusively so that tests can inject an
// in-memory transport without needing real network sockets.
type Transport interface {
	// Start begins listening for incoming peer connections.
	Start() error

	// Connect dials a peer by address. Idempotent if already connected.
	Connect(addr string) error

	// Send delivers one frame to addr, connecting first if needed.
	Send(addr string, frame []byte) error

	// Incoming returns a channel of frames received from any peer.
	Incoming() <-chan Frame

	// PeerCount returns the number of currently connected peers.
	PeerCount() int

	// Close shuts down the transport and all peer connections.
	Close() error
}

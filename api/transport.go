// File: api/transport.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Defines the transport abstraction (spec.md C1): a non-blocking byte-stream
// with readiness notification, decoupling the protocol core from raw socket
// I/O, TLS, and whatever accept/poll mechanism backs a given platform.

package api

// PeerKey identifies a remote endpoint uniquely, per spec.md §3.
type PeerKey struct {
	IP      string
	Service string
}

func (k PeerKey) String() string {
	return k.IP + ":" + k.Service
}

// TransportFeatures describes capabilities a Transport implementation
// exposes, so higher layers can adapt without type-asserting concrete types.
type TransportFeatures struct {
	ZeroCopy bool
	Batch    bool
	TLS      bool
}

// Transport abstracts a full-duplex, non-blocking byte stream. Plain TCP and
// TLS-wrapped variants implement the same contract (spec.md §4.1).
type Transport interface {
	// Read fills p with whatever is immediately available. It returns
	// ErrWouldBlock if no data is ready and the transport is non-blocking.
	Read(p []byte) (n int, err error)

	// Write writes p to the peer. It returns ErrWouldBlock if the socket
	// send buffer is full.
	Write(p []byte) (n int, err error)

	// Close releases the transport's resources. Idempotent.
	Close() error

	// RawFD returns the underlying OS file descriptor, for registration
	// with a readiness poller. Returns 0 on platforms/impls without one.
	RawFD() uintptr

	// SetNonblocking configures the transport's underlying descriptor for
	// non-blocking I/O.
	SetNonblocking() error

	// Features reports what this transport instance supports.
	Features() TransportFeatures
}

// Dialer constructs a client-side Transport connected to addr.
type Dialer interface {
	Dial(addr string) (Transport, error)
}

// Listener accepts inbound connections and produces Transports, decoupling
// the event loop and connection registry from *net.TCPListener specifics.
type Listener interface {
	// Accept blocks until a new connection is available (or returns
	// ErrWouldBlock if the listener itself is non-blocking and none is
	// pending).
	Accept() (Transport, PeerKey, error)

	// Close stops the listener from accepting further connections.
	Close() error

	// RawFD returns the listening socket's descriptor for poller registration.
	RawFD() uintptr

	// Addr returns the "host:port" the listener is actually bound to, which
	// may differ from the requested address when binding to port 0.
	Addr() string
}

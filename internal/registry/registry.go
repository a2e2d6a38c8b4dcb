// File: internal/registry/registry.go
// Package registry implements the connection registry (spec.md C2): the
// single source of truth for the live connection set, keyed by PeerKey.
// Adapted from the teacher's connection-tracking map in
// highlevel/server.go (addConnection/removeConnection/GetActiveConnections)
// generalized to the PeerKey-keyed contract spec.md §4.2 describes, and
// from internal/concurrency/executor.go's use of github.com/eapache/queue
// for the pending-close drain queue below.
// Author: hioframe contributors
// License: Apache-2.0

package registry

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/hioframe/hioframe/api"
	"github.com/hioframe/hioframe/internal/httpmsg"
	"github.com/hioframe/hioframe/protocol"
)

// Conn is the registry's owned record for one accepted peer (spec.md §3).
// It holds exactly one HTTP parser (always) and, once upgraded, exactly one
// WebSocket session (which owns the WebSocket parser) — the per-protocol
// parser-lifetime invariant spec.md §3 states.
type Conn struct {
	Key       api.PeerKey
	Transport api.Transport

	mu    sync.Mutex
	state api.ConnState

	HTTPParser *httpmsg.RequestParser
	Tracker    *protocol.UpgradeTracker
	Session    *protocol.Session

	// Path is the original HTTP request path that triggered an upgrade, if
	// any; used for WebSocket route dispatch.
	Path string
}

// NewConn constructs a Conn ready for HTTP dispatch: a fresh request
// parser and an upgrade tracker starting in HTTP_ACTIVE.
func NewConn(key api.PeerKey, transport api.Transport) *Conn {
	return &Conn{
		Key:        key,
		Transport:  transport,
		state:      api.ConnConnected,
		HTTPParser: httpmsg.NewRequestParser(),
		Tracker:    protocol.NewUpgradeTracker(),
	}
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() api.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState transitions the connection's lifecycle state.
func (c *Conn) SetState(s api.ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Registry owns the live connection set. Removal is only valid from the
// event-loop/worker context that also performs I/O, per spec.md §4.2, to
// avoid racing reads/writes against a connection mid-close; callers outside
// that context should route through a close-intent channel instead of
// calling Remove directly.
type Registry struct {
	mu    sync.RWMutex
	conns map[api.PeerKey]*Conn

	closingMu sync.Mutex
	closing   *queue.Queue
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		conns:   make(map[api.PeerKey]*Conn),
		closing: queue.New(),
	}
}

// Insert adds a new connection record, keyed by its PeerKey.
func (r *Registry) Insert(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.Key] = c
}

// Get returns the connection for key, if live.
func (r *Registry) Get(key api.PeerKey) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[key]
	return c, ok
}

// Remove closes and deletes the connection identified by key. It is the
// event-loop/worker's responsibility to call this only after any in-flight
// read/write on the connection has completed.
func (r *Registry) Remove(key api.PeerKey) {
	r.mu.Lock()
	c, ok := r.conns[key]
	if ok {
		delete(r.conns, key)
	}
	r.mu.Unlock()
	if ok {
		c.SetState(api.ConnClosed)
		_ = c.Transport.Close()
	}
}

// ForEach iterates a snapshot of the live connection set: mutations made by
// f (e.g. scheduling a Remove) do not affect the iteration in progress.
func (r *Registry) ForEach(f func(*Conn)) {
	r.mu.RLock()
	snapshot := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()
	for _, c := range snapshot {
		f(c)
	}
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// MarkClosing enqueues key on the FIFO closing queue: the server's
// event-loop handler drains this queue before handling each readiness
// event and calls Remove for each entry, so a handler
// running on a worker thread can request a close without itself racing the
// loop's ownership of Remove.
func (r *Registry) MarkClosing(key api.PeerKey) {
	r.closingMu.Lock()
	r.closing.Add(key)
	r.closingMu.Unlock()
	if c, ok := r.Get(key); ok {
		c.SetState(api.ConnClosing)
	}
}

// DrainClosing removes and closes every connection queued via MarkClosing.
// The server calls it at the start of each readiness event it handles.
func (r *Registry) DrainClosing() {
	r.closingMu.Lock()
	pending := make([]api.PeerKey, 0, r.closing.Length())
	for r.closing.Length() > 0 {
		pending = append(pending, r.closing.Remove().(api.PeerKey))
	}
	r.closingMu.Unlock()
	for _, key := range pending {
		r.Remove(key)
	}
}

// CloseAll closes every live connection and empties the registry — used by
// server shutdown (spec.md §5: "close() ... the loop closes each
// connection"). No connection remains in the registry after it returns
// (spec.md §8 invariant 6).
func (r *Registry) CloseAll() {
	r.mu.Lock()
	snapshot := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		snapshot = append(snapshot, c)
	}
	r.conns = make(map[api.PeerKey]*Conn)
	r.mu.Unlock()

	for _, c := range snapshot {
		c.SetState(api.ConnClosed)
		_ = c.Transport.Close()
	}
}

// File: protocol/upgrade.go
// Author: hioframe contributors
// License: Apache-2.0
//
// The HTTP→WebSocket upgrade state machine (spec.md §4.7): a connection
// moves HTTP_ACTIVE -> UPGRADING -> WS_CONNECTED -> WS_CLOSING -> WS_CLOSED,
// and once upgraded, no HTTP handler may run on it again. Transitions are
// grounded on the lifecycle api.UpgradeState enumerates and on the
// teacher's protocol/connection.go Close/recvLoop shutdown sequencing.

package protocol

import (
	"errors"
	"sync"

	"github.com/hioframe/hioframe/api"
)

// ErrInvalidTransition is returned when a caller attempts an upgrade-state
// transition that the state machine does not permit.
var ErrInvalidTransition = errors.New("protocol: invalid upgrade state transition")

// UpgradeTracker guards a connection's api.UpgradeState against concurrent,
// out-of-order transitions.
type UpgradeTracker struct {
	mu    sync.Mutex
	state api.UpgradeState
}

// NewUpgradeTracker constructs a tracker starting in StateHTTPActive.
func NewUpgradeTracker() *UpgradeTracker {
	return &UpgradeTracker{state: api.StateHTTPActive}
}

// State returns the current state.
func (t *UpgradeTracker) State() api.UpgradeState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// BeginUpgrade transitions HTTP_ACTIVE -> UPGRADING, the point at which no
// further HTTP requests may be dispatched on this connection.
func (t *UpgradeTracker) BeginUpgrade() error {
	return t.transition(api.StateHTTPActive, api.StateUpgrading)
}

// CompleteUpgrade transitions UPGRADING -> WS_CONNECTED once the 101
// response has been written.
func (t *UpgradeTracker) CompleteUpgrade() error {
	return t.transition(api.StateUpgrading, api.StateWSConnected)
}

// BeginClose transitions WS_CONNECTED -> WS_CLOSING: a CLOSE frame has been
// sent or received and no further data frames will be processed.
func (t *UpgradeTracker) BeginClose() error {
	return t.transition(api.StateWSConnected, api.StateWSClosing)
}

// Closed transitions WS_CLOSING -> WS_CLOSED once the transport has been
// torn down.
func (t *UpgradeTracker) Closed() error {
	return t.transition(api.StateWSClosing, api.StateWSClosed)
}

// CanDispatchHTTP reports whether an HTTP handler may still run on this
// connection (only true in StateHTTPActive, spec.md §8 invariant: no HTTP
// handler runs post-upgrade).
func (t *UpgradeTracker) CanDispatchHTTP() bool {
	return t.State() == api.StateHTTPActive
}

// CanExchangeFrames reports whether WebSocket frame I/O is permitted.
func (t *UpgradeTracker) CanExchangeFrames() bool {
	return t.State() == api.StateWSConnected
}

func (t *UpgradeTracker) transition(from, to api.UpgradeState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != from {
		return ErrInvalidTransition
	}
	t.state = to
	return nil
}

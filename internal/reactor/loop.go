// File: internal/reactor/loop.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Batched, backoff-driven event loop (spec.md C3), adapted from the
// teacher's internal/concurrency/eventloop.go: the same run/batch/backoff
// shape, but events are drained from an api.Poller instead of a RingBuffer,
// and pending work items (e.g. close requests) ride github.com/eapache/queue
// the way the registry's closing queue does, instead of the teacher's
// custom ring buffer.

package reactor

import (
	"runtime"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/hioframe/hioframe/api"
)

// Loop polls a set of registered file descriptors and dispatches readiness
// events to a single api.EventHandler, batching up to BatchSize events per
// iteration and backing off adaptively when idle.
type Loop struct {
	poller    api.Poller
	handler   api.EventHandler
	batchSize int

	pending *queue.Queue // of func() run once per tick, before polling

	quit    chan struct{}
	stopped chan struct{}

	backoffNs int64
}

// NewLoop constructs a Loop over poller, dispatching to handler.
func NewLoop(poller api.Poller, handler api.EventHandler, batchSize int) *Loop {
	return &Loop{
		poller:    poller,
		handler:   handler,
		batchSize: batchSize,
		pending:   queue.New(),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
		backoffNs: 1,
	}
}

// PostTask enqueues a function to run on the loop goroutine at the start of
// its next tick — the mechanism by which other goroutines (worker threads,
// the registry's MarkClosing callers) hand work back to the single owner
// of connection removal (spec.md §4.2).
func (l *Loop) PostTask(f func()) {
	l.pending.Add(f)
}

// Run blocks, polling and dispatching events until Stop is called.
func (l *Loop) Run() {
	events := make([]api.Event, l.batchSize)
	for {
		select {
		case <-l.quit:
			close(l.stopped)
			return
		default:
		}

		for l.pending.Length() > 0 {
			f := l.pending.Remove().(func())
			f()
		}

		n, err := l.poller.Wait(events)
		if err != nil {
			continue
		}
		if n > 0 {
			atomic.StoreInt64(&l.backoffNs, 1)
			for i := 0; i < n; i++ {
				l.handler.HandleEvent(events[i])
			}
			continue
		}

		d := atomic.LoadInt64(&l.backoffNs)
		for i := int64(0); i < d; i++ {
		}
		runtime.Gosched()
		if d < 1_000_000 {
			atomic.StoreInt64(&l.backoffNs, d*2)
		}
	}
}

// Stop signals the loop to terminate and waits for it to exit.
func (l *Loop) Stop() {
	close(l.quit)
	<-l.stopped
}

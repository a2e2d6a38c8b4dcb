// File: server/config.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Config/DefaultConfig/ServerOption follow the teacher's server/types.go
// and server/options.go functional-options pattern, generalized from the
// teacher's NUMA/affinity/reactor-ring knobs to the event-loop-vs-worker-
// pool scheduling choice and TLS knobs spec.md §4/§5/§6 require.

package server

import (
	"crypto/tls"
	"runtime"
	"time"
)

// SchedulingMode selects between spec.md's two connection-scheduling
// strategies: a single readiness-based event loop, or a fixed worker pool
// running one blocking read loop per connection.
type SchedulingMode int

const (
	// EventLoopMode dispatches all connections through internal/reactor.
	EventLoopMode SchedulingMode = iota
	// WorkerPoolMode runs each connection on a pooled goroutine via
	// internal/workerpool.
	WorkerPoolMode
)

// Config holds all server parameters.
type Config struct {
	ListenAddr      string
	Scheduling      SchedulingMode
	BatchSize       int
	PoolWorkers     int
	ReadBufferSize  int
	TLSConfig       *tls.Config
	ShutdownTimeout time.Duration
	MaxConnections  int
}

// DefaultConfig returns safe defaults: event-loop scheduling, no TLS.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":9000",
		Scheduling:      EventLoopMode,
		BatchSize:       32,
		PoolWorkers:     runtime.NumCPU(),
		ReadBufferSize:  64 * 1024,
		ShutdownTimeout: 30 * time.Second,
		MaxConnections:  0,
	}
}

// ServerOption customizes Server initialization.
type ServerOption func(*Server)

// WithAddr overrides the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.cfg.ListenAddr = addr }
}

// WithSchedulingMode selects event-loop or worker-pool connection
// scheduling.
func WithSchedulingMode(mode SchedulingMode) ServerOption {
	return func(s *Server) { s.cfg.Scheduling = mode }
}

// WithPoolWorkers sets the worker-pool size used in WorkerPoolMode.
func WithPoolWorkers(n int) ServerOption {
	return func(s *Server) { s.cfg.PoolWorkers = n }
}

// WithBatchSize overrides the event loop's per-tick batch size.
func WithBatchSize(n int) ServerOption {
	return func(s *Server) { s.cfg.BatchSize = n }
}

// WithTLS enables TLS termination using cfg.
func WithTLS(cfg *tls.Config) ServerOption {
	return func(s *Server) { s.cfg.TLSConfig = cfg }
}

// WithMaxConnections bounds the number of simultaneously accepted
// connections; 0 means unbounded.
func WithMaxConnections(max int) ServerOption {
	return func(s *Server) { s.cfg.MaxConnections = max }
}

// WithMiddleware attaches middleware in FIFO order.
func WithMiddleware(mw ...Middleware) ServerOption {
	return func(s *Server) { s.middleware = append(s.middleware, mw...) }
}

// WithShutdownTimeout overrides the graceful-shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.cfg.ShutdownTimeout = d }
}

// File: client/config.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Config/DefaultConfig/ClientOption mirror the teacher's client/client.go
// ClientConfig/ClientOption pair, trimmed of the NUMA/zero-copy knobs this
// spec doesn't require and kept for reconnect/heartbeat/TLS, which it does
// (spec.md §6's client-side construction, §9's reconnecting-client
// supplement).

package client

import (
	"crypto/tls"
	"time"
)

// Config holds client connection parameters.
type Config struct {
	Addr      string // "host:port"
	TLSConfig *tls.Config

	// ReadTimeout and WriteTimeout are stored here but not applied by
	// Client: its reads and writes have no deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ReconnectMax bounds the total number of dial attempts Connect makes,
	// waiting ReconnectDelay between them; a value below 1 means a single
	// attempt with no retry.
	ReconnectMax   int
	ReconnectDelay time.Duration

	// Heartbeat, if non-zero, is the interval at which an upgraded session
	// sends a PING frame to its peer.
	Heartbeat time.Duration
}

// DefaultConfig returns a Config with conservative timeouts and no TLS.
func DefaultConfig() *Config {
	return &Config{
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReconnectMax:   3,
		ReconnectDelay: 500 * time.Millisecond,
	}
}

// Option customizes a Client at construction.
type Option func(*Config)

// WithTLS enables TLS using cfg for the connection.
func WithTLS(cfg *tls.Config) Option {
	return func(c *Config) { c.TLSConfig = cfg }
}

// WithTimeouts sets Config.ReadTimeout and Config.WriteTimeout, which
// Client does not apply to its reads and writes.
func WithTimeouts(read, write time.Duration) Option {
	return func(c *Config) { c.ReadTimeout = read; c.WriteTimeout = write }
}

// WithReconnect overrides the dial-retry policy.
func WithReconnect(maxAttempts int, delay time.Duration) Option {
	return func(c *Config) { c.ReconnectMax = maxAttempts; c.ReconnectDelay = delay }
}

// WithHeartbeat enables an automatic PING interval once a session upgrades.
func WithHeartbeat(d time.Duration) Option {
	return func(c *Config) { c.Heartbeat = d }
}

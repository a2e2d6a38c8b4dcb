// File: server/middleware.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Middleware chain, adapted from the teacher's highlevel/server.go
// Use/applyMiddleware and its LoggingMiddleware/RecoveryMiddleware/
// MetricsMiddleware built-ins, generalized onto this module's *Session
// type instead of the teacher's *Conn.

package server

import (
	"log"
	"sync/atomic"
)

// Middleware wraps a WebSocket session handler.
type Middleware func(next func(*Session)) func(*Session)

func applyMiddleware(mw []Middleware, handler func(*Session)) func(*Session) {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// LoggingMiddleware logs session start/end via the standard library's
// package-level log functions.
func LoggingMiddleware(next func(*Session)) func(*Session) {
	return func(s *Session) {
		log.Printf("websocket session started")
		next(s)
		log.Printf("websocket session ended")
	}
}

// RecoveryMiddleware recovers from a panic in a later handler, closing the
// session's connection instead of crashing the server.
func RecoveryMiddleware(next func(*Session)) func(*Session) {
	return func(s *Session) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("recovered panic in websocket handler: %v", r)
				_ = s.Close(1011, "internal error")
			}
		}()
		next(s)
	}
}

var globalActiveSessions int64

// MetricsMiddleware tracks the number of concurrently active sessions.
func MetricsMiddleware(next func(*Session)) func(*Session) {
	return func(s *Session) {
		atomic.AddInt64(&globalActiveSessions, 1)
		defer atomic.AddInt64(&globalActiveSessions, -1)
		next(s)
	}
}

// ActiveSessionCount returns the number of sessions currently running under
// MetricsMiddleware.
func ActiveSessionCount() int64 {
	return atomic.LoadInt64(&globalActiveSessions)
}

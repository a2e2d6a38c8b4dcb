// File: server/session.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Session is the application-facing WebSocket handle, generalized from
// the teacher's highlevel/conn.go Conn wrapper: it adds route parameters
// and a broadcast/targeted-write surface over protocol.Session.
//
// The server's event loop (or worker goroutine) is the single owner of
// this connection's transport Read calls (spec.md §5): it feeds bytes into
// protocol.Session and pushes reassembled messages onto msgCh here, rather
// than letting the application handler call protocol.Session.ReadMessage
// directly, which would race the loop's own reads. Recv/TryRecv are the
// consumer side of that handoff — TryRecv backs spec.md §4.7's
// read_frame "next available or not finished yet" contract.

package server

import (
	"errors"

	"github.com/hioframe/hioframe/api"
	"github.com/hioframe/hioframe/internal/registry"
	"github.com/hioframe/hioframe/internal/wsframe"
	"github.com/hioframe/hioframe/protocol"
)

// ErrSessionClosed is returned by Recv once no further messages will ever
// arrive on this session.
var ErrSessionClosed = errors.New("server: session closed")

// Session wraps a protocol.Session with the route parameters extracted
// from its upgrade path and a reference back to the owning Server, so
// application handlers can broadcast to other live sessions.
type Session struct {
	*protocol.Session
	Params []RouteParam
	Key    api.PeerKey

	server *Server
	msgCh  chan *wsframe.Message
	conn   *registry.Conn
}

func newSession(inner *protocol.Session, key api.PeerKey, server *Server, c *registry.Conn) *Session {
	return &Session{
		Session: inner,
		Key:     key,
		server:  server,
		msgCh:   make(chan *wsframe.Message, 64),
		conn:    c,
	}
}

// deliver hands a reassembled message to the application handler. Called
// only from the goroutine that owns this connection's transport reads.
// A full buffer drops the oldest queued message rather than blocking the
// I/O path, logging so the drop is visible.
func (s *Session) deliver(msg *wsframe.Message) {
	select {
	case s.msgCh <- msg:
	default:
		select {
		case <-s.msgCh:
		default:
		}
		select {
		case s.msgCh <- msg:
		default:
		}
		s.server.logger.Printf("server: dropped message for %s, handler too slow", s.Key)
	}
}

func (s *Session) closeChannel() {
	close(s.msgCh)
}

// Recv blocks until the next reassembled message is available, or returns
// ErrSessionClosed once the session has been torn down with nothing left
// queued.
func (s *Session) Recv() (*wsframe.Message, error) {
	msg, ok := <-s.msgCh
	if !ok {
		return nil, ErrSessionClosed
	}
	return msg, nil
}

// TryRecv returns the next queued message without blocking, or ok=false if
// none is available yet (spec.md §4.7's read_frame "not finished yet").
func (s *Session) TryRecv() (msg *wsframe.Message, ok bool) {
	select {
	case msg, open := <-s.msgCh:
		return msg, open
	default:
		return nil, false
	}
}

// Param returns the value of a named route parameter, or "" if absent.
func (s *Session) Param(name string) string {
	for _, p := range s.Params {
		if p.Key == name {
			return p.Value
		}
	}
	return ""
}

// Close sends a CLOSE frame with the given RFC 6455 close code and reason,
// then tears down the connection. spec.md §4.7 describes the peer-initiated
// case (echo the peer's CLOSE, then close); an application-initiated close
// closes immediately after sending rather than blocking the handler
// goroutine on an echo that may never arrive.
func (s *Session) Close(code wsframe.CloseCode, reason string) error {
	err := s.Session.Close(code, reason)
	s.server.closeConn(s.conn)
	return err
}

// Broadcast sends a text message to every currently upgraded session the
// server is tracking, per spec.md's supplemented broadcast-write feature.
func (s *Session) Broadcast(text string) {
	s.server.Broadcast(text)
}

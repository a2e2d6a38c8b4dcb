// File: protocol/session.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Session wraps one upgraded connection's WebSocket read/write API
// (spec.md C7), adapted from the teacher's protocol/connection.go
// WSConnection: SendFrame/handleControl's PING->PONG auto-reply and
// CLOSE-echo-then-shutdown behavior are preserved, generalized from the
// teacher's channel-based send/recv loops onto this module's own
// internal/wsframe codec and the single-owner Transport read/write calls
// the event loop or worker pool drives.

package protocol

import (
	"errors"
	"time"

	"github.com/hioframe/hioframe/api"
	"github.com/hioframe/hioframe/internal/wsframe"
)

// ErrSessionClosed is returned by ReadMessage once the connection has
// moved past WS_CONNECTED.
var ErrSessionClosed = errors.New("protocol: session closed")

// Session is the per-connection WebSocket read/write surface exposed to
// application handlers once a connection has completed its upgrade.
type Session struct {
	transport api.Transport
	role      wsframe.Role
	parser    *wsframe.Parser
	tracker   *UpgradeTracker

	framesReceived int64
	framesSent     int64
	bytesReceived  int64
	bytesSent      int64
}

// NewSession constructs a Session for transport, acting as role, whose
// inbound frames reassemble into whole messages.
func NewSession(transport api.Transport, role wsframe.Role, tracker *UpgradeTracker) *Session {
	return &Session{
		transport: transport,
		role:      role,
		parser:    wsframe.NewParser(role, true),
		tracker:   tracker,
	}
}

// Feed hands newly read bytes to the session's frame parser. Control
// frames are handled here (PING auto-replied with PONG, CLOSE echoed and
// the tracker moved to WS_CLOSING); data messages are left queued for
// NextMessage.
func (s *Session) Feed(data []byte) error {
	if err := s.parser.PushChunk(data); err != nil {
		return err
	}
	s.bytesReceived += int64(len(data))
	for {
		f, ok := s.parser.NextFrame()
		if !ok {
			break
		}
		s.framesReceived++
		if err := s.handleControl(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handleControl(f *wsframe.Frame) error {
	switch f.Opcode {
	case wsframe.OpPing:
		pong := &wsframe.Frame{Fin: true, Opcode: wsframe.OpPong, Payload: f.Payload}
		return s.writeFrame(pong)
	case wsframe.OpPong:
		return nil
	case wsframe.OpClose:
		_ = s.tracker.BeginClose()
		return s.writeFrame(&wsframe.Frame{Fin: true, Opcode: wsframe.OpClose, Payload: f.Payload})
	}
	return nil
}

// NextMessage removes and returns the oldest reassembled data message, if
// any is ready.
func (s *Session) NextMessage() (*wsframe.Message, bool) {
	return s.parser.NextMessage()
}

// ReadMessage blocks until a full data message is available, reading and
// feeding further bytes from the transport as needed. It is meant to be
// called from the single goroutine dedicated to this connection after
// upgrade (spec.md §4.7): no other goroutine may call Feed/ReadMessage on
// the same Session concurrently.
func (s *Session) ReadMessage() (*wsframe.Message, error) {
	buf := make([]byte, 4096)
	for {
		if msg, ok := s.parser.NextMessage(); ok {
			return msg, nil
		}
		if !s.tracker.CanExchangeFrames() {
			return nil, ErrSessionClosed
		}
		n, err := s.transport.Read(buf)
		if err == api.ErrWouldBlock {
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := s.Feed(buf[:n]); err != nil {
			return nil, err
		}
	}
}

// WriteMessage sends a single, unfragmented data message.
func (s *Session) WriteMessage(opcode wsframe.Opcode, payload []byte) error {
	return s.writeFrame(&wsframe.Frame{Fin: true, Opcode: opcode, Payload: payload})
}

// WriteText is a convenience wrapper for WriteMessage with OpText.
func (s *Session) WriteText(text string) error {
	return s.WriteMessage(wsframe.OpText, []byte(text))
}

// Close sends a CLOSE frame with code/reason and transitions the tracker
// to WS_CLOSING, matching the close-handshake initiator side of spec.md's
// lifecycle (the peer's echoed CLOSE, once read, will drive BeginClose/
// Closed on the receiving side via handleControl/Session.Shutdown).
func (s *Session) Close(code wsframe.CloseCode, reason string) error {
	if err := s.tracker.BeginClose(); err != nil {
		return err
	}
	return s.writeFrame(&wsframe.Frame{
		Fin:     true,
		Opcode:  wsframe.OpClose,
		Payload: wsframe.EncodeCloseBody(code, reason),
	})
}

// Shutdown finalizes the WS_CLOSING -> WS_CLOSED transition and closes the
// underlying transport.
func (s *Session) Shutdown() error {
	if err := s.tracker.Closed(); err != nil {
		return err
	}
	return s.transport.Close()
}

// Send writes an arbitrary, already-constructed frame on this session. It
// backs the library's write_frame API surface (spec.md §6), for callers
// that need control over opcode/fin beyond WriteMessage's data-frame
// convenience.
func (s *Session) Send(f *wsframe.Frame) error {
	return s.writeFrame(f)
}

func (s *Session) writeFrame(f *wsframe.Frame) error {
	raw, err := wsframe.EncodeFrame(f, s.role)
	if err != nil {
		return err
	}
	n, err := s.transport.Write(raw)
	if err != nil {
		return err
	}
	s.framesSent++
	s.bytesSent += int64(n)
	return nil
}

// Stats returns a snapshot of this session's frame/byte counters, mirroring
// the teacher's WSConnection.GetStats.
func (s *Session) Stats() map[string]int64 {
	return map[string]int64{
		"bytes_received":  s.bytesReceived,
		"bytes_sent":      s.bytesSent,
		"frames_received": s.framesReceived,
		"frames_sent":     s.framesSent,
	}
}

package protocol

import (
	"bytes"
	"testing"

	"github.com/hioframe/hioframe/api"
	"github.com/hioframe/hioframe/internal/wsframe"
)

type bufTransport struct {
	written bytes.Buffer
}

func (b *bufTransport) Read(p []byte) (int, error)  { return 0, nil }
func (b *bufTransport) Write(p []byte) (int, error) { return b.written.Write(p) }
func (b *bufTransport) Close() error                { return nil }
func (b *bufTransport) RawFD() uintptr              { return 0 }
func (b *bufTransport) SetNonblocking() error       { return nil }
func (b *bufTransport) Features() api.TransportFeatures {
	return api.TransportFeatures{}
}

type readOnceTransport struct {
	bufTransport
	toRead []byte
	served bool
}

func (r *readOnceTransport) Read(p []byte) (int, error) {
	if r.served {
		return 0, api.ErrWouldBlock
	}
	r.served = true
	n := copy(p, r.toRead)
	return n, nil
}

func upgradedTracker(t *testing.T) *UpgradeTracker {
	t.Helper()
	tr := NewUpgradeTracker()
	if err := tr.BeginUpgrade(); err != nil {
		t.Fatal(err)
	}
	if err := tr.CompleteUpgrade(); err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestSessionDeliversDataMessage(t *testing.T) {
	tr := upgradedTracker(t)
	transport := &bufTransport{}
	s := NewSession(transport, wsframe.RoleServer, tr)

	f := &wsframe.Frame{Fin: true, Opcode: wsframe.OpText, Payload: []byte("hi")}
	raw, err := wsframe.EncodeFrame(f, wsframe.RoleClient)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Feed(raw); err != nil {
		t.Fatal(err)
	}
	msg, ok := s.NextMessage()
	if !ok || string(msg.Payload) != "hi" {
		t.Fatalf("got %+v ok=%v", msg, ok)
	}
}

func TestSessionAutoRepliesPing(t *testing.T) {
	tr := upgradedTracker(t)
	transport := &bufTransport{}
	s := NewSession(transport, wsframe.RoleServer, tr)

	ping := &wsframe.Frame{Fin: true, Opcode: wsframe.OpPing, Payload: []byte("p")}
	raw, _ := wsframe.EncodeFrame(ping, wsframe.RoleClient)
	if err := s.Feed(raw); err != nil {
		t.Fatal(err)
	}

	decoded, _, err := wsframe.DecodeFrame(transport.written.Bytes(), wsframe.RoleClient)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Opcode != wsframe.OpPong || string(decoded.Payload) != "p" {
		t.Fatalf("got %+v", decoded)
	}
}

func TestSessionCloseHandshakeTransitionsTracker(t *testing.T) {
	tr := upgradedTracker(t)
	transport := &bufTransport{}
	s := NewSession(transport, wsframe.RoleServer, tr)

	closeFrame := &wsframe.Frame{Fin: true, Opcode: wsframe.OpClose, Payload: wsframe.EncodeCloseBody(wsframe.CloseNormal, "bye")}
	raw, _ := wsframe.EncodeFrame(closeFrame, wsframe.RoleClient)
	if err := s.Feed(raw); err != nil {
		t.Fatal(err)
	}
	if tr.State() != api.StateWSClosing {
		t.Fatalf("state = %v, want WS_CLOSING", tr.State())
	}
	if err := s.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if tr.State() != api.StateWSClosed {
		t.Fatalf("state = %v, want WS_CLOSED", tr.State())
	}
}

func TestSessionWriteTextProducesValidFrame(t *testing.T) {
	tr := upgradedTracker(t)
	transport := &bufTransport{}
	s := NewSession(transport, wsframe.RoleServer, tr)

	if err := s.WriteText("hello"); err != nil {
		t.Fatal(err)
	}
	decoded, n, err := wsframe.DecodeFrame(transport.written.Bytes(), wsframe.RoleClient)
	if err != nil {
		t.Fatal(err)
	}
	if n != transport.written.Len() || string(decoded.Payload) != "hello" {
		t.Fatalf("got %+v", decoded)
	}
}

func TestSessionReadMessageBlocksThenReturns(t *testing.T) {
	tr := upgradedTracker(t)
	f := &wsframe.Frame{Fin: true, Opcode: wsframe.OpText, Payload: []byte("async")}
	raw, _ := wsframe.EncodeFrame(f, wsframe.RoleClient)
	transport := &readOnceTransport{toRead: raw}
	s := NewSession(transport, wsframe.RoleServer, tr)

	msg, err := s.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg.Payload) != "async" {
		t.Fatalf("got %q", msg.Payload)
	}
}

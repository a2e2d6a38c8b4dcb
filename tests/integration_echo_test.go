// File: tests/integration_echo_test.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Cross-validates the library's WebSocket implementation against gorilla/
// websocket, an independent RFC 6455 implementation, instead of only
// testing the server against its own client.

package tests

import (
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hioframe/hioframe/internal/httpmsg"
	"github.com/hioframe/hioframe/server"
)

func startEchoServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	srv := server.New(server.WithAddr("127.0.0.1:0"))
	srv.HandleWS("/echo", func(s *server.Session) {
		for {
			msg, err := s.Recv()
			if err != nil {
				return
			}
			if err := s.WriteText(string(msg.Payload)); err != nil {
				return
			}
		}
	})
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return srv.ListenAddr(), func() { srv.Close() }
}

func TestGorillaClientRoundTripsAgainstServer(t *testing.T) {
	addr, stop := startEchoServer(t)
	defer stop()

	u := url.URL{Scheme: "ws", Host: addr, Path: "/echo"}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("gorilla dial failed: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != httpmsg.StatusSwitchingProtocols {
		t.Fatalf("status = %d, want 101", resp.StatusCode)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello from gorilla")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	kind, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.TextMessage || string(payload) != "hello from gorilla" {
		t.Fatalf("got (%d, %q), want echoed text frame", kind, payload)
	}
}

func TestGorillaClientCloseHandshake(t *testing.T) {
	addr, stop := startEchoServer(t)
	defer stop()

	u := url.URL{Scheme: "ws", Host: addr, Path: "/echo"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("gorilla dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")); err != nil {
		t.Fatalf("write close: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if _, ok := err.(*websocket.CloseError); !ok {
		t.Fatalf("expected a close error echoing the server's CLOSE frame, got %v", err)
	}
}

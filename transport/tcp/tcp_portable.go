//go:build !linux
// +build !linux

// File: transport/tcp/tcp_portable.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Portable TCP transport built on net.Conn/net.Listener, mirroring the
// teacher's original transport/tcp/listener.go (which also used plain
// net.Listen) for platforms without raw-socket/epoll support. RawFD is
// still exposed via SyscallConn for best-effort poller registration.

package tcp

import (
	"net"
	"syscall"

	"github.com/hioframe/hioframe/api"
)

type portableTransport struct {
	conn net.Conn
}

// Dial opens a TCP connection to addr.
func Dial(addr string) (api.Transport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &portableTransport{conn: conn}, nil
}

type portableListener struct {
	ln net.Listener
}

// Listen opens a TCP listening socket bound to addr.
func Listen(addr string) (api.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &portableListener{ln: ln}, nil
}

func (l *portableListener) Accept() (api.Transport, api.PeerKey, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, api.PeerKey{}, err
	}
	return &portableTransport{conn: conn}, peerKeyFromAddr(conn.RemoteAddr()), nil
}

func (l *portableListener) Close() error   { return l.ln.Close() }
func (l *portableListener) RawFD() uintptr { return rawFD(l.ln) }
func (l *portableListener) Addr() string   { return l.ln.Addr().String() }

func (t *portableTransport) Read(p []byte) (int, error) {
	n, err := t.conn.Read(p)
	if err != nil {
		return n, err
	}
	return n, nil
}

func (t *portableTransport) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *portableTransport) Close() error { return t.conn.Close() }

func (t *portableTransport) RawFD() uintptr { return rawFD(t.conn) }

// SetNonblocking is a no-op: Go's net package already multiplexes conns
// through the runtime netpoller in non-blocking mode.
func (t *portableTransport) SetNonblocking() error { return nil }

func (t *portableTransport) Features() api.TransportFeatures {
	return api.TransportFeatures{ZeroCopy: false, Batch: false, TLS: false}
}

func rawFD(v interface{}) uintptr {
	type rawConner interface {
		SyscallConn() (syscall.RawConn, error)
	}
	rc, ok := v.(rawConner)
	if !ok {
		return 0
	}
	sc, err := rc.SyscallConn()
	if err != nil {
		return 0
	}
	var fd uintptr
	_ = sc.Control(func(f uintptr) { fd = f })
	return fd
}

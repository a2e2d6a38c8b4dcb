//go:build linux
// +build linux

// File: transport/tcp/tcp_linux.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Raw-socket Linux transport, adapted from the teacher's
// internal/transport/transport_linux.go (unix.Socket/SendmsgBuffers
// pattern) but using plain unix.Read/unix.Write against a non-blocking fd
// so the fd can be registered directly with internal/reactor's epoll
// poller (spec.md §4.1/§4.3 require the transport to expose a raw fd for
// event-loop registration).

package tcp

import (
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/hioframe/hioframe/api"
)

type linuxTransport struct {
	fd     int
	peer   api.PeerKey
	closed bool
}

// Dial opens a non-blocking TCP connection to addr ("host:port").
func Dial(addr string) (api.Transport, error) {
	host, portStr, err := splitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ip, err := resolveIPv4(host)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip)
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	t := &linuxTransport{fd: fd, peer: api.PeerKey{IP: host, Service: portStr}}
	if err := t.SetNonblocking(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return t, nil
}

type linuxListener struct {
	fd   int
	addr string
}

// Listen opens a non-blocking TCP listening socket bound to addr
// (":port" or "host:port").
func Listen(addr string) (api.Listener, error) {
	host, portStr, err := splitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	var ip [4]byte
	if host != "" {
		resolved, err := resolveIPv4(host)
		if err != nil {
			return nil, err
		}
		copy(ip[:], resolved)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	sa := &unix.SockaddrInet4{Port: port, Addr: ip}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return nil, err
	}
	boundAddr := addr
	if sa, err := unix.Getsockname(fd); err == nil {
		if in4, ok := sa.(*unix.SockaddrInet4); ok {
			boundAddr = ipv4String(in4.Addr) + ":" + strconv.Itoa(in4.Port)
		}
	}
	return &linuxListener{fd: fd, addr: boundAddr}, nil
}

func (l *linuxListener) Accept() (api.Transport, api.PeerKey, error) {
	connFd, sa, err := unix.Accept(l.fd)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, api.PeerKey{}, api.ErrWouldBlock
		}
		return nil, api.PeerKey{}, err
	}
	if err := unix.SetNonblock(connFd, true); err != nil {
		unix.Close(connFd)
		return nil, api.PeerKey{}, err
	}
	_ = unix.SetsockoptInt(connFd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

	var key api.PeerKey
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		key = api.PeerKey{
			IP:      ipv4String(in4.Addr),
			Service: strconv.Itoa(in4.Port),
		}
	}
	return &linuxTransport{fd: connFd, peer: key}, key, nil
}

func (l *linuxListener) Close() error      { return unix.Close(l.fd) }
func (l *linuxListener) RawFD() uintptr    { return uintptr(l.fd) }
func (l *linuxListener) Addr() string      { return l.addr }

func (t *linuxTransport) Read(p []byte) (int, error) {
	n, err := unix.Read(t.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, api.ErrWouldBlock
		}
		if err == unix.EINTR {
			return 0, api.ErrInterrupted
		}
		return 0, err
	}
	if n == 0 {
		return 0, api.ErrTransportClosed
	}
	return n, nil
}

func (t *linuxTransport) Write(p []byte) (int, error) {
	n, err := unix.Write(t.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, api.ErrWouldBlock
		}
		if err == unix.EINTR {
			return 0, api.ErrInterrupted
		}
		return 0, err
	}
	return n, nil
}

func (t *linuxTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return unix.Close(t.fd)
}

func (t *linuxTransport) RawFD() uintptr { return uintptr(t.fd) }

func (t *linuxTransport) SetNonblocking() error {
	return unix.SetNonblock(t.fd, true)
}

func (t *linuxTransport) Features() api.TransportFeatures {
	return api.TransportFeatures{ZeroCopy: false, Batch: false, TLS: false}
}

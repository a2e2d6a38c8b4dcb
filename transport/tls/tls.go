// File: transport/tls/tls.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Package tls wraps an api.Transport in TLS, decorator-style, so spec.md
// C1's TLS requirement reuses whichever concrete transport.tcp connection
// it is given instead of duplicating socket handling. Grounded on the
// teacher's highlevel/client.go, which threads a *tls.Config through its
// client config the same way (crypto/tls is the only library the teacher
// reaches for here, so no ecosystem alternative applies).

package tls

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/hioframe/hioframe/api"
)

// Transport decorates an underlying api.Transport with a TLS record layer.
// RawFD and SetNonblocking pass through to the wrapped transport, since
// TLS operates purely at the byte-stream layer above them.
type Transport struct {
	inner api.Transport
	conn  *tls.Conn
}

// netConnAdapter makes an api.Transport satisfy net.Conn, which
// crypto/tls.Server/Client require. Deadlines are not supported by
// api.Transport (the event loop owns readiness instead), so they are
// accepted and ignored.
type netConnAdapter struct {
	api.Transport
}

func (netConnAdapter) LocalAddr() net.Addr                { return stubAddr{} }
func (netConnAdapter) RemoteAddr() net.Addr               { return stubAddr{} }
func (netConnAdapter) SetDeadline(t time.Time) error      { return nil }
func (netConnAdapter) SetReadDeadline(t time.Time) error  { return nil }
func (netConnAdapter) SetWriteDeadline(t time.Time) error { return nil }

type stubAddr struct{}

func (stubAddr) Network() string { return "tcp" }
func (stubAddr) String() string  { return "" }

// Server wraps inner in the server side of a TLS handshake using cfg and
// performs the handshake synchronously, matching spec.md §4.1's requirement
// that TLS is fully established before HTTP parsing begins.
func Server(inner api.Transport, cfg *tls.Config) (api.Transport, error) {
	nc := tls.Server(netConnAdapter{inner}, cfg)
	if err := nc.Handshake(); err != nil {
		return nil, err
	}
	return &Transport{inner: inner, conn: nc}, nil
}

// Client wraps inner in the client side of a TLS handshake using cfg.
func Client(inner api.Transport, cfg *tls.Config) (api.Transport, error) {
	nc := tls.Client(netConnAdapter{inner}, cfg)
	if err := nc.Handshake(); err != nil {
		return nil, err
	}
	return &Transport{inner: inner, conn: nc}, nil
}

func (t *Transport) Read(p []byte) (int, error)   { return t.conn.Read(p) }
func (t *Transport) Write(p []byte) (int, error)  { return t.conn.Write(p) }
func (t *Transport) Close() error                 { return t.conn.Close() }
func (t *Transport) RawFD() uintptr               { return t.inner.RawFD() }
func (t *Transport) SetNonblocking() error        { return t.inner.SetNonblocking() }

func (t *Transport) Features() api.TransportFeatures {
	f := t.inner.Features()
	f.TLS = true
	return f
}

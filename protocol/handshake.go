// File: protocol/handshake.go
// Author: hioframe contributors
// License: Apache-2.0
//
// RFC 6455 handshake negotiation, adapted from the teacher's
// protocol/handshake.go DoHandshakeCore/WriteHandshakeResponse pair, but
// operating on internal/httpmsg.Request/Response instead of net/http so
// the handshake runs entirely within this module's own HTTP parser
// (spec.md C7 composes directly with C4/C6, not net/http).

package protocol

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"

	"github.com/hioframe/hioframe/internal/httpmsg"
)

// WebSocketGUID is the fixed magic value RFC 6455 §1.3 defines for
// Sec-WebSocket-Accept derivation.
const WebSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const RequiredWebSocketVersion = "13"

var (
	ErrInvalidUpgradeHeaders = errors.New("protocol: invalid WebSocket upgrade headers")
	ErrMissingWebSocketKey   = errors.New("protocol: missing Sec-WebSocket-Key header")
	ErrBadWebSocketVersion   = errors.New("protocol: unsupported WebSocket version; only '13' is supported")
	ErrUpgradeRejected       = errors.New("protocol: server did not switch protocols")
)

// AcceptKey computes the Sec-WebSocket-Accept value for a given
// Sec-WebSocket-Key, per RFC 6455 §1.3.
func AcceptKey(secWebSocketKey string) string {
	h := sha1.New()
	h.Write([]byte(secWebSocketKey + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// ValidateUpgradeRequest checks req for the required WebSocket upgrade
// headers (spec.md §4.7's pre-upgrade validation) and returns the client's
// Sec-WebSocket-Key on success.
func ValidateUpgradeRequest(req *httpmsg.Request) (string, error) {
	if req.Method != httpmsg.GET {
		return "", ErrInvalidUpgradeHeaders
	}
	if !req.Header.ContainsToken("Connection", "Upgrade") ||
		!req.Header.ContainsToken("Upgrade", "websocket") {
		return "", ErrInvalidUpgradeHeaders
	}
	if req.Header.Get("Sec-WebSocket-Version") != RequiredWebSocketVersion {
		return "", ErrBadWebSocketVersion
	}
	key := req.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return "", ErrMissingWebSocketKey
	}
	return key, nil
}

// BuildSwitchingProtocolsResponse constructs the HTTP 101 response that
// completes a server-side handshake for the given client key.
func BuildSwitchingProtocolsResponse(clientKey string) *httpmsg.Response {
	resp := httpmsg.NewResponse(httpmsg.HTTP11, httpmsg.StatusSwitchingProtocols)
	resp.Header.Set("Upgrade", "websocket")
	resp.Header.Set("Connection", "Upgrade")
	resp.Header.Set("Sec-WebSocket-Accept", AcceptKey(clientKey))
	return resp
}

// BuildUpgradeRequest constructs the client-side GET Upgrade request for
// path/host, returning it along with the Sec-WebSocket-Key it embeds so
// the caller can verify the server's Sec-WebSocket-Accept later.
func BuildUpgradeRequest(host, path string) (*httpmsg.Request, string) {
	key := randomKey()
	req := &httpmsg.Request{
		Method:  httpmsg.GET,
		Target:  path,
		Version: httpmsg.HTTP11,
		Header:  httpmsg.NewHeader(),
	}
	req.Header.Set("Host", host)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", RequiredWebSocketVersion)
	req.Header.Set("Sec-WebSocket-Key", key)
	return req, key
}

// ValidateUpgradeResponse checks resp against the Sec-WebSocket-Key the
// client sent, completing the client side of the handshake.
func ValidateUpgradeResponse(resp *httpmsg.Response, clientKey string) error {
	if resp.StatusCode != httpmsg.StatusSwitchingProtocols {
		return ErrUpgradeRejected
	}
	if !resp.Header.ContainsToken("Connection", "Upgrade") ||
		!resp.Header.ContainsToken("Upgrade", "websocket") {
		return ErrInvalidUpgradeHeaders
	}
	want := AcceptKey(clientKey)
	if resp.Header.Get("Sec-WebSocket-Accept") != want {
		return ErrUpgradeRejected
	}
	return nil
}

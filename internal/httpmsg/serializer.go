// File: internal/httpmsg/serializer.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Deterministic HTTP/1.1 serialization (spec.md §4.4): request/response line,
// headers in insertion order, a blank line, then the body verbatim. Header
// names are written in canonical MIME case (e.g. "Content-Length"), since
// Header stores them lowercased. A request with a body and no explicit
// Content-Length gets one computed and inserted; a response without one
// always gets one, "Content-Length: 0" for an empty body.

package httpmsg

import (
	"net/textproto"
	"strconv"
	"strings"
)

func writeHeaders(b *strings.Builder, h *Header) {
	for _, k := range h.Keys() {
		for _, v := range h.Values(k) {
			b.WriteString(textproto.CanonicalMIMEHeaderKey(k))
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}
}

// SerializeRequest renders req as raw HTTP/1.1 bytes.
func SerializeRequest(req *Request) []byte {
	var b strings.Builder
	b.WriteString(string(req.Method))
	b.WriteByte(' ')
	b.WriteString(req.Target)
	b.WriteByte(' ')
	b.WriteString(string(req.Version))
	b.WriteString("\r\n")

	h := req.Header
	if h == nil {
		h = NewHeader()
	}
	if len(req.Body) > 0 && !h.Has("content-length") {
		h.Set("Content-Length", strconv.Itoa(len(req.Body)))
	}
	writeHeaders(&b, h)
	b.WriteString("\r\n")
	out := []byte(b.String())
	return append(out, req.Body...)
}

// SerializeResponse renders resp as raw HTTP/1.1 bytes.
func SerializeResponse(resp *Response) []byte {
	var b strings.Builder
	b.WriteString(string(resp.Version))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(resp.StatusCode))
	b.WriteByte(' ')
	reason := resp.Reason
	if reason == "" {
		reason = ReasonPhrase(resp.StatusCode)
	}
	b.WriteString(reason)
	b.WriteString("\r\n")

	h := resp.Header
	if h == nil {
		h = NewHeader()
	}
	if !h.Has("content-length") {
		h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}
	writeHeaders(&b, h)
	b.WriteString("\r\n")
	out := []byte(b.String())
	return append(out, resp.Body...)
}

// File: server/routegroup.go
// Author: hioframe contributors
// License: Apache-2.0
//
// RouteGroup mirrors the teacher's highlevel/server.go Group/joinPrefix:
// a thin view over Server.Router that prepends a common path prefix.

package server

import (
	"strings"

	"github.com/hioframe/hioframe/internal/httpmsg"
)

// RouteGroup registers routes under a common path prefix.
type RouteGroup struct {
	server *Server
	prefix string
}

// Group creates a new route group rooted at prefix.
func (s *Server) Group(prefix string) *RouteGroup {
	return &RouteGroup{server: s, prefix: prefix}
}

// Group creates a nested group whose prefix is g's prefix joined with
// the given sub-prefix.
func (g *RouteGroup) Group(prefix string) *RouteGroup {
	return &RouteGroup{server: g.server, prefix: g.joinPrefix(prefix)}
}

// Handle registers h under pattern, prefixed by the group's path.
func (g *RouteGroup) Handle(pattern string, h *Handler) {
	g.server.router.Handle(g.joinPrefix(pattern), h)
}

// HandleWS is a convenience wrapper registering a GET, upgrade-eligible
// WebSocket route.
func (g *RouteGroup) HandleWS(pattern string, fn func(*Session)) {
	full := g.joinPrefix(pattern)
	g.server.router.Handle(full, &Handler{WSUpgrade: true, WS: fn, Methods: []httpmsg.Method{httpmsg.GET}})
	g.server.AllowUpgrade(full)
}

// Prefix returns the group's path prefix.
func (g *RouteGroup) Prefix() string { return g.prefix }

func (g *RouteGroup) joinPrefix(pattern string) string {
	if g.prefix == "" {
		return pattern
	}
	switch {
	case strings.HasSuffix(g.prefix, "/") && strings.HasPrefix(pattern, "/"):
		return g.prefix + pattern[1:]
	case !strings.HasSuffix(g.prefix, "/") && !strings.HasPrefix(pattern, "/"):
		return g.prefix + "/" + pattern
	default:
		return g.prefix + pattern
	}
}

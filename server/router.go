// File: server/router.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Route table adapted from the teacher's highlevel/server.go
// HandleFuncWithMethods/findHandler/convertToRegex: exact-path fast path
// plus ":param"-style patterns compiled to regex, each entry carrying its
// own allowed-method set (spec.md §4.6's per-path-and-method dispatch
// table and per-path allowed-upgrade flag).

package server

import (
	"regexp"
	"strings"
	"sync"

	"github.com/hioframe/hioframe/internal/httpmsg"
)

// RouteParam is one extracted ":name" path parameter.
type RouteParam struct {
	Key   string
	Value string
}

// Handler processes one HTTP request on a connection and produces a
// tagged result: a response, or an *api.HandlerRaised error naming the
// status code the dispatch layer should look up in the error table
// (spec.md §9's "Ok(response) | Fail(code)" redesign of the original
// throw-HttpResponseCode control flow). Any other non-nil error is
// treated the same as a panic: a canned 500. WSUpgrade, if true, marks
// this route as eligible for a WebSocket upgrade instead of (or in
// addition to) a plain HTTP reply; WS is invoked once the upgrade
// completes.
type Handler struct {
	HTTP      func(req *httpmsg.Request, params []RouteParam) (*httpmsg.Response, error)
	WSUpgrade bool
	WS        func(s *Session)
	Methods   []httpmsg.Method
}

type compiledRoute struct {
	re         *regexp.Regexp
	paramNames []string
	handler    *Handler
}

// Router holds the registered routes and resolves an incoming request path
// (plus method) to a Handler and its extracted parameters.
type Router struct {
	mu       sync.RWMutex
	exact    map[string]*Handler
	patterns []compiledRoute
}

// NewRouter constructs an empty Router.
func NewRouter() *Router {
	return &Router{exact: make(map[string]*Handler)}
}

// Handle registers h for pattern. Patterns containing ":name" segments are
// compiled to a regex that extracts named parameters; all other patterns
// are matched exactly.
func (r *Router) Handle(pattern string, h *Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !strings.Contains(pattern, ":") {
		r.exact[pattern] = h
		return
	}
	re, names := compilePattern(pattern)
	r.patterns = append(r.patterns, compiledRoute{re: re, paramNames: names, handler: h})
}

// Match resolves path+method to a handler and its extracted parameters.
// allowed is populated with the method set for a path match found under a
// different method, so the caller can answer with 405 and an Allow header.
func (r *Router) Match(path string, method httpmsg.Method) (h *Handler, params []RouteParam, allowed []httpmsg.Method) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if handler, ok := r.exact[path]; ok {
		if methodAllowed(method, handler.Methods) {
			return handler, nil, nil
		}
		return nil, nil, handler.Methods
	}

	for _, cr := range r.patterns {
		matches := cr.re.FindStringSubmatch(path)
		if matches == nil {
			continue
		}
		if !methodAllowed(method, cr.handler.Methods) {
			allowed = cr.handler.Methods
			continue
		}
		params = make([]RouteParam, 0, len(cr.paramNames))
		for i, name := range cr.paramNames {
			if i+1 < len(matches) {
				params = append(params, RouteParam{Key: name, Value: matches[i+1]})
			}
		}
		return cr.handler, params, nil
	}
	return nil, nil, allowed
}

func methodAllowed(method httpmsg.Method, allowed []httpmsg.Method) bool {
	if len(allowed) == 0 {
		return method == httpmsg.GET
	}
	for _, m := range allowed {
		if m == method {
			return true
		}
	}
	return false
}

func compilePattern(pattern string) (*regexp.Regexp, []string) {
	parts := strings.Split(pattern, "/")
	regexParts := make([]string, 0, len(parts))
	var names []string
	for _, part := range parts {
		switch {
		case strings.HasPrefix(part, ":"):
			names = append(names, strings.TrimPrefix(part, ":"))
			regexParts = append(regexParts, `([^/]+)`)
		case part == "":
			regexParts = append(regexParts, "")
		default:
			regexParts = append(regexParts, regexp.QuoteMeta(part))
		}
	}
	return regexp.MustCompile("^" + strings.Join(regexParts, "/") + "$"), names
}

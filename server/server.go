// File: server/server.go
// Author: hioframe contributors
// License: Apache-2.0
//
// Server ties the protocol core together (spec.md §2's data-flow diagram):
// a Listener hands accepted connections to either the event loop
// (internal/reactor) or the worker pool (internal/workerpool); each
// connection's bytes are fed to its internal/httpmsg parser; a completed
// request is dispatched through Router to a Handler; an eligible upgrade
// request hands the connection to protocol's handshake/session machinery
// instead. Adapted from the teacher's server/hioload.go Start/Stop/accept
// loop, generalized from its NUMA-pinned acceptor onto this module's
// api.Listener/api.Transport contracts.

package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hioframe/hioframe/adapters"
	"github.com/hioframe/hioframe/api"
	"github.com/hioframe/hioframe/internal/httpmsg"
	"github.com/hioframe/hioframe/internal/reactor"
	"github.com/hioframe/hioframe/internal/registry"
	"github.com/hioframe/hioframe/internal/wsframe"
	"github.com/hioframe/hioframe/internal/workerpool"
	"github.com/hioframe/hioframe/protocol"
	"github.com/hioframe/hioframe/transport/tcp"
	tlstransport "github.com/hioframe/hioframe/transport/tls"
)

// Server is the library's HTTP+WebSocket server façade (spec.md §6).
// Handler tables, the allowed-upgrade-path set and middleware are
// immutable once Start is called (spec.md §5's shared-resource policy).
type Server struct {
	cfg        *Config
	router     *Router
	errors     map[int]func(*httpmsg.Request) *httpmsg.Response
	upgrade    map[string]bool
	middleware []Middleware
	logger     *adapters.Logger

	listener api.Listener
	registry *registry.Registry

	// sessions maps upgraded connections to their application-facing
	// Session wrapper, so Broadcast/WriteFrame can reach every live
	// WebSocket connection (spec.md §4.7's targeted-or-broadcast write).
	sessMu   sync.RWMutex
	sessions map[api.PeerKey]*Session

	poller  api.Poller
	loop    *reactor.Loop
	connsMu sync.Mutex
	conns   map[uintptr]*registry.Conn

	pool *workerpool.Pool

	started   bool
	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New constructs a Server from the given options layered over DefaultConfig.
func New(opts ...ServerOption) *Server {
	s := &Server{
		cfg:      DefaultConfig(),
		router:   NewRouter(),
		errors:   make(map[int]func(*httpmsg.Request) *httpmsg.Response),
		upgrade:  make(map[string]bool),
		sessions: make(map[api.PeerKey]*Session),
		registry: registry.New(),
		conns:    make(map[uintptr]*registry.Conn),
		closing:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = adapters.NewLogger(256)
	}
	return s
}

// Route registers a plain HTTP handler for method+pattern (spec.md C6).
func (s *Server) Route(method httpmsg.Method, pattern string, fn func(*httpmsg.Request, []RouteParam) (*httpmsg.Response, error)) {
	s.router.Handle(pattern, &Handler{HTTP: fn, Methods: []httpmsg.Method{method}})
}

// HandleWS registers a GET route eligible for WebSocket upgrade, whose
// session handler fn runs once the upgrade completes.
func (s *Server) HandleWS(pattern string, fn func(*Session)) {
	s.router.Handle(pattern, &Handler{WSUpgrade: true, WS: fn, Methods: []httpmsg.Method{httpmsg.GET}})
	s.AllowUpgrade(pattern)
}

// Group creates a RouteGroup rooted at prefix.
func (s *Server) Group(prefix string) *RouteGroup {
	return &RouteGroup{server: s, prefix: prefix}
}

// OnError registers a canned-response handler for the given status code
// (spec.md C6's error table).
func (s *Server) OnError(code int, fn func(*httpmsg.Request) *httpmsg.Response) {
	s.errors[code] = fn
}

// AllowUpgrade marks path as eligible for WebSocket upgrade.
func (s *Server) AllowUpgrade(path string) {
	s.upgrade[path] = true
}

// Use appends middleware to the server's WebSocket session chain.
func (s *Server) Use(mw ...Middleware) {
	s.middleware = append(s.middleware, mw...)
}

// Listen binds the configured address, wrapping it in TLS if configured.
func (s *Server) Listen() error {
	ln, err := tcp.Listen(s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = ln
	if s.cfg.Scheduling == EventLoopMode {
		poller, err := reactor.NewPoller()
		if err != nil {
			ln.Close()
			return fmt.Errorf("server: create poller: %w", err)
		}
		s.poller = poller
		s.loop = reactor.NewLoop(poller, eventHandlerFunc(s.handlePollEvent), s.cfg.BatchSize)
	} else {
		s.pool = workerpool.New(s.cfg.PoolWorkers)
	}
	return nil
}

// ListenAddr returns the address the server is actually bound to, useful
// when Config.ListenAddr requests an ephemeral port. Valid after Listen (or
// Start) has succeeded.
func (s *Server) ListenAddr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr()
}

// eventHandlerFunc adapts a plain function to api.EventHandler.
type eventHandlerFunc func(api.Event)

func (f eventHandlerFunc) HandleEvent(ev api.Event) { f(ev) }

// Start begins accepting connections. Accept and dispatch run on background
// goroutines and Start returns immediately.
func (s *Server) Start() error {
	if s.started {
		return errors.New("server: already started")
	}
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.started = true
	if s.loop != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop.Run()
		}()
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		tr, peer, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closing:
				return
			default:
			}
			if errors.Is(err, api.ErrWouldBlock) {
				time.Sleep(time.Millisecond)
				continue
			}
			s.logger.Printf("server: accept error: %v", err)
			continue
		}
		if s.cfg.MaxConnections > 0 && s.registry.Len() >= s.cfg.MaxConnections {
			_ = tr.Close()
			continue
		}
		if s.cfg.TLSConfig != nil {
			wrapped, err := tlstransport.Server(tr, s.cfg.TLSConfig)
			if err != nil {
				s.logger.Printf("server: tls handshake with %s failed: %v", peer, err)
				_ = tr.Close()
				continue
			}
			tr = wrapped
		}
		_ = tr.SetNonblocking()
		conn := registry.NewConn(peer, tr)
		s.registry.Insert(conn)

		switch s.cfg.Scheduling {
		case EventLoopMode:
			s.registerForReadiness(conn)
		case WorkerPoolMode:
			_ = s.pool.Submit(func() { s.workerServe(conn) })
		}
	}
}

func (s *Server) registerForReadiness(conn *registry.Conn) {
	fd := conn.Transport.RawFD()
	s.connsMu.Lock()
	s.conns[fd] = conn
	s.connsMu.Unlock()
	if err := s.poller.Register(fd, fd); err != nil {
		s.logger.Printf("server: poller register failed for %s: %v", conn.Key, err)
		s.closeConn(conn)
	}
}

func (s *Server) handlePollEvent(ev api.Event) {
	s.registry.DrainClosing()
	s.connsMu.Lock()
	conn, ok := s.conns[ev.Fd]
	s.connsMu.Unlock()
	if !ok {
		return
	}
	if !ev.Readable {
		return
	}
	buf := make([]byte, s.cfg.ReadBufferSize)
	n, err := conn.Transport.Read(buf)
	if err != nil {
		if errors.Is(err, api.ErrWouldBlock) {
			return
		}
		s.closeConn(conn)
		return
	}
	if n == 0 {
		s.closeConn(conn)
		return
	}
	if err := s.feed(conn, buf[:n]); err != nil {
		s.logger.Printf("server: protocol error on %s: %v", conn.Key, err)
		s.closeConn(conn)
	}
}

// workerServe runs a blocking read loop for one connection, used in
// WorkerPoolMode (spec.md §5's thread-per-connection fallback).
func (s *Server) workerServe(conn *registry.Conn) {
	buf := make([]byte, s.cfg.ReadBufferSize)
	for {
		n, err := conn.Transport.Read(buf)
		if err != nil {
			if errors.Is(err, api.ErrWouldBlock) {
				time.Sleep(time.Millisecond)
				continue
			}
			break
		}
		if n == 0 {
			break
		}
		if err := s.feed(conn, buf[:n]); err != nil {
			s.logger.Printf("server: protocol error on %s: %v", conn.Key, err)
			break
		}
		if conn.State() != api.ConnConnected {
			break
		}
	}
	s.closeConn(conn)
}

// feed advances conn's parser with newly-read bytes, dispatching any
// resulting HTTP request or WebSocket message.
func (s *Server) feed(conn *registry.Conn, data []byte) error {
	if conn.Tracker.CanExchangeFrames() {
		return s.feedWebSocket(conn, data)
	}
	if err := conn.HTTPParser.Feed(data, false); err != nil {
		s.writeErrorResponse(conn, httpmsg.StatusBadRequest)
		return err
	}
	for {
		req, ok := conn.HTTPParser.Take()
		if !ok {
			break
		}
		more := s.dispatchHTTP(conn, req)
		if conn.Tracker.CanExchangeFrames() {
			// The upgrade just completed: any bytes the HTTP parser had
			// already buffered past this request belong to the new
			// WebSocket session, not a pipelined HTTP message.
			leftover := conn.HTTPParser.Leftover()
			if len(leftover) > 0 {
				return s.feedWebSocket(conn, leftover)
			}
			return nil
		}
		if !more {
			return nil
		}
	}
	return nil
}

func (s *Server) feedWebSocket(conn *registry.Conn, data []byte) error {
	if err := conn.Session.Feed(data); err != nil {
		_ = conn.Session.Close(wsframe.CloseProtocolError, "protocol error")
		return err
	}
	for {
		msg, ok := conn.Session.NextMessage()
		if !ok {
			break
		}
		s.dispatchWSMessage(conn, msg)
	}
	if conn.Tracker.State() == api.StateWSClosing {
		s.closeConn(conn)
	}
	return nil
}

// dispatchHTTP handles one completed request (spec.md C6 step 1-3),
// returning false if the connection was handed off to WebSocket mode or
// closed and must stop parsing as HTTP.
func (s *Server) dispatchHTTP(conn *registry.Conn, req *httpmsg.Request) bool {
	upgradable := s.upgrade[req.Target]
	if !upgradable {
		// Routes registered via HandleWS with ":param" segments are allowed
		// under their pattern, not the concrete request path.
		if wh, _, _ := s.router.Match(req.Target, httpmsg.GET); wh != nil && wh.WSUpgrade {
			upgradable = true
		}
	}
	if upgradable && looksLikeUpgrade(req) {
		// tryUpgrade always produces a final response for this request
		// (101 on success, 400 on validation failure) and must not fall
		// through to ordinary routing either way. A successful upgrade
		// hands the connection to WebSocket mode (stop HTTP dispatch); a
		// failed one keeps it in HTTP_ACTIVE for the next pipelined
		// request (spec.md §4.7).
		return !s.tryUpgrade(conn, req)
	}

	h, params, allowed := s.router.Match(req.Target, req.Method)
	var resp *httpmsg.Response
	switch {
	case h == nil && len(allowed) > 0:
		resp = s.cannedOrError(req, 405)
		resp.Header.Set("Allow", joinMethods(allowed))
	case h == nil:
		resp = s.cannedOrError(req, httpmsg.StatusNotFound)
	case h.WSUpgrade:
		// Registered as upgrade-eligible but the request didn't carry
		// upgrade headers: fall through to 400, matching spec.md §4.7.
		resp = s.cannedOrError(req, httpmsg.StatusBadRequest)
	default:
		resp = s.invokeHTTP(req, h, params)
	}

	s.writeResponse(conn, resp)
	if req.Header.ContainsToken("connection", "close") || resp.Header.ContainsToken("connection", "close") {
		s.closeConn(conn)
		return false
	}
	return true
}

// invokeHTTP runs h against req and maps its tagged result to a response
// (spec.md §4.6 step 2): Ok(resp) passes through, Fail(code) — an
// *api.HandlerRaised — is looked up in s.errors the same way a routing
// failure is, and any other error or a panic falls back to a canned 500.
func (s *Server) invokeHTTP(req *httpmsg.Request, h *Handler, params []RouteParam) (resp *httpmsg.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("server: handler panic: %v", r)
			resp = s.cannedOrError(req, httpmsg.StatusInternalError)
		}
	}()
	out, err := h.HTTP(req, params)
	if err != nil {
		if raised, ok := err.(*api.HandlerRaised); ok {
			return s.cannedOrError(req, raised.Code)
		}
		s.logger.Printf("server: handler error: %v", err)
		return s.cannedOrError(req, httpmsg.StatusInternalError)
	}
	if out != nil {
		return out
	}
	return s.cannedOrError(req, httpmsg.StatusInternalError)
}

func (s *Server) cannedOrError(req *httpmsg.Request, code int) *httpmsg.Response {
	if fn, ok := s.errors[code]; ok {
		if resp := fn(req); resp != nil {
			return resp
		}
	}
	return httpmsg.NewResponse(httpmsg.HTTP11, code)
}

func (s *Server) writeErrorResponse(conn *registry.Conn, code int) {
	resp := httpmsg.NewResponse(httpmsg.HTTP11, code)
	s.writeResponse(conn, resp)
	s.closeConn(conn)
}

func (s *Server) writeResponse(conn *registry.Conn, resp *httpmsg.Response) {
	raw := httpmsg.SerializeResponse(resp)
	if _, err := conn.Transport.Write(raw); err != nil {
		s.logger.Printf("server: write error on %s: %v", conn.Key, err)
		s.closeConn(conn)
	}
}

// tryUpgrade performs the server side of the RFC 6455 handshake (spec.md
// §4.7). It returns true if the connection was switched to WebSocket mode.
func (s *Server) tryUpgrade(conn *registry.Conn, req *httpmsg.Request) bool {
	clientKey, err := protocol.ValidateUpgradeRequest(req)
	if err != nil {
		s.writeResponse(conn, httpmsg.NewResponse(httpmsg.HTTP11, httpmsg.StatusBadRequest))
		return false
	}
	if err := conn.Tracker.BeginUpgrade(); err != nil {
		s.writeResponse(conn, httpmsg.NewResponse(httpmsg.HTTP11, httpmsg.StatusBadRequest))
		return false
	}

	resp := protocol.BuildSwitchingProtocolsResponse(clientKey)
	s.writeResponse(conn, resp)
	_ = conn.Tracker.CompleteUpgrade()

	conn.Path = req.Target
	conn.Session = protocol.NewSession(conn.Transport, wsframe.RoleServer, conn.Tracker)

	sess := newSession(conn.Session, conn.Key, s, conn)
	h, params, _ := s.router.Match(req.Target, httpmsg.GET)
	if h != nil && h.WSUpgrade {
		sess.Params = params
	}
	s.sessMu.Lock()
	s.sessions[conn.Key] = sess
	s.sessMu.Unlock()

	if h != nil && h.WS != nil {
		run := applyMiddleware(s.middleware, h.WS)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			run(sess)
		}()
	}
	return true
}

// dispatchWSMessage hands a reassembled message to the session's
// application handler goroutine via its message channel (spec.md §4.7):
// the loop/worker goroutine remains the sole reader of conn.Transport.
func (s *Server) dispatchWSMessage(conn *registry.Conn, msg *wsframe.Message) {
	s.sessMu.RLock()
	sess, ok := s.sessions[conn.Key]
	s.sessMu.RUnlock()
	if !ok {
		return
	}
	sess.deliver(msg)
}

func (s *Server) closeConn(conn *registry.Conn) {
	if conn.State() == api.ConnClosed {
		return
	}
	if s.loop != nil {
		fd := conn.Transport.RawFD()
		_ = s.poller.Unregister(fd)
		s.connsMu.Lock()
		delete(s.conns, fd)
		s.connsMu.Unlock()
	}
	s.sessMu.Lock()
	sess, ok := s.sessions[conn.Key]
	delete(s.sessions, conn.Key)
	s.sessMu.Unlock()
	if ok {
		sess.closeChannel()
	}
	s.registry.Remove(conn.Key)
}

// WriteFrame writes frame on conn's session if conn is non-nil, or
// broadcasts it to every live WebSocket session otherwise (spec.md §4.7's
// write_frame contract).
func (s *Server) WriteFrame(frame *wsframe.Frame, conn *Session) error {
	if conn != nil {
		return conn.writeFrame(frame)
	}
	s.sessMu.RLock()
	targets := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		targets = append(targets, sess)
	}
	s.sessMu.RUnlock()
	var firstErr error
	for _, sess := range targets {
		if err := sess.writeFrame(frame); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Broadcast sends a text message to every live WebSocket session.
func (s *Server) Broadcast(text string) {
	_ = s.WriteFrame(&wsframe.Frame{Fin: true, Opcode: wsframe.OpText, Payload: []byte(text)}, nil)
}

// ActiveSessions returns the number of currently upgraded WebSocket
// connections.
func (s *Server) ActiveSessions() int {
	s.sessMu.RLock()
	defer s.sessMu.RUnlock()
	return len(s.sessions)
}

// Close stops accepting new connections, drains the event loop or worker
// pool, and closes every live connection (spec.md §5's cancellation
// contract, §8 invariant 6: no connection remains in the registry once
// Close returns).
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)
		if s.listener != nil {
			err = s.listener.Close()
		}
		// Close every live transport first so any goroutine blocked in a
		// Read call (worker-pool mode) or about to poll again (event-loop
		// mode) unblocks with an error instead of the loop/pool waiting on
		// it forever below. Session handler goroutines blocked in Recv get
		// unblocked the same way, via their message channel.
		s.sessMu.Lock()
		for key, sess := range s.sessions {
			sess.closeChannel()
			delete(s.sessions, key)
		}
		s.sessMu.Unlock()
		s.registry.CloseAll()
		if s.loop != nil {
			s.loop.Stop()
		}
		if s.pool != nil {
			s.pool.Close()
		}

		done := make(chan struct{})
		go func() { s.wg.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(s.cfg.ShutdownTimeout):
			s.logger.Printf("server: shutdown timed out after %s", s.cfg.ShutdownTimeout)
		}
		s.logger.Close()
	})
	return err
}

func looksLikeUpgrade(req *httpmsg.Request) bool {
	return req.Header.ContainsToken("connection", "Upgrade") && req.Header.ContainsToken("upgrade", "websocket")
}

func joinMethods(methods []httpmsg.Method) string {
	out := ""
	for i, m := range methods {
		if i > 0 {
			out += ", "
		}
		out += string(m)
	}
	return out
}

// writeFrame is the low-level per-session write primitive middleware and
// WriteFrame build on.
func (s *Session) writeFrame(f *wsframe.Frame) error {
	return s.Session.Send(f)
}

// Package streamhttp serves MCP over the streamable HTTP transport.
// It owns everything in front of the per-session transports: endpoint
// routing, bearer auth, origin and host checks, the bounded session
// table, idle collection, and graceful teardown. Wire framing is
// delegated to the protocol SDK.
package streamhttp

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forgemcp/forge-mcp-server/internal/logctx"
	"github.com/forgemcp/forge-mcp-server/internal/wellknown"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

const (
	mcpSessionIDHeader    = "Mcp-Session-Id"
	authorizationHeader   = "Authorization"
	wwwAuthenticateHeader = "WWW-Authenticate"

	maxBodyBytes = 4 << 20

	shutdownGrace = 5 * time.Second
)

// CoreFactory builds a fresh per-session MCP server. The onActivity
// callback must be invoked for every inbound message on that session.
type CoreFactory func(onActivity func()) (*mcp.Server, error)

// Manager routes streamable HTTP traffic to per-session transports.
type Manager struct {
	cfg     Config
	log     *slog.Logger
	factory CoreFactory
	mux     *http.ServeMux

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool

	gcCancel context.CancelFunc
	gcDone   chan struct{}
}

type newConfig struct {
	logger *slog.Logger
}

type Option func(*newConfig)

// WithLogger sets the slog logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *newConfig) { c.logger = l }
}

// New validates the config and builds the manager. The idle sweeper
// starts immediately when an idle timeout is configured.
func New(cfg Config, factory CoreFactory, opts ...Option) (*Manager, error) {
	if factory == nil {
		return nil, fmt.Errorf("streamhttp: core factory is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nc := &newConfig{}
	for _, o := range opts {
		o(nc)
	}
	log := nc.logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	m := &Manager{
		cfg:      cfg,
		log:      log,
		factory:  factory,
		mux:      http.NewServeMux(),
		sessions: make(map[string]*session),
		gcDone:   make(chan struct{}),
	}

	m.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	m.mux.HandleFunc(cfg.EndpointPath, m.handleMCP(endpointPrimary))
	if cfg.CutoverPath != "" {
		m.mux.HandleFunc(cfg.CutoverPath, m.handleMCP(endpointCutover))
	}
	if cfg.MetadataPath != "" {
		m.mux.HandleFunc(cfg.MetadataPath, m.handleMetadata)
	}

	gcCtx, cancel := context.WithCancel(context.Background())
	m.gcCancel = cancel
	if cfg.IdleTimeout > 0 {
		go m.gcLoop(gcCtx)
	} else {
		close(m.gcDone)
	}

	if cfg.PublicWithoutAuth() {
		m.log.Warn("listen.public_without_auth",
			slog.String("bind", cfg.BindHost),
			slog.String("hint", "set FORGE_MCP_HTTP_TOKEN or bind to loopback"))
	}
	return m, nil
}

// writeJSONError emits a minimal JSON body for HTTP-layer rejections
// before a JSON-RPC exchange is possible. This is transport-level, not
// JSON-RPC framing.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":%q}}`, status, msg)
}

// trackingWriter remembers whether anything was written so the panic
// fallback never stomps on a committed response. Flush must pass
// through for SSE streams.
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (t *trackingWriter) WriteHeader(code int) {
	t.wrote = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	t.wrote = true
	return t.ResponseWriter.Write(p)
}

func (t *trackingWriter) Flush() {
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tw := &trackingWriter{ResponseWriter: w}
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})

	defer func() {
		if rec := recover(); rec != nil {
			m.log.ErrorContext(ctx, "http.panic", slog.Any("err", rec))
			if !tw.wrote {
				writeJSONError(tw, http.StatusInternalServerError, "internal server error")
			}
		}
	}()

	m.mux.ServeHTTP(tw, r.WithContext(ctx))
}

func (m *Manager) handleMCP(kind endpointKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !m.originAllowed(r) {
			m.log.WarnContext(ctx, "origin.check.fail", slog.String("origin", r.Header.Get("Origin")))
			writeJSONError(w, http.StatusForbidden, "origin not allowed")
			return
		}
		if !m.hostAllowed(r) {
			m.log.WarnContext(ctx, "host.check.fail", slog.String("host", r.Host))
			writeJSONError(w, http.StatusForbidden, "host not allowed")
			return
		}

		sessID := r.Header.Get(mcpSessionIDHeader)
		if sessID == "" {
			if token := m.cfg.endpointToken(kind); token != "" && !authorized(r, token) {
				m.log.InfoContext(ctx, "auth.check.fail", slog.String("endpoint", kind.String()))
				m.writeChallenge(w, r)
				return
			}
			if r.Method != http.MethodPost {
				writeJSONError(w, http.StatusBadRequest, "no valid session, initialize required")
				return
			}
			m.createSession(w, r, kind)
			return
		}

		sess := m.lookup(sessID, kind)
		if sess == nil {
			// Unknown id and wrong-endpoint id are indistinguishable
			// on purpose.
			m.log.InfoContext(ctx, "session.load.miss")
			writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}

		// The session remembers the token it was created under.
		if sess.token != "" && !authorized(r, sess.token) {
			m.log.InfoContext(ctx, "auth.check.fail", slog.String("endpoint", kind.String()))
			m.writeChallenge(w, r)
			return
		}

		ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.id, Endpoint: sess.endpoint.String()})
		sess.touch()

		if r.Method == http.MethodDelete {
			m.remove(sess)
			sess.destroy()
			m.log.InfoContext(ctx, "session.delete.ok", slog.Duration("age", time.Since(sess.createdAt)))
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if r.Method == http.MethodPost {
			if ct, err := contenttype.GetMediaType(r); err != nil || !ct.Matches(jsonMediaType) {
				writeJSONError(w, http.StatusBadRequest, "content-type must be application/json")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		// A long-lived stream refreshes activity when its connection
		// ends so it cannot be reaped mid-response.
		stop := context.AfterFunc(ctx, sess.touch)
		defer stop()

		sess.transport.ServeHTTP(w, r.WithContext(ctx))
	}
}

// createSession handles a POST without a session id: only an
// initialize request may open a session.
func (m *Manager) createSession(w http.ResponseWriter, r *http.Request, kind endpointKind) {
	ctx := r.Context()

	if ct, err := contenttype.GetMediaType(r); err != nil || !ct.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusBadRequest, "content-type must be application/json")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "request body unreadable or too large")
		return
	}
	if !isInitialize(body) {
		m.log.InfoContext(ctx, "session.create.not_initialize")
		writeJSONError(w, http.StatusBadRequest, "a request without a session id must be an initialize request")
		return
	}

	sess := &session{
		id:        rand.Text(),
		endpoint:  kind,
		token:     m.cfg.endpointToken(kind),
		createdAt: time.Now(),
	}
	sess.touch()

	// Reserve the table slot before the connect so concurrent
	// initializes cannot overshoot the limit.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		writeJSONError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		m.log.WarnContext(ctx, "session.create.capacity", slog.Int("max", m.cfg.MaxSessions))
		writeJSONError(w, http.StatusServiceUnavailable, "session limit reached")
		return
	}
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	transport := &mcp.StreamableServerTransport{SessionID: sess.id}
	srv, err := m.factory(sess.touch)
	var srvSess *mcp.ServerSession
	if err == nil {
		srvSess, err = srv.Connect(ctx, transport, nil)
	}
	if err != nil {
		m.remove(sess)
		sess.destroy()
		m.log.ErrorContext(ctx, "session.create.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	m.mu.Lock()
	if m.closed {
		// Shutdown drained the table while the connect was in flight
		// and consumed this session's destroy before the server
		// session existed, so the new one is closed here.
		m.mu.Unlock()
		_ = srvSess.Close()
		writeJSONError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	sess.srvSess = srvSess
	sess.transport = transport
	m.mu.Unlock()

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.id, Endpoint: kind.String()})
	m.log.InfoContext(ctx, "session.create.ok")

	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	transport.ServeHTTP(w, r.WithContext(ctx))
}

func isInitialize(body []byte) bool {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Method == "initialize"
}

// lookup returns the session only when it was created on the same
// endpoint and is fully connected.
func (m *Manager) lookup(id string, kind endpointKind) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	if s == nil || s.endpoint != kind || s.transport == nil {
		return nil
	}
	return s
}

func (m *Manager) remove(s *session) {
	m.mu.Lock()
	delete(m.sessions, s.id)
	m.mu.Unlock()
}

// SessionCount reports the current table size.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) hostAllowed(r *http.Request) bool {
	if len(m.cfg.AllowedHosts) == 0 {
		return true
	}
	for _, h := range m.cfg.AllowedHosts {
		if strings.EqualFold(h, r.Host) {
			return true
		}
	}
	return false
}

// originAllowed only constrains requests that carry an Origin header;
// non-browser clients typically send none.
func (m *Manager) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(m.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range m.cfg.AllowedOrigins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func authorized(r *http.Request, token string) bool {
	const bearerPrefix = "Bearer "
	h := r.Header.Get(authorizationHeader)
	if len(h) <= len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(h[len(bearerPrefix):]), []byte(token)) == 1
}

// writeChallenge answers 401 with an RFC 6750 Bearer challenge. The
// error attribute is only present when credentials were supplied and
// rejected.
func (m *Manager) writeChallenge(w http.ResponseWriter, r *http.Request) {
	params := map[string]string{}
	if r.Header.Get(authorizationHeader) != "" {
		params["error"] = "invalid_token"
		params["error_description"] = "the access token is invalid"
	}
	w.Header().Set(wwwAuthenticateHeader, buildBearerChallenge(m.resourceMetadataURL(r), params))
	writeJSONError(w, http.StatusUnauthorized, "authorization required")
}

// buildBearerChallenge builds the Bearer challenge value. Attribute
// order is fixed so tests and clients see stable output.
func buildBearerChallenge(resourceMetadata string, params map[string]string) string {
	esc := func(v string) string { return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) }
	pieces := make([]string, 0, 3)
	if resourceMetadata != "" {
		pieces = append(pieces, fmt.Sprintf(`resource_metadata="%s"`, esc(resourceMetadata)))
	}
	if v, ok := params["error"]; ok {
		pieces = append(pieces, fmt.Sprintf(`error="%s"`, esc(v)))
	}
	if v, ok := params["error_description"]; ok {
		pieces = append(pieces, fmt.Sprintf(`error_description="%s"`, esc(v)))
	}
	if len(pieces) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(pieces, ", ")
}

func (m *Manager) resourceMetadataURL(r *http.Request) string {
	if m.cfg.ResourceMetadataURL != "" {
		return m.cfg.ResourceMetadataURL
	}
	if m.cfg.MetadataPath != "" {
		return fmt.Sprintf("%s://%s%s", m.scheme(r), r.Host, m.cfg.MetadataPath)
	}
	return ""
}

func (m *Manager) scheme(r *http.Request) string {
	if r.TLS != nil || m.cfg.TLSEnabled() {
		return "https"
	}
	return "http"
}

// handleMetadata serves the protected-resource-metadata document.
// Unauthenticated by design: clients fetch it to learn how to obtain
// credentials.
func (m *Manager) handleMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	doc := wellknown.ProtectedResourceMetadata{
		Resource:               fmt.Sprintf("%s://%s%s", m.scheme(r), r.Host, m.cfg.EndpointPath),
		AuthorizationServers:   m.cfg.AuthServers,
		ScopesSupported:        m.cfg.Scopes,
		BearerMethodsSupported: []string{"header"},
		ResourceName:           "forge-mcp-server",
	}
	w.Header().Set("Content-Type", jsonMediaType.String())
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		m.log.ErrorContext(r.Context(), "metadata.write.fail", slog.String("err", err.Error()))
	}
}

func (m *Manager) gcLoop(ctx context.Context) {
	defer close(m.gcDone)

	interval := m.cfg.IdleTimeout / 5
	if interval < time.Second {
		interval = time.Second
	}
	if interval > 30*time.Second {
		interval = 30 * time.Second
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.sweep()
		}
	}
}

// sweep reaps idle sessions. Expired entries are collected under the
// lock and destroyed outside it.
func (m *Manager) sweep() {
	now := time.Now()
	var expired []*session

	m.mu.Lock()
	for _, s := range m.sessions {
		if s.transport != nil && s.idleFor(now) > m.cfg.IdleTimeout {
			expired = append(expired, s)
		}
	}
	for _, s := range expired {
		delete(m.sessions, s.id)
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.destroy()
		m.log.Info("gc.sweep.reap",
			slog.String("session_id", s.id),
			slog.Duration("idle", s.idleFor(now)),
			slog.Duration("age", now.Sub(s.createdAt)))
	}
}

// Shutdown stops accepting sessions, destroys every live one, and
// waits for the sweeper, bounded by the context and a hard grace
// period.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	all := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	m.gcCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, s := range all {
			s.destroy()
		}
		<-m.gcDone
	}()

	select {
	case <-done:
		m.log.Info("shutdown.ok", slog.Int("sessions", len(all)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(shutdownGrace):
		return fmt.Errorf("streamhttp: shutdown grace period exceeded")
	}
}

// ListenAndServe runs the listener until the context ends, then tears
// down sessions before draining the HTTP server so hanging streams
// wake up.
func (m *Manager) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    m.cfg.Addr(),
		Handler: m,
	}

	errC := make(chan error, 1)
	go func() {
		m.log.Info("listen.start",
			slog.String("addr", m.cfg.Addr()),
			slog.String("endpoint", m.cfg.EndpointPath),
			slog.Bool("tls", m.cfg.TLSEnabled()))
		if m.cfg.TLSEnabled() {
			errC <- srv.ListenAndServeTLS(m.cfg.TLSCertFile, m.cfg.TLSKeyFile)
		} else {
			errC <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := m.Shutdown(shCtx); err != nil {
		m.log.Warn("shutdown.sessions.fail", slog.String("err", err.Error()))
	}
	if err := srv.Shutdown(shCtx); err != nil {
		return srv.Close()
	}
	return nil
}

// Package site serves rendered content pages over HTTP.
package site

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/letmevibethatforyou/contentx"
	"github.com/letmevibethatforyou/contentx/graph"
	"github.com/letmevibethatforyou/contentx/pipeline"
	"github.com/letmevibethatforyou/contentx/preview"
	"github.com/letmevibethatforyou/contentx/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/ksuid"
)

const (
	// VisitorCookie holds the id the ranking decision is keyed by.
	VisitorCookie = "visitor_id"

	// SocketPath is where preview pages open their websocket.
	SocketPath = "/preview/ws"
)

// ErrUnknownSession is returned when a socket names a session that was
// never issued or has expired.
var ErrUnknownSession = errors.New("unknown preview session")

// Server renders pages through a pipeline and keeps preview pages live.
type Server struct {
	pipeline    *pipeline.Pipeline
	hub         *preview.Hub
	bridge      *preview.Bridge
	sessions    *sessionStore
	metrics     *Metrics
	logger      *slog.Logger
	previewOpts []preview.Option
	checkOrigin func(r *http.Request) bool
	clock       clock.Clock
	sessionTTL  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics sets the metrics collectors. By default a private set is
// created.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithPreviewOptions configures the listener of every preview session.
func WithPreviewOptions(opts ...preview.Option) Option {
	return func(s *Server) {
		s.previewOpts = append(s.previewOpts, opts...)
	}
}

// WithCheckOrigin sets the websocket origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.checkOrigin = fn
	}
}

// WithClock sets the clock used to expire preview sessions.
func WithClock(c clock.Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithSessionTTL sets how long an issued preview session stays valid.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) {
		s.sessionTTL = d
	}
}

// New creates a Server.
func New(p *pipeline.Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline:   p,
		hub:        preview.NewHub(),
		logger:     slog.Default(),
		clock:      clock.New(),
		sessionTTL: DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics("contentx")
	}
	s.sessions = newSessionStore(s.clock, s.sessionTTL)

	bridgeOpts := []preview.BridgeOption{
		preview.WithSessionHandler(s.openSession),
		preview.WithBridgeLogger(s.logger),
	}
	if s.checkOrigin != nil {
		bridgeOpts = append(bridgeOpts, preview.WithCheckOrigin(s.checkOrigin))
	}
	s.bridge = preview.NewBridge(s.hub, bridgeOpts...)
	return s
}

// Hub returns the hub save events are published to.
func (s *Server) Hub() *preview.Hub {
	return s.hub
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	r.Get(SocketPath, s.bridge.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(s.visitor)
		r.Get("/*", s.page)
	})

	return r
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	token, inEditor := EditorContext(r)
	if token != "" {
		ctx = graph.WithBearerToken(ctx, token)
	}

	req := pipeline.Request{
		Params:    ParseRoute(r.URL),
		InEditor:  inEditor,
		VisitorID: VisitorID(ctx),
	}

	data, res := s.pipeline.Page(ctx, req)
	if preview.Active(res.Mode, inEditor) {
		id := s.sessions.add(req, token)
		data.Preview = &render.PreviewScript{
			SessionID:  id,
			SocketPath: SocketPath + "?session=" + url.QueryEscape(id),
		}
	}

	var buf bytes.Buffer
	if err := render.Page(&buf, data); err != nil {
		s.logger.ErrorContext(ctx, "failed to render page", "path", r.URL.Path, "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if data.Status == render.StatusError {
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	w.Write(buf.Bytes())

	s.metrics.PageRenders.WithLabelValues(res.Mode.String(), data.Status.String()).Inc()
	s.metrics.PageDuration.WithLabelValues(res.Mode.String()).Observe(time.Since(start).Seconds())
}

// openSession implements preview.SessionHandler.
func (s *Server) openSession(ctx context.Context, sessionID string, send func(preview.Update) error) (func(), error) {
	pending, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, ErrUnknownSession
	}
	if pending.token != "" {
		ctx = graph.WithBearerToken(ctx, pending.token)
	}

	mode := pending.req.Params.Mode()
	opts := append([]preview.Option{}, s.previewOpts...)
	opts = append(opts, preview.OnRefetch(func(contentx.Variables) {
		s.metrics.ObserveRefetch(mode)
	}))

	sess, err := s.pipeline.OpenSession(ctx, pending.req, s.hub.Channel(sessionID), send, opts...)
	if err != nil {
		return nil, err
	}

	s.metrics.PreviewSessions.Inc()
	s.logger.InfoContext(ctx, "preview session opened", "session", sessionID, "mode", mode.String())
	return func() {
		sess.Close()
		s.metrics.PreviewSessions.Dec()
	}, nil
}

// logRequests logs every request once it completes.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type visitorKey struct{}

// visitor makes sure every page request carries a visitor id cookie.
func (s *Server) visitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(VisitorCookie); err == nil {
			id = c.Value
		}
		if _, err := ksuid.Parse(id); err != nil {
			id = ksuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     VisitorCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), visitorKey{}, id)))
	})
}

// VisitorID returns the visitor id of a page request.
func VisitorID(ctx context.Context) string {
	id, _ := ctx.Value(visitorKey{}).(string)
	return id
}

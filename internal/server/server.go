// Package server wires the HTTP surface of the auth service: login, refresh,
// logout, the authenticated /auth/me endpoint, and health.
package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"resume-hub/auth-service/internal/auth/gate"
	"resume-hub/auth-service/internal/auth/service"
	sessionrepo "resume-hub/auth-service/internal/session/repository"
	"resume-hub/auth-service/internal/telemetry"
	"resume-hub/auth-service/internal/telemetry/producer"
)

// Pinger reports backing-store readiness (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

var _ Pinger = (*sql.DB)(nil)

// Deps holds the dependencies for the HTTP server.
type Deps struct {
	// Auth is the auth service for login/refresh/logout. Required.
	Auth *service.AuthService
	// Gate authenticates bearer tokens for protected routes. Required.
	Gate *gate.Gate
	// Sessions is read by /auth/me for session activity. May be nil.
	Sessions sessionrepo.Store
	// Producer publishes auth events to Kafka. May be nil; events are then dropped.
	Producer producer.Producer
	// Emitter mirrors auth events onto the OTel log pipeline. May be nil.
	Emitter telemetry.EventEmitter
	// Pinger is used by /healthz for readiness. May be nil; the DB check is then skipped.
	Pinger Pinger
	// Logger for request-level warnings. Defaults to slog.Default.
	Logger *slog.Logger
	// Meter records the auth operation counter. May be nil.
	Meter metric.Meter
}

// Server is the auth service HTTP server.
type Server struct {
	httpServer *http.Server
	auth       *service.AuthService
	gate       *gate.Gate
	sessions   sessionrepo.Store
	producer   producer.Producer
	emitter    telemetry.EventEmitter
	pinger     Pinger
	logger     *slog.Logger
	opCounter  metric.Int64Counter
}

// New builds the server and its routes. addr is the listen address (e.g. :8080).
func New(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		auth:     deps.Auth,
		gate:     deps.Gate,
		sessions: deps.Sessions,
		producer: deps.Producer,
		emitter:  deps.Emitter,
		pinger:   deps.Pinger,
		logger:   logger,
	}
	if deps.Meter != nil {
		counter, err := deps.Meter.Int64Counter("auth.operations",
			metric.WithDescription("Auth operations by kind and outcome"))
		if err != nil {
			logger.Warn("metrics: counter init failed", "err", err)
		} else {
			s.opCounter = counter
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.Handle("GET /auth/me", s.requireAuth(http.HandlerFunc(s.handleMe)))
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests with httptest.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe blocks serving HTTP until Shutdown or a listener error.
func (s *Server) ListenAndServe() error { return s.httpServer.ListenAndServe() }

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error { return s.httpServer.Shutdown(ctx) }

// countOp records the auth operation counter; no-op when metrics are off.
func (s *Server) countOp(ctx context.Context, op string, ok bool) {
	if s.opCounter == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "denied"
	}
	s.opCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

// emitEvent publishes an auth event to Kafka and the OTel log pipeline,
// fire-and-forget.
func (s *Server) emitEvent(ctx context.Context, eventType, userID, sessionID string, r *http.Request) {
	if s.producer == nil && s.emitter == nil {
		return
	}
	event := &telemetry.Event{
		UserID:    userID,
		SessionID: sessionID,
		EventType: eventType,
		Source:    "http",
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
		CreatedAt: time.Now().UTC(),
	}
	if s.producer != nil {
		telemetry.EmitAsync(s.producer, ctx, event)
	}
	telemetry.EmitAsync(s.emitter, ctx, event)
}

// Package server exposes the playground's HTTP surface: session
// management, chat, the event feed and cleanup administration. Handlers
// parse requests, dispatch into the session store, event ledger and
// cleanup engine, and serialize structured responses; they hold no state
// of their own.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/llmscope/playground/pkg/cleanup"
	"github.com/llmscope/playground/pkg/event"
	"github.com/llmscope/playground/pkg/provider"
	"github.com/llmscope/playground/pkg/session"
)

// Options configures the HTTP server.
type Options struct {
	Host string
	Port int

	// CookieName carries the session token in browsers; CookieMaxAge is
	// the session retention window.
	CookieName   string
	CookieMaxAge time.Duration

	// ChatTimeout bounds the remote provider call.
	ChatTimeout time.Duration
}

// Server is the playground HTTP server.
type Server struct {
	options        Options
	server         *http.Server
	sessions       *session.Store
	ledger         *event.Ledger
	engine         *cleanup.Engine
	resolver       *session.Resolver
	chat           provider.ChatProvider
	rateLimiter    *RateLimiter
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates the playground server. The chat provider may be nil,
// in which case the chat endpoint reports a configuration error.
func NewServer(
	options Options,
	sessions *session.Store,
	ledger *event.Ledger,
	engine *cleanup.Engine,
	resolver *session.Resolver,
	chat provider.ChatProvider,
	rateLimiter *RateLimiter,
	logger zerolog.Logger,
) (*Server, error) {
	if options.Port == 0 {
		options.Port = 8001
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.CookieName == "" {
		options.CookieName = "llmscope_session_id"
	}
	if options.ChatTimeout == 0 {
		options.ChatTimeout = 60 * time.Second
	}

	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("event ledger is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("cleanup engine is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("session resolver is required")
	}

	return &Server{
		options:     options,
		sessions:    sessions,
		ledger:      ledger,
		engine:      engine,
		resolver:    resolver,
		chat:        chat,
		rateLimiter: rateLimiter,
		logger:      logger,
		startTime:   time.Now(),
	}, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/v1/sessions/current", s.handleGetCurrentSession)
	mux.HandleFunc("POST /api/v1/sessions/current/reset", s.handleResetCurrentSession)
	mux.HandleFunc("GET /api/v1/sessions/current/metrics", s.handleCurrentSessionMetrics)
	mux.HandleFunc("GET /api/v1/sessions/{token}", s.handleGetSession)
	mux.HandleFunc("POST /api/v1/sessions/{token}/reset", s.handleResetSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{token}", s.handleDeleteSession)

	mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	mux.HandleFunc("GET /api/v1/events/recent", s.handleRecentEvents)

	mux.HandleFunc("GET /api/v1/cleanup/stats", s.handleCleanupStats)
	mux.HandleFunc("POST /api/v1/cleanup/run", s.handleCleanupRun)

	return s.withRequestLog(mux)
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting playground server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start playground server: %w", err)
	}

	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down playground server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown playground server: %w", err)
	}

	s.logger.Info().Msg("Playground server stopped")
	return nil
}

// withRequestLog tags each request with a correlation id and logs it.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}
		s.shutdownMu.RUnlock()

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()

		reqID, _ := gonanoid.New()
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Debug().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"timestamp": time.Now().UnixMilli(),
	})
}

// resolveSession derives the session for the request and get-or-creates
// its record, touching last_activity.
func (s *Server) resolveSession(r *http.Request) (*session.Session, error) {
	token, _ := s.resolver.ResolveToken(r)
	return s.sessions.GetOrCreate(r.Context(), token)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// writeError maps core errors onto HTTP statuses; callers always receive
// a structured message, never a raw stack trace.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, session.ErrInactive):
		status = http.StatusForbidden
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	s.writeJSON(w, status, map[string]string{"detail": err.Error()})
}

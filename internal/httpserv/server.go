// Package httpserv owns the HTTP lifecycle for the tool service: the
// streamable MCP endpoint with its session manager, the stateless liveness
// probe, and graceful shutdown.
package httpserv

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/croftbay/pgscout/internal/auth"
	"github.com/croftbay/pgscout/internal/session"
)

// HealthProber reports whether a database connection can be acquired within
// a short probe window.
type HealthProber interface {
	Healthy(ctx context.Context) bool
}

type Config struct {
	Addr        string
	BasePath    string
	IdleTimeout time.Duration
	MCPServer   *server.MCPServer
	Prober      HealthProber
	Auth        *auth.Auth
	Logger      *slog.Logger
}

type Server struct {
	addr       string
	logger     *slog.Logger
	httpServer *http.Server
	sessions   *session.Manager
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	sessions := session.NewManager(cfg.IdleTimeout, cfg.Logger)

	streamable := server.NewStreamableHTTPServer(
		cfg.MCPServer,
		server.WithEndpointPath(cfg.BasePath),
		server.WithSessionIdManager(sessions),
	)

	var toolHandler http.Handler = streamable
	if cfg.Auth != nil {
		toolHandler = cfg.Auth.Middleware(toolHandler)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.BasePath, toolHandler)
	mux.HandleFunc("GET /health", healthHandler(cfg.Prober))

	return &Server{
		addr:   cfg.Addr,
		logger: cfg.Logger,
		httpServer: &http.Server{
			Addr:    cfg.Addr,
			Handler: mux,
		},
		sessions: sessions,
	}
}

// Handler exposes the mux for in-process testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Sessions exposes the session table for diagnostics.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Start blocks serving requests until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests and stops the session sweep.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server stopping")
	err := s.httpServer.Shutdown(ctx)
	s.sessions.Close()
	return err
}

type healthResponse struct {
	Status               string `json:"status"`
	CanAcquireConnection bool   `json:"can_acquire_connection"`
}

// healthHandler answers independent of any session. The probe borrows one
// connection briefly and never touches the session table.
func healthHandler(prober HealthProber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "degraded"}
		if prober != nil && prober.Healthy(r.Context()) {
			resp.Status = "healthy"
			resp.CanAcquireConnection = true
		}
		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}

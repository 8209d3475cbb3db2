// Package web serves the operator API: REST endpoints over the bot's
// state, ledger and opportunity book, plus a websocket event stream.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	ListenAddr  string
	APIKey      string // empty disables authentication
	CORSOrigins []string
}

type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer registers all routes and wires the middleware chain.
func NewServer(cfg Config, h *Handlers, hub *Hub, log *zap.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Dashboard)

	// health stays reachable without a key so probes keep working
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/health", h.Health)

	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("GET /api/balance", h.Balance)
	mux.HandleFunc("GET /api/opportunities", h.Opportunities)
	mux.HandleFunc("GET /api/history", h.History)
	mux.HandleFunc("GET /api/metrics", h.Metrics)
	mux.HandleFunc("GET /api/config", h.ConfigHandler)
	mux.HandleFunc("POST /api/control/start", h.Start)
	mux.HandleFunc("POST /api/control/stop", h.Stop)

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var handler http.Handler = mux
	handler = auth(cfg.APIKey)(handler)
	handler = logging(log)(handler)
	handler = cors(cfg.CORSOrigins)(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Start blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.log.Info("api server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("api server shutting down")
	return s.httpServer.Shutdown(ctx)
}

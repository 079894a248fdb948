// ABOUTME: Assembles the repgate service: store, tools, gateway, MCP, and web API.
// ABOUTME: Owns the HTTP server lifecycle including graceful shutdown.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/repgate/repgate/internal/api"
	"github.com/repgate/repgate/internal/apikey"
	"github.com/repgate/repgate/internal/auth"
	"github.com/repgate/repgate/internal/config"
	"github.com/repgate/repgate/internal/gateway"
	"github.com/repgate/repgate/internal/mcp"
	"github.com/repgate/repgate/internal/store"
	"github.com/repgate/repgate/internal/tools"
)

// Server is the assembled repgate service.
type Server struct {
	config     *config.Config
	store      *store.SQLiteStore
	registry   *tools.Registry
	dispatcher *gateway.Dispatcher
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	registry := tools.NewRegistry()
	if err := registry.Register(tools.FitnessPack(s)...); err != nil {
		s.Close()
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	dispatcher := gateway.NewDispatcher(gateway.DispatcherConfig{
		Auth:            auth.NewAuthenticator(s, logger.With("component", "auth")),
		Registry:        registry,
		Audit:           s,
		Logger:          logger.With("component", "gateway"),
		Timeout:         cfg.Tools.Timeout,
		LogAuthFailures: cfg.Audit.LogAuthFailures,
	})

	srv := &Server{
		config:     cfg,
		store:      s,
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger.With("component", "server"),
	}

	mux := http.NewServeMux()

	// Health endpoint - no auth required
	mux.HandleFunc("GET /health", srv.handleHealth)

	// Web API: accounts, key management, history, audit
	apiHandlers := api.NewHandlers(api.Config{
		Store:    s,
		Keys:     apikey.NewService(s, logger.With("component", "apikey")),
		Sessions: auth.NewJWTSessions([]byte(cfg.Auth.JWTSecret)),
		Logger:   logger.With("component", "api"),
	})
	apiHandlers.RegisterRoutes(mux)

	// MCP endpoints for external agents
	mcpServer, err := mcp.NewServer(mcp.Config{
		Registry:   registry,
		Dispatcher: dispatcher,
		Logger:     logger.With("component", "mcp"),
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}
	mcpServer.RegisterRoutes(mux)

	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown gracefully stops the HTTP server and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return errs[0]
	}

	s.logger.Info("shutdown complete")
	return nil
}

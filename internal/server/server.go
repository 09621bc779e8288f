// Package server exposes the offer wizard over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/p2poffer/internal/domain"
	"github.com/alanyoungcy/p2poffer/internal/server/handler"
	"github.com/alanyoungcy/p2poffer/internal/server/middleware"
	"github.com/alanyoungcy/p2poffer/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimit   int    // write requests per RateWindow per client; 0 disables
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Offers may be nil when no history store is configured.
type Handlers struct {
	Health         *handler.HealthHandler
	Wizard         *handler.WizardHandler
	PaymentMethods *handler.PaymentMethodHandler
	Market         *handler.MarketHandler
	Offers         *handler.OfferHandler
}

// Server is the HTTP + WebSocket API server for the offer wizard.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with every route registered. limiter and wsHub
// are optional.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "http_server"))
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, limiter, wsHub, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed handler with the middleware chain applied.
func NewHandler(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	wz := handlers.Wizard
	mux.HandleFunc("POST /api/wizard", wz.Create)
	mux.HandleFunc("GET /api/wizard/{id}", wz.Get)
	mux.HandleFunc("PATCH /api/wizard/{id}", wz.Patch)
	mux.HandleFunc("DELETE /api/wizard/{id}", wz.Cancel)
	mux.HandleFunc("POST /api/wizard/{id}/next", wz.Next)
	mux.HandleFunc("POST /api/wizard/{id}/prev", wz.Prev)
	mux.HandleFunc("POST /api/wizard/{id}/auto-adjust", wz.AutoAdjust)
	mux.HandleFunc("POST /api/wizard/{id}/submit", wz.Submit)
	mux.HandleFunc("POST /api/wizard/{id}/step/{n}", wz.GoTo)

	mux.HandleFunc("GET /api/market/price", handlers.Market.GetPrice)

	pm := handlers.PaymentMethods
	mux.HandleFunc("GET /api/payment-methods", pm.List)
	mux.HandleFunc("POST /api/payment-methods", pm.Create)
	mux.HandleFunc("PUT /api/payment-methods/{id}", pm.Update)
	mux.HandleFunc("DELETE /api/payment-methods/{id}", pm.Delete)

	if handlers.Offers != nil {
		mux.HandleFunc("GET /api/offers", handlers.Offers.List)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger,
		http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete)(h)
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

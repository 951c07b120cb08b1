// Package server exposes the settlement engine over an HTTP JSON API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cipherbet/cipherbet/internal/server/handler"
	"github.com/cipherbet/cipherbet/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Inputs *handler.InputHandler
	Rounds *handler.RoundHandler
	Bets   *handler.BetHandler
	Claims *handler.ClaimHandler
	Admin  *handler.AdminHandler
}

// Server is the HTTP API server for the settlement daemon.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the logging middleware applied.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Confidential input gateway.
	mux.HandleFunc("POST /api/inputs", handlers.Inputs.EncryptInput)

	// Round lifecycle and views.
	mux.HandleFunc("GET /api/rounds/current", handlers.Rounds.CurrentRound)
	mux.HandleFunc("GET /api/rounds/{round}", handlers.Rounds.GetRound)
	mux.HandleFunc("GET /api/rounds/{round}/totals", handlers.Rounds.GetTotals)
	mux.HandleFunc("GET /api/rounds/{round}/handles", handlers.Rounds.GetHandles)
	mux.HandleFunc("POST /api/rounds/{round}/finalize", handlers.Rounds.Finalize)
	mux.HandleFunc("POST /api/rounds/{round}/reveal", handlers.Rounds.RequestReveal)
	mux.HandleFunc("POST /api/rounds/{round}/totals", handlers.Rounds.ResolveTotals)

	// Bets.
	mux.HandleFunc("GET /api/bets/stake", handlers.Bets.GetStake)
	mux.HandleFunc("POST /api/bets", handlers.Bets.PlaceBet)
	mux.HandleFunc("GET /api/bets/{round}/{address}", handlers.Bets.GetBet)

	// Claims and user views.
	mux.HandleFunc("POST /api/claims", handlers.Claims.RequestClaim)
	mux.HandleFunc("POST /api/claims/resolve", handlers.Claims.ResolveClaim)
	mux.HandleFunc("GET /api/claims/{round}/{address}", handlers.Claims.GetPending)
	mux.HandleFunc("GET /api/users/{address}", handlers.Claims.GetUser)

	// Fee administration and directory.
	mux.HandleFunc("POST /api/admin/withdraw-fees", handlers.Admin.WithdrawFees)
	mux.HandleFunc("PUT /api/admin/fee-bps", handlers.Admin.SetFeeBps)
	mux.HandleFunc("PUT /api/admin/fee-recipient", handlers.Admin.SetFeeRecipient)
	mux.HandleFunc("PUT /api/admin/max-price-age", handlers.Admin.SetMaxPriceAge)
	mux.HandleFunc("GET /api/fees", handlers.Admin.GetFees)
	mux.HandleFunc("GET /api/participants", handlers.Admin.ListParticipants)

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

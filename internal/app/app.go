// Package app provides the top-level application lifecycle management for
// the settlement daemon. It wires together all dependencies (vault, engine,
// oracle, feeds, stores) and starts the configured goroutines.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cipherbet/cipherbet/internal/config"
	"github.com/cipherbet/cipherbet/internal/keeper"
	"github.com/cipherbet/cipherbet/internal/server"
	"github.com/cipherbet/cipherbet/internal/server/handler"
)

// App is the root application object. It owns the configuration, logger,
// and a list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the
// configured goroutines, and blocks until the context is cancelled or a
// goroutine fails. On return it runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Bool("server", a.cfg.Server.Enabled),
		slog.Bool("keeper", a.cfg.Keeper.Enabled),
		slog.Bool("feed", a.cfg.Feed.Enabled),
	)
	defer a.Close()

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	// HTTP API.
	if a.cfg.Server.Enabled {
		srv := server.NewServer(
			server.Config{Port: a.cfg.Server.Port},
			server.Handlers{
				Health: handler.NewHealthHandler(),
				Inputs: handler.NewInputHandler(deps.Conf, a.logger),
				Rounds: handler.NewRoundHandler(deps.Engine, a.logger),
				Bets:   handler.NewBetHandler(deps.Engine, a.logger),
				Claims: handler.NewClaimHandler(deps.Engine, a.logger),
				Admin:  handler.NewAdminHandler(deps.Engine, a.logger),
			},
			a.logger,
		)
		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Round automation.
	if a.cfg.Keeper.Enabled {
		autoReveal := a.cfg.Keeper.AutoReveal
		if autoReveal && deps.Oracle == nil {
			a.logger.WarnContext(ctx, "auto reveal requires the local disclosure oracle, disabling")
			autoReveal = false
		}
		k := keeper.New(deps.Engine, deps.Oracle, a.cfg.Keeper.Interval.Duration, autoReveal, a.logger)
		g.Go(func() error {
			return k.Run(ctx)
		})
	}

	// Live price ticker.
	if deps.TickerFeed != nil {
		g.Go(func() error {
			return deps.TickerFeed.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

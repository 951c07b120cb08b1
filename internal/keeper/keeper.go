// Package keeper runs the optional automation loop: it polls the engine's
// upkeep check on a fixed interval, finalizes ended rounds, and (when
// enabled) drives the reveal protocol for freshly finalized rounds via the
// disclosure oracle. Everything it does is also callable directly by any
// party; the keeper only removes the need for someone to show up.
package keeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cipherbet/cipherbet/internal/domain"
	"github.com/cipherbet/cipherbet/internal/market"
)

// Keeper drives scheduled finalization and auto-reveal.
type Keeper struct {
	engine     *market.Engine
	oracle     domain.DisclosureOracle
	interval   time.Duration
	autoReveal bool
	logger     *slog.Logger
}

// New creates a Keeper. oracle may be nil when autoReveal is false.
func New(engine *market.Engine, oracle domain.DisclosureOracle, interval time.Duration, autoReveal bool, logger *slog.Logger) *Keeper {
	return &Keeper{
		engine:     engine,
		oracle:     oracle,
		interval:   interval,
		autoReveal: autoReveal,
		logger:     logger.With(slog.String("component", "keeper")),
	}
}

// Run polls until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			k.tick(ctx)
		}
	}
}

func (k *Keeper) tick(ctx context.Context) {
	for {
		needed, round := k.engine.CheckUpkeep()
		if !needed {
			return
		}
		if err := k.engine.PerformUpkeep(ctx, round); err != nil {
			// Racing finalizers and transient feed failures both land
			// here; the next tick retries.
			if !errors.Is(err, domain.ErrOutOfOrder) && !errors.Is(err, domain.ErrResultSet) {
				k.logger.WarnContext(ctx, "upkeep failed",
					slog.Uint64("round", round),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		k.logger.InfoContext(ctx, "round finalized by keeper", slog.Uint64("round", round))

		if k.autoReveal && k.oracle != nil {
			k.reveal(ctx, round)
		}
	}
}

// reveal runs both phases of the totals disclosure for a round.
func (k *Keeper) reveal(ctx context.Context, round uint64) {
	handles, err := k.engine.RequestRoundReveal(ctx, round)
	if err != nil {
		if !errors.Is(err, domain.ErrRevealRequested) {
			k.logger.WarnContext(ctx, "reveal request failed",
				slog.Uint64("round", round),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	values, proof, err := k.oracle.Disclose(ctx, handles[:])
	if err != nil {
		k.logger.WarnContext(ctx, "disclosure failed",
			slog.Uint64("round", round),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := k.engine.ResolveTotals(ctx, round, values[0], values[1], proof); err != nil {
		if !errors.Is(err, domain.ErrTotalsRevealed) {
			k.logger.WarnContext(ctx, "resolve totals failed",
				slog.Uint64("round", round),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	k.logger.InfoContext(ctx, "totals revealed by keeper", slog.Uint64("round", round))
}

package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// StatsStore mirrors per-user counters into PostgreSQL for operational
// queries. The engine's in-memory state stays authoritative.
type StatsStore struct {
	pool *pgxpool.Pool
}

// NewStatsStore creates a StatsStore backed by the given pool.
func NewStatsStore(pool *pgxpool.Pool) *StatsStore {
	return &StatsStore{pool: pool}
}

// Upsert writes the latest counter snapshot for an address.
func (s *StatsStore) Upsert(ctx context.Context, addr common.Address, stats domain.UserStats) error {
	const query = `
		INSERT INTO user_stats (address, total_bets, total_wins, total_wagered, total_payout, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (address) DO UPDATE SET
			total_bets = EXCLUDED.total_bets,
			total_wins = EXCLUDED.total_wins,
			total_wagered = EXCLUDED.total_wagered,
			total_payout = EXCLUDED.total_payout,
			updated_at = NOW()`
	_, err := s.pool.Exec(ctx, query,
		addr.Hex(), int64(stats.TotalBets), int64(stats.TotalWins),
		int64(stats.TotalWagered), int64(stats.TotalPayout),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert stats for %s: %w", addr.Hex(), err)
	}
	return nil
}

// Get returns the mirrored counters for an address.
func (s *StatsStore) Get(ctx context.Context, addr common.Address) (domain.UserStats, error) {
	const query = `
		SELECT total_bets, total_wins, total_wagered, total_payout
		FROM user_stats WHERE address = $1`
	var bets, wins, wagered, payout int64
	err := s.pool.QueryRow(ctx, query, addr.Hex()).Scan(&bets, &wins, &wagered, &payout)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("postgres: get stats for %s: %w", addr.Hex(), err)
	}
	return domain.UserStats{
		TotalBets:    uint64(bets),
		TotalWins:    uint64(wins),
		TotalWagered: uint64(wagered),
		TotalPayout:  uint64(payout),
	}, nil
}

var _ domain.StatsStore = (*StatsStore)(nil)

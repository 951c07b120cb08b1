package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PriceFeed is the read-only price source consulted at finalization. The
// core validates price and freshness on every call; the feed itself is
// stateless from the core's perspective.
type PriceFeed interface {
	Latest(ctx context.Context) (price int64, updatedAt time.Time, err error)
}

// DisclosureOracle is the off-ledger decryption service. Given disclosure
// handles it returns the cleartext values in the same order together with a
// proof binding the cleartexts to exactly those handles.
type DisclosureOracle interface {
	Disclose(ctx context.Context, handles []Handle) (values []uint64, proof []byte, err error)
}

// EventBus publishes settlement events to interested subscribers.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Journal is an append-only record of settlement events.
type Journal interface {
	Append(ctx context.Context, event string, detail map[string]any) error
}

// PriceCache stores the most recent observed price per symbol.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price int64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (int64, time.Time, error)
}

// StatsStore mirrors per-user counters for operational queries. The
// in-memory engine state stays authoritative; the mirror is best-effort.
type StatsStore interface {
	Upsert(ctx context.Context, addr common.Address, stats UserStats) error
}

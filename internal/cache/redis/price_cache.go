package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// priceTTL bounds how long a cached price survives without refresh. The
// core applies its own staleness bound on top; the TTL just keeps dead
// symbols from lingering.
const priceTTL = 10 * time.Minute

// PriceCache implements domain.PriceCache using a Redis hash per symbol
// holding the scaled integer price and its observation timestamp.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(symbol string) string {
	return "cipherbet:price:" + symbol
}

// SetPrice stores the latest observed price for a symbol.
func (pc *PriceCache) SetPrice(ctx context.Context, symbol string, price int64, ts time.Time) error {
	key := priceKey(symbol)
	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "price", price, "ts", ts.UnixMilli())
	pipe.Expire(ctx, key, priceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", symbol, err)
	}
	return nil
}

// GetPrice returns the cached price and its observation time.
func (pc *PriceCache) GetPrice(ctx context.Context, symbol string) (int64, time.Time, error) {
	vals, err := pc.rdb.HMGet(ctx, priceKey(symbol), "price", "ts").Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", symbol, err)
	}
	price, ok1 := toInt64(vals[0])
	tsMilli, ok2 := toInt64(vals[1])
	if !ok1 || !ok2 {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", symbol, domain.ErrInvalidPrice)
	}
	return price, time.UnixMilli(tsMilli), nil
}

func toInt64(v any) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	var n int64
	if _, err := fmt.Sscan(s, &n); err != nil {
		return 0, false
	}
	return n, true
}

var _ domain.PriceCache = (*PriceCache)(nil)

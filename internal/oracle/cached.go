package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// CachedFeed serves the settlement core from a price cache kept fresh by a
// streaming ticker (see internal/feed). The staleness bound enforced at
// finalization makes a stalled ticker fail loudly instead of settling on an
// old price.
type CachedFeed struct {
	cache  domain.PriceCache
	symbol string
}

// NewCachedFeed creates a feed reading symbol from the given cache.
func NewCachedFeed(cache domain.PriceCache, symbol string) *CachedFeed {
	return &CachedFeed{cache: cache, symbol: symbol}
}

// Latest returns the most recently cached price and its observation time.
func (f *CachedFeed) Latest(ctx context.Context) (int64, time.Time, error) {
	price, ts, err := f.cache.GetPrice(ctx, f.symbol)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("oracle: cached price for %q: %w", f.symbol, err)
	}
	return price, ts, nil
}

var _ domain.PriceFeed = (*CachedFeed)(nil)

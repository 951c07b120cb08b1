// Package feed streams external market prices into the price cache.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// TickerFeed subscribes to a Binance-style trade stream and writes each
// observed price into the price cache as a scaled integer. It reconnects
// with backoff on disconnect and runs until the context is cancelled.
type TickerFeed struct {
	wsHost     string
	symbol     string
	priceScale int64
	cache      domain.PriceCache
	logger     *slog.Logger
}

// NewTickerFeed creates a feed for the given stream symbol (for example
// "btcusdt"). priceScale converts the decimal trade price to the integer
// units the settlement core works in.
func NewTickerFeed(wsHost, symbol string, priceScale int64, cache domain.PriceCache, logger *slog.Logger) *TickerFeed {
	return &TickerFeed{
		wsHost:     wsHost,
		symbol:     strings.ToLower(symbol),
		priceScale: priceScale,
		cache:      cache,
		logger:     logger.With(slog.String("component", "ticker_feed")),
	}
}

// tradeMessage is the subset of the trade stream payload the feed uses.
type tradeMessage struct {
	Price     string `json:"p"`
	TradeTime int64  `json:"T"` // milliseconds
}

// Run connects and pumps trades into the cache until ctx is cancelled.
func (f *TickerFeed) Run(ctx context.Context) error {
	url := fmt.Sprintf("%s/ws/%s@trade", strings.TrimSuffix(f.wsHost, "/"), f.symbol)
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := f.runConnection(ctx, url); err != nil && ctx.Err() == nil {
			f.logger.WarnContext(ctx, "stream disconnected, reconnecting",
				slog.String("url", url),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (f *TickerFeed) runConnection(ctx context.Context, url string) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", url, err)
	}
	defer conn.Close()

	f.logger.InfoContext(ctx, "stream connected", slog.String("url", url))

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		var msg tradeMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Price == "" {
			continue
		}
		price, err := f.scalePrice(msg.Price)
		if err != nil {
			f.logger.WarnContext(ctx, "unparseable trade price",
				slog.String("raw", msg.Price),
			)
			continue
		}
		ts := time.UnixMilli(msg.TradeTime)
		if msg.TradeTime == 0 {
			ts = time.Now()
		}
		if err := f.cache.SetPrice(ctx, f.symbol, price, ts); err != nil {
			f.logger.WarnContext(ctx, "price cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

func (f *TickerFeed) scalePrice(raw string) (int64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(v * float64(f.priceScale))), nil
}

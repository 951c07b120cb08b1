package keeper

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cipherbet/cipherbet/internal/confidential"
	"github.com/cipherbet/cipherbet/internal/disclosure"
	"github.com/cipherbet/cipherbet/internal/market"
)

const testOracleKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type fakeFeed struct {
	price     int64
	updatedAt time.Time
}

func (f *fakeFeed) Latest(ctx context.Context) (int64, time.Time, error) {
	return f.price, f.updatedAt, nil
}

func TestTickFinalizesAndReveals(t *testing.T) {
	vaultKey := bytes.Repeat([]byte{0x44}, 32)
	conf, err := confidential.NewEngine(vaultKey)
	if err != nil {
		t.Fatalf("NewEngine(vault): %v", err)
	}
	signer, err := disclosure.NewSigner(testOracleKey)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	dec, err := conf.Decryptor(vaultKey)
	if err != nil {
		t.Fatalf("Decryptor: %v", err)
	}
	oracle := disclosure.NewLocalOracle(dec, signer)

	genesis := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := genesis.Add(-time.Minute)
	feed := &fakeFeed{price: 50_000}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine, err := market.NewEngine(market.Params{
		Owner:         common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		StakeAmount:   1_000_000,
		RoundDuration: time.Hour,
		Genesis:       genesis,
		FeeBps:        200,
		MaxPriceAge:   5 * time.Minute,
	}, conf, feed, disclosure.NewVerifier(signer.Address()), logger,
		market.WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	k := New(engine, oracle, time.Second, true, logger)
	ctx := context.Background()

	// Nothing to do while round 1 runs.
	k.tick(ctx)
	if got := engine.LastFinalized(); got != 0 {
		t.Fatalf("LastFinalized = %d before round end, want 0", got)
	}

	// Two rounds have ended: one tick catches up on both and reveals them.
	now = genesis.Add(2*time.Hour + time.Minute)
	feed.updatedAt = now
	k.tick(ctx)

	if got := engine.LastFinalized(); got != 2 {
		t.Fatalf("LastFinalized = %d, want 2", got)
	}
	for round := uint64(1); round <= 2; round++ {
		if _, _, revealed := engine.RoundTotals(round); !revealed {
			t.Errorf("round %d totals not revealed by keeper", round)
		}
	}

	// A repeat tick is a no-op.
	k.tick(ctx)
	if got := engine.LastFinalized(); got != 2 {
		t.Errorf("LastFinalized after idle tick = %d, want 2", got)
	}
}

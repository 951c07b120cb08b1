package market

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cipherbet/cipherbet/internal/confidential"
	"github.com/cipherbet/cipherbet/internal/disclosure"
	"github.com/cipherbet/cipherbet/internal/domain"
)

// Well-known throwaway dev key; never funded anywhere.
const testOracleKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

const stake = uint64(1_000_000)

type fakeFeed struct {
	price     int64
	updatedAt time.Time
	err       error
}

func (f *fakeFeed) Latest(ctx context.Context) (int64, time.Time, error) {
	return f.price, f.updatedAt, f.err
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

type busEvent struct {
	channel string
	payload []byte
}

type memBus struct {
	events []busEvent
}

func (b *memBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.events = append(b.events, busEvent{channel: channel, payload: payload})
	return nil
}

type memJournal struct {
	events []string
}

func (j *memJournal) Append(ctx context.Context, event string, detail map[string]any) error {
	j.events = append(j.events, event)
	return nil
}

// testEnv wires an engine with an in-process vault and local disclosure
// oracle around a controllable clock and price feed.
type testEnv struct {
	t       *testing.T
	engine  *Engine
	conf    *confidential.Engine
	signer  *disclosure.Signer
	oracle  *disclosure.LocalOracle
	feed    *fakeFeed
	clock   *fakeClock
	bus     *memBus
	journal *memJournal
	genesis time.Time
}

func newTestEnv(t *testing.T, feeBps uint32) *testEnv {
	t.Helper()

	vaultKey := bytes.Repeat([]byte{0x11}, 32)
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

	genesis := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Start before genesis so round 1 is the bettable round.
	clock := &fakeClock{t: genesis.Add(-30 * time.Minute)}
	feed := &fakeFeed{price: 50_000, updatedAt: genesis}
	bus := &memBus{}
	journal := &memJournal{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := NewEngine(Params{
		Owner:         owner,
		StakeAmount:   stake,
		RoundDuration: time.Hour,
		Genesis:       genesis,
		FeeBps:        feeBps,
		MaxPriceAge:   5 * time.Minute,
	}, conf, feed, disclosure.NewVerifier(signer.Address()), logger,
		WithClock(clock.now),
		WithEventBus(bus),
		WithJournal(journal),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	return &testEnv{
		t:       t,
		engine:  engine,
		conf:    conf,
		signer:  signer,
		oracle:  disclosure.NewLocalOracle(dec, signer),
		feed:    feed,
		clock:   clock,
		bus:     bus,
		journal: journal,
		genesis: genesis,
	}
}

// placeBet encrypts a direction and places the bet, failing the test on error.
func (env *testEnv) placeBet(bettor common.Address, round uint64, dir domain.Direction) {
	env.t.Helper()
	ct, proof, err := env.conf.EncryptInput(dir, bettor, round)
	if err != nil {
		env.t.Fatalf("EncryptInput: %v", err)
	}
	if err := env.engine.PlaceBet(context.Background(), bettor, round, stake, ct, proof); err != nil {
		env.t.Fatalf("PlaceBet(%s, round %d): %v", bettor.Hex(), round, err)
	}
}

// finalizeAt advances the clock past the round's end and finalizes it at the
// given price.
func (env *testEnv) finalizeAt(round uint64, price int64) {
	env.t.Helper()
	env.clock.t = env.genesis.Add(time.Duration(round)*time.Hour + time.Minute)
	env.feed.price = price
	env.feed.updatedAt = env.clock.t
	if err := env.engine.FinalizeRound(context.Background(), round); err != nil {
		env.t.Fatalf("FinalizeRound(%d): %v", round, err)
	}
}

// reveal runs both phases of the totals disclosure for a round.
func (env *testEnv) reveal(round uint64) {
	env.t.Helper()
	handles, err := env.engine.RequestRoundReveal(context.Background(), round)
	if err != nil {
		env.t.Fatalf("RequestRoundReveal(%d): %v", round, err)
	}
	values, proof, err := env.oracle.Disclose(context.Background(), handles[:])
	if err != nil {
		env.t.Fatalf("Disclose: %v", err)
	}
	if err := env.engine.ResolveTotals(context.Background(), round, values[0], values[1], proof); err != nil {
		env.t.Fatalf("ResolveTotals(%d): %v", round, err)
	}
}

// claim runs the full two-phase claim and returns the credited payout.
func (env *testEnv) claim(bettor common.Address, round uint64) uint64 {
	env.t.Helper()
	before := env.engine.Balance(bettor)
	handle, settled, err := env.engine.RequestClaim(context.Background(), bettor, round)
	if err != nil {
		env.t.Fatalf("RequestClaim(%s, %d): %v", bettor.Hex(), round, err)
	}
	if !settled {
		values, proof, err := env.oracle.Disclose(context.Background(), []domain.Handle{handle})
		if err != nil {
			env.t.Fatalf("Disclose(claim): %v", err)
		}
		if err := env.engine.ResolveClaim(context.Background(), bettor, round, values[0], proof); err != nil {
			env.t.Fatalf("ResolveClaim(%s, %d): %v", bettor.Hex(), round, err)
		}
	}
	return env.engine.Balance(bettor) - before
}

func TestPlaceBetGuards(t *testing.T) {
	env := newTestEnv(t, 200)
	ctx := context.Background()

	ct, proof, err := env.conf.EncryptInput(domain.DirectionUp, alice, 1)
	if err != nil {
		t.Fatalf("EncryptInput: %v", err)
	}

	tests := []struct {
		name    string
		bettor  common.Address
		round   uint64
		amount  uint64
		proof   []byte
		wantErr error
	}{
		{"wrong stake", alice, 1, stake + 1, proof, domain.ErrBadStake},
		{"current round not bettable", alice, 0, stake, proof, domain.ErrWrongRound},
		{"too far ahead", alice, 2, stake, proof, domain.ErrWrongRound},
		{"binding for other bettor", bob, 1, stake, proof, domain.ErrBadInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.engine.PlaceBet(ctx, tt.bettor, tt.round, tt.amount, ct, tt.proof)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PlaceBet: got %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Valid bet, then a duplicate.
	if err := env.engine.PlaceBet(ctx, alice, 1, stake, ct, proof); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	ct2, proof2, _ := env.conf.EncryptInput(domain.DirectionDown, alice, 1)
	if err := env.engine.PlaceBet(ctx, alice, 1, stake, ct2, proof2); !errors.Is(err, domain.ErrBetExists) {
		t.Errorf("duplicate PlaceBet: got %v, want ErrBetExists", err)
	}
}

func TestPlaceBetWindowAdvances(t *testing.T) {
	env := newTestEnv(t, 200)

	// Clock inside round 1: round 2 is the bettable round, round 1 is not.
	env.clock.t = env.genesis.Add(10 * time.Minute)
	ct, proof, _ := env.conf.EncryptInput(domain.DirectionUp, alice, 1)
	err := env.engine.PlaceBet(context.Background(), alice, 1, stake, ct, proof)
	if !errors.Is(err, domain.ErrWrongRound) {
		t.Fatalf("bet on in-flight round: got %v, want ErrWrongRound", err)
	}
	env.placeBet(alice, 2, domain.DirectionUp)
}

func TestFinalizeGuards(t *testing.T) {
	env := newTestEnv(t, 200)
	ctx := context.Background()

	// Out of order.
	if err := env.engine.FinalizeRound(ctx, 2); !errors.Is(err, domain.ErrOutOfOrder) {
		t.Errorf("finalize round 2 first: got %v, want ErrOutOfOrder", err)
	}

	// Round still running.
	env.clock.t = env.genesis.Add(30 * time.Minute)
	if err := env.engine.FinalizeRound(ctx, 1); !errors.Is(err, domain.ErrRoundNotEnded) {
		t.Errorf("finalize running round: got %v, want ErrRoundNotEnded", err)
	}

	env.clock.t = env.genesis.Add(time.Hour + time.Minute)

	// Invalid price.
	env.feed.price = 0
	env.feed.updatedAt = env.clock.t
	if err := env.engine.FinalizeRound(ctx, 1); !errors.Is(err, domain.ErrInvalidPrice) {
		t.Errorf("zero price: got %v, want ErrInvalidPrice", err)
	}

	// Stale price.
	env.feed.price = 50_000
	env.feed.updatedAt = env.clock.t.Add(-10 * time.Minute)
	if err := env.engine.FinalizeRound(ctx, 1); !errors.Is(err, domain.ErrStalePrice) {
		t.Errorf("stale price: got %v, want ErrStalePrice", err)
	}

	// Fresh price succeeds; repeating is out of order.
	env.feed.updatedAt = env.clock.t
	if err := env.engine.FinalizeRound(ctx, 1); err != nil {
		t.Fatalf("FinalizeRound: %v", err)
	}
	if err := env.engine.FinalizeRound(ctx, 1); !errors.Is(err, domain.ErrOutOfOrder) {
		t.Errorf("repeat finalize: got %v, want ErrOutOfOrder", err)
	}
}

func TestStartPriceCarriesFromPriorClose(t *testing.T) {
	env := newTestEnv(t, 200)

	env.finalizeAt(1, 50_000)
	env.finalizeAt(2, 60_000)

	r1, _, _ := env.engine.RoundInfo(1)
	if r1.Result != domain.ResultTie {
		t.Errorf("round 1 result = %s, want tie (start==end on first close)", r1.Result)
	}
	r2, _, _ := env.engine.RoundInfo(2)
	if r2.StartPrice != 50_000 {
		t.Errorf("round 2 start price = %d, want carried 50000", r2.StartPrice)
	}
	if r2.Result != domain.ResultUp {
		t.Errorf("round 2 result = %s, want up", r2.Result)
	}
}

func TestCheckAndPerformUpkeep(t *testing.T) {
	env := newTestEnv(t, 200)

	if needed, _ := env.engine.CheckUpkeep(); needed {
		t.Fatal("upkeep needed before round 1 ends")
	}
	env.clock.t = env.genesis.Add(time.Hour + time.Second)
	env.feed.updatedAt = env.clock.t
	needed, round := env.engine.CheckUpkeep()
	if !needed || round != 1 {
		t.Fatalf("CheckUpkeep = (%v, %d), want (true, 1)", needed, round)
	}
	if err := env.engine.PerformUpkeep(context.Background(), round); err != nil {
		t.Fatalf("PerformUpkeep: %v", err)
	}
	if got := env.engine.LastFinalized(); got != 1 {
		t.Errorf("LastFinalized = %d, want 1", got)
	}
}

func TestRevealProtocol(t *testing.T) {
	env := newTestEnv(t, 200)
	ctx := context.Background()

	env.placeBet(alice, 1, domain.DirectionUp)
	env.placeBet(bob, 1, domain.DirectionDown)

	// Reveal before finalization.
	if _, err := env.engine.RequestRoundReveal(ctx, 1); !errors.Is(err, domain.ErrNoResult) {
		t.Errorf("reveal before result: got %v, want ErrNoResult", err)
	}
	// Resolve before request.
	if err := env.engine.ResolveTotals(ctx, 1, stake, stake, nil); !errors.Is(err, domain.ErrNotRequested) {
		t.Errorf("resolve before request: got %v, want ErrNotRequested", err)
	}

	env.finalizeAt(1, 50_000)

	handles, err := env.engine.RequestRoundReveal(ctx, 1)
	if err != nil {
		t.Fatalf("RequestRoundReveal: %v", err)
	}
	if _, err := env.engine.RequestRoundReveal(ctx, 1); !errors.Is(err, domain.ErrRevealRequested) {
		t.Errorf("second reveal request: got %v, want ErrRevealRequested", err)
	}

	values, proof, err := env.oracle.Disclose(ctx, handles[:])
	if err != nil {
		t.Fatalf("Disclose: %v", err)
	}
	if values[0] != stake || values[1] != stake {
		t.Fatalf("disclosed totals = %v, want [%d %d]", values, stake, stake)
	}

	// Garbage proof.
	if err := env.engine.ResolveTotals(ctx, 1, values[0], values[1], make([]byte, 65)); !errors.Is(err, domain.ErrBadProof) {
		t.Errorf("garbage proof: got %v, want ErrBadProof", err)
	}
	// Valid signature over totals violating conservation.
	badProof, err := env.signer.Sign(handles[:], []uint64{stake, stake + 1})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := env.engine.ResolveTotals(ctx, 1, stake, stake+1, badProof); !errors.Is(err, domain.ErrBadProof) {
		t.Errorf("conservation violation: got %v, want ErrBadProof", err)
	}

	if err := env.engine.ResolveTotals(ctx, 1, values[0], values[1], proof); err != nil {
		t.Fatalf("ResolveTotals: %v", err)
	}
	if err := env.engine.ResolveTotals(ctx, 1, values[0], values[1], proof); !errors.Is(err, domain.ErrTotalsRevealed) {
		t.Errorf("double resolve: got %v, want ErrTotalsRevealed", err)
	}

	up, down, revealed := env.engine.RoundTotals(1)
	if !revealed || up != stake || down != stake {
		t.Errorf("RoundTotals = (%d, %d, %v), want (%d, %d, true)", up, down, revealed, stake, stake)
	}
}

func TestUpWinSettlement(t *testing.T) {
	env := newTestEnv(t, 200)

	// Bets for round 2 go in while round 1 runs.
	env.clock.t = env.genesis.Add(10 * time.Minute)
	env.placeBet(alice, 2, domain.DirectionUp)
	env.placeBet(bob, 2, domain.DirectionDown)

	env.finalizeAt(1, 50_000)
	env.finalizeAt(2, 60_000)
	env.reveal(2)

	// Fee is 200 bps of the losing pool.
	wantFee := stake * 200 / 10_000
	r, _, _ := env.engine.RoundInfo(2)
	if r.FeeAmount != wantFee {
		t.Errorf("fee = %d, want %d", r.FeeAmount, wantFee)
	}
	if got := env.engine.FeeBalance(); got != wantFee {
		t.Errorf("fee balance = %d, want %d", got, wantFee)
	}

	// Winner takes stake back plus the losing pool net of fee.
	wantWin := stake + (stake - wantFee)
	if got := env.claim(alice, 2); got != wantWin {
		t.Errorf("alice payout = %d, want %d", got, wantWin)
	}
	if got := env.claim(bob, 2); got != 0 {
		t.Errorf("bob payout = %d, want 0", got)
	}

	aliceStats := env.engine.UserStats(alice)
	if aliceStats.TotalWins != 1 || aliceStats.TotalPayout != wantWin {
		t.Errorf("alice stats = %+v, want 1 win, payout %d", aliceStats, wantWin)
	}
	bobStats := env.engine.UserStats(bob)
	if bobStats.TotalWins != 0 || bobStats.TotalPayout != 0 {
		t.Errorf("bob stats = %+v, want 0 wins, 0 payout", bobStats)
	}

	// Everything staked is accounted for: payouts plus fee.
	total := env.engine.Balance(alice) + env.engine.Balance(bob) + env.engine.FeeBalance()
	if total != 2*stake {
		t.Errorf("distributed %d, want %d", total, 2*stake)
	}
}

func TestTieRefundsBothSides(t *testing.T) {
	env := newTestEnv(t, 200)

	env.clock.t = env.genesis.Add(10 * time.Minute)
	env.placeBet(alice, 2, domain.DirectionUp)
	env.placeBet(bob, 2, domain.DirectionDown)

	env.finalizeAt(1, 50_000)
	env.finalizeAt(2, 50_000)

	// Ties settle without any disclosure round-trip.
	for _, bettor := range []common.Address{alice, bob} {
		if got := env.claim(bettor, 2); got != stake {
			t.Errorf("%s tie refund = %d, want %d", bettor.Hex(), got, stake)
		}
		if st := env.engine.UserStats(bettor); st.TotalWins != 0 {
			t.Errorf("%s wins = %d, want 0 on tie", bettor.Hex(), st.TotalWins)
		}
	}
	if got := env.engine.FeeBalance(); got != 0 {
		t.Errorf("fee on tie = %d, want 0", got)
	}
}

func TestOneSidedRoundRefunds(t *testing.T) {
	env := newTestEnv(t, 200)

	env.clock.t = env.genesis.Add(10 * time.Minute)
	env.placeBet(alice, 2, domain.DirectionUp)

	env.finalizeAt(1, 50_000)
	env.finalizeAt(2, 40_000) // down wins, but nobody bet down
	env.reveal(2)

	if got := env.claim(alice, 2); got != stake {
		t.Errorf("one-sided refund = %d, want %d", got, stake)
	}
	if st := env.engine.UserStats(alice); st.TotalWins != 0 {
		t.Errorf("wins = %d, want 0 on one-sided refund", st.TotalWins)
	}
}

func TestClaimGuards(t *testing.T) {
	env := newTestEnv(t, 200)
	ctx := context.Background()

	env.clock.t = env.genesis.Add(10 * time.Minute)
	env.placeBet(alice, 2, domain.DirectionUp)
	env.placeBet(bob, 2, domain.DirectionDown)

	// No bet.
	if _, _, err := env.engine.RequestClaim(ctx, carol, 2); !errors.Is(err, domain.ErrNoBet) {
		t.Errorf("claim without bet: got %v, want ErrNoBet", err)
	}
	// No result yet.
	if _, _, err := env.engine.RequestClaim(ctx, alice, 2); !errors.Is(err, domain.ErrNoResult) {
		t.Errorf("claim before result: got %v, want ErrNoResult", err)
	}

	env.finalizeAt(1, 50_000)
	env.finalizeAt(2, 60_000)

	// Totals not yet disclosed.
	if _, _, err := env.engine.RequestClaim(ctx, alice, 2); !errors.Is(err, domain.ErrNotDisclosed) {
		t.Errorf("claim before disclosure: got %v, want ErrNotDisclosed", err)
	}
	// Resolve without a pending claim.
	if err := env.engine.ResolveClaim(ctx, alice, 2, stake, nil); !errors.Is(err, domain.ErrNoPendingClaim) {
		t.Errorf("resolve without request: got %v, want ErrNoPendingClaim", err)
	}

	env.reveal(2)

	handle, settled, err := env.engine.RequestClaim(ctx, alice, 2)
	if err != nil || settled {
		t.Fatalf("RequestClaim = (%v, %v), want pending", err, settled)
	}
	// Duplicate request.
	if _, _, err := env.engine.RequestClaim(ctx, alice, 2); !errors.Is(err, domain.ErrClaimRequested) {
		t.Errorf("duplicate request: got %v, want ErrClaimRequested", err)
	}
	// Bad disclosure proof.
	if err := env.engine.ResolveClaim(ctx, alice, 2, stake, make([]byte, 65)); !errors.Is(err, domain.ErrBadProof) {
		t.Errorf("bad claim proof: got %v, want ErrBadProof", err)
	}

	values, proof, err := env.oracle.Disclose(ctx, []domain.Handle{handle})
	if err != nil {
		t.Fatalf("Disclose: %v", err)
	}
	if err := env.engine.ResolveClaim(ctx, alice, 2, values[0], proof); err != nil {
		t.Fatalf("ResolveClaim: %v", err)
	}
	// Double resolve.
	if err := env.engine.ResolveClaim(ctx, alice, 2, values[0], proof); !errors.Is(err, domain.ErrClaimed) {
		t.Errorf("double resolve: got %v, want ErrClaimed", err)
	}
}

func TestWithdrawFees(t *testing.T) {
	env := newTestEnv(t, 200)

	env.clock.t = env.genesis.Add(10 * time.Minute)
	env.placeBet(alice, 2, domain.DirectionUp)
	env.placeBet(bob, 2, domain.DirectionDown)
	env.finalizeAt(1, 50_000)
	env.finalizeAt(2, 60_000)
	env.reveal(2)

	wantFee := stake * 200 / 10_000
	ctx := context.Background()

	if _, err := env.engine.WithdrawFees(ctx, alice); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("withdraw by non-recipient: got %v, want ErrUnauthorized", err)
	}
	// Fee recipient defaults to the owner.
	got, err := env.engine.WithdrawFees(ctx, owner)
	if err != nil {
		t.Fatalf("WithdrawFees: %v", err)
	}
	if got != wantFee {
		t.Errorf("withdrawn = %d, want %d", got, wantFee)
	}
	if env.engine.FeeBalance() != 0 {
		t.Errorf("fee balance after withdraw = %d, want 0", env.engine.FeeBalance())
	}
	if env.engine.Balance(owner) != wantFee {
		t.Errorf("owner balance = %d, want %d", env.engine.Balance(owner), wantFee)
	}
}

func TestAdminSetters(t *testing.T) {
	env := newTestEnv(t, 200)

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{"fee bps by non-owner", func() error { return env.engine.SetFeeBps(alice, 100) }, domain.ErrUnauthorized},
		{"fee bps over cap", func() error { return env.engine.SetFeeBps(owner, 2001) }, domain.ErrFeeTooHigh},
		{"fee bps ok", func() error { return env.engine.SetFeeBps(owner, 500) }, nil},
		{"recipient by non-owner", func() error { return env.engine.SetFeeRecipient(alice, bob) }, domain.ErrUnauthorized},
		{"recipient zero", func() error { return env.engine.SetFeeRecipient(owner, common.Address{}) }, domain.ErrBadConfig},
		{"recipient ok", func() error { return env.engine.SetFeeRecipient(owner, bob) }, nil},
		{"price age by non-owner", func() error { return env.engine.SetMaxPriceAge(alice, time.Minute) }, domain.ErrUnauthorized},
		{"price age zero", func() error { return env.engine.SetMaxPriceAge(owner, 0) }, domain.ErrBadConfig},
		{"price age ok", func() error { return env.engine.SetMaxPriceAge(owner, time.Minute) }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if tt.wantErr == nil && err != nil {
				t.Errorf("got %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
	if got := env.engine.FeeBps(); got != 500 {
		t.Errorf("FeeBps = %d, want 500", got)
	}
}

func TestParticipantDirectory(t *testing.T) {
	env := newTestEnv(t, 200)

	env.placeBet(alice, 1, domain.DirectionUp)
	env.placeBet(bob, 1, domain.DirectionDown)

	// Same bettor on a later round does not duplicate the directory entry.
	env.clock.t = env.genesis.Add(10 * time.Minute)
	env.placeBet(alice, 2, domain.DirectionDown)

	if got := env.engine.ParticipantCount(); got != 2 {
		t.Fatalf("ParticipantCount = %d, want 2", got)
	}
	page := env.engine.Participants(0, 1)
	if len(page) != 1 || page[0] != alice {
		t.Errorf("Participants(0,1) = %v, want [alice]", page)
	}
	page = env.engine.Participants(1, 10)
	if len(page) != 1 || page[0] != bob {
		t.Errorf("Participants(1,10) = %v, want [bob]", page)
	}
	if page := env.engine.Participants(2, 10); page != nil {
		t.Errorf("Participants(2,10) = %v, want nil", page)
	}
}

func TestEventsEmitted(t *testing.T) {
	env := newTestEnv(t, 200)

	env.clock.t = env.genesis.Add(10 * time.Minute)
	env.placeBet(alice, 2, domain.DirectionUp)
	env.placeBet(bob, 2, domain.DirectionDown)
	env.finalizeAt(1, 50_000)
	env.finalizeAt(2, 60_000)
	env.reveal(2)
	env.claim(alice, 2)

	want := map[string]bool{
		domain.EventRoundInitialized:      false,
		domain.EventBetPlaced:             false,
		domain.EventRoundFinalized:        false,
		domain.EventRoundRevealRequested:  false,
		domain.EventTotalsRevealed:        false,
		domain.EventClaimDecryptRequested: false,
		domain.EventClaimPaid:             false,
	}
	for _, ev := range env.journal.events {
		if _, ok := want[ev]; ok {
			want[ev] = true
		}
	}
	for ev, seen := range want {
		if !seen {
			t.Errorf("event %s never journaled", ev)
		}
	}
	if len(env.bus.events) != len(env.journal.events) {
		t.Errorf("bus got %d events, journal got %d", len(env.bus.events), len(env.journal.events))
	}
}

func TestPayoutFor(t *testing.T) {
	tests := []struct {
		name                        string
		stake, winning, losing, fee uint64
		want                        uint64
	}{
		{"even pools no fee", 100, 200, 200, 0, 200},
		{"even pools with fee", 100, 200, 200, 4, 198},
		{"fee exceeds losing pool", 100, 200, 3, 5, 100},
		{"floor division", 100, 300, 100, 0, 133},
		{"lone winner", 100, 100, 500, 10, 590},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := payoutFor(tt.stake, tt.winning, tt.losing, tt.fee); got != tt.want {
				t.Errorf("payoutFor(%d,%d,%d,%d) = %d, want %d", tt.stake, tt.winning, tt.losing, tt.fee, got, tt.want)
			}
		})
	}
}

// Package market implements the settlement core: the round lifecycle state
// machine, the confidential tally, the reveal and claim protocols, and fee
// and participant bookkeeping. The engine serializes every state-mutating
// call behind a single mutex and every entry point either fully commits or
// fully rejects — ledger semantics, enforced by per-round and per-bet flags
// rather than long-lived locks.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cipherbet/cipherbet/internal/confidential"
	"github.com/cipherbet/cipherbet/internal/disclosure"
	"github.com/cipherbet/cipherbet/internal/domain"
)

// feeBpsCap is the hard upper bound on the protocol fee (20%).
const feeBpsCap = 2000

// eventsChannel is the bus channel settlement events are published on.
const eventsChannel = "cipherbet:events"

// Params are the engine's global settings. Owner-mutable fields have
// guarded setters; the rest are fixed at construction.
type Params struct {
	Owner         common.Address
	FeeRecipient  common.Address
	StakeAmount   uint64
	RoundDuration time.Duration
	Genesis       time.Time
	FeeBps        uint32
	MaxPriceAge   time.Duration
}

// Validate checks the parameter set.
func (p Params) Validate() error {
	if p.StakeAmount == 0 {
		return fmt.Errorf("market: %w: stake amount must be positive", domain.ErrBadConfig)
	}
	if p.RoundDuration <= 0 {
		return fmt.Errorf("market: %w: round duration must be positive", domain.ErrBadConfig)
	}
	if p.MaxPriceAge <= 0 {
		return fmt.Errorf("market: %w: max price age must be positive", domain.ErrBadConfig)
	}
	if p.FeeBps > feeBpsCap {
		return fmt.Errorf("market: %w: %d bps", domain.ErrFeeTooHigh, p.FeeBps)
	}
	if p.Owner == (common.Address{}) {
		return fmt.Errorf("market: %w: owner must be set", domain.ErrBadConfig)
	}
	return nil
}

type betKey struct {
	round  uint64
	bettor common.Address
}

// Engine is the settlement core.
type Engine struct {
	mu sync.Mutex

	params Params
	now    func() time.Time

	conf     *confidential.Engine
	feed     domain.PriceFeed
	verifier *disclosure.Verifier
	claims   *disclosure.Table

	rounds        map[uint64]*domain.Round
	bets          map[betKey]*domain.Bet
	stats         map[common.Address]*domain.UserStats
	participants  []common.Address
	isParticipant map[common.Address]bool
	balances      map[common.Address]uint64
	feeBalance    uint64
	lastFinalized uint64

	bus        domain.EventBus
	journal    domain.Journal
	statsStore domain.StatsStore
	logger     *slog.Logger
}

// Option customizes an Engine at construction.
type Option func(*Engine)

// WithClock injects a time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithEventBus attaches an event bus; publishing is best-effort.
func WithEventBus(bus domain.EventBus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithJournal attaches an append-only settlement journal; best-effort.
func WithJournal(j domain.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithStatsStore attaches a user-stats mirror; best-effort.
func WithStatsStore(s domain.StatsStore) Option {
	return func(e *Engine) { e.statsStore = s }
}

// NewEngine creates the settlement core.
func NewEngine(params Params, conf *confidential.Engine, feed domain.PriceFeed, verifier *disclosure.Verifier, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if params.FeeRecipient == (common.Address{}) {
		params.FeeRecipient = params.Owner
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		params:        params,
		now:           time.Now,
		conf:          conf,
		feed:          feed,
		verifier:      verifier,
		claims:        disclosure.NewTable(),
		rounds:        make(map[uint64]*domain.Round),
		bets:          make(map[betKey]*domain.Bet),
		stats:         make(map[common.Address]*domain.UserStats),
		isParticipant: make(map[common.Address]bool),
		balances:      make(map[common.Address]uint64),
		logger:        logger.With(slog.String("component", "market")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ---------------------------------------------------------------------------
// Round numbering. Rounds are fixed-duration windows numbered from 1 at the
// genesis timestamp. Before genesis the current round is 0, so bets for
// round 1 are open.
// ---------------------------------------------------------------------------

func (e *Engine) currentRound(now time.Time) uint64 {
	if now.Before(e.params.Genesis) {
		return 0
	}
	return uint64(now.Sub(e.params.Genesis)/e.params.RoundDuration) + 1
}

func (e *Engine) roundStart(n uint64) time.Time {
	return e.params.Genesis.Add(time.Duration(n-1) * e.params.RoundDuration)
}

func (e *Engine) roundEnd(n uint64) time.Time {
	return e.params.Genesis.Add(time.Duration(n) * e.params.RoundDuration)
}

// touchRound lazily initializes round n. Caller holds the lock.
func (e *Engine) touchRound(ctx context.Context, n uint64) *domain.Round {
	if r, ok := e.rounds[n]; ok {
		return r
	}
	r := &domain.Round{
		Number:    n,
		StartTime: e.roundStart(n),
		EndTime:   e.roundEnd(n),
		TotalUp:   e.conf.Lift(0),
		TotalDown: e.conf.Lift(0),
	}
	e.rounds[n] = r
	e.emit(ctx, domain.EventRoundInitialized, map[string]any{
		"round":      n,
		"start_time": r.StartTime.Unix(),
		"end_time":   r.EndTime.Unix(),
	})
	return r
}

// ---------------------------------------------------------------------------
// Betting
// ---------------------------------------------------------------------------

// PlaceBet records a fixed-stake wager with an encrypted direction on the
// next round. The direction ciphertext must carry a valid input binding for
// (bettor, round); the stake is lifted into the confidential domain and
// added to exactly one side's running total by a homomorphic select, so the
// core never branches on the cleartext direction.
func (e *Engine) PlaceBet(ctx context.Context, bettor common.Address, round uint64, amount uint64, dir domain.Ciphertext, inputProof []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount != e.params.StakeAmount {
		return fmt.Errorf("market: %w: got %d, want %d", domain.ErrBadStake, amount, e.params.StakeAmount)
	}
	now := e.now()
	if next := e.currentRound(now) + 1; round != next {
		return fmt.Errorf("market: %w: round %d, next bettable is %d", domain.ErrWrongRound, round, next)
	}
	key := betKey{round: round, bettor: bettor}
	if _, ok := e.bets[key]; ok {
		return fmt.Errorf("market: %w: round %d bettor %s", domain.ErrBetExists, round, bettor.Hex())
	}
	if err := e.conf.VerifyInput(dir, bettor, round, inputProof); err != nil {
		return err
	}

	r := e.touchRound(ctx, round)

	// Homomorphic tally: stake * [dir == side] added to each side.
	stakeCt := e.conf.Lift(amount)
	zeroCt := e.conf.Lift(0)
	upTotal, err := e.tallySide(r.TotalUp, dir, domain.DirectionUp, stakeCt, zeroCt)
	if err != nil {
		return err
	}
	downTotal, err := e.tallySide(r.TotalDown, dir, domain.DirectionDown, stakeCt, zeroCt)
	if err != nil {
		return err
	}
	r.TotalUp = upTotal
	r.TotalDown = downTotal
	r.StakedTotal += amount

	e.bets[key] = &domain.Bet{
		Bettor:    bettor,
		Round:     round,
		Stake:     amount,
		Direction: dir,
	}

	if !e.isParticipant[bettor] {
		e.isParticipant[bettor] = true
		e.participants = append(e.participants, bettor)
	}
	st := e.userStats(bettor)
	st.TotalBets++
	st.TotalWagered += amount
	e.mirrorStats(ctx, bettor, *st)

	e.emit(ctx, domain.EventBetPlaced, map[string]any{
		"round":  round,
		"bettor": bettor.Hex(),
		"stake":  amount,
	})
	return nil
}

func (e *Engine) tallySide(total, dir domain.Ciphertext, side domain.Direction, stakeCt, zeroCt domain.Ciphertext) (domain.Ciphertext, error) {
	isSide, err := e.conf.Eq(dir, e.conf.Lift(uint64(side)))
	if err != nil {
		return domain.Ciphertext{}, fmt.Errorf("market: tally: %w", err)
	}
	contrib, err := e.conf.Select(isSide, stakeCt, zeroCt)
	if err != nil {
		return domain.Ciphertext{}, fmt.Errorf("market: tally: %w", err)
	}
	out, err := e.conf.Add(total, contrib)
	if err != nil {
		return domain.Ciphertext{}, fmt.Errorf("market: tally: %w", err)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Finalization
// ---------------------------------------------------------------------------

// FinalizeRound settles a round's result from the price feed. Rounds
// finalize strictly in order, only after their end time, and only with a
// positive, fresh price. The start price carries from the prior round's end
// price; because finalization is gapless the carried price is always the
// immediately preceding close.
func (e *Engine) FinalizeRound(ctx context.Context, round uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finalizeRound(ctx, round)
}

func (e *Engine) finalizeRound(ctx context.Context, round uint64) error {
	if expected := e.lastFinalized + 1; round != expected {
		return fmt.Errorf("market: %w: round %d, expected %d", domain.ErrOutOfOrder, round, expected)
	}
	r := e.touchRound(ctx, round)
	if r.ResultSet {
		return fmt.Errorf("market: %w: round %d", domain.ErrResultSet, round)
	}
	now := e.now()
	if now.Before(r.EndTime) {
		return fmt.Errorf("market: %w: round %d ends at %s", domain.ErrRoundNotEnded, round, r.EndTime.UTC().Format(time.RFC3339))
	}

	price, updatedAt, err := e.feed.Latest(ctx)
	if err != nil {
		return fmt.Errorf("market: price feed: %w", err)
	}
	if price <= 0 {
		return fmt.Errorf("market: %w: %d", domain.ErrInvalidPrice, price)
	}
	if now.Sub(updatedAt) > e.params.MaxPriceAge {
		return fmt.Errorf("market: %w: price is %s old, max %s", domain.ErrStalePrice, now.Sub(updatedAt), e.params.MaxPriceAge)
	}

	if !r.StartPriceSet {
		if prev, ok := e.rounds[round-1]; ok && prev.ResultSet {
			r.StartPrice = prev.EndPrice
		} else {
			// First finalized round has no prior close to carry.
			r.StartPrice = price
		}
		r.StartPriceSet = true
	}
	r.EndPrice = price

	switch {
	case r.EndPrice > r.StartPrice:
		r.Result = domain.ResultUp
	case r.EndPrice < r.StartPrice:
		r.Result = domain.ResultDown
	default:
		r.Result = domain.ResultTie
	}
	r.ResultSet = true
	e.lastFinalized = round

	e.logger.InfoContext(ctx, "round finalized",
		slog.Uint64("round", round),
		slog.String("result", r.Result.String()),
		slog.Int64("start_price", r.StartPrice),
		slog.Int64("end_price", r.EndPrice),
	)
	e.emit(ctx, domain.EventRoundFinalized, map[string]any{
		"round":       round,
		"result":      r.Result.String(),
		"start_price": r.StartPrice,
		"end_price":   r.EndPrice,
	})
	return nil
}

// CheckUpkeep reports whether an ended round awaits finalization, and which
// one. Automation calls this on a schedule, but any party may finalize
// directly at any time.
func (e *Engine) CheckUpkeep() (bool, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.lastFinalized + 1
	if e.now().Before(e.roundEnd(next)) {
		return false, 0
	}
	return true, next
}

// PerformUpkeep finalizes the given round. It revalidates every guard
// itself, so a stale or duplicate trigger reverts harmlessly.
func (e *Engine) PerformUpkeep(ctx context.Context, round uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finalizeRound(ctx, round)
}

// ---------------------------------------------------------------------------
// Reveal protocol (phase 1 + 2)
// ---------------------------------------------------------------------------

// RequestRoundReveal makes the round's confidential totals disclosable and
// returns the correlation handles, ordered [up, down]. Callable by anyone,
// once, after the result is set.
func (e *Engine) RequestRoundReveal(ctx context.Context, round uint64) ([2]domain.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rounds[round]
	if !ok || !r.ResultSet {
		return [2]domain.Handle{}, fmt.Errorf("market: %w: round %d", domain.ErrNoResult, round)
	}
	if r.RevealRequested {
		return [2]domain.Handle{}, fmt.Errorf("market: %w: round %d", domain.ErrRevealRequested, round)
	}
	r.RevealRequested = true

	handles := [2]domain.Handle{r.TotalUp.Handle, r.TotalDown.Handle}
	e.emit(ctx, domain.EventRoundRevealRequested, map[string]any{
		"round":       round,
		"up_handle":   handles[0].Hex(),
		"down_handle": handles[1].Hex(),
	})
	return handles, nil
}

// ResolveTotals accepts the disclosed totals for a round. The expected
// handle set is re-derived from the round's own ciphertexts; the proof must
// cover exactly those handles and the submitted cleartext. On acceptance
// the totals become canonical and the fee accrues from the losing pool.
func (e *Engine) ResolveTotals(ctx context.Context, round uint64, totalUp, totalDown uint64, proof []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rounds[round]
	if !ok || !r.RevealRequested {
		return fmt.Errorf("market: %w: round %d", domain.ErrNotRequested, round)
	}
	if r.TotalsRevealed {
		return fmt.Errorf("market: %w: round %d", domain.ErrTotalsRevealed, round)
	}

	handles := []domain.Handle{r.TotalUp.Handle, r.TotalDown.Handle}
	if err := e.verifier.Verify(handles, []uint64{totalUp, totalDown}, proof); err != nil {
		return err
	}
	// Conservation: disclosed totals must account for every staked unit.
	if totalUp+totalDown != r.StakedTotal {
		return fmt.Errorf("market: %w: totals %d+%d != staked %d", domain.ErrBadProof, totalUp, totalDown, r.StakedTotal)
	}

	r.DisclosedUp = totalUp
	r.DisclosedDown = totalDown
	r.TotalsRevealed = true

	var losing uint64
	switch r.Result {
	case domain.ResultUp:
		losing = totalDown
	case domain.ResultDown:
		losing = totalUp
	}
	r.FeeAmount = uint64(e.params.FeeBps) * losing / 10000
	e.feeBalance += r.FeeAmount

	e.emit(ctx, domain.EventTotalsRevealed, map[string]any{
		"round":      round,
		"total_up":   totalUp,
		"total_down": totalDown,
		"fee":        r.FeeAmount,
	})
	return nil
}

// ---------------------------------------------------------------------------
// Fees and admin
// ---------------------------------------------------------------------------

// WithdrawFees drains the accrued fee balance to the fee recipient's
// payout balance. Only the recipient may call it.
func (e *Engine) WithdrawFees(ctx context.Context, caller common.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.params.FeeRecipient {
		return 0, fmt.Errorf("market: %w: fees withdrawable by recipient only", domain.ErrUnauthorized)
	}
	amount := e.feeBalance
	e.feeBalance = 0
	e.balances[caller] += amount
	e.emit(ctx, domain.EventFeesWithdrawn, map[string]any{
		"recipient": caller.Hex(),
		"amount":    amount,
	})
	return amount, nil
}

// SetFeeBps updates the protocol fee. Owner only; capped at 2000 bps.
func (e *Engine) SetFeeBps(caller common.Address, bps uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.params.Owner {
		return fmt.Errorf("market: %w: owner only", domain.ErrUnauthorized)
	}
	if bps > feeBpsCap {
		return fmt.Errorf("market: %w: %d bps", domain.ErrFeeTooHigh, bps)
	}
	e.params.FeeBps = bps
	return nil
}

// SetFeeRecipient updates the fee recipient. Owner only.
func (e *Engine) SetFeeRecipient(caller, recipient common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.params.Owner {
		return fmt.Errorf("market: %w: owner only", domain.ErrUnauthorized)
	}
	if recipient == (common.Address{}) {
		return fmt.Errorf("market: %w: zero fee recipient", domain.ErrBadConfig)
	}
	e.params.FeeRecipient = recipient
	return nil
}

// SetMaxPriceAge updates the price staleness bound. Owner only.
func (e *Engine) SetMaxPriceAge(caller common.Address, age time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.params.Owner {
		return fmt.Errorf("market: %w: owner only", domain.ErrUnauthorized)
	}
	if age <= 0 {
		return fmt.Errorf("market: %w: max price age must be positive", domain.ErrBadConfig)
	}
	e.params.MaxPriceAge = age
	return nil
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (e *Engine) userStats(addr common.Address) *domain.UserStats {
	st, ok := e.stats[addr]
	if !ok {
		st = &domain.UserStats{}
		e.stats[addr] = st
	}
	return st
}

// payoutFor computes the cleartext winner payout from disclosed totals:
// stake + stake * (losing - fee) / winning, floored.
func payoutFor(stake, winning, losing, fee uint64) uint64 {
	var distributable uint64
	if losing > fee {
		distributable = losing - fee
	}
	share := new(big.Int).Mul(new(big.Int).SetUint64(stake), new(big.Int).SetUint64(distributable))
	share.Div(share, new(big.Int).SetUint64(winning))
	return stake + share.Uint64()
}

// emit publishes an event to the bus and journal. Both are best-effort:
// core state has already committed when emit runs.
func (e *Engine) emit(ctx context.Context, event string, detail map[string]any) {
	detail["event"] = event
	detail["at"] = e.now().UTC().Format(time.RFC3339Nano)
	if e.bus != nil {
		payload, _ := json.Marshal(detail)
		if err := e.bus.Publish(ctx, eventsChannel, payload); err != nil {
			e.logger.WarnContext(ctx, "event publish failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
	if e.journal != nil {
		if err := e.journal.Append(ctx, event, detail); err != nil {
			e.logger.WarnContext(ctx, "journal append failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (e *Engine) mirrorStats(ctx context.Context, addr common.Address, st domain.UserStats) {
	if e.statsStore == nil {
		return
	}
	if err := e.statsStore.Upsert(ctx, addr, st); err != nil {
		e.logger.WarnContext(ctx, "stats mirror failed",
			slog.String("address", addr.Hex()),
			slog.String("error", err.Error()),
		)
	}
}

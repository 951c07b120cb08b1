package market

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cipherbet/cipherbet/internal/disclosure"
	"github.com/cipherbet/cipherbet/internal/domain"
)

// RequestClaim starts settlement of a bettor's wager, once, after the
// round's result is set.
//
// A tie, or a winning side nobody backed, is refunded immediately: the
// payout equals the stake regardless of the secret direction, so no
// decryption round-trip is needed and no win is recorded. Otherwise the
// disclosed totals fix the cleartext winner payout, the bet's confidential
// direction gates it (payout if winner, zero if not) entirely inside the
// vault, and the resulting single value goes through the same two-phase
// disclosure. The returned handle correlates the pending disclosure;
// settled reports whether the claim resolved immediately.
func (e *Engine) RequestClaim(ctx context.Context, bettor common.Address, round uint64) (handle domain.Handle, settled bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := betKey{round: round, bettor: bettor}
	b, ok := e.bets[key]
	if !ok {
		return domain.Handle{}, false, fmt.Errorf("market: %w: round %d bettor %s", domain.ErrNoBet, round, bettor.Hex())
	}
	r := e.rounds[round]
	if r == nil || !r.ResultSet {
		return domain.Handle{}, false, fmt.Errorf("market: %w: round %d", domain.ErrNoResult, round)
	}
	if b.ClaimRequested {
		return domain.Handle{}, false, fmt.Errorf("market: %w: round %d bettor %s", domain.ErrClaimRequested, round, bettor.Hex())
	}

	if r.Result == domain.ResultTie {
		e.settleRefund(ctx, b)
		return domain.Handle{}, true, nil
	}

	if !r.TotalsRevealed {
		return domain.Handle{}, false, fmt.Errorf("market: %w: round %d", domain.ErrNotDisclosed, round)
	}
	winning, losing := r.DisclosedUp, r.DisclosedDown
	winnerDir := domain.DirectionUp
	if r.Result == domain.ResultDown {
		winning, losing = r.DisclosedDown, r.DisclosedUp
		winnerDir = domain.DirectionDown
	}
	if winning == 0 {
		// One-sided round: nobody backed the winning side, so everyone is
		// refunded their stake.
		e.settleRefund(ctx, b)
		return domain.Handle{}, true, nil
	}

	payout := payoutFor(b.Stake, winning, losing, r.FeeAmount)

	isWinner, err := e.conf.Eq(b.Direction, e.conf.Lift(uint64(winnerDir)))
	if err != nil {
		return domain.Handle{}, false, fmt.Errorf("market: claim gate: %w", err)
	}
	pending, err := e.conf.Select(isWinner, e.conf.Lift(payout), e.conf.Lift(0))
	if err != nil {
		return domain.Handle{}, false, fmt.Errorf("market: claim gate: %w", err)
	}

	b.ClaimRequested = true
	b.PendingPayout = pending
	b.ClaimHandle = pending.Handle
	e.claims.Register(pending.Handle, disclosure.Pending{Round: round, Bettor: bettor})

	e.emit(ctx, domain.EventClaimDecryptRequested, map[string]any{
		"round":  round,
		"bettor": bettor.Hex(),
		"handle": pending.Handle.Hex(),
	})
	return pending.Handle, false, nil
}

// ResolveClaim accepts the disclosed payout for a pending claim, verifies
// the proof against the claim's handle, credits the bettor, and marks the
// bet claimed. Whether the bettor won stays hidden in everything the core
// exposes except the payout amount itself.
func (e *Engine) ResolveClaim(ctx context.Context, bettor common.Address, round uint64, payout uint64, proof []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := betKey{round: round, bettor: bettor}
	b, ok := e.bets[key]
	if !ok {
		return fmt.Errorf("market: %w: round %d bettor %s", domain.ErrNoBet, round, bettor.Hex())
	}
	if b.Claimed {
		return fmt.Errorf("market: %w: round %d bettor %s", domain.ErrClaimed, round, bettor.Hex())
	}
	if !b.ClaimRequested || b.ClaimHandle == (domain.Handle{}) {
		return fmt.Errorf("market: %w: round %d bettor %s", domain.ErrNoPendingClaim, round, bettor.Hex())
	}
	if _, ok := e.claims.Peek(b.ClaimHandle); !ok {
		return fmt.Errorf("market: %w: %s", domain.ErrUnknownHandle, b.ClaimHandle.Hex())
	}
	if err := e.verifier.Verify([]domain.Handle{b.ClaimHandle}, []uint64{payout}, proof); err != nil {
		return err
	}
	e.claims.Take(b.ClaimHandle)

	b.Claimed = true
	e.balances[bettor] += payout
	st := e.userStats(bettor)
	st.TotalPayout += payout
	if payout > 0 {
		st.TotalWins++
	}
	e.mirrorStats(ctx, bettor, *st)

	e.logger.InfoContext(ctx, "claim paid",
		slog.Uint64("round", round),
		slog.String("bettor", bettor.Hex()),
		slog.Uint64("payout", payout),
	)
	e.emit(ctx, domain.EventClaimPaid, map[string]any{
		"round":  round,
		"bettor": bettor.Hex(),
		"payout": payout,
	})
	return nil
}

// settleRefund pays a claim whose value does not depend on the secret
// direction: the stake comes straight back, no win recorded. Caller holds
// the lock.
func (e *Engine) settleRefund(ctx context.Context, b *domain.Bet) {
	b.ClaimRequested = true
	b.Claimed = true
	e.balances[b.Bettor] += b.Stake
	st := e.userStats(b.Bettor)
	st.TotalPayout += b.Stake
	e.mirrorStats(ctx, b.Bettor, *st)

	e.emit(ctx, domain.EventClaimPaid, map[string]any{
		"round":  b.Round,
		"bettor": b.Bettor.Hex(),
		"payout": b.Stake,
	})
}

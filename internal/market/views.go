package market

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// CurrentRound returns the in-flight round number (0 before genesis).
func (e *Engine) CurrentRound() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentRound(e.now())
}

// LastFinalized returns the highest finalized round (0 when none).
func (e *Engine) LastFinalized() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastFinalized
}

// RoundInfo returns a copy of the round record and its derived state.
func (e *Engine) RoundInfo(round uint64) (domain.Round, domain.RoundState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rounds[round]
	if !ok {
		return domain.Round{}, domain.StateUninitialized, false
	}
	return *r, r.State(e.now()), true
}

// RoundTotals returns the disclosed totals; revealed is false until
// ResolveTotals has accepted them.
func (e *Engine) RoundTotals(round uint64) (up, down uint64, revealed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rounds[round]
	if !ok || !r.TotalsRevealed {
		return 0, 0, false
	}
	return r.DisclosedUp, r.DisclosedDown, true
}

// RoundHandles returns the disclosure handles for a round's totals, ordered
// [up, down]. Available once reveal has been requested.
func (e *Engine) RoundHandles(round uint64) ([2]domain.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.rounds[round]
	if !ok || !r.RevealRequested {
		return [2]domain.Handle{}, fmt.Errorf("market: %w: round %d", domain.ErrNotRequested, round)
	}
	return [2]domain.Handle{r.TotalUp.Handle, r.TotalDown.Handle}, nil
}

// BetInfo returns a copy of the bet record for (round, bettor).
func (e *Engine) BetInfo(round uint64, bettor common.Address) (domain.Bet, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.bets[betKey{round: round, bettor: bettor}]
	if !ok {
		return domain.Bet{}, false
	}
	return *b, true
}

// PendingClaim returns the in-flight claim disclosure handle for
// (round, bettor), if any.
func (e *Engine) PendingClaim(round uint64, bettor common.Address) (domain.Handle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.bets[betKey{round: round, bettor: bettor}]
	if !ok || !b.ClaimRequested || b.Claimed || b.ClaimHandle == (domain.Handle{}) {
		return domain.Handle{}, false
	}
	return b.ClaimHandle, true
}

// ParticipantCount returns the number of distinct bettors ever seen.
func (e *Engine) ParticipantCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.participants)
}

// Participants returns a page of the append-only participant directory.
func (e *Engine) Participants(offset, limit int) []common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	if offset < 0 || offset >= len(e.participants) || limit <= 0 {
		return nil
	}
	end := offset + limit
	if end > len(e.participants) {
		end = len(e.participants)
	}
	page := make([]common.Address, end-offset)
	copy(page, e.participants[offset:end])
	return page
}

// UserStats returns the per-address counters (zero value if never seen).
func (e *Engine) UserStats(addr common.Address) domain.UserStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.stats[addr]; ok {
		return *st
	}
	return domain.UserStats{}
}

// FeeBalance returns the accrued, unwithdrawn protocol fee.
func (e *Engine) FeeBalance() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feeBalance
}

// Balance returns the credited payout balance of an address.
func (e *Engine) Balance(addr common.Address) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[addr]
}

// FeeBps returns the current protocol fee in basis points.
func (e *Engine) FeeBps() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params.FeeBps
}

// StakeAmount returns the fixed stake every bet must carry.
func (e *Engine) StakeAmount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params.StakeAmount
}

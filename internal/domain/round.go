package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Result is the settled outcome of a round.
type Result uint8

const (
	ResultUnknown Result = iota
	ResultUp
	ResultDown
	ResultTie
)

// String returns a human-readable result name.
func (r Result) String() string {
	switch r {
	case ResultUp:
		return "up"
	case ResultDown:
		return "down"
	case ResultTie:
		return "tie"
	default:
		return "unknown"
	}
}

// RoundState is the derived lifecycle state of a round, strictly ordered:
// uninitialized → open → closed → finalized → reveal_requested → revealed.
type RoundState uint8

const (
	StateUninitialized RoundState = iota
	StateOpen
	StateClosed
	StateFinalized
	StateRevealRequested
	StateRevealed
)

// String returns a human-readable state name.
func (s RoundState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFinalized:
		return "finalized"
	case StateRevealRequested:
		return "reveal_requested"
	case StateRevealed:
		return "revealed"
	default:
		return "uninitialized"
	}
}

// Direction is the cleartext side of a bet. It exists only off-ledger, in
// the bettor's client and inside the decryption oracle; the settlement core
// handles directions exclusively as ciphertexts.
type Direction uint64

const (
	DirectionUp   Direction = 1
	DirectionDown Direction = 2
)

// Handle is a stable opaque reference correlating a confidential value to
// its eventual disclosed cleartext.
type Handle [32]byte

// Hex returns the 0x-prefixed hex encoding of the handle.
func (h Handle) Hex() string {
	return common.BytesToHash(h[:]).Hex()
}

// Ciphertext is an opaque confidential value. It carries only its handle;
// the cleartext lives inside the confidential vault and is reachable solely
// through the disclosure protocol.
type Ciphertext struct {
	Handle Handle
}

// IsZero reports whether the ciphertext is the zero value (no handle).
func (c Ciphertext) IsZero() bool {
	return c.Handle == Handle{}
}

// Round holds per-round settlement state. Result and totals are monotone:
// once set they are never reset.
type Round struct {
	Number    uint64
	StartTime time.Time
	EndTime   time.Time

	StartPrice    int64
	EndPrice      int64
	StartPriceSet bool

	Result    Result
	ResultSet bool

	// Confidential stake-weighted running totals per side.
	TotalUp   Ciphertext
	TotalDown Ciphertext

	RevealRequested bool
	TotalsRevealed  bool
	DisclosedUp     uint64
	DisclosedDown   uint64
	FeeAmount       uint64

	// StakedTotal is the public sum of all stakes on the round. It reveals
	// nothing about directions and backs the conservation check at reveal.
	StakedTotal uint64
}

// State derives the lifecycle state of the round at time now.
func (r *Round) State(now time.Time) RoundState {
	switch {
	case r.TotalsRevealed:
		return StateRevealed
	case r.RevealRequested:
		return StateRevealRequested
	case r.ResultSet:
		return StateFinalized
	case !now.Before(r.EndTime):
		return StateClosed
	default:
		return StateOpen
	}
}

// Bet is a single wager, keyed by (round, bettor): at most one per key,
// created once, mutated only by the claim protocol.
type Bet struct {
	Bettor    common.Address
	Round     uint64
	Stake     uint64
	Direction Ciphertext

	ClaimRequested bool
	Claimed        bool

	// PendingPayout and ClaimHandle are set while a confidential claim is
	// in flight (winner-conditioned path only; ties settle immediately).
	PendingPayout Ciphertext
	ClaimHandle   Handle
}

// UserStats are monotonic per-address counters.
type UserStats struct {
	TotalBets    uint64
	TotalWins    uint64
	TotalWagered uint64
	TotalPayout  uint64
}

package domain

import "errors"

// Sequencing violations.
var (
	ErrWrongRound      = errors.New("bet must target the next round")
	ErrRoundNotEnded   = errors.New("round has not ended")
	ErrOutOfOrder      = errors.New("rounds must finalize in order")
	ErrResultSet       = errors.New("round already finalized")
	ErrNoResult        = errors.New("round result not set")
	ErrBetExists       = errors.New("bet already placed for round")
	ErrNoBet           = errors.New("no bet for round")
	ErrRevealRequested = errors.New("reveal already requested")
	ErrNotRequested    = errors.New("reveal not requested")
	ErrTotalsRevealed  = errors.New("totals already revealed")
	ErrNotDisclosed    = errors.New("totals not yet disclosed")
	ErrClaimRequested  = errors.New("claim already requested")
	ErrClaimed         = errors.New("bet already claimed")
	ErrNoPendingClaim  = errors.New("no pending claim")
)

// Value violations.
var (
	ErrBadStake   = errors.New("incorrect stake amount")
	ErrFeeTooHigh = errors.New("fee exceeds cap")
	ErrBadConfig  = errors.New("invalid parameter")
)

// Oracle violations.
var (
	ErrInvalidPrice = errors.New("invalid price")
	ErrStalePrice   = errors.New("stale price")
)

// Authorization and proof violations.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrBadProof      = errors.New("disclosure proof verification failed")
	ErrBadInput      = errors.New("encrypted input rejected")
	ErrUnknownHandle = errors.New("unknown disclosure handle")
)

package domain

// Settlement event names, published on the event bus and appended to the
// journal. Payloads are flat JSON objects.
const (
	EventRoundInitialized      = "round_initialized"
	EventBetPlaced             = "bet_placed"
	EventRoundFinalized        = "round_finalized"
	EventRoundRevealRequested  = "round_reveal_requested"
	EventTotalsRevealed        = "totals_revealed"
	EventClaimDecryptRequested = "claim_decrypt_requested"
	EventClaimPaid             = "claim_paid"
	EventFeesWithdrawn         = "fees_withdrawn"
)

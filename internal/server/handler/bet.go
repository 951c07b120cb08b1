package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// BetService defines the betting methods the bet handler requires from the
// settlement engine.
type BetService interface {
	PlaceBet(ctx context.Context, bettor common.Address, round uint64, amount uint64, dir domain.Ciphertext, inputProof []byte) error
	BetInfo(round uint64, bettor common.Address) (domain.Bet, bool)
	StakeAmount() uint64
	CurrentRound() uint64
}

// BetHandler serves bet placement and lookup endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{bets: bets, logger: logger}
}

type placeBetRequest struct {
	Bettor string        `json:"bettor"`
	Round  uint64        `json:"round"`
	Amount uint64        `json:"amount"`
	Handle string        `json:"handle"`
	Proof  hexutil.Bytes `json:"proof"`
}

// betResponse is the JSON view of a bet. The direction ciphertext is exposed
// only by handle; the plaintext direction never leaves the vault.
type betResponse struct {
	Bettor         string `json:"bettor"`
	Round          uint64 `json:"round"`
	Stake          uint64 `json:"stake"`
	ClaimRequested bool   `json:"claim_requested"`
	Claimed        bool   `json:"claimed"`
}

// PlaceBet registers an encrypted bet for the upcoming round.
// POST /api/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Bettor) {
		writeError(w, http.StatusBadRequest, "invalid bettor address")
		return
	}
	ct := domain.Ciphertext{Handle: domain.Handle(common.HexToHash(req.Handle))}
	if ct.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid ciphertext handle")
		return
	}

	bettor := common.HexToAddress(req.Bettor)
	err := h.bets.PlaceBet(r.Context(), bettor, req.Round, req.Amount, ct, req.Proof)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: place bet rejected",
			slog.String("bettor", bettor.Hex()),
			slog.Uint64("round", req.Round),
			slog.String("error", err.Error()),
		)
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, betResponse{
		Bettor: bettor.Hex(),
		Round:  req.Round,
		Stake:  req.Amount,
	})
}

// GetBet returns a bettor's bet for a round.
// GET /api/bets/{round}/{address}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	round, ok := pathRound(r, "round")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round number")
		return
	}
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	bet, ok := h.bets.BetInfo(round, addr)
	if !ok {
		writeError(w, http.StatusNotFound, "bet not found")
		return
	}
	writeJSON(w, http.StatusOK, betResponse{
		Bettor:         bet.Bettor.Hex(),
		Round:          bet.Round,
		Stake:          bet.Stake,
		ClaimRequested: bet.ClaimRequested,
		Claimed:        bet.Claimed,
	})
}

// GetStake reports the fixed stake amount and the round currently open for
// betting.
// GET /api/bets/stake
func (h *BetHandler) GetStake(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{
		"stake_amount":  h.bets.StakeAmount(),
		"betting_round": h.bets.CurrentRound() + 1,
	})
}

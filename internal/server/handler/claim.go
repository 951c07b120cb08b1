package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// ClaimService defines the claim settlement methods the claim handler
// requires from the engine.
type ClaimService interface {
	RequestClaim(ctx context.Context, bettor common.Address, round uint64) (domain.Handle, bool, error)
	ResolveClaim(ctx context.Context, bettor common.Address, round uint64, payout uint64, proof []byte) error
	PendingClaim(round uint64, bettor common.Address) (domain.Handle, bool)
	Balance(addr common.Address) uint64
	UserStats(addr common.Address) domain.UserStats
}

// ClaimHandler serves the two-phase claim protocol endpoints.
type ClaimHandler struct {
	claims ClaimService
	logger *slog.Logger
}

// NewClaimHandler creates a ClaimHandler.
func NewClaimHandler(claims ClaimService, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{claims: claims, logger: logger}
}

type requestClaimRequest struct {
	Bettor string `json:"bettor"`
	Round  uint64 `json:"round"`
}

// RequestClaim starts claim settlement for a bet. Ties and one-sided rounds
// settle immediately with a stake refund; otherwise the response carries the
// payout handle awaiting oracle decryption.
// POST /api/claims
func (h *ClaimHandler) RequestClaim(w http.ResponseWriter, r *http.Request) {
	var req requestClaimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Bettor) {
		writeError(w, http.StatusBadRequest, "invalid bettor address")
		return
	}

	bettor := common.HexToAddress(req.Bettor)
	handle, settled, err := h.claims.RequestClaim(r.Context(), bettor, req.Round)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := map[string]any{"settled": settled}
	if !settled {
		resp["handle"] = handle.Hex()
	}
	writeJSON(w, http.StatusOK, resp)
}

type resolveClaimRequest struct {
	Bettor string `json:"bettor"`
	Round  uint64 `json:"round"`
	Payout uint64 `json:"payout"`
	Proof  string `json:"proof"`
}

// ResolveClaim submits the oracle-disclosed payout plus proof and credits
// the bettor's balance.
// POST /api/claims/resolve
func (h *ClaimHandler) ResolveClaim(w http.ResponseWriter, r *http.Request) {
	var req resolveClaimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Bettor) {
		writeError(w, http.StatusBadRequest, "invalid bettor address")
		return
	}
	proof, err := decodeProof(req.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proof encoding")
		return
	}

	bettor := common.HexToAddress(req.Bettor)
	if err := h.claims.ResolveClaim(r.Context(), bettor, req.Round, req.Payout, proof); err != nil {
		h.logger.WarnContext(r.Context(), "handler: resolve claim rejected",
			slog.String("bettor", bettor.Hex()),
			slog.Uint64("round", req.Round),
			slog.String("error", err.Error()),
		)
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bettor":  bettor.Hex(),
		"round":   req.Round,
		"payout":  req.Payout,
		"balance": h.claims.Balance(bettor),
	})
}

// GetPending returns the pending payout handle for a bet, if any.
// GET /api/claims/{round}/{address}
func (h *ClaimHandler) GetPending(w http.ResponseWriter, r *http.Request) {
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
	handle, ok := h.claims.PendingClaim(round, addr)
	if !ok {
		writeError(w, http.StatusNotFound, "no pending claim")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"handle": handle.Hex()})
}

// GetUser returns a bettor's balance and lifetime counters.
// GET /api/users/{address}
func (h *ClaimHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	stats := h.claims.UserStats(addr)
	writeJSON(w, http.StatusOK, map[string]any{
		"address":       addr.Hex(),
		"balance":       h.claims.Balance(addr),
		"total_bets":    stats.TotalBets,
		"total_wins":    stats.TotalWins,
		"total_wagered": stats.TotalWagered,
		"total_payout":  stats.TotalPayout,
	})
}

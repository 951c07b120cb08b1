package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// RoundService defines the round-lifecycle methods the round handler
// requires from the settlement engine.
type RoundService interface {
	CurrentRound() uint64
	LastFinalized() uint64
	RoundInfo(round uint64) (domain.Round, domain.RoundState, bool)
	RoundTotals(round uint64) (up, down uint64, revealed bool)
	RoundHandles(round uint64) ([2]domain.Handle, error)
	FinalizeRound(ctx context.Context, round uint64) error
	RequestRoundReveal(ctx context.Context, round uint64) ([2]domain.Handle, error)
	ResolveTotals(ctx context.Context, round uint64, totalUp, totalDown uint64, proof []byte) error
}

// RoundHandler serves round lifecycle and view endpoints.
type RoundHandler struct {
	rounds RoundService
	logger *slog.Logger
}

// NewRoundHandler creates a RoundHandler.
func NewRoundHandler(rounds RoundService, logger *slog.Logger) *RoundHandler {
	return &RoundHandler{rounds: rounds, logger: logger}
}

// roundResponse is the JSON view of a round.
type roundResponse struct {
	Number         uint64 `json:"number"`
	State          string `json:"state"`
	StartTime      int64  `json:"start_time"`
	EndTime        int64  `json:"end_time"`
	StartPrice     int64  `json:"start_price,omitempty"`
	EndPrice       int64  `json:"end_price,omitempty"`
	Result         string `json:"result,omitempty"`
	StakedTotal    uint64 `json:"staked_total"`
	TotalsRevealed bool   `json:"totals_revealed"`
	DisclosedUp    uint64 `json:"disclosed_up,omitempty"`
	DisclosedDown  uint64 `json:"disclosed_down,omitempty"`
	FeeAmount      uint64 `json:"fee_amount,omitempty"`
}

func toRoundResponse(r domain.Round, state domain.RoundState) roundResponse {
	resp := roundResponse{
		Number:         r.Number,
		State:          state.String(),
		StartTime:      r.StartTime.Unix(),
		EndTime:        r.EndTime.Unix(),
		StakedTotal:    r.StakedTotal,
		TotalsRevealed: r.TotalsRevealed,
		FeeAmount:      r.FeeAmount,
	}
	if r.StartPriceSet {
		resp.StartPrice = r.StartPrice
	}
	if r.ResultSet {
		resp.EndPrice = r.EndPrice
		resp.Result = r.Result.String()
	}
	if r.TotalsRevealed {
		resp.DisclosedUp = r.DisclosedUp
		resp.DisclosedDown = r.DisclosedDown
	}
	return resp
}

// CurrentRound reports the round the clock is currently inside, plus the
// betting round and the last finalized round.
// GET /api/rounds/current
func (h *RoundHandler) CurrentRound(w http.ResponseWriter, r *http.Request) {
	current := h.rounds.CurrentRound()
	writeJSON(w, http.StatusOK, map[string]uint64{
		"current":        current,
		"betting":        current + 1,
		"last_finalized": h.rounds.LastFinalized(),
	})
}

// GetRound returns a single round view.
// GET /api/rounds/{round}
func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	round, ok := pathRound(r, "round")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round number")
		return
	}
	info, state, ok := h.rounds.RoundInfo(round)
	if !ok {
		writeError(w, http.StatusNotFound, "round not found")
		return
	}
	writeJSON(w, http.StatusOK, toRoundResponse(info, state))
}

// GetTotals returns the disclosed totals for a revealed round.
// GET /api/rounds/{round}/totals
func (h *RoundHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	round, ok := pathRound(r, "round")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round number")
		return
	}
	up, down, revealed := h.rounds.RoundTotals(round)
	writeJSON(w, http.StatusOK, map[string]any{
		"round":    round,
		"revealed": revealed,
		"up":       up,
		"down":     down,
	})
}

// GetHandles returns the tally handles published by a reveal request.
// GET /api/rounds/{round}/handles
func (h *RoundHandler) GetHandles(w http.ResponseWriter, r *http.Request) {
	round, ok := pathRound(r, "round")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round number")
		return
	}
	handles, err := h.rounds.RoundHandles(round)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"up":   handles[0].Hex(),
		"down": handles[1].Hex(),
	})
}

// Finalize fetches the settlement price and fixes the round result.
// POST /api/rounds/{round}/finalize
func (h *RoundHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	round, ok := pathRound(r, "round")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round number")
		return
	}
	if err := h.rounds.FinalizeRound(r.Context(), round); err != nil {
		h.logger.WarnContext(r.Context(), "handler: finalize failed",
			slog.Uint64("round", round),
			slog.String("error", err.Error()),
		)
		writeEngineError(w, err)
		return
	}
	info, state, _ := h.rounds.RoundInfo(round)
	writeJSON(w, http.StatusOK, toRoundResponse(info, state))
}

// RequestReveal publishes the round's tally handles for oracle decryption.
// POST /api/rounds/{round}/reveal
func (h *RoundHandler) RequestReveal(w http.ResponseWriter, r *http.Request) {
	round, ok := pathRound(r, "round")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round number")
		return
	}
	handles, err := h.rounds.RequestRoundReveal(r.Context(), round)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"up":   handles[0].Hex(),
		"down": handles[1].Hex(),
	})
}

type resolveTotalsRequest struct {
	Up    uint64 `json:"up"`
	Down  uint64 `json:"down"`
	Proof string `json:"proof"`
}

// ResolveTotals submits the oracle's decrypted totals plus disclosure proof.
// POST /api/rounds/{round}/totals
func (h *RoundHandler) ResolveTotals(w http.ResponseWriter, r *http.Request) {
	round, ok := pathRound(r, "round")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid round number")
		return
	}
	var req resolveTotalsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	proof, err := decodeProof(req.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proof encoding")
		return
	}

	start := time.Now()
	if err := h.rounds.ResolveTotals(r.Context(), round, req.Up, req.Down, proof); err != nil {
		writeEngineError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "handler: totals resolved",
		slog.Uint64("round", round),
		slog.Duration("duration", time.Since(start)),
	)
	info, state, _ := h.rounds.RoundInfo(round)
	writeJSON(w, http.StatusOK, toRoundResponse(info, state))
}

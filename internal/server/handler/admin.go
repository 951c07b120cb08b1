package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AdminService defines the owner-gated methods the admin handler requires
// from the engine. Authorization happens inside the engine against the
// configured owner and fee recipient, not in the handler.
type AdminService interface {
	WithdrawFees(ctx context.Context, caller common.Address) (uint64, error)
	SetFeeBps(caller common.Address, bps uint32) error
	SetFeeRecipient(caller, recipient common.Address) error
	SetMaxPriceAge(caller common.Address, age time.Duration) error
	FeeBalance() uint64
	FeeBps() uint32
	ParticipantCount() int
	Participants(offset, limit int) []common.Address
}

// AdminHandler serves fee administration and directory endpoints.
type AdminHandler struct {
	admin  AdminService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

type callerRequest struct {
	Caller string `json:"caller"`
}

// WithdrawFees moves the accrued fee balance to the fee recipient.
// POST /api/admin/withdraw-fees
func (h *AdminHandler) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if err := decodeBody(r, &req); err != nil || !common.IsHexAddress(req.Caller) {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}
	amount, err := h.admin.WithdrawFees(r.Context(), common.HexToAddress(req.Caller))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "handler: fees withdrawn",
		slog.Uint64("amount", amount),
	)
	writeJSON(w, http.StatusOK, map[string]uint64{"amount": amount})
}

type setFeeBpsRequest struct {
	Caller string `json:"caller"`
	Bps    uint32 `json:"bps"`
}

// SetFeeBps updates the protocol fee for future rounds.
// PUT /api/admin/fee-bps
func (h *AdminHandler) SetFeeBps(w http.ResponseWriter, r *http.Request) {
	var req setFeeBpsRequest
	if err := decodeBody(r, &req); err != nil || !common.IsHexAddress(req.Caller) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.admin.SetFeeBps(common.HexToAddress(req.Caller), req.Bps); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"fee_bps": req.Bps})
}

type setFeeRecipientRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

// SetFeeRecipient updates the fee withdrawal address.
// PUT /api/admin/fee-recipient
func (h *AdminHandler) SetFeeRecipient(w http.ResponseWriter, r *http.Request) {
	var req setFeeRecipientRequest
	if err := decodeBody(r, &req); err != nil || !common.IsHexAddress(req.Caller) || !common.IsHexAddress(req.Recipient) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.admin.SetFeeRecipient(common.HexToAddress(req.Caller), common.HexToAddress(req.Recipient)); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fee_recipient": common.HexToAddress(req.Recipient).Hex()})
}

type setMaxPriceAgeRequest struct {
	Caller string `json:"caller"`
	Age    string `json:"age"`
}

// SetMaxPriceAge updates the settlement price staleness bound.
// PUT /api/admin/max-price-age
func (h *AdminHandler) SetMaxPriceAge(w http.ResponseWriter, r *http.Request) {
	var req setMaxPriceAgeRequest
	if err := decodeBody(r, &req); err != nil || !common.IsHexAddress(req.Caller) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	age, err := time.ParseDuration(req.Age)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid duration")
		return
	}
	if err := h.admin.SetMaxPriceAge(common.HexToAddress(req.Caller), age); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"max_price_age": age.String()})
}

// GetFees reports the accrued fee balance and current fee rate.
// GET /api/fees
func (h *AdminHandler) GetFees(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"balance": h.admin.FeeBalance(),
		"fee_bps": h.admin.FeeBps(),
	})
}

// ListParticipants returns the participant directory with pagination.
// GET /api/participants?limit=50&offset=0
func (h *AdminHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseListOpts(r)
	addrs := h.admin.Participants(offset, limit)

	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"participants": out,
		"total":        h.admin.ParticipantCount(),
		"limit":        limit,
		"offset":       offset,
	})
}

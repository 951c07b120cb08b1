package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// InputEncryptor defines the confidential-input methods the input handler
// requires. It is declared locally so the handler package does not depend on
// the concrete vault implementation.
type InputEncryptor interface {
	EncryptInput(dir domain.Direction, bettor common.Address, round uint64) (domain.Ciphertext, []byte, error)
}

// InputHandler serves the confidential input gateway: it turns a plaintext
// direction into a vault ciphertext plus binding proof that PlaceBet will
// accept for exactly this bettor and round.
type InputHandler struct {
	enc    InputEncryptor
	logger *slog.Logger
}

// NewInputHandler creates an InputHandler.
func NewInputHandler(enc InputEncryptor, logger *slog.Logger) *InputHandler {
	return &InputHandler{enc: enc, logger: logger}
}

type encryptInputRequest struct {
	Bettor    string `json:"bettor"`
	Round     uint64 `json:"round"`
	Direction string `json:"direction"`
}

type encryptInputResponse struct {
	Handle string        `json:"handle"`
	Proof  hexutil.Bytes `json:"proof"`
}

// EncryptInput produces a direction ciphertext bound to a bettor and round.
// POST /api/inputs
func (h *InputHandler) EncryptInput(w http.ResponseWriter, r *http.Request) {
	var req encryptInputRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !common.IsHexAddress(req.Bettor) {
		writeError(w, http.StatusBadRequest, "invalid bettor address")
		return
	}
	if req.Round == 0 {
		writeError(w, http.StatusBadRequest, "round must be positive")
		return
	}

	var dir domain.Direction
	switch strings.ToLower(req.Direction) {
	case "up":
		dir = domain.DirectionUp
	case "down":
		dir = domain.DirectionDown
	default:
		writeError(w, http.StatusBadRequest, `direction must be "up" or "down"`)
		return
	}

	ct, proof, err := h.enc.EncryptInput(dir, common.HexToAddress(req.Bettor), req.Round)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: encrypt input failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to encrypt input")
		return
	}

	writeJSON(w, http.StatusOK, encryptInputResponse{
		Handle: ct.Handle.Hex(),
		Proof:  proof,
	})
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps a settlement error to an HTTP status and sends it.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, errorStatus(err), err.Error())
}

// errorStatus maps the settlement sentinel errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNoBet),
		errors.Is(err, domain.ErrNoPendingClaim),
		errors.Is(err, domain.ErrUnknownHandle):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBetExists),
		errors.Is(err, domain.ErrClaimRequested),
		errors.Is(err, domain.ErrClaimed),
		errors.Is(err, domain.ErrResultSet),
		errors.Is(err, domain.ErrRevealRequested),
		errors.Is(err, domain.ErrTotalsRevealed),
		errors.Is(err, domain.ErrOutOfOrder),
		errors.Is(err, domain.ErrRoundNotEnded),
		errors.Is(err, domain.ErrNoResult),
		errors.Is(err, domain.ErrNotRequested),
		errors.Is(err, domain.ErrNotDisclosed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrWrongRound),
		errors.Is(err, domain.ErrBadStake),
		errors.Is(err, domain.ErrBadInput),
		errors.Is(err, domain.ErrBadProof),
		errors.Is(err, domain.ErrFeeTooHigh),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrStalePrice):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// pathAddress extracts and validates an address path parameter.
func pathAddress(r *http.Request, name string) (common.Address, bool) {
	v := r.PathValue(name)
	if !common.IsHexAddress(v) {
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}

// pathRound extracts a round number path parameter.
func pathRound(r *http.Request, name string) (uint64, bool) {
	n, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

// parseListOpts extracts standard pagination parameters from the query
// string. Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) (limit, offset int) {
	q := r.URL.Query()

	limit = 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// decodeBody decodes the JSON request body into dst, rejecting unknown
// fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decodeProof decodes a 0x-prefixed hex proof string.
func decodeProof(s string) ([]byte, error) {
	return hexutil.Decode(s)
}

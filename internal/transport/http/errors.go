package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeInvalidQuantity     = "invalid_quantity"
	codeOwnerRequired       = "owner_id_required"
	codeVariantNotFound     = "variant_not_found"
	codeVariantExists       = "variant_already_exists"
	codeReservationNotFound = "reservation_not_found"
	codeReservationInvalid  = "reservation_invalid"
	codeInsufficientStock   = "insufficient_stock"
	codeInvariantViolation  = "invariant_violation"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// Available is set on insufficient_stock responses: the quantity
	// that was free at decision time, so the storefront can offer a
	// reduced amount. Best-effort only.
	Available *int `json:"available,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorPayload(w, status, errorResponse{Error: msg, Code: code})
}

func writeInsufficientStock(w http.ResponseWriter, msg string, available int) {
	writeErrorPayload(w, http.StatusConflict, errorResponse{
		Error:     msg,
		Code:      codeInsufficientStock,
		Available: &available,
	})
}

func writeErrorPayload(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(resp)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

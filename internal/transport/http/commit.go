package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vitrineshop/inventory-api/internal/app"
	"github.com/vitrineshop/inventory-api/internal/domain"
)

// CheckoutCoordinator is the minimal interface needed to commit a hold.
type CheckoutCoordinator interface {
	Commit(ctx context.Context, in app.CommitInput) (app.CommitResult, error)
}

// HandleCommitReservation finalizes a cart line at checkout. A truncated
// response means fewer units were committed than requested; the order
// collaborator must shrink the line item and its price.
func HandleCommitReservation(svc CheckoutCoordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req commitRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidQuantity, domain.ErrInvalidQuantity.Error())
			return
		}

		result, err := svc.Commit(r.Context(), app.CommitInput{
			ReservationID:     chi.URLParam(r, "id"),
			RequestedQuantity: req.Quantity,
		})
		if err != nil {
			writeReservationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, commitResponse{
			Reservation:       toReservationResponse(result.Reservation),
			CommittedQuantity: result.CommittedQuantity,
			Truncated:         result.Truncated,
		})
	}
}

type commitRequest struct {
	Quantity int `json:"quantity"`
}

type commitResponse struct {
	Reservation       reservationResponse `json:"reservation"`
	CommittedQuantity int                 `json:"committed_quantity"`
	Truncated         bool                `json:"truncated"`
}

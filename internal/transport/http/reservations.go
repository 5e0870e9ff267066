package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vitrineshop/inventory-api/internal/app"
	"github.com/vitrineshop/inventory-api/internal/domain"
)

// ReservationManager is the surface the cart-facing handlers need.
type ReservationManager interface {
	Reserve(ctx context.Context, in app.ReserveInput) (domain.Reservation, error)
	Extend(ctx context.Context, id string) (domain.Reservation, error)
	Release(ctx context.Context, id string) error
	ReplaceQuantity(ctx context.Context, id string, newQty int) (domain.Reservation, error)
	ListOwnerReservations(ctx context.Context, ownerID string) ([]domain.Reservation, error)
	History(ctx context.Context, id string) ([]domain.Transition, error)
}

// HandleCreateReservation reserves stock on cart add.
func HandleCreateReservation(svc ReservationManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createReservationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := req.validate(); err != nil {
			writeReservationError(w, err)
			return
		}

		res, err := svc.Reserve(r.Context(), app.ReserveInput{
			VariantID: req.VariantID,
			OwnerID:   req.OwnerID,
			Quantity:  req.Quantity,
		})
		if err != nil {
			writeReservationError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toReservationResponse(res))
	}
}

// HandleExtendReservation pushes the hold's expiry forward while the
// shopper is actively checking out.
func HandleExtendReservation(svc ReservationManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Extend(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeReservationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReservationResponse(res))
	}
}

// HandleReleaseReservation releases a hold on cart removal. Releasing an
// already-terminal reservation succeeds: the sweeper may have won.
func HandleReleaseReservation(svc ReservationManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Release(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeReservationError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleReplaceQuantity swaps the hold for one of a different quantity on
// cart edit.
func HandleReplaceQuantity(svc ReservationManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req replaceQuantityRequest
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

		res, err := svc.ReplaceQuantity(r.Context(), chi.URLParam(r, "id"), req.Quantity)
		if err != nil {
			writeReservationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReservationResponse(res))
	}
}

// HandleListReservations returns an owner's live holds.
func HandleListReservations(svc ReservationManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.URL.Query().Get("owner_id")
		reservations, err := svc.ListOwnerReservations(r.Context(), ownerID)
		if err != nil {
			writeReservationError(w, err)
			return
		}

		out := make([]reservationResponse, 0, len(reservations))
		for _, res := range reservations {
			out = append(out, toReservationResponse(res))
		}
		writeJSON(w, http.StatusOK, listReservationsResponse{Reservations: out})
	}
}

// HandleReservationHistory returns the reservation's transition log for
// audit and support tooling.
func HandleReservationHistory(svc ReservationManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transitions, err := svc.History(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeReservationError(w, err)
			return
		}

		out := make([]transitionResponse, 0, len(transitions))
		for _, tr := range transitions {
			out = append(out, transitionResponse{
				FromState:  string(tr.FromState),
				ToState:    string(tr.ToState),
				Quantity:   tr.Quantity,
				RecordedAt: tr.RecordedAt,
			})
		}
		writeJSON(w, http.StatusOK, historyResponse{Events: out})
	}
}

func writeReservationError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientStockError
	if errors.As(err, &insufficient) {
		writeInsufficientStock(w, insufficient.Error(), insufficient.Available)
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrOwnerRequired):
		writeError(w, http.StatusBadRequest, codeOwnerRequired, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrVariantNotFound):
		writeError(w, http.StatusNotFound, codeVariantNotFound, err.Error())
	case errors.Is(err, domain.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, codeReservationNotFound, err.Error())
	case errors.Is(err, domain.ErrReservationInvalid):
		writeError(w, http.StatusConflict, codeReservationInvalid, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, codeInsufficientStock, err.Error())
	case errors.Is(err, domain.ErrInvariantViolation):
		writeError(w, http.StatusInternalServerError, codeInvariantViolation, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

type createReservationRequest struct {
	VariantID string `json:"variant_id"`
	OwnerID   string `json:"owner_id"`
	Quantity  int    `json:"quantity"`
}

func (r createReservationRequest) validate() error {
	if r.VariantID == "" {
		return domain.ErrInvalidID
	}
	if r.OwnerID == "" {
		return domain.ErrOwnerRequired
	}
	if r.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	return nil
}

type replaceQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type reservationResponse struct {
	ID                string    `json:"id"`
	VariantID         string    `json:"variant_id"`
	OwnerID           string    `json:"owner_id"`
	Quantity          int       `json:"quantity"`
	State             string    `json:"state"`
	CommittedQuantity *int      `json:"committed_quantity,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

type listReservationsResponse struct {
	Reservations []reservationResponse `json:"reservations"`
}

type transitionResponse struct {
	FromState  string    `json:"from_state"`
	ToState    string    `json:"to_state"`
	Quantity   int       `json:"quantity"`
	RecordedAt time.Time `json:"recorded_at"`
}

type historyResponse struct {
	Events []transitionResponse `json:"events"`
}

func toReservationResponse(res domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:                res.ID,
		VariantID:         res.VariantID,
		OwnerID:           res.OwnerID,
		Quantity:          res.Quantity,
		State:             string(res.State),
		CommittedQuantity: res.CommittedQuantity,
		CreatedAt:         res.CreatedAt,
		ExpiresAt:         res.ExpiresAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

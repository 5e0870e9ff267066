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

// AdminAPI is the ops collaborator's surface: provisioning, restocks and
// corrections, counter reporting.
type AdminAPI interface {
	CreateVariant(ctx context.Context, in app.CreateVariantInput) (app.VariantStock, error)
	ListVariants(ctx context.Context) ([]app.VariantStock, error)
	GetInventory(ctx context.Context, variantID string) (domain.Inventory, error)
	AdjustStock(ctx context.Context, variantID string, delta int) (domain.Inventory, error)
	ListLowStock(ctx context.Context) ([]domain.Inventory, error)
}

func HandleCreateVariant(svc AdminAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createVariantRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		stock, err := svc.CreateVariant(r.Context(), app.CreateVariantInput{
			SKU:               req.SKU,
			Name:              req.Name,
			InitialStock:      req.InitialStock,
			LowStockThreshold: req.LowStockThreshold,
		})
		if err != nil {
			writeAdminError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toVariantResponse(stock))
	}
}

func HandleListVariants(svc AdminAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stocks, err := svc.ListVariants(r.Context())
		if err != nil {
			writeAdminError(w, err)
			return
		}

		out := make([]variantResponse, 0, len(stocks))
		for _, stock := range stocks {
			out = append(out, toVariantResponse(stock))
		}
		writeJSON(w, http.StatusOK, listVariantsResponse{Variants: out})
	}
}

func HandleGetInventory(svc AdminAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := svc.GetInventory(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeAdminError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toInventoryResponse(inv))
	}
}

// HandleAdjustStock applies a restock or correction. The delta goes
// through the same conditional mutation as every other counter write.
func HandleAdjustStock(svc AdminAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adjustStockRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		inv, err := svc.AdjustStock(r.Context(), chi.URLParam(r, "id"), req.Delta)
		if err != nil {
			writeAdminError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toInventoryResponse(inv))
	}
}

func HandleListLowStock(svc AdminAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := svc.ListLowStock(r.Context())
		if err != nil {
			writeAdminError(w, err)
			return
		}

		out := make([]inventoryResponse, 0, len(records))
		for _, inv := range records {
			out = append(out, toInventoryResponse(inv))
		}
		writeJSON(w, http.StatusOK, listInventoryResponse{Inventory: out})
	}
}

func writeAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrVariantNotFound):
		writeError(w, http.StatusNotFound, codeVariantNotFound, err.Error())
	case errors.Is(err, domain.ErrVariantAlreadyExists):
		writeError(w, http.StatusConflict, codeVariantExists, err.Error())
	case errors.Is(err, domain.ErrInvariantViolation):
		writeError(w, http.StatusConflict, codeInvariantViolation, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

type createVariantRequest struct {
	SKU               string `json:"sku"`
	Name              string `json:"name"`
	InitialStock      int    `json:"initial_stock"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

type variantResponse struct {
	ID                string    `json:"id"`
	SKU               string    `json:"sku"`
	Name              string    `json:"name"`
	Available         int       `json:"available"`
	Reserved          int       `json:"reserved"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at"`
}

type listVariantsResponse struct {
	Variants []variantResponse `json:"variants"`
}

type inventoryResponse struct {
	VariantID         string    `json:"variant_id"`
	Available         int       `json:"available"`
	Reserved          int       `json:"reserved"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	Version           int       `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type listInventoryResponse struct {
	Inventory []inventoryResponse `json:"inventory"`
}

func toVariantResponse(stock app.VariantStock) variantResponse {
	return variantResponse{
		ID:                stock.Variant.ID,
		SKU:               stock.Variant.SKU,
		Name:              stock.Variant.Name,
		Available:         stock.Inventory.Available,
		Reserved:          stock.Inventory.Reserved,
		LowStockThreshold: stock.Inventory.LowStockThreshold,
		CreatedAt:         stock.Variant.CreatedAt,
	}
}

func toInventoryResponse(inv domain.Inventory) inventoryResponse {
	return inventoryResponse{
		VariantID:         inv.VariantID,
		Available:         inv.Available,
		Reserved:          inv.Reserved,
		LowStockThreshold: inv.LowStockThreshold,
		Version:           inv.Version,
		UpdatedAt:         inv.UpdatedAt,
	}
}

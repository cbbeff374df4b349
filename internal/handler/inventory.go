package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/xenking/storefront/internal/domain/inventory"
)

type stockResponse struct {
	ProductID string `json:"product_id"`
	Available int    `json:"available"`
}

// GetStock reports the available stock of a product.
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productID")
	available, err := h.ledger.Available(r.Context(), productID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stockResponse{ProductID: productID, Available: available})
}

type adjustStockRequest struct {
	Delta      int    `json:"delta"`
	ChangeType string `json:"change_type"`
	Notes      string `json:"notes,omitempty"`
}

type movementResponse struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id"`
	ChangeType       string    `json:"change_type"`
	QuantityChange   int       `json:"quantity_change"`
	PreviousQuantity int       `json:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func toMovementResponse(m inventory.Movement) movementResponse {
	return movementResponse{
		ID:               m.ID,
		ProductID:        m.ProductID,
		ChangeType:       string(m.Change),
		QuantityChange:   m.QuantityChange,
		PreviousQuantity: m.PreviousQuantity,
		NewQuantity:      m.NewQuantity,
		Notes:            m.Notes,
		CreatedAt:        m.CreatedAt,
	}
}

// AdjustStock applies a signed stock delta and records the movement. The
// resulting stock never goes below zero; over-large negative deltas clamp.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Delta == 0 {
		respondError(w, http.StatusBadRequest, "delta must not be zero")
		return
	}

	userID, _ := owner(r)
	m, err := h.ledger.Adjust(r.Context(), r.PathValue("productID"), req.Delta,
		inventory.ChangeType(req.ChangeType), inventory.AdjustOpts{
			Notes:  req.Notes,
			UserID: userID,
		})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toMovementResponse(m))
}

// StockHistory lists recent inventory movements for a product, newest first.
func (h *Handler) StockHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	movements, err := h.ledger.History(r.Context(), r.PathValue("productID"), limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	out := make([]movementResponse, len(movements))
	for i, m := range movements {
		out[i] = toMovementResponse(m)
	}
	respondJSON(w, http.StatusOK, out)
}

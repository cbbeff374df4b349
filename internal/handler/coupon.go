package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/coupon"
)

type validateCouponRequest struct {
	Code        string          `json:"code"`
	OrderAmount decimal.Decimal `json:"order_amount"`
}

type couponQuoteResponse struct {
	Code     string          `json:"code"`
	Type     string          `json:"type"`
	Discount decimal.Decimal `json:"discount"`
}

func toQuoteResponse(q *coupon.Quote) couponQuoteResponse {
	return couponQuoteResponse{
		Code:     q.Coupon.Code,
		Type:     string(q.Coupon.Type),
		Discount: q.Discount,
	}
}

// ValidateCoupon quotes the discount a code would give on the supplied order
// amount, without redeeming anything.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	userID, _ := owner(r)
	q, err := h.coupons.Validate(r.Context(), req.Code, userID, req.OrderAmount)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toQuoteResponse(q))
}

type bestCouponRequest struct {
	OrderAmount decimal.Decimal `json:"order_amount"`
}

// BestCoupon returns the active coupon giving the largest discount on the
// supplied order amount, or 404 when none applies.
func (h *Handler) BestCoupon(w http.ResponseWriter, r *http.Request) {
	var req bestCouponRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, _ := owner(r)
	q, err := h.coupons.Best(r.Context(), userID, req.OrderAmount)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if q == nil {
		respondError(w, http.StatusNotFound, "no applicable coupon")
		return
	}
	respondJSON(w, http.StatusOK, toQuoteResponse(q))
}

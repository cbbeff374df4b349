// Package handler exposes the storefront over HTTP with JSON bodies. It is a
// thin layer: request decoding, owner-header extraction and domain error
// mapping live here, business rules do not.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

// Owner headers identify the cart owner: authenticated users send X-User-ID,
// guests send X-Session-ID. Exactly one is required on cart routes.
const (
	headerUserID    = "X-User-ID"
	headerSessionID = "X-Session-ID"
)

// Handler bundles the domain services behind the HTTP routes.
type Handler struct {
	carts    *cart.Service
	orders   *order.Service
	payments *checkout.Coordinator
	coupons  *coupon.Validator
	ledger   *inventory.Ledger
	products product.Repository
}

// New creates a Handler.
func New(
	carts *cart.Service,
	orders *order.Service,
	payments *checkout.Coordinator,
	coupons *coupon.Validator,
	ledger *inventory.Ledger,
	products product.Repository,
) *Handler {
	return &Handler{
		carts:    carts,
		orders:   orders,
		payments: payments,
		coupons:  coupons,
		ledger:   ledger,
		products: products,
	}
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Code: status, Message: message})
}

// respondDomainError maps domain errors onto HTTP statuses. Anything
// unrecognized is logged and reported as a 500 without leaking internals.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidTransition *order.InvalidTransitionError
		invalidReturn     *order.InvalidReturnTransitionError
		insufficientStock *cart.InsufficientStockError
		usageLimit        *coupon.UsageLimitError
		minAmount         *coupon.MinimumAmountError
	)
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, cart.ErrOwnerRequired),
		errors.Is(err, inventory.ErrUnknownChangeType):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, coupon.ErrInvalidCoupon),
		errors.Is(err, coupon.ErrNotYetActive),
		errors.Is(err, coupon.ErrExpired),
		errors.As(err, &usageLimit),
		errors.As(err, &minAmount),
		errors.As(err, &insufficientStock):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &invalidTransition),
		errors.As(err, &invalidReturn),
		errors.Is(err, order.ErrNotDelivered),
		errors.Is(err, order.ErrPaymentNotPending),
		errors.Is(err, order.ErrNoGatewayOrder),
		errors.Is(err, checkout.ErrAlreadyPaid):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, checkout.ErrInvalidSignature),
		errors.Is(err, checkout.ErrOrderMismatch):
		respondError(w, http.StatusUnauthorized, err.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func owner(r *http.Request) (userID, sessionID string) {
	return r.Header.Get(headerUserID), r.Header.Get(headerSessionID)
}

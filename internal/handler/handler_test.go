package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

func TestRespondDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"missing order", order.ErrNotFound, http.StatusNotFound},
		{"missing product", product.ErrNotFound, http.StatusNotFound},
		{"missing cart", cart.ErrNotFound, http.StatusNotFound},
		{"missing cart item", cart.ErrItemNotFound, http.StatusNotFound},
		{"empty cart", order.ErrEmptyCart, http.StatusBadRequest},
		{"no owner", cart.ErrOwnerRequired, http.StatusBadRequest},
		{"bad change type", inventory.ErrUnknownChangeType, http.StatusBadRequest},
		{"invalid coupon", coupon.ErrInvalidCoupon, http.StatusUnprocessableEntity},
		{"expired coupon", coupon.ErrExpired, http.StatusUnprocessableEntity},
		{"usage limit", &coupon.UsageLimitError{Limit: 1}, http.StatusUnprocessableEntity},
		{"below minimum", &coupon.MinimumAmountError{Minimum: decimal.NewFromInt(500)}, http.StatusUnprocessableEntity},
		{"out of stock", &cart.InsufficientStockError{ProductID: "p1", Available: 2}, http.StatusUnprocessableEntity},
		{"illegal transition", &order.InvalidTransitionError{From: order.StatusShipped, To: order.StatusCancelled}, http.StatusConflict},
		{"illegal return transition", &order.InvalidReturnTransitionError{From: order.ReturnCompleted, To: order.ReturnRequested}, http.StatusConflict},
		{"return before delivery", order.ErrNotDelivered, http.StatusConflict},
		{"payment settled", order.ErrPaymentNotPending, http.StatusConflict},
		{"no gateway order", order.ErrNoGatewayOrder, http.StatusConflict},
		{"already paid", checkout.ErrAlreadyPaid, http.StatusConflict},
		{"bad signature", checkout.ErrInvalidSignature, http.StatusUnauthorized},
		{"order mismatch", checkout.ErrOrderMismatch, http.StatusUnauthorized},
		{"wrapped sentinel keeps its status", errors.Wrap(order.ErrNotFound, "load order"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			w := httptest.NewRecorder()

			respondDomainError(w, req, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body errorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantStatus, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestRespondDomainError_Internal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	respondDomainError(w, req, errors.New("pool exhausted"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body errorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "internal server error", body.Message, "internals must not leak")
}

func TestDecodeBody(t *testing.T) {
	type payload struct {
		Quantity int `json:"quantity"`
	}

	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity": 3}`))
		var p payload
		require.NoError(t, decodeBody(req, &p))
		assert.Equal(t, 3, p.Quantity)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity": 3, "qty": 4}`))
		var p payload
		require.Error(t, decodeBody(req, &p))
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		var p payload
		require.Error(t, decodeBody(req, &p))
	})
}

func TestOwner(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerUserID, "u1")
	req.Header.Set(headerSessionID, "sess-1")

	userID, sessionID := owner(req)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "sess-1", sessionID)

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	userID, sessionID = owner(bare)
	assert.Empty(t, userID)
	assert.Empty(t, sessionID)
}

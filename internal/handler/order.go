package handler

import (
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
)

type orderItemResponse struct {
	ProductID   string          `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type orderResponse struct {
	ID             string              `json:"id"`
	Number         string              `json:"order_number"`
	Status         string              `json:"status"`
	PaymentStatus  string              `json:"payment_status"`
	ShippingStatus string              `json:"shipping_status"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	TaxAmount      decimal.Decimal     `json:"tax_amount"`
	ShippingAmount decimal.Decimal     `json:"shipping_amount"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	TotalAmount    decimal.Decimal     `json:"total_amount"`
	CouponCode     string              `json:"coupon_code,omitempty"`
	TrackingNumber string              `json:"tracking_number,omitempty"`
	CourierName    string              `json:"courier_name,omitempty"`
	ReturnStatus   string              `json:"return_status"`
	ReturnAWB      string              `json:"return_awb,omitempty"`
	ReturnCourier  string              `json:"return_courier,omitempty"`
	Items          []orderItemResponse `json:"items"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductSKU:  item.ProductSKU,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			TotalPrice:  item.TotalPrice,
		}
	}
	return orderResponse{
		ID:             o.ID,
		Number:         o.Number,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		ShippingStatus: string(o.ShippingStatus),
		Subtotal:       o.Subtotal,
		TaxAmount:      o.TaxAmount,
		ShippingAmount: o.ShippingAmount,
		DiscountAmount: o.DiscountAmount,
		TotalAmount:    o.TotalAmount,
		CouponCode:     o.CouponCode,
		TrackingNumber: o.TrackingNumber,
		CourierName:    o.CourierName,
		ReturnStatus:   string(o.ReturnStatus),
		ReturnAWB:      o.ReturnAWB,
		ReturnCourier:  o.ReturnCourier,
		Items:          items,
	}
}

type checkoutRequest struct {
	CustomerEmail   string        `json:"customer_email"`
	CouponCode      string        `json:"coupon_code,omitempty"`
	ShippingAddress order.Address `json:"shipping_address"`
	BillingAddress  order.Address `json:"billing_address"`
}

// Checkout turns the user's cart into a pending order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, _ := owner(r)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "checkout requires an authenticated user")
		return
	}
	if req.CustomerEmail == "" {
		respondError(w, http.StatusBadRequest, "customer_email is required")
		return
	}

	o, err := h.orders.Checkout(r.Context(), order.CheckoutInput{
		UserID:          userID,
		CustomerEmail:   req.CustomerEmail,
		CouponCode:      req.CouponCode,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toOrderResponse(o))
}

// GetOrder returns a single order with its items.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("orderID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderResponse(o))
}

type createPaymentResponse struct {
	OrderID        string          `json:"order_id"`
	GatewayOrderID string          `json:"gateway_order_id"`
	Amount         decimal.Decimal `json:"amount"`
}

// CreatePayment opens a gateway order for a pending order.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	o, err := h.payments.CreatePayment(r.Context(), r.PathValue("orderID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, createPaymentResponse{
		OrderID:        o.ID,
		GatewayOrderID: o.GatewayOrderID,
		Amount:         o.TotalAmount,
	})
}

type verifyPaymentRequest struct {
	OrderID          string `json:"order_id"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

// VerifyPayment confirms a payment from the client-side gateway callback.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		respondError(w, http.StatusBadRequest, "order_id, gateway_order_id, gateway_payment_id and signature are required")
		return
	}

	err := h.payments.ConfirmPayment(r.Context(), req.OrderID, checkout.Callback{
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "paid"})
}

// PaymentWebhook handles asynchronous gateway notifications. The raw body is
// needed for signature verification, so it is read before decoding.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "reading request body")
		return
	}
	signature := r.Header.Get("X-Webhook-Signature")
	if err := h.payments.HandleWebhook(r.Context(), body, signature); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type cancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancelOrder cancels an order, restoring inventory when appropriate.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if err := h.payments.CancelOrder(r.Context(), r.PathValue("orderID"), req.Reason); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves an order along the fulfillment graph.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	next := order.Status(req.Status)
	if !order.ValidStatus(next) {
		respondError(w, http.StatusBadRequest, "unknown order status "+req.Status)
		return
	}

	// Shipping goes through the coordinator so the customer gets their
	// tracking details once the transition commits.
	var err error
	if next == order.StatusShipped {
		err = h.payments.MarkShipped(r.Context(), r.PathValue("orderID"))
	} else {
		err = h.orders.UpdateStatus(r.Context(), r.PathValue("orderID"), next)
	}
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

// RequestReturn opens the post-delivery return sub-flow for an order.
func (h *Handler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.RequestReturn(r.Context(), r.PathValue("orderID")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"return_status": string(order.ReturnRequested)})
}

type updateReturnRequest struct {
	Status  string `json:"status"`
	AWB     string `json:"awb,omitempty"`
	Courier string `json:"courier,omitempty"`
}

// UpdateReturnStatus advances an open return along its machine.
func (h *Handler) UpdateReturnStatus(w http.ResponseWriter, r *http.Request) {
	var req updateReturnRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	next := order.ReturnStatus(req.Status)
	if !order.ValidReturnStatus(next) || next == order.ReturnNone {
		respondError(w, http.StatusBadRequest, "unknown return status "+req.Status)
		return
	}
	if err := h.orders.AdvanceReturn(r.Context(), r.PathValue("orderID"), next, req.AWB, req.Courier); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"return_status": req.Status})
}

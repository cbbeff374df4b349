package handler

import "net/http"

// Register mounts every API route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{productID}", h.GetProduct)
	mux.HandleFunc("GET /api/products/{productID}/stock", h.GetStock)
	mux.HandleFunc("POST /api/products/{productID}/stock", h.AdjustStock)
	mux.HandleFunc("GET /api/products/{productID}/stock/history", h.StockHistory)

	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart/items", h.AddCartItem)
	mux.HandleFunc("PATCH /api/cart/items/{productID}", h.UpdateCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{productID}", h.RemoveCartItem)
	mux.HandleFunc("DELETE /api/cart", h.ClearCart)

	mux.HandleFunc("POST /api/coupons/validate", h.ValidateCoupon)
	mux.HandleFunc("POST /api/coupons/best", h.BestCoupon)

	mux.HandleFunc("POST /api/checkout", h.Checkout)
	mux.HandleFunc("GET /api/orders/{orderID}", h.GetOrder)
	mux.HandleFunc("POST /api/orders/{orderID}/payment", h.CreatePayment)
	mux.HandleFunc("POST /api/orders/{orderID}/cancel", h.CancelOrder)
	mux.HandleFunc("PATCH /api/orders/{orderID}/status", h.UpdateOrderStatus)
	mux.HandleFunc("POST /api/orders/{orderID}/return", h.RequestReturn)
	mux.HandleFunc("PATCH /api/orders/{orderID}/return", h.UpdateReturnStatus)

	mux.HandleFunc("POST /api/payment/verify", h.VerifyPayment)
	mux.HandleFunc("POST /api/payment/webhook", h.PaymentWebhook)
}

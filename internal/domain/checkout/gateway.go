package checkout

import (
	"context"

	"github.com/xenking/storefront/internal/domain/order"
)

// GatewayOrderRequest asks the payment gateway to open an order. Amount is in
// minor currency units; Receipt carries the internal order number.
type GatewayOrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// GatewayOrder is the gateway's handle for a payment to be collected.
type GatewayOrder struct {
	ID string
}

// PaymentGateway is the narrow interface to the payment provider.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (GatewayOrder, error)
}

// ShipmentItem is one line of a carrier order payload.
type ShipmentItem struct {
	Name     string
	SKU      string
	Units    int
	Price    string
	LengthCm float64
	WidthCm  float64
	HeightCm float64
	WeightKg float64
}

// ShipmentRequest is the carrier order payload built from a paid order.
type ShipmentRequest struct {
	OrderNumber     string
	PaymentMethod   string
	ShippingAddress order.Address
	BillingAddress  order.Address
	Items           []ShipmentItem
}

// ShipmentResult carries the carrier identifiers to persist on the order.
type ShipmentResult struct {
	CarrierOrderID string
	ShipmentID     string
	TrackingNumber string
	CourierName    string
}

// ShippingCarrier is the narrow interface to the shipping provider.
type ShippingCarrier interface {
	CreateShipmentOrder(ctx context.Context, req ShipmentRequest) (ShipmentResult, error)
}

// Notifier delivers customer-facing messages. All methods are fire-and-forget
// from the coordinator's perspective: failures are logged, never propagated.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, o *order.Order) error
	SendShippingNotification(ctx context.Context, o *order.Order) error
	SendCancellationNotice(ctx context.Context, o *order.Order) error
}

// Shipment payload defaults used when products carry no dimensions of their
// own.
const (
	defaultDimensionCm = 10
	defaultWeightKg    = 0.5
	prepaidMethod      = "Prepaid"
)

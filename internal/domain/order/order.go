package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/inventory"
)

var (
	// ErrNotFound is returned when a referenced order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateNumber is returned when an order number collides with an
	// existing row; checkout retries generation on it.
	ErrDuplicateNumber = errors.New("duplicate order number")
	// ErrPaymentNotPending is returned when a payment transition is requested
	// but payment_status has already left 'pending'.
	ErrPaymentNotPending = errors.New("payment is not pending")
	// ErrEmptyCart is returned when checkout finds nothing to order.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoGatewayOrder is returned when a payment callback references an
	// order that never had a gateway order created.
	ErrNoGatewayOrder = errors.New("no payment gateway order for this order")
	// ErrNotDelivered is returned when a return is requested for an order
	// that has not been delivered.
	ErrNotDelivered = errors.New("order has not been delivered")
)

// Address is a point-in-time snapshot stored as JSON on the order.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Order is the purchase aggregate. Status, payment status and shipping status
// are independent axes coupled only by business rules.
type Order struct {
	ID            string
	UserID        string
	Number        string
	CustomerEmail string

	Status         Status
	PaymentStatus  PaymentStatus
	ShippingStatus ShippingStatus
	ReturnStatus   ReturnStatus

	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal

	CouponID   string
	CouponCode string

	ShippingAddress Address
	BillingAddress  Address

	GatewayOrderID   string
	GatewayPaymentID string

	CarrierOrderID string
	ShipmentID     string
	TrackingNumber string
	CourierName    string

	ReturnRequested bool
	ReturnAWB       string
	ReturnCourier   string

	CancellationReason string
	CancelledAt        *time.Time
	PaidAt             *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Items []Item
}

// Item is an immutable snapshot of a product at order time, independent of
// later catalog changes. Created once, never mutated.
type Item struct {
	ID              string
	OrderID         string
	ProductID       string
	ProductName     string
	ProductSKU      string
	UnitPrice       decimal.Decimal
	Quantity        int
	TotalPrice      decimal.Decimal
	ProductSnapshot json.RawMessage
}

// Shipment carries the carrier identifiers persisted after a successful
// shipment order creation.
type Shipment struct {
	CarrierOrderID string
	ShipmentID     string
	TrackingNumber string
	CourierName    string
}

// Repository persists orders. Multi-field updates (mark paid, cancel,
// transition) are transactional: all-or-nothing visibility.
type Repository interface {
	// CreateFromCart inserts the order and its items and clears the source
	// cart's items, all in one transaction. Returns ErrDuplicateNumber on an
	// order number collision.
	CreateFromCart(ctx context.Context, o *Order, cartID string) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error)
	// TransitionStatus moves the order to next after validating the edge
	// against the current status under a row lock. Returns the previous status.
	TransitionStatus(ctx context.Context, id string, next Status) (Status, error)
	// Cancel is TransitionStatus to StatusCancelled plus the cancellation
	// fields, in one transaction.
	Cancel(ctx context.Context, id, reason string) (Status, error)
	// MarkPaid sets payment_status=paid, status=confirmed and the gateway
	// payment reference in one transaction. A second call for an already-paid
	// order reports alreadyPaid=true without mutating anything.
	MarkPaid(ctx context.Context, id, gatewayPaymentID string) (alreadyPaid bool, err error)
	MarkPaymentFailed(ctx context.Context, id string) error
	SetGatewayOrder(ctx context.Context, id, gatewayOrderID string) error
	SetShipment(ctx context.Context, id string, s Shipment) error
	// RequestReturn opens the return sub-flow for a delivered order: moves
	// return_status from none to requested under a row lock. Returns
	// ErrNotDelivered when the order has not been delivered.
	RequestReturn(ctx context.Context, id string) error
	// AdvanceReturn moves an open return to next after validating the edge,
	// recording the pickup AWB and courier when they are provided.
	AdvanceReturn(ctx context.Context, id string, next ReturnStatus, awb, courier string) error
	ReturnableItems(ctx context.Context, orderID string) ([]inventory.ReturnItem, error)
}

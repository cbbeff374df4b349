package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
)

var (
	// ErrInvalidSignature is returned when a payment callback or webhook
	// fails HMAC verification. Nothing is mutated.
	ErrInvalidSignature = errors.New("invalid payment signature")
	// ErrOrderMismatch is returned when a verified callback references a
	// gateway order other than the one stored on the order (replay defense).
	ErrOrderMismatch = errors.New("order ID mismatch")
	// ErrAlreadyPaid is returned when payment creation is requested for an
	// order that has already been paid.
	ErrAlreadyPaid = errors.New("order is already paid")
)

// Callback is the synchronous payment confirmation from the client after the
// gateway checkout completes.
type Callback struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// Coordinator sequences the checkout-to-fulfillment path: gateway order
// creation, signature-verified payment confirmation, coupon redemption
// commit, then best-effort shipment creation and notification. The reverse
// path (cancellation) restores inventory and notifies.
type Coordinator struct {
	orders    order.Repository
	lifecycle *order.Service
	coupons   *coupon.Validator
	gateway   PaymentGateway
	carrier   ShippingCarrier
	notifier  Notifier
	lg        *zap.Logger

	secret        []byte
	webhookSecret []byte
	currency      string
	// sideEffectTimeout bounds post-commit outbound calls; it is detached
	// from the request context so an impatient client cannot cancel them.
	sideEffectTimeout time.Duration
}

// Config holds the coordinator's secrets and tuning.
type Config struct {
	PaymentSecret     []byte
	WebhookSecret     []byte
	Currency          string
	SideEffectTimeout time.Duration
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(
	orders order.Repository,
	lifecycle *order.Service,
	coupons *coupon.Validator,
	gateway PaymentGateway,
	carrier ShippingCarrier,
	notifier Notifier,
	cfg Config,
	lg *zap.Logger,
) *Coordinator {
	if cfg.SideEffectTimeout <= 0 {
		cfg.SideEffectTimeout = 15 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &Coordinator{
		orders:            orders,
		lifecycle:         lifecycle,
		coupons:           coupons,
		gateway:           gateway,
		carrier:           carrier,
		notifier:          notifier,
		lg:                lg,
		secret:            cfg.PaymentSecret,
		webhookSecret:     cfg.WebhookSecret,
		currency:          cfg.Currency,
		sideEffectTimeout: cfg.SideEffectTimeout,
	}
}

// CreatePayment opens a gateway order for an internal order and stores its
// identifier. A gateway failure aborts with no state mutated.
func (c *Coordinator) CreatePayment(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus != order.PaymentPending {
		return nil, ErrAlreadyPaid
	}

	g, err := c.gateway.CreateOrder(ctx, GatewayOrderRequest{
		AmountMinor: o.TotalAmount.Shift(2).IntPart(),
		Currency:    c.currency,
		Receipt:     o.Number,
		Notes:       map[string]string{"order_id": o.ID},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gateway order")
	}

	if err := c.orders.SetGatewayOrder(ctx, o.ID, g.ID); err != nil {
		return nil, errors.Wrap(err, "store gateway order id")
	}
	o.GatewayOrderID = g.ID
	return o, nil
}

// ConfirmPayment handles the synchronous callback. Verification order:
// signature first (constant-time), then the stored gateway order id must
// match the callback's. On the first successful confirmation the order is
// marked paid and confirmed in one transaction, the coupon redemption is
// committed, and shipment + email run post-commit as best-effort steps.
// Repeated callbacks for an already-paid order are no-ops.
func (c *Coordinator) ConfirmPayment(ctx context.Context, orderID string, cb Callback) error {
	if !VerifySignature(c.secret, cb.GatewayOrderID, cb.GatewayPaymentID, cb.Signature) {
		return ErrInvalidSignature
	}

	o, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.GatewayOrderID == "" {
		return order.ErrNoGatewayOrder
	}
	if o.GatewayOrderID != cb.GatewayOrderID {
		return ErrOrderMismatch
	}

	return c.confirm(ctx, o, cb.GatewayPaymentID)
}

func (c *Coordinator) confirm(ctx context.Context, o *order.Order, gatewayPaymentID string) error {
	alreadyPaid, err := c.orders.MarkPaid(ctx, o.ID, gatewayPaymentID)
	if err != nil {
		return errors.Wrap(err, "mark order paid")
	}

	// Redemption is idempotent, so retried confirmations converge even when
	// an earlier attempt failed between commit and redemption.
	if o.CouponID != "" {
		err := c.coupons.Redeem(ctx, coupon.Usage{
			CouponID:       o.CouponID,
			UserID:         o.UserID,
			OrderID:        o.ID,
			DiscountAmount: o.DiscountAmount,
		})
		if err != nil {
			return errors.Wrap(err, "commit coupon redemption")
		}
	}

	if alreadyPaid {
		return nil
	}

	// Reload so the shipment payload and the email see the committed state,
	// not the pre-payment snapshot.
	fresh, err := c.orders.GetByID(ctx, o.ID)
	if err != nil {
		c.lg.Warn("reload paid order for side effects failed",
			zap.String("order_id", o.ID), zap.Error(err))
		fresh = o
	}

	c.runSideEffects(ctx, fresh)
	return nil
}

// runSideEffects performs the best-effort post-commit steps: carrier shipment
// creation and the confirmation email. Failures are logged and swallowed;
// the payment confirmation has already committed and must stand.
func (c *Coordinator) runSideEffects(ctx context.Context, o *order.Order) {
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.sideEffectTimeout)
	defer cancel()

	res, err := c.carrier.CreateShipmentOrder(sideCtx, buildShipmentRequest(o))
	if err != nil {
		c.lg.Error("shipment creation failed, manual reconciliation required",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	} else {
		err := c.orders.SetShipment(sideCtx, o.ID, order.Shipment{
			CarrierOrderID: res.CarrierOrderID,
			ShipmentID:     res.ShipmentID,
			TrackingNumber: res.TrackingNumber,
			CourierName:    res.CourierName,
		})
		if err != nil {
			c.lg.Error("persisting shipment identifiers failed",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		}
	}

	if err := c.notifier.SendOrderConfirmation(sideCtx, o); err != nil {
		c.lg.Error("order confirmation email failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}

// MarkShipped advances an order to shipped, which also moves its shipping
// status, then mails the tracking details as a best-effort post-commit step.
func (c *Coordinator) MarkShipped(ctx context.Context, orderID string) error {
	if err := c.lifecycle.UpdateStatus(ctx, orderID, order.StatusShipped); err != nil {
		return err
	}

	o, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		c.lg.Warn("reload shipped order for notification failed",
			zap.String("order_id", orderID), zap.Error(err))
		return nil
	}

	noticeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.sideEffectTimeout)
	defer cancel()
	if err := c.notifier.SendShippingNotification(noticeCtx, o); err != nil {
		c.lg.Error("shipping notification failed",
			zap.String("order_id", orderID), zap.Error(err))
	}
	return nil
}

// CancelOrder runs the reverse path: status transition with inventory
// restoration, then a best-effort cancellation notice.
func (c *Coordinator) CancelOrder(ctx context.Context, orderID, reason string) error {
	if err := c.lifecycle.Cancel(ctx, orderID, reason); err != nil {
		return err
	}

	o, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		c.lg.Warn("reload cancelled order for notification failed",
			zap.String("order_id", orderID), zap.Error(err))
		return nil
	}

	noticeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.sideEffectTimeout)
	defer cancel()
	if err := c.notifier.SendCancellationNotice(noticeCtx, o); err != nil {
		c.lg.Error("cancellation notice failed",
			zap.String("order_id", orderID), zap.Error(err))
	}
	return nil
}

func buildShipmentRequest(o *order.Order) ShipmentRequest {
	items := make([]ShipmentItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = ShipmentItem{
			Name:     it.ProductName,
			SKU:      it.ProductSKU,
			Units:    it.Quantity,
			Price:    it.UnitPrice.StringFixed(2),
			LengthCm: defaultDimensionCm,
			WidthCm:  defaultDimensionCm,
			HeightCm: defaultDimensionCm,
			WeightKg: defaultWeightKg,
		}
	}
	return ShipmentRequest{
		OrderNumber:     o.Number,
		PaymentMethod:   prepaidMethod,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		Items:           items,
	}
}

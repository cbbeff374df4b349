package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/product"
)

// numberAttempts bounds retries on an order number collision.
const numberAttempts = 3

// Pricing holds the flat charges applied on top of the item subtotal.
type Pricing struct {
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
}

// CheckoutInput is everything needed to turn a cart into an order.
type CheckoutInput struct {
	UserID          string
	CustomerEmail   string
	CouponCode      string
	ShippingAddress Address
	BillingAddress  Address
}

// Service owns order creation and status transitions.
type Service struct {
	orders   Repository
	carts    cart.Repository
	products product.Repository
	coupons  *coupon.Validator
	ledger   *inventory.Ledger
	pricing  Pricing
	lg       *zap.Logger
	now      func() time.Time
}

// NewService creates an order Service.
func NewService(
	orders Repository,
	carts cart.Repository,
	products product.Repository,
	coupons *coupon.Validator,
	ledger *inventory.Ledger,
	pricing Pricing,
	lg *zap.Logger,
) *Service {
	return &Service{
		orders:   orders,
		carts:    carts,
		products: products,
		coupons:  coupons,
		ledger:   ledger,
		pricing:  pricing,
		lg:       lg,
		now:      time.Now,
	}
}

// Checkout snapshots the user's cart into a new pending order: items at their
// captured price, full product snapshots, coupon discount on the subtotal.
// The order, its items and the cart clearing are committed in one
// transaction. Coupon redemption is NOT recorded here; that happens once
// payment is confirmed.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*Order, error) {
	c, err := s.carts.FindByOwner(ctx, in.UserID, "")
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return nil, ErrEmptyCart
		}
		return nil, errors.Wrap(err, "load cart")
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]*product.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}

	subtotal := decimal.Zero
	items := make([]Item, 0, len(c.Items))
	for _, ci := range c.Items {
		p, ok := byID[ci.ProductID]
		if !ok || !p.Active {
			return nil, errors.Wrapf(product.ErrNotFound, "product %s", ci.ProductID)
		}

		snapshot, err := json.Marshal(p)
		if err != nil {
			return nil, errors.Wrap(err, "marshal product snapshot")
		}

		lineTotal := ci.PriceAtTime.Mul(decimal.NewFromInt(int64(ci.Quantity)))
		items = append(items, Item{
			ID:              uuid.New().String(),
			ProductID:       p.ID,
			ProductName:     p.Name,
			ProductSKU:      p.SKU,
			UnitPrice:       ci.PriceAtTime,
			Quantity:        ci.Quantity,
			TotalPrice:      lineTotal,
			ProductSnapshot: snapshot,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	o := &Order{
		ID:              uuid.New().String(),
		UserID:          in.UserID,
		CustomerEmail:   in.CustomerEmail,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		ShippingStatus:  ShippingNotShipped,
		ReturnStatus:    ReturnNone,
		Subtotal:        subtotal,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Items:           items,
	}

	if in.CouponCode != "" {
		quote, err := s.coupons.Validate(ctx, in.CouponCode, in.UserID, subtotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		o.CouponID = quote.Coupon.ID
		o.CouponCode = quote.Coupon.Code
		o.DiscountAmount = quote.Discount
	}

	o.TaxAmount = subtotal.Mul(s.pricing.TaxRate).Round(2)
	o.ShippingAmount = s.pricing.ShippingFee

	total := subtotal.Add(o.TaxAmount).Add(o.ShippingAmount).Sub(o.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.TotalAmount = total.Round(2)

	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}

	// The generator is probabilistic; the unique constraint is authoritative.
	for attempt := range numberAttempts {
		o.Number = GenerateNumber(s.now())
		err = s.orders.CreateFromCart(ctx, o, c.ID)
		if err == nil {
			s.commitStock(ctx, o)
			return o, nil
		}
		if !errors.Is(err, ErrDuplicateNumber) {
			return nil, errors.Wrap(err, "create order")
		}
		s.lg.Warn("order number collision, regenerating",
			zap.String("number", o.Number),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, errors.Wrap(err, "create order")
}

// commitStock records one 'sale' ledger entry per item of a freshly created
// order. The order is already committed; a failed decrement is logged for
// operator reconciliation, not rolled back.
func (s *Service) commitStock(ctx context.Context, o *Order) {
	for _, item := range o.Items {
		_, err := s.ledger.Adjust(ctx, item.ProductID, -item.Quantity, inventory.ChangeSale, inventory.AdjustOpts{
			OrderID: o.ID,
			UserID:  o.UserID,
			Notes:   "order placed",
		})
		if err != nil {
			s.lg.Error("stock decrement failed after order creation",
				zap.String("order_id", o.ID),
				zap.String("product_id", item.ProductID),
				zap.Error(err),
			)
		}
	}
}

// Get returns an order with its items.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// UpdateStatus moves an order along the status graph. Illegal edges fail with
// InvalidTransitionError. Cancellation goes through Cancel.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status) error {
	if !ValidStatus(next) {
		return errors.Errorf("unknown order status %q", next)
	}
	if next == StatusCancelled {
		return s.Cancel(ctx, id, "")
	}

	if _, err := s.orders.TransitionStatus(ctx, id, next); err != nil {
		return err
	}
	return nil
}

// Cancel transitions an order to cancelled and restores its items to stock
// when the previous status still held inventory. Restoration runs after the
// status transition commits; each item is its own ledger adjustment.
func (s *Service) Cancel(ctx context.Context, id, reason string) error {
	prev, err := s.orders.Cancel(ctx, id, reason)
	if err != nil {
		return err
	}

	if RestoresInventory(prev) {
		if err := s.ledger.RestoreForOrder(ctx, id, "order cancellation"); err != nil {
			return errors.Wrapf(err, "restore inventory for order %s", id)
		}
	}
	return nil
}

// RequestReturn opens the post-delivery return sub-flow. Only delivered
// orders can be returned; requesting twice fails on the return machine.
func (s *Service) RequestReturn(ctx context.Context, id string) error {
	return s.orders.RequestReturn(ctx, id)
}

// AdvanceReturn moves an open return along its machine, storing the pickup
// AWB and courier when the carrier supplies them. Completing the return puts
// the returned items back in stock, one ledger adjustment per line.
func (s *Service) AdvanceReturn(ctx context.Context, id string, next ReturnStatus, awb, courier string) error {
	if !ValidReturnStatus(next) || next == ReturnNone {
		return errors.Errorf("unknown return status %q", next)
	}

	if err := s.orders.AdvanceReturn(ctx, id, next, awb, courier); err != nil {
		return err
	}

	if next == ReturnCompleted {
		if err := s.ledger.RestoreForOrder(ctx, id, "return received"); err != nil {
			return errors.Wrapf(err, "restock returned items for order %s", id)
		}
	}
	return nil
}

package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/product"
)

type mockOrderRepo struct {
	created       []*Order
	clearedCartID string
	createErrs    []error // consumed per CreateFromCart call

	statuses map[string]Status
	paid     map[string]bool

	returns map[string]ReturnStatus
	awb     string
	courier string
}

func (m *mockOrderRepo) CreateFromCart(_ context.Context, o *Order, cartID string) error {
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	clone := *o
	m.created = append(m.created, &clone)
	m.clearedCartID = cartID
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	for _, o := range m.created {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockOrderRepo) GetByGatewayOrderID(_ context.Context, _ string) (*Order, error) {
	return nil, ErrNotFound
}

func (m *mockOrderRepo) TransitionStatus(_ context.Context, id string, next Status) (Status, error) {
	prev, ok := m.statuses[id]
	if !ok {
		return "", ErrNotFound
	}
	if !CanTransition(prev, next) {
		return prev, &InvalidTransitionError{From: prev, To: next}
	}
	m.statuses[id] = next
	return prev, nil
}

func (m *mockOrderRepo) Cancel(_ context.Context, id, _ string) (Status, error) {
	return m.TransitionStatus(nil, id, StatusCancelled)
}

func (m *mockOrderRepo) MarkPaid(_ context.Context, id, _ string) (bool, error) {
	if m.paid[id] {
		return true, nil
	}
	m.paid[id] = true
	return false, nil
}

func (m *mockOrderRepo) MarkPaymentFailed(_ context.Context, _ string) error { return nil }

func (m *mockOrderRepo) SetGatewayOrder(_ context.Context, _, _ string) error { return nil }

func (m *mockOrderRepo) SetShipment(_ context.Context, _ string, _ Shipment) error { return nil }

func (m *mockOrderRepo) returnStatus(id string) ReturnStatus {
	if s, ok := m.returns[id]; ok {
		return s
	}
	return ReturnNone
}

func (m *mockOrderRepo) RequestReturn(_ context.Context, id string) error {
	if m.statuses[id] != StatusDelivered {
		return ErrNotDelivered
	}
	from := m.returnStatus(id)
	if !CanTransitionReturn(from, ReturnRequested) {
		return &InvalidReturnTransitionError{From: from, To: ReturnRequested}
	}
	m.returns[id] = ReturnRequested
	return nil
}

func (m *mockOrderRepo) AdvanceReturn(_ context.Context, id string, next ReturnStatus, awb, courier string) error {
	from := m.returnStatus(id)
	if !CanTransitionReturn(from, next) {
		return &InvalidReturnTransitionError{From: from, To: next}
	}
	m.returns[id] = next
	if awb != "" {
		m.awb = awb
	}
	if courier != "" {
		m.courier = courier
	}
	return nil
}

func (m *mockOrderRepo) ReturnableItems(_ context.Context, orderID string) ([]inventory.ReturnItem, error) {
	for _, o := range m.created {
		if o.ID != orderID {
			continue
		}
		items := make([]inventory.ReturnItem, len(o.Items))
		for i, it := range o.Items {
			items[i] = inventory.ReturnItem{ProductID: it.ProductID, Quantity: it.Quantity, UserID: o.UserID}
		}
		return items, nil
	}
	return nil, nil
}

type mockCartRepo struct {
	cart *cart.Cart
	err  error
}

func (m *mockCartRepo) FindByOwner(_ context.Context, _, _ string) (*cart.Cart, error) {
	return m.cart, m.err
}

func (m *mockCartRepo) Create(_ context.Context, _ *cart.Cart) error    { return nil }
func (m *mockCartRepo) UpsertItem(_ context.Context, _ cart.Item) error { return nil }
func (m *mockCartRepo) UpdateItemQuantity(_ context.Context, _, _ string, _ int) error {
	return nil
}
func (m *mockCartRepo) RemoveItem(_ context.Context, _, _ string) error { return nil }
func (m *mockCartRepo) Clear(_ context.Context, _ string) error         { return nil }
func (m *mockCartRepo) ListAbandoned(_ context.Context, _ time.Time) ([]cart.Cart, error) {
	return nil, nil
}
func (m *mockCartRepo) PurgeGuestCarts(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type mockProductRepo struct {
	products map[string]product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCouponRepo struct {
	coupon *coupon.Coupon
}

func (m *mockCouponRepo) FindActiveByCode(_ context.Context, _ string) (*coupon.Coupon, error) {
	if m.coupon == nil {
		return nil, coupon.ErrInvalidCoupon
	}
	return m.coupon, nil
}

func (m *mockCouponRepo) ListActive(_ context.Context) ([]coupon.Coupon, error) { return nil, nil }
func (m *mockCouponRepo) CountUsage(_ context.Context, _, _ string) (int, error) {
	return 0, nil
}
func (m *mockCouponRepo) Redeem(_ context.Context, _ coupon.Usage) error { return nil }

type mockInventoryRepo struct {
	stock     map[string]int
	movements []inventory.Movement
}

func (m *mockInventoryRepo) AvailableStock(_ context.Context, productID string) (int, error) {
	return m.stock[productID], nil
}

func (m *mockInventoryRepo) ApplyDelta(_ context.Context, productID string, delta int, change inventory.ChangeType, opts inventory.AdjustOpts) (inventory.Movement, error) {
	prev := m.stock[productID]
	next := prev + delta
	if next < 0 {
		next = 0
	}
	m.stock[productID] = next
	mv := inventory.Movement{
		ProductID:        productID,
		Change:           change,
		QuantityChange:   delta,
		PreviousQuantity: prev,
		NewQuantity:      next,
		OrderID:          opts.OrderID,
		Notes:            opts.Notes,
	}
	m.movements = append(m.movements, mv)
	return mv, nil
}

func (m *mockInventoryRepo) History(_ context.Context, _ string, _ int) ([]inventory.Movement, error) {
	return nil, nil
}

type serviceFixture struct {
	svc       *Service
	orders    *mockOrderRepo
	inventory *mockInventoryRepo
}

func newServiceFixture(t *testing.T, c *cart.Cart, products map[string]product.Product, cpn *coupon.Coupon, stock map[string]int) *serviceFixture {
	t.Helper()

	orders := &mockOrderRepo{statuses: map[string]Status{}, paid: map[string]bool{}, returns: map[string]ReturnStatus{}}
	invRepo := &mockInventoryRepo{stock: stock}
	ledger := inventory.NewLedger(invRepo, orders, nil, zap.NewNop())
	validator := coupon.NewValidator(&mockCouponRepo{coupon: cpn})

	svc := NewService(
		orders,
		&mockCartRepo{cart: c},
		&mockProductRepo{products: products},
		validator,
		ledger,
		Pricing{TaxRate: decimal.RequireFromString("0.10"), ShippingFee: decimal.NewFromInt(50)},
		zap.NewNop(),
	)
	return &serviceFixture{svc: svc, orders: orders, inventory: invRepo}
}

func testCart() *cart.Cart {
	return &cart.Cart{
		ID:     "cart-1",
		UserID: "u1",
		Items: []cart.Item{
			{ID: "ci1", CartID: "cart-1", ProductID: "p1", Quantity: 2, PriceAtTime: decimal.NewFromInt(500)},
			{ID: "ci2", CartID: "cart-1", ProductID: "p2", Quantity: 1, PriceAtTime: decimal.NewFromInt(250)},
		},
	}
}

func testProducts() map[string]product.Product {
	return map[string]product.Product{
		"p1": {ID: "p1", Name: "Widget", SKU: "WID-1", Price: decimal.NewFromInt(500), Active: true},
		"p2": {ID: "p2", Name: "Gadget", SKU: "GAD-1", Price: decimal.NewFromInt(300), Active: true},
	}
}

func TestService_Checkout(t *testing.T) {
	f := newServiceFixture(t, testCart(), testProducts(), nil, map[string]int{"p1": 10, "p2": 5})

	o, err := f.svc.Checkout(context.Background(), CheckoutInput{
		UserID:        "u1",
		CustomerEmail: "u1@example.com",
	})
	require.NoError(t, err)

	// Subtotal uses the captured cart prices, not the current catalog ones.
	assert.True(t, decimal.NewFromInt(1250).Equal(o.Subtotal), "subtotal %s", o.Subtotal)
	assert.True(t, decimal.NewFromInt(125).Equal(o.TaxAmount), "tax %s", o.TaxAmount)
	assert.True(t, decimal.NewFromInt(50).Equal(o.ShippingAmount))
	assert.True(t, o.DiscountAmount.IsZero())
	assert.True(t, decimal.NewFromInt(1425).Equal(o.TotalAmount), "total %s", o.TotalAmount)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.NotEmpty(t, o.Number)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Widget", o.Items[0].ProductName)
	assert.NotEmpty(t, o.Items[0].ProductSnapshot)

	// The source cart's items are cleared in the same transaction.
	assert.Equal(t, "cart-1", f.orders.clearedCartID)

	// Stock is decremented with one 'sale' movement per line.
	assert.Equal(t, 8, f.inventory.stock["p1"])
	assert.Equal(t, 4, f.inventory.stock["p2"])
	require.Len(t, f.inventory.movements, 2)
	assert.Equal(t, inventory.ChangeSale, f.inventory.movements[0].Change)
	assert.Equal(t, o.ID, f.inventory.movements[0].OrderID)
}

func TestService_CheckoutWithCoupon(t *testing.T) {
	cpn := &coupon.Coupon{
		ID:                    "c1",
		Code:                  "SAVE20",
		Type:                  coupon.TypePercentage,
		Value:                 decimal.NewFromInt(20),
		MinimumOrderAmount:    decimal.NewFromInt(1000),
		MaximumDiscountAmount: decimal.NewFromInt(200),
		UsageLimit:            1,
	}
	f := newServiceFixture(t, testCart(), testProducts(), cpn, map[string]int{"p1": 10, "p2": 5})

	o, err := f.svc.Checkout(context.Background(), CheckoutInput{
		UserID:        "u1",
		CustomerEmail: "u1@example.com",
		CouponCode:    "SAVE20",
	})
	require.NoError(t, err)

	// 20% of 1250 is 250, capped at 200.
	assert.True(t, decimal.NewFromInt(200).Equal(o.DiscountAmount), "discount %s", o.DiscountAmount)
	assert.Equal(t, "c1", o.CouponID)
	assert.Equal(t, "SAVE20", o.CouponCode)
	// 1250 + 125 tax + 50 shipping - 200 discount.
	assert.True(t, decimal.NewFromInt(1225).Equal(o.TotalAmount), "total %s", o.TotalAmount)
}

func TestService_CheckoutEmptyCart(t *testing.T) {
	t.Run("no cart", func(t *testing.T) {
		f := newServiceFixture(t, nil, testProducts(), nil, map[string]int{})
		f.svc.carts = &mockCartRepo{err: cart.ErrNotFound}

		_, err := f.svc.Checkout(context.Background(), CheckoutInput{UserID: "u1"})
		require.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("cart without items", func(t *testing.T) {
		f := newServiceFixture(t, &cart.Cart{ID: "cart-1", UserID: "u1"}, testProducts(), nil, map[string]int{})

		_, err := f.svc.Checkout(context.Background(), CheckoutInput{UserID: "u1"})
		require.ErrorIs(t, err, ErrEmptyCart)
	})
}

func TestService_CheckoutInactiveProduct(t *testing.T) {
	products := testProducts()
	p := products["p2"]
	p.Active = false
	products["p2"] = p

	f := newServiceFixture(t, testCart(), products, nil, map[string]int{"p1": 10, "p2": 5})

	_, err := f.svc.Checkout(context.Background(), CheckoutInput{UserID: "u1"})
	require.ErrorIs(t, err, product.ErrNotFound)
	assert.Empty(t, f.orders.created)
}

func TestService_CheckoutInvalidCoupon(t *testing.T) {
	f := newServiceFixture(t, testCart(), testProducts(), nil, map[string]int{"p1": 10, "p2": 5})

	_, err := f.svc.Checkout(context.Background(), CheckoutInput{
		UserID:     "u1",
		CouponCode: "BOGUS",
	})
	require.ErrorIs(t, err, coupon.ErrInvalidCoupon)
	assert.Empty(t, f.orders.created)
}

func TestService_CheckoutRetriesDuplicateNumber(t *testing.T) {
	f := newServiceFixture(t, testCart(), testProducts(), nil, map[string]int{"p1": 10, "p2": 5})
	f.orders.createErrs = []error{ErrDuplicateNumber, ErrDuplicateNumber}

	o, err := f.svc.Checkout(context.Background(), CheckoutInput{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, f.orders.created, 1)
	assert.NotEmpty(t, o.Number)
}

func TestService_CheckoutGivesUpAfterRetries(t *testing.T) {
	f := newServiceFixture(t, testCart(), testProducts(), nil, map[string]int{"p1": 10, "p2": 5})
	f.orders.createErrs = []error{ErrDuplicateNumber, ErrDuplicateNumber, ErrDuplicateNumber}

	_, err := f.svc.Checkout(context.Background(), CheckoutInput{UserID: "u1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateNumber))
	assert.Empty(t, f.orders.created)
}

func TestService_Cancel(t *testing.T) {
	t.Run("pending order restores inventory", func(t *testing.T) {
		f := newServiceFixture(t, testCart(), testProducts(), nil, map[string]int{"p1": 10, "p2": 5})

		o, err := f.svc.Checkout(context.Background(), CheckoutInput{UserID: "u1"})
		require.NoError(t, err)
		f.orders.statuses[o.ID] = StatusPending

		require.NoError(t, f.svc.Cancel(context.Background(), o.ID, "changed my mind"))
		assert.Equal(t, StatusCancelled, f.orders.statuses[o.ID])

		// Sale decrements are undone by 'return' movements.
		assert.Equal(t, 10, f.inventory.stock["p1"])
		assert.Equal(t, 5, f.inventory.stock["p2"])
		require.Len(t, f.inventory.movements, 4)
		assert.Equal(t, inventory.ChangeReturn, f.inventory.movements[2].Change)
		assert.Equal(t, inventory.ChangeReturn, f.inventory.movements[3].Change)
	})

	t.Run("shipped order cannot be cancelled", func(t *testing.T) {
		f := newServiceFixture(t, testCart(), testProducts(), nil, map[string]int{"p1": 10, "p2": 5})

		o, err := f.svc.Checkout(context.Background(), CheckoutInput{UserID: "u1"})
		require.NoError(t, err)
		f.orders.statuses[o.ID] = StatusShipped

		err = f.svc.Cancel(context.Background(), o.ID, "")
		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, StatusShipped, invalid.From)

		// No inventory restoration happened.
		assert.Equal(t, 8, f.inventory.stock["p1"])
	})

	t.Run("double cancel fails", func(t *testing.T) {
		f := newServiceFixture(t, testCart(), testProducts(), nil, map[string]int{"p1": 10, "p2": 5})

		o, err := f.svc.Checkout(context.Background(), CheckoutInput{UserID: "u1"})
		require.NoError(t, err)
		f.orders.statuses[o.ID] = StatusPending

		require.NoError(t, f.svc.Cancel(context.Background(), o.ID, ""))

		err = f.svc.Cancel(context.Background(), o.ID, "")
		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid)

		// Inventory restored exactly once.
		assert.Equal(t, 10, f.inventory.stock["p1"])
	})
}

func TestService_Returns(t *testing.T) {
	checkout := func(t *testing.T, f *serviceFixture) *Order {
		t.Helper()
		o, err := f.svc.Checkout(context.Background(), CheckoutInput{UserID: "u1"})
		require.NoError(t, err)
		return o
	}

	t.Run("delivered order opens a return", func(t *testing.T) {
		f := newServiceFixture(t, testCart(), testProducts(), nil, map[string]int{"p1": 10, "p2": 5})
		o := checkout(t, f)
		f.orders.statuses[o.ID] = StatusDelivered

		require.NoError(t, f.svc.RequestReturn(context.Background(), o.ID))
		assert.Equal(t, ReturnRequested, f.orders.returns[o.ID])

		// A second request has no edge to take.
		err := f.svc.RequestReturn(context.Background(), o.ID)
		var invalid *InvalidReturnTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, ReturnRequested, invalid.From)
	})

	t.Run("undelivered order cannot be returned", func(t *testing.T) {
		f := newServiceFixture(t, testCart(), testProducts(), nil, map[string]int{"p1": 10, "p2": 5})
		o := checkout(t, f)
		f.orders.statuses[o.ID] = StatusShipped

		err := f.svc.RequestReturn(context.Background(), o.ID)
		require.ErrorIs(t, err, ErrNotDelivered)
	})

	t.Run("pickup scheduling records the carrier details", func(t *testing.T) {
		f := newServiceFixture(t, testCart(), testProducts(), nil, map[string]int{"p1": 10, "p2": 5})
		o := checkout(t, f)
		f.orders.statuses[o.ID] = StatusDelivered
		require.NoError(t, f.svc.RequestReturn(context.Background(), o.ID))

		require.NoError(t, f.svc.AdvanceReturn(context.Background(), o.ID, ReturnPickupScheduled, "RAWB9", "FastShip"))
		assert.Equal(t, "RAWB9", f.orders.awb)
		assert.Equal(t, "FastShip", f.orders.courier)
	})

	t.Run("completion restocks the returned items", func(t *testing.T) {
		f := newServiceFixture(t, testCart(), testProducts(), nil, map[string]int{"p1": 10, "p2": 5})
		o := checkout(t, f)
		f.orders.statuses[o.ID] = StatusDelivered
		require.NoError(t, f.svc.RequestReturn(context.Background(), o.ID))
		require.NoError(t, f.svc.AdvanceReturn(context.Background(), o.ID, ReturnPickupScheduled, "RAWB9", "FastShip"))
		require.NoError(t, f.svc.AdvanceReturn(context.Background(), o.ID, ReturnInTransit, "", ""))

		require.NoError(t, f.svc.AdvanceReturn(context.Background(), o.ID, ReturnCompleted, "", ""))

		// Sale decrements at checkout are undone by 'return' movements.
		assert.Equal(t, 10, f.inventory.stock["p1"])
		assert.Equal(t, 5, f.inventory.stock["p2"])
		last := f.inventory.movements[len(f.inventory.movements)-1]
		assert.Equal(t, inventory.ChangeReturn, last.Change)
		assert.Equal(t, "return received", last.Notes)
	})

	t.Run("skipping machine steps fails", func(t *testing.T) {
		f := newServiceFixture(t, testCart(), testProducts(), nil, map[string]int{"p1": 10, "p2": 5})
		o := checkout(t, f)
		f.orders.statuses[o.ID] = StatusDelivered
		require.NoError(t, f.svc.RequestReturn(context.Background(), o.ID))

		err := f.svc.AdvanceReturn(context.Background(), o.ID, ReturnCompleted, "", "")
		var invalid *InvalidReturnTransitionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, ReturnRequested, invalid.From)
		// No restock happened for the rejected advance.
		assert.Equal(t, 8, f.inventory.stock["p1"])
	})

	t.Run("unknown return status", func(t *testing.T) {
		f := newServiceFixture(t, testCart(), testProducts(), nil, map[string]int{"p1": 10, "p2": 5})
		o := checkout(t, f)

		err := f.svc.AdvanceReturn(context.Background(), o.ID, ReturnStatus("lost"), "", "")
		require.Error(t, err)
		err = f.svc.AdvanceReturn(context.Background(), o.ID, ReturnNone, "", "")
		require.Error(t, err)
	})
}

func TestService_UpdateStatus(t *testing.T) {
	f := newServiceFixture(t, testCart(), testProducts(), nil, map[string]int{"p1": 10, "p2": 5})

	o, err := f.svc.Checkout(context.Background(), CheckoutInput{UserID: "u1"})
	require.NoError(t, err)
	f.orders.statuses[o.ID] = StatusConfirmed

	require.NoError(t, f.svc.UpdateStatus(context.Background(), o.ID, StatusProcessing))
	assert.Equal(t, StatusProcessing, f.orders.statuses[o.ID])

	err = f.svc.UpdateStatus(context.Background(), o.ID, Status("archived"))
	require.Error(t, err)

	// Cancellation through UpdateStatus routes through Cancel and restores.
	require.NoError(t, f.svc.UpdateStatus(context.Background(), o.ID, StatusCancelled))
	assert.Equal(t, 10, f.inventory.stock["p1"])
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders
		(id, user_id, order_number, customer_email, status, payment_status, shipping_status, return_status,
		 subtotal, tax_amount, shipping_amount, discount_amount, total_amount,
		 coupon_id, coupon_code, shipping_address, billing_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, ''), $15, $16, $17)`

	insertOrderItemSQL = `INSERT INTO order_items
		(id, order_id, product_id, product_name, product_sku, unit_price, quantity, total_price, product_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	clearCartItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	orderColumns = `id, user_id, order_number, customer_email, status, payment_status, shipping_status,
		return_status, return_requested, return_awb, return_courier,
		subtotal, tax_amount, shipping_amount, discount_amount, total_amount,
		COALESCE(coupon_id, ''), coupon_code, shipping_address, billing_address,
		gateway_order_id, gateway_payment_id, carrier_order_id, shipment_id, tracking_number,
		courier_name, cancellation_reason, cancelled_at, paid_at, created_at, updated_at`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByGatewaySQL = `SELECT ` + orderColumns + ` FROM orders WHERE gateway_order_id = $1`

	getOrderItemsSQL = `SELECT id, order_id, COALESCE(product_id, ''), product_name, product_sku,
			unit_price, quantity, total_price, product_snapshot
		FROM order_items WHERE order_id = $1 ORDER BY created_at, id`

	lockOrderStatusSQL = `SELECT status FROM orders WHERE id = $1 FOR UPDATE`

	setOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

	setOrderStatusShippedSQL = `UPDATE orders SET status = $2, shipping_status = $3, updated_at = now()
		WHERE id = $1`

	cancelOrderSQL = `UPDATE orders SET status = $2, cancellation_reason = $3,
		cancelled_at = now(), updated_at = now() WHERE id = $1`

	lockPaymentSQL = `SELECT status, payment_status FROM orders WHERE id = $1 FOR UPDATE`

	markPaidSQL = `UPDATE orders SET payment_status = $2, status = $3, gateway_payment_id = $4,
		paid_at = now(), updated_at = now() WHERE id = $1`

	markPaymentFailedSQL = `UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1`

	setGatewayOrderSQL = `UPDATE orders SET gateway_order_id = $2, updated_at = now() WHERE id = $1`

	setShipmentSQL = `UPDATE orders SET carrier_order_id = $2, shipment_id = $3, tracking_number = $4,
		courier_name = $5, shipping_status = $6, updated_at = now() WHERE id = $1`

	lockReturnSQL = `SELECT status, return_status FROM orders WHERE id = $1 FOR UPDATE`

	requestReturnSQL = `UPDATE orders SET return_status = $2, return_requested = TRUE, updated_at = now()
		WHERE id = $1`

	advanceReturnSQL = `UPDATE orders SET return_status = $2,
		return_awb = COALESCE(NULLIF($3, ''), return_awb),
		return_courier = COALESCE(NULLIF($4, ''), return_courier),
		updated_at = now() WHERE id = $1`

	returnableItemsSQL = `SELECT oi.product_id, oi.quantity, o.user_id
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.order_id = $1 AND oi.product_id IS NOT NULL`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Every
// multi-field mutation runs in a single transaction under a row lock so
// concurrent readers never observe intermediate states.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateFromCart persists the order with its item snapshots and clears the
// source cart's items in one transaction. Returns order.ErrDuplicateNumber
// when the generated order number collides.
func (r *OrderRepository) CreateFromCart(ctx context.Context, o *order.Order, cartID string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		shipAddr, err := json.Marshal(o.ShippingAddress)
		if err != nil {
			return fmt.Errorf("marshaling shipping address: %w", err)
		}
		billAddr, err := json.Marshal(o.BillingAddress)
		if err != nil {
			return fmt.Errorf("marshaling billing address: %w", err)
		}

		_, err = tx.Exec(ctx, insertOrderSQL,
			o.ID, o.UserID, o.Number, o.CustomerEmail,
			string(o.Status), string(o.PaymentStatus), string(o.ShippingStatus), string(o.ReturnStatus),
			o.Subtotal, o.TaxAmount, o.ShippingAmount, o.DiscountAmount, o.TotalAmount,
			o.CouponID, o.CouponCode, shipAddr, billAddr,
		)
		if err != nil {
			if isUniqueViolation(err, "idx_orders_number") {
				return order.ErrDuplicateNumber
			}
			return fmt.Errorf("inserting order: %w", err)
		}

		for _, item := range o.Items {
			snapshot := item.ProductSnapshot
			if len(snapshot) == 0 {
				snapshot = json.RawMessage("{}")
			}
			_, err := tx.Exec(ctx, insertOrderItemSQL,
				item.ID, o.ID, item.ProductID, item.ProductName, item.ProductSKU,
				item.UnitPrice, item.Quantity, item.TotalPrice, []byte(snapshot),
			)
			if err != nil {
				return fmt.Errorf("inserting order item: %w", err)
			}
		}

		if cartID != "" {
			if _, err := tx.Exec(ctx, clearCartItemsSQL, cartID); err != nil {
				return fmt.Errorf("clearing cart: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, order.ErrDuplicateNumber) {
			return order.ErrDuplicateNumber
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderSQL, id)
}

// GetByGatewayOrderID resolves an order from the payment gateway's order
// identifier, used by the webhook path.
func (r *OrderRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*order.Order, error) {
	if gatewayOrderID == "" {
		return nil, order.ErrNotFound
	}
	return r.getOne(ctx, getOrderByGatewaySQL, gatewayOrderID)
}

func (r *OrderRepository) getOne(ctx context.Context, sql, arg string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}

	itemRows, err := r.pool.Query(ctx, getOrderItemsSQL, o.ID)
	if err != nil {
		return nil, fmt.Errorf("getting order items: %w", err)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("getting order items: %w", err)
	}
	return &o, nil
}

// TransitionStatus validates the edge against the current status under a row
// lock, then writes the new status. Returns the previous status.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id string, next order.Status) (order.Status, error) {
	return r.transition(ctx, id, next, "")
}

// Cancel is TransitionStatus to cancelled plus the cancellation fields.
func (r *OrderRepository) Cancel(ctx context.Context, id, reason string) (order.Status, error) {
	return r.transition(ctx, id, order.StatusCancelled, reason)
}

func (r *OrderRepository) transition(ctx context.Context, id string, next order.Status, reason string) (order.Status, error) {
	var prev order.Status
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var current string
		if err := tx.QueryRow(ctx, lockOrderStatusSQL, id).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("locking order %q: %w", id, err)
		}
		prev = order.Status(current)

		if !order.CanTransition(prev, next) {
			return &order.InvalidTransitionError{From: prev, To: next}
		}

		if next == order.StatusCancelled {
			_, err := tx.Exec(ctx, cancelOrderSQL, id, string(next), reason)
			if err != nil {
				return fmt.Errorf("cancelling order: %w", err)
			}
			return nil
		}
		// Shipped and delivered advance the carrier axis in the same write.
		if ss, ok := order.ShippingStatusFor(next); ok {
			if _, err := tx.Exec(ctx, setOrderStatusShippedSQL, id, string(next), string(ss)); err != nil {
				return fmt.Errorf("updating order status: %w", err)
			}
			return nil
		}
		if _, err := tx.Exec(ctx, setOrderStatusSQL, id, string(next)); err != nil {
			return fmt.Errorf("updating order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return prev, err
	}
	return prev, nil
}

// MarkPaid sets payment_status=paid, advances status to confirmed and stores
// the gateway payment reference — one transaction, so no paid-but-unconfirmed
// intermediate state is ever visible. An order already paid reports
// alreadyPaid=true without mutation; payment can only leave 'pending'.
func (r *OrderRepository) MarkPaid(ctx context.Context, id, gatewayPaymentID string) (bool, error) {
	var alreadyPaid bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var status, payment string
		if err := tx.QueryRow(ctx, lockPaymentSQL, id).Scan(&status, &payment); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("locking order %q: %w", id, err)
		}

		switch order.PaymentStatus(payment) {
		case order.PaymentPaid:
			alreadyPaid = true
			return nil
		case order.PaymentPending:
		default:
			return order.ErrPaymentNotPending
		}

		next := order.StatusConfirmed
		if !order.CanTransition(order.Status(status), next) {
			return &order.InvalidTransitionError{From: order.Status(status), To: next}
		}

		_, err := tx.Exec(ctx, markPaidSQL, id,
			string(order.PaymentPaid), string(next), gatewayPaymentID)
		if err != nil {
			return fmt.Errorf("marking order paid: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return alreadyPaid, nil
}

// MarkPaymentFailed moves payment to failed while it is still pending.
func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var status, payment string
		if err := tx.QueryRow(ctx, lockPaymentSQL, id).Scan(&status, &payment); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("locking order %q: %w", id, err)
		}
		if order.PaymentStatus(payment) != order.PaymentPending {
			return order.ErrPaymentNotPending
		}
		if _, err := tx.Exec(ctx, markPaymentFailedSQL, id, string(order.PaymentFailed)); err != nil {
			return fmt.Errorf("marking payment failed: %w", err)
		}
		return nil
	})
}

// SetGatewayOrder stores the payment gateway's order identifier.
func (r *OrderRepository) SetGatewayOrder(ctx context.Context, id, gatewayOrderID string) error {
	tag, err := r.pool.Exec(ctx, setGatewayOrderSQL, id, gatewayOrderID)
	if err != nil {
		return fmt.Errorf("storing gateway order id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// SetShipment persists carrier identifiers and moves shipping to processing.
func (r *OrderRepository) SetShipment(ctx context.Context, id string, s order.Shipment) error {
	tag, err := r.pool.Exec(ctx, setShipmentSQL, id,
		s.CarrierOrderID, s.ShipmentID, s.TrackingNumber, s.CourierName,
		string(order.ShippingProcessing))
	if err != nil {
		return fmt.Errorf("storing shipment identifiers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// RequestReturn opens the return sub-flow for a delivered order.
func (r *OrderRepository) RequestReturn(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var status, ret string
		if err := tx.QueryRow(ctx, lockReturnSQL, id).Scan(&status, &ret); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("locking order %q: %w", id, err)
		}

		if order.Status(status) != order.StatusDelivered {
			return order.ErrNotDelivered
		}
		if !order.CanTransitionReturn(order.ReturnStatus(ret), order.ReturnRequested) {
			return &order.InvalidReturnTransitionError{From: order.ReturnStatus(ret), To: order.ReturnRequested}
		}

		if _, err := tx.Exec(ctx, requestReturnSQL, id, string(order.ReturnRequested)); err != nil {
			return fmt.Errorf("requesting return: %w", err)
		}
		return nil
	})
}

// AdvanceReturn moves an open return to next after validating the edge under
// a row lock, keeping any previously stored AWB or courier when the new ones
// are empty.
func (r *OrderRepository) AdvanceReturn(ctx context.Context, id string, next order.ReturnStatus, awb, courier string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var status, ret string
		if err := tx.QueryRow(ctx, lockReturnSQL, id).Scan(&status, &ret); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("locking order %q: %w", id, err)
		}

		if !order.CanTransitionReturn(order.ReturnStatus(ret), next) {
			return &order.InvalidReturnTransitionError{From: order.ReturnStatus(ret), To: next}
		}

		if _, err := tx.Exec(ctx, advanceReturnSQL, id, string(next), awb, courier); err != nil {
			return fmt.Errorf("advancing return: %w", err)
		}
		return nil
	})
}

// ReturnableItems lists the lines of an order still pointing at an existing
// product, for inventory restoration.
func (r *OrderRepository) ReturnableItems(ctx context.Context, orderID string) ([]inventory.ReturnItem, error) {
	rows, err := r.pool.Query(ctx, returnableItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing returnable items for order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.ReturnItem, error) {
		var it inventory.ReturnItem
		err := row.Scan(&it.ProductID, &it.Quantity, &it.UserID)
		return it, err
	})
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                                       order.Order
		status, payment, shipping, returnStatus string
		shipAddr, billAddr                      []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Number, &o.CustomerEmail,
		&status, &payment, &shipping, &returnStatus,
		&o.ReturnRequested, &o.ReturnAWB, &o.ReturnCourier,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.DiscountAmount, &o.TotalAmount,
		&o.CouponID, &o.CouponCode, &shipAddr, &billAddr,
		&o.GatewayOrderID, &o.GatewayPaymentID, &o.CarrierOrderID, &o.ShipmentID,
		&o.TrackingNumber, &o.CourierName, &o.CancellationReason,
		&o.CancelledAt, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(payment)
	o.ShippingStatus = order.ShippingStatus(shipping)
	o.ReturnStatus = order.ReturnStatus(returnStatus)
	if err := json.Unmarshal(shipAddr, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if err := json.Unmarshal(billAddr, &o.BillingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling billing address: %w", err)
	}
	return o, nil
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it       order.Item
		snapshot []byte
	)
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductSKU,
		&it.UnitPrice, &it.Quantity, &it.TotalPrice, &snapshot,
	)
	it.ProductSnapshot = json.RawMessage(snapshot)
	return it, err
}

package inventory

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Ledger owns the authoritative product stock quantity and its audit trail.
// All mutations go through Adjust, which clamps at zero rather than failing
// on oversized negative deltas.
type Ledger struct {
	repo   Repository
	orders OrderItemSource
	alerts Alerter
	lg     *zap.Logger

	alertTimeout time.Duration
}

// NewLedger creates a Ledger. The alerter may be nil, in which case low-stock
// notifications are skipped.
func NewLedger(repo Repository, orders OrderItemSource, alerts Alerter, lg *zap.Logger) *Ledger {
	return &Ledger{
		repo:         repo,
		orders:       orders,
		alerts:       alerts,
		lg:           lg,
		alertTimeout: 10 * time.Second,
	}
}

// Available returns the current stock quantity for an active product.
func (l *Ledger) Available(ctx context.Context, productID string) (int, error) {
	return l.repo.AvailableStock(ctx, productID)
}

// Adjust applies a signed quantity change to a product. The new stock is
// max(0, current+delta); the product row and the history entry are written in
// one transaction. When the committed quantity lands in (0, LowStockThreshold]
// a low-stock alert fires in the background; alert failures never affect the
// already-committed update.
func (l *Ledger) Adjust(ctx context.Context, productID string, delta int, change ChangeType, opts AdjustOpts) (Movement, error) {
	if !change.Valid() {
		return Movement{}, errors.Wrapf(ErrUnknownChangeType, "%q", change)
	}

	m, err := l.repo.ApplyDelta(ctx, productID, delta, change, opts)
	if err != nil {
		return Movement{}, errors.Wrapf(err, "apply stock delta for product %s", productID)
	}

	if m.NewQuantity > 0 && m.NewQuantity <= LowStockThreshold {
		l.notifyLowStock(ctx, m)
	}

	return m, nil
}

// History returns the most recent movements for a product, newest first.
func (l *Ledger) History(ctx context.Context, productID string, limit int) ([]Movement, error) {
	return l.repo.History(ctx, productID, limit)
}

// RestoreForOrder puts every item of an order back in stock, one positive
// 'return' adjustment per line. Notes label the movements with the reason
// (cancellation, completed return).
func (l *Ledger) RestoreForOrder(ctx context.Context, orderID, notes string) error {
	items, err := l.orders.ReturnableItems(ctx, orderID)
	if err != nil {
		return errors.Wrapf(err, "load items of order %s", orderID)
	}

	for _, item := range items {
		_, err := l.Adjust(ctx, item.ProductID, item.Quantity, ChangeReturn, AdjustOpts{
			OrderID: orderID,
			UserID:  item.UserID,
			Notes:   notes,
		})
		if err != nil {
			return errors.Wrapf(err, "restore stock for product %s", item.ProductID)
		}
	}

	return nil
}

// notifyLowStock fires the alert on a detached context so it survives the
// request that triggered it and cannot roll anything back.
func (l *Ledger) notifyLowStock(ctx context.Context, m Movement) {
	if l.alerts == nil {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.alertTimeout)
	go func() {
		defer cancel()
		if err := l.alerts.SendLowStockAlert(notifyCtx, m.ProductName, m.NewQuantity); err != nil {
			l.lg.Warn("low-stock alert failed",
				zap.String("product_id", m.ProductID),
				zap.Int("stock", m.NewQuantity),
				zap.Error(err),
			)
		}
	}()
}

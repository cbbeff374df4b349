package inventory

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ChangeType classifies the provenance of a stock quantity change.
type ChangeType string

const (
	// ChangeAdjustment is a manual correction by an operator.
	ChangeAdjustment ChangeType = "adjustment"
	// ChangeSale is a decrement committed when an order is fulfilled.
	ChangeSale ChangeType = "sale"
	// ChangeReturn is an increment from a cancelled or returned order.
	ChangeReturn ChangeType = "return"
	// ChangeRestock is an increment from new supply.
	ChangeRestock ChangeType = "restock"
)

// LowStockThreshold is the quantity at or below which (but above zero) a
// restock alert is triggered.
const LowStockThreshold = 5

// ErrUnknownChangeType is returned for a change type outside the enum.
var ErrUnknownChangeType = errors.New("unknown inventory change type")

// Valid reports whether the change type is one of the known values.
func (c ChangeType) Valid() bool {
	switch c {
	case ChangeAdjustment, ChangeSale, ChangeReturn, ChangeRestock:
		return true
	}
	return false
}

// Movement is one append-only entry in the inventory history. Once written it
// is never mutated. NewQuantity = max(0, PreviousQuantity + QuantityChange):
// the floor is enforced, so the ledger's signed sum may not reconcile when a
// delta was clamped.
type Movement struct {
	ID               string
	ProductID        string
	ProductName      string
	Change           ChangeType
	QuantityChange   int
	PreviousQuantity int
	NewQuantity      int
	OrderID          string
	UserID           string
	Notes            string
	CreatedAt        time.Time
}

// AdjustOpts carries optional provenance for a stock adjustment.
type AdjustOpts struct {
	Notes   string
	UserID  string
	OrderID string
}

// Repository persists stock levels and their history. ApplyDelta must update
// the product row and append the history entry in a single transaction, both
// or neither.
type Repository interface {
	AvailableStock(ctx context.Context, productID string) (int, error)
	ApplyDelta(ctx context.Context, productID string, delta int, change ChangeType, opts AdjustOpts) (Movement, error)
	History(ctx context.Context, productID string, limit int) ([]Movement, error)
}

// ReturnItem is a line of a cancelled order whose quantity goes back on the
// shelf.
type ReturnItem struct {
	ProductID string
	Quantity  int
	UserID    string
}

// OrderItemSource yields the returnable lines of an order. Items whose
// product has since been deleted are excluded.
type OrderItemSource interface {
	ReturnableItems(ctx context.Context, orderID string) ([]ReturnItem, error)
}

// Alerter delivers low-stock notifications. Failures are logged by the
// ledger, never propagated.
type Alerter interface {
	SendLowStockAlert(ctx context.Context, productName string, stock int) error
}

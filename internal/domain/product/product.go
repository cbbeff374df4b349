package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist or is
// no longer active.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. The core reads
// price, discount price, stock and activity; stock_quantity is mutated only
// through the inventory ledger.
type Product struct {
	ID            string
	Name          string
	SKU           string
	Price         decimal.Decimal
	DiscountPrice decimal.Decimal
	StockQuantity int
	Active        bool
}

// EffectivePrice returns the price a buyer pays right now: the discount price
// when one is set and lower, the regular price otherwise.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice.IsPositive() && p.DiscountPrice.LessThan(p.Price) {
		return p.DiscountPrice
	}
	return p.Price
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

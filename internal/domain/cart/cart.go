package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no cart exists for the given owner.
	ErrNotFound = errors.New("cart not found")
	// ErrOwnerRequired is returned when neither a user nor a session owns
	// the cart. Exactly one owner is allowed.
	ErrOwnerRequired = errors.New("cart requires exactly one of user or session owner")
	// ErrItemNotFound is returned when a line item is absent from the cart.
	ErrItemNotFound = errors.New("cart item not found")
)

// InsufficientStockError reports an add or update beyond available stock.
type InsufficientStockError struct {
	ProductID string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: %d available", e.ProductID, e.Available)
}

// Cart accumulates line items for a user or a guest session prior to
// checkout. Keyed by user_id XOR session_id.
type Cart struct {
	ID        string
	UserID    string
	SessionID string
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is one product line in a cart. PriceAtTime is captured when the item
// is added and does not follow later catalog price changes.
type Item struct {
	ID          string
	CartID      string
	ProductID   string
	Quantity    int
	PriceAtTime decimal.Decimal
}

// Subtotal is the sum of captured price times quantity across all items.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.PriceAtTime.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

// Repository persists carts and their items. UpsertItem keeps the originally
// captured price when the (cart, product) pair already exists.
type Repository interface {
	FindByOwner(ctx context.Context, userID, sessionID string) (*Cart, error)
	Create(ctx context.Context, c *Cart) error
	UpsertItem(ctx context.Context, item Item) error
	UpdateItemQuantity(ctx context.Context, cartID, productID string, quantity int) error
	RemoveItem(ctx context.Context, cartID, productID string) error
	Clear(ctx context.Context, cartID string) error
	// ListAbandoned returns non-empty carts untouched since the cutoff.
	ListAbandoned(ctx context.Context, cutoff time.Time) ([]Cart, error)
	// PurgeGuestCarts deletes session-owned carts untouched since the cutoff
	// and returns how many were removed.
	PurgeGuestCarts(ctx context.Context, cutoff time.Time) (int64, error)
}

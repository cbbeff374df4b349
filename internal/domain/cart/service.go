package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/product"
)

// Service implements cart operations: item accumulation at captured price
// with an availability check against live stock.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products}
}

// GetOrCreate returns the owner's cart, creating an empty one on first use.
// Exactly one of userID, sessionID must be set.
func (s *Service) GetOrCreate(ctx context.Context, userID, sessionID string) (*Cart, error) {
	if (userID == "") == (sessionID == "") {
		return nil, ErrOwnerRequired
	}

	c, err := s.carts.FindByOwner(ctx, userID, sessionID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "find cart")
	}

	c = &Cart{
		ID:        uuid.New().String(),
		UserID:    userID,
		SessionID: sessionID,
	}
	if err := s.carts.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return c, nil
}

// AddItem puts quantity units of a product into the owner's cart, capturing
// the current effective price. Adding an existing product increases its
// quantity but keeps the originally captured price.
func (s *Service) AddItem(ctx context.Context, userID, sessionID, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, errors.New("quantity must be greater than 0")
	}

	c, err := s.GetOrCreate(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, product.ErrNotFound
	}

	requested := quantity
	for _, item := range c.Items {
		if item.ProductID == productID {
			requested += item.Quantity
		}
	}
	if requested > p.StockQuantity {
		return nil, &InsufficientStockError{ProductID: productID, Available: p.StockQuantity}
	}

	err = s.carts.UpsertItem(ctx, Item{
		ID:          uuid.New().String(),
		CartID:      c.ID,
		ProductID:   productID,
		Quantity:    quantity,
		PriceAtTime: p.EffectivePrice(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "upsert cart item")
	}

	return s.carts.FindByOwner(ctx, userID, sessionID)
}

// UpdateQuantity sets the quantity of an existing line item. Zero removes it.
func (s *Service) UpdateQuantity(ctx context.Context, userID, sessionID, productID string, quantity int) (*Cart, error) {
	if quantity < 0 {
		return nil, errors.New("quantity must not be negative")
	}

	c, err := s.carts.FindByOwner(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if quantity == 0 {
		if err := s.carts.RemoveItem(ctx, c.ID, productID); err != nil {
			return nil, err
		}
		return s.carts.FindByOwner(ctx, userID, sessionID)
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > p.StockQuantity {
		return nil, &InsufficientStockError{ProductID: productID, Available: p.StockQuantity}
	}

	if err := s.carts.UpdateItemQuantity(ctx, c.ID, productID, quantity); err != nil {
		return nil, err
	}
	return s.carts.FindByOwner(ctx, userID, sessionID)
}

// RemoveItem deletes one product line from the owner's cart.
func (s *Service) RemoveItem(ctx context.Context, userID, sessionID, productID string) (*Cart, error) {
	c, err := s.carts.FindByOwner(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.carts.RemoveItem(ctx, c.ID, productID); err != nil {
		return nil, err
	}
	return s.carts.FindByOwner(ctx, userID, sessionID)
}

// Clear removes every item from the owner's cart.
func (s *Service) Clear(ctx context.Context, userID, sessionID string) error {
	c, err := s.carts.FindByOwner(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	return s.carts.Clear(ctx, c.ID)
}

// Get returns the owner's cart.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (*Cart, error) {
	if (userID == "") == (sessionID == "") {
		return nil, ErrOwnerRequired
	}
	return s.carts.FindByOwner(ctx, userID, sessionID)
}

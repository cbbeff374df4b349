package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
)

const (
	findCartByUserSQL = `SELECT id, COALESCE(user_id, ''), COALESCE(session_id, ''), created_at, updated_at
		FROM carts WHERE user_id = $1`

	findCartBySessionSQL = `SELECT id, COALESCE(user_id, ''), COALESCE(session_id, ''), created_at, updated_at
		FROM carts WHERE session_id = $1`

	getCartItemsSQL = `SELECT id, cart_id, product_id, quantity, price_at_time
		FROM cart_items WHERE cart_id = $1 ORDER BY created_at, id`

	insertCartSQL = `INSERT INTO carts (id, user_id, session_id)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))`

	upsertCartItemSQL = `INSERT INTO cart_items (id, cart_id, product_id, quantity, price_at_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	updateCartItemQuantitySQL = `UPDATE cart_items SET quantity = $3
		WHERE cart_id = $1 AND product_id = $2`

	removeCartItemSQL = `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	touchCartSQL = `UPDATE carts SET updated_at = now() WHERE id = $1`

	listAbandonedCartsSQL = `SELECT c.id, COALESCE(c.user_id, ''), COALESCE(c.session_id, ''), c.created_at, c.updated_at
		FROM carts c
		WHERE c.updated_at < $1
		  AND EXISTS (SELECT 1 FROM cart_items ci WHERE ci.cart_id = c.id)
		ORDER BY c.updated_at`

	purgeGuestCartsSQL = `DELETE FROM carts
		WHERE session_id IS NOT NULL AND updated_at < $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// FindByOwner resolves the cart for a user or a guest session, items included.
func (r *CartRepository) FindByOwner(ctx context.Context, userID, sessionID string) (*cart.Cart, error) {
	sql, arg := findCartByUserSQL, userID
	if userID == "" {
		sql, arg = findCartBySessionSQL, sessionID
	}
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("finding cart: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("finding cart: %w", err)
	}

	itemRows, err := r.pool.Query(ctx, getCartItemsSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("getting cart items: %w", err)
	}
	c.Items, err = pgx.CollectRows(itemRows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("getting cart items: %w", err)
	}
	return &c, nil
}

// Create inserts an empty cart for the given owner.
func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	if _, err := r.pool.Exec(ctx, insertCartSQL, c.ID, c.UserID, c.SessionID); err != nil {
		return fmt.Errorf("creating cart: %w", err)
	}
	return nil
}

// UpsertItem adds the line or accumulates quantity onto an existing one. The
// originally captured price_at_time wins on conflict.
func (r *CartRepository) UpsertItem(ctx context.Context, item cart.Item) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, upsertCartItemSQL,
			item.ID, item.CartID, item.ProductID, item.Quantity, item.PriceAtTime)
		if err != nil {
			return fmt.Errorf("upserting cart item: %w", err)
		}
		if _, err := tx.Exec(ctx, touchCartSQL, item.CartID); err != nil {
			return fmt.Errorf("touching cart: %w", err)
		}
		return nil
	})
}

// UpdateItemQuantity sets the absolute quantity of an existing line.
func (r *CartRepository) UpdateItemQuantity(ctx context.Context, cartID, productID string, quantity int) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateCartItemQuantitySQL, cartID, productID, quantity)
		if err != nil {
			return fmt.Errorf("updating cart item quantity: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return cart.ErrItemNotFound
		}
		if _, err := tx.Exec(ctx, touchCartSQL, cartID); err != nil {
			return fmt.Errorf("touching cart: %w", err)
		}
		return nil
	})
}

// RemoveItem deletes a single line from the cart.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, productID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, removeCartItemSQL, cartID, productID)
		if err != nil {
			return fmt.Errorf("removing cart item: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return cart.ErrItemNotFound
		}
		if _, err := tx.Exec(ctx, touchCartSQL, cartID); err != nil {
			return fmt.Errorf("touching cart: %w", err)
		}
		return nil
	})
}

// Clear removes every line from the cart.
func (r *CartRepository) Clear(ctx context.Context, cartID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, clearCartSQL, cartID); err != nil {
			return fmt.Errorf("clearing cart: %w", err)
		}
		if _, err := tx.Exec(ctx, touchCartSQL, cartID); err != nil {
			return fmt.Errorf("touching cart: %w", err)
		}
		return nil
	})
}

// ListAbandoned returns non-empty carts untouched since the cutoff, items
// included, for the reminder job.
func (r *CartRepository) ListAbandoned(ctx context.Context, cutoff time.Time) ([]cart.Cart, error) {
	rows, err := r.pool.Query(ctx, listAbandonedCartsSQL, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing abandoned carts: %w", err)
	}
	carts, err := pgx.CollectRows(rows, scanCart)
	if err != nil {
		return nil, fmt.Errorf("listing abandoned carts: %w", err)
	}
	for i := range carts {
		itemRows, err := r.pool.Query(ctx, getCartItemsSQL, carts[i].ID)
		if err != nil {
			return nil, fmt.Errorf("getting cart items: %w", err)
		}
		carts[i].Items, err = pgx.CollectRows(itemRows, scanCartItem)
		if err != nil {
			return nil, fmt.Errorf("getting cart items: %w", err)
		}
	}
	return carts, nil
}

// PurgeGuestCarts deletes session-owned carts untouched since the cutoff.
// Items go with them via ON DELETE CASCADE.
func (r *CartRepository) PurgeGuestCarts(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, purgeGuestCartsSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging guest carts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var c cart.Cart
	err := row.Scan(&c.ID, &c.UserID, &c.SessionID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.PriceAtTime)
	return it, err
}

package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/product"
)

const (
	lockProductStockSQL = `SELECT stock_quantity, name FROM products WHERE id = $1 FOR UPDATE`

	availableStockSQL = `SELECT stock_quantity, is_active FROM products WHERE id = $1`

	updateProductStockSQL = `UPDATE products SET stock_quantity = $2, updated_at = now() WHERE id = $1`

	insertMovementSQL = `INSERT INTO inventory_history
		(id, product_id, change_type, quantity_change, previous_quantity, new_quantity, order_id, user_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)
		RETURNING created_at`

	listMovementsSQL = `SELECT h.id, h.product_id, p.name, h.change_type, h.quantity_change,
			h.previous_quantity, h.new_quantity,
			COALESCE(h.order_id, ''), COALESCE(h.user_id, ''), h.notes, h.created_at
		FROM inventory_history h
		JOIN products p ON p.id = h.product_id
		WHERE h.product_id = $1
		ORDER BY h.created_at DESC
		LIMIT $2`
)

var _ inventory.Repository = (*InventoryRepository)(nil)

// InventoryRepository implements inventory.Repository backed by PostgreSQL.
// The product row update and the history append happen in one transaction;
// concurrent writers on the same product serialize on the row lock.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository returns an InventoryRepository that uses the given pool.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// AvailableStock returns the stock quantity of an active product.
// Returns product.ErrNotFound when the product is missing or inactive.
func (r *InventoryRepository) AvailableStock(ctx context.Context, productID string) (int, error) {
	var (
		stock  int
		active bool
	)
	err := r.pool.QueryRow(ctx, availableStockSQL, productID).Scan(&stock, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, product.ErrNotFound
		}
		return 0, fmt.Errorf("reading stock for product %q: %w", productID, err)
	}
	if !active {
		return 0, product.ErrNotFound
	}
	return stock, nil
}

// ApplyDelta clamps the new stock at zero, updates the product row, and
// appends the history entry, all inside one transaction.
func (r *InventoryRepository) ApplyDelta(ctx context.Context, productID string, delta int, change inventory.ChangeType, opts inventory.AdjustOpts) (inventory.Movement, error) {
	m := inventory.Movement{
		ID:             uuid.New().String(),
		ProductID:      productID,
		Change:         change,
		QuantityChange: delta,
		OrderID:        opts.OrderID,
		UserID:         opts.UserID,
		Notes:          opts.Notes,
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, lockProductStockSQL, productID).Scan(&m.PreviousQuantity, &m.ProductName)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return product.ErrNotFound
			}
			return fmt.Errorf("locking product %q: %w", productID, err)
		}

		// Negative deltas clamp at zero instead of failing.
		m.NewQuantity = m.PreviousQuantity + delta
		if m.NewQuantity < 0 {
			m.NewQuantity = 0
		}

		if _, err := tx.Exec(ctx, updateProductStockSQL, productID, m.NewQuantity); err != nil {
			return fmt.Errorf("updating stock: %w", err)
		}

		err = tx.QueryRow(ctx, insertMovementSQL,
			m.ID, m.ProductID, string(m.Change), m.QuantityChange,
			m.PreviousQuantity, m.NewQuantity, m.OrderID, m.UserID, m.Notes,
		).Scan(&m.CreatedAt)
		if err != nil {
			return fmt.Errorf("appending inventory history: %w", err)
		}
		return nil
	})
	if err != nil {
		return inventory.Movement{}, err
	}
	return m, nil
}

// History returns the most recent movements for a product, newest first.
func (r *InventoryRepository) History(ctx context.Context, productID string, limit int) ([]inventory.Movement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, listMovementsSQL, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing inventory history for %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, scanMovement)
}

func scanMovement(row pgx.CollectableRow) (inventory.Movement, error) {
	var (
		m      inventory.Movement
		change string
	)
	err := row.Scan(
		&m.ID, &m.ProductID, &m.ProductName, &change, &m.QuantityChange,
		&m.PreviousQuantity, &m.NewQuantity, &m.OrderID, &m.UserID,
		&m.Notes, &m.CreatedAt,
	)
	m.Change = inventory.ChangeType(change)
	return m, err
}

package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const (
	couponColumns = `id, code, type, value, minimum_order_amount, maximum_discount_amount,
		usage_limit, used_count, is_active, valid_from, valid_until`

	getCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE UPPER(code) = UPPER($1) AND is_active = TRUE`

	listActiveCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE is_active = TRUE ORDER BY created_at`

	countUsageSQL = `SELECT COUNT(*) FROM coupon_usage WHERE coupon_id = $1 AND user_id = $2`

	insertUsageSQL = `INSERT INTO coupon_usage (coupon_id, user_id, order_id, discount_amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (coupon_id, user_id, order_id) DO NOTHING`

	incrementUsedCountSQL = `UPDATE coupons SET used_count = used_count + 1 WHERE id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindActiveByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching active coupon exists.
func (r *CouponRepository) FindActiveByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// ListActive returns all active coupons in insertion order.
func (r *CouponRepository) ListActive(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listActiveCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing active coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// CountUsage counts redemptions of a coupon by one user.
func (r *CouponRepository) CountUsage(ctx context.Context, couponID, userID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countUsageSQL, couponID, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting usage for coupon %q: %w", couponID, err)
	}
	return n, nil
}

// Redeem inserts the usage row and bumps the advisory counter in one
// transaction. A duplicate (coupon, user, order) is a no-op: the unique
// constraint swallows the insert and the counter stays untouched.
func (r *CouponRepository) Redeem(ctx context.Context, u coupon.Usage) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertUsageSQL, u.CouponID, u.UserID, u.OrderID, u.DiscountAmount)
		if err != nil {
			return fmt.Errorf("recording coupon usage: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Already redeemed for this order.
			return nil
		}
		if _, err := tx.Exec(ctx, incrementUsedCountSQL, u.CouponID); err != nil {
			return fmt.Errorf("incrementing used_count: %w", err)
		}
		return nil
	})
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c     coupon.Coupon
		ctype string
	)
	err := row.Scan(
		&c.ID, &c.Code, &ctype, &c.Value, &c.MinimumOrderAmount,
		&c.MaximumDiscountAmount, &c.UsageLimit, &c.UsedCount, &c.Active,
		&c.ValidFrom, &c.ValidUntil,
	)
	c.Type = coupon.Type(ctype)
	return c, err
}

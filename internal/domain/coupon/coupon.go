package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage discounts a percentage of the order amount, optionally
	// capped by MaximumDiscountAmount.
	TypePercentage Type = "percentage"
	// TypeFixed discounts a fixed amount, capped at the order amount.
	TypeFixed Type = "fixed"
)

var (
	// ErrInvalidCoupon is returned when no active coupon matches the code.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrNotYetActive is returned before a coupon's valid_from.
	ErrNotYetActive = errors.New("coupon is not yet active")
	// ErrExpired is returned after a coupon's valid_until.
	ErrExpired = errors.New("coupon has expired")
	// ErrUnknownType is returned for a discount type outside the enum.
	ErrUnknownType = errors.New("unknown coupon type")
)

// UsageLimitError indicates the user has exhausted their redemptions.
type UsageLimitError struct {
	Limit int
}

func (e *UsageLimitError) Error() string {
	return fmt.Sprintf("coupon usage limit of %d reached", e.Limit)
}

// MinimumAmountError indicates the order is below the coupon's threshold.
type MinimumAmountError struct {
	Minimum decimal.Decimal
}

func (e *MinimumAmountError) Error() string {
	return fmt.Sprintf("order amount must be at least %s to use this coupon", e.Minimum.StringFixed(2))
}

// Coupon defines a discount rule and its eligibility constraints.
//
// UsageLimit caps redemptions per user (zero means unlimited); UsedCount is a
// global advisory counter for reporting only and caps nothing.
type Coupon struct {
	ID                    string
	Code                  string
	Type                  Type
	Value                 decimal.Decimal
	MinimumOrderAmount    decimal.Decimal
	MaximumDiscountAmount decimal.Decimal
	UsageLimit            int
	UsedCount             int
	Active                bool
	ValidFrom             *time.Time
	ValidUntil            *time.Time
}

// Usage records one redemption of a coupon by a user against an order.
// Unique per (coupon, user, order).
type Usage struct {
	CouponID       string
	UserID         string
	OrderID        string
	DiscountAmount decimal.Decimal
	CreatedAt      time.Time
}

// Repository provides lookup and redemption tracking for coupons.
// Redeem must be idempotent: a duplicate (coupon, user, order) insert is a
// no-op and must not double-increment the advisory counter.
type Repository interface {
	FindActiveByCode(ctx context.Context, code string) (*Coupon, error)
	ListActive(ctx context.Context) ([]Coupon, error)
	CountUsage(ctx context.Context, couponID, userID string) (int, error)
	Redeem(ctx context.Context, u Usage) error
}

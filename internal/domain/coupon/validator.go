package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Quote is a validated coupon together with the discount it yields on a
// specific order amount.
type Quote struct {
	Coupon   *Coupon
	Discount decimal.Decimal
}

// Validator evaluates coupon eligibility and tracks redemptions.
//
// Validation runs in a fixed order and short-circuits on the first failure:
// code lookup, date window, per-user usage limit, minimum order amount,
// discount computation.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by the given Repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Validate checks whether userID may apply the coupon code to an order of the
// given amount and returns the resulting quote. It performs no mutation;
// redemption is committed separately via Redeem once payment is confirmed.
func (v *Validator) Validate(ctx context.Context, code, userID string, orderAmount decimal.Decimal) (*Quote, error) {
	c, err := v.repo.FindActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := v.evaluate(ctx, c, userID, orderAmount); err != nil {
		return nil, err
	}

	discount, err := Compute(c, orderAmount)
	if err != nil {
		return nil, err
	}

	return &Quote{Coupon: c, Discount: discount}, nil
}

// Best evaluates every active coupon against the order amount and returns the
// one yielding the largest discount. Ties keep the earlier coupon. It returns
// (nil, nil) when no coupon is eligible.
func (v *Validator) Best(ctx context.Context, userID string, orderAmount decimal.Decimal) (*Quote, error) {
	coupons, err := v.repo.ListActive(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list active coupons")
	}

	var best *Quote
	for i := range coupons {
		c := &coupons[i]
		if err := v.evaluate(ctx, c, userID, orderAmount); err != nil {
			// Per-coupon rejections just exclude the coupon; a repository
			// failure means the answer would be wrong, so it propagates.
			if !eligibilityFailure(err) {
				return nil, errors.Wrapf(err, "evaluate coupon %s", c.Code)
			}
			continue
		}
		discount, err := Compute(c, orderAmount)
		if err != nil {
			continue
		}
		if best == nil || discount.GreaterThan(best.Discount) {
			best = &Quote{Coupon: c, Discount: discount}
		}
	}

	return best, nil
}

// Redeem commits a redemption: one CouponUsage row plus the advisory
// used_count increment. Safe to call more than once for the same
// (coupon, user, order).
func (v *Validator) Redeem(ctx context.Context, u Usage) error {
	if err := v.repo.Redeem(ctx, u); err != nil {
		return errors.Wrapf(err, "redeem coupon %s for order %s", u.CouponID, u.OrderID)
	}
	return nil
}

// eligibilityFailure reports whether err rejects one coupon on its own terms
// rather than signalling an infrastructure problem.
func eligibilityFailure(err error) bool {
	var (
		limitErr *UsageLimitError
		minErr   *MinimumAmountError
	)
	return errors.Is(err, ErrNotYetActive) ||
		errors.Is(err, ErrExpired) ||
		errors.As(err, &limitErr) ||
		errors.As(err, &minErr)
}

func (v *Validator) evaluate(ctx context.Context, c *Coupon, userID string, orderAmount decimal.Decimal) error {
	now := v.now()

	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return ErrNotYetActive
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return ErrExpired
	}

	// UsageLimit is a per-user cap: count this user's redemptions, not the
	// global counter.
	if c.UsageLimit > 0 && userID != "" {
		used, err := v.repo.CountUsage(ctx, c.ID, userID)
		if err != nil {
			return errors.Wrap(err, "count coupon usage")
		}
		if used >= c.UsageLimit {
			return &UsageLimitError{Limit: c.UsageLimit}
		}
	}

	if c.MinimumOrderAmount.IsPositive() && orderAmount.LessThan(c.MinimumOrderAmount) {
		return &MinimumAmountError{Minimum: c.MinimumOrderAmount}
	}

	return nil
}

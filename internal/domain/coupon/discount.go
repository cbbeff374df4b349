package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Compute calculates the discount a coupon yields on the given order amount.
// Percentage discounts are orderAmount * value / 100, clamped to
// MaximumDiscountAmount when set; fixed discounts are min(value, orderAmount).
// The result is rounded to 2 decimal places and never negative.
func Compute(c *Coupon, orderAmount decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal

	switch c.Type {
	case TypePercentage:
		amount = orderAmount.Mul(c.Value).Div(hundred)
		if c.MaximumDiscountAmount.IsPositive() && amount.GreaterThan(c.MaximumDiscountAmount) {
			amount = c.MaximumDiscountAmount
		}
	case TypeFixed:
		amount = decimal.Min(c.Value, orderAmount)
	default:
		return decimal.Zero, errors.Wrapf(ErrUnknownType, "%q", c.Type)
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2), nil
}

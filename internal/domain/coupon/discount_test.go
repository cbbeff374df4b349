package coupon

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name        string
		coupon      *Coupon
		orderAmount decimal.Decimal
		want        decimal.Decimal
		wantErr     error
	}{
		{
			name: "percentage discount",
			coupon: &Coupon{
				Code:  "SAVE10",
				Type:  TypePercentage,
				Value: decimal.NewFromInt(10),
			},
			orderAmount: decimal.NewFromInt(500),
			want:        decimal.NewFromInt(50),
		},
		{
			name: "percentage capped at maximum discount amount",
			coupon: &Coupon{
				Code:                  "SAVE20",
				Type:                  TypePercentage,
				Value:                 decimal.NewFromInt(20),
				MaximumDiscountAmount: decimal.NewFromInt(200),
			},
			orderAmount: decimal.NewFromInt(1500),
			want:        decimal.NewFromInt(200),
		},
		{
			name: "percentage below cap is untouched",
			coupon: &Coupon{
				Code:                  "SAVE20",
				Type:                  TypePercentage,
				Value:                 decimal.NewFromInt(20),
				MaximumDiscountAmount: decimal.NewFromInt(200),
			},
			orderAmount: decimal.NewFromInt(800),
			want:        decimal.NewFromInt(160),
		},
		{
			name: "percentage result rounds to 2 places",
			coupon: &Coupon{
				Code:  "ODD",
				Type:  TypePercentage,
				Value: decimal.NewFromInt(15),
			},
			orderAmount: decimal.RequireFromString("99.99"),
			want:        decimal.RequireFromString("15.00"),
		},
		{
			name: "fixed discount",
			coupon: &Coupon{
				Code:  "FLAT100",
				Type:  TypeFixed,
				Value: decimal.NewFromInt(100),
			},
			orderAmount: decimal.NewFromInt(600),
			want:        decimal.NewFromInt(100),
		},
		{
			name: "fixed discount capped at order amount",
			coupon: &Coupon{
				Code:  "FLAT100",
				Type:  TypeFixed,
				Value: decimal.NewFromInt(100),
			},
			orderAmount: decimal.NewFromInt(60),
			want:        decimal.NewFromInt(60),
		},
		{
			name: "unknown type",
			coupon: &Coupon{
				Code:  "WAT",
				Type:  Type("bogo"),
				Value: decimal.NewFromInt(1),
			},
			orderAmount: decimal.NewFromInt(100),
			wantErr:     ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.coupon, tt.orderAmount)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

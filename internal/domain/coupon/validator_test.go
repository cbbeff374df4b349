package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	coupon  *Coupon
	active  []Coupon
	findErr error
	listErr error

	usage     map[string]int // couponID|userID -> count
	usageErr  error
	redeemed  []Usage
	redeemErr error
}

func (m *mockCouponRepo) FindActiveByCode(_ context.Context, _ string) (*Coupon, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.coupon, nil
}

func (m *mockCouponRepo) ListActive(_ context.Context) ([]Coupon, error) {
	return m.active, m.listErr
}

func (m *mockCouponRepo) CountUsage(_ context.Context, couponID, userID string) (int, error) {
	if m.usageErr != nil {
		return 0, m.usageErr
	}
	return m.usage[couponID+"|"+userID], nil
}

func (m *mockCouponRepo) Redeem(_ context.Context, u Usage) error {
	if m.redeemErr != nil {
		return m.redeemErr
	}
	m.redeemed = append(m.redeemed, u)
	return nil
}

func newTestValidator(repo *mockCouponRepo, now time.Time) *Validator {
	v := NewValidator(repo)
	v.now = func() time.Time { return now }
	return v
}

func TestValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-24 * time.Hour)
	future := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name         string
		repo         *mockCouponRepo
		userID       string
		orderAmount  decimal.Decimal
		wantDiscount decimal.Decimal
		wantErr      error
		wantErrAs    any
	}{
		{
			name: "valid percentage coupon with cap",
			repo: &mockCouponRepo{
				coupon: &Coupon{
					ID:                    "c1",
					Code:                  "SAVE20",
					Type:                  TypePercentage,
					Value:                 decimal.NewFromInt(20),
					MinimumOrderAmount:    decimal.NewFromInt(1000),
					MaximumDiscountAmount: decimal.NewFromInt(200),
					UsageLimit:            1,
					ValidFrom:             &past,
					ValidUntil:            &future,
				},
			},
			userID:       "u1",
			orderAmount:  decimal.NewFromInt(1500),
			wantDiscount: decimal.NewFromInt(200),
		},
		{
			name:        "unknown code",
			repo:        &mockCouponRepo{findErr: ErrInvalidCoupon},
			userID:      "u1",
			orderAmount: decimal.NewFromInt(100),
			wantErr:     ErrInvalidCoupon,
		},
		{
			name: "not yet active",
			repo: &mockCouponRepo{
				coupon: &Coupon{
					ID:        "c1",
					Code:      "SOON",
					Type:      TypePercentage,
					Value:     decimal.NewFromInt(10),
					ValidFrom: &future,
				},
			},
			userID:      "u1",
			orderAmount: decimal.NewFromInt(100),
			wantErr:     ErrNotYetActive,
		},
		{
			name: "expired",
			repo: &mockCouponRepo{
				coupon: &Coupon{
					ID:         "c1",
					Code:       "LATE",
					Type:       TypePercentage,
					Value:      decimal.NewFromInt(10),
					ValidUntil: &past,
				},
			},
			userID:      "u1",
			orderAmount: decimal.NewFromInt(100),
			wantErr:     ErrExpired,
		},
		{
			name: "per-user usage limit reached",
			repo: &mockCouponRepo{
				coupon: &Coupon{
					ID:         "c1",
					Code:       "ONCE",
					Type:       TypeFixed,
					Value:      decimal.NewFromInt(50),
					UsageLimit: 1,
				},
				usage: map[string]int{"c1|u1": 1},
			},
			userID:      "u1",
			orderAmount: decimal.NewFromInt(100),
			wantErrAs:   &UsageLimitError{},
		},
		{
			name: "other users do not consume this user's limit",
			repo: &mockCouponRepo{
				coupon: &Coupon{
					ID:         "c1",
					Code:       "ONCE",
					Type:       TypeFixed,
					Value:      decimal.NewFromInt(50),
					UsageLimit: 1,
				},
				usage: map[string]int{"c1|someone-else": 1},
			},
			userID:       "u1",
			orderAmount:  decimal.NewFromInt(100),
			wantDiscount: decimal.NewFromInt(50),
		},
		{
			name: "below minimum order amount",
			repo: &mockCouponRepo{
				coupon: &Coupon{
					ID:                 "c1",
					Code:               "BIG",
					Type:               TypePercentage,
					Value:              decimal.NewFromInt(20),
					MinimumOrderAmount: decimal.NewFromInt(1000),
				},
			},
			userID:      "u1",
			orderAmount: decimal.NewFromInt(999),
			wantErrAs:   &MinimumAmountError{},
		},
		{
			name: "no date window means always valid",
			repo: &mockCouponRepo{
				coupon: &Coupon{
					ID:    "c1",
					Code:  "EVERGREEN",
					Type:  TypePercentage,
					Value: decimal.NewFromInt(5),
				},
			},
			userID:       "u1",
			orderAmount:  decimal.NewFromInt(200),
			wantDiscount: decimal.NewFromInt(10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(tt.repo, fixedNow)

			q, err := v.Validate(context.Background(), "CODE", tt.userID, tt.orderAmount)
			switch {
			case tt.wantErr != nil:
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "want %v, got %v", tt.wantErr, err)
			case tt.wantErrAs != nil:
				require.Error(t, err)
				switch tt.wantErrAs.(type) {
				case *UsageLimitError:
					var target *UsageLimitError
					assert.ErrorAs(t, err, &target)
				case *MinimumAmountError:
					var target *MinimumAmountError
					assert.ErrorAs(t, err, &target)
				default:
					t.Fatalf("unhandled error type %T", tt.wantErrAs)
				}
			default:
				require.NoError(t, err)
				require.NotNil(t, q)
				assert.True(t, tt.wantDiscount.Equal(q.Discount), "want %s, got %s", tt.wantDiscount, q.Discount)
			}
		})
	}
}

func TestValidator_UsageLimitCheckedBeforeMinimum(t *testing.T) {
	// The pipeline short-circuits: an exhausted user gets the limit error even
	// when the order is also below the minimum.
	repo := &mockCouponRepo{
		coupon: &Coupon{
			ID:                 "c1",
			Code:               "ONCE",
			Type:               TypeFixed,
			Value:              decimal.NewFromInt(50),
			MinimumOrderAmount: decimal.NewFromInt(1000),
			UsageLimit:         1,
		},
		usage: map[string]int{"c1|u1": 1},
	}
	v := newTestValidator(repo, time.Now())

	_, err := v.Validate(context.Background(), "ONCE", "u1", decimal.NewFromInt(10))
	var limitErr *UsageLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 1, limitErr.Limit)
}

func TestValidator_Best(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-24 * time.Hour)

	t.Run("picks largest discount", func(t *testing.T) {
		repo := &mockCouponRepo{
			active: []Coupon{
				{ID: "c1", Code: "TEN", Type: TypePercentage, Value: decimal.NewFromInt(10)},
				{ID: "c2", Code: "FLAT150", Type: TypeFixed, Value: decimal.NewFromInt(150)},
				{ID: "c3", Code: "FIVE", Type: TypePercentage, Value: decimal.NewFromInt(5)},
			},
		}
		v := newTestValidator(repo, fixedNow)

		q, err := v.Best(context.Background(), "u1", decimal.NewFromInt(1000))
		require.NoError(t, err)
		require.NotNil(t, q)
		assert.Equal(t, "FLAT150", q.Coupon.Code)
		assert.True(t, decimal.NewFromInt(150).Equal(q.Discount))
	})

	t.Run("skips ineligible coupons", func(t *testing.T) {
		repo := &mockCouponRepo{
			active: []Coupon{
				{ID: "c1", Code: "EXPIRED", Type: TypePercentage, Value: decimal.NewFromInt(90), ValidUntil: &past},
				{ID: "c2", Code: "TEN", Type: TypePercentage, Value: decimal.NewFromInt(10)},
			},
		}
		v := newTestValidator(repo, fixedNow)

		q, err := v.Best(context.Background(), "u1", decimal.NewFromInt(100))
		require.NoError(t, err)
		require.NotNil(t, q)
		assert.Equal(t, "TEN", q.Coupon.Code)
	})

	t.Run("ties keep the earlier coupon", func(t *testing.T) {
		repo := &mockCouponRepo{
			active: []Coupon{
				{ID: "c1", Code: "FIRST", Type: TypeFixed, Value: decimal.NewFromInt(50)},
				{ID: "c2", Code: "SECOND", Type: TypeFixed, Value: decimal.NewFromInt(50)},
			},
		}
		v := newTestValidator(repo, fixedNow)

		q, err := v.Best(context.Background(), "u1", decimal.NewFromInt(100))
		require.NoError(t, err)
		require.NotNil(t, q)
		assert.Equal(t, "FIRST", q.Coupon.Code)
	})

	t.Run("usage lookup failure propagates instead of skipping", func(t *testing.T) {
		repo := &mockCouponRepo{
			active: []Coupon{
				{ID: "c1", Code: "ONCE", Type: TypeFixed, Value: decimal.NewFromInt(50), UsageLimit: 1},
			},
			usageErr: errors.New("db gone"),
		}
		v := newTestValidator(repo, fixedNow)

		q, err := v.Best(context.Background(), "u1", decimal.NewFromInt(100))
		require.Error(t, err)
		assert.Nil(t, q)
	})

	t.Run("returns nil when nothing applies", func(t *testing.T) {
		repo := &mockCouponRepo{
			active: []Coupon{
				{ID: "c1", Code: "EXPIRED", Type: TypePercentage, Value: decimal.NewFromInt(10), ValidUntil: &past},
			},
		}
		v := newTestValidator(repo, fixedNow)

		q, err := v.Best(context.Background(), "u1", decimal.NewFromInt(100))
		require.NoError(t, err)
		assert.Nil(t, q)
	})
}

func TestValidator_Redeem(t *testing.T) {
	repo := &mockCouponRepo{}
	v := NewValidator(repo)

	u := Usage{
		CouponID:       "c1",
		UserID:         "u1",
		OrderID:        "o1",
		DiscountAmount: decimal.NewFromInt(200),
	}
	require.NoError(t, v.Redeem(context.Background(), u))
	require.Len(t, repo.redeemed, 1)
	assert.Equal(t, "o1", repo.redeemed[0].OrderID)

	repo.redeemErr = errors.New("boom")
	err := v.Redeem(context.Background(), u)
	require.Error(t, err)
}

package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestShippingCost_Tiers(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		subtotal string
		want     string
	}{
		{"0", "4.99"},
		{"10.00", "4.99"},
		{"49.99", "4.99"},
		{"50.00", "2.99"},
		{"99.99", "2.99"},
		{"100.00", "0"},
		{"250.00", "0"},
	}
	for _, tt := range tests {
		got := cfg.ShippingCost(d(tt.subtotal))
		assert.True(t, got.Equal(d(tt.want)),
			"subtotal %s: want shipping %s, got %s", tt.subtotal, tt.want, got)
	}
}

func TestDiscount_Percentage(t *testing.T) {
	promo := &PromoSnapshot{Code: "TEN", Type: DiscountPercentage, Amount: d("10")}

	got := promo.Discount(d("55.00"))
	assert.True(t, got.Equal(d("5.5")), "got %s", got)
}

func TestDiscount_FixedClampedToSubtotal(t *testing.T) {
	promo := &PromoSnapshot{Code: "BIG", Type: DiscountFixed, Amount: d("20")}

	assert.True(t, promo.Discount(d("50.00")).Equal(d("20")))
	// A fixed discount larger than the cart never goes negative.
	assert.True(t, promo.Discount(d("12.00")).Equal(d("12.00")))
}

func TestDiscount_NilAndUnknownType(t *testing.T) {
	var promo *PromoSnapshot
	assert.True(t, promo.Discount(d("50")).IsZero())

	bad := &PromoSnapshot{Code: "X", Type: "bogus", Amount: d("10")}
	assert.True(t, bad.Discount(d("50")).IsZero())
}

func TestComputeCosts_Checkout(t *testing.T) {
	cfg := DefaultConfig()

	costs := cfg.ComputeCosts(d("55.00"), nil)

	assert.True(t, costs.Subtotal.Equal(d("55.00")), "subtotal %s", costs.Subtotal)
	assert.True(t, costs.ShippingCost.Equal(d("2.99")), "shipping %s", costs.ShippingCost)
	assert.True(t, costs.Discount.IsZero())
	assert.True(t, costs.Tax.Equal(d("11.60")), "tax %s", costs.Tax)
	assert.True(t, costs.Total.Equal(d("69.59")), "total %s", costs.Total)
}

func TestComputeCosts_WithPercentagePromo(t *testing.T) {
	cfg := DefaultConfig()
	promo := &PromoSnapshot{Code: "TEN", Type: DiscountPercentage, Amount: d("10")}

	costs := cfg.ComputeCosts(d("55.00"), promo)

	// 55.00 + 2.99 - 5.50 = 52.49 tax base; 20% VAT = 10.498 -> 10.50.
	assert.True(t, costs.Discount.Equal(d("5.50")), "discount %s", costs.Discount)
	assert.True(t, costs.Tax.Equal(d("10.50")), "tax %s", costs.Tax)
	assert.True(t, costs.Total.Equal(d("62.99")), "total %s", costs.Total)
}

func TestComputeCosts_FreeShippingThreshold(t *testing.T) {
	cfg := DefaultConfig()

	costs := cfg.ComputeCosts(d("100.00"), nil)

	assert.True(t, costs.ShippingCost.IsZero())
	assert.True(t, costs.Tax.Equal(d("20.00")), "tax %s", costs.Tax)
	assert.True(t, costs.Total.Equal(d("120.00")), "total %s", costs.Total)
}

func TestComputeCosts_LegacyRounding(t *testing.T) {
	// A sub-cent discount makes the two rounding modes diverge by one cent:
	// 10% of 55.55 is 5.555, tax base 52.985, tax 10.597 -> 10.60. Legacy
	// sums the rounded tax (63.585 -> 63.59); the default rounds the exact
	// total 63.582 once (-> 63.58).
	promo := &PromoSnapshot{Code: "TEN", Type: DiscountPercentage, Amount: d("10")}

	cfg := DefaultConfig()
	cfg.LegacyRounding = true
	legacy := cfg.ComputeCosts(d("55.55"), promo)
	assert.True(t, legacy.Total.Equal(d("63.59")), "legacy total %s", legacy.Total)

	cfg.LegacyRounding = false
	modern := cfg.ComputeCosts(d("55.55"), promo)
	assert.True(t, modern.Total.Equal(d("63.58")), "modern total %s", modern.Total)
}

func TestComputeCosts_FullDiscount(t *testing.T) {
	cfg := DefaultConfig()
	promo := &PromoSnapshot{Code: "FREE", Type: DiscountPercentage, Amount: d("100")}

	costs := cfg.ComputeCosts(d("40.00"), promo)

	// Only shipping remains in the tax base.
	assert.True(t, costs.Discount.Equal(d("40.00")))
	assert.True(t, costs.Tax.Equal(d("1.00")), "tax %s", costs.Tax)
	assert.True(t, costs.Total.Equal(d("5.99")), "total %s", costs.Total)
}

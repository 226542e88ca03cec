// Package pricing computes shipping cost, promo discount, tax, and order
// total from a cart subtotal. It is pure: no persistence, no clock, no
// side effects.
package pricing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiscountType enumerates the supported promo discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary amount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// PromoSnapshot is the discount parameters of a promo code frozen at
// use time. Orders store the snapshot, not a live reference, so later edits
// to the code never alter historical orders.
type PromoSnapshot struct {
	Code   string          `json:"code"`
	Type   DiscountType    `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// Discount computes the discount for the given subtotal, clamped so it never
// exceeds the subtotal. Validity of the code (existence, time window) is the
// caller's concern; only magnitude is handled here.
func (s *PromoSnapshot) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if s == nil {
		return decimal.Zero
	}

	var d decimal.Decimal
	switch s.Type {
	case DiscountPercentage:
		d = subtotal.Mul(s.Amount).Div(hundred)
	case DiscountFixed:
		d = s.Amount
	default:
		return decimal.Zero
	}

	if d.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(d, subtotal)
}

// ShippingTier maps a subtotal upper bound (exclusive) to a shipping cost.
type ShippingTier struct {
	Below decimal.Decimal
	Cost  decimal.Decimal
}

// Config holds the pricing rules. Thresholds and rates are configuration so
// locale variants do not require code changes.
type Config struct {
	// ShippingTiers is ordered by ascending Below; a subtotal at or above
	// every bound ships free.
	ShippingTiers []ShippingTier
	// TaxRate is the VAT rate applied to subtotal + shipping - discount.
	TaxRate decimal.Decimal
	// LegacyRounding reproduces the historical behaviour of summing the
	// already-rounded tax into the total. The default computes the total
	// from unrounded intermediates and rounds once.
	LegacyRounding bool
}

// DefaultConfig returns the store's standard pricing rules: 4.99 shipping
// below 50, 2.99 below 100, free at 100 and above, 20% VAT.
func DefaultConfig() Config {
	return Config{
		ShippingTiers: []ShippingTier{
			{Below: decimal.NewFromInt(50), Cost: decimal.RequireFromString("4.99")},
			{Below: decimal.NewFromInt(100), Cost: decimal.RequireFromString("2.99")},
		},
		TaxRate: decimal.RequireFromString("0.20"),
	}
}

// Costs is the derived pricing block of an order. All values are rounded to
// 2 decimal places.
type Costs struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
	Discount     decimal.Decimal `json:"discount"`
	Tax          decimal.Decimal `json:"tax"`
	Total        decimal.Decimal `json:"total"`
}

// ShippingCost returns the shipping cost tier for the given subtotal.
func (c Config) ShippingCost(subtotal decimal.Decimal) decimal.Decimal {
	for _, tier := range c.ShippingTiers {
		if subtotal.LessThan(tier.Below) {
			return tier.Cost
		}
	}
	return decimal.Zero
}

// ComputeCosts derives the full pricing block for a subtotal and an optional
// promo snapshot. Tax is rounded half away from zero to 2 decimal places.
func (c Config) ComputeCosts(subtotal decimal.Decimal, promo *PromoSnapshot) Costs {
	shipping := c.ShippingCost(subtotal)
	discount := promo.Discount(subtotal)

	taxBase := subtotal.Add(shipping).Sub(discount)
	tax := taxBase.Mul(c.TaxRate).Round(2)

	var total decimal.Decimal
	if c.LegacyRounding {
		total = taxBase.Add(tax).Round(2)
	} else {
		total = taxBase.Add(taxBase.Mul(c.TaxRate)).Round(2)
	}

	return Costs{
		Subtotal:     subtotal.Round(2),
		ShippingCost: shipping,
		Discount:     discount.Round(2),
		Tax:          tax,
		Total:        total,
	}
}

package pricing

import (
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// Rules are the storefront's shipping and tax parameters.
type Rules struct {
	FreeShippingThreshold decimal.Decimal
	FlatShipping          decimal.Decimal
	TaxRate               decimal.Decimal
	// Scale is the number of fractional digits of the smallest currency unit.
	Scale int32
}

func DefaultRules() Rules {
	return Rules{
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShipping:          decimal.NewFromInt(100),
		TaxRate:               decimal.RequireFromString("0.15"),
		Scale:                 2,
	}
}

func (r Rules) Validate() error {
	if r.FreeShippingThreshold.IsNegative() {
		return fmt.Errorf("%w: free shipping threshold must not be negative", domain.ErrValidation)
	}
	if r.FlatShipping.IsNegative() {
		return fmt.Errorf("%w: flat shipping must not be negative", domain.ErrValidation)
	}
	if r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: tax rate must be within [0, 1]", domain.ErrValidation)
	}
	if r.Scale < 0 {
		return fmt.Errorf("%w: scale must not be negative", domain.ErrValidation)
	}
	return nil
}

type Calculator struct {
	rules Rules
}

func NewCalculator(rules Rules) *Calculator {
	return &Calculator{rules: rules}
}

func (c *Calculator) Rules() Rules {
	return c.rules
}

// Derive computes the breakdown for items. The items sum is exact, tax is
// rounded once (half away from zero) and nothing is rounded per line.
func (c *Calculator) Derive(items []domain.LineItem) domain.PriceBreakdown {
	itemsPrice := decimal.Zero
	for _, item := range items {
		itemsPrice = itemsPrice.Add(item.Subtotal())
	}

	shipping := decimal.Zero
	if itemsPrice.LessThan(c.rules.FreeShippingThreshold) {
		shipping = c.rules.FlatShipping
	}

	tax := itemsPrice.Mul(c.rules.TaxRate).Round(c.rules.Scale)

	return domain.PriceBreakdown{
		ItemsPrice:    itemsPrice,
		ShippingPrice: shipping,
		TaxPrice:      tax,
		TotalPrice:    itemsPrice.Add(shipping).Add(tax),
	}
}

package pricing

import (
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func TestDerive_WholeUnitRules(t *testing.T) {
	calc := NewCalculator(Rules{
		FreeShippingThreshold: d("1000"),
		FlatShipping:          d("100"),
		TaxRate:               d("0.05"),
		Scale:                 0,
	})

	items := []domain.LineItem{
		{ProductID: "p1", Price: d("500"), Quantity: 2},
		{ProductID: "p2", Price: d("250"), Quantity: 1},
	}
	got := calc.Derive(items)

	assertAmount(t, "1250", got.ItemsPrice)
	assertAmount(t, "0", got.ShippingPrice)
	assertAmount(t, "63", got.TaxPrice)
	assertAmount(t, "1313", got.TotalPrice)
}

func TestDerive_ShippingBelowThreshold(t *testing.T) {
	calc := NewCalculator(DefaultRules())

	got := calc.Derive([]domain.LineItem{{ProductID: "p1", Price: d("19.99"), Quantity: 2}})

	assertAmount(t, "39.98", got.ItemsPrice)
	assertAmount(t, "100", got.ShippingPrice)
	assertAmount(t, "6.00", got.TaxPrice)
	assertAmount(t, "145.98", got.TotalPrice)
}

func TestDerive_ThresholdIsInclusive(t *testing.T) {
	calc := NewCalculator(DefaultRules())

	got := calc.Derive([]domain.LineItem{{ProductID: "p1", Price: d("100.00"), Quantity: 1}})

	assertAmount(t, "0", got.ShippingPrice)
}

func TestDerive_EmptyItems(t *testing.T) {
	calc := NewCalculator(DefaultRules())

	got := calc.Derive(nil)

	assertAmount(t, "0", got.ItemsPrice)
	assertAmount(t, "100", got.ShippingPrice)
	assertAmount(t, "0", got.TaxPrice)
	assertAmount(t, "100", got.TotalPrice)
}

func TestDerive_ExactSumNoFloatDrift(t *testing.T) {
	calc := NewCalculator(DefaultRules())

	items := make([]domain.LineItem, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, domain.LineItem{ProductID: string(rune('a' + i)), Price: d("0.10"), Quantity: 1})
	}
	got := calc.Derive(items)

	assertAmount(t, "1.00", got.ItemsPrice)
}

func TestDerive_Deterministic(t *testing.T) {
	calc := NewCalculator(DefaultRules())
	items := []domain.LineItem{
		{ProductID: "p1", Price: d("33.33"), Quantity: 3},
		{ProductID: "p2", Price: d("0.01"), Quantity: 7},
	}

	first := calc.Derive(items)
	for i := 0; i < 5; i++ {
		assert.True(t, first.Equal(calc.Derive(items)))
	}
}

func TestDerive_TotalIsSumOfParts(t *testing.T) {
	calc := NewCalculator(DefaultRules())
	prices := []string{"0.01", "9.99", "49.95", "123.45", "999.99"}

	for _, p := range prices {
		for qty := 1; qty <= 4; qty++ {
			got := calc.Derive([]domain.LineItem{{ProductID: "p", Price: d(p), Quantity: qty}})
			sum := got.ItemsPrice.Add(got.ShippingPrice).Add(got.TaxPrice)
			assert.True(t, sum.Equal(got.TotalPrice), "price %s qty %d", p, qty)
			assert.LessOrEqual(t, -got.TaxPrice.Exponent(), int32(2))
		}
	}
}

func TestRules_Validate(t *testing.T) {
	require.NoError(t, DefaultRules().Validate())

	r := DefaultRules()
	r.TaxRate = d("-0.1")
	assert.ErrorIs(t, r.Validate(), domain.ErrValidation)

	r = DefaultRules()
	r.Scale = -1
	assert.ErrorIs(t, r.Validate(), domain.ErrValidation)
}

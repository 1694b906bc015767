package domain

import "github.com/shopspring/decimal"

// PriceBreakdown is always derived from line items. Orders keep the copy
// taken at placement; carts never store one.
type PriceBreakdown struct {
	ItemsPrice    decimal.Decimal `json:"itemsPrice"`
	ShippingPrice decimal.Decimal `json:"shippingPrice"`
	TaxPrice      decimal.Decimal `json:"taxPrice"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}

// Equal compares amounts numerically, so 10 and 10.00 are equal.
func (p PriceBreakdown) Equal(o PriceBreakdown) bool {
	return p.ItemsPrice.Equal(o.ItemsPrice) &&
		p.ShippingPrice.Equal(o.ShippingPrice) &&
		p.TaxPrice.Equal(o.TaxPrice) &&
		p.TotalPrice.Equal(o.TotalPrice)
}

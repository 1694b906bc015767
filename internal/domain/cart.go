package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodPayPal PaymentMethod = "paypal"

	// DefaultPaymentMethod is preselected by the payment step.
	DefaultPaymentMethod = PaymentMethodPayPal
)

func (m PaymentMethod) IsSupported() bool {
	return m == PaymentMethodPayPal
}

func (m PaymentMethod) String() string {
	return string(m)
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsSupported() {
		return "", fmt.Errorf("%w: unsupported payment method %q", ErrValidation, s)
	}
	return m, nil
}

type LineItem struct {
	ProductID string          `json:"product"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"qty"`
}

// Subtotal is price × quantity, unrounded.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

func (a ShippingAddress) Normalize() ShippingAddress {
	return ShippingAddress{
		Address:    strings.TrimSpace(a.Address),
		City:       strings.TrimSpace(a.City),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

// IsComplete reports whether all four fields are set. A partially filled
// address counts as no address at all.
func (a ShippingAddress) IsComplete() bool {
	n := a.Normalize()
	return n.Address != "" && n.City != "" && n.PostalCode != "" && n.Country != ""
}

type Cart struct {
	Items           []LineItem       `json:"items"`
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty"`
	PaymentMethod   PaymentMethod    `json:"paymentMethod,omitempty"`
}

func (c Cart) Clone() Cart {
	out := Cart{PaymentMethod: c.PaymentMethod}
	if len(c.Items) > 0 {
		out.Items = make([]LineItem, len(c.Items))
		copy(out.Items, c.Items)
	}
	if c.ShippingAddress != nil {
		addr := *c.ShippingAddress
		out.ShippingAddress = &addr
	}
	return out
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) HasShippingAddress() bool {
	return c.ShippingAddress != nil && c.ShippingAddress.IsComplete()
}

func (c Cart) HasPaymentMethod() bool {
	return c.PaymentMethod.IsSupported()
}

// IndexOf returns the position of productID in Items or -1.
func (c Cart) IndexOf(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

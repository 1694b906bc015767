package payment

import (
	"fmt"

	"github.com/fjod/storefront/internal/domain"
)

const CurrencyUSD = "USD"

// CaptureDetails is what the payment widget hands back after capture.
type CaptureDetails struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	UpdateTime string `json:"update_time"`
	Payer      Payer  `json:"payer"`
}

type Payer struct {
	EmailAddress string `json:"email_address"`
}

func (d CaptureDetails) Result() domain.PaymentResult {
	return domain.PaymentResult{
		TransactionID: d.ID,
		Status:        d.Status,
		UpdateTime:    d.UpdateTime,
		PayerEmail:    d.Payer.EmailAddress,
	}
}

type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type PurchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Amount      Amount `json:"amount"`
}

// PurchaseRequest is the body the widget's createOrder call sends to the provider.
type PurchaseRequest struct {
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

// NewPurchaseRequest charges the order's frozen total in a single unit.
func NewPurchaseRequest(o *domain.Order) (PurchaseRequest, error) {
	if o.IsPaid {
		return PurchaseRequest{}, fmt.Errorf("%w: order %s is already paid", domain.ErrTransitionConflict, o.ID)
	}
	if o.Prices.TotalPrice.IsNegative() {
		return PurchaseRequest{}, fmt.Errorf("%w: order %s has a negative total", domain.ErrValidation, o.ID)
	}
	return PurchaseRequest{
		PurchaseUnits: []PurchaseUnit{{
			ReferenceID: o.ID.String(),
			Amount: Amount{
				CurrencyCode: CurrencyUSD,
				Value:        o.Prices.TotalPrice.StringFixed(2),
			},
		}},
	}, nil
}

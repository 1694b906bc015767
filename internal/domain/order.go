package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusDelivered OrderStatus = "DELIVERED"
)

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered
}

// CanTransitionTo allows only the single forward step Created → Paid → Delivered.
func CanTransitionTo(from, to OrderStatus) bool {
	switch from {
	case OrderStatusCreated:
		return to == OrderStatusPaid
	case OrderStatusPaid:
		return to == OrderStatusDelivered
	default:
		return false
	}
}

// PaymentStatusCompleted is the capture status the payment provider reports on success.
const PaymentStatusCompleted = "COMPLETED"

type PaymentResult struct {
	TransactionID string `json:"id"`
	Status        string `json:"status"`
	UpdateTime    string `json:"update_time"`
	PayerEmail    string `json:"email_address"`
}

func (p PaymentResult) Succeeded() bool {
	return strings.EqualFold(p.Status, PaymentStatusCompleted)
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	UserID          string          `json:"userId"`
	OrderItems      []LineItem      `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Prices          PriceBreakdown  `json:"priceBreakdown"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	PaymentResult   *PaymentResult  `json:"paymentResult,omitempty"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (o *Order) Status() OrderStatus {
	switch {
	case o.IsDelivered:
		return OrderStatusDelivered
	case o.IsPaid:
		return OrderStatusPaid
	default:
		return OrderStatusCreated
	}
}

// MarkPaid applies the Created → Paid transition. It can succeed only once.
func (o *Order) MarkPaid(result PaymentResult, at time.Time) error {
	if !CanTransitionTo(o.Status(), OrderStatusPaid) {
		return fmt.Errorf("%w: order %s is %s", ErrTransitionConflict, o.ID, o.Status())
	}
	if !result.Succeeded() {
		return fmt.Errorf("%w: capture status %q", ErrPaymentDeclined, result.Status)
	}
	if strings.TrimSpace(result.TransactionID) == "" {
		return fmt.Errorf("%w: payment transaction id is required", ErrValidation)
	}
	paidAt := at.UTC()
	o.IsPaid = true
	o.PaidAt = &paidAt
	o.PaymentResult = &result
	o.UpdatedAt = paidAt
	return nil
}

// MarkDelivered applies the Paid → Delivered transition.
func (o *Order) MarkDelivered(at time.Time) error {
	if !CanTransitionTo(o.Status(), OrderStatusDelivered) {
		return fmt.Errorf("%w: order %s is %s", ErrTransitionConflict, o.ID, o.Status())
	}
	deliveredAt := at.UTC()
	o.IsDelivered = true
	o.DeliveredAt = &deliveredAt
	o.UpdatedAt = deliveredAt
	return nil
}

// Actor is the caller of an order operation as identified by the auth gateway.
type Actor struct {
	UserID  string
	IsAdmin bool
}

func (a Actor) CanAccess(o *Order) bool {
	return a.IsAdmin || (a.UserID != "" && a.UserID == o.UserID)
}

// PlaceOrderRequest is the body of POST /orders.
type PlaceOrderRequest struct {
	OrderItems      []LineItem      `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Prices          PriceBreakdown  `json:"priceBreakdown"`
}

func (r PlaceOrderRequest) Validate() error {
	if len(r.OrderItems) == 0 {
		return fmt.Errorf("%w: order has no items", ErrValidation)
	}
	seen := make(map[string]struct{}, len(r.OrderItems))
	for _, item := range r.OrderItems {
		if item.ProductID == "" {
			return fmt.Errorf("%w: item without product id", ErrValidation)
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("%w: duplicate item %s", ErrValidation, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %s quantity must be at least 1", ErrValidation, item.ProductID)
		}
		if item.Price.LessThan(decimal.Zero) {
			return fmt.Errorf("%w: item %s price must not be negative", ErrValidation, item.ProductID)
		}
	}
	if !r.ShippingAddress.IsComplete() {
		return fmt.Errorf("%w: shipping address is incomplete", ErrValidation)
	}
	if !r.PaymentMethod.IsSupported() {
		return fmt.Errorf("%w: unsupported payment method %q", ErrValidation, r.PaymentMethod)
	}
	return nil
}

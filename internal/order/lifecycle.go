package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultCallTimeout = 10 * time.Second

// API is the Order API as seen by the storefront client.
type API interface {
	CreateOrder(ctx context.Context, req domain.PlaceOrderRequest) (string, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	PayOrder(ctx context.Context, orderID string, result domain.PaymentResult) (*domain.Order, error)
	DeliverOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

type ConfigSource interface {
	PayPalClientID(ctx context.Context) (string, error)
}

// CartSource is the part of the cart store placement needs.
type CartSource interface {
	Cart() domain.Cart
	Clear()
}

type paymentState int

const (
	paymentInFlight paymentState = iota + 1
	paymentConfirmed
)

// Lifecycle drives a placed order through Created → Paid → Delivered. The
// server decides every transition; the lifecycle only re-reads afterwards.
type Lifecycle struct {
	api     API
	config  ConfigSource
	calc    *pricing.Calculator
	logger  *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	payments map[string]paymentState
}

func NewLifecycle(api API, config ConfigSource, calc *pricing.Calculator, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{
		api:      api,
		config:   config,
		calc:     calc,
		logger:   logger,
		timeout:  defaultCallTimeout,
		payments: make(map[string]paymentState),
	}
}

func (l *Lifecycle) WithTimeout(d time.Duration) *Lifecycle {
	l.timeout = d
	return l
}

// Place submits the cart as a new order and clears the cart once the server
// has accepted it. It returns the server-assigned order id.
func (l *Lifecycle) Place(ctx context.Context, store CartSource) (string, error) {
	c := store.Cart()
	if d := checkout.Enter(c, checkout.StepPlaceOrder); d.Redirected {
		return "", fmt.Errorf("%w: cart is not ready to order (missing %s step)", domain.ErrValidation, d.Step)
	}

	req := domain.PlaceOrderRequest{
		OrderItems:      c.Items,
		ShippingAddress: *c.ShippingAddress,
		PaymentMethod:   c.PaymentMethod,
		Prices:          l.calc.Derive(c.Items),
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	orderID, err := l.api.CreateOrder(callCtx, req)
	if err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}

	store.Clear()
	l.logger.Info("order placed", zap.String("order_id", orderID), zap.String("total", req.Prices.TotalPrice.String()))
	return orderID, nil
}

// Refresh reads the latest confirmed state of the order.
func (l *Lifecycle) Refresh(ctx context.Context, orderID string) (*domain.Order, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	o, err := l.api.GetOrder(callCtx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return o, nil
}

// ConfirmPayment forwards a capture result to the server at most once per
// order. Repeated callbacks after a success only re-read the order.
func (l *Lifecycle) ConfirmPayment(ctx context.Context, orderID string, result domain.PaymentResult) (*domain.Order, error) {
	if !result.Succeeded() {
		return nil, fmt.Errorf("%w: capture status %q", domain.ErrPaymentDeclined, result.Status)
	}

	l.mu.Lock()
	if state := l.payments[orderID]; state != 0 {
		l.mu.Unlock()
		l.logger.Debug("duplicate payment confirmation ignored", zap.String("order_id", orderID))
		return l.Refresh(ctx, orderID)
	}
	l.payments[orderID] = paymentInFlight
	l.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	paid, err := l.api.PayOrder(callCtx, orderID, result)
	if err != nil {
		l.mu.Lock()
		if errors.Is(err, domain.ErrTransitionConflict) {
			// the server already holds a payment for this order
			l.payments[orderID] = paymentConfirmed
		} else {
			delete(l.payments, orderID)
		}
		l.mu.Unlock()
		return nil, fmt.Errorf("pay order %s: %w", orderID, err)
	}

	l.mu.Lock()
	l.payments[orderID] = paymentConfirmed
	l.mu.Unlock()
	l.logger.Info("order paid", zap.String("order_id", orderID), zap.String("transaction_id", result.TransactionID))

	fresh, err := l.Refresh(ctx, orderID)
	if err != nil {
		l.logger.Warn("refresh after payment failed", zap.String("order_id", orderID), zap.Error(err))
		return paid, nil
	}
	return fresh, nil
}

// ConfirmDelivery marks a paid order delivered. Only administrators may.
func (l *Lifecycle) ConfirmDelivery(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	if !actor.IsAdmin {
		return nil, fmt.Errorf("%w: only administrators can mark orders delivered", domain.ErrForbidden)
	}

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	delivered, err := l.api.DeliverOrder(callCtx, orderID)
	if err != nil {
		return nil, fmt.Errorf("deliver order %s: %w", orderID, err)
	}
	l.logger.Info("order delivered", zap.String("order_id", orderID), zap.String("by", actor.UserID))

	fresh, err := l.Refresh(ctx, orderID)
	if err != nil {
		l.logger.Warn("refresh after delivery failed", zap.String("order_id", orderID), zap.Error(err))
		return delivered, nil
	}
	return fresh, nil
}

// View is what the order screen renders.
type View struct {
	Order *domain.Order
	// Prices is the frozen breakdown with ItemsPrice recomputed from the frozen items.
	Prices         domain.PriceBreakdown
	PayPalClientID string
	ShowPayPal     bool
	CanDeliver     bool
}

func (v View) Status() domain.OrderStatus {
	return v.Order.Status()
}

func (v View) PurchaseRequest() (payment.PurchaseRequest, error) {
	return payment.NewPurchaseRequest(v.Order)
}

// Load runs once per order screen entry: it reads the order and the payment
// widget configuration. A missing client id hides the widget.
func (l *Lifecycle) Load(ctx context.Context, orderID string, actor domain.Actor) (*View, error) {
	o, err := l.Refresh(ctx, orderID)
	if err != nil {
		return nil, err
	}

	clientID := ""
	if !o.IsPaid {
		callCtx, cancel := context.WithTimeout(ctx, l.timeout)
		clientID, err = l.config.PayPalClientID(callCtx)
		cancel()
		if err != nil {
			l.logger.Warn("paypal config unavailable", zap.String("order_id", orderID), zap.Error(err))
			clientID = ""
		}
	}

	prices := o.Prices
	prices.ItemsPrice = itemsPrice(o.OrderItems)

	return &View{
		Order:          o,
		Prices:         prices,
		PayPalClientID: clientID,
		ShowPayPal:     !o.IsPaid && clientID != "",
		CanDeliver:     actor.IsAdmin && o.IsPaid && !o.IsDelivered,
	}, nil
}

func itemsPrice(items []domain.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Subtotal())
	}
	return sum
}

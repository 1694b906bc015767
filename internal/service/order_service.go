package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/fjod/storefront/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductLookup confirms placed items against the catalog.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// OrderService is the authoritative owner of order state transitions.
type OrderService struct {
	repo     repository.OrderRepository
	calc     *pricing.Calculator
	products ProductLookup
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*OrderService)

// WithProductLookup makes placement reject items whose price differs from the catalog.
func WithProductLookup(p ProductLookup) Option {
	return func(s *OrderService) {
		s.products = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *OrderService) {
		s.now = now
	}
}

func NewOrderService(repo repository.OrderRepository, calc *pricing.Calculator, logger *zap.Logger, opts ...Option) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &OrderService{
		repo:   repo,
		calc:   calc,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OrderService) PlaceOrder(ctx context.Context, actor domain.Actor, req domain.PlaceOrderRequest) (*domain.Order, error) {
	if actor.UserID == "" {
		return nil, fmt.Errorf("%w: anonymous callers cannot place orders", domain.ErrForbidden)
	}
	req.ShippingAddress = req.ShippingAddress.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCatalog(ctx, req.OrderItems); err != nil {
		return nil, err
	}

	prices := s.calc.Derive(req.OrderItems)
	if !prices.Equal(req.Prices) {
		return nil, fmt.Errorf("%w: price breakdown does not match items (expected total %s, got %s)",
			domain.ErrValidation, prices.TotalPrice, req.Prices.TotalPrice)
	}

	now := s.now().UTC()
	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          actor.UserID,
		OrderItems:      append([]domain.LineItem(nil), req.OrderItems...),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Prices:          prices,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", order.UserID),
		zap.String("total", prices.TotalPrice.String()))
	return order, nil
}

func (s *OrderService) checkCatalog(ctx context.Context, items []domain.LineItem) error {
	if s.products == nil {
		return nil
	}
	for _, item := range items {
		p, err := s.products.GetProduct(ctx, item.ProductID)
		if errors.Is(err, domain.ErrProductNotFound) {
			return fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		if err != nil {
			return fmt.Errorf("lookup product %s: %w", item.ProductID, err)
		}
		if !p.Price.Equal(item.Price) {
			return fmt.Errorf("%w: item %s price %s differs from catalog price %s",
				domain.ErrValidation, item.ProductID, item.Price, p.Price)
		}
	}
	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(order) {
		return nil, fmt.Errorf("%w: order %s belongs to another user", domain.ErrForbidden, id)
	}
	return order, nil
}

// ListOrders returns the caller's orders, or every order for administrators.
func (s *OrderService) ListOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	if actor.IsAdmin {
		return s.repo.ListOrders(ctx)
	}
	if actor.UserID == "" {
		return nil, fmt.Errorf("%w: anonymous callers have no orders", domain.ErrForbidden)
	}
	return s.repo.ListOrdersByUserID(ctx, actor.UserID)
}

// PayOrder records a completed capture. A paid order is never paid again.
func (s *OrderService) PayOrder(ctx context.Context, actor domain.Actor, orderID string, result domain.PaymentResult) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		return nil, fmt.Errorf("%w: order %s is already paid", domain.ErrTransitionConflict, order.ID)
	}
	if !result.Succeeded() {
		return nil, fmt.Errorf("%w: capture status %q", domain.ErrPaymentDeclined, result.Status)
	}
	if strings.TrimSpace(result.TransactionID) == "" {
		return nil, fmt.Errorf("%w: payment transaction id is required", domain.ErrValidation)
	}

	paid, err := s.repo.MarkPaid(ctx, order.ID, result, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("order paid",
		zap.String("order_id", paid.ID.String()),
		zap.String("transaction_id", result.TransactionID))
	return paid, nil
}

func (s *OrderService) DeliverOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	if !actor.IsAdmin {
		return nil, fmt.Errorf("%w: only administrators can mark orders delivered", domain.ErrForbidden)
	}
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}

	delivered, err := s.repo.MarkDelivered(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("order delivered", zap.String("order_id", delivered.ID.String()), zap.String("by", actor.UserID))
	return delivered, nil
}

func parseOrderID(orderID string) (uuid.UUID, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed order id %q", domain.ErrValidation, orderID)
	}
	return id, nil
}

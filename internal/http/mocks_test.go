package http

import (
	"context"
	"errors"

	"github.com/fjod/storefront/internal/domain"
)

// MockOrderService implements OrderService for testing
type MockOrderService struct {
	Order  *domain.Order
	Orders []*domain.Order
	Err    error

	LastActor   domain.Actor
	LastOrderID string
	LastRequest domain.PlaceOrderRequest
	LastPayment domain.PaymentResult
}

func (m *MockOrderService) PlaceOrder(_ context.Context, actor domain.Actor, req domain.PlaceOrderRequest) (*domain.Order, error) {
	m.LastActor = actor
	m.LastRequest = req
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Order, nil
}

func (m *MockOrderService) GetOrder(_ context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	m.LastActor = actor
	m.LastOrderID = orderID
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Order, nil
}

func (m *MockOrderService) ListOrders(_ context.Context, actor domain.Actor) ([]*domain.Order, error) {
	m.LastActor = actor
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Orders, nil
}

func (m *MockOrderService) PayOrder(_ context.Context, actor domain.Actor, orderID string, result domain.PaymentResult) (*domain.Order, error) {
	m.LastActor = actor
	m.LastOrderID = orderID
	m.LastPayment = result
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Order, nil
}

func (m *MockOrderService) DeliverOrder(_ context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	m.LastActor = actor
	m.LastOrderID = orderID
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Order, nil
}

// MockProductRepository implements ProductRepository for testing
type MockProductRepository struct {
	Products []*domain.Product
	Err      error
}

func (m *MockProductRepository) GetAllProducts(_ context.Context) ([]*domain.Product, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Products, nil
}

func (m *MockProductRepository) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, p := range m.Products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

var errDBDown = errors.New("connection refused")

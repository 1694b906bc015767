package order

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
)

// mockAPI behaves like the authoritative Order API, in memory.
type mockAPI struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	created   []domain.PlaceOrderRequest
	payCalls  int
	getCalls  int
	createErr error
	payErr    error
	getErr    error
}

func newMockAPI() *mockAPI {
	return &mockAPI{orders: make(map[string]*domain.Order)}
}

func (m *mockAPI) CreateOrder(_ context.Context, req domain.PlaceOrderRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created = append(m.created, req)
	o := &domain.Order{
		ID:              uuid.New(),
		OrderItems:      req.OrderItems,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Prices:          req.Prices,
	}
	m.orders[o.ID.String()] = o
	return o.ID.String(), nil
}

func (m *mockAPI) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockAPI) PayOrder(_ context.Context, orderID string, result domain.PaymentResult) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payCalls++
	if m.payErr != nil {
		return nil, m.payErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if err := o.MarkPaid(result, time.Now()); err != nil {
		return nil, err
	}
	cp := *o
	return &cp, nil
}

func (m *mockAPI) DeliverOrder(_ context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if err := o.MarkDelivered(time.Now()); err != nil {
		return nil, err
	}
	cp := *o
	return &cp, nil
}

type mockConfig struct {
	clientID string
	err      error
}

func (m mockConfig) PayPalClientID(context.Context) (string, error) {
	return m.clientID, m.err
}

type mockCart struct {
	cart    domain.Cart
	cleared bool
}

func (m *mockCart) Cart() domain.Cart {
	return m.cart.Clone()
}

func (m *mockCart) Clear() {
	m.cart = domain.Cart{}
	m.cleared = true
}

var errNetwork = errors.New("connection refused")

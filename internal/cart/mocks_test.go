package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

type mockProductSource struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	calls    int
	err      error
}

func newMockProductSource() *mockProductSource {
	return &mockProductSource{
		products: map[string]*domain.Product{
			"p1": {ID: "p1", Name: "Lamp", Image: "/images/lamp.jpg", Price: decimal.RequireFromString("500")},
			"p2": {ID: "p2", Name: "Chair", Image: "/images/chair.jpg", Price: decimal.RequireFromString("250")},
			"p3": {ID: "p3", Name: "Pen", Image: "/images/pen.jpg", Price: decimal.RequireFromString("0.10")},
		},
	}
}

func (m *mockProductSource) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

type mockCache struct {
	mu       sync.Mutex
	carts    map[string]*domain.Cart
	getCalls int
	getErr   error
	setErr   error
	deleted  []string
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, sessionID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.carts[sessionID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	cp := c.Clone()
	return &cp, nil
}

func (m *mockCache) Set(_ context.Context, sessionID string, c *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	cp := c.Clone()
	m.carts[sessionID] = &cp
	return nil
}

func (m *mockCache) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	m.deleted = append(m.deleted, sessionID)
	return nil
}

func (m *mockCache) stored(sessionID string) (*domain.Cart, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[sessionID]
	return c, ok
}

var errRedisDown = errors.New("redis down")

package service

import (
	"context"
	"errors"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/shopspring/decimal"
)

// MockProductLookup implements ProductLookup for testing
type MockProductLookup struct {
	Products map[string]*domain.Product
	Err      error
}

func (m *MockProductLookup) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func catalogWith(prices map[string]string) *MockProductLookup {
	m := &MockProductLookup{Products: make(map[string]*domain.Product)}
	for id, price := range prices {
		m.Products[id] = &domain.Product{ID: id, Price: decimal.RequireFromString(price)}
	}
	return m
}

// FailingRepository wraps the memory repository and fails creation.
type FailingRepository struct {
	*repository.MemoryRepository
	CreateErr error
}

func (f *FailingRepository) CreateOrder(ctx context.Context, o *domain.Order) error {
	if f.CreateErr != nil {
		return f.CreateErr
	}
	return f.MemoryRepository.CreateOrder(ctx, o)
}

var errDBDown = errors.New("connection reset by peer")

package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
)

// MemoryRepository keeps orders and their outbox in process. Used for local
// runs without Postgres and in tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.Order
	events []*OutboxEvent
	nextID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders: make(map[uuid.UUID]*domain.Order),
	}
}

func (m *MemoryRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	payload, err := newEventPayload(order, EventOrderCreated, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.orders[order.ID]; exists {
		return ErrDuplicateOrder
	}
	stored := cloneOrder(order)
	stored.UpdatedAt = stored.CreatedAt
	m.orders[order.ID] = stored
	m.appendEventLocked(order.ID, EventOrderCreated, payload, order.CreatedAt)
	return nil
}

func (m *MemoryRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *MemoryRepository) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	return m.list(func(o *domain.Order) bool { return o.UserID == userID }), nil
}

func (m *MemoryRepository) ListOrders(_ context.Context) ([]*domain.Order, error) {
	return m.list(func(*domain.Order) bool { return true }), nil
}

func (m *MemoryRepository) list(keep func(*domain.Order) bool) []*domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := []*domain.Order{}
	for _, o := range m.orders {
		if keep(o) {
			orders = append(orders, cloneOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}

func (m *MemoryRepository) MarkPaid(_ context.Context, id uuid.UUID, result domain.PaymentResult, at time.Time) (*domain.Order, error) {
	return m.transition(id, EventOrderPaid, at, func(o *domain.Order) error {
		return o.MarkPaid(result, at)
	})
}

func (m *MemoryRepository) MarkDelivered(_ context.Context, id uuid.UUID, at time.Time) (*domain.Order, error) {
	return m.transition(id, EventOrderDelivered, at, func(o *domain.Order) error {
		return o.MarkDelivered(at)
	})
}

func (m *MemoryRepository) transition(id uuid.UUID, eventType string, at time.Time, apply func(*domain.Order) error) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}

	// apply to a copy so a rejected transition leaves the stored order intact
	next := cloneOrder(stored)
	if err := apply(next); err != nil {
		return nil, err
	}
	payload, err := newEventPayload(next, eventType, at)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	m.orders[id] = next
	m.appendEventLocked(id, eventType, payload, at)
	return cloneOrder(next), nil
}

func (m *MemoryRepository) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []*OutboxEvent
	for _, e := range m.events {
		if e.ProcessedAt != nil {
			continue
		}
		cp := *e
		events = append(events, &cp)
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

func (m *MemoryRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.events {
		if e.ID == id {
			now := time.Now().UTC()
			e.ProcessedAt = &now
			return nil
		}
	}
	return fmt.Errorf("outbox event %d not found", id)
}

func (m *MemoryRepository) RunMigrations(*Credentials) error {
	return nil
}

func (m *MemoryRepository) Close() error {
	return nil
}

func (m *MemoryRepository) appendEventLocked(orderID uuid.UUID, eventType string, payload []byte, at time.Time) {
	m.nextID++
	m.events = append(m.events, &OutboxEvent{
		ID:          m.nextID,
		AggregateId: orderID.String(),
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   at.UTC(),
	})
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.OrderItems = append([]domain.LineItem(nil), o.OrderItems...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	if o.PaymentResult != nil {
		r := *o.PaymentResult
		cp.PaymentResult = &r
	}
	return &cp
}

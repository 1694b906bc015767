package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrOrderNotFound is the domain sentinel, so errors.Is holds across layers.
	ErrOrderNotFound  = domain.ErrOrderNotFound
	ErrDuplicateOrder = errors.New("order with this id already exists")
)

const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderDelivered = "order.delivered"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is a lifecycle event stored in the same transaction as the
// order change it describes.
type OutboxEvent struct {
	ID          int64
	AggregateId string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// OrderEvent is the JSON payload of an outbox event.
type OrderEvent struct {
	OrderID    uuid.UUID          `json:"order_id"`
	UserID     string             `json:"user_id"`
	EventType  string             `json:"event_type"`
	Status     domain.OrderStatus `json:"status"`
	TotalPrice decimal.Decimal    `json:"total_price"`
	Currency   string             `json:"currency"`
	OccurredAt time.Time          `json:"occurred_at"`
}

func newEventPayload(o *domain.Order, eventType string, at time.Time) ([]byte, error) {
	return json.Marshal(OrderEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		EventType:  eventType,
		Status:     o.Status(),
		TotalPrice: o.Prices.TotalPrice,
		Currency:   "USD",
		OccurredAt: at.UTC(),
	})
}

type OrderRepository interface {
	// CreateOrder stores the order together with its order.created event.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	ListOrders(ctx context.Context) ([]*domain.Order, error)
	// MarkPaid succeeds only for an unpaid order; otherwise it returns
	// domain.ErrTransitionConflict and leaves the order untouched.
	MarkPaid(ctx context.Context, id uuid.UUID, result domain.PaymentResult, at time.Time) (*domain.Order, error)
	// MarkDelivered succeeds only for a paid, undelivered order.
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Order, error)

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error

	RunMigrations(*Credentials) error
	Close() error
}

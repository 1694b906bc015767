package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	r "github.com/fjod/storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedOrder(t *testing.T, repo *r.MemoryRepository, pay bool) *domain.Order {
	t.Helper()
	ctx := context.Background()
	o := &domain.Order{
		ID:              uuid.New(),
		UserID:          "user-1",
		OrderItems:      []domain.LineItem{{ProductID: "p1", Price: decimal.NewFromInt(10), Quantity: 1}},
		ShippingAddress: domain.ShippingAddress{Address: "a", City: "b", PostalCode: "c", Country: "d"},
		PaymentMethod:   domain.PaymentMethodPayPal,
		Prices:          domain.PriceBreakdown{TotalPrice: decimal.NewFromInt(111)},
		CreatedAt:       time.Now(),
	}
	require.NoError(t, repo.CreateOrder(ctx, o))
	if pay {
		_, err := repo.MarkPaid(ctx, o.ID, domain.PaymentResult{TransactionID: "TXN", Status: "COMPLETED"}, time.Now())
		require.NoError(t, err)
	}
	return o
}

func TestProcessUnpublishedEvents_PublishesOnce(t *testing.T) {
	repo := r.NewMemoryRepository()
	order := seedOrder(t, repo, true)
	writer := newMockWriter()
	poller := NewOutboxPoller(repo, writer, zap.NewNop())

	assert.Equal(t, 2, poller.processUnpublishedEvents(context.Background()))
	assert.Equal(t, 0, poller.processUnpublishedEvents(context.Background()))

	require.Len(t, writer.Messages, 2)
	assert.Equal(t, order.ID.String(), string(writer.Messages[0].Key))
	require.Len(t, writer.Messages[0].Headers, 1)
	assert.Equal(t, "event_type", writer.Messages[0].Headers[0].Key)
	assert.Equal(t, r.EventOrderCreated, string(writer.Messages[0].Headers[0].Value))
	assert.Equal(t, r.EventOrderPaid, string(writer.Messages[1].Headers[0].Value))

	remaining, err := repo.GetUnprocessedEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestProcessUnpublishedEvents_StopsOnPublishFailure(t *testing.T) {
	repo := r.NewMemoryRepository()
	seedOrder(t, repo, true)
	writer := newMockWriter()
	writer.FailAfter = 1
	poller := NewOutboxPoller(repo, writer, zap.NewNop())

	assert.Equal(t, 1, poller.processUnpublishedEvents(context.Background()))

	remaining, err := repo.GetUnprocessedEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, r.EventOrderPaid, remaining[0].EventType)

	// the failed event goes out on the next tick
	writer.FailAfter = -1
	assert.Equal(t, 1, poller.processUnpublishedEvents(context.Background()))
	assert.Equal(t, 2, writer.count())
}

type failingStore struct{}

func (failingStore) GetUnprocessedEvents(context.Context, int) ([]*r.OutboxEvent, error) {
	return nil, errors.New("database connection error")
}

func (failingStore) MarkEventAsProcessed(context.Context, int64) error {
	return nil
}

func TestProcessUnpublishedEvents_StoreError(t *testing.T) {
	writer := newMockWriter()
	poller := NewOutboxPoller(failingStore{}, writer, zap.NewNop())

	assert.Equal(t, 0, poller.processUnpublishedEvents(context.Background()))
	assert.Empty(t, writer.Messages)
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := r.NewMemoryRepository()
	seedOrder(t, repo, false)
	writer := newMockWriter()
	poller := NewOutboxPoller(repo, writer, zap.NewNop())
	poller.eventTick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return writer.count() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}

	require.NoError(t, poller.Close())
	assert.True(t, writer.Closed)
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter(DefaultTopic, "localhost:9092")
	defer w.Close()

	assert.Equal(t, "order-events", w.Topic)
	assert.True(t, w.AllowAutoTopicCreation)
}

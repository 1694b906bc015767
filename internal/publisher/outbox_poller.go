package publisher

import (
	"context"
	"time"

	r "github.com/fjod/storefront/internal/repository"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultTopic = "order-events"
	batchSize    = 100
)

// EventStore is the outbox side of the order repository.
type EventStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*r.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	repo      EventStore
	writer    MessageWriter
	logger    *zap.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo EventStore, writer MessageWriter, logger *zap.Logger) *OutboxPoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: time.Second,
		repo:      repo,
		writer:    writer,
		logger:    logger,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Close flushes and closes the writer.
func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.logger.Error("failed to fetch outbox events", zap.Error(err))
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			// events of one order must stay ordered, so stop the batch here
			p.logger.Warn("failed to publish event",
				zap.Int64("event_id", event.ID),
				zap.String("event_type", event.EventType),
				zap.Error(err))
			return published
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.logger.Error("failed to mark event as processed", zap.Int64("event_id", event.ID), zap.Error(err))
			return published
		}
		published++
	}
	return published
}

func (p *OutboxPoller) publish(ctx context.Context, event *r.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateId), // order id keeps per-order ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

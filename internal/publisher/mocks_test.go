package publisher

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"
)

type MockWriter struct {
	mu        sync.Mutex
	Messages  []kafka.Message
	FailAfter int // fail every write once this many messages were accepted; <0 disables
	Closed    bool
}

func newMockWriter() *MockWriter {
	return &MockWriter{FailAfter: -1}
}

func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.FailAfter >= 0 && len(w.Messages) >= w.FailAfter {
		return errors.New("kafka: leader not available")
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *MockWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Closed = true
	return nil
}

func (w *MockWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.Messages)
}

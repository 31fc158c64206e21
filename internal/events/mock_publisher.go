package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockEventPublisher records published events in memory for tests
type MockEventPublisher struct {
	mu     sync.Mutex
	events []*Event
	logger *slog.Logger
}

// NewMockEventPublisher creates an in-memory publisher
func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{logger: logger}
}

func (p *MockEventPublisher) Publish(ctx context.Context, topic string, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Source == "" {
		event.Source = EventSource
	}
	if event.Version == "" {
		event.Version = EventVersion
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()

	p.logger.Debug("Mock event published",
		"event_type", event.Type,
		"topic", topic)

	return nil
}

func (p *MockEventPublisher) Close() error {
	return nil
}

// GetPublishedEvents returns a copy of everything published so far
func (p *MockEventPublisher) GetPublishedEvents() []*Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]*Event, len(p.events))
	copy(result, p.events)
	return result
}

// ClearEvents resets the recorded events
func (p *MockEventPublisher) ClearEvents() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

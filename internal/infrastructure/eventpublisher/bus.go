package eventpublisher

import (
	"context"
	"sync"

	"github.com/iho/finledger/internal/domain"
)

// Bus fans events out to in-process subscribers by event type. It implements
// Publisher, so it can sit behind the outbox loop: subscribers then get
// at-least-once delivery and must dedupe on (aggregate id, event type).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *domain.OutboxEvent
	buffer      int
}

// NewBus creates a new Bus. buffer sets the per-subscriber channel depth.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}

	return &Bus{
		subscribers: make(map[string][]chan *domain.OutboxEvent),
		buffer:      buffer,
	}
}

// Subscribe registers for one event type. The returned channel is closed by
// Close; a subscriber that stops draining blocks publication.
func (b *Bus) Subscribe(eventType string) <-chan *domain.OutboxEvent {
	ch := make(chan *domain.OutboxEvent, b.buffer)

	b.mu.Lock()
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	b.mu.Unlock()

	return ch
}

// Publish delivers the event to every subscriber of its type.
func (b *Bus) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	b.mu.RLock()
	channels := b.subscribers[event.EventType]
	b.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Close closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, channels := range b.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	b.subscribers = make(map[string][]chan *domain.OutboxEvent)
}

package eventpublisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/finledger/internal/domain"
	"github.com/iho/finledger/internal/usecase"
)

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	repo := &stubOutboxRepo{
		events: []*domain.OutboxEvent{{ID: "evt-1", EventType: domain.EventTypeTransactionPosted}},
	}
	pub := &stubPublisher{}
	ep := newTestPublisher(repo, pub)

	if err := ep.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch failed: %v", err)
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(pub.published))
	}
	if len(repo.marked) != 1 || repo.marked[0] != "evt-1" {
		t.Fatalf("expected event to be marked published, got %#v", repo.marked)
	}
}

func TestProcessBatchContinuesOnPublishError(t *testing.T) {
	repo := &stubOutboxRepo{
		events: []*domain.OutboxEvent{
			{ID: "evt-1", EventType: domain.EventTypeTransactionPosted},
			{ID: "evt-2", EventType: domain.EventTypeBalanceChanged},
		},
	}
	pub := &stubPublisher{
		errorsByID: map[string]error{"evt-1": errors.New("fail")},
	}
	ep := newTestPublisher(repo, pub)

	if err := ep.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch returned error: %v", err)
	}

	if len(pub.published) != 1 || pub.published[0].ID != "evt-2" {
		t.Fatalf("expected only evt-2 to be published, got %#v", pub.published)
	}
	if len(repo.marked) != 1 || repo.marked[0] != "evt-2" {
		t.Fatalf("expected only evt-2 to be marked, got %#v", repo.marked)
	}
}

func TestProcessBatchCleansUpWhenIdle(t *testing.T) {
	repo := &stubOutboxRepo{}
	ep := newTestPublisher(repo, &stubPublisher{})
	ep.retention = time.Hour

	if err := ep.processBatch(context.Background()); err != nil {
		t.Fatalf("processBatch failed: %v", err)
	}

	if repo.deleted != 1 {
		t.Fatalf("expected one cleanup pass, got %d", repo.deleted)
	}
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	repo := &stubOutboxRepo{}
	ep := newTestPublisher(repo, &stubPublisher{})
	ep.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ep.Start(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop after cancel")
	}
}

func TestBusFansOutByEventType(t *testing.T) {
	bus := NewBus(4)
	posted := bus.Subscribe(domain.EventTypeTransactionPosted)
	changed := bus.Subscribe(domain.EventTypeBalanceChanged)

	events := []*domain.OutboxEvent{
		{ID: "evt-1", EventType: domain.EventTypeTransactionPosted},
		{ID: "evt-2", EventType: domain.EventTypeBalanceChanged},
	}
	for _, event := range events {
		if err := bus.Publish(context.Background(), event); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}

	if got := <-posted; got.ID != "evt-1" {
		t.Errorf("expected evt-1 on posted channel, got %s", got.ID)
	}
	if got := <-changed; got.ID != "evt-2" {
		t.Errorf("expected evt-2 on changed channel, got %s", got.ID)
	}

	bus.Close()
	if _, ok := <-posted; ok {
		t.Error("expected posted channel to be closed")
	}
}

func TestFanoutDeliversToEveryPublisher(t *testing.T) {
	first := &stubPublisher{}
	second := &stubPublisher{}
	fanout := NewFanout(first, second)

	event := &domain.OutboxEvent{ID: "evt-1", EventType: domain.EventTypeTransactionPosted}
	if err := fanout.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if len(first.published) != 1 || len(second.published) != 1 {
		t.Fatalf("expected both publishers to receive the event, got %d and %d",
			len(first.published), len(second.published))
	}
}

func TestFanoutStopsAtFirstError(t *testing.T) {
	first := &stubPublisher{errorsByID: map[string]error{"evt-1": errors.New("broker down")}}
	second := &stubPublisher{}
	fanout := NewFanout(first, second)

	event := &domain.OutboxEvent{ID: "evt-1", EventType: domain.EventTypeTransactionPosted}
	if err := fanout.Publish(context.Background(), event); err == nil {
		t.Fatal("expected publish error")
	}

	// The event stays unpublished: the outbox retries the whole chain.
	if len(second.published) != 0 {
		t.Errorf("expected later publishers to be skipped, got %#v", second.published)
	}
}

func newTestPublisher(repo *stubOutboxRepo, pub *stubPublisher) *EventPublisher {
	return NewEventPublisher(Config{
		OutboxRepo: repo,
		Publisher:  pub,
		Logger:     zerolog.Nop(),
		BatchSize:  10,
		Interval:   5 * time.Millisecond,
	})
}

type stubOutboxRepo struct {
	events  []*domain.OutboxEvent
	marked  []string
	deleted int
}

func (s *stubOutboxRepo) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	return nil
}

func (s *stubOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if len(s.events) <= limit {
		return append([]*domain.OutboxEvent(nil), s.events...), nil
	}
	return append([]*domain.OutboxEvent(nil), s.events[:limit]...), nil
}

func (s *stubOutboxRepo) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	s.marked = append(s.marked, id)
	return nil
}

func (s *stubOutboxRepo) DeletePublished(ctx context.Context, before time.Time) error {
	s.deleted++
	return nil
}

type stubPublisher struct {
	published  []*domain.OutboxEvent
	errorsByID map[string]error
}

func (s *stubPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	if err := s.errorsByID[event.ID]; err != nil {
		return err
	}
	s.published = append(s.published, event)
	return nil
}

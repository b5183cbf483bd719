package eventpublisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/finledger/internal/domain"
	"github.com/iho/finledger/internal/usecase"
)

// EventPublisher drains the outbox and hands events to a Publisher. Delivery
// is at-least-once: an event is marked published only after a successful
// Publish, so a crash in between replays it.
type EventPublisher struct {
	outboxRepo usecase.OutboxRepository
	publisher  Publisher
	logger     zerolog.Logger
	batchSize  int
	interval   time.Duration
	retention  time.Duration
}

// Publisher delivers events to subscribing collaborators.
type Publisher interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
}

// Config for EventPublisher.
type Config struct {
	OutboxRepo usecase.OutboxRepository
	Publisher  Publisher
	Logger     zerolog.Logger
	BatchSize  int
	Interval   time.Duration
	// Retention bounds how long delivered events are kept before cleanup.
	// Zero disables cleanup.
	Retention time.Duration
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(cfg Config) *EventPublisher {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}

	return &EventPublisher{
		outboxRepo: cfg.OutboxRepo,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger,
		batchSize:  cfg.BatchSize,
		interval:   cfg.Interval,
		retention:  cfg.Retention,
	}
}

// Start runs the publishing loop until the context is cancelled.
func (ep *EventPublisher) Start(ctx context.Context) error {
	ep.logger.Info().Int("batch_size", ep.batchSize).Dur("interval", ep.interval).Msg("event publisher started")

	ticker := time.NewTicker(ep.interval)
	defer ticker.Stop()

	if err := ep.processBatch(ctx); err != nil {
		ep.logger.Error().Err(err).Msg("failed to process outbox batch")
	}

	for {
		select {
		case <-ctx.Done():
			ep.logger.Info().Msg("event publisher shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := ep.processBatch(ctx); err != nil {
				ep.logger.Error().Err(err).Msg("failed to process outbox batch")
			}
		}
	}
}

// processBatch publishes one batch of pending events. A failed event is left
// unpublished and retried next tick; later events still go out, so consumers
// must tolerate reordering across failures.
func (ep *EventPublisher) processBatch(ctx context.Context) error {
	events, err := ep.outboxRepo.GetUnpublished(ctx, ep.batchSize)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		ep.cleanup(ctx)
		return nil
	}

	for _, event := range events {
		if err := ep.publisher.Publish(ctx, event); err != nil {
			ep.logger.Error().Err(err).
				Str("event_id", event.ID).
				Str("event_type", event.EventType).
				Msg("failed to publish event, will retry")

			continue
		}

		if err := ep.outboxRepo.MarkPublished(ctx, event.ID, time.Now().UTC()); err != nil {
			// The event will be re-delivered; consumers dedupe on
			// (aggregate id, event type).
			ep.logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to mark event published")
		}
	}

	return nil
}

func (ep *EventPublisher) cleanup(ctx context.Context) {
	if ep.retention == 0 {
		return
	}

	cutoff := time.Now().UTC().Add(-ep.retention)
	if err := ep.outboxRepo.DeletePublished(ctx, cutoff); err != nil {
		ep.logger.Error().Err(err).Msg("failed to delete published events")
	}
}

// Fanout delivers each event to every publisher in registration order. The
// first failure aborts the event, leaving it unpublished so the outbox loop
// retries it against the whole chain; publishers must tolerate re-delivery.
type Fanout struct {
	publishers []Publisher
}

// NewFanout creates a Fanout over the given publishers.
func NewFanout(publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers}
}

// Publish delivers the event to every publisher, stopping at the first error.
func (f *Fanout) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	for _, p := range f.publishers {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}

	return nil
}

// LogPublisher writes events to the log. Used where no broker is wired up.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	p.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("aggregate_type", event.AggregateType).
		Str("aggregate_id", event.AggregateID).
		RawJSON("payload", payload).
		Msg("event published")

	return nil
}

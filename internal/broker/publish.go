package broker

import (
	"context"

	"github.com/google/uuid"

	"github.com/Runic-Dev/ventrix/internal/domain"
	"github.com/Runic-Dev/ventrix/internal/logger"
	"github.com/Runic-Dev/ventrix/internal/storage"
	"github.com/Runic-Dev/ventrix/internal/validate"
)

// Publisher implements the publish entry point (spec.md §4.1): assign
// an id, validate the payload against the event type's schema, persist
// the event, then enqueue it for delivery.
type Publisher struct {
	store    storage.Storage
	queue    *Queue
	validate validate.Predicate
	log      *logger.Logger
}

// NewPublisher wires a Publisher against store and queue. validator
// may be nil, in which case validate.Default is used.
func NewPublisher(store storage.Storage, queue *Queue, validator validate.Predicate, log *logger.Logger) *Publisher {
	if validator == nil {
		validator = validate.Default
	}
	return &Publisher{store: store, queue: queue, validate: validator, log: log}
}

// Publish runs the full publish contract. The returned error is
// non-nil only for internal failures (§6.1: 500) such as a storage
// write failing; a schema-missing or payload-mismatch rejection is
// reported through the result's Outcome (§6.1: 400), not an error.
func (p *Publisher) Publish(ctx context.Context, eventType, payload string) (*domain.PublishResult, error) {
	event := &domain.PublishedEvent{
		ID:        uuid.New().String(),
		EventType: eventType,
		Payload:   payload,
	}

	schema, err := p.store.GetSchemaForEventType(ctx, eventType)
	if err != nil {
		p.log.Warn("publish rejected: schema not found", "event_type", eventType)
		return &domain.PublishResult{
			Outcome: domain.OutcomeRejected,
			Message: "no schema registered for event type " + eventType,
		}, nil
	}

	if !p.validate(payload, schema) {
		p.log.Warn("publish rejected: payload does not match schema", "event_type", eventType)
		return &domain.PublishResult{
			Outcome:        domain.OutcomeRejected,
			Message:        "payload does not match the registered schema",
			ExpectedSchema: schema,
		}, nil
	}

	if err := p.store.SavePublishedEvent(ctx, event); err != nil {
		p.log.Error("publish failed: could not persist event", "event_type", eventType, "error", err.Error())
		return nil, domain.Persistence("failed to persist event", err)
	}

	p.queue.Send(*event)

	p.log.Info("event published and enqueued", "event_id", event.ID, "event_type", eventType)
	return &domain.PublishResult{
		Outcome: domain.OutcomePublishedAndSaved,
		Event:   event,
		Message: "the event was successfully processed",
	}, nil
}

package broker

import (
	"context"
	"testing"

	"github.com/Runic-Dev/ventrix/internal/domain"
	"github.com/Runic-Dev/ventrix/internal/logger"
	"github.com/Runic-Dev/ventrix/internal/storage"
)

func newTestPublisher(t *testing.T) (*Publisher, *storage.Memory, *Queue) {
	t.Helper()
	store := storage.NewMemory()
	ctx := context.Background()

	if _, err := store.RegisterEventType(ctx, storage.RegisterEventTypeRequest{
		Name:          "invoice.created",
		PayloadSchema: `{"type":"object","properties":{"amount":{"type":"number"}},"required":["amount"]}`,
	}); err != nil {
		t.Fatalf("register event type: %v", err)
	}

	queue := NewQueue(4)
	publisher := NewPublisher(store, queue, nil, logger.New("test"))
	return publisher, store, queue
}

func TestPublishSuccess(t *testing.T) {
	publisher, _, queue := newTestPublisher(t)

	result, err := publisher.Publish(context.Background(), "invoice.created", `{"amount":42}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != domain.OutcomePublishedAndSaved {
		t.Fatalf("expected published_and_saved, got %s (%s)", result.Outcome, result.Message)
	}
	if result.Event == nil || result.Event.ID == "" {
		t.Fatalf("expected event with assigned id")
	}

	select {
	case enqueued := <-queue.Receive():
		if enqueued.ID != result.Event.ID {
			t.Fatalf("enqueued event id mismatch")
		}
	default:
		t.Fatalf("expected event to be enqueued")
	}
}

func TestPublishUnknownEventTypeIsRejected(t *testing.T) {
	publisher, _, _ := newTestPublisher(t)

	result, err := publisher.Publish(context.Background(), "does.not.exist", `{}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != domain.OutcomeRejected {
		t.Fatalf("expected rejected, got %s", result.Outcome)
	}
}

func TestPublishSchemaMismatchIsRejectedWithExpectedSchema(t *testing.T) {
	publisher, _, _ := newTestPublisher(t)

	result, err := publisher.Publish(context.Background(), "invoice.created", `{"amount":"not a number"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != domain.OutcomeRejected {
		t.Fatalf("expected rejected, got %s", result.Outcome)
	}
	if result.ExpectedSchema == "" {
		t.Fatalf("expected ExpectedSchema to be populated on schema mismatch")
	}
}

func TestPublishDoesNotEnqueueOnRejection(t *testing.T) {
	publisher, _, queue := newTestPublisher(t)

	if _, err := publisher.Publish(context.Background(), "does.not.exist", `{}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-queue.Receive():
		t.Fatalf("did not expect an event to be enqueued on rejection")
	default:
	}
}

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Runic-Dev/ventrix/internal/domain"
)

func TestRegisterServiceRejectsDuplicate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.RegisterService(ctx, RegisterServiceRequest{Name: "billing", URL: "http://billing"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := m.RegisterService(ctx, RegisterServiceRequest{Name: "billing", URL: "http://billing-2"})
	if domain.KindOf(err) != domain.KindAlreadyExists {
		t.Fatalf("expected already_exists error, got %v", err)
	}
}

func TestGetSubscribersJoinsServiceAndSubscription(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.RegisterService(ctx, RegisterServiceRequest{Name: "billing", URL: "http://billing:9000"}); err != nil {
		t.Fatalf("register service: %v", err)
	}
	if _, err := m.RegisterEventType(ctx, RegisterEventTypeRequest{Name: "invoice.created", PayloadSchema: `{"type":"object"}`}); err != nil {
		t.Fatalf("register event type: %v", err)
	}
	if _, err := m.RegisterServiceForEventType(ctx, RegisterSubscriptionRequest{
		ServiceName:   "billing",
		EventTypeName: "invoice.created",
		Endpoint:      "/hooks/invoice",
	}); err != nil {
		t.Fatalf("register subscription: %v", err)
	}

	subs, err := m.GetSubscribers(ctx, "invoice.created")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscriber, got %d", len(subs))
	}
	if subs[0].ServiceURL != "http://billing:9000" || subs[0].Endpoint != "/hooks/invoice" {
		t.Fatalf("unexpected subscriber: %+v", subs[0])
	}
}

func TestGetSubscribersUnknownEventTypeReturnsEmpty(t *testing.T) {
	m := NewMemory()
	subs, err := m.GetSubscribers(context.Background(), "nothing.here")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("expected no subscribers, got %d", len(subs))
	}
}

func TestGetFailedEventsRespectsCapAndRetryTime(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	event := &domain.PublishedEvent{ID: "evt-1", EventType: "invoice.created", Payload: `{}`}
	if err := m.SavePublishedEvent(ctx, event); err != nil {
		t.Fatalf("save event: %v", err)
	}
	if err := m.AddFailedEvent(ctx, event); err != nil {
		t.Fatalf("add failed event: %v", err)
	}

	// Not yet due: retry_time is in the future by default.
	due, err := m.GetFailedEvents(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected no due events yet, got %d", len(due))
	}

	// Make it due.
	if err := m.UpdateRetryTime(ctx, "evt-1", time.Now().UTC().Add(-time.Minute), 1); err != nil {
		t.Fatalf("update retry time: %v", err)
	}

	due, err = m.GetFailedEvents(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due event, got %d", len(due))
	}
	if !due[0].IsRetry() || due[0].RetryDetails.RetryCount != 1 {
		t.Fatalf("expected retry details populated, got %+v", due[0])
	}

	// Exhausted cap: excluded.
	due, err = m.GetFailedEvents(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected event at cap to be excluded, got %d", len(due))
	}
}

func TestResolveFailedEventExcludesFromPoll(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	event := &domain.PublishedEvent{ID: "evt-2", EventType: "invoice.created", Payload: `{}`}
	if err := m.SavePublishedEvent(ctx, event); err != nil {
		t.Fatalf("save event: %v", err)
	}
	if err := m.AddFailedEvent(ctx, event); err != nil {
		t.Fatalf("add failed event: %v", err)
	}
	if err := m.UpdateRetryTime(ctx, "evt-2", time.Now().UTC().Add(-time.Minute), 0); err != nil {
		t.Fatalf("update retry time: %v", err)
	}
	if err := m.ResolveFailedEvent(ctx, "evt-2"); err != nil {
		t.Fatalf("resolve failed event: %v", err)
	}

	due, err := m.GetFailedEvents(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected resolved event to be excluded, got %d", len(due))
	}
}

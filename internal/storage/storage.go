// Package storage declares the persistence boundary the broker core
// consumes (§4.4 of the spec) and provides two implementations: an
// in-memory store for tests and local runs, and a PostgreSQL-backed
// store for production, selected by the "persistence" feature flag.
package storage

import (
	"context"
	"time"

	"github.com/Runic-Dev/ventrix/internal/domain"
)

// RegisterServiceRequest is the input to RegisterService.
type RegisterServiceRequest struct {
	Name string
	URL  string
}

// RegisterEventTypeRequest is the input to RegisterEventType.
type RegisterEventTypeRequest struct {
	Name          string
	Description   string
	PayloadSchema string
}

// RegisterSubscriptionRequest is the input to RegisterServiceForEventType.
type RegisterSubscriptionRequest struct {
	ServiceName   string
	EventTypeName string
	Endpoint      string
}

// Storage is the persistence boundary the broker core is built
// against. Every operation may fail with a transport-level error
// distinct from a logical not-found, modeled with *domain.Error.
type Storage interface {
	RegisterService(ctx context.Context, req RegisterServiceRequest) (*domain.Service, error)
	RemoveService(ctx context.Context, name string) error
	GetService(ctx context.Context, name string) (*domain.Service, error)

	RegisterEventType(ctx context.Context, req RegisterEventTypeRequest) (*domain.EventType, error)
	GetSchemaForEventType(ctx context.Context, eventType string) (string, error)

	RegisterServiceForEventType(ctx context.Context, req RegisterSubscriptionRequest) (*domain.Subscription, error)
	GetSubscribers(ctx context.Context, eventType string) ([]domain.Subscriber, error)

	SavePublishedEvent(ctx context.Context, event *domain.PublishedEvent) error
	FulfilEvent(ctx context.Context, eventID string) error

	AddFailedEvent(ctx context.Context, event *domain.PublishedEvent) error
	UpdateRetryTime(ctx context.Context, eventID string, retryTime time.Time, retries int) error
	ResolveFailedEvent(ctx context.Context, eventID string) error

	// GetFailedEvents returns only events with retries < cap and
	// retry_time <= now, reconstructed with RetryDetails populated
	// from the failed_events row.
	GetFailedEvents(ctx context.Context, retryCap int) ([]domain.PublishedEvent, error)
}

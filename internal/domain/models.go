// Package domain holds the data model shared by the broker core, the
// storage drivers, and the HTTP control plane: services, event types,
// subscriptions, and the published/failed event records that flow
// through the dispatch pipeline.
package domain

import "time"

// Service is a named external HTTP endpoint that may subscribe to
// event types.
type Service struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// EventType is a named schema descriptor governing payloads shaped
// like it. PayloadSchema is a JSON-Schema-like document stored as a
// string (the broker never needs to traverse it, only hand it to the
// validator and echo it back to a caller).
type EventType struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	PayloadSchema string `json:"payload_definition"`
}

// Subscription associates an event type with a service and the path
// on that service's base URL that should receive deliveries.
type Subscription struct {
	ID          string `json:"id"`
	EventTypeID string `json:"event_type_id"`
	ServiceID   string `json:"service_id"`
	Endpoint    string `json:"endpoint"`
}

// Subscriber is the resolved (service, endpoint) pair the delivery
// worker needs to build a destination URL; it is what
// Storage.GetSubscribers returns, already joined against services.
type Subscriber struct {
	ServiceName string `json:"service_name"`
	ServiceURL  string `json:"service_url"`
	Endpoint    string `json:"endpoint"`
}

// RetryDetails is present on a PublishedEvent only when it is in
// flight as a retry attempt, populated from the event's failed_events
// row.
type RetryDetails struct {
	RetryCount int       `json:"retry_count"`
	RetryTime  time.Time `json:"retry_time"`
}

// PublishedEvent is the canonical event record. It is the payload
// that travels the dispatch channel and the wire body POSTed to
// subscribers (see §6.2 of the spec: id, event_type, payload,
// retry_details).
type PublishedEvent struct {
	ID           string        `json:"id"`
	EventType    string        `json:"event_type"`
	Payload      string        `json:"payload"`
	FulfilledAt  *time.Time    `json:"-"`
	RetryDetails *RetryDetails `json:"retry_details"`
}

// IsRetry reports whether this event is in flight as a retry attempt
// rather than a first delivery cycle.
func (e *PublishedEvent) IsRetry() bool {
	return e.RetryDetails != nil
}

// FailedEvent is the bookkeeping row created the first time an
// event's delivery cycle sees a non-2xx response, and updated on every
// subsequent retry attempt until it resolves or exhausts its cap.
type FailedEvent struct {
	ID         string     `json:"id"`
	EventID    string     `json:"event_id"`
	RetryTime  time.Time  `json:"retry_time"`
	Retries    int16      `json:"retries"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Outcome is the typed result of a publish call.
type Outcome string

const (
	OutcomePublishedAndSaved Outcome = "published_and_saved"
	OutcomePublishedNotSaved Outcome = "published_not_saved"
	OutcomeRejected          Outcome = "rejected"
)

// PublishResult is returned by the publish entry point to the control
// plane. Message carries caller-facing detail; for a schema mismatch
// rejection, ExpectedSchema is populated per spec.md §4.1 step 3.
type PublishResult struct {
	Outcome        Outcome
	Event          *PublishedEvent
	Message        string
	ExpectedSchema string
}

package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Runic-Dev/ventrix/internal/domain"
)

// Memory is an in-process Storage implementation, used for tests and
// for local runs with the "persistence" feature flag off. It is safe
// for concurrent use from the HTTP layer, the delivery worker, and the
// retry scheduler.
type Memory struct {
	mu sync.RWMutex

	services   map[string]domain.Service
	eventTypes map[string]domain.EventType
	// subscriptions maps event type name to the subscribers registered
	// against it, in registration order.
	subscriptions map[string][]domain.Subscription
	published     map[string]domain.PublishedEvent
	failed        map[string]domain.FailedEvent // keyed by event id
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		services:      make(map[string]domain.Service),
		eventTypes:    make(map[string]domain.EventType),
		subscriptions: make(map[string][]domain.Subscription),
		published:     make(map[string]domain.PublishedEvent),
		failed:        make(map[string]domain.FailedEvent),
	}
}

func (m *Memory) RegisterService(_ context.Context, req RegisterServiceRequest) (*domain.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.services[req.Name]; exists {
		return nil, domain.AlreadyExists("service " + req.Name + " already registered")
	}

	service := domain.Service{ID: uuid.New().String(), Name: req.Name, URL: req.URL}
	m.services[req.Name] = service
	return &service, nil
}

func (m *Memory) RemoveService(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.services[name]; !exists {
		return domain.NotFound("service " + name + " not found")
	}
	delete(m.services, name)
	return nil
}

func (m *Memory) GetService(_ context.Context, name string) (*domain.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	service, exists := m.services[name]
	if !exists {
		return nil, domain.NotFound("service " + name + " not found")
	}
	return &service, nil
}

func (m *Memory) RegisterEventType(_ context.Context, req RegisterEventTypeRequest) (*domain.EventType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.eventTypes[req.Name]; exists {
		return nil, domain.AlreadyExists("event type " + req.Name + " already registered")
	}

	eventType := domain.EventType{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Description:   req.Description,
		PayloadSchema: req.PayloadSchema,
	}
	m.eventTypes[req.Name] = eventType
	return &eventType, nil
}

func (m *Memory) GetSchemaForEventType(_ context.Context, eventType string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	et, exists := m.eventTypes[eventType]
	if !exists {
		return "", domain.NotFound("event type " + eventType + " not found")
	}
	return et.PayloadSchema, nil
}

func (m *Memory) RegisterServiceForEventType(_ context.Context, req RegisterSubscriptionRequest) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	et, exists := m.eventTypes[req.EventTypeName]
	if !exists {
		return nil, domain.NotFound("event type " + req.EventTypeName + " not found")
	}
	svc, exists := m.services[req.ServiceName]
	if !exists {
		return nil, domain.NotFound("service " + req.ServiceName + " not found")
	}

	sub := domain.Subscription{
		ID:          uuid.New().String(),
		EventTypeID: et.ID,
		ServiceID:   svc.ID,
		Endpoint:    req.Endpoint,
	}
	m.subscriptions[req.EventTypeName] = append(m.subscriptions[req.EventTypeName], sub)
	return &sub, nil
}

func (m *Memory) GetSubscribers(_ context.Context, eventType string) ([]domain.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := m.subscriptions[eventType]
	result := make([]domain.Subscriber, 0, len(subs))
	for _, sub := range subs {
		svc := findServiceByID(m.services, sub.ServiceID)
		if svc == nil {
			continue
		}
		result = append(result, domain.Subscriber{
			ServiceName: svc.Name,
			ServiceURL:  svc.URL,
			Endpoint:    sub.Endpoint,
		})
	}
	return result, nil
}

func findServiceByID(services map[string]domain.Service, id string) *domain.Service {
	for _, svc := range services {
		if svc.ID == id {
			return &svc
		}
	}
	return nil
}

func (m *Memory) SavePublishedEvent(_ context.Context, event *domain.PublishedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.published[event.ID] = *event
	return nil
}

func (m *Memory) FulfilEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, exists := m.published[eventID]
	if !exists {
		return domain.NotFound("published event " + eventID + " not found")
	}
	now := time.Now().UTC()
	event.FulfilledAt = &now
	m.published[eventID] = event
	return nil
}

func (m *Memory) AddFailedEvent(_ context.Context, event *domain.PublishedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.failed[event.ID]; exists {
		// Tolerate a duplicate first-failure call; keep the existing row.
		return nil
	}
	m.failed[event.ID] = domain.FailedEvent{
		ID:        uuid.New().String(),
		EventID:   event.ID,
		Retries:   0,
		RetryTime: time.Now().UTC().Add(1 * time.Minute),
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (m *Memory) UpdateRetryTime(_ context.Context, eventID string, retryTime time.Time, retries int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fe, exists := m.failed[eventID]
	if !exists {
		return domain.NotFound("failed event for " + eventID + " not found")
	}
	fe.RetryTime = retryTime
	fe.Retries = int16(retries)
	m.failed[eventID] = fe
	return nil
}

func (m *Memory) ResolveFailedEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fe, exists := m.failed[eventID]
	if !exists {
		return domain.NotFound("failed event for " + eventID + " not found")
	}
	now := time.Now().UTC()
	fe.ResolvedAt = &now
	m.failed[eventID] = fe
	return nil
}

func (m *Memory) GetFailedEvents(_ context.Context, retryCap int) ([]domain.PublishedEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now().UTC()
	due := make([]domain.FailedEvent, 0)
	for _, fe := range m.failed {
		if fe.ResolvedAt != nil {
			continue
		}
		if int(fe.Retries) >= retryCap {
			continue
		}
		if fe.RetryTime.After(now) {
			continue
		}
		due = append(due, fe)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RetryTime.Before(due[j].RetryTime) })

	events := make([]domain.PublishedEvent, 0, len(due))
	for _, fe := range due {
		event, exists := m.published[fe.EventID]
		if !exists {
			continue
		}
		event.RetryDetails = &domain.RetryDetails{
			RetryCount: int(fe.Retries),
			RetryTime:  fe.RetryTime,
		}
		events = append(events, event)
	}
	return events, nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Runic-Dev/ventrix/internal/domain"
)

// Postgres is the production Storage implementation, backed by the
// schema in §6.3: services, event_types, event_type_to_service,
// events_published, failed_events.
type Postgres struct {
	conn *sql.DB
}

// NewPostgres opens a connection pool against connectionString and
// ensures the broker's tables exist.
func NewPostgres(ctx context.Context, connectionString string) (*Postgres, error) {
	conn, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Postgres{conn: conn}
	if err := store.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (p *Postgres) Close() error {
	return p.conn.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.conn.PingContext(ctx)
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS services (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			url VARCHAR(512) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS event_types (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			payload_definition TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS event_type_to_service (
			id UUID PRIMARY KEY,
			event_type_id UUID NOT NULL REFERENCES event_types(id),
			service_id UUID NOT NULL REFERENCES services(id),
			endpoint VARCHAR(512) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events_published (
			id UUID PRIMARY KEY,
			event_type VARCHAR(255) NOT NULL,
			payload TEXT NOT NULL,
			fulfilled_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS failed_events (
			id UUID PRIMARY KEY,
			event_id UUID NOT NULL REFERENCES events_published(id),
			retry_time TIMESTAMP NOT NULL,
			retries SMALLINT NOT NULL DEFAULT 0,
			resolved_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failed_events_due ON failed_events(retry_time) WHERE resolved_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_event_type_to_service_type ON event_type_to_service(event_type_id)`,
	}

	for _, stmt := range statements {
		if _, err := p.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) RegisterService(ctx context.Context, req RegisterServiceRequest) (*domain.Service, error) {
	service := domain.Service{ID: uuid.New().String(), Name: req.Name, URL: req.URL}

	_, err := p.conn.ExecContext(ctx,
		`INSERT INTO services (id, name, url) VALUES ($1, $2, $3)`,
		service.ID, service.Name, service.URL,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.AlreadyExists("service " + req.Name + " already registered")
		}
		return nil, domain.Persistence("failed to register service", err)
	}
	return &service, nil
}

func (p *Postgres) RemoveService(ctx context.Context, name string) error {
	result, err := p.conn.ExecContext(ctx, `DELETE FROM services WHERE name = $1`, name)
	if err != nil {
		return domain.Persistence("failed to remove service", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return domain.Persistence("failed to confirm service removal", err)
	}
	if rows == 0 {
		return domain.NotFound("service " + name + " not found")
	}
	return nil
}

func (p *Postgres) GetService(ctx context.Context, name string) (*domain.Service, error) {
	var service domain.Service
	err := p.conn.QueryRowContext(ctx,
		`SELECT id, name, url FROM services WHERE name = $1`, name,
	).Scan(&service.ID, &service.Name, &service.URL)

	if err == sql.ErrNoRows {
		return nil, domain.NotFound("service " + name + " not found")
	}
	if err != nil {
		return nil, domain.Persistence("failed to get service", err)
	}
	return &service, nil
}

func (p *Postgres) RegisterEventType(ctx context.Context, req RegisterEventTypeRequest) (*domain.EventType, error) {
	eventType := domain.EventType{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Description:   req.Description,
		PayloadSchema: req.PayloadSchema,
	}

	_, err := p.conn.ExecContext(ctx,
		`INSERT INTO event_types (id, name, description, payload_definition) VALUES ($1, $2, $3, $4)`,
		eventType.ID, eventType.Name, eventType.Description, eventType.PayloadSchema,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.AlreadyExists("event type " + req.Name + " already registered")
		}
		return nil, domain.Persistence("failed to register event type", err)
	}
	return &eventType, nil
}

func (p *Postgres) GetSchemaForEventType(ctx context.Context, eventType string) (string, error) {
	var schema string
	err := p.conn.QueryRowContext(ctx,
		`SELECT payload_definition FROM event_types WHERE name = $1`, eventType,
	).Scan(&schema)

	if err == sql.ErrNoRows {
		return "", domain.NotFound("event type " + eventType + " not found")
	}
	if err != nil {
		return "", domain.Persistence("failed to get schema for event type", err)
	}
	return schema, nil
}

func (p *Postgres) RegisterServiceForEventType(ctx context.Context, req RegisterSubscriptionRequest) (*domain.Subscription, error) {
	var eventTypeID string
	err := p.conn.QueryRowContext(ctx,
		`SELECT id FROM event_types WHERE name = $1`, req.EventTypeName,
	).Scan(&eventTypeID)
	if err == sql.ErrNoRows {
		return nil, domain.NotFound("event type " + req.EventTypeName + " not found")
	}
	if err != nil {
		return nil, domain.Persistence("failed to resolve event type", err)
	}

	var serviceID string
	err = p.conn.QueryRowContext(ctx,
		`SELECT id FROM services WHERE name = $1`, req.ServiceName,
	).Scan(&serviceID)
	if err == sql.ErrNoRows {
		return nil, domain.NotFound("service " + req.ServiceName + " not found")
	}
	if err != nil {
		return nil, domain.Persistence("failed to resolve service", err)
	}

	sub := domain.Subscription{
		ID:          uuid.New().String(),
		EventTypeID: eventTypeID,
		ServiceID:   serviceID,
		Endpoint:    req.Endpoint,
	}
	_, err = p.conn.ExecContext(ctx,
		`INSERT INTO event_type_to_service (id, event_type_id, service_id, endpoint) VALUES ($1, $2, $3, $4)`,
		sub.ID, sub.EventTypeID, sub.ServiceID, sub.Endpoint,
	)
	if err != nil {
		return nil, domain.Persistence("failed to register subscription", err)
	}
	return &sub, nil
}

func (p *Postgres) GetSubscribers(ctx context.Context, eventType string) ([]domain.Subscriber, error) {
	rows, err := p.conn.QueryContext(ctx, `
		SELECT s.name, s.url, ets.endpoint
		FROM event_type_to_service ets
		JOIN event_types et ON et.id = ets.event_type_id
		JOIN services s ON s.id = ets.service_id
		WHERE et.name = $1
		ORDER BY ets.id ASC`, eventType)
	if err != nil {
		return nil, domain.Persistence("failed to get subscribers", err)
	}
	defer rows.Close()

	var subscribers []domain.Subscriber
	for rows.Next() {
		var sub domain.Subscriber
		if err := rows.Scan(&sub.ServiceName, &sub.ServiceURL, &sub.Endpoint); err != nil {
			return nil, domain.Persistence("failed to scan subscriber", err)
		}
		subscribers = append(subscribers, sub)
	}
	return subscribers, rows.Err()
}

func (p *Postgres) SavePublishedEvent(ctx context.Context, event *domain.PublishedEvent) error {
	_, err := p.conn.ExecContext(ctx,
		`INSERT INTO events_published (id, event_type, payload, fulfilled_at) VALUES ($1, $2, $3, NULL)`,
		event.ID, event.EventType, event.Payload,
	)
	if err != nil {
		return domain.Persistence("failed to save published event", err)
	}
	return nil
}

func (p *Postgres) FulfilEvent(ctx context.Context, eventID string) error {
	result, err := p.conn.ExecContext(ctx,
		`UPDATE events_published SET fulfilled_at = NOW() WHERE id = $1`, eventID)
	if err != nil {
		return domain.Persistence("failed to fulfil event", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return domain.Persistence("failed to confirm fulfilment", err)
	}
	if rows == 0 {
		return domain.NotFound("published event " + eventID + " not found")
	}
	return nil
}

func (p *Postgres) AddFailedEvent(ctx context.Context, event *domain.PublishedEvent) error {
	// A second first-failure call for the same event keeps the existing
	// row, as the in-memory store does.
	_, err := p.conn.ExecContext(ctx, `
		INSERT INTO failed_events (id, event_id, retry_time, retries, created_at)
		SELECT $1::uuid, $2::uuid, NOW() + INTERVAL '1 minute', 0, NOW()
		WHERE NOT EXISTS (SELECT 1 FROM failed_events WHERE event_id = $2::uuid)`,
		uuid.New().String(), event.ID,
	)
	if err != nil {
		return domain.Persistence("failed to add failed event", err)
	}
	return nil
}

func (p *Postgres) UpdateRetryTime(ctx context.Context, eventID string, retryTime time.Time, retries int) error {
	_, err := p.conn.ExecContext(ctx, `
		UPDATE failed_events SET retry_time = $1, retries = $2
		WHERE event_id = $3 AND resolved_at IS NULL`,
		retryTime, retries, eventID,
	)
	if err != nil {
		return domain.Persistence("failed to update retry time", err)
	}
	return nil
}

func (p *Postgres) ResolveFailedEvent(ctx context.Context, eventID string) error {
	_, err := p.conn.ExecContext(ctx, `
		UPDATE failed_events SET resolved_at = NOW()
		WHERE event_id = $1 AND resolved_at IS NULL`, eventID)
	if err != nil {
		return domain.Persistence("failed to resolve failed event", err)
	}
	return nil
}

func (p *Postgres) GetFailedEvents(ctx context.Context, retryCap int) ([]domain.PublishedEvent, error) {
	rows, err := p.conn.QueryContext(ctx, `
		SELECT ep.id, ep.event_type, ep.payload, fe.retries, fe.retry_time
		FROM failed_events fe
		JOIN events_published ep ON ep.id = fe.event_id
		WHERE fe.resolved_at IS NULL AND fe.retries < $1 AND fe.retry_time <= NOW()
		ORDER BY fe.retry_time ASC`, retryCap)
	if err != nil {
		return nil, domain.Persistence("failed to get failed events", err)
	}
	defer rows.Close()

	var events []domain.PublishedEvent
	for rows.Next() {
		var event domain.PublishedEvent
		var retries int16
		var retryTime time.Time
		if err := rows.Scan(&event.ID, &event.EventType, &event.Payload, &retries, &retryTime); err != nil {
			return nil, domain.Persistence("failed to scan failed event", err)
		}
		event.RetryDetails = &domain.RetryDetails{RetryCount: int(retries), RetryTime: retryTime}
		events = append(events, event)
	}
	return events, rows.Err()
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

package api

import "github.com/Runic-Dev/ventrix/internal/domain"

// ErrorResponse is the JSON shape of every error reply except a
// rejected publish, which answers 400 with a PublishResponse.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RegisterServiceRequest is the body of POST /api/service/register.
type RegisterServiceRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ServiceDetails is the nested envelope RegisterServiceResponse echoes
// a registered service's callback URL under.
type ServiceDetails struct {
	Endpoint string `json:"endpoint"`
}

// RegisterServiceResponse is the body of a successful POST
// /api/service/register.
type RegisterServiceResponse struct {
	Name           string         `json:"name"`
	ServiceDetails ServiceDetails `json:"service_details"`
}

// RemoveServiceRequest is the body of POST /api/service/remove.
type RemoveServiceRequest struct {
	Name string `json:"name"`
}

// RegisterEventTypeRequest is the body of POST /api/events/register.
type RegisterEventTypeRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	PayloadSchema string `json:"payload_definition"`
}

// PublishRequest is the body of POST /api/events/publish.
type PublishRequest struct {
	EventType string `json:"event_type"`
	Payload   string `json:"payload"`
}

// PublishResponse mirrors domain.PublishResult for the wire.
type PublishResponse struct {
	Outcome        domain.Outcome        `json:"outcome"`
	Event          *domain.PublishedEvent `json:"event,omitempty"`
	Message        string                `json:"message"`
	ExpectedSchema string                `json:"expected_schema,omitempty"`
}

// ListenRequest is the body of POST /api/events/listen.
type ListenRequest struct {
	ServiceName   string `json:"service_name"`
	EventTypeName string `json:"event_type"`
	Endpoint      string `json:"endpoint"`
}

// HealthResponse is the body of GET /api/health_check.
type HealthResponse struct {
	Status string `json:"status"`
}

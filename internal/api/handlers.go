// Package api is the HTTP control plane (spec.md §6.1): thin adapters
// translating JSON requests into internal/broker and internal/storage
// calls.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/Runic-Dev/ventrix/internal/broker"
	"github.com/Runic-Dev/ventrix/internal/domain"
	"github.com/Runic-Dev/ventrix/internal/logger"
	"github.com/Runic-Dev/ventrix/internal/storage"
	"github.com/Runic-Dev/ventrix/internal/validate"
)

// Handler holds the dependencies every control-plane route needs.
type Handler struct {
	store            storage.Storage
	publisher        *broker.Publisher
	validateEventDef bool
	log              *logger.Logger
}

// NewHandler wires a Handler. validateEventDef gates whether
// RegisterEventType enforces structural schema validation (the
// "validate_event_def" feature flag).
func NewHandler(store storage.Storage, publisher *broker.Publisher, validateEventDef bool, log *logger.Logger) *Handler {
	return &Handler{store: store, publisher: publisher, validateEventDef: validateEventDef, log: log}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// HealthCheck handles GET /api/health_check.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// RegisterService handles POST /api/service/register.
func (h *Handler) RegisterService(w http.ResponseWriter, r *http.Request) {
	var req RegisterServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	if req.Name == "" || req.URL == "" {
		respondError(w, http.StatusBadRequest, "name and url are required", "INVALID_REQUEST")
		return
	}

	service, err := h.store.RegisterService(r.Context(), storage.RegisterServiceRequest{Name: req.Name, URL: req.URL})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
		return
	}

	h.log.Info("service registered", "name", service.Name)
	respondJSON(w, http.StatusCreated, RegisterServiceResponse{
		Name:           service.Name,
		ServiceDetails: ServiceDetails{Endpoint: service.URL},
	})
}

// RemoveService handles POST /api/service/remove.
func (h *Handler) RemoveService(w http.ResponseWriter, r *http.Request) {
	var req RemoveServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}

	if err := h.store.RemoveService(r.Context(), req.Name); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}

	h.log.Info("service removed", "name", req.Name)
	respondJSON(w, http.StatusNoContent, nil)
}

// RegisterEventType handles POST /api/events/register.
func (h *Handler) RegisterEventType(w http.ResponseWriter, r *http.Request) {
	var req RegisterEventTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	if req.Name == "" || req.PayloadSchema == "" {
		respondError(w, http.StatusBadRequest, "name and payload_definition are required", "INVALID_REQUEST")
		return
	}

	if h.validateEventDef {
		if err := validate.ValidateEventDefinition(req.PayloadSchema); err != nil {
			respondError(w, http.StatusBadRequest, err.Error(), "SCHEMA_INVALID")
			return
		}
	}

	eventType, err := h.store.RegisterEventType(r.Context(), storage.RegisterEventTypeRequest{
		Name:          req.Name,
		Description:   req.Description,
		PayloadSchema: req.PayloadSchema,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), "INVALID_REQUEST")
		return
	}

	h.log.Info("event type registered", "name", eventType.Name)
	respondJSON(w, http.StatusCreated, eventType)
}

// Listen handles POST /api/events/listen: subscribes a registered
// service to a registered event type.
func (h *Handler) Listen(w http.ResponseWriter, r *http.Request) {
	var req ListenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	if req.ServiceName == "" || req.EventTypeName == "" || req.Endpoint == "" {
		respondError(w, http.StatusBadRequest, "service_name, event_type and endpoint are required", "INVALID_REQUEST")
		return
	}

	sub, err := h.store.RegisterServiceForEventType(r.Context(), storage.RegisterSubscriptionRequest{
		ServiceName:   req.ServiceName,
		EventTypeName: req.EventTypeName,
		Endpoint:      req.Endpoint,
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			respondError(w, http.StatusBadRequest, err.Error(), "NOT_FOUND")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}

	h.log.Info("subscription registered", "service", req.ServiceName, "event_type", req.EventTypeName)
	respondJSON(w, http.StatusCreated, sub)
}

// Publish handles POST /api/events/publish.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return
	}
	if req.EventType == "" {
		respondError(w, http.StatusBadRequest, "event_type is required", "INVALID_REQUEST")
		return
	}

	result, err := h.publisher.Publish(r.Context(), req.EventType, req.Payload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}

	resp := PublishResponse{
		Outcome:        result.Outcome,
		Event:          result.Event,
		Message:        result.Message,
		ExpectedSchema: result.ExpectedSchema,
	}

	status := http.StatusCreated
	if result.Outcome == domain.OutcomeRejected {
		status = http.StatusBadRequest
	}

	respondJSON(w, status, resp)
}

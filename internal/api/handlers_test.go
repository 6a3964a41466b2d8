package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Runic-Dev/ventrix/internal/broker"
	"github.com/Runic-Dev/ventrix/internal/logger"
	"github.com/Runic-Dev/ventrix/internal/storage"
)

func newTestRouter(t *testing.T) (*storage.Memory, http.Handler) {
	t.Helper()
	store := storage.NewMemory()
	queue := broker.NewQueue(4)
	publisher := broker.NewPublisher(store, queue, nil, logger.New("test"))
	handler := NewHandler(store, publisher, true, logger.New("test"))
	return store, NewRouter(handler, nil)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	_, router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/health_check", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRegisterServiceThenListen(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/service/register", RegisterServiceRequest{Name: "billing", URL: "http://billing"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 registering service, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/events/register", RegisterEventTypeRequest{
		Name:          "invoice.created",
		PayloadSchema: `{"type":"object","properties":{"amount":{"type":"number"}},"required":["amount"]}`,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 registering event type, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/events/listen", ListenRequest{
		ServiceName:   "billing",
		EventTypeName: "invoice.created",
		Endpoint:      "/hooks/invoice",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 registering subscription, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterEventTypeRejectsInvalidSchema(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/events/register", RegisterEventTypeRequest{
		Name:          "bad.schema",
		PayloadSchema: `{"type":"string"}`,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid root schema, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPublishUnknownEventTypeReturnsBadRequest(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/events/publish", PublishRequest{
		EventType: "does.not.exist",
		Payload:   `{}`,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPublishAcceptedReturns201(t *testing.T) {
	_, router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/events/register", RegisterEventTypeRequest{
		Name:          "invoice.created",
		PayloadSchema: `{"type":"object"}`,
	})

	rec := doJSON(t, router, http.MethodPost, "/api/events/publish", PublishRequest{
		EventType: "invoice.created",
		Payload:   `{}`,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRemoveUnknownServiceReturnsInternalServerError(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/service/remove", RemoveServiceRequest{Name: "ghost"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRemoveServiceSucceedsWithNoContent(t *testing.T) {
	_, router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/service/register", RegisterServiceRequest{Name: "billing", URL: "http://billing"})

	rec := doJSON(t, router, http.MethodPost, "/api/service/remove", RemoveServiceRequest{Name: "billing"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterServiceEchoesServiceDetailsEnvelope(t *testing.T) {
	_, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/service/register", RegisterServiceRequest{Name: "billing", URL: "http://billing"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp RegisterServiceResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Name != "billing" || resp.ServiceDetails.Endpoint != "http://billing" {
		t.Fatalf("unexpected response body: %+v", resp)
	}
}

func TestRegisterServiceDuplicateNameReturnsBadRequest(t *testing.T) {
	_, router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/service/register", RegisterServiceRequest{Name: "billing", URL: "http://billing"})
	rec := doJSON(t, router, http.MethodPost, "/api/service/register", RegisterServiceRequest{Name: "billing", URL: "http://billing-2"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate service name, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListenUnknownEventTypeReturnsBadRequest(t *testing.T) {
	_, router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/service/register", RegisterServiceRequest{Name: "billing", URL: "http://billing"})

	rec := doJSON(t, router, http.MethodPost, "/api/events/listen", ListenRequest{
		ServiceName:   "billing",
		EventTypeName: "does.not.exist",
		Endpoint:      "/hooks/invoice",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown event type, got %d: %s", rec.Code, rec.Body.String())
	}
}

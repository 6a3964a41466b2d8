package api

import (
	"github.com/gorilla/mux"

	"github.com/Runic-Dev/ventrix/internal/streaming"
)

// NewRouter builds the full control-plane router (spec.md §6.1), plus
// the /ws admin feed endpoint when hub is non-nil.
func NewRouter(h *Handler, hub *streaming.Hub) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/health_check", h.HealthCheck).Methods("GET")

	r.HandleFunc("/api/service/register", h.RegisterService).Methods("POST")
	r.HandleFunc("/api/service/remove", h.RemoveService).Methods("POST")

	r.HandleFunc("/api/events/register", h.RegisterEventType).Methods("POST")
	r.HandleFunc("/api/events/listen", h.Listen).Methods("POST")
	r.HandleFunc("/api/events/publish", h.Publish).Methods("POST")

	if hub != nil {
		r.HandleFunc("/ws", hub.ServeWs)
	}

	return r
}

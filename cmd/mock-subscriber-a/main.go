// Command mock-subscriber-a is a dev-tooling stand-in for a real
// subscriber service: it accepts deliveries posted by ventrixd and
// fails a configurable fraction of them so the retry scheduler has
// something to do locally.
package main

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

type deliveredEvent struct {
	ID           string      `json:"id"`
	EventType    string      `json:"event_type"`
	Payload      string      `json:"payload"`
	RetryDetails interface{} `json:"retry_details"`
}

type subscriber struct {
	mu          sync.RWMutex
	failureRate float64
	received    int
	accepted    int
	rejected    int
}

func newSubscriber() *subscriber {
	return &subscriber{failureRate: 0.3}
}

func (s *subscriber) deliver(w http.ResponseWriter, r *http.Request) {
	var event deliveredEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.received++
	failureRate := s.failureRate
	s.mu.Unlock()

	if rand.Float64() < failureRate {
		s.mu.Lock()
		s.rejected++
		s.mu.Unlock()
		log.Printf("rejecting event %s (type=%s)", event.ID, event.EventType)
		http.Error(w, "simulated processing failure", http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.accepted++
	s.mu.Unlock()
	log.Printf("accepted event %s (type=%s)", event.ID, event.EventType)
	w.WriteHeader(http.StatusOK)
}

func (s *subscriber) setFailureRate(w http.ResponseWriter, r *http.Request) {
	rateStr := r.URL.Query().Get("rate")
	rate, err := strconv.ParseFloat(rateStr, 64)
	if err != nil || rate < 0 || rate > 100 {
		http.Error(w, "invalid rate (0-100)", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.failureRate = rate / 100
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *subscriber) stats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"received":     s.received,
		"accepted":     s.accepted,
		"rejected":     s.rejected,
		"failure_rate": s.failureRate * 100,
	})
}

func (s *subscriber) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"service": "mock-subscriber-a", "status": "healthy"})
}

func main() {
	rand.Seed(time.Now().UnixNano())

	sub := newSubscriber()
	r := mux.NewRouter()

	r.HandleFunc("/deliveries", sub.deliver).Methods("POST")
	r.HandleFunc("/admin/set-failure-rate", sub.setFailureRate).Methods("POST")
	r.HandleFunc("/admin/stats", sub.stats).Methods("GET")
	r.HandleFunc("/health", sub.health).Methods("GET")

	log.Println("mock-subscriber-a starting on port 9101")
	log.Println("default settings: 30% failure rate")
	log.Fatal(http.ListenAndServe(":9101", r))
}

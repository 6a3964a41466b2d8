package streaming

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Runic-Dev/ventrix/internal/domain"
	"github.com/Runic-Dev/ventrix/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub maintains the set of connected admin clients and fans delivery
// events out to all of them.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu        sync.RWMutex
	startedAt time.Time
	log       *logger.Logger
}

// NewHub creates a Hub. It does not start running until Run is called.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		startedAt:  time.Now(),
		log:        log,
	}
}

// Run is the hub's main loop. It blocks, so callers run it in its own
// goroutine for the lifetime of the broker process.
func (h *Hub) Run() {
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info("admin feed client connected", "client_id", client.ID, "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info("admin feed client disconnected", "client_id", client.ID, "total", count)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					go func(c *Client) { h.unregister <- c }(client)
				}
			}
			h.mu.RUnlock()

		case <-heartbeat.C:
			h.sendHeartbeat()
		}
	}
}

func (h *Hub) sendHeartbeat() {
	h.mu.RLock()
	count := len(h.clients)
	h.mu.RUnlock()
	if count == 0 {
		return
	}
	msg := NewMessage(TypeHeartbeat, "ping", HeartbeatData{ServerTime: time.Now().UTC(), ClientCount: count})
	if data, err := msg.ToJSON(); err == nil {
		h.Broadcast(data)
	}
}

// Broadcast pushes raw bytes onto the hub's broadcast channel,
// dropping the message rather than blocking if the channel is full.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn("admin feed broadcast channel full, message dropped")
	}
}

// ObserveDelivery implements broker.DeliveryObserver: it turns a
// per-subscriber delivery attempt into a feed message.
func (h *Hub) ObserveDelivery(event domain.PublishedEvent, subscriber domain.Subscriber, outcome string) {
	data := DeliveryData{
		EventID:    event.ID,
		EventType:  event.EventType,
		Subscriber: subscriber.ServiceName,
		Outcome:    outcome,
	}
	if event.RetryDetails != nil {
		data.RetryCount = event.RetryDetails.RetryCount
	}
	msg := NewMessage(TypeDelivery, outcome, data)
	if raw, err := msg.ToJSON(); err == nil {
		h.Broadcast(raw)
	}
}

// ClientCount reports the number of connected admin clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWs upgrades the HTTP request to a WebSocket and registers the
// resulting client with the hub.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("admin feed upgrade failed", "error", err.Error())
		return
	}

	clientID := uuid.New().String()[:8]
	client := newClient(h, conn, clientID)
	h.register <- client

	welcome := NewMessage(TypeHealth, "connected", map[string]interface{}{
		"client_id":   clientID,
		"server_time": time.Now().UTC(),
	})
	if data, err := welcome.ToJSON(); err == nil {
		client.send <- data
	}

	go client.writePump()
	go client.readPump()
}

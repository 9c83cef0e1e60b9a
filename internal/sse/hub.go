package sse

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType defines the SSE event name.
type EventType string

const (
	EventPaymentCreated       EventType = "payment.created"
	EventPaymentStatusChanged EventType = "payment.status_changed"
)

// PaymentEvent is the payload pushed to a customer's open checkout pages.
type PaymentEvent struct {
	Event           EventType `json:"event"`
	TransactionUUID string    `json:"transactionUuid"`
	OrderRef        string    `json:"orderRef"`
	Status          string    `json:"status"`
	TotalAmount     string    `json:"totalAmount"`
	FailedReason    *string   `json:"failedReason,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Client represents one connected SSE stream of a customer.
type Client struct {
	ID         string
	CustomerID int
	Events     chan []byte
}

// Hub manages SSE client connections and routes events to their customer.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a new client and returns it for streaming.
func (h *Hub) Register(clientID string, customerID int) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &Client{
		ID:         clientID,
		CustomerID: customerID,
		Events:     make(chan []byte, 16),
	}
	h.clients[clientID] = c
	log.Debug().Str("client_id", clientID).Int("total_clients", len(h.clients)).Msg("SSE client connected")
	return c
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.Events)
		delete(h.clients, clientID)
		log.Debug().Str("client_id", clientID).Int("total_clients", len(h.clients)).Msg("SSE client disconnected")
	}
}

// Publish sends an event to every stream of customerID.
// Non-blocking: drops message if client buffer is full.
func (h *Hub) Publish(customerID int, event *PaymentEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.CustomerID != customerID {
			continue
		}
		select {
		case c.Events <- data:
		default:
			log.Warn().Str("client_id", c.ID).Msg("SSE client buffer full, dropping event")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

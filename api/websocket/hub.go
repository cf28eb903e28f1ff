package websocket

import (
	"sync"

	"github.com/ecoaire/crac-forecast/internal/logger"
	"github.com/ecoaire/crac-forecast/pkg/config"
	"github.com/ecoaire/crac-forecast/pkg/models"
)

const defaultBroadcastBuffer = 256

// Hub fans pipeline events out to connected WebSocket clients. Clients may
// narrow their stream to a set of event types; by default they receive all.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *outgoing
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	cfg        config.WebSocketConfig
}

type outgoing struct {
	eventType models.EventType
	payload   []byte
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	buffer := cfg.BroadcastBuffer
	if buffer <= 0 {
		buffer = defaultBroadcastBuffer
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *outgoing, buffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		cfg:        cfg,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Infof("WebSocket client connected (total: %d)", h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			logger.Infof("WebSocket client disconnected (total: %d)", h.ClientCount())

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// deliver sends to every interested client. Clients whose buffer is full are
// dropped; a stalled reader must not block the rest.
func (h *Hub) deliver(msg *outgoing) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.wants(msg.eventType) {
			continue
		}
		select {
		case client.send <- msg.payload:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// Broadcast queues an event payload for delivery to subscribed clients.
func (h *Hub) Broadcast(eventType models.EventType, payload []byte) {
	select {
	case h.broadcast <- &outgoing{eventType: eventType, payload: payload}:
	default:
		logger.Warn("Broadcast channel full, dropping message")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// AtCapacity reports whether the configured connection limit is reached.
func (h *Hub) AtCapacity() bool {
	if h.cfg.MaxConnections <= 0 {
		return false
	}
	return h.ClientCount() >= h.cfg.MaxConnections
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

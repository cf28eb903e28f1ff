package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ecoaire/crac-forecast/internal/logger"
	"github.com/ecoaire/crac-forecast/pkg/config"
	"github.com/ecoaire/crac-forecast/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 512
	defaultClientBuffer   = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one WebSocket connection. An empty type set means the client
// receives every event.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu    sync.Mutex
	types map[models.EventType]bool

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
	maxMsgSize int64
}

// IncomingMessage is a client control frame: subscribe or unsubscribe to a
// set of event types.
type IncomingMessage struct {
	Type       string   `json:"type"`
	EventTypes []string `json:"event_types,omitempty"`
}

func NewClient(hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	writeWait := cfg.WriteTimeout
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	pongWait := cfg.PongTimeout
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	maxMsgSize := cfg.MaxMessageSize
	if maxMsgSize <= 0 {
		maxMsgSize = defaultMaxMessageSize
	}
	buffer := cfg.ClientBuffer
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}

	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, buffer),
		types:      make(map[models.EventType]bool),
		writeWait:  writeWait,
		pongWait:   pongWait,
		pingPeriod: pongWait * 9 / 10,
		maxMsgSize: maxMsgSize,
	}
}

// wants reports whether the client should receive events of this type.
func (c *Client) wants(eventType models.EventType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.types) == 0 || c.types[eventType]
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("WebSocket error: %v", err)
			}
			break
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.handleMessage(&msg)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush queued messages into the same frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *IncomingMessage) {
	switch msg.Type {
	case "subscribe":
		c.mu.Lock()
		for _, t := range msg.EventTypes {
			c.types[models.EventType(t)] = true
		}
		c.mu.Unlock()
		c.sendConfirmation("subscribed", msg.EventTypes)

	case "unsubscribe":
		c.mu.Lock()
		if len(msg.EventTypes) == 0 {
			c.types = make(map[models.EventType]bool)
		} else {
			for _, t := range msg.EventTypes {
				delete(c.types, models.EventType(t))
			}
		}
		c.mu.Unlock()
		c.sendConfirmation("unsubscribed", msg.EventTypes)
	}
}

func (c *Client) sendConfirmation(action string, eventTypes []string) {
	confirmation := map[string]interface{}{
		"type":        "subscription_update",
		"action":      action,
		"event_types": eventTypes,
		"timestamp":   time.Now(),
	}
	data, err := json.Marshal(confirmation)
	if err != nil {
		logger.Errorf("Failed to marshal confirmation: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		logger.Warn("Client send channel full, dropping confirmation")
	}
}

// ServeWebSocket upgrades the request and wires the client into the hub. A
// repeated "events" query parameter pre-subscribes the client to those event
// types.
func ServeWebSocket(hub *Hub, cfg config.WebSocketConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hub.AtCapacity() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "too many websocket connections",
			})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Errorf("WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(hub, conn, cfg)
		for _, t := range c.QueryArray("events") {
			client.types[models.EventType(t)] = true
		}
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()
	}
}

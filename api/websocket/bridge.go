package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ecoaire/crac-forecast/internal/logger"
	"github.com/ecoaire/crac-forecast/pkg/models"
)

// EventBridge forwards pipeline events from the event bus to WebSocket
// clients.
type EventBridge struct {
	hub        *Hub
	eventsChan <-chan *models.Event
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewEventBridge(hub *Hub, eventsChan <-chan *models.Event) *EventBridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventBridge{
		hub:        hub,
		eventsChan: eventsChan,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (b *EventBridge) Start() {
	go b.run()
	logger.Info("WebSocket event bridge started")
}

func (b *EventBridge) Stop() {
	b.cancel()
	logger.Info("WebSocket event bridge stopped")
}

func (b *EventBridge) run() {
	for {
		select {
		case <-b.ctx.Done():
			return
		case event, ok := <-b.eventsChan:
			if !ok {
				logger.Info("Event channel closed, stopping bridge")
				return
			}
			b.forward(event)
		}
	}
}

// StreamEvent is the wire format sent to WebSocket clients.
type StreamEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Severity  string      `json:"severity,omitempty"`
	Message   string      `json:"message,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func (b *EventBridge) forward(event *models.Event) {
	msg := StreamEvent{
		Type:      string(event.Type),
		Timestamp: event.Timestamp,
		Severity:  string(event.Severity),
		Message:   event.Message,
		TraceID:   event.TraceID,
		Data:      event.Data,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	b.hub.Broadcast(event.Type, data)
}

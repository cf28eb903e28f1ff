package models

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeRefreshStarted   EventType = "refresh_started"
	EventTypeRefreshCompleted EventType = "refresh_completed"
	EventTypeRefreshFailed    EventType = "refresh_failed"
	EventTypeModelTrained     EventType = "model_trained"
	EventTypeTaskScheduled    EventType = "task_scheduled"
	EventTypeTaskCancelled    EventType = "task_cancelled"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is a lifecycle notification emitted by the cache and the scheduler,
// fanned out to log sinks and websocket clients.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Severity  Severity    `json:"severity"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func NewEvent(eventType EventType, message string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Severity:  SeverityInfo,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func (e *Event) WithSeverity(severity Severity) *Event {
	e.Severity = severity
	return e
}

func (e *Event) WithData(data interface{}) *Event {
	e.Data = data
	return e
}

func AllEventTypes() []EventType {
	return []EventType{
		EventTypeRefreshStarted,
		EventTypeRefreshCompleted,
		EventTypeRefreshFailed,
		EventTypeModelTrained,
		EventTypeTaskScheduled,
		EventTypeTaskCancelled,
	}
}

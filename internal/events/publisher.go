package events

import (
	"time"

	"github.com/ecoaire/crac-forecast/pkg/models"
)

type Publisher struct {
	bus     *EventBus
	traceID string
}

func NewPublisher(bus *EventBus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) WithTraceID(traceID string) *Publisher {
	return &Publisher{bus: p.bus, traceID: traceID}
}

func (p *Publisher) publish(event *models.Event) {
	if p == nil || p.bus == nil {
		return
	}
	if p.traceID != "" {
		event.TraceID = p.traceID
	}
	p.bus.Publish(event)
}

func (p *Publisher) RefreshStarted() {
	p.publish(models.NewEvent(models.EventTypeRefreshStarted, "Data refresh started"))
}

func (p *Publisher) RefreshCompleted(alarms, intervals int, elapsed time.Duration) {
	event := models.NewEvent(models.EventTypeRefreshCompleted, "Data refresh completed").
		WithData(map[string]interface{}{
			"alarms":     alarms,
			"intervals":  intervals,
			"elapsed_ms": elapsed.Milliseconds(),
		})
	p.publish(event)
}

func (p *Publisher) RefreshFailed(stage string, err error) {
	event := models.NewEvent(models.EventTypeRefreshFailed, "Data refresh failed: "+stage).
		WithSeverity(models.SeverityCritical).
		WithData(map[string]interface{}{
			"stage": stage,
			"error": err.Error(),
		})
	p.publish(event)
}

func (p *Publisher) ModelTrained(rows int, features []string) {
	event := models.NewEvent(models.EventTypeModelTrained, "Survival model trained").
		WithData(map[string]interface{}{
			"rows":     rows,
			"features": features,
		})
	p.publish(event)
}

func (p *Publisher) TaskScheduled(name string, intervalMinutes int) {
	event := models.NewEvent(models.EventTypeTaskScheduled, "Task scheduled: "+name).
		WithData(map[string]interface{}{
			"task":             name,
			"interval_minutes": intervalMinutes,
		})
	p.publish(event)
}

func (p *Publisher) TaskCancelled(name string) {
	event := models.NewEvent(models.EventTypeTaskCancelled, "Task cancelled: "+name).
		WithData(map[string]interface{}{"task": name})
	p.publish(event)
}

package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoaire/crac-forecast/pkg/models"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(models.EventTypeRefreshCompleted)

	bus.Publish(models.NewEvent(models.EventTypeRefreshCompleted, "done"))
	bus.Publish(models.NewEvent(models.EventTypeRefreshStarted, "ignored"))

	select {
	case event := <-ch:
		assert.Equal(t, models.EventTypeRefreshCompleted, event.Type)
		assert.Equal(t, "done", event.Message)
	case <-time.After(time.Second):
		t.Fatal("expected event not delivered")
	}

	select {
	case event := <-ch:
		t.Fatalf("unexpected event: %s", event.Type)
	default:
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.SubscribeAll()

	bus.Publish(models.NewEvent(models.EventTypeRefreshStarted, "a"))
	bus.Publish(models.NewEvent(models.EventTypeModelTrained, "b"))

	received := 0
	timeout := time.After(time.Second)
	for received < 2 {
		select {
		case <-ch:
			received++
		case <-timeout:
			t.Fatalf("only %d of 2 events delivered", received)
		}
	}
}

func TestEventBus_FullChannelDropsEvent(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	ch := bus.Subscribe(models.EventTypeRefreshStarted)

	bus.Publish(models.NewEvent(models.EventTypeRefreshStarted, "first"))
	bus.Publish(models.NewEvent(models.EventTypeRefreshStarted, "dropped"))

	event := <-ch
	assert.Equal(t, "first", event.Message)

	select {
	case event := <-ch:
		t.Fatalf("unexpected second event: %s", event.Message)
	default:
	}
}

func TestEventBus_CloseIsIdempotent(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.SubscribeAll()

	bus.Close()
	bus.Close()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after close must not panic.
	bus.Publish(models.NewEvent(models.EventTypeRefreshStarted, "late"))
}

func TestPublisher_NilSafe(t *testing.T) {
	var p *Publisher
	p.RefreshStarted()
	p.RefreshFailed("stage", assert.AnError)
	p.TaskScheduled("task", 60)
}

func TestPublisher_EmitsEvents(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(models.EventTypeRefreshFailed)
	p := NewPublisher(bus).WithTraceID("trace-1")

	p.RefreshFailed("alarm source", assert.AnError)

	select {
	case event := <-ch:
		require.NotNil(t, event)
		assert.Equal(t, models.SeverityCritical, event.Severity)
		assert.Equal(t, "trace-1", event.TraceID)
		data, ok := event.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "alarm source", data["stage"])
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var mu sync.Mutex
	var received *Event
	done := make(chan struct{})

	bus.Subscribe(AlertPublished, func(event *Event) {
		mu.Lock()
		received = event
		mu.Unlock()
		close(done)
	})

	bus.Publish("tenant-1", &AlertPublishedData{AlertID: "a1", AlertType: "stockout_predicted"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, received)
	assert.Equal(t, "tenant-1", received.TenantID)
	data, ok := received.Data.(*AlertPublishedData)
	require.True(t, ok)
	assert.Equal(t, "a1", data.AlertID)
}

func TestBus_NoSubscribersDoesNotBlock(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	assert.NotPanics(t, func() {
		bus.Publish("tenant-1", &SyncCompletedData{AdapterKind: "edi", Status: "success"})
	})
}

func TestBus_PanickingHandlerDoesNotAffectOthers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	done := make(chan struct{})
	bus.Subscribe(ModelPromoted, func(event *Event) { panic("boom") })
	bus.Subscribe(ModelPromoted, func(event *Event) { close(done) })

	bus.Publish("tenant-1", &ModelPromotedData{ModelName: "demand_forecast", NewVersion: "v2"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second handler was not invoked after first panicked")
	}
}

func TestBusPublisher_IgnoresNonEventData(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	publisher := NewBusPublisher(bus)

	assert.NotPanics(t, func() {
		publisher.Publish(context.Background(), uuid.New(), "not an EventData")
	})
}

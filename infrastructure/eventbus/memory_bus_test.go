package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmops/telemetry/domain/repository"
)

func busEvent(topic string) repository.BusEvent {
	return repository.BusEvent{
		ID:        "evt-1",
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   "payload",
	}
}

func TestPublishExactTopic(t *testing.T) {
	bus := NewMemoryEventBus(nil)

	var received []repository.BusEvent
	_, err := bus.Subscribe("monitoring.metric", func(e repository.BusEvent) {
		received = append(received, e)
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(busEvent("monitoring.metric")))
	require.NoError(t, bus.Publish(busEvent("monitoring.alert")))

	require.Len(t, received, 1)
	assert.Equal(t, "monitoring.metric", received[0].Topic)
}

func TestPublishWildcardPattern(t *testing.T) {
	bus := NewMemoryEventBus(nil)

	var topics []string
	_, err := bus.Subscribe("monitoring.*", func(e repository.BusEvent) {
		topics = append(topics, e.Topic)
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(busEvent("monitoring.metric")))
	require.NoError(t, bus.Publish(busEvent("monitoring.anomaly")))
	require.NoError(t, bus.Publish(busEvent("monitoring")))
	require.NoError(t, bus.Publish(busEvent("swarm.started")))

	assert.Equal(t, []string{"monitoring.metric", "monitoring.anomaly", "monitoring"}, topics)
}

func TestWildcardDoesNotMatchSharedPrefixWord(t *testing.T) {
	bus := NewMemoryEventBus(nil)

	calls := 0
	_, err := bus.Subscribe("run.*", func(repository.BusEvent) { calls++ })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(busEvent("runtime.sample")))
	assert.Zero(t, calls)
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewMemoryEventBus(nil)

	_, err := bus.Subscribe("monitoring.metric", func(repository.BusEvent) {
		panic("handler failure")
	})
	require.NoError(t, err)

	delivered := false
	_, err = bus.Subscribe("monitoring.metric", func(repository.BusEvent) {
		delivered = true
	})
	require.NoError(t, err)

	require.NotPanics(t, func() {
		require.NoError(t, bus.Publish(busEvent("monitoring.metric")))
	})
	assert.True(t, delivered)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewMemoryEventBus(nil)

	calls := 0
	id, err := bus.Subscribe("monitoring.metric", func(repository.BusEvent) { calls++ })
	require.NoError(t, err)
	require.Equal(t, 1, bus.SubscriberCount())

	require.NoError(t, bus.Unsubscribe(id))
	assert.Zero(t, bus.SubscriberCount())

	require.NoError(t, bus.Publish(busEvent("monitoring.metric")))
	assert.Zero(t, calls)

	assert.Error(t, bus.Unsubscribe(id))
}

func TestSubscribeValidation(t *testing.T) {
	bus := NewMemoryEventBus(nil)

	_, err := bus.Subscribe("", func(repository.BusEvent) {})
	assert.Error(t, err)

	_, err = bus.Subscribe("monitoring.metric", nil)
	assert.Error(t, err)

	assert.Error(t, bus.Publish(busEvent("")))
}

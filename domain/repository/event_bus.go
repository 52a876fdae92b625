package repository

import (
	"time"
)

// BusEvent is a message on the event channel. Payload is either an
// entity.MonitoringEvent emitted by the engine or an *entity.UpstreamEvent
// received from the platform.
type BusEvent struct {
	ID        string
	Topic     string
	Timestamp time.Time
	Payload   interface{}
}

// EventHandler consumes one bus event. Handlers must not assume delivery
// ordering across producers.
type EventHandler func(event BusEvent)

// EventBus is the publish/subscribe channel shared with the platform.
// Patterns are topic prefixes with a trailing ".*" wildcard, e.g.
// "telemetry.*", or exact topics.
type EventBus interface {
	// Subscribe registers a handler and returns a subscription id.
	Subscribe(pattern string, handler EventHandler) (string, error)

	// Publish delivers an event to every matching subscriber. Delivery is
	// best-effort; a panicking handler must not affect other subscribers.
	Publish(event BusEvent) error

	// Unsubscribe removes a subscription by id.
	Unsubscribe(id string) error
}

// Package eventbus provides the in-process publish/subscribe channel used
// between the telemetry engine and the rest of the platform.
package eventbus

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/repository"
)

type subscription struct {
	id      string
	pattern string
	handler repository.EventHandler
}

// MemoryEventBus is a synchronous in-process bus. Handlers run on the
// publisher's goroutine; a panicking handler is recovered and logged so the
// remaining subscribers still receive the event.
type MemoryEventBus struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	logger        domain.Logger
}

// NewMemoryEventBus creates an empty bus.
func NewMemoryEventBus(logger domain.Logger) *MemoryEventBus {
	return &MemoryEventBus{
		subscriptions: make(map[string]*subscription),
		logger:        logger,
	}
}

// Subscribe registers a handler for an exact topic or a "prefix.*" pattern.
func (b *MemoryEventBus) Subscribe(pattern string, handler repository.EventHandler) (string, error) {
	if pattern == "" {
		return "", domain.ErrEventBus("subscribe", "empty pattern")
	}
	if handler == nil {
		return "", domain.ErrEventBus("subscribe", "nil handler")
	}

	sub := &subscription{
		id:      uuid.NewString(),
		pattern: pattern,
		handler: handler,
	}

	b.mu.Lock()
	b.subscriptions[sub.id] = sub
	b.mu.Unlock()

	return sub.id, nil
}

// Publish delivers the event to every subscriber whose pattern matches its
// topic.
func (b *MemoryEventBus) Publish(event repository.BusEvent) error {
	if event.Topic == "" {
		return domain.ErrEventBus("publish", "empty topic")
	}

	b.mu.RLock()
	matched := make([]*subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		if topicMatches(sub.pattern, event.Topic) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		b.deliver(sub, event)
	}
	return nil
}

func (b *MemoryEventBus) deliver(sub *subscription, event repository.BusEvent) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Error(context.Background(), "event handler panicked",
				domain.NewField("topic", event.Topic),
				domain.NewField("subscription", sub.id),
				domain.NewField("panic", r))
		}
	}()
	sub.handler(event)
}

// Unsubscribe removes a subscription. Removing an unknown id is an error.
func (b *MemoryEventBus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscriptions[id]; !ok {
		return domain.ErrNotFound("subscription", id)
	}
	delete(b.subscriptions, id)
	return nil
}

// SubscriberCount reports how many handlers are registered.
func (b *MemoryEventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// topicMatches implements exact matching plus the "prefix.*" wildcard. The
// wildcard matches any topic sharing the prefix, including the bare prefix
// itself.
func topicMatches(pattern, topic string) bool {
	if pattern == topic || pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return topic == prefix || strings.HasPrefix(topic, prefix+".")
	}
	return false
}

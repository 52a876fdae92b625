package usecase

import (
	"context"
	"time"

	"github.com/swarmops/telemetry/domain/entity"
)

// EventProcessorStats summarizes processing outcomes.
type EventProcessorStats struct {
	Total     uint64
	Succeeded uint64
	Errored   uint64

	// LastProcessedAt is nil before the first event.
	LastProcessedAt *time.Time

	// AvgLatency and MaxLatency cover the rolling latency window.
	AvgLatency time.Duration
	MaxLatency time.Duration

	// ErrorRate is the failure fraction over the most recent events,
	// bounded by the same window as the latency figures. 0 before the
	// first event.
	ErrorRate float64
}

// EventProcessor normalizes platform events into unified metrics and writes
// them through the store. A malformed event is counted and skipped; it never
// interrupts subsequent events.
type EventProcessor interface {
	// Start subscribes the processor to the event bus.
	Start() error

	// Stop unsubscribes. Idempotent.
	Stop() error

	// ProcessEvent normalizes and stores one event synchronously.
	ProcessEvent(ctx context.Context, event *entity.UpstreamEvent) error

	// Stats returns a snapshot of the processing counters.
	Stats() EventProcessorStats
}

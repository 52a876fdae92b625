package usecase

import (
	"time"

	"github.com/swarmops/telemetry/domain/entity"
)

// CollectorStats are the collector's lifetime counters.
type CollectorStats struct {
	// Recorded is the number of metrics accepted into the pipeline.
	Recorded uint64

	// SampledOut is the number of metrics dropped by sampling.
	SampledOut uint64

	// Throttled is the number of metrics skipped by the performance guard.
	Throttled uint64

	// FilteredOut is the number of metrics whose type is not enabled.
	FilteredOut uint64

	// Flushes is the number of accumulator flushes performed.
	Flushes uint64

	// PublishErrors is the number of failed event bus publishes.
	PublishErrors uint64

	// QueueDrops is the number of metrics lost because the flusher queue
	// was saturated.
	QueueDrops uint64

	// AvgOverhead is the rolling average per-call collection overhead.
	AvgOverhead time.Duration

	// Throttling reports whether the guard is currently rejecting work.
	Throttling bool
}

// CollectorService ingests metrics with sampling, batching and a
// self-imposed overhead budget.
type CollectorService interface {
	// Record ingests one metric input.
	Record(input entity.MetricInput) error

	// RecordBatch ingests many inputs; large batches go straight to
	// storage without accumulating.
	RecordBatch(inputs []entity.MetricInput) error

	// Flush drains the accumulator now.
	Flush() error

	// Stats returns a snapshot of the collector counters.
	Stats() CollectorStats

	// IsHealthy reports whether overhead sits inside the budget.
	IsHealthy() bool

	// Close flushes and stops the collector. Idempotent.
	Close() error
}

package repository

import (
	"time"

	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/valueobject"
)

// HealthStatus is the coarse health of a component.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// StoreStats aggregates bucket-level counters across the whole store.
type StoreStats struct {
	BucketCount     int
	TotalStored     int
	OldestTimestamp *time.Time
	NewestTimestamp *time.Time
	EstimatedBytes  int64
}

// MetricsStore owns all storage buckets, routes writes by (tier, type) and
// answers filtered queries. Implementations are memory-resident; the store is
// not a durable system of record.
type MetricsStore interface {
	// Initialize creates one bucket per configured retention policy and
	// starts the periodic maintenance task. Must be called before any other
	// operation; failing to initialize is fatal to the caller.
	Initialize() error

	// Store routes one metric to its bucket, creating a dynamic bucket with
	// the default policy if none exists.
	Store(metric *entity.UnifiedMetric) error

	// StoreBatch stores many metrics. A single bad metric is logged and
	// skipped; the batch continues.
	StoreBatch(metrics []*entity.UnifiedMetric) error

	// Query selects candidate buckets by tier/type, applies the remaining
	// filters, sorts and paginates.
	Query(query valueobject.MetricQuery) (*valueobject.MetricQueryResult, error)

	// EnforceRetentionPolicies drops expired items from every bucket on
	// demand, independent of the buckets' own timers.
	EnforceRetentionPolicies() error

	// DownsampleOldMetrics is a declared extension point for reducing aged
	// data. It currently does nothing.
	DownsampleOldMetrics() error

	// Stats returns aggregate counters across all buckets.
	Stats() (*StoreStats, error)

	// Health derives a status from the estimated memory footprint.
	Health() (HealthStatus, error)

	// Close stops every bucket timer and the maintenance task, then discards
	// all buckets. Idempotent.
	Close() error
}

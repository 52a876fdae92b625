package usecase

import (
	"time"

	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/repository"
	"github.com/swarmops/telemetry/domain/valueobject"
)

// AnomalousPoint is one flagged observation in a metric series.
type AnomalousPoint struct {
	Index     int
	Timestamp time.Time
	Value     float64
}

// AnomalyReport is the result of on-demand anomaly detection for one metric.
type AnomalyReport struct {
	MetricName string
	Lookback   time.Duration
	Points     []AnomalousPoint

	// Metrics are the flagged observations themselves, parallel to Points.
	Metrics []*entity.UnifiedMetric

	// Score is the fraction of observations flagged, in [0, 1].
	Score float64

	DetectedAt time.Time
}

// TelemetryService is the engine facade exposed to the embedding process.
// Ingestion calls are non-blocking and never fail the caller's own work;
// read-side calls report store failures.
type TelemetryService interface {
	// Record ingests one metric. The engine assigns the id and timestamp.
	Record(input entity.MetricInput) error

	// RecordBatch ingests many metrics at once.
	RecordBatch(inputs []entity.MetricInput) error

	// Query runs a filtered, sorted, paginated metric query.
	Query(query valueobject.MetricQuery) (*valueobject.MetricQueryResult, error)

	// GetSummary computes the statistical summary of one metric name over
	// a time window, one summary per group when group keys are given.
	GetSummary(name string, start, end time.Time, groupBy ...valueobject.GroupKey) ([]valueobject.MetricSummary, error)

	// DetectAnomalies runs anomaly detection over the trailing lookback
	// window of one metric name.
	DetectAnomalies(name string, lookbackMinutes int) (*AnomalyReport, error)

	// Flush forces any accumulated metrics into storage.
	Flush() error

	// Health reports the composite engine health.
	Health() (repository.HealthStatus, error)

	// Close shuts the engine down. Idempotent.
	Close() error
}

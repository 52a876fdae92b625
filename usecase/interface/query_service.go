package usecase

import (
	"time"

	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/valueobject"
)

// QueryService is the read side of the engine: filtered queries,
// aggregations, statistical summaries and search. Empty results are empty
// collections; only store failures surface as errors.
type QueryService interface {
	// Query runs a raw metric query against the store.
	Query(query valueobject.MetricQuery) (*valueobject.MetricQueryResult, error)

	// GetMetricsInRange returns all metrics in a time window.
	GetMetricsInRange(start, end time.Time) ([]*entity.UnifiedMetric, error)

	// GetMetricsByExecution returns all metrics tagged with an execution id.
	GetMetricsByExecution(executionID string) ([]*entity.UnifiedMetric, error)

	// GetMetricsByComponent returns all metrics from one component.
	GetMetricsByComponent(component string) ([]*entity.UnifiedMetric, error)

	// GetMetricsByTier returns all metrics in one tier.
	GetMetricsByTier(tier entity.MetricTier) ([]*entity.UnifiedMetric, error)

	// Aggregate groups matching metrics by the query's group keys and
	// reduces each group with the query's aggregation spec.
	Aggregate(query valueobject.MetricQuery) ([]valueobject.AggregatedGroup, error)

	// GetSummary computes count/sum/avg/min/max/stddev/percentiles, trend,
	// change rate and anomaly counts for one metric name over a window.
	GetSummary(name string, start, end time.Time) (*valueobject.MetricSummary, error)

	// GetSummaries computes one summary per group key over a window.
	// Without group keys it returns the single whole-window summary.
	GetSummaries(name string, start, end time.Time, groupBy []valueobject.GroupKey) ([]valueobject.MetricSummary, error)

	// Search matches a case-insensitive substring against metric names,
	// components, string values and tags.
	Search(term string) ([]*entity.UnifiedMetric, error)

	// TopN returns the n matching metrics with the highest numeric values.
	TopN(query valueobject.MetricQuery, n int) ([]*entity.UnifiedMetric, error)
}

package valueobject

import (
	"time"

	"github.com/swarmops/telemetry/domain/entity"
)

// SortField names a sortable metric attribute.
type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortByValue     SortField = "value"
	SortByName      SortField = "name"
)

// SortDirection is the sort order for query results.
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// AggregationMethod reduces a group of numeric values to one number.
type AggregationMethod string

const (
	AggregateAvg        AggregationMethod = "avg"
	AggregateSum        AggregationMethod = "sum"
	AggregateMin        AggregationMethod = "min"
	AggregateMax        AggregationMethod = "max"
	AggregateCount      AggregationMethod = "count"
	AggregatePercentile AggregationMethod = "percentile"
)

// AggregationSpec describes how grouped values are reduced.
type AggregationSpec struct {
	Method     AggregationMethod
	Percentile float64 // used when Method is AggregatePercentile, e.g. 95
	Window     time.Duration
}

// GroupKey names a metric attribute used to build composite group keys.
type GroupKey string

const (
	GroupByTier        GroupKey = "tier"
	GroupByComponent   GroupKey = "component"
	GroupByType        GroupKey = "type"
	GroupByName        GroupKey = "name"
	GroupByExecutionID GroupKey = "executionId"
	GroupByUserID      GroupKey = "userId"
	GroupByTeamID      GroupKey = "teamId"
)

// MetricQuery is a set of optional filters plus grouping, aggregation,
// pagination and sorting. Zero-valued fields do not filter.
type MetricQuery struct {
	Start *time.Time
	End   *time.Time

	Tiers      []entity.MetricTier
	Components []string
	Types      []entity.MetricType
	Names      []string

	ExecutionID string
	UserID      string
	TeamID      string
	Tags        []string

	GroupBy     []GroupKey
	Aggregation *AggregationSpec

	Limit  int
	Offset int

	SortBy  SortField
	SortDir SortDirection
}

// TimeRange reports whether the query constrains time, and the bounds.
func (q MetricQuery) TimeRange() (start, end time.Time, bounded bool) {
	if q.Start == nil && q.End == nil {
		return time.Time{}, time.Time{}, false
	}
	start = time.Time{}
	end = time.Now().Add(24 * time.Hour)
	if q.Start != nil {
		start = *q.Start
	}
	if q.End != nil {
		end = *q.End
	}
	return start, end, true
}

// MatchesTier reports whether a bucket tier passes the query's tier filter.
func (q MetricQuery) MatchesTier(tier entity.MetricTier) bool {
	if len(q.Tiers) == 0 {
		return true
	}
	for _, t := range q.Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// MatchesType reports whether a bucket type passes the query's type filter.
func (q MetricQuery) MatchesType(metricType entity.MetricType) bool {
	if len(q.Types) == 0 {
		return true
	}
	for _, t := range q.Types {
		if t == metricType {
			return true
		}
	}
	return false
}

// MetricQueryResult carries one page of matches, the pre-pagination total,
// the original query and the measured execution time.
type MetricQueryResult struct {
	Metrics       []*entity.UnifiedMetric
	TotalCount    int
	Query         MetricQuery
	ExecutionTime time.Duration
}

// AggregatedGroup is one group produced by an aggregation query.
type AggregatedGroup struct {
	Key   string
	Count int
	Value float64
}

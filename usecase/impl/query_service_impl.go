package impl

import (
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/repository"
	"github.com/swarmops/telemetry/domain/stats"
	"github.com/swarmops/telemetry/domain/valueobject"
	usecase "github.com/swarmops/telemetry/usecase/interface"
)

const (
	summaryCacheSize = 256
	summaryCacheTTL  = 30 * time.Second
)

// cachedSummary is one summary cache entry with its computation time.
type cachedSummary struct {
	summary    valueobject.MetricSummary
	computedAt time.Time
}

// QueryServiceImpl implements the QueryService interface
type QueryServiceImpl struct {
	store    repository.MetricsStore
	logger   domain.Logger
	detector *stats.PatternDetector

	summaryCache *lru.Cache
	cacheTTL     time.Duration
	now          func() time.Time
}

// NewQueryServiceImpl creates a new query service implementation
func NewQueryServiceImpl(store repository.MetricsStore, logger domain.Logger) usecase.QueryService {
	// lru.New only fails for non-positive sizes.
	cache, _ := lru.New(summaryCacheSize)
	return &QueryServiceImpl{
		store:        store,
		logger:       logger,
		detector:     stats.NewPatternDetector(),
		summaryCache: cache,
		cacheTTL:     summaryCacheTTL,
		now:          time.Now,
	}
}

// Query runs a raw metric query against the store.
func (s *QueryServiceImpl) Query(query valueobject.MetricQuery) (*valueobject.MetricQueryResult, error) {
	return s.store.Query(query)
}

// GetMetricsInRange returns all metrics in a time window.
func (s *QueryServiceImpl) GetMetricsInRange(start, end time.Time) ([]*entity.UnifiedMetric, error) {
	return s.queryMetrics(valueobject.MetricQuery{Start: &start, End: &end})
}

// GetMetricsByExecution returns all metrics tagged with an execution id.
func (s *QueryServiceImpl) GetMetricsByExecution(executionID string) ([]*entity.UnifiedMetric, error) {
	return s.queryMetrics(valueobject.MetricQuery{ExecutionID: executionID})
}

// GetMetricsByComponent returns all metrics from one component.
func (s *QueryServiceImpl) GetMetricsByComponent(component string) ([]*entity.UnifiedMetric, error) {
	return s.queryMetrics(valueobject.MetricQuery{Components: []string{component}})
}

// GetMetricsByTier returns all metrics in one tier.
func (s *QueryServiceImpl) GetMetricsByTier(tier entity.MetricTier) ([]*entity.UnifiedMetric, error) {
	return s.queryMetrics(valueobject.MetricQuery{Tiers: []entity.MetricTier{tier}})
}

func (s *QueryServiceImpl) queryMetrics(query valueobject.MetricQuery) ([]*entity.UnifiedMetric, error) {
	result, err := s.store.Query(query)
	if err != nil {
		return nil, err
	}
	return result.Metrics, nil
}

// Aggregate groups matching metrics by the query's group keys and reduces
// each group with the query's aggregation spec. Without group keys all
// matches form a single group keyed "all"; without a spec the reduction
// defaults to avg.
func (s *QueryServiceImpl) Aggregate(query valueobject.MetricQuery) ([]valueobject.AggregatedGroup, error) {
	// Grouping consumes the full match set, not one page of it.
	fullQuery := query
	fullQuery.Limit = 0
	fullQuery.Offset = 0

	result, err := s.store.Query(fullQuery)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]float64)
	for _, metric := range result.Metrics {
		value, ok := metric.NumericValue()
		if !ok {
			continue
		}
		key := compositeGroupKey(metric, query.GroupBy)
		groups[key] = append(groups[key], value)
	}

	spec := valueobject.AggregationSpec{Method: valueobject.AggregateAvg}
	if query.Aggregation != nil {
		spec = *query.Aggregation
	}

	aggregated := make([]valueobject.AggregatedGroup, 0, len(groups))
	for key, values := range groups {
		reduced, err := reduceValues(values, spec)
		if err != nil {
			return nil, err
		}
		aggregated = append(aggregated, valueobject.AggregatedGroup{
			Key:   key,
			Count: len(values),
			Value: reduced,
		})
	}

	sort.Slice(aggregated, func(i, j int) bool { return aggregated[i].Key < aggregated[j].Key })
	return aggregated, nil
}

func compositeGroupKey(metric *entity.UnifiedMetric, keys []valueobject.GroupKey) string {
	if len(keys) == 0 {
		return "all"
	}

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, groupKeyValue(metric, key))
	}
	return strings.Join(parts, "|")
}

func groupKeyValue(metric *entity.UnifiedMetric, key valueobject.GroupKey) string {
	switch key {
	case valueobject.GroupByTier:
		return string(metric.Tier)
	case valueobject.GroupByComponent:
		return metric.Component
	case valueobject.GroupByType:
		return string(metric.Type)
	case valueobject.GroupByName:
		return metric.Name
	case valueobject.GroupByExecutionID:
		return metric.ExecutionID
	case valueobject.GroupByUserID:
		return metric.UserID
	case valueobject.GroupByTeamID:
		return metric.TeamID
	}
	return ""
}

func reduceValues(values []float64, spec valueobject.AggregationSpec) (float64, error) {
	basic := stats.CalculateBasicStats(values)

	switch spec.Method {
	case valueobject.AggregateAvg:
		return basic.Avg, nil
	case valueobject.AggregateSum:
		return basic.Sum, nil
	case valueobject.AggregateMin:
		return basic.Min, nil
	case valueobject.AggregateMax:
		return basic.Max, nil
	case valueobject.AggregateCount:
		return float64(basic.Count), nil
	case valueobject.AggregatePercentile:
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)
		return stats.Percentile(sorted, spec.Percentile/100), nil
	}
	return 0, domain.ErrQuery("aggregation",
		fmt.Sprintf("unknown aggregation method %q", spec.Method))
}

// GetSummary computes the statistical summary for one metric name over a
// window. Recent results are served from an LRU cache.
func (s *QueryServiceImpl) GetSummary(name string, start, end time.Time) (*valueobject.MetricSummary, error) {
	if name == "" {
		return nil, domain.ErrQuery("summary", "metric name is required")
	}

	cacheKey := fmt.Sprintf("%s|%d|%d", name, start.UnixNano(), end.UnixNano())
	if raw, ok := s.summaryCache.Get(cacheKey); ok {
		if entry, ok := raw.(cachedSummary); ok && s.now().Sub(entry.computedAt) < s.cacheTTL {
			summary := entry.summary
			return &summary, nil
		}
	}

	result, err := s.store.Query(valueobject.MetricQuery{
		Start: &start,
		End:   &end,
		Names: []string{name},
	})
	if err != nil {
		return nil, err
	}

	summary := s.summarize(name, "", result.Metrics)

	s.summaryCache.Add(cacheKey, cachedSummary{summary: summary, computedAt: s.now()})
	return &summary, nil
}

// GetSummaries computes one summary per group key over a window. Without
// group keys it returns the single whole-window summary.
func (s *QueryServiceImpl) GetSummaries(name string, start, end time.Time, groupBy []valueobject.GroupKey) ([]valueobject.MetricSummary, error) {
	if len(groupBy) == 0 {
		summary, err := s.GetSummary(name, start, end)
		if err != nil {
			return nil, err
		}
		return []valueobject.MetricSummary{*summary}, nil
	}

	if name == "" {
		return nil, domain.ErrQuery("summary", "metric name is required")
	}

	result, err := s.store.Query(valueobject.MetricQuery{
		Start: &start,
		End:   &end,
		Names: []string{name},
	})
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]*entity.UnifiedMetric)
	for _, metric := range result.Metrics {
		key := compositeGroupKey(metric, groupBy)
		groups[key] = append(groups[key], metric)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	summaries := make([]valueobject.MetricSummary, 0, len(keys))
	for _, key := range keys {
		summaries = append(summaries, s.summarize(name, key, groups[key]))
	}
	return summaries, nil
}

// summarize reduces one timestamp-ascending metric slice, which trend
// detection relies on.
func (s *QueryServiceImpl) summarize(name, groupKey string, metrics []*entity.UnifiedMetric) valueobject.MetricSummary {
	values := make([]float64, 0, len(metrics))
	for _, metric := range metrics {
		if v, ok := metric.NumericValue(); ok {
			values = append(values, v)
		}
	}

	basic := stats.CalculateBasicStats(values)
	summary := valueobject.MetricSummary{
		Name:       name,
		GroupKey:   groupKey,
		Count:      basic.Count,
		Sum:        basic.Sum,
		Avg:        basic.Avg,
		Min:        basic.Min,
		Max:        basic.Max,
		StdDev:     basic.StdDev,
		P50:        basic.P50,
		P90:        basic.P90,
		P95:        basic.P95,
		P99:        basic.P99,
		Trend:      stats.DetectTrend(values),
		ChangeRate: stats.CalculateChangeRate(values),
	}

	anomalies := s.detector.DetectAnomalies(values)
	summary.AnomalyCount = len(anomalies)
	if len(values) > 0 {
		summary.AnomalyScore = float64(len(anomalies)) / float64(len(values))
	}
	return summary
}

// Search matches a case-insensitive substring against metric names,
// components, string values and tags.
func (s *QueryServiceImpl) Search(term string) ([]*entity.UnifiedMetric, error) {
	if term == "" {
		return []*entity.UnifiedMetric{}, nil
	}

	result, err := s.store.Query(valueobject.MetricQuery{})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(term)
	matches := make([]*entity.UnifiedMetric, 0)
	for _, metric := range result.Metrics {
		if metricMatchesTerm(metric, needle) {
			matches = append(matches, metric)
		}
	}
	return matches, nil
}

func metricMatchesTerm(metric *entity.UnifiedMetric, needle string) bool {
	if strings.Contains(strings.ToLower(metric.Name), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(metric.Component), needle) {
		return true
	}
	if str, ok := metric.StringValue(); ok && strings.Contains(strings.ToLower(str), needle) {
		return true
	}
	for _, tag := range metric.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// TopN returns the n matching metrics with the highest numeric values.
// Non-numeric matches are excluded.
func (s *QueryServiceImpl) TopN(query valueobject.MetricQuery, n int) ([]*entity.UnifiedMetric, error) {
	if n <= 0 {
		return []*entity.UnifiedMetric{}, nil
	}

	fullQuery := query
	fullQuery.Limit = 0
	fullQuery.Offset = 0
	fullQuery.SortBy = ""
	fullQuery.SortDir = ""

	result, err := s.store.Query(fullQuery)
	if err != nil {
		return nil, err
	}

	numeric := make([]*entity.UnifiedMetric, 0, len(result.Metrics))
	for _, metric := range result.Metrics {
		if _, ok := metric.NumericValue(); ok {
			numeric = append(numeric, metric)
		}
	}

	sort.SliceStable(numeric, func(i, j int) bool {
		a, _ := numeric[i].NumericValue()
		b, _ := numeric[j].NumericValue()
		return a > b
	})

	if len(numeric) > n {
		numeric = numeric[:n]
	}
	return numeric, nil
}

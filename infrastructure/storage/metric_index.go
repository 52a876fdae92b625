package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/swarmops/telemetry/domain/entity"
)

// IndexConfig bounds the memory of the secondary indexes.
type IndexConfig struct {
	// TimeBucketWidth is the width of one time bucket.
	TimeBucketWidth time.Duration

	// TimeBucketRetention is how far back time buckets are kept; older
	// buckets are pruned outright.
	TimeBucketRetention time.Duration

	// MaxEntries is the global ceiling across each keyed index. Once
	// exceeded, every key keeps only its most recent entries within a
	// per-key budget of MaxEntries / key count.
	MaxEntries int
}

// DefaultIndexConfig returns hourly buckets, one week of time-bucket
// retention and a 100k-entry ceiling per keyed index.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		TimeBucketWidth:     time.Hour,
		TimeBucketRetention: 7 * 24 * time.Hour,
		MaxEntries:          100_000,
	}
}

// MetricIndex maintains five parallel lookup structures over the stored
// metric set: by time bucket, component, execution id, type and name. Every
// entry list stays sorted by timestamp. The index is a derived, rebuildable
// view; the owning storage bucket remains authoritative for a metric's
// existence.
type MetricIndex struct {
	mu sync.RWMutex

	timeBuckets map[int64][]*entity.UnifiedMetric
	byComponent map[string][]*entity.UnifiedMetric
	byExecution map[string][]*entity.UnifiedMetric
	byType      map[entity.MetricType][]*entity.UnifiedMetric
	byName      map[string][]*entity.UnifiedMetric

	config IndexConfig
}

// NewMetricIndex creates an empty index.
func NewMetricIndex(config IndexConfig) *MetricIndex {
	if config.TimeBucketWidth <= 0 {
		config.TimeBucketWidth = time.Hour
	}
	if config.TimeBucketRetention <= 0 {
		config.TimeBucketRetention = 7 * 24 * time.Hour
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 100_000
	}
	return &MetricIndex{
		timeBuckets: make(map[int64][]*entity.UnifiedMetric),
		byComponent: make(map[string][]*entity.UnifiedMetric),
		byExecution: make(map[string][]*entity.UnifiedMetric),
		byType:      make(map[entity.MetricType][]*entity.UnifiedMetric),
		byName:      make(map[string][]*entity.UnifiedMetric),
		config:      config,
	}
}

func (idx *MetricIndex) bucketFor(ts time.Time) int64 {
	return ts.UnixNano() / int64(idx.config.TimeBucketWidth)
}

// Add appends the metric to every applicable index, keeping each entry list
// sorted by timestamp.
func (idx *MetricIndex) Add(metric *entity.UnifiedMetric) {
	if metric == nil {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	bucket := idx.bucketFor(metric.Timestamp)
	idx.timeBuckets[bucket] = insertSorted(idx.timeBuckets[bucket], metric)

	if metric.Component != "" {
		idx.byComponent[metric.Component] = insertSorted(idx.byComponent[metric.Component], metric)
	}
	if metric.ExecutionID != "" {
		idx.byExecution[metric.ExecutionID] = insertSorted(idx.byExecution[metric.ExecutionID], metric)
	}
	idx.byType[metric.Type] = insertSorted(idx.byType[metric.Type], metric)
	if metric.Name != "" {
		idx.byName[metric.Name] = insertSorted(idx.byName[metric.Name], metric)
	}
}

// insertSorted places the metric at its timestamp position. Entries arrive
// mostly in order, so the common case appends.
func insertSorted(entries []*entity.UnifiedMetric, metric *entity.UnifiedMetric) []*entity.UnifiedMetric {
	if len(entries) == 0 || !entries[len(entries)-1].Timestamp.After(metric.Timestamp) {
		return append(entries, metric)
	}
	pos := sort.Search(len(entries), func(i int) bool {
		return entries[i].Timestamp.After(metric.Timestamp)
	})
	entries = append(entries, nil)
	copy(entries[pos+1:], entries[pos:])
	entries[pos] = metric
	return entries
}

// FindByTimeRange returns metrics whose timestamp falls in [start, end].
func (idx *MetricIndex) FindByTimeRange(start, end time.Time) []*entity.UnifiedMetric {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	// Nothing older than the time-bucket retention window can be indexed.
	if floor := time.Now().Add(-idx.config.TimeBucketRetention); start.Before(floor) {
		start = floor
	}

	var result []*entity.UnifiedMetric
	for bucket := idx.bucketFor(start); bucket <= idx.bucketFor(end); bucket++ {
		for _, m := range idx.timeBuckets[bucket] {
			if !m.Timestamp.Before(start) && !m.Timestamp.After(end) {
				result = append(result, m)
			}
		}
	}
	return result
}

// FindByComponent returns the metrics recorded by a component.
func (idx *MetricIndex) FindByComponent(component string) []*entity.UnifiedMetric {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copyEntries(idx.byComponent[component])
}

// FindByExecutionID returns the metrics correlated to an execution.
func (idx *MetricIndex) FindByExecutionID(executionID string) []*entity.UnifiedMetric {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copyEntries(idx.byExecution[executionID])
}

// FindByType returns the metrics of one type.
func (idx *MetricIndex) FindByType(metricType entity.MetricType) []*entity.UnifiedMetric {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copyEntries(idx.byType[metricType])
}

// FindByName returns the metrics with one name.
func (idx *MetricIndex) FindByName(name string) []*entity.UnifiedMetric {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copyEntries(idx.byName[name])
}

func copyEntries(entries []*entity.UnifiedMetric) []*entity.UnifiedMetric {
	if len(entries) == 0 {
		return nil
	}
	result := make([]*entity.UnifiedMetric, len(entries))
	copy(result, entries)
	return result
}

// Prune enforces the index's memory bounds: time buckets past the retention
// window are dropped outright, and each keyed index is trimmed to its per-key
// budget once its total exceeds the configured ceiling. The per-key budget
// shrinks as keys appear; it is a tunable fairness policy, not a contract.
func (idx *MetricIndex) Prune() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	oldest := idx.bucketFor(time.Now().Add(-idx.config.TimeBucketRetention))
	for bucket := range idx.timeBuckets {
		if bucket < oldest {
			delete(idx.timeBuckets, bucket)
		}
	}

	trimKeyed(idx.byComponent, idx.config.MaxEntries)
	trimKeyed(idx.byExecution, idx.config.MaxEntries)
	trimKeyed(idx.byType, idx.config.MaxEntries)
	trimKeyed(idx.byName, idx.config.MaxEntries)
}

// trimKeyed keeps only the most recent entries per key once the index total
// exceeds the ceiling.
func trimKeyed[K comparable](index map[K][]*entity.UnifiedMetric, maxEntries int) {
	total := 0
	for _, entries := range index {
		total += len(entries)
	}
	if total <= maxEntries || len(index) == 0 {
		return
	}

	perKey := maxEntries / len(index)
	if perKey < 1 {
		perKey = 1
	}
	for key, entries := range index {
		if len(entries) > perKey {
			index[key] = copyEntries(entries[len(entries)-perKey:])
		}
	}
}

// Size returns the number of entries in the time-bucket index plus each
// keyed index.
func (idx *MetricIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	total := 0
	for _, entries := range idx.timeBuckets {
		total += len(entries)
	}
	for _, entries := range idx.byComponent {
		total += len(entries)
	}
	for _, entries := range idx.byExecution {
		total += len(entries)
	}
	for _, entries := range idx.byType {
		total += len(entries)
	}
	for _, entries := range idx.byName {
		total += len(entries)
	}
	return total
}

// Clear drops every index entry.
func (idx *MetricIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.timeBuckets = make(map[int64][]*entity.UnifiedMetric)
	idx.byComponent = make(map[string][]*entity.UnifiedMetric)
	idx.byExecution = make(map[string][]*entity.UnifiedMetric)
	idx.byType = make(map[entity.MetricType][]*entity.UnifiedMetric)
	idx.byName = make(map[string][]*entity.UnifiedMetric)
}

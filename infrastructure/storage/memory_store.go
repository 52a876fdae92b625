package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/repository"
	"github.com/swarmops/telemetry/domain/valueobject"
)

// metricByteEstimate is the fixed per-metric footprint estimate used for
// memory accounting.
const metricByteEstimate = 512

// StoreConfig configures the memory-resident metrics store.
type StoreConfig struct {
	// RetentionPolicies are the (tier, type) policies whose buckets are
	// created eagerly at Initialize.
	RetentionPolicies []entity.RetentionPolicy

	// BufferSizes is the per-tier bucket capacity; DefaultBufferSize applies
	// to tiers without an entry.
	BufferSizes       map[entity.MetricTier]int
	DefaultBufferSize int

	// MemoryCeilingBytes drives the health thresholds.
	MemoryCeilingBytes int64

	// MaintenanceInterval is how often idle buckets are reclaimed and the
	// index pruned.
	MaintenanceInterval time.Duration

	// IdleBucketTimeout is how long an empty bucket may go unaccessed
	// before reclamation.
	IdleBucketTimeout time.Duration

	Index IndexConfig
}

// DefaultStoreConfig returns the standard store configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		RetentionPolicies:   entity.DefaultRetentionPolicies(),
		BufferSizes:         map[entity.MetricTier]int{},
		DefaultBufferSize:   10_000,
		MemoryCeilingBytes:  256 << 20,
		MaintenanceInterval: 5 * time.Minute,
		IdleBucketTimeout:   time.Hour,
		Index:               DefaultIndexConfig(),
	}
}

type bucketKey struct {
	tier       entity.MetricTier
	metricType entity.MetricType
}

// storageBucket is the per-(tier, type) container: one time-aware buffer
// bound to that pair's retention policy, an insert counter and a
// last-accessed timestamp used for idle reclamation.
type storageBucket struct {
	policy     entity.RetentionPolicy
	buffer     *TimedRingBuffer[*entity.UnifiedMetric]
	inserts    atomic.Uint64
	lastAccess atomic.Int64 // unix nanos
}

func (b *storageBucket) touch() {
	b.lastAccess.Store(time.Now().UnixNano())
}

func (b *storageBucket) idleSince() time.Time {
	return time.Unix(0, b.lastAccess.Load())
}

// MemoryMetricsStore implements repository.MetricsStore with one
// time-evicting ring buffer per (tier, type) pair plus a secondary index.
type MemoryMetricsStore struct {
	mu      sync.RWMutex
	buckets map[bucketKey]*storageBucket
	index   *MetricIndex

	config StoreConfig
	logger domain.Logger

	initialized bool
	closed      bool
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

// NewMemoryMetricsStore creates an uninitialized store. Initialize must be
// called before use.
func NewMemoryMetricsStore(config StoreConfig, logger domain.Logger) *MemoryMetricsStore {
	if config.DefaultBufferSize <= 0 {
		config.DefaultBufferSize = 10_000
	}
	if config.MaintenanceInterval <= 0 {
		config.MaintenanceInterval = 5 * time.Minute
	}
	if config.IdleBucketTimeout <= 0 {
		config.IdleBucketTimeout = time.Hour
	}
	if config.MemoryCeilingBytes <= 0 {
		config.MemoryCeilingBytes = 256 << 20
	}
	return &MemoryMetricsStore{
		buckets: make(map[bucketKey]*storageBucket),
		config:  config,
		logger:  logger,
	}
}

// Initialize creates one bucket per configured retention policy and starts
// the periodic maintenance task.
func (s *MemoryMetricsStore) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return domain.ErrInvalidState("metrics store", "initialized", "initialize")
	}

	s.index = NewMetricIndex(s.config.Index)
	for _, policy := range s.config.RetentionPolicies {
		key := bucketKey{tier: policy.Tier, metricType: policy.Type}
		if _, exists := s.buckets[key]; exists {
			continue
		}
		s.buckets[key] = s.newBucket(policy)
	}

	s.stopChan = make(chan struct{})
	s.initialized = true
	s.closed = false

	s.wg.Add(1)
	go s.runMaintenance()

	if s.logger != nil {
		s.logger.Info(context.Background(), "metrics store initialized",
			domain.NewField("buckets", len(s.buckets)))
	}
	return nil
}

func (s *MemoryMetricsStore) newBucket(policy entity.RetentionPolicy) *storageBucket {
	capacity := s.config.DefaultBufferSize
	if size, ok := s.config.BufferSizes[policy.Tier]; ok && size > 0 {
		capacity = size
	}

	bucket := &storageBucket{
		policy: policy,
		buffer: NewTimedRingBuffer(capacity, policy.MaxAge(), metricTimestamp, s.logger),
	}
	bucket.touch()
	return bucket
}

func metricTimestamp(m *entity.UnifiedMetric) (time.Time, error) {
	if m == nil || m.Timestamp.IsZero() {
		return time.Time{}, domain.ErrInvalidInput("timestamp", "missing")
	}
	return m.Timestamp, nil
}

// Store routes one metric to its bucket, creating a dynamic bucket with the
// default retention policy on first sight of a (tier, type) combination.
func (s *MemoryMetricsStore) Store(metric *entity.UnifiedMetric) error {
	if metric == nil {
		return domain.ErrInvalidInput("metric", "nil")
	}

	bucket, err := s.bucketForWrite(metric)
	if err != nil {
		return err
	}

	bucket.buffer.Add(metric)
	bucket.inserts.Add(1)
	bucket.touch()
	s.index.Add(metric)
	return nil
}

// StoreBatch stores many metrics; a single bad metric is logged and skipped.
func (s *MemoryMetricsStore) StoreBatch(metrics []*entity.UnifiedMetric) error {
	s.mu.RLock()
	initialized := s.initialized
	s.mu.RUnlock()
	if !initialized {
		return domain.ErrNotInitialized("metrics store", "store batch")
	}

	for _, metric := range metrics {
		if err := s.Store(metric); err != nil {
			if s.logger != nil {
				s.logger.Warn(context.Background(), "skipping bad metric in batch",
					domain.NewField("error", err.Error()))
			}
		}
	}
	return nil
}

func (s *MemoryMetricsStore) bucketForWrite(metric *entity.UnifiedMetric) (*storageBucket, error) {
	key := bucketKey{tier: metric.Tier, metricType: metric.Type}

	s.mu.RLock()
	if !s.initialized {
		s.mu.RUnlock()
		return nil, domain.ErrNotInitialized("metrics store", "store")
	}
	bucket, ok := s.buckets[key]
	s.mu.RUnlock()
	if ok {
		return bucket, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, domain.ErrNotInitialized("metrics store", "store")
	}
	if bucket, ok := s.buckets[key]; ok {
		return bucket, nil
	}

	policy := entity.NewRetentionPolicy(metric.Tier, metric.Type, entity.DefaultRetentionDays)
	bucket = s.newBucket(policy)
	s.buckets[key] = bucket
	if s.logger != nil {
		s.logger.Debug(context.Background(), "created dynamic bucket",
			domain.NewField("tier", string(metric.Tier)),
			domain.NewField("type", string(metric.Type)))
	}
	return bucket, nil
}

// Query selects candidate buckets by tier/type, applies the remaining
// filters linearly, sorts and paginates. The result carries the
// pre-pagination total and the measured wall time.
func (s *MemoryMetricsStore) Query(query valueobject.MetricQuery) (*valueobject.MetricQueryResult, error) {
	started := time.Now()

	s.mu.RLock()
	if !s.initialized {
		s.mu.RUnlock()
		return nil, domain.ErrNotInitialized("metrics store", "query")
	}
	candidates := make([]*storageBucket, 0, len(s.buckets))
	for key, bucket := range s.buckets {
		if query.MatchesTier(key.tier) && query.MatchesType(key.metricType) {
			candidates = append(candidates, bucket)
		}
	}
	s.mu.RUnlock()

	var matched []*entity.UnifiedMetric
	for _, bucket := range candidates {
		bucket.touch()
		var held []*entity.UnifiedMetric
		if start, end, bounded := query.TimeRange(); bounded {
			held = bucket.buffer.GetInTimeRange(start, end, func(m *entity.UnifiedMetric) time.Time {
				return m.Timestamp
			})
		} else {
			held = bucket.buffer.GetAll()
		}
		for _, metric := range held {
			if matchesFilters(metric, query) {
				matched = append(matched, metric)
			}
		}
	}

	sortMetrics(matched, query.SortBy, query.SortDir)

	total := len(matched)
	page := paginate(matched, query.Offset, query.Limit)

	return &valueobject.MetricQueryResult{
		Metrics:       page,
		TotalCount:    total,
		Query:         query,
		ExecutionTime: time.Since(started),
	}, nil
}

// matchesFilters applies the non-bucket filters.
func matchesFilters(m *entity.UnifiedMetric, query valueobject.MetricQuery) bool {
	if len(query.Components) > 0 && !containsString(query.Components, m.Component) {
		return false
	}
	if len(query.Names) > 0 && !containsString(query.Names, m.Name) {
		return false
	}
	if query.ExecutionID != "" && m.ExecutionID != query.ExecutionID {
		return false
	}
	if query.UserID != "" && m.UserID != query.UserID {
		return false
	}
	if query.TeamID != "" && m.TeamID != query.TeamID {
		return false
	}
	for _, tag := range query.Tags {
		if !m.HasTag(tag) {
			return false
		}
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// sortMetrics sorts in place. The sort is stable, so ties keep the scanned
// insertion order. Non-numeric values sort as 0 under the value key.
func sortMetrics(metrics []*entity.UnifiedMetric, field valueobject.SortField, direction valueobject.SortDirection) {
	if field == "" {
		field = valueobject.SortByTimestamp
	}
	descending := direction == valueobject.SortDescending

	less := func(a, b *entity.UnifiedMetric) bool {
		switch field {
		case valueobject.SortByValue:
			av, _ := a.NumericValue()
			bv, _ := b.NumericValue()
			return av < bv
		case valueobject.SortByName:
			return strings.Compare(a.Name, b.Name) < 0
		default:
			return a.Timestamp.Before(b.Timestamp)
		}
	}

	sort.SliceStable(metrics, func(i, j int) bool {
		if descending {
			return less(metrics[j], metrics[i])
		}
		return less(metrics[i], metrics[j])
	})
}

func paginate(metrics []*entity.UnifiedMetric, offset, limit int) []*entity.UnifiedMetric {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(metrics) {
		return nil
	}
	metrics = metrics[offset:]
	if limit > 0 && limit < len(metrics) {
		metrics = metrics[:limit]
	}
	out := make([]*entity.UnifiedMetric, len(metrics))
	copy(out, metrics)
	return out
}

// EnforceRetentionPolicies sweeps every bucket now, independent of the
// buffers' own timers.
func (s *MemoryMetricsStore) EnforceRetentionPolicies() error {
	s.mu.RLock()
	if !s.initialized {
		s.mu.RUnlock()
		return domain.ErrNotInitialized("metrics store", "enforce retention")
	}
	buckets := make([]*storageBucket, 0, len(s.buckets))
	for _, bucket := range s.buckets {
		buckets = append(buckets, bucket)
	}
	s.mu.RUnlock()

	for _, bucket := range buckets {
		bucket.buffer.Sweep()
	}
	return nil
}

// DownsampleOldMetrics is a declared extension point; no downsampling
// algorithm is implemented.
func (s *MemoryMetricsStore) DownsampleOldMetrics() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return domain.ErrNotInitialized("metrics store", "downsample")
	}
	return nil
}

// Stats aggregates bucket counters and estimates the memory footprint.
func (s *MemoryMetricsStore) Stats() (*repository.StoreStats, error) {
	s.mu.RLock()
	if !s.initialized {
		s.mu.RUnlock()
		return nil, domain.ErrNotInitialized("metrics store", "stats")
	}
	buckets := make([]*storageBucket, 0, len(s.buckets))
	for _, bucket := range s.buckets {
		buckets = append(buckets, bucket)
	}
	s.mu.RUnlock()

	stats := &repository.StoreStats{BucketCount: len(buckets)}
	for _, bucket := range buckets {
		held := bucket.buffer.GetAll()
		stats.TotalStored += len(held)
		for _, metric := range held {
			ts := metric.Timestamp
			if stats.OldestTimestamp == nil || ts.Before(*stats.OldestTimestamp) {
				t := ts
				stats.OldestTimestamp = &t
			}
			if stats.NewestTimestamp == nil || ts.After(*stats.NewestTimestamp) {
				t := ts
				stats.NewestTimestamp = &t
			}
		}
	}
	stats.EstimatedBytes = int64(stats.TotalStored) * metricByteEstimate
	return stats, nil
}

// Health derives a status from the estimated footprint against the
// configured ceiling: unhealthy above 90%, degraded above 70%.
func (s *MemoryMetricsStore) Health() (repository.HealthStatus, error) {
	stats, err := s.Stats()
	if err != nil {
		return repository.HealthUnhealthy, err
	}

	usage := float64(stats.EstimatedBytes) / float64(s.config.MemoryCeilingBytes)
	switch {
	case usage > 0.9:
		return repository.HealthUnhealthy, nil
	case usage > 0.7:
		return repository.HealthDegraded, nil
	}
	return repository.HealthHealthy, nil
}

func (s *MemoryMetricsStore) runMaintenance() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runMaintenancePass()
		case <-s.stopChan:
			return
		}
	}
}

// runMaintenancePass reclaims buckets that are both empty and idle past the
// timeout, then prunes the index.
func (s *MemoryMetricsStore) runMaintenancePass() {
	cutoff := time.Now().Add(-s.config.IdleBucketTimeout)

	s.mu.Lock()
	var reclaimed []*storageBucket
	for key, bucket := range s.buckets {
		if bucket.buffer.IsEmpty() && bucket.idleSince().Before(cutoff) {
			reclaimed = append(reclaimed, bucket)
			delete(s.buckets, key)
		}
	}
	s.mu.Unlock()

	for _, bucket := range reclaimed {
		bucket.buffer.Stop()
	}
	if len(reclaimed) > 0 && s.logger != nil {
		s.logger.Debug(context.Background(), "reclaimed idle buckets",
			domain.NewField("count", len(reclaimed)))
	}

	s.index.Prune()
}

// Close stops every bucket timer and the maintenance loop, then discards all
// buckets. Idempotent.
func (s *MemoryMetricsStore) Close() error {
	s.mu.Lock()
	if s.closed || !s.initialized {
		s.closed = true
		s.initialized = false
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.initialized = false
	close(s.stopChan)
	buckets := make([]*storageBucket, 0, len(s.buckets))
	for _, bucket := range s.buckets {
		buckets = append(buckets, bucket)
	}
	s.buckets = make(map[bucketKey]*storageBucket)
	s.mu.Unlock()

	s.wg.Wait()
	for _, bucket := range buckets {
		bucket.buffer.Stop()
	}
	if s.index != nil {
		s.index.Clear()
	}
	if s.logger != nil {
		s.logger.Info(context.Background(), "metrics store closed")
	}
	return nil
}

// Index exposes the secondary index for read paths that can use keyed
// lookups. The index is a derived view; the buckets stay authoritative.
func (s *MemoryMetricsStore) Index() *MetricIndex {
	return s.index
}

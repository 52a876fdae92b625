package impl

import (
	"context"
	"sync"
	"time"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/repository"
	"github.com/swarmops/telemetry/domain/valueobject"
)

// mockMetricsStore records everything written to it and answers queries from
// that in-memory slice.
type mockMetricsStore struct {
	mu          sync.Mutex
	stored      []*entity.UnifiedMetric
	storeErr    error
	queryErr    error
	batchCalls  int
	singleCalls int
	closed      bool
}

func (m *mockMetricsStore) Initialize() error { return nil }

func (m *mockMetricsStore) Store(metric *entity.UnifiedMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.singleCalls++
	if m.storeErr != nil {
		return m.storeErr
	}
	m.stored = append(m.stored, metric)
	return nil
}

func (m *mockMetricsStore) StoreBatch(metrics []*entity.UnifiedMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.storeErr != nil {
		return m.storeErr
	}
	m.stored = append(m.stored, metrics...)
	return nil
}

func (m *mockMetricsStore) Query(query valueobject.MetricQuery) (*valueobject.MetricQueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}

	var matched []*entity.UnifiedMetric
	start, end, bounded := query.TimeRange()
	for _, metric := range m.stored {
		if !query.MatchesTier(metric.Tier) || !query.MatchesType(metric.Type) {
			continue
		}
		if bounded && (metric.Timestamp.Before(start) || metric.Timestamp.After(end)) {
			continue
		}
		if len(query.Names) > 0 && !containsName(query.Names, metric.Name) {
			continue
		}
		if len(query.Components) > 0 && !containsName(query.Components, metric.Component) {
			continue
		}
		if query.ExecutionID != "" && metric.ExecutionID != query.ExecutionID {
			continue
		}
		matched = append(matched, metric)
	}

	total := len(matched)
	if query.Offset > 0 && query.Offset < len(matched) {
		matched = matched[query.Offset:]
	} else if query.Offset >= len(matched) {
		matched = nil
	}
	if query.Limit > 0 && query.Limit < len(matched) {
		matched = matched[:query.Limit]
	}

	return &valueobject.MetricQueryResult{
		Metrics:    matched,
		TotalCount: total,
		Query:      query,
	}, nil
}

func containsName(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func (m *mockMetricsStore) EnforceRetentionPolicies() error { return nil }
func (m *mockMetricsStore) DownsampleOldMetrics() error     { return nil }

func (m *mockMetricsStore) Stats() (*repository.StoreStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &repository.StoreStats{
		BucketCount: 1,
		TotalStored: len(m.stored),
	}, nil
}

func (m *mockMetricsStore) Health() (repository.HealthStatus, error) {
	return repository.HealthHealthy, nil
}

func (m *mockMetricsStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockMetricsStore) storedMetrics() []*entity.UnifiedMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.UnifiedMetric, len(m.stored))
	copy(out, m.stored)
	return out
}

// mockEventBus captures published events.
type mockEventBus struct {
	mu         sync.Mutex
	published  []repository.BusEvent
	publishErr error
	handlers   map[string]repository.EventHandler
	nextID     int
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{handlers: make(map[string]repository.EventHandler)}
}

func (b *mockEventBus) Subscribe(pattern string, handler repository.EventHandler) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := pattern + "-sub"
	b.handlers[id] = handler
	return id, nil
}

func (b *mockEventBus) Publish(event repository.BusEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, event)
	return nil
}

func (b *mockEventBus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
	return nil
}

func (b *mockEventBus) publishedEvents() []repository.BusEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]repository.BusEvent, len(b.published))
	copy(out, b.published)
	return out
}

// mockLogger counts log calls per level.
type mockLogger struct {
	mu       sync.Mutex
	debugs   int
	infos    int
	warns    int
	errors   int
	messages []string
}

func (l *mockLogger) Debug(ctx context.Context, msg string, fields ...domain.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs++
	l.messages = append(l.messages, msg)
}

func (l *mockLogger) Info(ctx context.Context, msg string, fields ...domain.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos++
	l.messages = append(l.messages, msg)
}

func (l *mockLogger) Warn(ctx context.Context, msg string, fields ...domain.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns++
	l.messages = append(l.messages, msg)
}

func (l *mockLogger) Error(ctx context.Context, msg string, fields ...domain.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors++
	l.messages = append(l.messages, msg)
}

func (l *mockLogger) WithFields(fields ...domain.Field) domain.Logger { return l }

func (l *mockLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errors
}

// mockExporter captures exported gauges.
type mockExporter struct {
	mu      sync.Mutex
	sent    map[string]float64
	sendErr error
}

func newMockExporter() *mockExporter {
	return &mockExporter{sent: make(map[string]float64)}
}

func (e *mockExporter) SendGauge(ctx context.Context, name string, value float64, labels map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sendErr != nil {
		return e.sendErr
	}
	e.sent[name] = value
	return nil
}

func (e *mockExporter) sentGauges() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]float64, len(e.sent))
	for k, v := range e.sent {
		out[k] = v
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }

package impl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/repository"
	"github.com/swarmops/telemetry/domain/valueobject"
)

func newTestTelemetryService(t *testing.T, store *mockMetricsStore) *TelemetryServiceImpl {
	t.Helper()
	collector := newTestCollector(t, store, newMockEventBus(), nil)
	querySvc := NewQueryServiceImpl(store, &mockLogger{})
	return NewTelemetryServiceImpl(collector, querySvc, store, &mockLogger{}).(*TelemetryServiceImpl)
}

func TestTelemetryRecordAndQueryRoundTrip(t *testing.T) {
	store := &mockMetricsStore{}
	service := newTestTelemetryService(t, store)

	require.NoError(t, service.Record(entity.MetricInput{
		Tier: entity.TierOne, Component: "scheduler",
		Type: entity.MetricTypePerformance, Name: "latency", Value: 12.5,
	}))
	require.NoError(t, service.Flush())

	result, err := service.Query(valueobject.MetricQuery{Names: []string{"latency"}})
	require.NoError(t, err)
	require.Len(t, result.Metrics, 1)
	assert.NotEmpty(t, result.Metrics[0].ID)
	assert.False(t, result.Metrics[0].Timestamp.IsZero())
}

func TestTelemetryRecordBatch(t *testing.T) {
	store := &mockMetricsStore{}
	service := newTestTelemetryService(t, store)

	inputs := make([]entity.MetricInput, 10)
	for i := range inputs {
		inputs[i] = entity.MetricInput{
			Tier: entity.TierTwo, Component: "swarm-a",
			Type: entity.MetricTypePerformance, Name: "latency", Value: float64(i),
		}
	}
	require.NoError(t, service.RecordBatch(inputs))
	require.NoError(t, service.Flush())

	assert.Len(t, store.storedMetrics(), 10)
}

func TestTelemetryGetSummary(t *testing.T) {
	store := &mockMetricsStore{}
	for i := 1; i <= 4; i++ {
		seedMetric(store, entity.TierOne, "a", entity.MetricTypePerformance, "latency", float64(i))
	}

	service := newTestTelemetryService(t, store)
	summaries, err := service.GetSummary("latency", time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 4, summaries[0].Count)
	assert.Equal(t, 2.5, summaries[0].Avg)
}

func TestTelemetryGetSummaryGrouped(t *testing.T) {
	store := &mockMetricsStore{}
	seedMetric(store, entity.TierOne, "scheduler", entity.MetricTypePerformance, "latency", 10.0)
	seedMetric(store, entity.TierOne, "scheduler", entity.MetricTypePerformance, "latency", 20.0)
	seedMetric(store, entity.TierTwo, "swarm-a", entity.MetricTypePerformance, "latency", 40.0)

	service := newTestTelemetryService(t, store)
	summaries, err := service.GetSummary("latency",
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour),
		valueobject.GroupByComponent)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "scheduler", summaries[0].GroupKey)
	assert.Equal(t, 15.0, summaries[0].Avg)
	assert.Equal(t, "swarm-a", summaries[1].GroupKey)
	assert.Equal(t, 40.0, summaries[1].Avg)
}

func TestTelemetryDetectAnomalies(t *testing.T) {
	store := &mockMetricsStore{}
	seedSpikeSeries(store, "latency")

	service := newTestTelemetryService(t, store)
	report, err := service.DetectAnomalies("latency", 60)
	require.NoError(t, err)

	assert.Equal(t, "latency", report.MetricName)
	assert.Equal(t, time.Hour, report.Lookback)
	require.Len(t, report.Points, 1)
	assert.Equal(t, 100.0, report.Points[0].Value)
	assert.Equal(t, 10, report.Points[0].Index)
	require.Len(t, report.Metrics, 1)
	assert.Equal(t, "latency", report.Metrics[0].Name)
	assert.InDelta(t, 1.0/11.0, report.Score, 0.001)
}

func TestTelemetryDetectAnomaliesValidation(t *testing.T) {
	service := newTestTelemetryService(t, &mockMetricsStore{})

	_, err := service.DetectAnomalies("", 60)
	require.Error(t, err)
	_, err = service.DetectAnomalies("latency", 0)
	require.Error(t, err)
}

func TestTelemetryHealthCombinesStoreAndCollector(t *testing.T) {
	store := &mockMetricsStore{}
	service := newTestTelemetryService(t, store)

	health, err := service.Health()
	require.NoError(t, err)
	assert.Equal(t, repository.HealthHealthy, health)
}

func TestTelemetryCloseIsIdempotent(t *testing.T) {
	service := newTestTelemetryService(t, &mockMetricsStore{})

	require.NoError(t, service.Close())
	require.NoError(t, service.Close())

	err := service.Record(entity.MetricInput{
		Tier: entity.TierOne, Component: "a",
		Type: entity.MetricTypePerformance, Name: "latency", Value: 1.0,
	})
	require.Error(t, err)
}

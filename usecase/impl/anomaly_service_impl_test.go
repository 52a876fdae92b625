package impl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/entity"
	usecase "github.com/swarmops/telemetry/usecase/interface"
)

func newTestAnomalyService(store *mockMetricsStore, bus *mockEventBus, status usecase.StatusService) *AnomalyServiceImpl {
	return NewAnomalyServiceImpl(store, bus, status, &mockLogger{}, DefaultAnomalySettings()).(*AnomalyServiceImpl)
}

func seedSpikeSeries(store *mockMetricsStore, name string) {
	for i := 0; i < 10; i++ {
		seedMetric(store, entity.TierOne, "scheduler", entity.MetricTypePerformance, name, 10.0)
	}
	seedMetric(store, entity.TierOne, "scheduler", entity.MetricTypePerformance, name, 100.0)
}

func TestSweepNowFlagsSpikeSeries(t *testing.T) {
	store := &mockMetricsStore{}
	bus := newMockEventBus()
	status := NewStatusServiceImpl()
	seedSpikeSeries(store, "latency")

	service := newTestAnomalyService(store, bus, status)
	flagged, err := service.SweepNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)

	published := bus.publishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, string(entity.MonitoringEventAnomaly), published[0].Topic)

	event, ok := published[0].Payload.(entity.MonitoringEvent)
	require.True(t, ok)
	assert.Equal(t, entity.MonitoringEventAnomaly, event.Type)

	payload, ok := event.Data.(entity.AnomalyPayload)
	require.True(t, ok)
	assert.Equal(t, "latency", payload.MetricName)
	require.Len(t, payload.Anomalies, 1)
	value, _ := payload.Anomalies[0].NumericValue()
	assert.Equal(t, 100.0, value)
	assert.InDelta(t, 1.0/11.0, payload.Score, 0.001)

	info, err := status.GetStatus()
	require.NoError(t, err)
	require.NotNil(t, info.LastSweepAt)
	assert.Equal(t, 1, info.LastSweepFlagged)
}

func TestSweepNowStableSeriesNotFlagged(t *testing.T) {
	store := &mockMetricsStore{}
	bus := newMockEventBus()
	for i := 0; i < 20; i++ {
		seedMetric(store, entity.TierOne, "scheduler", entity.MetricTypePerformance, "latency", 10.0)
	}

	service := newTestAnomalyService(store, bus, NewStatusServiceImpl())
	flagged, err := service.SweepNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, flagged)
	assert.Empty(t, bus.publishedEvents())
}

func TestSweepNowTooFewPointsSkipped(t *testing.T) {
	store := &mockMetricsStore{}
	bus := newMockEventBus()
	seedMetric(store, entity.TierOne, "scheduler", entity.MetricTypePerformance, "latency", 10.0)
	seedMetric(store, entity.TierOne, "scheduler", entity.MetricTypePerformance, "latency", 100.0)

	service := newTestAnomalyService(store, bus, NewStatusServiceImpl())
	flagged, err := service.SweepNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, flagged)
}

func TestSweepNowSeparatesSeriesByName(t *testing.T) {
	store := &mockMetricsStore{}
	bus := newMockEventBus()
	seedSpikeSeries(store, "latency")
	seedSpikeSeries(store, "queue.depth")
	for i := 0; i < 10; i++ {
		seedMetric(store, entity.TierTwo, "swarm-a", entity.MetricTypePerformance, "stable", 5.0)
	}

	service := newTestAnomalyService(store, bus, NewStatusServiceImpl())
	flagged, err := service.SweepNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, flagged)
	assert.Len(t, bus.publishedEvents(), 2)
}

func TestSweepNowQueryErrorRecorded(t *testing.T) {
	store := &mockMetricsStore{queryErr: domain.ErrStorage("query", "offline")}
	status := NewStatusServiceImpl()

	service := newTestAnomalyService(store, newMockEventBus(), status)
	_, err := service.SweepNow(context.Background())
	require.Error(t, err)

	info, statusErr := status.GetStatus()
	require.NoError(t, statusErr)
	assert.Error(t, info.LastError)
}

func TestAnomalyServiceLifecycle(t *testing.T) {
	store := &mockMetricsStore{}
	seedSpikeSeries(store, "latency")
	bus := newMockEventBus()

	service := NewAnomalyServiceImpl(store, bus, NewStatusServiceImpl(), &mockLogger{},
		AnomalySettings{SweepInterval: 10 * time.Millisecond, Lookback: time.Hour}).(*AnomalyServiceImpl)

	require.NoError(t, service.Start())
	err := service.Start()
	require.Error(t, err)

	assert.Eventually(t, func() bool {
		return len(bus.publishedEvents()) > 0
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, service.Stop())
	require.NoError(t, service.Stop())
}

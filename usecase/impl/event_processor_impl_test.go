package impl

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/repository"
)

func newTestProcessor(store *mockMetricsStore, bus *mockEventBus) *EventProcessorImpl {
	return NewEventProcessorImpl(store, bus, &mockLogger{}).(*EventProcessorImpl)
}

func metricNames(metrics []*entity.UnifiedMetric) []string {
	names := make([]string, 0, len(metrics))
	for _, m := range metrics {
		names = append(names, m.Name)
	}
	return names
}

func findMetric(t *testing.T, metrics []*entity.UnifiedMetric, name string) *entity.UnifiedMetric {
	t.Helper()
	for _, m := range metrics {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("metric %q not stored, got %v", name, metricNames(metrics))
	return nil
}

func TestProcessSwarmCompletedWithNestedMetrics(t *testing.T) {
	store := &mockMetricsStore{}
	processor := newTestProcessor(store, newMockEventBus())

	payload := json.RawMessage(`{"durationMs": 1250.5, "successRate": 0.96, "errorRate": 0.04}`)
	event := &entity.UpstreamEvent{
		ID:        "evt-1",
		Kind:      entity.EventKindSwarmCompleted,
		Source:    "swarm-coordinator",
		Timestamp: time.Now(),
		Swarm:     &entity.SwarmLifecycle{SwarmID: "swarm-7", Phase: "completed", Metrics: payload},
	}

	require.NoError(t, processor.ProcessEvent(context.Background(), event))

	stored := store.storedMetrics()
	require.Len(t, stored, 4)

	occurred := findMetric(t, stored, "swarm.completed.occurred")
	assert.Equal(t, entity.MetricTypeBusiness, occurred.Type)
	assert.Equal(t, entity.TierTwo, occurred.Tier)
	assert.Equal(t, "swarm-7", occurred.ExecutionID)
	assert.Equal(t, 1.0, occurred.Value)

	duration := findMetric(t, stored, "swarm.completed.duration_ms")
	assert.Equal(t, entity.MetricTypePerformance, duration.Type)
	assert.Equal(t, 1250.5, duration.Value)
	assert.Equal(t, "ms", duration.Unit)

	successRate := findMetric(t, stored, "swarm.completed.success_rate")
	assert.Equal(t, entity.MetricTypeQuality, successRate.Type)
	assert.Equal(t, 0.96, successRate.Value)

	findMetric(t, stored, "swarm.completed.error_rate")
}

func TestProcessLifecycleWithoutNestedMetrics(t *testing.T) {
	store := &mockMetricsStore{}
	processor := newTestProcessor(store, newMockEventBus())

	event := &entity.UpstreamEvent{
		ID:     "evt-2",
		Kind:   entity.EventKindRunStarted,
		Source: "queen-orchestrator",
		Run:    &entity.RunLifecycle{RunID: "run-3", SwarmID: "swarm-7", Phase: "started"},
	}

	require.NoError(t, processor.ProcessEvent(context.Background(), event))

	stored := store.storedMetrics()
	require.Len(t, stored, 1)
	assert.Equal(t, "run.started.occurred", stored[0].Name)
	assert.Equal(t, entity.TierOne, stored[0].Tier)
	assert.Equal(t, "run-3", stored[0].ExecutionID)
}

func TestProcessLifecycleReadsSnakeCaseFields(t *testing.T) {
	store := &mockMetricsStore{}
	processor := newTestProcessor(store, newMockEventBus())

	payload := json.RawMessage(`{"duration_ms": 80, "completion_rate": 0.5}`)
	event := &entity.UpstreamEvent{
		ID:   "evt-3",
		Kind: entity.EventKindRunCompleted,
		Run:  &entity.RunLifecycle{RunID: "run-9", Metrics: payload},
	}

	require.NoError(t, processor.ProcessEvent(context.Background(), event))

	stored := store.storedMetrics()
	findMetric(t, stored, "run.completed.duration_ms")
	completion := findMetric(t, stored, "run.completed.completion_rate")
	assert.Equal(t, 0.5, completion.Value)
}

func TestProcessStepCompletion(t *testing.T) {
	store := &mockMetricsStore{}
	processor := newTestProcessor(store, newMockEventBus())

	event := &entity.UpstreamEvent{
		ID:     "evt-4",
		Kind:   entity.EventKindStepCompleted,
		Source: "agent-12",
		Step:   &entity.StepCompletion{StepID: "step-1", RunID: "run-3", DurationMs: 42, Success: false},
	}

	require.NoError(t, processor.ProcessEvent(context.Background(), event))

	stored := store.storedMetrics()
	require.Len(t, stored, 3)

	duration := findMetric(t, stored, "step.duration_ms")
	assert.Equal(t, 42.0, duration.Value)
	assert.Equal(t, entity.TierThree, duration.Tier)
	assert.Equal(t, "run-3", duration.ExecutionID)

	success := findMetric(t, stored, "step.success")
	assert.Equal(t, 0.0, success.Value)
	assert.Equal(t, entity.MetricTypeQuality, success.Type)
}

func TestProcessResourceSample(t *testing.T) {
	store := &mockMetricsStore{}
	processor := newTestProcessor(store, newMockEventBus())

	event := &entity.UpstreamEvent{
		ID:       "evt-5",
		Kind:     entity.EventKindResource,
		Source:   "worker-node-1",
		Resource: &entity.ResourceSample{Component: "worker-pool", Resource: "memory", Value: 512, Unit: "MB"},
	}

	require.NoError(t, processor.ProcessEvent(context.Background(), event))

	stored := store.storedMetrics()
	require.Len(t, stored, 1)
	assert.Equal(t, "resource.memory", stored[0].Name)
	assert.Equal(t, entity.MetricTypeResource, stored[0].Type)
	assert.Equal(t, "worker-pool", stored[0].Component)
	assert.Equal(t, "MB", stored[0].Unit)
	assert.Equal(t, entity.TierThree, stored[0].Tier)
}

func TestProcessTelemetrySampleFallsBackToEventSource(t *testing.T) {
	store := &mockMetricsStore{}
	processor := newTestProcessor(store, newMockEventBus())

	event := &entity.UpstreamEvent{
		ID:        "evt-6",
		Kind:      entity.EventKindTelemetry,
		Source:    "scheduler-core",
		Telemetry: &entity.TelemetrySample{Name: "queue.depth", Value: 17},
	}

	require.NoError(t, processor.ProcessEvent(context.Background(), event))

	stored := store.storedMetrics()
	require.Len(t, stored, 1)
	assert.Equal(t, "queue.depth", stored[0].Name)
	assert.Equal(t, "scheduler-core", stored[0].Component)
	assert.Equal(t, entity.TierOne, stored[0].Tier)
}

func TestProcessHealthSampleMapsStatusToValue(t *testing.T) {
	store := &mockMetricsStore{}
	processor := newTestProcessor(store, newMockEventBus())

	cases := []struct {
		status string
		value  float64
	}{
		{"healthy", 1.0},
		{"degraded", 0.5},
		{"unhealthy", 0.0},
	}

	for _, tc := range cases {
		event := &entity.UpstreamEvent{
			ID:     "evt-health-" + tc.status,
			Kind:   entity.EventKindHealth,
			Health: &entity.HealthSample{Component: "bus", Status: tc.status, Detail: "heartbeat timeout"},
		}
		require.NoError(t, processor.ProcessEvent(context.Background(), event))
	}

	stored := store.storedMetrics()
	require.Len(t, stored, 3)
	for i, tc := range cases {
		assert.Equal(t, tc.value, stored[i].Value, tc.status)
		assert.Equal(t, tc.status, stored[i].Metadata["status"])
		assert.Equal(t, "heartbeat timeout", stored[i].Metadata["detail"])
	}
}

func TestProcessGenericEventKeepsPayload(t *testing.T) {
	store := &mockMetricsStore{}
	processor := newTestProcessor(store, newMockEventBus())

	event := &entity.UpstreamEvent{
		ID:     "evt-7",
		Kind:   entity.EventKindGeneric,
		Source: "plugin-x",
		Generic: &entity.GenericEvent{
			Category:    "billing",
			Subcategory: "invoice",
			Payload:     json.RawMessage(`{"amount": 12}`),
		},
	}

	require.NoError(t, processor.ProcessEvent(context.Background(), event))

	stored := store.storedMetrics()
	require.Len(t, stored, 1)
	assert.Equal(t, "billing.invoice", stored[0].Name)
	assert.Equal(t, entity.MetricTypeBusiness, stored[0].Type)
	assert.Equal(t, entity.TierCrossCutting, stored[0].Tier)
	assert.Equal(t, `{"amount": 12}`, stored[0].Metadata["payload"])
}

func TestProcessMetadataTierOverridesSourceInference(t *testing.T) {
	store := &mockMetricsStore{}
	processor := newTestProcessor(store, newMockEventBus())

	event := &entity.UpstreamEvent{
		ID:       "evt-8",
		Kind:     entity.EventKindHealth,
		Source:   "agent-3",
		Metadata: map[string]string{"tier": string(entity.TierOne)},
		Health:   &entity.HealthSample{Component: "agent-3", Status: "healthy"},
	}

	require.NoError(t, processor.ProcessEvent(context.Background(), event))

	stored := store.storedMetrics()
	require.Len(t, stored, 1)
	assert.Equal(t, entity.TierOne, stored[0].Tier)
}

func TestProcessEventWithoutVariantErrors(t *testing.T) {
	store := &mockMetricsStore{}
	processor := newTestProcessor(store, newMockEventBus())

	err := processor.ProcessEvent(context.Background(), &entity.UpstreamEvent{ID: "evt-9", Kind: "mystery"})
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeEventProcessing, domainErr.Code)

	stats := processor.Stats()
	assert.Equal(t, uint64(1), stats.Total)
	assert.Equal(t, uint64(1), stats.Errored)
	assert.Equal(t, uint64(0), stats.Succeeded)
}

func TestMalformedEventDoesNotBlockLaterEvents(t *testing.T) {
	store := &mockMetricsStore{}
	processor := newTestProcessor(store, newMockEventBus())

	require.Error(t, processor.ProcessEvent(context.Background(), nil))

	event := &entity.UpstreamEvent{
		ID:        "evt-10",
		Kind:      entity.EventKindTelemetry,
		Telemetry: &entity.TelemetrySample{Component: "worker", Name: "lag", Value: 3},
	}
	require.NoError(t, processor.ProcessEvent(context.Background(), event))

	stats := processor.Stats()
	assert.Equal(t, uint64(2), stats.Total)
	assert.Equal(t, uint64(1), stats.Succeeded)
	assert.Equal(t, uint64(1), stats.Errored)
	assert.Equal(t, 0.5, stats.ErrorRate)
	require.NotNil(t, stats.LastProcessedAt)
	assert.Positive(t, stats.MaxLatency)
	assert.Positive(t, stats.AvgLatency)
}

func TestErrorRateAgesOutOldFailures(t *testing.T) {
	store := &mockMetricsStore{}
	processor := newTestProcessor(store, newMockEventBus())

	for i := 0; i < 10; i++ {
		require.Error(t, processor.ProcessEvent(context.Background(), nil))
	}

	event := &entity.UpstreamEvent{
		ID:        "evt-13",
		Kind:      entity.EventKindTelemetry,
		Telemetry: &entity.TelemetrySample{Component: "worker", Name: "lag", Value: 1},
	}
	for i := 0; i < latencyWindowSize; i++ {
		require.NoError(t, processor.ProcessEvent(context.Background(), event))
	}

	// Lifetime counters keep the failures, the rate does not once the
	// window has rolled past them.
	stats := processor.Stats()
	assert.Equal(t, uint64(10), stats.Errored)
	assert.Zero(t, stats.ErrorRate)
}

func TestProcessStoreFailureWrapsCause(t *testing.T) {
	store := &mockMetricsStore{}
	store.storeErr = domain.ErrStorage("store", "disk full")
	processor := newTestProcessor(store, newMockEventBus())

	event := &entity.UpstreamEvent{
		ID:        "evt-11",
		Kind:      entity.EventKindTelemetry,
		Telemetry: &entity.TelemetrySample{Component: "worker", Name: "lag", Value: 3},
	}

	err := processor.ProcessEvent(context.Background(), event)
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeEventProcessing, domainErr.Code)
}

func TestStartSubscribesAndRoutesBusEvents(t *testing.T) {
	store := &mockMetricsStore{}
	bus := newMockEventBus()
	processor := newTestProcessor(store, bus)

	require.NoError(t, processor.Start())
	assert.Len(t, bus.handlers, len(upstreamPatterns))

	handler := bus.handlers["telemetry.*-sub"]
	require.NotNil(t, handler)

	handler(repository.BusEvent{
		Topic: "telemetry.sample",
		Payload: &entity.UpstreamEvent{
			ID:        "evt-12",
			Kind:      entity.EventKindTelemetry,
			Telemetry: &entity.TelemetrySample{Component: "worker", Name: "lag", Value: 1},
		},
	})
	assert.Len(t, store.storedMetrics(), 1)

	// Non-upstream payloads on shared topics are ignored.
	handler(repository.BusEvent{Topic: "telemetry.sample", Payload: "not an event"})
	assert.Len(t, store.storedMetrics(), 1)

	require.NoError(t, processor.Stop())
	assert.Empty(t, bus.handlers)
}

func TestStartTwiceErrors(t *testing.T) {
	processor := newTestProcessor(&mockMetricsStore{}, newMockEventBus())

	require.NoError(t, processor.Start())
	err := processor.Start()
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeInvalidState, domainErr.Code)

	require.NoError(t, processor.Stop())
	require.NoError(t, processor.Stop())
}

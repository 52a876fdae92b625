package impl

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/repository"
	"github.com/swarmops/telemetry/infrastructure/storage"
	usecase "github.com/swarmops/telemetry/usecase/interface"
)

const latencyWindowSize = 1000

// upstreamPatterns are the bus topic patterns carrying platform events.
var upstreamPatterns = []string{
	"swarm.*",
	"run.*",
	"step.*",
	"resource.*",
	"telemetry.*",
	"health.*",
	"generic",
}

// EventProcessorImpl implements the EventProcessor interface
type EventProcessorImpl struct {
	store  repository.MetricsStore
	bus    repository.EventBus
	logger domain.Logger

	total     atomic.Uint64
	succeeded atomic.Uint64
	errored   atomic.Uint64

	lastProcessed atomic.Int64 // unix nanos, 0 before the first event
	latencies     *storage.RingBuffer[time.Duration]
	outcomes      *storage.RingBuffer[bool]

	mu            sync.Mutex
	subscriptions []string
	running       bool
}

// NewEventProcessorImpl creates a new event processor implementation
func NewEventProcessorImpl(
	store repository.MetricsStore,
	bus repository.EventBus,
	logger domain.Logger,
) usecase.EventProcessor {
	return &EventProcessorImpl{
		store:     store,
		bus:       bus,
		logger:    logger,
		latencies: storage.NewRingBuffer[time.Duration](latencyWindowSize),
		outcomes:  storage.NewRingBuffer[bool](latencyWindowSize),
	}
}

// Start subscribes the processor to every upstream topic pattern.
func (p *EventProcessorImpl) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return domain.ErrInvalidState("event processor", "running", "start")
	}
	if p.bus == nil {
		return domain.ErrEventBus("subscribe", "no event bus configured")
	}

	for _, pattern := range upstreamPatterns {
		id, err := p.bus.Subscribe(pattern, p.handleBusEvent)
		if err != nil {
			p.unsubscribeLocked()
			return err
		}
		p.subscriptions = append(p.subscriptions, id)
	}
	p.running = true
	return nil
}

// Stop unsubscribes from the bus. Idempotent.
func (p *EventProcessorImpl) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.unsubscribeLocked()
	p.running = false
	return nil
}

func (p *EventProcessorImpl) unsubscribeLocked() {
	for _, id := range p.subscriptions {
		_ = p.bus.Unsubscribe(id)
	}
	p.subscriptions = nil
}

func (p *EventProcessorImpl) handleBusEvent(event repository.BusEvent) {
	upstream, ok := event.Payload.(*entity.UpstreamEvent)
	if !ok {
		// Engine-emitted monitoring events share the bus; ignore them.
		return
	}
	// Errors are already counted and logged inside ProcessEvent.
	_ = p.ProcessEvent(context.Background(), upstream)
}

// ProcessEvent normalizes one upstream event into unified metrics and writes
// them through the store.
func (p *EventProcessorImpl) ProcessEvent(ctx context.Context, event *entity.UpstreamEvent) error {
	started := time.Now()
	p.total.Add(1)

	err := p.process(ctx, event)

	p.latencies.Add(time.Since(started))
	p.outcomes.Add(err == nil)
	p.lastProcessed.Store(time.Now().UnixNano())

	if err != nil {
		p.errored.Add(1)
		if p.logger != nil {
			p.logger.Warn(ctx, "failed to process upstream event",
				domain.NewField("category", eventCategory(event)),
				domain.NewField("error", err.Error()))
		}
		return err
	}
	p.succeeded.Add(1)
	return nil
}

func eventCategory(event *entity.UpstreamEvent) string {
	if event == nil {
		return "nil"
	}
	return event.Category()
}

func (p *EventProcessorImpl) process(ctx context.Context, event *entity.UpstreamEvent) error {
	if event == nil {
		return domain.ErrEventProcessing("", "nil", "event is nil")
	}

	var metrics []*entity.UnifiedMetric
	switch {
	case event.Swarm != nil:
		metrics = p.normalizeLifecycle(event, string(event.Kind), event.Swarm.Metrics)
	case event.Run != nil:
		metrics = p.normalizeLifecycle(event, string(event.Kind), event.Run.Metrics)
	case event.Step != nil:
		metrics = p.normalizeStep(event)
	case event.Resource != nil:
		metrics = p.normalizeResource(event)
	case event.Telemetry != nil:
		metrics = p.normalizeTelemetry(event)
	case event.Health != nil:
		metrics = p.normalizeHealth(event)
	case event.Generic != nil:
		metrics = p.normalizeGeneric(event)
	default:
		return domain.ErrEventProcessing(event.ID, string(event.Kind), "no variant payload")
	}

	if err := p.store.StoreBatch(metrics); err != nil {
		return domain.ErrEventProcessingWithCause(event.ID, string(event.Kind), err)
	}
	return nil
}

// normalizeLifecycle emits the business occurrence metric plus any
// performance and quality rates found inside the raw nested payload.
func (p *EventProcessorImpl) normalizeLifecycle(event *entity.UpstreamEvent, kind string, payload json.RawMessage) []*entity.UnifiedMetric {
	tier := inferTier(event)
	component := event.Source
	executionID := event.ExecutionID()

	metrics := []*entity.UnifiedMetric{
		p.newMetric(tier, component, entity.MetricTypeBusiness, kind+".occurred", 1.0, "", executionID),
	}

	if duration, ok := lookupFloat(payload, "durationMs", "duration_ms", "duration"); ok {
		metrics = append(metrics,
			p.newMetric(tier, component, entity.MetricTypePerformance, kind+".duration_ms", duration, "ms", executionID))
	}
	if rate, ok := lookupFloat(payload, "completionRate", "completion_rate"); ok {
		metrics = append(metrics,
			p.newMetric(tier, component, entity.MetricTypeQuality, kind+".completion_rate", rate, "ratio", executionID))
	}
	if rate, ok := lookupFloat(payload, "successRate", "success_rate"); ok {
		metrics = append(metrics,
			p.newMetric(tier, component, entity.MetricTypeQuality, kind+".success_rate", rate, "ratio", executionID))
	}
	if rate, ok := lookupFloat(payload, "errorRate", "error_rate"); ok {
		metrics = append(metrics,
			p.newMetric(tier, component, entity.MetricTypeQuality, kind+".error_rate", rate, "ratio", executionID))
	}

	return metrics
}

func (p *EventProcessorImpl) normalizeStep(event *entity.UpstreamEvent) []*entity.UnifiedMetric {
	tier := inferTier(event)
	component := event.Source
	executionID := event.ExecutionID()
	step := event.Step

	success := 0.0
	if step.Success {
		success = 1.0
	}

	return []*entity.UnifiedMetric{
		p.newMetric(tier, component, entity.MetricTypeBusiness, "step.completed.occurred", 1.0, "", executionID),
		p.newMetric(tier, component, entity.MetricTypePerformance, "step.duration_ms", step.DurationMs, "ms", executionID),
		p.newMetric(tier, component, entity.MetricTypeQuality, "step.success", success, "", executionID),
	}
}

func (p *EventProcessorImpl) normalizeResource(event *entity.UpstreamEvent) []*entity.UnifiedMetric {
	sample := event.Resource
	component := sample.Component
	if component == "" {
		component = event.Source
	}

	metric := p.newMetric(inferTier(event), component, entity.MetricTypeResource,
		"resource."+sample.Resource, sample.Value, sample.Unit, event.ExecutionID())
	return []*entity.UnifiedMetric{metric}
}

func (p *EventProcessorImpl) normalizeTelemetry(event *entity.UpstreamEvent) []*entity.UnifiedMetric {
	sample := event.Telemetry
	component := sample.Component
	if component == "" {
		component = event.Source
	}

	metric := p.newMetric(inferTier(event), component, entity.MetricTypePerformance,
		sample.Name, sample.Value, sample.Unit, event.ExecutionID())
	return []*entity.UnifiedMetric{metric}
}

func (p *EventProcessorImpl) normalizeHealth(event *entity.UpstreamEvent) []*entity.UnifiedMetric {
	sample := event.Health
	component := sample.Component
	if component == "" {
		component = event.Source
	}

	var value float64
	switch sample.Status {
	case "healthy":
		value = 1.0
	case "degraded":
		value = 0.5
	default:
		value = 0.0
	}

	metric := p.newMetric(inferTier(event), component, entity.MetricTypeHealth,
		"health.status", value, "", event.ExecutionID())
	metric.AddMetadata("status", sample.Status)
	if sample.Detail != "" {
		metric.AddMetadata("detail", sample.Detail)
	}
	return []*entity.UnifiedMetric{metric}
}

// normalizeGeneric keeps unknown events visible as a single business metric
// carrying the raw payload.
func (p *EventProcessorImpl) normalizeGeneric(event *entity.UpstreamEvent) []*entity.UnifiedMetric {
	generic := event.Generic

	name := generic.Category
	if name == "" {
		name = "unknown"
	}
	if generic.Subcategory != "" {
		name = fmt.Sprintf("%s.%s", name, generic.Subcategory)
	}

	metric := p.newMetric(inferTier(event), event.Source, entity.MetricTypeBusiness,
		name, 1.0, "", event.ExecutionID())
	if len(generic.Payload) > 0 {
		metric.AddMetadata("payload", string(generic.Payload))
	}
	return []*entity.UnifiedMetric{metric}
}

func (p *EventProcessorImpl) newMetric(tier entity.MetricTier, component string, metricType entity.MetricType, name string, value float64, unit, executionID string) *entity.UnifiedMetric {
	metric := entity.NewUnifiedMetric(tier, component, metricType, name, value)
	metric.Unit = unit
	metric.ExecutionID = executionID
	return metric
}

// Stats returns a snapshot of the processing counters.
func (p *EventProcessorImpl) Stats() usecase.EventProcessorStats {
	stats := usecase.EventProcessorStats{
		Total:     p.total.Load(),
		Succeeded: p.succeeded.Load(),
		Errored:   p.errored.Load(),
	}

	if nanos := p.lastProcessed.Load(); nanos > 0 {
		t := time.Unix(0, nanos)
		stats.LastProcessedAt = &t
	}
	// Error rate tracks the recent window, so a burst of old failures ages
	// out instead of skewing the rate forever.
	if window := p.outcomes.GetAll(); len(window) > 0 {
		failed := 0
		for _, ok := range window {
			if !ok {
				failed++
			}
		}
		stats.ErrorRate = float64(failed) / float64(len(window))
	}

	held := p.latencies.GetAll()
	if len(held) > 0 {
		var sum, max time.Duration
		for _, latency := range held {
			sum += latency
			if latency > max {
				max = latency
			}
		}
		stats.AvgLatency = sum / time.Duration(len(held))
		stats.MaxLatency = max
	}

	return stats
}

// inferTier maps the event source onto the execution hierarchy. An explicit
// tier in the metadata wins; otherwise source-name substrings decide, with
// cross-cutting as the default.
func inferTier(event *entity.UpstreamEvent) entity.MetricTier {
	if event == nil {
		return entity.TierCrossCutting
	}

	if raw, ok := event.Metadata["tier"]; ok {
		if tier := entity.MetricTier(raw); tier.IsValid() {
			return tier
		}
	}

	source := strings.ToLower(event.Source)
	switch {
	case strings.Contains(source, "queen") ||
		strings.Contains(source, "orchestrator") ||
		strings.Contains(source, "scheduler"):
		return entity.TierOne
	case strings.Contains(source, "swarm") ||
		strings.Contains(source, "coordinator"):
		return entity.TierTwo
	case strings.Contains(source, "agent") ||
		strings.Contains(source, "worker") ||
		strings.Contains(source, "step"):
		return entity.TierThree
	}
	return entity.TierCrossCutting
}

// lookupFloat tries each path against the raw payload and returns the first
// numeric hit.
func lookupFloat(payload json.RawMessage, paths ...string) (float64, bool) {
	if len(payload) == 0 {
		return 0, false
	}
	for _, path := range paths {
		if result := gjson.GetBytes(payload, path); result.Exists() && result.Type == gjson.Number {
			return result.Float(), true
		}
	}
	return 0, false
}

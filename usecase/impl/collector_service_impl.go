package impl

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/repository"
	"github.com/swarmops/telemetry/infrastructure/storage"
	usecase "github.com/swarmops/telemetry/usecase/interface"
)

// CollectorSettings are the collector knobs resolved from configuration.
type CollectorSettings struct {
	// Enabled is the master switch. A disabled collector accepts calls and
	// drops every metric.
	Enabled bool

	// MaxOverhead is the per-call overhead budget.
	MaxOverhead time.Duration

	// SamplingRates maps metric types to keep probabilities. Types without
	// an entry use 1.0.
	SamplingRates map[entity.MetricType]float64

	// EnabledTypes restricts recording to these types. Empty means all.
	EnabledTypes map[entity.MetricType]bool

	// BatchSize and FlushInterval drive the accumulator.
	BatchSize     int
	FlushInterval time.Duration

	// LargeBatchThreshold is the caller batch size that bypasses the
	// accumulator.
	LargeBatchThreshold int

	// InspectionBufferSize is the capacity of the recent-metrics ring.
	InspectionBufferSize int

	// PublishBatches controls monitoring.metric emission on the bus.
	PublishBatches bool
}

// DefaultCollectorSettings returns the standard collector configuration.
func DefaultCollectorSettings() CollectorSettings {
	return CollectorSettings{
		Enabled:              true,
		MaxOverhead:          2 * time.Millisecond,
		SamplingRates:        map[entity.MetricType]float64{},
		EnabledTypes:         map[entity.MetricType]bool{},
		BatchSize:            100,
		FlushInterval:        50 * time.Millisecond,
		LargeBatchThreshold:  50,
		InspectionBufferSize: 1000,
		PublishBatches:       true,
	}
}

// CollectorServiceImpl implements the CollectorService interface
type CollectorServiceImpl struct {
	store    repository.MetricsStore
	bus      repository.EventBus
	settings CollectorSettings
	logger   domain.Logger

	guard       *performanceGuard
	accumulator *batchAccumulator
	recent      *storage.RingBuffer[*entity.UnifiedMetric]

	recorded      atomic.Uint64
	sampledOut    atomic.Uint64
	throttled     atomic.Uint64
	filteredOut   atomic.Uint64
	flushes       atomic.Uint64
	publishErrors atomic.Uint64
	queueDrops    atomic.Uint64

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewCollectorServiceImpl creates a new collector service implementation
func NewCollectorServiceImpl(
	store repository.MetricsStore,
	bus repository.EventBus,
	settings CollectorSettings,
	logger domain.Logger,
) usecase.CollectorService {
	if settings.InspectionBufferSize <= 0 {
		settings.InspectionBufferSize = 1000
	}
	if settings.LargeBatchThreshold <= 0 {
		settings.LargeBatchThreshold = 50
	}
	if settings.MaxOverhead <= 0 {
		settings.MaxOverhead = 2 * time.Millisecond
	}

	c := &CollectorServiceImpl{
		store:    store,
		bus:      bus,
		settings: settings,
		logger:   logger,
		guard:    newPerformanceGuard(settings.MaxOverhead),
		recent:   storage.NewRingBuffer[*entity.UnifiedMetric](settings.InspectionBufferSize),
	}
	c.accumulator = newBatchAccumulator(settings.BatchSize, settings.FlushInterval, c.emit, c.recordQueueDrop)
	return c
}

// Record ingests one metric input. The call's own overhead feeds the guard
// on every path, including early exits.
func (c *CollectorServiceImpl) Record(input entity.MetricInput) error {
	started := time.Now()
	defer func() {
		c.guard.record(time.Since(started))
	}()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return domain.ErrCollectorShuttingDown()
	}
	if !c.settings.Enabled {
		c.filteredOut.Add(1)
		return nil
	}

	if !c.typeEnabled(input.Type) {
		c.filteredOut.Add(1)
		return nil
	}
	if c.guard.overBudget() {
		c.throttled.Add(1)
		return nil
	}
	if !c.sampleKeep(input.Type) {
		c.sampledOut.Add(1)
		return nil
	}

	metric := entity.FromInput(input)
	c.recent.Add(metric)
	c.accumulator.add(metric)
	c.recorded.Add(1)
	return nil
}

// RecordBatch ingests many inputs. Batches at or above the large-batch
// threshold skip the accumulator and reach storage immediately.
func (c *CollectorServiceImpl) RecordBatch(inputs []entity.MetricInput) error {
	started := time.Now()
	defer func() {
		c.guard.record(time.Since(started))
	}()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return domain.ErrCollectorShuttingDown()
	}
	if !c.settings.Enabled {
		c.filteredOut.Add(uint64(len(inputs)))
		return nil
	}

	kept := make([]*entity.UnifiedMetric, 0, len(inputs))
	for _, input := range inputs {
		if !c.typeEnabled(input.Type) {
			c.filteredOut.Add(1)
			continue
		}
		if !c.sampleKeep(input.Type) {
			c.sampledOut.Add(1)
			continue
		}
		metric := entity.FromInput(input)
		c.recent.Add(metric)
		kept = append(kept, metric)
	}
	if len(kept) == 0 {
		return nil
	}

	if len(inputs) >= c.settings.LargeBatchThreshold {
		c.emit(kept)
	} else {
		for _, metric := range kept {
			c.accumulator.add(metric)
		}
	}
	c.recorded.Add(uint64(len(kept)))
	return nil
}

// Flush drains the accumulator now.
func (c *CollectorServiceImpl) Flush() error {
	c.accumulator.flush()
	return nil
}

// RecentMetrics returns the newest entries in the inspection ring.
func (c *CollectorServiceImpl) RecentMetrics(n int) []*entity.UnifiedMetric {
	return c.recent.GetRecent(n)
}

// Stats returns a snapshot of the collector counters.
func (c *CollectorServiceImpl) Stats() usecase.CollectorStats {
	return usecase.CollectorStats{
		Recorded:      c.recorded.Load(),
		SampledOut:    c.sampledOut.Load(),
		Throttled:     c.throttled.Load(),
		FilteredOut:   c.filteredOut.Load(),
		Flushes:       c.flushes.Load(),
		PublishErrors: c.publishErrors.Load(),
		QueueDrops:    c.queueDrops.Load(),
		AvgOverhead:   c.guard.average(),
		Throttling:    c.guard.overBudget(),
	}
}

// IsHealthy reports healthy while average overhead sits below 80% of the
// budget and the guard is not throttling.
func (c *CollectorServiceImpl) IsHealthy() bool {
	return c.guard.withinFraction(0.8) && !c.guard.overBudget()
}

// Close flushes pending metrics and rejects further ingestion. Idempotent.
func (c *CollectorServiceImpl) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.accumulator.stop()
	})
	return nil
}

// recordQueueDrop counts a batch the flusher queue could not absorb.
// Telemetry is best-effort; a saturated queue sheds load instead of
// blocking producers.
func (c *CollectorServiceImpl) recordQueueDrop(n int) {
	c.queueDrops.Add(uint64(n))
	if c.logger != nil {
		c.logger.Warn(context.Background(), "flusher queue saturated, dropping batch",
			domain.NewField("size", n))
	}
}

// emit stores one flushed batch and publishes it, grouped by type, on the
// event bus. Failures are logged and swallowed; producers never see them.
func (c *CollectorServiceImpl) emit(batch []*entity.UnifiedMetric) {
	c.flushes.Add(1)

	if err := c.store.StoreBatch(batch); err != nil {
		if c.logger != nil {
			c.logger.Error(context.Background(), "failed to store metric batch",
				domain.NewField("size", len(batch)),
				domain.NewField("error", err.Error()))
		}
		return
	}

	if !c.settings.PublishBatches || c.bus == nil {
		return
	}

	groups := make(map[entity.MetricType][]*entity.UnifiedMetric)
	for _, metric := range batch {
		groups[metric.Type] = append(groups[metric.Type], metric)
	}

	for metricType, metrics := range groups {
		event := entity.NewMonitoringEvent(entity.MonitoringEventMetric,
			entity.EventSource{Tier: entity.TierCrossCutting, Component: "collector"},
			entity.MetricBatchPayload{MetricType: metricType, Metrics: metrics})

		err := c.bus.Publish(repository.BusEvent{
			ID:        event.ID,
			Topic:     string(entity.MonitoringEventMetric),
			Timestamp: event.Timestamp,
			Payload:   event,
		})
		if err != nil {
			c.publishErrors.Add(1)
			if c.logger != nil {
				c.logger.Warn(context.Background(), "failed to publish metric batch",
					domain.NewField("type", string(metricType)),
					domain.NewField("error", err.Error()))
			}
		}
	}
}

func (c *CollectorServiceImpl) typeEnabled(metricType entity.MetricType) bool {
	if len(c.settings.EnabledTypes) == 0 {
		return true
	}
	return c.settings.EnabledTypes[metricType]
}

func (c *CollectorServiceImpl) sampleKeep(metricType entity.MetricType) bool {
	rate, ok := c.settings.SamplingRates[metricType]
	if !ok || rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	return rand.Float64() < rate
}

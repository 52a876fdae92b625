package impl

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/repository"
	"github.com/swarmops/telemetry/domain/stats"
	"github.com/swarmops/telemetry/domain/valueobject"
	usecase "github.com/swarmops/telemetry/usecase/interface"
)

// AnomalySettings control the periodic sweep.
type AnomalySettings struct {
	SweepInterval time.Duration
	Lookback      time.Duration
}

// DefaultAnomalySettings returns the standard sweep cadence.
func DefaultAnomalySettings() AnomalySettings {
	return AnomalySettings{
		SweepInterval: 5 * time.Minute,
		Lookback:      30 * time.Minute,
	}
}

// AnomalyServiceImpl implements the AnomalyService interface
type AnomalyServiceImpl struct {
	store    repository.MetricsStore
	bus      repository.EventBus
	status   usecase.StatusService
	logger   domain.Logger
	detector *stats.PatternDetector
	settings AnomalySettings

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewAnomalyServiceImpl creates a new anomaly service implementation
func NewAnomalyServiceImpl(
	store repository.MetricsStore,
	bus repository.EventBus,
	status usecase.StatusService,
	logger domain.Logger,
	settings AnomalySettings,
) usecase.AnomalyService {
	if settings.SweepInterval <= 0 {
		settings.SweepInterval = DefaultAnomalySettings().SweepInterval
	}
	if settings.Lookback <= 0 {
		settings.Lookback = DefaultAnomalySettings().Lookback
	}
	return &AnomalyServiceImpl{
		store:    store,
		bus:      bus,
		status:   status,
		logger:   logger,
		detector: stats.NewPatternDetector(),
		settings: settings,
	}
}

// Start begins the periodic sweep.
func (s *AnomalyServiceImpl) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return domain.ErrInvalidState("anomaly service", "running", "start")
	}

	s.stopChan = make(chan struct{})
	s.isRunning = true

	s.wg.Add(1)
	go s.runSweepLoop()
	return nil
}

// Stop halts the sweep. Idempotent.
func (s *AnomalyServiceImpl) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *AnomalyServiceImpl) runSweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.settings.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.SweepNow(context.Background()); err != nil {
				s.logger.Warn(context.Background(), "anomaly sweep failed",
					domain.NewField("error", err.Error()))
			}
		case <-s.stopChan:
			return
		}
	}
}

// SweepNow queries the lookback window, runs the detector per metric name and
// publishes one monitoring.anomaly event per flagged series. Returns the
// number of flagged names.
func (s *AnomalyServiceImpl) SweepNow(ctx context.Context) (int, error) {
	start := time.Now().Add(-s.settings.Lookback)
	end := time.Now()

	result, err := s.store.Query(valueobject.MetricQuery{Start: &start, End: &end})
	if err != nil {
		if s.status != nil {
			_ = s.status.RecordError(err)
		}
		return 0, err
	}

	// Result order within a name follows storage order, timestamp ascending.
	byName := make(map[string][]*entity.UnifiedMetric)
	for _, metric := range result.Metrics {
		byName[metric.Name] = append(byName[metric.Name], metric)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	flagged := 0
	for _, name := range names {
		series := byName[name]

		values := make([]float64, 0, len(series))
		numeric := make([]*entity.UnifiedMetric, 0, len(series))
		for _, metric := range series {
			if v, ok := metric.NumericValue(); ok {
				values = append(values, v)
				numeric = append(numeric, metric)
			}
		}

		indices := s.detector.DetectAnomalies(values)
		if len(indices) == 0 {
			continue
		}
		flagged++

		anomalous := make([]*entity.UnifiedMetric, 0, len(indices))
		for _, i := range indices {
			anomalous = append(anomalous, numeric[i])
		}
		s.publishAnomaly(ctx, name, anomalous, float64(len(indices))/float64(len(values)))
	}

	if s.status != nil {
		_ = s.status.UpdateLastSweep(time.Now(), flagged)
	}
	s.logger.Debug(ctx, "anomaly sweep completed",
		domain.NewField("seriesCount", len(byName)),
		domain.NewField("flagged", flagged))
	return flagged, nil
}

func (s *AnomalyServiceImpl) publishAnomaly(ctx context.Context, name string, anomalies []*entity.UnifiedMetric, score float64) {
	if s.bus == nil {
		return
	}

	event := entity.NewMonitoringEvent(
		entity.MonitoringEventAnomaly,
		entity.EventSource{Tier: entity.TierCrossCutting, Component: "anomaly-detector"},
		entity.AnomalyPayload{
			MetricName: name,
			Anomalies:  anomalies,
			Score:      score,
			DetectedAt: time.Now(),
		},
	)

	if err := s.bus.Publish(repository.BusEvent{
		ID:        event.ID,
		Topic:     string(entity.MonitoringEventAnomaly),
		Timestamp: event.Timestamp,
		Payload:   event,
	}); err != nil {
		s.logger.Warn(ctx, "failed to publish anomaly event",
			domain.NewField("metricName", name),
			domain.NewField("error", err.Error()))
	}
}

package impl

import (
	"sync"
	"time"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/repository"
	"github.com/swarmops/telemetry/domain/stats"
	"github.com/swarmops/telemetry/domain/valueobject"
	usecase "github.com/swarmops/telemetry/usecase/interface"
)

// TelemetryServiceImpl is the engine facade. It delegates ingestion to the
// collector and reads to the query service, and combines store and collector
// health into one reading.
type TelemetryServiceImpl struct {
	collector usecase.CollectorService
	querySvc  usecase.QueryService
	store     repository.MetricsStore
	logger    domain.Logger
	detector  *stats.PatternDetector

	closeOnce sync.Once
	closeErr  error
}

// NewTelemetryServiceImpl creates a new telemetry service implementation
func NewTelemetryServiceImpl(
	collector usecase.CollectorService,
	querySvc usecase.QueryService,
	store repository.MetricsStore,
	logger domain.Logger,
) usecase.TelemetryService {
	return &TelemetryServiceImpl{
		collector: collector,
		querySvc:  querySvc,
		store:     store,
		logger:    logger,
		detector:  stats.NewPatternDetector(),
	}
}

// Record ingests one metric. The engine assigns the id and timestamp.
func (s *TelemetryServiceImpl) Record(input entity.MetricInput) error {
	return s.collector.Record(input)
}

// RecordBatch ingests many metrics at once.
func (s *TelemetryServiceImpl) RecordBatch(inputs []entity.MetricInput) error {
	return s.collector.RecordBatch(inputs)
}

// Query runs a filtered, sorted, paginated metric query.
func (s *TelemetryServiceImpl) Query(query valueobject.MetricQuery) (*valueobject.MetricQueryResult, error) {
	return s.querySvc.Query(query)
}

// GetSummary computes the statistical summary of one metric name over a
// time window, one summary per group when group keys are given.
func (s *TelemetryServiceImpl) GetSummary(name string, start, end time.Time, groupBy ...valueobject.GroupKey) ([]valueobject.MetricSummary, error) {
	return s.querySvc.GetSummaries(name, start, end, groupBy)
}

// DetectAnomalies runs anomaly detection over the trailing lookback window
// of one metric name.
func (s *TelemetryServiceImpl) DetectAnomalies(name string, lookbackMinutes int) (*usecase.AnomalyReport, error) {
	if name == "" {
		return nil, domain.ErrInvalidInput("name", "metric name is required")
	}
	if lookbackMinutes <= 0 {
		return nil, domain.ErrInvalidInput("lookbackMinutes", "lookback must be positive")
	}

	lookback := time.Duration(lookbackMinutes) * time.Minute
	start := time.Now().Add(-lookback)
	end := time.Now()

	result, err := s.store.Query(valueobject.MetricQuery{
		Start: &start,
		End:   &end,
		Names: []string{name},
	})
	if err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(result.Metrics))
	numeric := make([]*entity.UnifiedMetric, 0, len(result.Metrics))
	for _, metric := range result.Metrics {
		if v, ok := metric.NumericValue(); ok {
			values = append(values, v)
			numeric = append(numeric, metric)
		}
	}

	report := &usecase.AnomalyReport{
		MetricName: name,
		Lookback:   lookback,
		DetectedAt: time.Now(),
	}

	indices := s.detector.DetectAnomalies(values)
	for _, i := range indices {
		report.Points = append(report.Points, usecase.AnomalousPoint{
			Index:     i,
			Timestamp: numeric[i].Timestamp,
			Value:     values[i],
		})
		report.Metrics = append(report.Metrics, numeric[i])
	}
	if len(values) > 0 {
		report.Score = float64(len(indices)) / float64(len(values))
	}
	return report, nil
}

// Flush forces any accumulated metrics into storage.
func (s *TelemetryServiceImpl) Flush() error {
	return s.collector.Flush()
}

// Health combines store health with the collector's overhead reading. An
// unhealthy store wins; a healthy store with an overloaded collector reads
// as degraded.
func (s *TelemetryServiceImpl) Health() (repository.HealthStatus, error) {
	storeHealth, err := s.store.Health()
	if err != nil {
		return repository.HealthUnhealthy, err
	}
	if storeHealth != repository.HealthHealthy {
		return storeHealth, nil
	}
	if !s.collector.IsHealthy() {
		return repository.HealthDegraded, nil
	}
	return repository.HealthHealthy, nil
}

// Close shuts the engine down. Idempotent.
func (s *TelemetryServiceImpl) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.collector.Close()
	})
	return s.closeErr
}

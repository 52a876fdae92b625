package impl

import (
	"context"
	"sync"
	"time"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/repository"
	usecase "github.com/swarmops/telemetry/usecase/interface"
)

// ExportServiceImpl implements the ExportService interface
type ExportServiceImpl struct {
	store     repository.MetricsStore
	collector usecase.CollectorService
	status    usecase.StatusService
	exporters []repository.MetricsExporter
	logger    domain.Logger

	interval time.Duration
	timeout  time.Duration

	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewExportServiceImpl creates a new export service implementation
func NewExportServiceImpl(
	store repository.MetricsStore,
	collector usecase.CollectorService,
	status usecase.StatusService,
	exporters []repository.MetricsExporter,
	logger domain.Logger,
	interval time.Duration,
	timeout time.Duration,
) usecase.ExportService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ExportServiceImpl{
		store:     store,
		collector: collector,
		status:    status,
		exporters: exporters,
		logger:    logger,
		interval:  interval,
		timeout:   timeout,
	}
}

// StartPeriodicExport starts the periodic export loop
func (s *ExportServiceImpl) StartPeriodicExport() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return domain.ErrInvalidState("export service", "running", "start")
	}

	s.stopChan = make(chan struct{})
	s.isRunning = true

	s.wg.Add(1)
	go s.runExportLoop()

	s.logger.Info(context.Background(), "periodic stats export started",
		domain.NewField("intervalSeconds", int(s.interval.Seconds())))
	return nil
}

// StopPeriodicExport stops the periodic export loop
func (s *ExportServiceImpl) StopPeriodicExport() error {
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

func (s *ExportServiceImpl) runExportLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.SendCurrentStats(); err != nil {
				s.logger.Warn(context.Background(), "periodic stats export failed",
					domain.NewField("error", err.Error()))
			}
		case <-s.stopChan:
			return
		}
	}
}

// SendCurrentStats gathers store and collector counters and pushes them as
// gauges to every configured exporter. The first exporter failure aborts the
// send and is recorded on the status service.
func (s *ExportServiceImpl) SendCurrentStats() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	storeStats, err := s.store.Stats()
	if err != nil {
		s.recordError(err)
		return err
	}
	health, err := s.store.Health()
	if err != nil {
		s.recordError(err)
		return err
	}
	if s.status != nil {
		_ = s.status.UpdateStoreHealth(health, storeStats.TotalStored)
	}

	gauges := map[string]float64{
		"telemetry_stored_total":    float64(storeStats.TotalStored),
		"telemetry_bucket_count":    float64(storeStats.BucketCount),
		"telemetry_estimated_bytes": float64(storeStats.EstimatedBytes),
	}

	if s.collector != nil {
		collectorStats := s.collector.Stats()
		gauges["telemetry_collector_recorded_total"] = float64(collectorStats.Recorded)
		gauges["telemetry_collector_sampled_out_total"] = float64(collectorStats.SampledOut)
		gauges["telemetry_collector_throttled_total"] = float64(collectorStats.Throttled)
		gauges["telemetry_collector_filtered_out_total"] = float64(collectorStats.FilteredOut)
		gauges["telemetry_collector_flushes_total"] = float64(collectorStats.Flushes)
		gauges["telemetry_collector_publish_errors_total"] = float64(collectorStats.PublishErrors)
		gauges["telemetry_collector_queue_drops_total"] = float64(collectorStats.QueueDrops)
		gauges["telemetry_collector_avg_overhead_ms"] = float64(collectorStats.AvgOverhead) / float64(time.Millisecond)
	}

	labels := map[string]string{"store_health": string(health)}

	for _, exporter := range s.exporters {
		for name, value := range gauges {
			if err := exporter.SendGauge(ctx, name, value, labels); err != nil {
				s.recordError(err)
				return err
			}
		}
	}

	sentAt := time.Now()
	if s.status != nil {
		_ = s.status.UpdateLastExport(sentAt)
		_ = s.status.ClearError()
	}
	s.logger.Debug(ctx, "engine stats exported",
		domain.NewField("gaugeCount", len(gauges)),
		domain.NewField("exporterCount", len(s.exporters)))
	return nil
}

func (s *ExportServiceImpl) recordError(err error) {
	if s.status != nil {
		_ = s.status.RecordError(err)
	}
}

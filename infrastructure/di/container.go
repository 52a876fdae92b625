package di

import (
	"context"
	"fmt"
	"time"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/repository"
	"github.com/swarmops/telemetry/infrastructure/config"
	"github.com/swarmops/telemetry/infrastructure/eventbus"
	"github.com/swarmops/telemetry/infrastructure/logging"
	infraRepo "github.com/swarmops/telemetry/infrastructure/repository"
	"github.com/swarmops/telemetry/infrastructure/storage"
	"github.com/swarmops/telemetry/usecase/impl"
	usecase "github.com/swarmops/telemetry/usecase/interface"
)

// Container is the dependency injection container
type Container struct {
	// Configuration
	config *config.AppConfig

	// Infrastructure
	eventBus  *eventbus.MemoryEventBus
	store     *storage.MemoryMetricsStore
	exporters []repository.MetricsExporter
	csvWriter repository.CSVWriter

	// Use cases
	collectorService usecase.CollectorService
	queryService     usecase.QueryService
	eventProcessor   usecase.EventProcessor
	anomalyService   usecase.AnomalyService
	statusService    usecase.StatusService
	exportService    usecase.ExportService
	csvExportService usecase.CSVExportService
	telemetryService usecase.TelemetryService

	// Logging
	loggerFactory domain.LoggerFactory
	logger        domain.Logger

	// Options
	debugMode bool
}

// ContainerOption is a function that configures the container
type ContainerOption func(*Container)

// WithDebugMode sets the debug mode
func WithDebugMode(debug bool) ContainerOption {
	return func(c *Container) {
		c.debugMode = debug
	}
}

// NewContainer creates a new DI container
func NewContainer(opts ...ContainerOption) (*Container, error) {
	container := &Container{}

	for _, opt := range opts {
		opt(container)
	}

	if err := container.initConfig(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}

	if err := container.initLogging(); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	if err := container.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("failed to initialize infrastructure: %w", err)
	}

	if err := container.initUseCases(); err != nil {
		return nil, fmt.Errorf("failed to initialize use cases: %w", err)
	}

	return container, nil
}

// initConfig loads the configuration from the environment
func (c *Container) initConfig() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	if c.debugMode {
		if cfg.Logging == nil {
			cfg.Logging = config.DefaultConfig().Logging
		}
		cfg.Logging.Debug = true
	}

	c.config = cfg
	return nil
}

// initLogging initializes logging components
func (c *Container) initLogging() error {
	if c.config.Logging == nil {
		c.config.Logging = config.DefaultConfig().Logging
	}

	c.loggerFactory = logging.NewLoggerFactory(c.config.Logging)
	c.logger = c.loggerFactory.CreateLogger("telemetry")
	return nil
}

// initInfrastructure initializes the event bus, the store and the exporters
func (c *Container) initInfrastructure() error {
	engine := c.config.Engine

	if engine.EventBusEnabled {
		c.eventBus = eventbus.NewMemoryEventBus(c.CreateLogger("eventbus"))
	}

	storeConfig, err := c.buildStoreConfig(engine)
	if err != nil {
		return err
	}
	c.store = storage.NewMemoryMetricsStore(storeConfig, c.CreateLogger("store"))
	if err := c.store.Initialize(); err != nil {
		return err
	}

	c.csvWriter = infraRepo.NewCSVWriterRepository(c.CreateLogger("csv"))

	return c.initExporters()
}

func (c *Container) buildStoreConfig(engine *config.EngineConfig) (storage.StoreConfig, error) {
	storeConfig := storage.DefaultStoreConfig()
	storeConfig.DefaultBufferSize = engine.DefaultBufferSize
	storeConfig.MemoryCeilingBytes = engine.MemoryCeilingBytes
	storeConfig.MaintenanceInterval = time.Duration(engine.MaintenanceIntervalSec) * time.Second
	storeConfig.Index.MaxEntries = engine.IndexMaxEntries
	storeConfig.Index.TimeBucketWidth = time.Duration(engine.IndexBucketWidthSec) * time.Second

	bufferSizes, err := engine.BufferSizeMap()
	if err != nil {
		return storage.StoreConfig{}, err
	}
	for tier, size := range bufferSizes {
		storeConfig.BufferSizes[entity.MetricTier(tier)] = size
	}

	overrides, err := engine.RetentionOverrides()
	if err != nil {
		return storage.StoreConfig{}, err
	}
	// Tier-wide entries come first in the slice, so a tier-qualified pair
	// applied afterwards wins for its (tier, type).
	for _, o := range overrides {
		if o.Tier == "" {
			for i, policy := range storeConfig.RetentionPolicies {
				if string(policy.Type) == o.Type {
					storeConfig.RetentionPolicies[i] =
						entity.NewRetentionPolicy(policy.Tier, policy.Type, o.Days)
				}
			}
			continue
		}
		matched := false
		for i, policy := range storeConfig.RetentionPolicies {
			if string(policy.Tier) == o.Tier && string(policy.Type) == o.Type {
				storeConfig.RetentionPolicies[i] =
					entity.NewRetentionPolicy(policy.Tier, policy.Type, o.Days)
				matched = true
			}
		}
		if !matched {
			storeConfig.RetentionPolicies = append(storeConfig.RetentionPolicies,
				entity.NewRetentionPolicy(entity.MetricTier(o.Tier), entity.MetricType(o.Type), o.Days))
		}
	}
	return storeConfig, nil
}

func (c *Container) initExporters() error {
	export := c.config.Export
	if export == nil || !export.Enabled {
		return nil
	}

	timeout := time.Duration(export.TimeoutSec) * time.Second

	if export.RemoteWrite != nil && export.RemoteWrite.URL != "" {
		exporter, err := infraRepo.NewRemoteWriteExporter(export.RemoteWrite, timeout)
		if err != nil {
			return err
		}
		c.exporters = append(c.exporters, exporter)
	}

	if export.CloudWatch != nil && export.CloudWatch.Enabled {
		exporter, err := infraRepo.NewCloudWatchExporter(export.CloudWatch)
		if err != nil {
			return err
		}
		c.exporters = append(c.exporters, exporter)
	}

	if len(c.exporters) == 0 {
		c.exporters = append(c.exporters, infraRepo.NewNoopExporter())
	}
	return nil
}

// initUseCases initializes use case implementations
func (c *Container) initUseCases() error {
	engine := c.config.Engine

	settings, err := c.buildCollectorSettings(engine)
	if err != nil {
		return err
	}

	var bus repository.EventBus
	if c.eventBus != nil {
		bus = c.eventBus
	}

	c.statusService = impl.NewStatusServiceImpl()
	c.collectorService = impl.NewCollectorServiceImpl(c.store, bus, settings, c.CreateLogger("collector"))
	c.queryService = impl.NewQueryServiceImpl(c.store, c.CreateLogger("query"))
	c.eventProcessor = impl.NewEventProcessorImpl(c.store, bus, c.CreateLogger("events"))

	c.anomalyService = impl.NewAnomalyServiceImpl(
		c.store, bus, c.statusService, c.CreateLogger("anomaly"),
		impl.AnomalySettings{
			SweepInterval: time.Duration(engine.AnomalySweepIntervalSec) * time.Second,
		})

	interval := 10 * time.Minute
	timeout := 30 * time.Second
	if c.config.Export != nil {
		interval = time.Duration(c.config.Export.IntervalSec) * time.Second
		timeout = time.Duration(c.config.Export.TimeoutSec) * time.Second
	}
	c.exportService = impl.NewExportServiceImpl(
		c.store, c.collectorService, c.statusService, c.exporters,
		c.CreateLogger("export"), interval, timeout)

	csvService, err := impl.NewCSVExportService(
		c.store, c.csvWriter, c.config.CSVExport, c.CreateLogger("csv-export"))
	if err != nil {
		return err
	}
	c.csvExportService = csvService

	c.telemetryService = impl.NewTelemetryServiceImpl(
		c.collectorService, c.queryService, c.store, c.CreateLogger("engine"))
	return nil
}

func (c *Container) buildCollectorSettings(engine *config.EngineConfig) (impl.CollectorSettings, error) {
	settings := impl.DefaultCollectorSettings()
	settings.Enabled = engine.Enabled
	settings.MaxOverhead = engine.MaxOverhead()
	settings.BatchSize = engine.BatchSize
	settings.FlushInterval = engine.FlushInterval()
	settings.LargeBatchThreshold = engine.LargeBatchThreshold
	settings.PublishBatches = engine.EventBusEnabled

	rates, err := engine.SamplingRateMap()
	if err != nil {
		return impl.CollectorSettings{}, err
	}
	for name, rate := range rates {
		settings.SamplingRates[entity.MetricType(name)] = rate
	}

	for _, name := range engine.EnabledTypeList() {
		settings.EnabledTypes[entity.MetricType(name)] = true
	}
	return settings, nil
}

// Start brings up the background services. The store is already initialized
// by construction; this starts the event processor, the anomaly sweep and
// the periodic export.
func (c *Container) Start() error {
	if c.eventBus != nil {
		if err := c.eventProcessor.Start(); err != nil {
			return err
		}
	}

	if c.config.Engine.EnableAnomalyDetection {
		if err := c.anomalyService.Start(); err != nil {
			return err
		}
	}

	if c.config.Export != nil && c.config.Export.Enabled {
		if err := c.exportService.StartPeriodicExport(); err != nil {
			return err
		}
	}

	_ = c.statusService.SetEngineStarted(time.Now())
	c.logger.Info(context.Background(), "telemetry engine started")
	return nil
}

// Stop shuts the background services down in reverse order of Start.
func (c *Container) Stop() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(c.exportService.StopPeriodicExport())
	record(c.anomalyService.Stop())
	if c.eventBus != nil {
		record(c.eventProcessor.Stop())
	}
	record(c.telemetryService.Close())
	record(c.store.Close())

	_ = c.statusService.SetEngineStopped()
	c.logger.Info(context.Background(), "telemetry engine stopped")
	return firstErr
}

// CreateLogger creates a component-scoped logger
func (c *Container) CreateLogger(component string) domain.Logger {
	return c.loggerFactory.CreateLogger(component)
}

// GetConfig returns the application configuration
func (c *Container) GetConfig() *config.AppConfig {
	return c.config
}

// GetEventBus returns the event bus, or nil when disabled
func (c *Container) GetEventBus() repository.EventBus {
	if c.eventBus == nil {
		return nil
	}
	return c.eventBus
}

// GetMetricsStore returns the metrics store
func (c *Container) GetMetricsStore() repository.MetricsStore {
	return c.store
}

// GetTelemetryService returns the engine facade
func (c *Container) GetTelemetryService() usecase.TelemetryService {
	return c.telemetryService
}

// GetCollectorService returns the collector service
func (c *Container) GetCollectorService() usecase.CollectorService {
	return c.collectorService
}

// GetQueryService returns the query service
func (c *Container) GetQueryService() usecase.QueryService {
	return c.queryService
}

// GetEventProcessor returns the event processor
func (c *Container) GetEventProcessor() usecase.EventProcessor {
	return c.eventProcessor
}

// GetAnomalyService returns the anomaly service
func (c *Container) GetAnomalyService() usecase.AnomalyService {
	return c.anomalyService
}

// GetStatusService returns the status service
func (c *Container) GetStatusService() usecase.StatusService {
	return c.statusService
}

// GetExportService returns the export service
func (c *Container) GetExportService() usecase.ExportService {
	return c.exportService
}

// GetCSVExportService returns the CSV export service
func (c *Container) GetCSVExportService() usecase.CSVExportService {
	return c.csvExportService
}

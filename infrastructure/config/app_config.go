package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

// EngineConfig holds the telemetry engine configuration
type EngineConfig struct {
	// Enabled indicates whether the engine records metrics at all
	Enabled bool `json:"enabled,omitempty" env:"TELEMETRY_ENGINE_ENABLED,default=true"`

	// MaxOverheadMs is the average per-call collection overhead, in
	// milliseconds, above which the collector disables itself
	MaxOverheadMs float64 `json:"max_overhead_ms,omitempty" env:"TELEMETRY_ENGINE_MAX_OVERHEAD_MS,default=2"`

	// SamplingRates is a comma-separated list of type=rate pairs,
	// e.g. "performance=0.1,resource=0.5". Types without an entry use 1.0
	SamplingRates string `json:"sampling_rates,omitempty" env:"TELEMETRY_ENGINE_SAMPLING_RATES,default="`

	// BufferSizes is a comma-separated list of tier=size pairs,
	// e.g. "tier1=5000,tier2=2000"
	BufferSizes string `json:"buffer_sizes,omitempty" env:"TELEMETRY_ENGINE_BUFFER_SIZES,default="`

	// DefaultBufferSize is the bucket capacity for tiers without an entry
	DefaultBufferSize int `json:"default_buffer_size,omitempty" env:"TELEMETRY_ENGINE_DEFAULT_BUFFER_SIZE,default=10000"`

	// RetentionDays is a comma-separated list of type=days or
	// tier:type=days pairs, e.g. "performance=3,tier1:business=30". A bare
	// type applies across all tiers; a tier-qualified pair wins over it
	RetentionDays string `json:"retention_days,omitempty" env:"TELEMETRY_ENGINE_RETENTION_DAYS,default="`

	// EnabledMetricTypes is a comma-separated list of metric types to
	// record. Empty means all types
	EnabledMetricTypes string `json:"enabled_metric_types,omitempty" env:"TELEMETRY_ENGINE_ENABLED_METRIC_TYPES,default="`

	// EnableAnomalyDetection turns the periodic anomaly sweep on
	EnableAnomalyDetection bool `json:"enable_anomaly_detection,omitempty" env:"TELEMETRY_ENGINE_ENABLE_ANOMALY_DETECTION,default=true"`

	// EnableAutoDownsampling turns the downsampling pass on. The pass is a
	// declared extension point and currently stores nothing
	EnableAutoDownsampling bool `json:"enable_auto_downsampling,omitempty" env:"TELEMETRY_ENGINE_ENABLE_AUTO_DOWNSAMPLING,default=false"`

	// EventBusEnabled controls whether batches and anomalies are published
	// on the event bus
	EventBusEnabled bool `json:"event_bus_enabled,omitempty" env:"TELEMETRY_ENGINE_EVENT_BUS_ENABLED,default=true"`

	// MCPToolsEnabled is accepted for hosts that expose the engine through
	// an agent tool adapter. The engine itself does not serve tools
	MCPToolsEnabled bool `json:"mcp_tools_enabled,omitempty" env:"TELEMETRY_ENGINE_MCP_TOOLS_ENABLED,default=false"`

	// MemoryCeilingBytes is the memory budget driving store health
	MemoryCeilingBytes int64 `json:"memory_ceiling_bytes,omitempty" env:"TELEMETRY_ENGINE_MEMORY_CEILING_BYTES,default=268435456"`

	// FlushIntervalMs is the batch accumulator flush interval
	FlushIntervalMs int `json:"flush_interval_ms,omitempty" env:"TELEMETRY_ENGINE_FLUSH_INTERVAL_MS,default=50"`

	// BatchSize is the accumulator size that forces a flush
	BatchSize int `json:"batch_size,omitempty" env:"TELEMETRY_ENGINE_BATCH_SIZE,default=100"`

	// LargeBatchThreshold is the caller batch size that bypasses the
	// accumulator and goes straight to storage
	LargeBatchThreshold int `json:"large_batch_threshold,omitempty" env:"TELEMETRY_ENGINE_LARGE_BATCH_THRESHOLD,default=50"`

	// AnomalySweepIntervalSec is how often the anomaly sweep runs
	AnomalySweepIntervalSec int `json:"anomaly_sweep_interval_seconds,omitempty" env:"TELEMETRY_ENGINE_ANOMALY_SWEEP_INTERVAL_SECONDS,default=300"`

	// MaintenanceIntervalSec is how often the store reclaims idle buckets
	// and prunes the index
	MaintenanceIntervalSec int `json:"maintenance_interval_seconds,omitempty" env:"TELEMETRY_ENGINE_MAINTENANCE_INTERVAL_SECONDS,default=300"`

	// IndexMaxEntries bounds the secondary index size
	IndexMaxEntries int `json:"index_max_entries,omitempty" env:"TELEMETRY_ENGINE_INDEX_MAX_ENTRIES,default=100000"`

	// IndexBucketWidthSec is the index time bucket width
	IndexBucketWidthSec int `json:"index_bucket_width_seconds,omitempty" env:"TELEMETRY_ENGINE_INDEX_BUCKET_WIDTH_SECONDS,default=3600"`
}

// RemoteWriteConfig holds Prometheus Remote Write export configuration
type RemoteWriteConfig struct {
	// URL is the Prometheus Remote Write endpoint URL
	URL string `json:"url" env:"TELEMETRY_REMOTE_WRITE_URL"`

	// Username is the username for Remote Write authentication
	Username string `json:"username" env:"TELEMETRY_REMOTE_WRITE_USERNAME"`

	// Password is the password for Remote Write authentication
	Password string `json:"password" env:"TELEMETRY_REMOTE_WRITE_PASSWORD"`

	// HostLabel is the host label value attached to exported series
	HostLabel string `json:"host_label,omitempty" env:"TELEMETRY_REMOTE_WRITE_HOST_LABEL"`
}

// CloudWatchConfig holds AWS CloudWatch export configuration
type CloudWatchConfig struct {
	// Enabled indicates if CloudWatch export is enabled
	Enabled bool `json:"enabled,omitempty" env:"TELEMETRY_CLOUDWATCH_ENABLED,default=false"`

	// Namespace is the CloudWatch metric namespace
	Namespace string `json:"namespace,omitempty" env:"TELEMETRY_CLOUDWATCH_NAMESPACE,default=SwarmOps/Telemetry"`

	// Region is the AWS region to publish to
	Region string `json:"region,omitempty" env:"TELEMETRY_CLOUDWATCH_REGION,default=us-east-1"`

	// AWSProfile is the AWS profile to use (optional)
	AWSProfile string `json:"aws_profile,omitempty" env:"TELEMETRY_CLOUDWATCH_AWS_PROFILE,default="`
}

// ExportConfig holds engine self-metric export configuration
type ExportConfig struct {
	// Enabled indicates whether engine stats are exported at all
	Enabled bool `json:"enabled,omitempty" env:"TELEMETRY_EXPORT_ENABLED,default=false"`

	// IntervalSec is the interval in seconds between export pushes
	IntervalSec int `json:"interval_seconds,omitempty" env:"TELEMETRY_EXPORT_INTERVAL_SECONDS,default=600"`

	// TimeoutSec is the timeout in seconds for one export push
	TimeoutSec int `json:"timeout_seconds,omitempty" env:"TELEMETRY_EXPORT_TIMEOUT_SECONDS,default=30"`

	// RemoteWrite holds Prometheus Remote Write configuration
	RemoteWrite *RemoteWriteConfig `json:"remote_write,omitempty"`

	// CloudWatch holds CloudWatch configuration
	CloudWatch *CloudWatchConfig `json:"cloudwatch,omitempty"`
}

// CSVExportConfig holds CSV export configuration
type CSVExportConfig struct {
	// DefaultOutputPath is the default output directory for CSV files
	DefaultOutputPath string `json:"default_output_path,omitempty" env:"TELEMETRY_CSV_EXPORT_DEFAULT_OUTPUT_PATH,default=."`

	// DefaultStartDays is the default number of days to look back for data
	DefaultStartDays int `json:"default_start_days,omitempty" env:"TELEMETRY_CSV_EXPORT_DEFAULT_START_DAYS,default=30"`

	// MaxExportDays is the maximum number of days allowed for export range
	MaxExportDays int `json:"max_export_days,omitempty" env:"TELEMETRY_CSV_EXPORT_MAX_EXPORT_DAYS,default=365"`

	// TimeZone is the timezone to use for CSV export (IANA timezone)
	TimeZone string `json:"timezone,omitempty" env:"TELEMETRY_CSV_EXPORT_TIMEZONE,default=UTC"`
}

// PromtailConfig holds Promtail logging configuration
type PromtailConfig struct {
	// URL is the Promtail push endpoint URL. Empty falls back to stdout
	URL string `json:"url" env:"TELEMETRY_LOKI_URL"`

	// Username is the username for basic authentication
	Username string `json:"username" env:"TELEMETRY_LOKI_USERNAME"`

	// Password is the password for basic authentication
	Password string `json:"password" env:"TELEMETRY_LOKI_PASSWORD"`

	// BatchWaitSeconds is the time to wait before sending a batch
	BatchWaitSeconds int `json:"batch_wait_seconds,omitempty" env:"TELEMETRY_LOKI_BATCH_WAIT_SECONDS,default=1"`

	// BatchCapacity is the maximum number of log entries in a batch
	BatchCapacity int `json:"batch_capacity,omitempty" env:"TELEMETRY_LOKI_BATCH_CAPACITY,default=100"`

	// TimeoutSeconds is the timeout for sending logs
	TimeoutSeconds int `json:"timeout_seconds,omitempty" env:"TELEMETRY_LOKI_TIMEOUT_SECONDS,default=5"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `json:"level,omitempty" env:"TELEMETRY_LOG_LEVEL,default=info"`

	// Debug enables debug mode with stdout logging
	Debug bool `json:"debug,omitempty" env:"TELEMETRY_LOG_DEBUG,default=false"`

	// Promtail holds Promtail configuration
	Promtail *PromtailConfig `json:"promtail,omitempty"`
}

// AppConfig holds application configuration
type AppConfig struct {
	// Version is the configuration schema version
	Version int `json:"version,omitempty"`

	// Engine holds the telemetry engine configuration
	Engine *EngineConfig `json:"engine,omitempty"`

	// Export holds engine self-metric export configuration
	Export *ExportConfig `json:"export,omitempty"`

	// CSVExport holds CSV export configuration
	CSVExport *CSVExportConfig `json:"csv_export,omitempty"`

	// Logging holds logging configuration
	Logging *LoggingConfig `json:"logging,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Version: 1,
		Engine: &EngineConfig{
			Enabled:                 true,
			MaxOverheadMs:           2,
			SamplingRates:           "",
			BufferSizes:             "",
			DefaultBufferSize:       10000,
			RetentionDays:           "",
			EnabledMetricTypes:      "",
			EnableAnomalyDetection:  true,
			EnableAutoDownsampling:  false,
			EventBusEnabled:         true,
			MemoryCeilingBytes:      256 << 20,
			FlushIntervalMs:         50,
			BatchSize:               100,
			LargeBatchThreshold:     50,
			AnomalySweepIntervalSec: 300,
			MaintenanceIntervalSec:  300,
			IndexMaxEntries:         100000,
			IndexBucketWidthSec:     3600,
		},
		Export: &ExportConfig{
			Enabled:     false,
			IntervalSec: 600,
			TimeoutSec:  30,
			RemoteWrite: &RemoteWriteConfig{},
			CloudWatch: &CloudWatchConfig{
				Enabled:   false,
				Namespace: "SwarmOps/Telemetry",
				Region:    "us-east-1",
			},
		},
		CSVExport: &CSVExportConfig{
			DefaultOutputPath: ".",
			DefaultStartDays:  30,
			MaxExportDays:     365,
			TimeZone:          "UTC",
		},
		Logging: &LoggingConfig{
			Level: "info",
			Debug: false,
			Promtail: &PromtailConfig{
				URL:              "",
				BatchWaitSeconds: 1,
				BatchCapacity:    100,
				TimeoutSeconds:   5,
			},
		},
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*AppConfig, error) {
	config := DefaultConfig()

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadFromEnv loads configuration from environment variables using
// Netflix/go-env. Nested structs are unmarshaled individually because the
// library does not walk pointers.
func (c *AppConfig) LoadFromEnv() error {
	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if c.Engine != nil {
		if _, err := env.UnmarshalFromEnviron(c.Engine); err != nil {
			return fmt.Errorf("failed to unmarshal Engine environment variables: %w", err)
		}
	}

	if c.Export != nil {
		if _, err := env.UnmarshalFromEnviron(c.Export); err != nil {
			return fmt.Errorf("failed to unmarshal Export environment variables: %w", err)
		}
		if c.Export.RemoteWrite != nil {
			if _, err := env.UnmarshalFromEnviron(c.Export.RemoteWrite); err != nil {
				return fmt.Errorf("failed to unmarshal RemoteWrite environment variables: %w", err)
			}
		}
		if c.Export.CloudWatch != nil {
			if _, err := env.UnmarshalFromEnviron(c.Export.CloudWatch); err != nil {
				return fmt.Errorf("failed to unmarshal CloudWatch environment variables: %w", err)
			}
		}
	}

	if c.CSVExport != nil {
		if _, err := env.UnmarshalFromEnviron(c.CSVExport); err != nil {
			return fmt.Errorf("failed to unmarshal CSVExport environment variables: %w", err)
		}
	}

	if c.Logging != nil {
		if _, err := env.UnmarshalFromEnviron(c.Logging); err != nil {
			return fmt.Errorf("failed to unmarshal Logging environment variables: %w", err)
		}
		if c.Logging.Promtail != nil {
			if _, err := env.UnmarshalFromEnviron(c.Logging.Promtail); err != nil {
				return fmt.Errorf("failed to unmarshal Promtail environment variables: %w", err)
			}
		}
	}

	return nil
}

// Validate validates the configuration
func (c *AppConfig) Validate() error {
	if c.Engine != nil {
		if err := c.validateEngine(); err != nil {
			return err
		}
	}

	if c.Export != nil {
		if err := c.validateExport(); err != nil {
			return err
		}
	}

	if c.CSVExport != nil {
		if err := c.validateCSVExport(); err != nil {
			return err
		}
	}

	if c.Logging != nil {
		if err := c.validateLogging(); err != nil {
			return err
		}
	}

	return nil
}

func (c *AppConfig) validateEngine() error {
	e := c.Engine

	if e.MaxOverheadMs <= 0 {
		return fmt.Errorf("engine max overhead must be positive: %v", e.MaxOverheadMs)
	}
	if e.BatchSize <= 0 {
		return fmt.Errorf("engine batch size must be positive: %d", e.BatchSize)
	}
	if e.FlushIntervalMs <= 0 {
		return fmt.Errorf("engine flush interval must be positive: %d", e.FlushIntervalMs)
	}
	if e.MemoryCeilingBytes <= 0 {
		return fmt.Errorf("engine memory ceiling must be positive: %d", e.MemoryCeilingBytes)
	}
	if e.DefaultBufferSize <= 0 {
		return fmt.Errorf("engine default buffer size must be positive: %d", e.DefaultBufferSize)
	}
	if e.IndexMaxEntries <= 0 {
		return fmt.Errorf("engine index max entries must be positive: %d", e.IndexMaxEntries)
	}

	rates, err := e.SamplingRateMap()
	if err != nil {
		return err
	}
	for metricType, rate := range rates {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("sampling rate for %s must be in [0, 1]: %v", metricType, rate)
		}
	}

	if _, err := e.BufferSizeMap(); err != nil {
		return err
	}
	if _, err := e.RetentionOverrides(); err != nil {
		return err
	}

	return nil
}

func (c *AppConfig) validateExport() error {
	e := c.Export

	if !e.Enabled {
		return nil
	}
	if e.IntervalSec <= 0 {
		return fmt.Errorf("export interval must be positive: %d", e.IntervalSec)
	}
	if e.TimeoutSec <= 0 {
		return fmt.Errorf("export timeout must be positive: %d", e.TimeoutSec)
	}

	hasRemoteWrite := e.RemoteWrite != nil && e.RemoteWrite.URL != ""
	hasCloudWatch := e.CloudWatch != nil && e.CloudWatch.Enabled
	if !hasRemoteWrite && !hasCloudWatch {
		return fmt.Errorf("export is enabled but no destination is configured")
	}
	if hasCloudWatch && e.CloudWatch.Region == "" {
		return fmt.Errorf("cloudwatch export requires a region")
	}

	return nil
}

func (c *AppConfig) validateCSVExport() error {
	e := c.CSVExport

	if e.DefaultStartDays <= 0 {
		return fmt.Errorf("csv export default start days must be positive: %d", e.DefaultStartDays)
	}
	if e.MaxExportDays <= 0 {
		return fmt.Errorf("csv export max export days must be positive: %d", e.MaxExportDays)
	}
	if e.DefaultStartDays > e.MaxExportDays {
		return fmt.Errorf("csv export default start days (%d) exceeds max export days (%d)",
			e.DefaultStartDays, e.MaxExportDays)
	}
	if e.TimeZone != "" {
		if _, err := time.LoadLocation(e.TimeZone); err != nil {
			return fmt.Errorf("invalid csv export timezone %q: %w", e.TimeZone, err)
		}
	}

	return nil
}

func (c *AppConfig) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

// SamplingRateMap parses SamplingRates into a type-to-rate map.
func (e *EngineConfig) SamplingRateMap() (map[string]float64, error) {
	return parseFloatPairs("sampling rates", e.SamplingRates)
}

// BufferSizeMap parses BufferSizes into a tier-to-capacity map.
func (e *EngineConfig) BufferSizeMap() (map[string]int, error) {
	return parseIntPairs("buffer sizes", e.BufferSizes)
}

// RetentionOverride is one parsed retention entry. Tier is empty when the
// entry applies to the type across all tiers.
type RetentionOverride struct {
	Tier string
	Type string
	Days int
}

// RetentionOverrides parses RetentionDays. Tier-wide entries come first so
// a tier-qualified entry applied after them wins.
func (e *EngineConfig) RetentionOverrides() ([]RetentionOverride, error) {
	pairs, err := parseIntPairs("retention days", e.RetentionDays)
	if err != nil {
		return nil, err
	}

	overrides := make([]RetentionOverride, 0, len(pairs))
	for key, days := range pairs {
		tier, metricType, qualified := strings.Cut(key, ":")
		if qualified {
			overrides = append(overrides, RetentionOverride{
				Tier: strings.TrimSpace(tier),
				Type: strings.TrimSpace(metricType),
				Days: days,
			})
		} else {
			overrides = append(overrides, RetentionOverride{Type: key, Days: days})
		}
	}

	sort.Slice(overrides, func(i, j int) bool {
		if (overrides[i].Tier == "") != (overrides[j].Tier == "") {
			return overrides[i].Tier == ""
		}
		if overrides[i].Tier != overrides[j].Tier {
			return overrides[i].Tier < overrides[j].Tier
		}
		return overrides[i].Type < overrides[j].Type
	})
	return overrides, nil
}

// EnabledTypeList parses EnabledMetricTypes. Empty means no restriction.
func (e *EngineConfig) EnabledTypeList() []string {
	return splitCommaSeparated(e.EnabledMetricTypes)
}

// FlushInterval returns the accumulator flush interval as a duration.
func (e *EngineConfig) FlushInterval() time.Duration {
	return time.Duration(e.FlushIntervalMs) * time.Millisecond
}

// MaxOverhead returns the collector overhead threshold as a duration.
func (e *EngineConfig) MaxOverhead() time.Duration {
	return time.Duration(e.MaxOverheadMs * float64(time.Millisecond))
}

func splitCommaSeparated(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func parseFloatPairs(what, value string) (map[string]float64, error) {
	result := make(map[string]float64)
	for _, pair := range splitCommaSeparated(value) {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid %s entry %q: expected key=value", what, pair)
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", what, pair, err)
		}
		result[strings.TrimSpace(key)] = parsed
	}
	return result, nil
}

func parseIntPairs(what, value string) (map[string]int, error) {
	result := make(map[string]int)
	for _, pair := range splitCommaSeparated(value) {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid %s entry %q: expected key=value", what, pair)
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", what, pair, err)
		}
		result[strings.TrimSpace(key)] = parsed
	}
	return result, nil
}

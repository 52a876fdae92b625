package impl

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/infrastructure/config"
	usecase "github.com/swarmops/telemetry/usecase/interface"
)

// fakeCSVWriter captures what would be written to disk.
type fakeCSVWriter struct {
	metrics  []*entity.UnifiedMetric
	path     string
	writeErr error
}

func (w *fakeCSVWriter) Write(metrics []*entity.UnifiedMetric, outputPath string) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.metrics = metrics
	w.path = outputPath
	return nil
}

func newTestCSVService(t *testing.T, store *mockMetricsStore, writer *fakeCSVWriter) *CSVExportServiceImpl {
	t.Helper()
	cfg := &config.CSVExportConfig{
		DefaultOutputPath: ".",
		DefaultStartDays:  30,
		MaxExportDays:     365,
		TimeZone:          "UTC",
	}
	service, err := NewCSVExportService(store, writer, cfg, &mockLogger{})
	require.NoError(t, err)
	return service.(*CSVExportServiceImpl)
}

func TestCSVExportWritesMatchingMetrics(t *testing.T) {
	store := &mockMetricsStore{}
	seedMetric(store, entity.TierOne, "scheduler", entity.MetricTypePerformance, "latency", 12.5)
	seedMetric(store, entity.TierTwo, "swarm-a", entity.MetricTypeHealth, "ping", 1.0)

	writer := &fakeCSVWriter{}
	service := newTestCSVService(t, store, writer)

	path, err := service.Export(usecase.CSVExportOptions{OutputPath: "out/metrics.csv"})
	require.NoError(t, err)
	assert.Equal(t, "out/metrics.csv", path)
	assert.Len(t, writer.metrics, 2)
}

func TestCSVExportFiltersByMetricType(t *testing.T) {
	store := &mockMetricsStore{}
	seedMetric(store, entity.TierOne, "scheduler", entity.MetricTypePerformance, "latency", 12.5)
	seedMetric(store, entity.TierTwo, "swarm-a", entity.MetricTypeHealth, "ping", 1.0)

	writer := &fakeCSVWriter{}
	service := newTestCSVService(t, store, writer)

	_, err := service.Export(usecase.CSVExportOptions{
		OutputPath:  "metrics.csv",
		MetricTypes: []string{"health"},
	})
	require.NoError(t, err)
	require.Len(t, writer.metrics, 1)
	assert.Equal(t, entity.MetricTypeHealth, writer.metrics[0].Type)
}

func TestCSVExportRejectsUnknownMetricType(t *testing.T) {
	service := newTestCSVService(t, &mockMetricsStore{}, &fakeCSVWriter{})

	_, err := service.Export(usecase.CSVExportOptions{MetricTypes: []string{"bogus"}})
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeInvalidInput, domainErr.Code)
}

func TestCSVExportRejectsInvertedRange(t *testing.T) {
	service := newTestCSVService(t, &mockMetricsStore{}, &fakeCSVWriter{})

	start := time.Now()
	end := start.Add(-time.Hour)
	_, err := service.Export(usecase.CSVExportOptions{StartTime: &start, EndTime: &end})
	require.Error(t, err)
}

func TestCSVExportRejectsOversizedRange(t *testing.T) {
	service := newTestCSVService(t, &mockMetricsStore{}, &fakeCSVWriter{})

	start := time.Now().AddDate(-2, 0, 0)
	end := time.Now()
	_, err := service.Export(usecase.CSVExportOptions{StartTime: &start, EndTime: &end})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "365")
}

func TestCSVExportGeneratesDefaultFilename(t *testing.T) {
	store := &mockMetricsStore{}
	writer := &fakeCSVWriter{}
	service := newTestCSVService(t, store, writer)

	path, err := service.Export(usecase.CSVExportOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "telemetry_metrics_"), path)
	assert.True(t, strings.HasSuffix(path, ".csv"), path)
}

func TestCSVExportRejectsUnknownTimeZone(t *testing.T) {
	cfg := &config.CSVExportConfig{
		DefaultOutputPath: ".",
		DefaultStartDays:  30,
		MaxExportDays:     365,
		TimeZone:          "Mars/Olympus",
	}
	_, err := NewCSVExportService(&mockMetricsStore{}, &fakeCSVWriter{}, cfg, &mockLogger{})
	require.Error(t, err)
}

package impl

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/repository"
	"github.com/swarmops/telemetry/domain/valueobject"
	"github.com/swarmops/telemetry/infrastructure/config"
	usecase "github.com/swarmops/telemetry/usecase/interface"
)

// CSVExportServiceImpl implements the CSVExportService interface
type CSVExportServiceImpl struct {
	store     repository.MetricsStore
	csvWriter repository.CSVWriter
	cfg       *config.CSVExportConfig
	logger    domain.Logger
	location  *time.Location
}

// NewCSVExportService creates a new CSV export service
func NewCSVExportService(
	store repository.MetricsStore,
	csvWriter repository.CSVWriter,
	cfg *config.CSVExportConfig,
	logger domain.Logger,
) (usecase.CSVExportService, error) {
	location, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, domain.ErrInvalidInput("timeZone", err.Error())
	}
	return &CSVExportServiceImpl{
		store:     store,
		csvWriter: csvWriter,
		cfg:       cfg,
		logger:    logger,
		location:  location,
	}, nil
}

// Export writes matching metrics to a CSV file and returns its path.
func (s *CSVExportServiceImpl) Export(options usecase.CSVExportOptions) (string, error) {
	now := time.Now().In(s.location)
	startTime := s.startTime(options.StartTime, now)
	endTime := s.endTime(options.EndTime, now)

	if endTime.Before(startTime) {
		return "", domain.ErrInvalidInput("time range", "end time must be after start time")
	}
	if maxRange := time.Duration(s.cfg.MaxExportDays) * 24 * time.Hour; endTime.Sub(startTime) > maxRange {
		return "", domain.ErrInvalidInput("time range",
			fmt.Sprintf("range exceeds the maximum of %d days", s.cfg.MaxExportDays))
	}

	types, err := parseMetricTypes(options.MetricTypes)
	if err != nil {
		return "", err
	}

	result, err := s.store.Query(valueobject.MetricQuery{
		Start:   &startTime,
		End:     &endTime,
		Types:   types,
		SortBy:  valueobject.SortByTimestamp,
		SortDir: valueobject.SortAscending,
	})
	if err != nil {
		return "", err
	}

	if len(result.Metrics) == 0 {
		s.logger.Warn(context.TODO(), "no metrics found for CSV export",
			domain.NewField("startTime", startTime),
			domain.NewField("endTime", endTime),
			domain.NewField("metricTypes", options.MetricTypes))
	}

	outputPath := s.outputPath(options.OutputPath, now)
	if err := s.csvWriter.Write(result.Metrics, outputPath); err != nil {
		return "", err
	}

	s.logger.Info(context.TODO(), "CSV export completed",
		domain.NewField("outputPath", outputPath),
		domain.NewField("recordCount", len(result.Metrics)))
	return outputPath, nil
}

func (s *CSVExportServiceImpl) startTime(optionTime *time.Time, now time.Time) time.Time {
	if optionTime != nil {
		return *optionTime
	}
	return now.AddDate(0, 0, -s.cfg.DefaultStartDays).Truncate(24 * time.Hour)
}

func (s *CSVExportServiceImpl) endTime(optionTime *time.Time, now time.Time) time.Time {
	if optionTime != nil {
		return *optionTime
	}
	return now
}

func (s *CSVExportServiceImpl) outputPath(optionPath string, now time.Time) string {
	if optionPath != "" {
		return optionPath
	}
	name := fmt.Sprintf("telemetry_metrics_%s.csv", now.Format("20060102_150405"))
	return filepath.Join(s.cfg.DefaultOutputPath, name)
}

func parseMetricTypes(names []string) ([]entity.MetricType, error) {
	if len(names) == 0 {
		return nil, nil
	}
	types := make([]entity.MetricType, 0, len(names))
	for _, name := range names {
		metricType := entity.MetricType(name)
		if !metricType.IsValid() {
			return nil, domain.ErrInvalidInput("metricTypes",
				fmt.Sprintf("unknown metric type %q", name))
		}
		types = append(types, metricType)
	}
	return types, nil
}

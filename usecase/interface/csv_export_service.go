package usecase

import (
	"time"
)

// CSVExportService defines the interface for CSV export use cases
type CSVExportService interface {
	// Export writes matching metrics to a CSV file and returns its path
	Export(options CSVExportOptions) (string, error)
}

// CSVExportOptions represents options for CSV export
type CSVExportOptions struct {
	OutputPath  string
	StartTime   *time.Time
	EndTime     *time.Time
	MetricTypes []string // performance, resource, health, business, ...
}

package repository

import (
	"github.com/swarmops/telemetry/domain/entity"
)

// CSVWriter persists metric records to a CSV file on disk.
type CSVWriter interface {
	// Write writes the metrics to outputPath, creating parent directories
	// as needed.
	Write(metrics []*entity.UnifiedMetric, outputPath string) error
}

package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/domain/entity"
	"github.com/swarmops/telemetry/domain/repository"
)

// CSVWriterRepository implements repository.CSVWriter
type CSVWriterRepository struct {
	logger domain.Logger
}

// NewCSVWriterRepository creates a new CSV writer repository
func NewCSVWriterRepository(logger domain.Logger) repository.CSVWriter {
	return &CSVWriterRepository{logger: logger}
}

var csvHeader = []string{
	"timestamp", "tier", "component", "type", "name",
	"value", "unit", "execution_id", "user_id", "team_id", "tags",
}

// Write writes metrics to a CSV file
func (r *CSVWriterRepository) Write(metrics []*entity.UnifiedMetric, outputPath string) error {
	if err := r.validateOutputPath(outputPath); err != nil {
		return err
	}

	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return domain.ErrFileOperation("create directory", dir, err.Error())
	}

	file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return domain.ErrFileOperation("create file", outputPath, err.Error())
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			r.logger.Error(context.TODO(), "failed to close CSV file",
				domain.NewField("error", closeErr.Error()),
				domain.NewField("path", outputPath))
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return domain.ErrFileOperation("write header", outputPath, err.Error())
	}

	for _, metric := range metrics {
		if err := writer.Write(r.metricRow(metric)); err != nil {
			return domain.ErrFileOperation("write record", outputPath, err.Error())
		}
	}

	if err := writer.Error(); err != nil {
		return domain.ErrFileOperation("flush", outputPath, err.Error())
	}

	r.logger.Info(context.TODO(), "CSV file written",
		domain.NewField("outputPath", outputPath),
		domain.NewField("records", len(metrics)))
	return nil
}

func (r *CSVWriterRepository) metricRow(metric *entity.UnifiedMetric) []string {
	value := ""
	if v, ok := metric.NumericValue(); ok {
		value = fmt.Sprintf("%g", v)
	} else if s, ok := metric.StringValue(); ok {
		value = sanitizeCSVField(s)
	}

	return []string{
		metric.Timestamp.Format(time.RFC3339),
		string(metric.Tier),
		sanitizeCSVField(metric.Component),
		string(metric.Type),
		sanitizeCSVField(metric.Name),
		value,
		sanitizeCSVField(metric.Unit),
		sanitizeCSVField(metric.ExecutionID),
		sanitizeCSVField(metric.UserID),
		sanitizeCSVField(metric.TeamID),
		sanitizeCSVField(strings.Join(metric.Tags, ";")),
	}
}

// validateOutputPath rejects paths that could escape the export directory or
// land in system locations.
func (r *CSVWriterRepository) validateOutputPath(path string) error {
	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return domain.ErrPathTraversal(path)
	}

	if filepath.IsAbs(cleanPath) && !strings.HasPrefix(cleanPath, os.TempDir()) && !strings.HasPrefix(cleanPath, "/tmp/") {
		systemDirs := []string{"/etc", "/usr", "/bin", "/sbin", "/var", "/proc", "/sys", "/dev"}
		for _, dir := range systemDirs {
			if strings.HasPrefix(cleanPath, dir) {
				return domain.ErrFileOperation("validatePath", path, "cannot write to system directories")
			}
		}
	}

	base := filepath.Base(cleanPath)
	if strings.HasPrefix(base, ".") && base != "." {
		return domain.ErrFileOperation("validatePath", path, "cannot write to hidden files")
	}

	if filepath.Ext(cleanPath) != ".csv" {
		return domain.ErrInvalidInput("outputPath", "file must have .csv extension")
	}
	return nil
}

// sanitizeCSVField prefixes fields that spreadsheet software could interpret
// as formulas.
func sanitizeCSVField(field string) string {
	dangerous := []string{"=", "+", "@", "\t", "\r", "|"}
	for _, prefix := range dangerous {
		if strings.HasPrefix(field, prefix) {
			return "'" + field
		}
	}
	return field
}

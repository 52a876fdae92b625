package repository

import (
	"context"

	"github.com/swarmops/telemetry/domain/repository"
)

// NoopExporter discards every sample. Used when export is disabled.
type NoopExporter struct{}

func NewNoopExporter() repository.MetricsExporter {
	return &NoopExporter{}
}

func (n *NoopExporter) SendGauge(ctx context.Context, name string, value float64, labels map[string]string) error {
	return nil
}

package repository

import (
	"context"
)

// MetricsExporter pushes engine-level gauges to an external monitoring
// backend. Implementations exist for Prometheus remote write and CloudWatch,
// plus a no-op used when export is disabled.
type MetricsExporter interface {
	// SendGauge sends one gauge sample with the given labels.
	SendGauge(ctx context.Context, name string, value float64, labels map[string]string) error
}

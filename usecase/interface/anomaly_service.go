package usecase

import "context"

// AnomalyService runs the periodic anomaly sweep over recently stored
// metrics and publishes monitoring.anomaly events for flagged series.
type AnomalyService interface {
	// Start begins the periodic sweep.
	Start() error

	// Stop halts the sweep. Idempotent.
	Stop() error

	// SweepNow runs one sweep immediately and returns the number of metric
	// names flagged.
	SweepNow(ctx context.Context) (int, error)
}

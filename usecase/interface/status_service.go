package usecase

import (
	"time"

	"github.com/swarmops/telemetry/domain/repository"
)

// StatusInfo represents the current status of the engine
type StatusInfo struct {
	// IsRunning indicates whether the engine is currently running
	IsRunning bool

	// EngineStartedAt is the timestamp when the engine was started
	EngineStartedAt *time.Time

	// LastExportAt is the timestamp of the last successful stats export
	LastExportAt *time.Time

	// LastSweepAt is the timestamp of the last anomaly sweep
	LastSweepAt *time.Time

	// LastSweepFlagged is the number of metric names the last sweep flagged
	LastSweepFlagged int

	// StoreHealth is the most recent store health reading
	StoreHealth repository.HealthStatus

	// TotalStored is the number of metrics currently held
	TotalStored int

	// LastError is the last error that occurred (if any)
	LastError error

	// LastErrorAt is the timestamp of the last error
	LastErrorAt *time.Time
}

// StatusService tracks engine runtime status for health reporting
type StatusService interface {
	// GetStatus returns the current status information
	GetStatus() (*StatusInfo, error)

	// UpdateLastExport updates the last export timestamp
	UpdateLastExport(sentAt time.Time) error

	// UpdateLastSweep records a completed anomaly sweep
	UpdateLastSweep(sweptAt time.Time, flagged int) error

	// UpdateStoreHealth records a store health reading
	UpdateStoreHealth(health repository.HealthStatus, totalStored int) error

	// RecordError records an error that occurred
	RecordError(err error) error

	// ClearError clears the last error
	ClearError() error

	// SetEngineStarted sets the engine started timestamp
	SetEngineStarted(startedAt time.Time) error

	// SetEngineStopped clears the engine runtime information
	SetEngineStopped() error
}

package impl

import (
	"sync"
	"time"

	"github.com/swarmops/telemetry/domain/repository"
	usecase "github.com/swarmops/telemetry/usecase/interface"
)

// StatusServiceImpl implements the StatusService interface
type StatusServiceImpl struct {
	mu     sync.RWMutex
	status usecase.StatusInfo
}

// NewStatusServiceImpl creates a new status service implementation
func NewStatusServiceImpl() usecase.StatusService {
	return &StatusServiceImpl{
		status: usecase.StatusInfo{
			StoreHealth: repository.HealthHealthy,
		},
	}
}

// GetStatus returns a copy of the current status information.
func (s *StatusServiceImpl) GetStatus() (*usecase.StatusInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := s.status
	return &status, nil
}

// UpdateLastExport updates the last export timestamp.
func (s *StatusServiceImpl) UpdateLastExport(sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.LastExportAt = &sentAt
	return nil
}

// UpdateLastSweep records a completed anomaly sweep.
func (s *StatusServiceImpl) UpdateLastSweep(sweptAt time.Time, flagged int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.LastSweepAt = &sweptAt
	s.status.LastSweepFlagged = flagged
	return nil
}

// UpdateStoreHealth records a store health reading.
func (s *StatusServiceImpl) UpdateStoreHealth(health repository.HealthStatus, totalStored int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.StoreHealth = health
	s.status.TotalStored = totalStored
	return nil
}

// RecordError records an error that occurred.
func (s *StatusServiceImpl) RecordError(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.status.LastError = err
	s.status.LastErrorAt = &now
	return nil
}

// ClearError clears the last error.
func (s *StatusServiceImpl) ClearError() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.LastError = nil
	s.status.LastErrorAt = nil
	return nil
}

// SetEngineStarted sets the engine started timestamp.
func (s *StatusServiceImpl) SetEngineStarted(startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.IsRunning = true
	s.status.EngineStartedAt = &startedAt
	return nil
}

// SetEngineStopped clears the engine runtime information.
func (s *StatusServiceImpl) SetEngineStopped() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.IsRunning = false
	s.status.EngineStartedAt = nil
	return nil
}

package impl

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmops/telemetry/domain/repository"
)

func TestStatusLifecycle(t *testing.T) {
	service := NewStatusServiceImpl()

	status, err := service.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.IsRunning)
	assert.Nil(t, status.EngineStartedAt)
	assert.Equal(t, repository.HealthHealthy, status.StoreHealth)

	startedAt := time.Now()
	require.NoError(t, service.SetEngineStarted(startedAt))

	status, err = service.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.IsRunning)
	require.NotNil(t, status.EngineStartedAt)
	assert.Equal(t, startedAt, *status.EngineStartedAt)

	require.NoError(t, service.SetEngineStopped())
	status, err = service.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.IsRunning)
	assert.Nil(t, status.EngineStartedAt)
}

func TestStatusSweepAndExportUpdates(t *testing.T) {
	service := NewStatusServiceImpl()

	sweptAt := time.Now()
	require.NoError(t, service.UpdateLastSweep(sweptAt, 3))

	exportedAt := sweptAt.Add(time.Minute)
	require.NoError(t, service.UpdateLastExport(exportedAt))

	require.NoError(t, service.UpdateStoreHealth(repository.HealthDegraded, 1200))

	status, err := service.GetStatus()
	require.NoError(t, err)
	require.NotNil(t, status.LastSweepAt)
	assert.Equal(t, sweptAt, *status.LastSweepAt)
	assert.Equal(t, 3, status.LastSweepFlagged)
	require.NotNil(t, status.LastExportAt)
	assert.Equal(t, exportedAt, *status.LastExportAt)
	assert.Equal(t, repository.HealthDegraded, status.StoreHealth)
	assert.Equal(t, 1200, status.TotalStored)
}

func TestStatusErrorRecording(t *testing.T) {
	service := NewStatusServiceImpl()

	cause := errors.New("exporter unreachable")
	require.NoError(t, service.RecordError(cause))

	status, err := service.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, cause, status.LastError)
	require.NotNil(t, status.LastErrorAt)

	require.NoError(t, service.ClearError())
	status, err = service.GetStatus()
	require.NoError(t, err)
	assert.Nil(t, status.LastError)
	assert.Nil(t, status.LastErrorAt)
}

func TestGetStatusReturnsCopy(t *testing.T) {
	service := NewStatusServiceImpl()

	first, err := service.GetStatus()
	require.NoError(t, err)
	first.TotalStored = 999

	second, err := service.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 0, second.TotalStored)
}

package usecase

// ExportService periodically pushes engine-level gauges (stored counts,
// bucket counts, collector counters) to the configured monitoring backends.
type ExportService interface {
	// StartPeriodicExport starts the periodic export loop
	StartPeriodicExport() error

	// StopPeriodicExport stops the periodic export loop
	StopPeriodicExport() error

	// SendCurrentStats sends the current engine stats immediately
	SendCurrentStats() error
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/swarmops/telemetry/infrastructure/di"
	usecase "github.com/swarmops/telemetry/usecase/interface"
)

func main() {
	// Parse command line flags
	var (
		debugMode = flag.Bool("debug", false, "Enable debug logging to stdout")
		csvExport = flag.Bool("csv-export", false, "Export stored metrics to CSV and exit")
		csvOutput = flag.String("csv-output", "", "Output path for CSV export")
		csvStart  = flag.String("csv-start", "", "Start of the export range (RFC3339)")
		csvEnd    = flag.String("csv-end", "", "End of the export range (RFC3339)")
		csvTypes  = flag.String("csv-types", "", "Comma-separated metric types to export")
	)
	flag.Parse()

	// Create DI container with options
	opts := []di.ContainerOption{}
	if *debugMode {
		opts = append(opts, di.WithDebugMode(true))
	}

	container, err := di.NewContainer(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if *csvExport {
		runCSVExport(container, *csvOutput, *csvStart, *csvEnd, *csvTypes)
		return
	}

	runEngine(container)
}

// runEngine runs the engine until an interrupt or termination signal arrives
func runEngine(container *di.Container) {
	logger := container.CreateLogger("main")
	ctx := context.Background()

	if err := container.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start engine: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down telemetry engine...")
	if err := container.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		os.Exit(1)
	}
}

// runCSVExport performs a one-shot CSV export and exits
func runCSVExport(container *di.Container, output, start, end, types string) {
	options := usecase.CSVExportOptions{OutputPath: output}

	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --csv-start value: %v\n", err)
			os.Exit(1)
		}
		options.StartTime = &t
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --csv-end value: %v\n", err)
			os.Exit(1)
		}
		options.EndTime = &t
	}
	if types != "" {
		options.MetricTypes = strings.Split(types, ",")
	}

	path, err := container.GetCSVExportService().Export(options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CSV export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}

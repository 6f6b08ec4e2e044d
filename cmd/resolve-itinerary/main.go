// Command resolve-itinerary resolves the elevation of a single itinerary file
// once, writes the report next to the other reports and prints a sample.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kr/pretty"
	"go.uber.org/zap"

	"github.com/i474232898/itinerary-elevation/internal/config"
	"github.com/i474232898/itinerary-elevation/internal/elevation"
	"github.com/i474232898/itinerary-elevation/internal/elevation/providers"
	"github.com/i474232898/itinerary-elevation/internal/itinerary"
	"github.com/i474232898/itinerary-elevation/internal/logging"
	"github.com/i474232898/itinerary-elevation/internal/report"
)

func main() {
	path := flag.String("itinerary", "itinerary.json", "itinerary file to resolve")
	outDir := flag.String("out", ".", "directory the report is written to")
	samples := flag.Int("samples", 5, "number of records to print")
	flag.Parse()

	if err := run(*path, *outDir, *samples); err != nil {
		fmt.Fprintln(os.Stderr, "resolve-itinerary:", err)
		os.Exit(1)
	}
}

func run(path, outDir string, samples int) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	waypoints, err := itinerary.LoadFile(path)
	if err != nil {
		return err
	}
	name := itinerary.Name(path)
	log.Info("itinerary loaded", zap.String("itinerary", name), zap.Int("points", len(waypoints)))

	backoffCfg := providers.DefaultBackoff()
	backoffCfg.MaxRetries = cfg.Providers.MaxRetries
	batch, sequential := providers.NewChain(providers.ChainConfig{
		HTTPClient:            &http.Client{Timeout: cfg.HTTPTimeout},
		Backoff:               backoffCfg,
		USGSBaseURL:           cfg.Providers.USGSBaseURL,
		OpenElevationBaseURL:  cfg.Providers.OpenElevationBaseURL,
		OpenTopographyBaseURL: cfg.Providers.OpenTopographyBaseURL,
		OpenTopographyAPIKey:  cfg.Providers.OpenTopographyAPIKey,
		OpenTopographyDataset: cfg.Providers.OpenTopographyDataset,
		GoogleMapsAPIKey:      cfg.Providers.GoogleMapsAPIKey,
	}, log)

	orchestrator := elevation.NewOrchestrator(batch, sequential, elevation.OrchestratorConfig{
		Acceptance: elevation.Acceptance{
			MinSuccessful:   cfg.AcceptMinSuccessful,
			MinSuccessRatio: cfg.AcceptMinRatio,
		},
		MinDelay:    cfg.MinRequestDelay,
		Concurrency: cfg.SequentialConcurrency,
	}, log)

	writer := report.NewFileWriter(outDir)
	service := elevation.NewService(orchestrator, nil, []elevation.ReportSink{writer}, nil, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := service.ResolveAndStore(ctx, name, waypoints)
	if err != nil {
		return err
	}

	fmt.Printf("provider: %s\n", result.Provider)
	fmt.Printf("points: %d, successful: %d, failed: %d\n", result.TotalPoints, result.SuccessCount, result.FailCount)
	fmt.Printf("report: %s\n", writer.Path(name))

	if samples > len(result.Records) {
		samples = len(result.Records)
	}
	if samples > 0 {
		fmt.Printf("first %d records:\n", samples)
		pretty.Println(result.Records[:samples])
	}
	return nil
}

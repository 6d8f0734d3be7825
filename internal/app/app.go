package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lcalzada-xor/cvemart/internal/adapters/ingest"
	"github.com/lcalzada-xor/cvemart/internal/adapters/reporting"
	"github.com/lcalzada-xor/cvemart/internal/adapters/warehouse"
	"github.com/lcalzada-xor/cvemart/internal/adapters/web"
	"github.com/lcalzada-xor/cvemart/internal/config"
	"github.com/lcalzada-xor/cvemart/internal/core/services/analytics"
	"github.com/lcalzada-xor/cvemart/internal/core/services/pipeline"
	"github.com/lcalzada-xor/cvemart/internal/telemetry"
)

// Application holds the core components of the application.
// It acts as the Facade for the entire system, orchestrating services and infrastructure.
type Application struct {
	Config    *config.Config
	Bronze    *ingest.SQLiteRepository
	Warehouse *warehouse.SQLiteAdapter
	Pipeline  *pipeline.Orchestrator
	Analytics *analytics.Service
	WebServer *web.Server

	shutdownTracer func(context.Context) error
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config: cfg,
	}

	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	// 1. Foundation & Infrastructure
	telemetry.InitMetrics()

	shutdown, err := telemetry.InitTracer(context.Background())
	if err != nil {
		log.Printf("Warning: tracing initialization incomplete: %v", err)
	} else {
		app.shutdownTracer = shutdown
	}

	// 2. Storage Layers
	if err := app.initStorage(); err != nil {
		return err
	}

	// 3. Domain Services
	logger := slog.Default()
	app.Pipeline = pipeline.New(app.Warehouse, logger)
	app.Analytics = analytics.NewService(app.Warehouse, app.Warehouse, logger)

	// 4. Servers
	exporter := reporting.NewPDFExporter()
	app.WebServer = web.NewServer(app.Config.Addr, app.Analytics, app.Warehouse, exporter)

	return nil
}

func (app *Application) initStorage() error {
	for _, path := range []string{app.Config.BronzePath, app.Config.WarehousePath} {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	bronze, err := ingest.NewSQLiteRepository(app.Config.BronzePath)
	if err != nil {
		return fmt.Errorf("failed to init bronze storage: %w", err)
	}
	app.Bronze = bronze

	store, err := warehouse.NewSQLiteAdapter(app.Config.WarehousePath)
	if err != nil {
		return fmt.Errorf("failed to init warehouse storage: %w", err)
	}
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("warehouse migration failed: %w", err)
	}
	app.Warehouse = store

	return nil
}

// Ingest loads the configured feed files into bronze storage.
func (app *Application) Ingest(ctx context.Context) (int, error) {
	if len(app.Config.FeedFiles) == 0 {
		return 0, nil
	}

	loader := ingest.NewFeedLoader(app.Bronze)
	return loader.LoadFromMultipleFiles(ctx, app.Config.FeedFiles)
}

// Load runs the warehouse pipeline over all pending bronze records and,
// unless disabled, rebuilds the analytical tables on top of the result.
func (app *Application) Load(ctx context.Context) error {
	records, err := app.Bronze.PendingBatch(ctx)
	if err != nil {
		return fmt.Errorf("reading pending records: %w", err)
	}

	report, err := app.Pipeline.Run(ctx, records)
	app.WebServer.SetRunReport(report)
	if err != nil {
		return fmt.Errorf("pipeline run %s: %w", report.RunID, err)
	}

	if app.Config.SkipAnalytics {
		slog.Info("Analytics rebuild skipped by configuration")
		return nil
	}

	summary, err := app.Analytics.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("analytics rebuild: %w", err)
	}
	slog.Info("Analytics rebuilt",
		"cves", summary.CveSummaries,
		"products", summary.ProductRisks,
		"vendors", summary.VendorMetrics,
		"comparisons", summary.VersionComparisons)

	return nil
}

// Run executes the full cycle (ingest, load, analytics) and then serves
// the HTTP API until the context is cancelled.
func (app *Application) Run(ctx context.Context) error {
	start := time.Now()

	stored, err := app.Ingest(ctx)
	if err != nil {
		log.Printf("Warning: feed ingestion incomplete: %v", err)
	}
	if stored > 0 {
		slog.Info("Feeds ingested", "records", stored)
	}

	if err := app.Load(ctx); err != nil {
		return err
	}
	slog.Info("Warehouse load complete", "elapsed", time.Since(start).Round(time.Millisecond))

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Web Server listening on %s", app.Config.Addr)
		if err := app.WebServer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("web server error: %w", err)
		}
	}()

	slog.Info("cvemart ready. Press Ctrl+C to terminate.")

	select {
	case <-ctx.Done():
		slog.Info("Termination signal received")
	case err := <-errChan:
		app.cleanup()
		return err
	}

	return app.cleanup()
}

func (app *Application) cleanup() error {
	slog.Info("Cleaning up resources...")

	if app.Bronze != nil {
		if err := app.Bronze.Close(); err != nil {
			log.Printf("Error closing bronze storage: %v", err)
		}
	}
	if app.Warehouse != nil {
		if err := app.Warehouse.Close(); err != nil {
			log.Printf("Error closing warehouse: %v", err)
		}
	}
	if app.shutdownTracer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.shutdownTracer(shutdownCtx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}

	return nil
}

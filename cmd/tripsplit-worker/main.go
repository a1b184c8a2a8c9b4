package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"tripsplit/internal/amqp"
	"tripsplit/internal/backend"
	"tripsplit/internal/cli"
	"tripsplit/internal/log"
	"tripsplit/internal/sheets"
	gsheet "tripsplit/internal/sheets/google"
	mem "tripsplit/internal/sheets/memory"
	"tripsplit/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.AMQPEnabled() && cfg.ExportInterval <= 0 {
		logger.Error("Nothing to do: set AMQP_URL or EXPORT_INTERVAL")
		os.Exit(1)
	}

	// The worker reads trips straight from storage and never publishes.
	// Writes happen in the API process, so a local summary cache would
	// never be invalidated.
	bcfg := backend.FromAppConfig(cfg)
	bcfg.AMQPURL = ""
	bcfg.CacheTTL = 0
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	var writer sheets.ReportWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background(), cfg.GoogleSpreadsheetID)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = mem.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, reports are kept in memory only")
	}

	w := worker.NewExportWorker(res.Service, writer, logger, cfg.ExportConcurrency)

	var consumer *amqp.Client
	if cfg.AMQPEnabled() {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	}

	var wg sync.WaitGroup
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		wg.Wait()
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err)
			}
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting tripsplit worker",
		"amqp", cfg.AMQPEnabled(),
		"export_interval", cfg.ExportInterval,
		"concurrency", cfg.ExportConcurrency)

	// Catch up on anything published while the worker was down.
	if err := w.ExportAll(ctx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err)
	}

	if consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.ConsumeTripChanged(ctx, w.HandleTripChanged); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	if cfg.ExportInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.RunPeriodic(ctx, cfg.ExportInterval)
		}()
	}

	cli.WaitForShutdown(ctx, done)
}

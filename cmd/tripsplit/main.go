package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tripsplit/internal/backend"
	"tripsplit/internal/cli"
	apphttp "tripsplit/internal/http"
	"tripsplit/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	factory := backend.NewFactory(logger)
	res, err := factory.CreateBackend(context.Background(), backend.FromAppConfig(cfg))
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, res.Service, apphttp.Options{
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	go func() {
		logger.Info("Starting tripsplit server",
			"addr", srv.Addr,
			"backend", cfg.DataBackend,
			"amqp", cfg.AMQPEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}

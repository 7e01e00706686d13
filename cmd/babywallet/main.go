package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"babywallet/internal/cli"
	apphttp "babywallet/internal/http"
	"babywallet/internal/log"
	"babywallet/internal/metrics"
	"babywallet/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap("babywallet")
	logger.Info("Starting babywallet", log.FieldOperation, log.OpStartup, "backend", cfg.DataBackend)

	res := cli.InitBackend(context.Background(), logger, cfg, false)
	m := metrics.NewCollector(logger.Logger)
	projections, stopCache := cli.StartProjectionCache(context.Background(), cfg, m)
	svc := cli.NewLedgerService(cfg, res, m, logger, services.WithProjections(projections))

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Metrics:   m,
		Logger:    logger,
		RateLimit: cfg.RateLimit,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		stopCache()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

package main

import (
	"context"
	"os"
	"time"

	"babywallet/internal/cli"
	"babywallet/internal/log"
	"babywallet/internal/metrics"
	"babywallet/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentScheduler)
	logger.Info("Starting contribution-worker", log.FieldOperation, log.OpStartup)

	res := cli.InitBackend(context.Background(), logger, cfg, false)
	m := metrics.NewCollector(logger.Logger)
	metricsServer := m.StartServer(":" + cfg.MetricsPort)
	svc := cli.NewLedgerService(cfg, res, m, logger)

	processor := services.NewContributionProcessor(svc, services.ContributionProcessorConfig{
		Interval:    cfg.ContributionInterval,
		Concurrency: cfg.ContributionConcurrency,
	}, m, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Error stopping contribution processor", log.FieldError, err)
		}
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("Metrics server shutdown error", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start contribution processor", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Contribution worker stopped")
}

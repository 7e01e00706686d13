package main

import (
	"context"
	"os"
	"time"

	"babywallet/internal/cli"
	"babywallet/internal/export/google"
	"babywallet/internal/log"
	"babywallet/internal/metrics"
	"babywallet/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentSettlement)
	logger.Info("Starting settlement-worker", log.FieldOperation, log.OpStartup)

	// Settlements arrive over the broker, so it is mandatory here.
	res := cli.InitBackend(context.Background(), logger, cfg, true)
	m := metrics.NewCollector(logger.Logger)
	metricsServer := m.StartServer(":" + cfg.MetricsPort)
	svc := cli.NewLedgerService(cfg, res, m, logger)

	var exporter services.LedgerExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := google.New(context.Background(), google.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Ledger export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Ledger export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	processor := services.NewSettlementProcessor(svc, res.Broker, exporter, services.SettlementProcessorConfig{
		RecoveryInterval: cfg.RecoveryInterval,
		StaleAfter:       cfg.StaleAfter,
		RecoveryBatch:    services.DefaultSettlementProcessorConfig().RecoveryBatch,
	}, m, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("Metrics server shutdown error", log.FieldError, err)
		}
	})

	if err := processor.Run(ctx, res.Broker); err != nil {
		logger.Error("Settlement processing failed", log.FieldError, err)
		_ = res.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if err := res.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", log.FieldError, err)
	}
	logger.Info("Settlement worker stopped")
}

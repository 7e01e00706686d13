// Package cli provides common CLI initialization utilities shared by the
// babywallet server, its workers and walletctl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"babywallet/internal/backend"
	"babywallet/internal/cache"
	"babywallet/internal/config"
	"babywallet/internal/core"
	"babywallet/internal/log"
	"babywallet/internal/metrics"
	"babywallet/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from the configured level and
// format and installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// Bootstrap loads .env and configuration, sets up logging and validates the
// configuration. It exits the process when validation fails.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg, logger
}

// InitBackend opens the configured store and broker. It exits the process
// on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config, requireBroker bool) *backend.Result {
	res, err := OpenBackend(ctx, backend.NewFactory(logger), cfg, requireBroker)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// OpenBackend creates the backend selected by cfg through f.
func OpenBackend(ctx context.Context, f backend.Factory, cfg *config.Config, requireBroker bool) (*backend.Result, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	bcfg.RequireBroker = requireBroker
	return f.CreateBackend(ctx, bcfg)
}

// LedgerSettings converts configuration into the ledger's business rules.
func LedgerSettings(cfg *config.Config) services.Settings {
	return services.Settings{
		MinChildAge:         cfg.MinChildAge,
		MaxChildAge:         cfg.MaxChildAge,
		UnlockAge:           cfg.UnlockAge,
		MonthlyRate:         cfg.MonthlyRate,
		DefaultContribution: core.NewMoney(cfg.DefaultContribution),
	}
}

// NewLedgerService wires the ledger service over an initialized backend.
// extra options are applied last and override the defaults.
func NewLedgerService(cfg *config.Config, res *backend.Result, m *metrics.Collector, logger *log.Logger, extra ...services.Option) *services.LedgerService {
	opts := []services.Option{
		services.WithLogger(logger),
		services.WithMetrics(m),
		services.WithProjections(cache.NewProjections(cfg.ProjectionCacheSize, 0, m)),
	}
	// A nil *amqp.Client must not become a non-nil Publisher.
	if res.Broker != nil {
		opts = append(opts, services.WithPublisher(res.Broker))
	}
	opts = append(opts, extra...)
	return services.NewLedgerService(res.Store, LedgerSettings(cfg), opts...)
}

// StartProjectionCache builds the projection cache for a long-running
// process and evicts entries older than the configured TTL in the
// background. Call stop during shutdown.
func StartProjectionCache(ctx context.Context, cfg *config.Config, m *metrics.Collector) (p *cache.Projections, stop func()) {
	p = cache.NewProjections(cfg.ProjectionCacheSize, cfg.ProjectionCacheTTL, m)
	mgr := cache.NewManager()
	mgr.Register(p)
	mgr.StartCleanup(ctx, min(cfg.ProjectionCacheTTL, time.Minute))
	return p, mgr.Stop
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has finished or timed out.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

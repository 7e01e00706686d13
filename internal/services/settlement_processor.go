package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"babywallet/internal/amqp"
	"babywallet/internal/core"
	"babywallet/internal/ledger"
	"babywallet/internal/log"
	"babywallet/internal/metrics"
)

// SettlementConsumer delivers settlement outcomes. *amqp.Client implements it.
type SettlementConsumer interface {
	ConsumeSettlements(ctx context.Context, handler func(context.Context, *amqp.SettlementMessage) error) error
}

// LedgerExporter mirrors settled transactions to an external sheet.
type LedgerExporter interface {
	AppendTransactions(ctx context.Context, txs []core.Transaction) error
}

// SettlementProcessorConfig holds configuration for the settlement worker
type SettlementProcessorConfig struct {
	// RecoveryInterval is how often stale pending transactions are
	// re-announced (default: 5m)
	RecoveryInterval time.Duration

	// StaleAfter is how long a transaction may stay pending before it is
	// re-announced (default: 15m)
	StaleAfter time.Duration

	// RecoveryBatch caps re-announcements per pass (default: 100)
	RecoveryBatch int
}

func DefaultSettlementProcessorConfig() SettlementProcessorConfig {
	return SettlementProcessorConfig{
		RecoveryInterval: 5 * time.Minute,
		StaleAfter:       15 * time.Minute,
		RecoveryBatch:    100,
	}
}

// maxExportBacklog caps the settled transactions held for a later export.
const maxExportBacklog = 1000

// SettlementProcessor applies settlement outcomes to the ledger and
// re-announces transactions that stayed pending for too long, which covers
// announcements lost to a crash or a broker outage.
type SettlementProcessor struct {
	ledger    *LedgerService
	publisher Publisher
	exporter  LedgerExporter
	config    SettlementProcessorConfig
	metrics   *metrics.Collector
	logger    *log.Logger

	mu       sync.Mutex
	unsynced []core.Transaction // settled but not yet exported, oldest first
}

func NewSettlementProcessor(
	svc *LedgerService,
	publisher Publisher,
	exporter LedgerExporter,
	config SettlementProcessorConfig,
	m *metrics.Collector,
	logger *log.Logger,
) *SettlementProcessor {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SettlementProcessor{
		ledger:    svc,
		publisher: publisher,
		exporter:  exporter,
		config:    config,
		metrics:   m,
		logger:    logger.WithComponent(log.ComponentSettlement),
	}
}

// HandleSettlement applies one settlement message. Messages for unknown or
// already settled transactions are acknowledged and logged, so redelivery
// is harmless; store failures are returned so the broker retries.
func (p *SettlementProcessor) HandleSettlement(ctx context.Context, msg *amqp.SettlementMessage) error {
	accountID := msg.AccountID
	if accountID == "" {
		accountID = ledger.AnyAccount
	}

	tx, err := p.ledger.SettleTransaction(ctx, accountID, msg.TransactionID, core.TransactionStatus(msg.Outcome))
	switch {
	case err == nil:
	case core.IsNotFound(err):
		p.logger.WarnContext(ctx, "Settlement for unknown transaction",
			log.FieldTransactionID, msg.TransactionID, log.FieldError, err)
		return nil
	case core.IsInvalidState(err):
		p.logger.WarnContext(ctx, "Settlement for transaction that is not pending",
			log.FieldTransactionID, msg.TransactionID, log.FieldError, err)
		return nil
	default:
		return fmt.Errorf("settle %s: %w", msg.TransactionID, err)
	}

	if p.exporter != nil {
		if err := p.exporter.AppendTransactions(ctx, []core.Transaction{tx}); err != nil {
			p.logger.WarnContext(ctx, "Failed to export settled transaction, will retry",
				log.FieldComponent, log.ComponentExport,
				log.FieldTransactionID, tx.ID,
				log.FieldError, err)
			p.holdForExport(ctx, tx)
		}
	}
	return nil
}

// holdForExport queues tx for RetryExports. When the queue is full the
// oldest entry is dropped and logged.
func (p *SettlementProcessor) holdForExport(ctx context.Context, txs ...core.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unsynced = append(p.unsynced, txs...)
	if over := len(p.unsynced) - maxExportBacklog; over > 0 {
		for _, tx := range p.unsynced[:over] {
			p.logger.ErrorContext(ctx, "Dropped settled transaction from export queue",
				log.FieldComponent, log.ComponentExport,
				log.FieldTransactionID, tx.ID)
		}
		p.unsynced = append([]core.Transaction(nil), p.unsynced[over:]...)
	}
}

// RetryExports appends every transaction whose export failed earlier in
// one batch and returns how many were exported. On failure the batch is
// queued again ahead of anything that failed in the meantime.
func (p *SettlementProcessor) RetryExports(ctx context.Context) (int, error) {
	if p.exporter == nil {
		return 0, nil
	}
	p.mu.Lock()
	batch := p.unsynced
	p.unsynced = nil
	p.mu.Unlock()
	if len(batch) == 0 {
		return 0, nil
	}

	if err := p.exporter.AppendTransactions(ctx, batch); err != nil {
		p.mu.Lock()
		newer := p.unsynced
		p.unsynced = batch
		p.mu.Unlock()
		p.holdForExport(ctx, newer...)
		return 0, fmt.Errorf("export %d settled transactions: %w", len(batch), err)
	}
	p.logger.InfoContext(ctx, "Exported previously failed transactions",
		log.FieldComponent, log.ComponentExport, "count", len(batch))
	return len(batch), nil
}

// PendingExports reports how many settled transactions wait for export.
func (p *SettlementProcessor) PendingExports() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.unsynced)
}

// RecoverStale re-announces transactions pending since before now minus
// StaleAfter, oldest first, and returns how many were published.
func (p *SettlementProcessor) RecoverStale(ctx context.Context, now time.Time) (int, error) {
	pending, err := p.ledger.Store().ListTransactions(ctx, ledger.TransactionQuery{
		AccountID: ledger.AnyAccount,
		Status:    core.TxPending,
	})
	if err != nil {
		return 0, fmt.Errorf("list pending transactions: %w", err)
	}
	p.metrics.SetPendingBacklog(len(pending))

	if p.publisher == nil {
		return 0, nil
	}

	cutoff := now.Add(-p.config.StaleAfter)
	published := 0
	// newest first: walk backwards for oldest first
	for i := len(pending) - 1; i >= 0; i-- {
		if p.config.RecoveryBatch > 0 && published >= p.config.RecoveryBatch {
			break
		}
		tx := pending[i]
		if !tx.CreatedAt.Before(cutoff) {
			continue
		}
		if err := p.publisher.PublishPending(ctx, amqp.NewPendingTransactionMessage(tx)); err != nil {
			if errors.Is(err, amqp.ErrCircuitOpen) || ctx.Err() != nil {
				return published, err
			}
			p.logger.WarnContext(ctx, "Failed to re-announce pending transaction",
				log.FieldTransactionID, tx.ID, log.FieldError, err)
			continue
		}
		published++
	}

	if published > 0 {
		p.logger.InfoContext(ctx, "Re-announced stale pending transactions",
			"count", published, "backlog", len(pending))
	}
	return published, nil
}

// Run consumes settlements and runs recovery passes until ctx is done.
func (p *SettlementProcessor) Run(ctx context.Context, consumer SettlementConsumer) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.ConsumeSettlements(gctx, p.HandleSettlement)
	})

	g.Go(func() error {
		ticker := time.NewTicker(p.config.RecoveryInterval)
		defer ticker.Stop()
		for {
			if _, err := p.RecoverStale(gctx, time.Now()); err != nil && gctx.Err() == nil {
				p.logger.ErrorContext(gctx, "Recovery pass failed", log.FieldError, err)
			}
			if _, err := p.RetryExports(gctx); err != nil && gctx.Err() == nil {
				p.logger.WarnContext(gctx, "Export retry failed",
					log.FieldComponent, log.ComponentExport, log.FieldError, err)
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

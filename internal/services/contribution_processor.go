package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"babywallet/internal/core"
	"babywallet/internal/ledger"
	"babywallet/internal/log"
	"babywallet/internal/metrics"
)

// ContributionProcessorConfig holds configuration for the contribution scheduler
type ContributionProcessorConfig struct {
	// Interval is how often due contributions are posted (default: 1h)
	Interval time.Duration

	// Concurrency bounds how many investments are processed at once (default: 4)
	Concurrency int
}

func DefaultContributionProcessorConfig() ContributionProcessorConfig {
	return ContributionProcessorConfig{
		Interval:    time.Hour,
		Concurrency: 4,
	}
}

// ContributionRun reports the outcome of one scheduler pass.
type ContributionRun struct {
	Checked    int
	Recorded   int
	Duplicates int
	Failed     int
}

// ContributionProcessor posts the due contributions of active recurring
// investments. It only decides when to call RecordContribution; duplicate
// protection is the ledger's (investment, period) uniqueness, so overlapping
// runs and retries are safe.
type ContributionProcessor struct {
	ledger  *LedgerService
	config  ContributionProcessorConfig
	metrics *metrics.Collector
	logger  *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewContributionProcessor(svc *LedgerService, config ContributionProcessorConfig, m *metrics.Collector, logger *log.Logger) *ContributionProcessor {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ContributionProcessor{
		ledger:  svc,
		config:  config,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentScheduler),
	}
}

// ProcessDue records every missing contribution whose due date is on or
// before now.
func (p *ContributionProcessor) ProcessDue(ctx context.Context, now time.Time) (ContributionRun, error) {
	if p.ledger == nil {
		return ContributionRun{}, fmt.Errorf("processor not properly initialized")
	}
	started := time.Now()
	defer func() { p.metrics.SchedulerRun(time.Since(started)) }()

	store := p.ledger.Store()
	invs, err := store.ListInvestments(ctx, ledger.InvestmentQuery{
		AccountID: ledger.AnyAccount,
		Status:    core.InvestmentActive,
	})
	if err != nil {
		return ContributionRun{}, fmt.Errorf("list active investments: %w", err)
	}

	today := core.DateOf(now)
	var checked, recorded, duplicates, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)
	for _, inv := range invs {
		if !inv.IsRecurring() {
			continue
		}
		checked.Add(1)
		g.Go(func() error {
			r, err := p.processInvestment(gctx, inv, today)
			recorded.Add(int64(r.Recorded))
			duplicates.Add(int64(r.Duplicates))
			if err != nil {
				failed.Add(1)
				p.logger.ErrorContext(gctx, "Failed to post due contributions",
					log.FieldInvestmentID, inv.ID,
					log.FieldError, err)
			}
			return gctx.Err()
		})
	}
	waitErr := g.Wait()

	run := ContributionRun{
		Checked:    int(checked.Load()),
		Recorded:   int(recorded.Load()),
		Duplicates: int(duplicates.Load()),
		Failed:     int(failed.Load()),
	}
	p.logger.InfoContext(ctx, "Contribution run complete",
		"checked", run.Checked,
		"recorded", run.Recorded,
		"duplicates", run.Duplicates,
		"failed", run.Failed,
		"processing_date", today.String())
	return run, waitErr
}

func (p *ContributionProcessor) processInvestment(ctx context.Context, inv core.Investment, today core.Date) (ContributionRun, error) {
	var run ContributionRun
	dates, err := DueDates(inv, today)
	if err != nil {
		return run, err
	}
	if len(dates) == 0 {
		return run, nil
	}

	existing, err := p.ledger.Store().ListTransactions(ctx, ledger.TransactionQuery{
		AccountID:    inv.AccountID,
		InvestmentID: inv.ID,
	})
	if err != nil {
		return run, fmt.Errorf("list transactions: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, tx := range existing {
		seen[tx.Period] = true
	}

	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		period, err := PeriodFor(inv, d)
		if err != nil {
			return run, err
		}
		if seen[period] {
			continue
		}
		_, err = p.ledger.RecordContribution(ctx, inv.AccountID, inv.ID, d)
		switch {
		case err == nil:
			run.Recorded++
		case core.IsConflict(err):
			run.Duplicates++
		case core.IsInvalidState(err):
			// paused or cancelled since the listing
			return run, nil
		default:
			return run, fmt.Errorf("record contribution for %s: %w", d, err)
		}
		seen[period] = true
	}
	return run, nil
}

// Start begins the scheduling loop. Returns an error if already running.
func (p *ContributionProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("contribution processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Contribution processor started",
		"interval", p.config.Interval,
		"concurrency", p.config.Concurrency)
	return nil
}

// Stop gracefully stops the processor and waits for the current run.
func (p *ContributionProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Contribution processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Contribution processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *ContributionProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ContributionProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Process immediately on startup
	p.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *ContributionProcessor) runOnce(ctx context.Context) {
	if _, err := p.ProcessDue(ctx, time.Now()); err != nil && ctx.Err() == nil {
		p.logger.ErrorContext(ctx, "Contribution run failed", log.FieldError, err)
	}
}

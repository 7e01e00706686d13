package services

import (
	"context"
	"testing"
	"time"

	"babywallet/internal/core"
	"babywallet/internal/ledger"
)

func TestContributionProcessorPostsMissingPeriods(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.child(t)
	monthly := f.monthly(t, c.ID, "100")
	paused := f.monthly(t, c.ID, "20")
	if _, err := f.svc.PauseInvestment(ctx, account, paused.ID); err != nil {
		t.Fatalf("PauseInvestment: %v", err)
	}
	oneTime, err := f.svc.CreateInvestment(ctx, account, CreateInvestmentInput{
		ChildID: c.ID, Amount: core.MustParseMoney("500"), Type: core.OneTime, StartDate: core.DateOf(f.now),
	})
	if err != nil {
		t.Fatalf("CreateInvestment: %v", err)
	}

	config := DefaultContributionProcessorConfig()
	config.Concurrency = 2
	p := NewContributionProcessor(f.svc, config, nil, f.svc.logger)

	f.now = time.Date(2027, 1, 20, 9, 0, 0, 0, time.UTC)
	run, err := p.ProcessDue(ctx, f.now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	// Nov, Dec and Jan; October was the initial contribution
	if run.Recorded != 3 || run.Checked != 1 || run.Failed != 0 {
		t.Fatalf("unexpected run: %+v", run)
	}

	txs := f.transactions(t, ledger.TransactionQuery{InvestmentID: monthly.ID})
	periods := map[string]bool{}
	for _, tx := range txs {
		periods[tx.Period] = true
	}
	for _, want := range []string{"2026-10", "2026-11", "2026-12", "2027-01"} {
		if !periods[want] {
			t.Errorf("missing period %s in %v", want, periods)
		}
	}
	if got := len(f.transactions(t, ledger.TransactionQuery{InvestmentID: paused.ID})); got != 1 {
		t.Errorf("paused investment must not receive contributions, got %d transactions", got)
	}
	if got := len(f.transactions(t, ledger.TransactionQuery{InvestmentID: oneTime.ID})); got != 1 {
		t.Errorf("one_time investment must keep its single contribution, got %d", got)
	}

	again, err := p.ProcessDue(ctx, f.now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if again.Recorded != 0 {
		t.Fatalf("second run must be a no-op, got %+v", again)
	}
}

func TestContributionProcessorSkipsPausedPeriods(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.child(t)
	inv := f.monthly(t, c.ID, "100")

	f.now = time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	if _, err := f.svc.PauseInvestment(ctx, account, inv.ID); err != nil {
		t.Fatalf("PauseInvestment: %v", err)
	}
	f.now = time.Date(2027, 4, 2, 9, 0, 0, 0, time.UTC)
	if _, err := f.svc.ResumeInvestment(ctx, account, inv.ID); err != nil {
		t.Fatalf("ResumeInvestment: %v", err)
	}

	p := NewContributionProcessor(f.svc, DefaultContributionProcessorConfig(), nil, f.svc.logger)
	run, err := p.ProcessDue(ctx, f.now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if run.Recorded != 0 {
		t.Fatalf("months spent paused must not be posted on resume, got %+v", run)
	}

	f.now = time.Date(2027, 5, 20, 9, 0, 0, 0, time.UTC)
	if run, err = p.ProcessDue(ctx, f.now); err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if run.Recorded != 2 {
		t.Fatalf("expected April and May after resume, got %+v", run)
	}

	var periods []string
	for _, tx := range f.transactions(t, ledger.TransactionQuery{InvestmentID: inv.ID}) {
		periods = append(periods, tx.Period)
	}
	want := []string{"2027-05", "2027-04", "2026-10"}
	if len(periods) != len(want) {
		t.Fatalf("periods = %v, want %v", periods, want)
	}
	for i := range want {
		if periods[i] != want[i] {
			t.Errorf("periods = %v, want %v", periods, want)
			break
		}
	}

	// A paused day cannot be posted by hand either.
	if _, err := f.svc.RecordContribution(ctx, account, inv.ID, core.NewDate(2026, 12, 15)); !core.IsValidation(err) {
		t.Errorf("expected ValidationError for a paused period, got %v", err)
	}
}

func TestContributionProcessorLifecycle(t *testing.T) {
	f := newFixture(t)
	config := DefaultContributionProcessorConfig()
	config.Interval = 10 * time.Millisecond
	p := NewContributionProcessor(f.svc, config, nil, nil)

	if p.IsRunning() {
		t.Fatal("processor should not be running initially")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("expected error when starting an already running processor")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
	if err := p.Stop(stopCtx); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestDefaultContributionProcessorConfig(t *testing.T) {
	config := DefaultContributionProcessorConfig()
	if config.Interval != time.Hour {
		t.Errorf("expected Interval 1h, got %v", config.Interval)
	}
	if config.Concurrency != 4 {
		t.Errorf("expected Concurrency 4, got %d", config.Concurrency)
	}
}

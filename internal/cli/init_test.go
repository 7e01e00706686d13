package cli

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"babywallet/internal/backend"
	"babywallet/internal/config"
	"babywallet/internal/core"
	"babywallet/internal/ledger/memory"
	"babywallet/internal/log"
	"babywallet/internal/services"
)

func TestLedgerSettings(t *testing.T) {
	cfg := config.Defaults()
	cfg.UnlockAge = 21
	cfg.MonthlyRate = decimal.RequireFromString("0.004")
	cfg.DefaultContribution = decimal.RequireFromString("50")

	s := LedgerSettings(cfg)
	if s.UnlockAge != 21 || s.MaxChildAge != 17 || s.MinChildAge != 0 {
		t.Errorf("ages = %d/%d/%d", s.MinChildAge, s.MaxChildAge, s.UnlockAge)
	}
	if !s.MonthlyRate.Equal(cfg.MonthlyRate) {
		t.Errorf("MonthlyRate = %s", s.MonthlyRate)
	}
	if !s.DefaultContribution.Equal(core.MustParseMoney("50.00")) {
		t.Errorf("DefaultContribution = %s", s.DefaultContribution)
	}
}

func TestNewLedgerServiceWithoutBroker(t *testing.T) {
	res := &backend.Result{Store: memory.New()}
	svc := NewLedgerService(config.Defaults(), res, nil, log.New(log.Config{Output: io.Discard}))
	if svc.Store() != res.Store {
		t.Error("service should use the backend store")
	}
	if svc.Settings().UnlockAge != 18 {
		t.Errorf("UnlockAge = %d", svc.Settings().UnlockAge)
	}
}

func TestStartProjectionCache(t *testing.T) {
	cfg := config.Defaults()
	cfg.ProjectionCacheSize = 8

	p, stop := StartProjectionCache(context.Background(), cfg, nil)
	in := core.ProjectionInput{MonthlyContribution: core.MustParseMoney("100"), Months: 12}
	p.FutureValue(in)
	if p.Size() != 1 {
		t.Errorf("Size = %d, want 1", p.Size())
	}

	svc := NewLedgerService(cfg, &backend.Result{Store: memory.New()}, nil,
		log.New(log.Config{Output: io.Discard}), services.WithProjections(p))
	if _, err := svc.Estimate(services.EstimateInput{MonthlyContribution: core.MustParseMoney("100"), Years: 1}); err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if p.Size() != 2 {
		t.Errorf("Size = %d, want 2 after an estimate through the shared cache", p.Size())
	}
	stop()
}

type recordingFactory struct {
	got backend.Config
}

func (f *recordingFactory) CreateBackend(_ context.Context, c backend.Config) (*backend.Result, error) {
	f.got = c
	return &backend.Result{Store: memory.New()}, nil
}

func TestOpenBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataBackend = "memory"
	cfg.AMQPURL = "amqp://broker/"

	f := &recordingFactory{}
	if _, err := OpenBackend(context.Background(), f, cfg, true); err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	if f.got.Type != backend.MemoryBackend || !f.got.RequireBroker || f.got.AMQPURL != cfg.AMQPURL {
		t.Errorf("factory config = %+v", f.got)
	}

	cfg.DataBackend = "sheets"
	_, err := OpenBackend(context.Background(), f, cfg, false)
	if err == nil || !strings.Contains(err.Error(), "sqlite, memory") {
		t.Errorf("expected the valid backends to be listed, got %v", err)
	}
}

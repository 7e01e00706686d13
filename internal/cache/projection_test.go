package cache

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"babywallet/internal/core"
	"babywallet/internal/metrics"
)

func TestProjectionsMemoize(t *testing.T) {
	m := metrics.NewCollector(nil)
	p := NewProjections(16, 0, m)

	in := core.ProjectionInput{
		MonthlyContribution: core.MustParseMoney("100"),
		MonthlyRate:         decimal.RequireFromString("0.005"),
		Months:              156,
	}
	for i := 0; i < 3; i++ {
		if got := p.FutureValue(in); got.String() != "23662.46" {
			t.Fatalf("expected 23662.46, got %s", got)
		}
	}
	if p.Size() != 1 {
		t.Fatalf("expected a single cached entry, got %d", p.Size())
	}

	if got, err := testutil.GatherAndCount(m.Registry(), "babywallet_projection_cache_lookups_total"); err != nil || got != 2 {
		t.Fatalf("expected hit and miss series, got %d (%v)", got, err)
	}
}

func TestProjectionKeyDistinguishesInputs(t *testing.T) {
	base := core.ProjectionInput{
		MonthlyContribution: core.MustParseMoney("100"),
		MonthlyRate:         decimal.RequireFromString("0.005"),
		Months:              12,
	}
	other := base
	other.Months = 13
	if projectionKey(base) == projectionKey(other) {
		t.Fatalf("keys must differ when months differ")
	}
	other = base
	other.Principal = core.MustParseMoney("1")
	if projectionKey(base) == projectionKey(other) {
		t.Fatalf("keys must differ when principal differs")
	}
}

func TestNilProjectionsComputes(t *testing.T) {
	var p *Projections
	in := core.ProjectionInput{
		MonthlyContribution: core.MustParseMoney("100"),
		MonthlyRate:         decimal.RequireFromString("0.005"),
		Months:              1,
	}
	if got := p.FutureValue(in); got.String() != "100.50" {
		t.Fatalf("expected 100.50, got %s", got)
	}
}

func TestProjectionsExpire(t *testing.T) {
	p := NewProjections(16, time.Hour, nil)
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	p.lru.now = func() time.Time { return now }

	p.FutureValue(core.ProjectionInput{MonthlyContribution: core.MustParseMoney("100"), Months: 12})
	if n := p.CleanExpired(); n != 0 {
		t.Fatalf("fresh entry evicted: %d", n)
	}

	now = now.Add(61 * time.Minute)
	if n := p.CleanExpired(); n != 1 || p.Size() != 0 {
		t.Fatalf("expected the stale entry to be dropped, removed %d, size %d", n, p.Size())
	}
}

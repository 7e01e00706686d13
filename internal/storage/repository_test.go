package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"babywallet/internal/core"
	"babywallet/internal/ledger"
	"babywallet/internal/ledger/ledgertest"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "babywallet.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.Store { return newTestRepository(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "babywallet.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer repo.Close()

	version, dirty, err := repo.SchemaVersion(context.Background())
	if err != nil || dirty || version != 2 {
		t.Fatalf("unexpected schema version %d dirty=%v err=%v", version, dirty, err)
	}
}

func TestInvestmentRequiresExistingChild(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	inv := ledgertest.Investment("acct", "no-such-child", "inv-1")
	err := repo.Update(ctx, func(w ledger.Writer) error { return w.InsertInvestment(ctx, inv) })
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing child, got %v", err)
	}
}

func TestOptionalColumnsRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	c, inv := ledgertest.Seed(t, repo, "acct")

	inv.EndDate = core.NewDate(2030, 12, 31)
	inv.TotalContributed = core.MustParseMoney("1234.56")
	inv.Status = core.InvestmentPaused
	if err := repo.Update(ctx, func(w ledger.Writer) error { return w.UpdateInvestment(ctx, inv) }); err != nil {
		t.Fatalf("update investment: %v", err)
	}
	got, err := repo.GetInvestment(ctx, "acct", inv.ID)
	if err != nil {
		t.Fatalf("get investment: %v", err)
	}
	if got.EndDate.String() != "2030-12-31" || got.TotalContributed.String() != "1234.56" || got.Status != core.InvestmentPaused {
		t.Fatalf("unexpected investment %+v", got)
	}

	manual := core.Transaction{
		ID: "w-1", AccountID: "acct", ChildID: c.ID, Amount: core.MustParseMoney("10"),
		Type: core.TxWithdrawal, Status: core.TxPending, Description: "school trip", CreatedAt: inv.CreatedAt,
	}
	if err := repo.Update(ctx, func(w ledger.Writer) error { return w.AppendTransaction(ctx, manual) }); err != nil {
		t.Fatalf("append manual transfer: %v", err)
	}
	tx, err := repo.GetTransaction(ctx, "acct", "w-1")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if tx.InvestmentID != "" || tx.Period != "" || !tx.SettledAt.IsZero() || tx.Description != "school trip" {
		t.Fatalf("unexpected manual transfer %+v", tx)
	}
}

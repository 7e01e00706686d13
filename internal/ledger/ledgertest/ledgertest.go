// Package ledgertest holds behaviour tests shared by every ledger.Store.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"babywallet/internal/core"
	"babywallet/internal/ledger"
)

var base = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func Child(account, id string) core.Child {
	return core.Child{
		ID:           id,
		AccountID:    account,
		Name:         "child " + id,
		DateOfBirth:  core.NewDate(2020, 5, 1),
		TargetAmount: core.MustParseMoney("10000"),
		UnlockAge:    18,
		ColorTheme:   "blue",
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}

func Investment(account, child, id string) core.Investment {
	return core.Investment{
		ID:        id,
		AccountID: account,
		ChildID:   child,
		Amount:    core.MustParseMoney("100"),
		Type:      core.Recurring,
		Frequency: core.Monthly,
		StartDate: core.NewDate(2026, 10, 1),
		Status:    core.InvestmentActive,
		CreatedAt: base,
		UpdatedAt: base,
	}
}

func Contribution(inv core.Investment, id, period string, at time.Time) core.Transaction {
	return core.Transaction{
		ID:           id,
		AccountID:    inv.AccountID,
		ChildID:      inv.ChildID,
		InvestmentID: inv.ID,
		Amount:       inv.Amount,
		Type:         core.TxInvestment,
		Status:       core.TxPending,
		Period:       period,
		CreatedAt:    at,
	}
}

// Seed inserts one child with one monthly investment.
func Seed(t *testing.T, s ledger.Store, account string) (core.Child, core.Investment) {
	t.Helper()
	c := Child(account, account+"-child")
	inv := Investment(account, c.ID, account+"-inv")
	err := s.Update(context.Background(), func(w ledger.Writer) error {
		if err := w.InsertChild(context.Background(), c); err != nil {
			return err
		}
		return w.InsertInvestment(context.Background(), inv)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return c, inv
}

// Run exercises the store contract against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	t.Run("ChildRoundTrip", func(t *testing.T) { testChildRoundTrip(t, newStore(t)) })
	t.Run("OwnershipIsolation", func(t *testing.T) { testOwnership(t, newStore(t)) })
	t.Run("DuplicatePeriod", func(t *testing.T) { testDuplicatePeriod(t, newStore(t)) })
	t.Run("ConcurrentDuplicatePeriod", func(t *testing.T) { testConcurrentDuplicatePeriod(t, newStore(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("SettleOnlyPending", func(t *testing.T) { testSettleOnlyPending(t, newStore(t)) })
	t.Run("PaginationNewestFirst", func(t *testing.T) { testPagination(t, newStore(t)) })
	t.Run("Snapshot", func(t *testing.T) { testSnapshot(t, newStore(t)) })
	t.Run("PauseWindows", func(t *testing.T) { testPauseWindows(t, newStore(t)) })
}

func testChildRoundTrip(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c, inv := Seed(t, s, "acct")

	got, err := s.GetChild(ctx, "acct", c.ID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if got.Name != c.Name || !got.TargetAmount.Equal(c.TargetAmount) || !got.DateOfBirth.Equal(c.DateOfBirth.Time) ||
		got.ColorTheme != "blue" || got.UnlockAge != 18 {
		t.Fatalf("child mismatch: %+v", got)
	}

	c.Name = "renamed"
	c.TargetAmount = core.MustParseMoney("20000.50")
	if err := s.Update(ctx, func(w ledger.Writer) error { return w.UpdateChild(ctx, c) }); err != nil {
		t.Fatalf("update child: %v", err)
	}
	got, _ = s.GetChild(ctx, "acct", c.ID)
	if got.Name != "renamed" || got.TargetAmount.String() != "20000.50" {
		t.Fatalf("update not applied: %+v", got)
	}

	gotInv, err := s.GetInvestment(ctx, "acct", inv.ID)
	if err != nil {
		t.Fatalf("get investment: %v", err)
	}
	if gotInv.Frequency != core.Monthly || !gotInv.Amount.Equal(inv.Amount) || !gotInv.EndDate.IsEmpty() {
		t.Fatalf("investment mismatch: %+v", gotInv)
	}

	list, err := s.ListInvestments(ctx, ledger.InvestmentQuery{AccountID: "acct", Status: core.InvestmentPaused})
	if err != nil || len(list) != 0 {
		t.Fatalf("expected no paused investments, got %d (%v)", len(list), err)
	}
}

func testPauseWindows(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	_, inv := Seed(t, s, "acct")

	inv.Status = core.InvestmentPaused
	inv.Pauses = []core.PauseWindow{
		{From: core.NewDate(2026, 11, 3), To: core.NewDate(2026, 12, 1)},
		{From: core.NewDate(2027, 2, 10)},
	}
	if err := s.Update(ctx, func(w ledger.Writer) error { return w.UpdateInvestment(ctx, inv) }); err != nil {
		t.Fatalf("update investment: %v", err)
	}

	got, err := s.GetInvestment(ctx, "acct", inv.ID)
	if err != nil {
		t.Fatalf("get investment: %v", err)
	}
	if len(got.Pauses) != 2 {
		t.Fatalf("pauses = %+v, want 2 windows", got.Pauses)
	}
	if got.Pauses[0].From.String() != "2026-11-03" || got.Pauses[0].To.String() != "2026-12-01" {
		t.Errorf("closed window = %+v", got.Pauses[0])
	}
	if got.Pauses[1].From.String() != "2027-02-10" || !got.Pauses[1].To.IsEmpty() {
		t.Errorf("open window = %+v", got.Pauses[1])
	}
	if !got.PausedOn(core.NewDate(2027, 3, 1)) || got.PausedOn(core.NewDate(2026, 12, 1)) {
		t.Error("stored windows do not round-trip their bounds")
	}
}

func testOwnership(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c, inv := Seed(t, s, "alice")
	Seed(t, s, "bob")

	if _, err := s.GetChild(ctx, "bob", c.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign child, got %v", err)
	}
	if _, err := s.GetInvestment(ctx, "bob", inv.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign investment, got %v", err)
	}
	children, err := s.ListChildren(ctx, "bob")
	if err != nil || len(children) != 1 || children[0].AccountID != "bob" {
		t.Fatalf("expected only bob's child, got %+v (%v)", children, err)
	}
	all, err := s.ListInvestments(ctx, ledger.InvestmentQuery{AccountID: ledger.AnyAccount})
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 investments across accounts, got %d (%v)", len(all), err)
	}
}

func testDuplicatePeriod(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	_, inv := Seed(t, s, "acct")

	first := Contribution(inv, "tx-1", "2026-10", base)
	if err := s.Update(ctx, func(w ledger.Writer) error { return w.AppendTransaction(ctx, first) }); err != nil {
		t.Fatalf("first append: %v", err)
	}
	dup := Contribution(inv, "tx-2", "2026-10", base.Add(time.Minute))
	err := s.Update(ctx, func(w ledger.Writer) error { return w.AppendTransaction(ctx, dup) })
	if !errors.Is(err, ledger.ErrDuplicatePeriod) {
		t.Fatalf("expected ErrDuplicatePeriod, got %v", err)
	}
	next := Contribution(inv, "tx-3", "2026-11", base.Add(time.Hour))
	if err := s.Update(ctx, func(w ledger.Writer) error { return w.AppendTransaction(ctx, next) }); err != nil {
		t.Fatalf("next period append: %v", err)
	}

	// manual transfers carry no period and never collide
	for i := 0; i < 2; i++ {
		fee := core.Transaction{
			ID: fmt.Sprintf("fee-%d", i), AccountID: "acct", ChildID: inv.ChildID,
			Amount: core.MustParseMoney("1"), Type: core.TxFee, Status: core.TxPending, CreatedAt: base,
		}
		if err := s.Update(ctx, func(w ledger.Writer) error { return w.AppendTransaction(ctx, fee) }); err != nil {
			t.Fatalf("fee %d: %v", i, err)
		}
	}
}

func testConcurrentDuplicatePeriod(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	_, inv := Seed(t, s, "acct")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx := Contribution(inv, fmt.Sprintf("tx-%d", i), "2026-10", base)
			errs[i] = s.Update(ctx, func(w ledger.Writer) error { return w.AppendTransaction(ctx, tx) })
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ledger.ErrDuplicatePeriod):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one append to win, got %d", ok)
	}
	txs, _ := s.ListTransactions(ctx, ledger.TransactionQuery{AccountID: "acct", InvestmentID: inv.ID})
	if len(txs) != 1 {
		t.Fatalf("expected 1 stored transaction, got %d", len(txs))
	}
}

func testRollback(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	c, inv := Seed(t, s, "acct")

	boom := errors.New("boom")
	err := s.Update(ctx, func(w ledger.Writer) error {
		if err := w.AppendTransaction(ctx, Contribution(inv, "tx-1", "2026-10", base)); err != nil {
			return err
		}
		c.Name = "changed"
		if err := w.UpdateChild(ctx, c); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.GetTransaction(ctx, "acct", "tx-1"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected rolled back transaction, got %v", err)
	}
	got, _ := s.GetChild(ctx, "acct", c.ID)
	if got.Name == "changed" {
		t.Fatalf("child update survived rollback")
	}
	// the period is free again after rollback
	if err := s.Update(ctx, func(w ledger.Writer) error {
		return w.AppendTransaction(ctx, Contribution(inv, "tx-2", "2026-10", base))
	}); err != nil {
		t.Fatalf("append after rollback: %v", err)
	}
}

func testSettleOnlyPending(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	_, inv := Seed(t, s, "acct")
	tx := Contribution(inv, "tx-1", "2026-10", base)
	if err := s.Update(ctx, func(w ledger.Writer) error { return w.AppendTransaction(ctx, tx) }); err != nil {
		t.Fatalf("append: %v", err)
	}

	settled := base.Add(time.Hour)
	if err := s.Update(ctx, func(w ledger.Writer) error {
		return w.SetTransactionStatus(ctx, tx.ID, core.TxCompleted, settled)
	}); err != nil {
		t.Fatalf("settle: %v", err)
	}
	got, err := s.GetTransaction(ctx, "acct", tx.ID)
	if err != nil || got.Status != core.TxCompleted || !got.SettledAt.Equal(settled) || !got.Amount.Equal(tx.Amount) {
		t.Fatalf("unexpected settled transaction %+v (%v)", got, err)
	}

	err = s.Update(ctx, func(w ledger.Writer) error {
		return w.SetTransactionStatus(ctx, tx.ID, core.TxFailed, settled)
	})
	if !errors.Is(err, ledger.ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	err = s.Update(ctx, func(w ledger.Writer) error {
		return w.SetTransactionStatus(ctx, "missing", core.TxFailed, settled)
	})
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testPagination(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	_, inv := Seed(t, s, "acct")
	// ids 01..05, two sharing a timestamp to exercise the id tiebreak
	stamps := []time.Time{base, base.Add(time.Minute), base.Add(time.Minute), base.Add(2 * time.Minute), base.Add(3 * time.Minute)}
	for i, at := range stamps {
		tx := Contribution(inv, fmt.Sprintf("tx-%02d", i+1), fmt.Sprintf("p%d", i), at)
		if err := s.Update(ctx, func(w ledger.Writer) error { return w.AppendTransaction(ctx, tx) }); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	page, err := s.ListTransactions(ctx, ledger.TransactionQuery{AccountID: "acct", Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	assertIDs(t, page, "tx-05", "tx-04")

	page, _ = s.ListTransactions(ctx, ledger.TransactionQuery{AccountID: "acct", Limit: 2, Offset: 2})
	assertIDs(t, page, "tx-03", "tx-02")

	// a newer append does not disturb cursor paging
	late := Contribution(inv, "tx-06", "p9", base.Add(time.Hour))
	if err := s.Update(ctx, func(w ledger.Writer) error { return w.AppendTransaction(ctx, late) }); err != nil {
		t.Fatalf("late append: %v", err)
	}
	page, _ = s.ListTransactions(ctx, ledger.TransactionQuery{AccountID: "acct", Limit: 2, Before: "tx-04"})
	assertIDs(t, page, "tx-03", "tx-02")

	page, _ = s.ListTransactions(ctx, ledger.TransactionQuery{AccountID: "acct", Limit: 10, Offset: 10})
	if len(page) != 0 {
		t.Fatalf("expected empty page past the end, got %d", len(page))
	}

	stale, _ := s.ListTransactions(ctx, ledger.TransactionQuery{
		AccountID: ledger.AnyAccount, Status: core.TxPending, CreatedBefore: base.Add(time.Minute),
	})
	assertIDs(t, stale, "tx-01")

	if _, err := s.ListTransactions(ctx, ledger.TransactionQuery{AccountID: "other", Before: "tx-04"}); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected foreign cursor to be rejected, got %v", err)
	}
}

func testSnapshot(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	_, inv := Seed(t, s, "acct")
	Seed(t, s, "other")
	if err := s.Update(ctx, func(w ledger.Writer) error {
		return w.AppendTransaction(ctx, Contribution(inv, "tx-1", "2026-10", base))
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	l, err := s.Snapshot(ctx, "acct")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(l.Children) != 1 || len(l.Investments) != 1 || len(l.Transactions) != 1 {
		t.Fatalf("unexpected snapshot sizes: %d/%d/%d", len(l.Children), len(l.Investments), len(l.Transactions))
	}
	if l.Transactions[0].AccountID != "acct" {
		t.Fatalf("snapshot leaked another account")
	}
}

func assertIDs(t *testing.T, txs []core.Transaction, ids ...string) {
	t.Helper()
	if len(txs) != len(ids) {
		t.Fatalf("expected %v, got %d transactions", ids, len(txs))
	}
	for i, id := range ids {
		if txs[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, txs[i].ID)
		}
	}
}

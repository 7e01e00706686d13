// Package memory is an in-process ledger store for development and tests.
//
// Every Update copies the whole ledger before applying its writes, so a
// write costs O(n) in the number of stored records. Use the sqlite store for
// anything bigger than a development data set.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"babywallet/internal/core"
	"babywallet/internal/ledger"
)

type state struct {
	children     map[string]core.Child
	investments  map[string]core.Investment
	transactions map[string]core.Transaction
	periods      map[string]string // investment|period -> transaction id
}

func (s *state) clone() *state {
	c := &state{
		children:     make(map[string]core.Child, len(s.children)),
		investments:  make(map[string]core.Investment, len(s.investments)),
		transactions: make(map[string]core.Transaction, len(s.transactions)),
		periods:      make(map[string]string, len(s.periods)),
	}
	for k, v := range s.children {
		c.children[k] = v
	}
	for k, v := range s.investments {
		c.investments[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.periods {
		c.periods[k] = v
	}
	return c
}

// Store keeps the whole ledger behind one lock. Update works on a copy that
// replaces the live state only when fn succeeds.
type Store struct {
	mu sync.RWMutex
	st *state
}

func New() *Store {
	return &Store{st: &state{
		children:     map[string]core.Child{},
		investments:  map[string]core.Investment{},
		transactions: map[string]core.Transaction{},
		periods:      map[string]string{},
	}}
}

func (s *Store) Update(ctx context.Context, fn func(w ledger.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(&writer{reader{work}}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Snapshot(_ context.Context, accountID string) (core.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var l core.Ledger
	for _, c := range s.st.children {
		if owned(c.AccountID, accountID) {
			l.Children = append(l.Children, c)
		}
	}
	for _, inv := range s.st.investments {
		if owned(inv.AccountID, accountID) {
			l.Investments = append(l.Investments, inv)
		}
	}
	for _, tx := range s.st.transactions {
		if owned(tx.AccountID, accountID) {
			l.Transactions = append(l.Transactions, tx)
		}
	}
	sort.Slice(l.Children, func(i, j int) bool { return before(l.Children[i].CreatedAt, l.Children[i].ID, l.Children[j].CreatedAt, l.Children[j].ID) })
	sort.Slice(l.Investments, func(i, j int) bool {
		return before(l.Investments[i].CreatedAt, l.Investments[i].ID, l.Investments[j].CreatedAt, l.Investments[j].ID)
	})
	sort.Slice(l.Transactions, func(i, j int) bool {
		return before(l.Transactions[i].CreatedAt, l.Transactions[i].ID, l.Transactions[j].CreatedAt, l.Transactions[j].ID)
	})
	return l, nil
}

func (s *Store) GetChild(ctx context.Context, accountID, id string) (core.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reader{s.st}.GetChild(ctx, accountID, id)
}

func (s *Store) ListChildren(ctx context.Context, accountID string) ([]core.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reader{s.st}.ListChildren(ctx, accountID)
}

func (s *Store) GetInvestment(ctx context.Context, accountID, id string) (core.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reader{s.st}.GetInvestment(ctx, accountID, id)
}

func (s *Store) ListInvestments(ctx context.Context, q ledger.InvestmentQuery) ([]core.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reader{s.st}.ListInvestments(ctx, q)
}

func (s *Store) GetTransaction(ctx context.Context, accountID, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reader{s.st}.GetTransaction(ctx, accountID, id)
}

func (s *Store) ListTransactions(ctx context.Context, q ledger.TransactionQuery) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reader{s.st}.ListTransactions(ctx, q)
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

type reader struct{ st *state }

func (r reader) GetChild(_ context.Context, accountID, id string) (core.Child, error) {
	c, ok := r.st.children[id]
	if !ok || !owned(c.AccountID, accountID) {
		return core.Child{}, ledger.ErrNotFound
	}
	return c, nil
}

func (r reader) ListChildren(_ context.Context, accountID string) ([]core.Child, error) {
	var out []core.Child
	for _, c := range r.st.children {
		if owned(c.AccountID, accountID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

func (r reader) GetInvestment(_ context.Context, accountID, id string) (core.Investment, error) {
	inv, ok := r.st.investments[id]
	if !ok || !owned(inv.AccountID, accountID) {
		return core.Investment{}, ledger.ErrNotFound
	}
	return inv, nil
}

func (r reader) ListInvestments(_ context.Context, q ledger.InvestmentQuery) ([]core.Investment, error) {
	var out []core.Investment
	for _, inv := range r.st.investments {
		if !owned(inv.AccountID, q.AccountID) {
			continue
		}
		if q.ChildID != "" && inv.ChildID != q.ChildID {
			continue
		}
		if q.Status != "" && inv.Status != q.Status {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

func (r reader) GetTransaction(_ context.Context, accountID, id string) (core.Transaction, error) {
	tx, ok := r.st.transactions[id]
	if !ok || !owned(tx.AccountID, accountID) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	return tx, nil
}

func (r reader) ListTransactions(_ context.Context, q ledger.TransactionQuery) ([]core.Transaction, error) {
	var cursor *core.Transaction
	if q.Before != "" {
		c, ok := r.st.transactions[q.Before]
		if !ok || !owned(c.AccountID, q.AccountID) {
			return nil, ledger.ErrNotFound
		}
		cursor = &c
	}

	var out []core.Transaction
	for _, tx := range r.st.transactions {
		if !owned(tx.AccountID, q.AccountID) {
			continue
		}
		if q.ChildID != "" && tx.ChildID != q.ChildID {
			continue
		}
		if q.InvestmentID != "" && tx.InvestmentID != q.InvestmentID {
			continue
		}
		if q.Status != "" && tx.Status != q.Status {
			continue
		}
		if !q.CreatedBefore.IsZero() && !tx.CreatedAt.Before(q.CreatedBefore) {
			continue
		}
		if cursor != nil && !before(tx.CreatedAt, tx.ID, cursor.CreatedAt, cursor.ID) {
			continue
		}
		out = append(out, tx)
	}
	// newest first
	sort.Slice(out, func(i, j int) bool { return before(out[j].CreatedAt, out[j].ID, out[i].CreatedAt, out[i].ID) })

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

type writer struct{ reader }

func (w *writer) InsertChild(_ context.Context, c core.Child) error {
	if _, ok := w.st.children[c.ID]; ok {
		return fmt.Errorf("child %s already exists", c.ID)
	}
	w.st.children[c.ID] = c
	return nil
}

func (w *writer) UpdateChild(_ context.Context, c core.Child) error {
	if _, ok := w.st.children[c.ID]; !ok {
		return ledger.ErrNotFound
	}
	w.st.children[c.ID] = c
	return nil
}

func (w *writer) DeleteChild(_ context.Context, accountID, id string) error {
	c, ok := w.st.children[id]
	if !ok || !owned(c.AccountID, accountID) {
		return ledger.ErrNotFound
	}
	delete(w.st.children, id)
	return nil
}

func (w *writer) InsertInvestment(_ context.Context, inv core.Investment) error {
	if _, ok := w.st.children[inv.ChildID]; !ok {
		return fmt.Errorf("insert investment %s: child %s: %w", inv.ID, inv.ChildID, ledger.ErrNotFound)
	}
	if _, ok := w.st.investments[inv.ID]; ok {
		return fmt.Errorf("investment %s already exists", inv.ID)
	}
	inv.Pauses = slices.Clone(inv.Pauses)
	w.st.investments[inv.ID] = inv
	return nil
}

func (w *writer) UpdateInvestment(_ context.Context, inv core.Investment) error {
	if _, ok := w.st.investments[inv.ID]; !ok {
		return ledger.ErrNotFound
	}
	inv.Pauses = slices.Clone(inv.Pauses)
	w.st.investments[inv.ID] = inv
	return nil
}

func (w *writer) AppendTransaction(_ context.Context, tx core.Transaction) error {
	if _, ok := w.st.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	if tx.InvestmentID != "" && tx.Period != "" {
		key := tx.InvestmentID + "|" + tx.Period
		if _, ok := w.st.periods[key]; ok {
			return ledger.ErrDuplicatePeriod
		}
		w.st.periods[key] = tx.ID
	}
	w.st.transactions[tx.ID] = tx
	return nil
}

func (w *writer) SetTransactionStatus(_ context.Context, id string, status core.TransactionStatus, at time.Time) error {
	tx, ok := w.st.transactions[id]
	if !ok {
		return ledger.ErrNotFound
	}
	if tx.Status != core.TxPending {
		return ledger.ErrNotPending
	}
	tx.Status = status
	tx.SettledAt = at
	w.st.transactions[id] = tx
	return nil
}

func owned(owner, accountID string) bool {
	return accountID == ledger.AnyAccount || owner == accountID
}

// before orders by (created_at, id) ascending.
func before(at time.Time, id string, otherAt time.Time, otherID string) bool {
	if !at.Equal(otherAt) {
		return at.Before(otherAt)
	}
	return id < otherID
}

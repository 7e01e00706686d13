// Package ledger defines the storage ports of the savings ledger.
package ledger

import (
	"context"
	"errors"
	"time"

	"babywallet/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicatePeriod is returned by AppendTransaction when the
	// (investment, period) pair already has a transaction.
	ErrDuplicatePeriod = errors.New("duplicate contribution period")
	// ErrNotPending is returned when a status change targets a transaction
	// that already left pending.
	ErrNotPending = errors.New("transaction is not pending")
)

// AnyAccount scopes a query to every account. Only background workers use it.
const AnyAccount = ""

type (
	InvestmentQuery struct {
		AccountID string
		ChildID   string
		Status    core.InvestmentStatus
	}

	// TransactionQuery selects transactions newest-first by (created_at, id).
	TransactionQuery struct {
		AccountID     string
		ChildID       string
		InvestmentID  string
		Status        core.TransactionStatus
		CreatedBefore time.Time // exclusive, zero means no bound
		Before        string    // cursor: only transactions older than this id
		Limit         int       // 0 means no limit
		Offset        int
	}

	Reader interface {
		GetChild(ctx context.Context, accountID, id string) (core.Child, error)
		ListChildren(ctx context.Context, accountID string) ([]core.Child, error)
		GetInvestment(ctx context.Context, accountID, id string) (core.Investment, error)
		ListInvestments(ctx context.Context, q InvestmentQuery) ([]core.Investment, error)
		GetTransaction(ctx context.Context, accountID, id string) (core.Transaction, error)
		ListTransactions(ctx context.Context, q TransactionQuery) ([]core.Transaction, error)
	}

	// Writer is the view of the store inside a unit of work.
	Writer interface {
		Reader
		InsertChild(ctx context.Context, c core.Child) error
		UpdateChild(ctx context.Context, c core.Child) error
		DeleteChild(ctx context.Context, accountID, id string) error
		InsertInvestment(ctx context.Context, inv core.Investment) error
		UpdateInvestment(ctx context.Context, inv core.Investment) error
		AppendTransaction(ctx context.Context, tx core.Transaction) error
		// SetTransactionStatus moves a pending transaction to a terminal status.
		SetTransactionStatus(ctx context.Context, id string, status core.TransactionStatus, at time.Time) error
	}

	Store interface {
		Reader
		// Update runs fn atomically: either every write inside fn is applied
		// or none is.
		Update(ctx context.Context, fn func(w Writer) error) error
		// Snapshot returns a consistent copy of one account's ledger. The
		// caller sets Ledger.At.
		Snapshot(ctx context.Context, accountID string) (core.Ledger, error)
		Ping(ctx context.Context) error
		Close() error
	}
)

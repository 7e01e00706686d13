package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"babywallet/internal/core"
	"babywallet/internal/ledger"
	"babywallet/internal/log"
)

// CreateInvestmentInput describes a new contribution plan.
type CreateInvestmentInput struct {
	ChildID   string
	Amount    core.Money
	Type      core.InvestmentType
	Frequency core.Frequency
	StartDate core.Date
	EndDate   core.Date
}

// CreateInvestment starts an active plan and, in the same unit of work,
// appends the pending transaction for its first contribution.
func (s *LedgerService) CreateInvestment(ctx context.Context, accountID string, in CreateInvestmentInput) (core.Investment, error) {
	if err := requireAccount(accountID); err != nil {
		return core.Investment{}, err
	}
	now := s.now().UTC()
	inv := core.Investment{
		ID:        uuid.NewString(),
		AccountID: accountID,
		ChildID:   in.ChildID,
		Amount:    in.Amount,
		Type:      in.Type,
		Frequency: in.Frequency,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Status:    core.InvestmentActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := inv.Validate(); err != nil {
		return core.Investment{}, err
	}
	period, err := PeriodFor(inv, inv.StartDate)
	if err != nil {
		return core.Investment{}, core.NewValidationError("frequency", err)
	}

	unlock := s.locks.Lock(in.ChildID)
	defer unlock()

	tx := newTransaction(accountID, inv.ChildID, core.TxInvestment, inv.Amount)
	tx.InvestmentID = inv.ID
	tx.Period = period
	tx.Description = "Initial contribution"

	err = s.store.Update(ctx, func(w ledger.Writer) error {
		child, err := w.GetChild(ctx, accountID, in.ChildID)
		if err != nil {
			return notFound(err, "child", in.ChildID)
		}
		if inv.StartDate.Before(core.DateOf(child.CreatedAt).Time) {
			return core.Validationf("start_date", "must not precede the child's creation date %s", core.DateOf(child.CreatedAt))
		}
		if err := w.InsertInvestment(ctx, inv); err != nil {
			return fmt.Errorf("insert investment: %w", err)
		}
		s.stamp(&tx)
		if err := w.AppendTransaction(ctx, tx); err != nil {
			return fmt.Errorf("append initial contribution: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Investment{}, err
	}

	s.metrics.TransactionAppended(string(tx.Type))
	s.events.LogTransaction(ctx, "Investment created", log.OpCreate, accountID, inv.ChildID,
		log.NewFields().WithTransaction(tx.ID, inv.ID, string(tx.Type), string(tx.Status), tx.Amount.String(), tx.Period))
	s.announce(ctx, tx)
	return inv, nil
}

// RecordContribution appends the pending contribution of inv for the period
// containing scheduledDate. A period already recorded yields a
// ConflictError and changes nothing. Workers pass ledger.AnyAccount.
func (s *LedgerService) RecordContribution(ctx context.Context, accountID, investmentID string, scheduledDate core.Date) (core.Transaction, error) {
	current, err := s.store.GetInvestment(ctx, accountID, investmentID)
	if err != nil {
		return core.Transaction{}, notFound(err, "investment", investmentID)
	}

	unlock := s.locks.Lock(current.ChildID)
	defer unlock()

	var tx core.Transaction
	err = s.store.Update(ctx, func(w ledger.Writer) error {
		inv, err := w.GetInvestment(ctx, accountID, investmentID)
		if err != nil {
			return notFound(err, "investment", investmentID)
		}
		if inv.Status != core.InvestmentActive {
			return &core.InvalidStateError{Entity: "investment", ID: inv.ID, State: string(inv.Status), Action: "contribute to"}
		}
		if err := inv.CoversDate(scheduledDate); err != nil {
			return err
		}
		period, err := PeriodFor(inv, scheduledDate)
		if err != nil {
			return fmt.Errorf("period for %s: %w", scheduledDate, err)
		}

		tx = newTransaction(inv.AccountID, inv.ChildID, core.TxInvestment, inv.Amount)
		tx.InvestmentID = inv.ID
		tx.Period = period
		tx.Description = "Scheduled contribution " + period
		s.stamp(&tx)
		if err := w.AppendTransaction(ctx, tx); err != nil {
			if errors.Is(err, ledger.ErrDuplicatePeriod) {
				return &core.ConflictError{InvestmentID: inv.ID, Period: period}
			}
			return fmt.Errorf("append contribution: %w", err)
		}
		return s.refreshContributed(ctx, w, inv, tx.CreatedAt)
	})
	if err != nil {
		if core.IsConflict(err) {
			s.metrics.Contribution("duplicate")
		} else {
			s.metrics.Contribution("error")
		}
		return core.Transaction{}, err
	}

	s.metrics.Contribution("recorded")
	s.metrics.TransactionAppended(string(tx.Type))
	s.events.LogTransaction(ctx, "Contribution recorded", log.OpContribute, tx.AccountID, tx.ChildID,
		log.NewFields().WithTransaction(tx.ID, tx.InvestmentID, string(tx.Type), string(tx.Status), tx.Amount.String(), tx.Period))
	s.announce(ctx, tx)
	return tx, nil
}

// SettleTransaction moves a pending transaction to completed or failed.
// Completing a one_time investment's contribution completes the investment.
func (s *LedgerService) SettleTransaction(ctx context.Context, accountID, transactionID string, outcome core.TransactionStatus) (core.Transaction, error) {
	current, err := s.store.GetTransaction(ctx, accountID, transactionID)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction", transactionID)
	}
	if outcome != core.TxCompleted && outcome != core.TxFailed {
		return core.Transaction{}, &core.InvalidStateError{
			Entity: "transaction",
			ID:     transactionID,
			State:  string(current.Status),
			Action: fmt.Sprintf("settle as %q", outcome),
			Err:    core.Validationf("outcome", "must be %q or %q", core.TxCompleted, core.TxFailed),
		}
	}

	unlock := s.locks.Lock(current.ChildID)
	defer unlock()

	now := s.now().UTC()
	var settled core.Transaction
	err = s.store.Update(ctx, func(w ledger.Writer) error {
		tx, err := w.GetTransaction(ctx, accountID, transactionID)
		if err != nil {
			return notFound(err, "transaction", transactionID)
		}
		settled, err = tx.Settle(outcome, now)
		if err != nil {
			return err
		}
		if err := w.SetTransactionStatus(ctx, tx.ID, outcome, now); err != nil {
			if errors.Is(err, ledger.ErrNotPending) {
				return &core.InvalidStateError{Entity: "transaction", ID: tx.ID, State: string(tx.Status), Action: "settle"}
			}
			return fmt.Errorf("set transaction status: %w", err)
		}
		if tx.InvestmentID == "" || outcome != core.TxCompleted {
			return nil
		}

		inv, err := w.GetInvestment(ctx, ledger.AnyAccount, tx.InvestmentID)
		if err != nil {
			return notFound(err, "investment", tx.InvestmentID)
		}
		if inv.Type == core.OneTime && inv.Status == core.InvestmentActive {
			if inv, err = inv.Transition(core.InvestmentCompleted, "complete", now); err != nil {
				return err
			}
			if err := w.UpdateInvestment(ctx, inv); err != nil {
				return fmt.Errorf("update investment: %w", err)
			}
		}
		return s.refreshContributed(ctx, w, inv, now)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.metrics.Settlement(string(outcome))
	s.events.LogTransaction(ctx, "Transaction settled", log.OpSettle, settled.AccountID, settled.ChildID,
		log.NewFields().WithTransaction(settled.ID, settled.InvestmentID, string(settled.Type), string(settled.Status), settled.Amount.String(), settled.Period))
	return settled, nil
}

// refreshContributed recomputes the cached total_contributed of inv from
// its completed contributions and stores it when it changed.
func (s *LedgerService) refreshContributed(ctx context.Context, w ledger.Writer, inv core.Investment, at time.Time) error {
	txs, err := w.ListTransactions(ctx, ledger.TransactionQuery{
		AccountID:    inv.AccountID,
		InvestmentID: inv.ID,
		Status:       core.TxCompleted,
	})
	if err != nil {
		return fmt.Errorf("list contributions: %w", err)
	}
	total := core.ContributedTotal(inv.ID, txs)
	if total.Equal(inv.TotalContributed) {
		return nil
	}
	inv.TotalContributed = total
	inv.UpdatedAt = at
	if err := w.UpdateInvestment(ctx, inv); err != nil {
		return fmt.Errorf("update investment: %w", err)
	}
	return nil
}

func (s *LedgerService) PauseInvestment(ctx context.Context, accountID, investmentID string) (core.Investment, error) {
	return s.transition(ctx, accountID, investmentID, core.InvestmentPaused, "pause")
}

func (s *LedgerService) ResumeInvestment(ctx context.Context, accountID, investmentID string) (core.Investment, error) {
	return s.transition(ctx, accountID, investmentID, core.InvestmentActive, "resume")
}

// CancelInvestment cancels the plan and its still-pending transactions.
// Completed transactions and total_contributed are left as they are.
func (s *LedgerService) CancelInvestment(ctx context.Context, accountID, investmentID string) (core.Investment, error) {
	return s.transition(ctx, accountID, investmentID, core.InvestmentCancelled, "cancel")
}

func (s *LedgerService) transition(ctx context.Context, accountID, investmentID string, next core.InvestmentStatus, action string) (core.Investment, error) {
	if err := requireAccount(accountID); err != nil {
		return core.Investment{}, err
	}
	current, err := s.store.GetInvestment(ctx, accountID, investmentID)
	if err != nil {
		return core.Investment{}, notFound(err, "investment", investmentID)
	}

	unlock := s.locks.Lock(current.ChildID)
	defer unlock()

	now := s.now().UTC()
	var updated core.Investment
	cancelled := 0
	err = s.store.Update(ctx, func(w ledger.Writer) error {
		inv, err := w.GetInvestment(ctx, accountID, investmentID)
		if err != nil {
			return notFound(err, "investment", investmentID)
		}
		if updated, err = inv.Transition(next, action, now); err != nil {
			return err
		}
		if err := w.UpdateInvestment(ctx, updated); err != nil {
			return fmt.Errorf("update investment: %w", err)
		}
		if next != core.InvestmentCancelled {
			return nil
		}

		pending, err := w.ListTransactions(ctx, ledger.TransactionQuery{
			AccountID:    accountID,
			InvestmentID: investmentID,
			Status:       core.TxPending,
		})
		if err != nil {
			return fmt.Errorf("list pending transactions: %w", err)
		}
		for _, tx := range pending {
			if err := w.SetTransactionStatus(ctx, tx.ID, core.TxCancelled, now); err != nil {
				return fmt.Errorf("cancel transaction %s: %w", tx.ID, err)
			}
			cancelled++
		}
		return nil
	})
	if err != nil {
		return core.Investment{}, err
	}

	s.events.LogTransaction(ctx, "Investment "+string(updated.Status), log.OpTransition, accountID, updated.ChildID,
		log.NewFields().WithTransaction("", investmentID, "", string(updated.Status), "", ""))
	if cancelled > 0 {
		s.logger.InfoContext(ctx, "Cancelled pending transactions",
			log.FieldInvestmentID, investmentID, "count", cancelled)
	}
	return updated, nil
}

// InvestmentSummary is an investment with the number of its transactions.
type InvestmentSummary struct {
	core.Investment
	TransactionCount int
}

// ListInvestments returns the account's investments, optionally narrowed to
// one child and one status.
func (s *LedgerService) ListInvestments(ctx context.Context, accountID, childID string, status core.InvestmentStatus) ([]InvestmentSummary, error) {
	if err := requireAccount(accountID); err != nil {
		return nil, err
	}
	switch status {
	case "", core.InvestmentActive, core.InvestmentPaused, core.InvestmentCompleted, core.InvestmentCancelled:
	default:
		return nil, core.Validationf("status", "unknown investment status %q", status)
	}
	if childID != "" {
		if _, err := s.store.GetChild(ctx, accountID, childID); err != nil {
			return nil, notFound(err, "child", childID)
		}
	}

	l, err := s.snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, tx := range l.Transactions {
		if tx.InvestmentID != "" {
			counts[tx.InvestmentID]++
		}
	}

	out := make([]InvestmentSummary, 0, len(l.Investments))
	for _, inv := range l.Investments {
		if childID != "" && inv.ChildID != childID {
			continue
		}
		if status != "" && inv.Status != status {
			continue
		}
		out = append(out, InvestmentSummary{Investment: inv, TransactionCount: counts[inv.ID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// RecordWithdrawal appends a pending withdrawal from the child's balance.
func (s *LedgerService) RecordWithdrawal(ctx context.Context, accountID, childID string, amount core.Money, description string) (core.Transaction, error) {
	return s.recordManual(ctx, accountID, childID, core.TxWithdrawal, amount, description)
}

// RecordFee appends a pending fee charged to the child's balance.
func (s *LedgerService) RecordFee(ctx context.Context, accountID, childID string, amount core.Money, description string) (core.Transaction, error) {
	return s.recordManual(ctx, accountID, childID, core.TxFee, amount, description)
}

// RecordInterest appends a pending interest credit to the child's balance.
func (s *LedgerService) RecordInterest(ctx context.Context, accountID, childID string, amount core.Money, description string) (core.Transaction, error) {
	return s.recordManual(ctx, accountID, childID, core.TxInterest, amount, description)
}

// RecordRefund appends a pending refund credited back to the child.
func (s *LedgerService) RecordRefund(ctx context.Context, accountID, childID string, amount core.Money, description string) (core.Transaction, error) {
	return s.recordManual(ctx, accountID, childID, core.TxRefund, amount, description)
}

// recordManual appends a transaction that belongs to no investment. A debit
// may not exceed the available balance: completed balance minus debits
// still pending. Credits are not checked.
func (s *LedgerService) recordManual(ctx context.Context, accountID, childID string, txType core.TransactionType, amount core.Money, description string) (core.Transaction, error) {
	if err := requireAccount(accountID); err != nil {
		return core.Transaction{}, err
	}
	if txType == core.TxInvestment {
		return core.Transaction{}, core.Validationf("transaction_type", "contributions are recorded through an investment")
	}
	tx := newTransaction(accountID, childID, txType, amount)
	tx.Description = description
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	unlock := s.locks.Lock(childID)
	defer unlock()

	err := s.store.Update(ctx, func(w ledger.Writer) error {
		if _, err := w.GetChild(ctx, accountID, childID); err != nil {
			return notFound(err, "child", childID)
		}
		if txType.IsDebit() {
			txs, err := w.ListTransactions(ctx, ledger.TransactionQuery{AccountID: accountID, ChildID: childID})
			if err != nil {
				return fmt.Errorf("list transactions: %w", err)
			}
			available := core.ChildBalance(childID, txs).Sub(core.PendingDebits(childID, txs))
			if amount.Cmp(available) > 0 {
				return &core.InvalidStateError{
					Entity: "child",
					ID:     childID,
					State:  "available " + available.String(),
					Action: "record " + string(txType) + " of " + amount.String() + " for",
					Err:    core.ErrInsufficientFunds,
				}
			}
		}
		s.stamp(&tx)
		return w.AppendTransaction(ctx, tx)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.metrics.TransactionAppended(string(tx.Type))
	s.events.LogTransaction(ctx, "Manual transfer recorded", log.OpCreate, accountID, childID,
		log.NewFields().WithTransaction(tx.ID, "", string(tx.Type), string(tx.Status), tx.Amount.String(), ""))
	s.announce(ctx, tx)
	return tx, nil
}

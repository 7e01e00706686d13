package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"babywallet/internal/amqp"
	"babywallet/internal/cache"
	"babywallet/internal/core"
	"babywallet/internal/ledger"
	"babywallet/internal/log"
	"babywallet/internal/metrics"
)

const (
	DefaultTransactionLimit = 50
	MaxTransactionLimit     = 500
	maxProjectionYears      = 100
	firstStatementYear      = 2000
)

// Publisher announces pending transactions to the settlement system.
// *amqp.Client implements it.
type Publisher interface {
	PublishPending(ctx context.Context, msg *amqp.PendingTransactionMessage) error
}

// Settings are the configurable business rules of the ledger.
type Settings struct {
	MinChildAge         int
	MaxChildAge         int
	UnlockAge           int
	MonthlyRate         decimal.Decimal
	DefaultContribution core.Money
}

func DefaultSettings() Settings {
	return Settings{
		MinChildAge:         0,
		MaxChildAge:         17,
		UnlockAge:           18,
		MonthlyRate:         core.DefaultMonthlyRate,
		DefaultContribution: core.MustParseMoney("100"),
	}
}

func (s Settings) projection() core.ProjectionSettings {
	return core.ProjectionSettings{
		MonthlyRate:         s.MonthlyRate,
		DefaultContribution: s.DefaultContribution,
	}
}

// LedgerService orchestrates children, investments and transactions over a
// ledger store. Mutations touching one child are serialized by a per-child
// lock and applied in a single store unit of work; pending transactions are
// announced to the settlement system after commit.
type LedgerService struct {
	store       ledger.Store
	settings    Settings
	publisher   Publisher
	metrics     *metrics.Collector
	projections *cache.Projections
	logger      *log.Logger
	events      *log.StructuredLogger
	locks       *keyedMutex
	now         func() time.Time
}

type Option func(*LedgerService)

// WithPublisher announces new pending transactions through p.
func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *LedgerService) { s.metrics = m }
}

// WithProjections memoizes estimator results in p.
func WithProjections(p *cache.Projections) Option {
	return func(s *LedgerService) { s.projections = p }
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = l.WithComponent(log.ComponentLedger) }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(store ledger.Store, settings Settings, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:    store,
		settings: settings,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger)
	}
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// Store exposes the underlying ledger store to workers.
func (s *LedgerService) Store() ledger.Store {
	return s.store
}

func (s *LedgerService) Settings() Settings {
	return s.settings
}

// CreateChildInput describes a new child. Exactly one of Age and
// DateOfBirth is used; DateOfBirth wins when both are set.
type CreateChildInput struct {
	Name         string
	Age          *int
	DateOfBirth  core.Date
	TargetAmount core.Money
	ColorTheme   string
}

// CreateChild registers a child with a zero balance.
func (s *LedgerService) CreateChild(ctx context.Context, accountID string, in CreateChildInput) (core.Child, error) {
	if err := requireAccount(accountID); err != nil {
		return core.Child{}, err
	}
	now := s.now().UTC()

	dob := in.DateOfBirth
	var age int
	switch {
	case !dob.IsEmpty():
		if dob.After(now) {
			return core.Child{}, core.Validationf("date_of_birth", "must not be in the future")
		}
		age = dob.YearsBetween(now)
	case in.Age != nil:
		age = *in.Age
	default:
		return core.Child{}, core.Validationf("age", "age or date_of_birth is required")
	}
	if age < s.settings.MinChildAge || age > s.settings.MaxChildAge {
		return core.Child{}, &core.ValidationError{
			Field:   "age",
			Message: fmt.Sprintf("must be between %d and %d", s.settings.MinChildAge, s.settings.MaxChildAge),
			Err:     core.ErrInvalidAge,
		}
	}
	if dob.IsEmpty() {
		dob = core.BirthDateForAge(age, now)
	}

	child := core.Child{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Name:         strings.TrimSpace(in.Name),
		DateOfBirth:  dob,
		TargetAmount: in.TargetAmount,
		UnlockAge:    s.settings.UnlockAge,
		ColorTheme:   in.ColorTheme,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := child.Validate(); err != nil {
		return core.Child{}, err
	}

	err := s.store.Update(ctx, func(w ledger.Writer) error {
		return w.InsertChild(ctx, child)
	})
	if err != nil {
		return core.Child{}, fmt.Errorf("insert child: %w", err)
	}

	s.events.LogTransaction(ctx, "Child created", log.OpCreate, accountID, child.ID,
		log.NewFields().WithComponent(log.ComponentLedger))
	return child, nil
}

// GetChildProfile returns the child with every ledger-derived value.
func (s *LedgerService) GetChildProfile(ctx context.Context, accountID, childID string) (core.ChildProfile, error) {
	if err := requireAccount(accountID); err != nil {
		return core.ChildProfile{}, err
	}
	l, err := s.snapshot(ctx, accountID)
	if err != nil {
		return core.ChildProfile{}, err
	}
	for _, c := range l.Children {
		if c.ID == childID {
			return core.BuildChildProfile(c, l, s.settings.projection()), nil
		}
	}
	return core.ChildProfile{}, &core.NotFoundError{Entity: "child", ID: childID}
}

// ListChildren returns the profiles of every child of the account.
func (s *LedgerService) ListChildren(ctx context.Context, accountID string) ([]core.ChildProfile, error) {
	if err := requireAccount(accountID); err != nil {
		return nil, err
	}
	l, err := s.snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}
	sort.Slice(l.Children, func(i, j int) bool {
		a, b := l.Children[i], l.Children[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	profiles := make([]core.ChildProfile, 0, len(l.Children))
	for _, c := range l.Children {
		profiles = append(profiles, core.BuildChildProfile(c, l, s.settings.projection()))
	}
	return profiles, nil
}

// UpdateChildInput holds the optional edits of a child. Nil fields are
// left unchanged.
type UpdateChildInput struct {
	Name         *string
	TargetAmount *core.Money
	ColorTheme   *string
}

// UpdateChild renames, retargets or recolors a child.
func (s *LedgerService) UpdateChild(ctx context.Context, accountID, childID string, in UpdateChildInput) (core.Child, error) {
	if err := requireAccount(accountID); err != nil {
		return core.Child{}, err
	}
	unlock := s.locks.Lock(childID)
	defer unlock()

	var updated core.Child
	err := s.store.Update(ctx, func(w ledger.Writer) error {
		c, err := w.GetChild(ctx, accountID, childID)
		if err != nil {
			return notFound(err, "child", childID)
		}
		if in.Name != nil {
			c.Name = strings.TrimSpace(*in.Name)
		}
		if in.TargetAmount != nil {
			c.TargetAmount = *in.TargetAmount
		}
		if in.ColorTheme != nil {
			c.ColorTheme = *in.ColorTheme
		}
		if err := c.Validate(); err != nil {
			return err
		}
		c.UpdatedAt = s.now().UTC()
		updated = c
		return w.UpdateChild(ctx, c)
	})
	if err != nil {
		return core.Child{}, err
	}

	s.events.LogTransaction(ctx, "Child updated", log.OpUpdate, accountID, childID, log.NewFields())
	return updated, nil
}

// DeleteChild removes a child that has no investments and no transactions.
func (s *LedgerService) DeleteChild(ctx context.Context, accountID, childID string) error {
	if err := requireAccount(accountID); err != nil {
		return err
	}
	unlock := s.locks.Lock(childID)
	defer unlock()

	err := s.store.Update(ctx, func(w ledger.Writer) error {
		if _, err := w.GetChild(ctx, accountID, childID); err != nil {
			return notFound(err, "child", childID)
		}
		invs, err := w.ListInvestments(ctx, ledger.InvestmentQuery{AccountID: accountID, ChildID: childID})
		if err != nil {
			return fmt.Errorf("list investments: %w", err)
		}
		if len(invs) > 0 {
			return &core.InvalidStateError{Entity: "child", ID: childID, State: "has_investments", Action: "delete"}
		}
		txs, err := w.ListTransactions(ctx, ledger.TransactionQuery{AccountID: accountID, ChildID: childID, Limit: 1})
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		if len(txs) > 0 {
			return &core.InvalidStateError{Entity: "child", ID: childID, State: "has_transactions", Action: "delete"}
		}
		return w.DeleteChild(ctx, accountID, childID)
	})
	if err != nil {
		return err
	}

	s.events.LogTransaction(ctx, "Child deleted", log.OpDelete, accountID, childID, log.NewFields())
	return nil
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	ChildID string
	Limit   int
	Offset  int
	Before  string
}

// ListTransactions returns the account's transactions newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, accountID string, f TransactionFilter) ([]core.Transaction, error) {
	if err := requireAccount(accountID); err != nil {
		return nil, err
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, core.Validationf("limit", "limit and offset must not be negative")
	}
	if f.Limit == 0 {
		f.Limit = DefaultTransactionLimit
	}
	if f.Limit > MaxTransactionLimit {
		f.Limit = MaxTransactionLimit
	}
	if f.ChildID != "" {
		if _, err := s.store.GetChild(ctx, accountID, f.ChildID); err != nil {
			return nil, notFound(err, "child", f.ChildID)
		}
	}

	txs, err := s.store.ListTransactions(ctx, ledger.TransactionQuery{
		AccountID: accountID,
		ChildID:   f.ChildID,
		Before:    f.Before,
		Limit:     f.Limit,
		Offset:    f.Offset,
	})
	if err != nil {
		return nil, notFound(err, "transaction", f.Before)
	}
	return txs, nil
}

// DashboardStats summarizes the account as of now.
func (s *LedgerService) DashboardStats(ctx context.Context, accountID string) (core.DashboardStats, error) {
	if err := requireAccount(accountID); err != nil {
		return core.DashboardStats{}, err
	}
	l, err := s.snapshot(ctx, accountID)
	if err != nil {
		return core.DashboardStats{}, err
	}
	return core.ComputeDashboardStats(l), nil
}

// TransactionStats buckets the account's activity by calendar month over
// a trailing period ("1m", "3m", "6m" or "1y"; empty means "6m").
func (s *LedgerService) TransactionStats(ctx context.Context, accountID, period string) ([]core.MonthBucket, error) {
	if err := requireAccount(accountID); err != nil {
		return nil, err
	}
	p, err := core.ParseStatsPeriod(period)
	if err != nil {
		return nil, err
	}
	l, err := s.snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return core.TransactionStats(l, p), nil
}

// AnnualStatement returns the account's statement for a calendar year,
// from the first statement year up to the current one.
func (s *LedgerService) AnnualStatement(ctx context.Context, accountID string, year int) (core.AnnualStatement, error) {
	if err := requireAccount(accountID); err != nil {
		return core.AnnualStatement{}, err
	}
	if current := s.now().UTC().Year(); year < firstStatementYear || year > current {
		return core.AnnualStatement{}, core.Validationf("year", "must be between %d and %d", firstStatementYear, current)
	}
	l, err := s.snapshot(ctx, accountID)
	if err != nil {
		return core.AnnualStatement{}, err
	}
	return core.BuildAnnualStatement(l, year), nil
}

// EstimateInput is a live projection request. A nil Rate uses the
// configured monthly rate.
type EstimateInput struct {
	Principal           core.Money
	MonthlyContribution core.Money
	Years               int
	Rate                *decimal.Decimal
}

// Estimate projects a monthly contribution over whole years.
func (s *LedgerService) Estimate(in EstimateInput) (core.Money, error) {
	if in.Years < 0 || in.Years > maxProjectionYears {
		return core.Money{}, core.Validationf("years", "must be between 0 and %d", maxProjectionYears)
	}
	rate := s.settings.MonthlyRate
	if in.Rate != nil {
		rate = *in.Rate
	}
	pi := core.ProjectionInput{
		Principal:           in.Principal,
		MonthlyContribution: in.MonthlyContribution,
		MonthlyRate:         rate,
		Months:              in.Years * 12,
	}
	if err := pi.Validate(); err != nil {
		return core.Money{}, err
	}
	return s.projections.FutureValue(pi), nil
}

func (s *LedgerService) snapshot(ctx context.Context, accountID string) (core.Ledger, error) {
	l, err := s.store.Snapshot(ctx, accountID)
	if err != nil {
		return core.Ledger{}, fmt.Errorf("snapshot ledger: %w", err)
	}
	l.At = s.now().UTC()
	return l, nil
}

// announce publishes tx to the settlement system. Failures are logged and
// swallowed: the transaction is already committed and the settlement
// worker re-announces stale pending transactions.
func (s *LedgerService) announce(ctx context.Context, tx core.Transaction) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping announcement",
			log.FieldTransactionID, tx.ID)
		return
	}
	if err := s.publisher.PublishPending(ctx, amqp.NewPendingTransactionMessage(tx)); err != nil {
		s.events.LogError(ctx, "Failed to announce pending transaction", err, log.ComponentAMQP, log.OpCreate,
			log.NewFields().WithTransaction(tx.ID, tx.InvestmentID, string(tx.Type), string(tx.Status), tx.Amount.String(), tx.Period))
	}
}

// newTransaction builds a pending transaction without ID or timestamp;
// stamp assigns both once the write is serialized.
func newTransaction(accountID, childID string, txType core.TransactionType, amount core.Money) core.Transaction {
	return core.Transaction{
		AccountID: accountID,
		ChildID:   childID,
		Amount:    amount,
		Type:      txType,
		Status:    core.TxPending,
	}
}

// stamp sets CreatedAt and the ULID id of tx. Call it inside store.Update,
// where writers are serialized, so that (created_at, id) order matches
// commit order and a paging cursor never has rows appear behind it.
func (s *LedgerService) stamp(tx *core.Transaction) {
	tx.CreatedAt = s.now().UTC()
	tx.ID = newTransactionID(tx.CreatedAt)
}

// newTransactionID returns a ULID so that ids sort by creation time.
func newTransactionID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}

func requireAccount(accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return core.Validationf("account", "account id is required")
	}
	return nil
}

// notFound translates ledger.ErrNotFound into a NotFoundError for entity.
// Other errors are wrapped as infrastructure failures.
func notFound(err error, entity, id string) error {
	if errors.Is(err, ledger.ErrNotFound) {
		return &core.NotFoundError{Entity: entity, ID: id}
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}

package core

import (
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	OneTime   InvestmentType = "one_time"
	Recurring InvestmentType = "recurring"
)

const (
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

const (
	InvestmentActive    InvestmentStatus = "active"
	InvestmentPaused    InvestmentStatus = "paused"
	InvestmentCompleted InvestmentStatus = "completed"
	InvestmentCancelled InvestmentStatus = "cancelled"
)

const (
	TxInvestment TransactionType = "investment"
	TxWithdrawal TransactionType = "withdrawal"
	TxFee        TransactionType = "fee"
	TxInterest   TransactionType = "interest"
	TxRefund     TransactionType = "refund"
)

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
	TxCancelled TransactionStatus = "cancelled"
)

// OneTimePeriod is the only scheduled period of a one_time investment.
const OneTimePeriod = "once"

const maxNameLength = 100

type (
	InvestmentType    string
	Frequency         string
	InvestmentStatus  string
	TransactionType   string
	TransactionStatus string

	Date struct {
		time.Time
	}

	// Child is a beneficiary with a savings goal. Balance and progress are
	// never stored here: they are derived from the ledger.
	Child struct {
		ID           string
		AccountID    string
		Name         string
		DateOfBirth  Date
		TargetAmount Money
		UnlockAge    int
		ColorTheme   string // display-only, carried through untouched
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// Investment is a contribution plan funding a child's goal.
	Investment struct {
		ID               string
		AccountID        string
		ChildID          string
		Amount           Money
		Type             InvestmentType
		Frequency        Frequency // empty iff Type == OneTime
		StartDate        Date
		EndDate          Date // optional
		Status           InvestmentStatus
		TotalContributed Money // cached sum of completed contributions
		// Pauses lists every paused interval, oldest first. Only the last
		// one may still be open.
		Pauses    []PauseWindow
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// PauseWindow is the half-open day range [From, To) during which an
	// investment was paused. To is empty while the pause is ongoing.
	PauseWindow struct {
		From Date
		To   Date
	}

	// Transaction is an append-only money movement. Amount is a magnitude;
	// the sign comes from Type.
	Transaction struct {
		ID           string
		AccountID    string
		ChildID      string
		InvestmentID string // empty for manual transfers
		Amount       Money
		Type         TransactionType
		Status       TransactionStatus
		Period       string // scheduled-period key, empty for manual transfers
		Description  string
		CreatedAt    time.Time
		SettledAt    time.Time
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// IsEmpty returns true if the date is zero (optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String formats the date as YYYY-MM-DD, or "" when empty.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// YearsBetween returns the number of whole years from d to t.
func (d Date) YearsBetween(t time.Time) int {
	t = t.UTC()
	years := t.Year() - d.Year()
	if t.Month() < d.Month() || (t.Month() == d.Month() && t.Day() < d.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// BirthDateForAge approximates a date of birth for a child whose age is
// known but whose birthday is not: the birthday is taken to be today.
func BirthDateForAge(age int, now time.Time) Date {
	today := DateOf(now)
	return Date{Time: today.AddDate(-age, 0, 0)}
}

// Age returns the child's age in whole years at now.
func (c Child) Age(now time.Time) int {
	return c.DateOfBirth.YearsBetween(now)
}

// YearsUntilUnlock is max(0, unlock age - age).
func (c Child) YearsUntilUnlock(now time.Time) int {
	years := c.UnlockAge - c.Age(now)
	if years < 0 {
		return 0
	}
	return years
}

func (c Child) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("name", ErrEmptyName)
	}
	if utf8.RuneCountInString(c.Name) > maxNameLength {
		return Validationf("name", "too long (max %d characters)", maxNameLength)
	}
	if err := c.TargetAmount.Validate(); err != nil {
		return NewValidationError("target_amount", err)
	}
	if err := c.DateOfBirth.Validate(); err != nil {
		return NewValidationError("date_of_birth", err)
	}
	if c.UnlockAge <= 0 {
		return Validationf("unlock_age", "must be positive")
	}
	return nil
}

func (f Frequency) IsValid() bool {
	switch f {
	case Weekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

func (t InvestmentType) IsValid() bool {
	return t == OneTime || t == Recurring
}

func (inv Investment) IsRecurring() bool {
	return inv.Type == Recurring
}

// Validate checks the plan's own invariants. Checks that need the owning
// child (start date vs. creation date) are done by the caller.
func (inv Investment) Validate() error {
	if err := inv.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	if !inv.Type.IsValid() {
		return Validationf("investment_type", "must be %q or %q", OneTime, Recurring)
	}
	switch inv.Type {
	case Recurring:
		if inv.Frequency == "" {
			return NewValidationError("frequency", ErrMissingFrequency)
		}
		if !inv.Frequency.IsValid() {
			return NewValidationError("frequency", ErrInvalidFrequency)
		}
	case OneTime:
		if inv.Frequency != "" {
			return Validationf("frequency", "must be empty for one_time investments")
		}
	}
	if err := inv.StartDate.Validate(); err != nil {
		return NewValidationError("start_date", err)
	}
	if !inv.EndDate.IsEmpty() {
		if err := inv.EndDate.Validate(); err != nil {
			return NewValidationError("end_date", err)
		}
		if inv.EndDate.Before(inv.StartDate.Time) {
			return Validationf("end_date", "must not be before start date")
		}
	}
	return nil
}

// CoversDate reports whether date lies inside [StartDate, EndDate].
func (inv Investment) CoversDate(date Date) error {
	if date.Before(inv.StartDate.Time) {
		return Validationf("scheduled_date", "%s is before start date %s", date, inv.StartDate)
	}
	if !inv.EndDate.IsEmpty() && date.After(inv.EndDate.Time) {
		return Validationf("scheduled_date", "%s is after end date %s", date, inv.EndDate)
	}
	if inv.PausedOn(date) {
		return Validationf("scheduled_date", "%s falls inside a pause", date)
	}
	return nil
}

// Contains reports whether date lies in [From, To).
func (w PauseWindow) Contains(date Date) bool {
	if date.Before(w.From.Time) {
		return false
	}
	return w.To.IsEmpty() || date.Before(w.To.Time)
}

// PausedOn reports whether the plan was paused on date. Contributions due
// on such a day are skipped, not deferred.
func (inv Investment) PausedOn(date Date) bool {
	for _, w := range inv.Pauses {
		if w.Contains(date) {
			return true
		}
	}
	return false
}

var investmentTransitions = map[InvestmentStatus][]InvestmentStatus{
	InvestmentActive: {InvestmentPaused, InvestmentCompleted, InvestmentCancelled},
	InvestmentPaused: {InvestmentActive, InvestmentCancelled},
}

// CanTransitionTo reports whether the state machine allows s -> next.
// Completed and cancelled are terminal.
func (s InvestmentStatus) CanTransitionTo(next InvestmentStatus) bool {
	for _, allowed := range investmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s InvestmentStatus) IsTerminal() bool {
	return s == InvestmentCompleted || s == InvestmentCancelled
}

// Transition returns a copy of inv moved to next, or an InvalidStateError.
func (inv Investment) Transition(next InvestmentStatus, action string, at time.Time) (Investment, error) {
	if !inv.Status.CanTransitionTo(next) {
		return inv, &InvalidStateError{Entity: "investment", ID: inv.ID, State: string(inv.Status), Action: action}
	}
	day := DateOf(at)
	switch {
	case next == InvestmentPaused:
		inv.Pauses = append(slices.Clone(inv.Pauses), PauseWindow{From: day})
	case inv.Status == InvestmentPaused && len(inv.Pauses) > 0:
		inv.Pauses = slices.Clone(inv.Pauses)
		inv.Pauses[len(inv.Pauses)-1].To = day
	}
	inv.Status = next
	inv.UpdatedAt = at
	return inv, nil
}

func (t TransactionType) IsValid() bool {
	switch t {
	case TxInvestment, TxWithdrawal, TxFee, TxInterest, TxRefund:
		return true
	}
	return false
}

// IsCredit reports whether the type adds to the balance.
func (t TransactionType) IsCredit() bool {
	return t == TxInvestment || t == TxInterest || t == TxRefund
}

// IsDebit reports whether the type reduces the balance.
func (t TransactionType) IsDebit() bool {
	return t == TxWithdrawal || t == TxFee
}

func (s TransactionStatus) IsTerminal() bool {
	return s != TxPending
}

// SignedAmount is +Amount for credits and -Amount for debits.
func (tx Transaction) SignedAmount() Money {
	if tx.Type.IsDebit() {
		return tx.Amount.Neg()
	}
	return tx.Amount
}

func (tx Transaction) Validate() error {
	if err := tx.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	if !tx.Type.IsValid() {
		return Validationf("transaction_type", "unknown type %q", tx.Type)
	}
	if tx.ChildID == "" {
		return Validationf("child", "required")
	}
	if utf8.RuneCountInString(tx.Description) > 200 {
		return Validationf("description", "too long (max 200 characters)")
	}
	return nil
}

// Settle moves a pending transaction to a terminal status. Only completed,
// failed and cancelled are accepted outcomes.
func (tx Transaction) Settle(outcome TransactionStatus, at time.Time) (Transaction, error) {
	if tx.Status != TxPending {
		return tx, &InvalidStateError{Entity: "transaction", ID: tx.ID, State: string(tx.Status), Action: "settle"}
	}
	switch outcome {
	case TxCompleted, TxFailed, TxCancelled:
	default:
		return tx, Validationf("outcome", "must be %q, %q or %q", TxCompleted, TxFailed, TxCancelled)
	}
	tx.Status = outcome
	tx.SettledAt = at
	return tx, nil
}

package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Ledger is a point-in-time copy of one account's children, investments
// and transactions. Everything in this file is a pure function of it.
type Ledger struct {
	Children     []Child
	Investments  []Investment
	Transactions []Transaction
	At           time.Time
}

// Percent is a signed percentage with two decimal places, encoded in JSON
// as a number.
type Percent struct {
	d decimal.Decimal
}

func NewPercent(d decimal.Decimal) Percent {
	return Percent{d: d.RoundBank(2)}
}

func (p Percent) Decimal() decimal.Decimal { return p.d }
func (p Percent) String() string           { return p.d.StringFixed(2) }

func (p Percent) Float64() float64 {
	f, _ := p.d.Float64()
	return f
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Percent) UnmarshalJSON(data []byte) error {
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("invalid percent %q: %w", data, err)
	}
	*p = NewPercent(d)
	return nil
}

// ChildBalance sums the signed amounts of the child's completed
// transactions.
func ChildBalance(childID string, txs []Transaction) Money {
	var balance Money
	for _, tx := range txs {
		if tx.ChildID == childID && tx.Status == TxCompleted {
			balance = balance.Add(tx.SignedAmount())
		}
	}
	return balance
}

// PendingDebits sums the child's pending withdrawals and fees.
func PendingDebits(childID string, txs []Transaction) Money {
	var total Money
	for _, tx := range txs {
		if tx.ChildID == childID && tx.Status == TxPending && tx.Type.IsDebit() {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// ContributedTotal sums the completed contributions of one investment.
func ContributedTotal(investmentID string, txs []Transaction) Money {
	var total Money
	for _, tx := range txs {
		if tx.InvestmentID == investmentID && tx.Type == TxInvestment && tx.Status == TxCompleted {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// ProgressPercentage is balance/target*100 clamped to [0, 100].
func ProgressPercentage(balance, target Money) Percent {
	if !target.IsPositive() || !balance.IsPositive() {
		return Percent{}
	}
	p := balance.Decimal().Div(target.Decimal()).Mul(hundred)
	if p.GreaterThan(hundred) {
		p = hundred
	}
	return NewPercent(p)
}

// ProjectionSettings carries the configurable inputs of child projections.
type ProjectionSettings struct {
	MonthlyRate         decimal.Decimal
	DefaultContribution Money
}

// ChildProfile is a child plus every value derived from the ledger.
type ChildProfile struct {
	Child
	Age                 int
	CurrentBalance      Money
	ProgressPercentage  Percent
	ProjectedValueAt18  Money
	YearsUntilUnlock    int
	MonthlyContribution Money
	InvestmentCount     int
}

// BuildChildProfile derives the profile of c from l.
func BuildChildProfile(c Child, l Ledger, settings ProjectionSettings) ChildProfile {
	var invs []Investment
	for _, inv := range l.Investments {
		if inv.ChildID == c.ID {
			invs = append(invs, inv)
		}
	}
	balance := ChildBalance(c.ID, l.Transactions)
	years := c.YearsUntilUnlock(l.At)
	monthly := PlannedMonthlyContribution(invs, settings.DefaultContribution)

	projected := balance
	if years > 0 {
		projected = FutureValue(ProjectionInput{
			Principal:           balance,
			MonthlyContribution: monthly,
			MonthlyRate:         settings.MonthlyRate,
			Months:              years * 12,
		})
	}

	return ChildProfile{
		Child:               c,
		Age:                 c.Age(l.At),
		CurrentBalance:      balance,
		ProgressPercentage:  ProgressPercentage(balance, c.TargetAmount),
		ProjectedValueAt18:  projected,
		YearsUntilUnlock:    years,
		MonthlyContribution: monthly,
		InvestmentCount:     len(invs),
	}
}

// DashboardStats summarizes one account.
type DashboardStats struct {
	TotalSavings     Money
	TotalChildren    int
	TotalInvestments int
	MonthlyGrowth    Money
	ActiveContracts  int
	PercentageChange Percent
}

// ComputeDashboardStats derives the dashboard summary of l. The current
// month is the UTC calendar month of l.At.
func ComputeDashboardStats(l Ledger) DashboardStats {
	stats := DashboardStats{
		TotalChildren:    len(l.Children),
		TotalInvestments: len(l.Investments),
	}
	for _, c := range l.Children {
		stats.TotalSavings = stats.TotalSavings.Add(ChildBalance(c.ID, l.Transactions))
	}
	for _, inv := range l.Investments {
		if inv.Status == InvestmentActive {
			stats.ActiveContracts++
		}
	}

	monthStart := monthStart(l.At)
	monthEnd := monthStart.AddDate(0, 1, 0)
	for _, tx := range l.Transactions {
		if tx.Type != TxInvestment || tx.Status != TxCompleted {
			continue
		}
		created := tx.CreatedAt.UTC()
		if !created.Before(monthStart) && created.Before(monthEnd) {
			stats.MonthlyGrowth = stats.MonthlyGrowth.Add(tx.Amount)
		}
	}

	previous := stats.TotalSavings.Sub(stats.MonthlyGrowth)
	if previous.IsPositive() {
		stats.PercentageChange = NewPercent(stats.MonthlyGrowth.Decimal().Div(previous.Decimal()).Mul(hundred))
	}
	return stats
}

// StatsPeriod is a trailing window of calendar months, current included.
type StatsPeriod string

const (
	Period1M StatsPeriod = "1m"
	Period3M StatsPeriod = "3m"
	Period6M StatsPeriod = "6m"
	Period1Y StatsPeriod = "1y"
)

// ParseStatsPeriod parses a period name; empty means 6m.
func ParseStatsPeriod(s string) (StatsPeriod, error) {
	switch p := StatsPeriod(s); p {
	case "":
		return Period6M, nil
	case Period1M, Period3M, Period6M, Period1Y:
		return p, nil
	}
	return "", Validationf("period", "must be one of 1m, 3m, 6m, 1y")
}

func (p StatsPeriod) Months() int {
	switch p {
	case Period1M:
		return 1
	case Period3M:
		return 3
	case Period1Y:
		return 12
	default:
		return 6
	}
}

// MonthBucket holds the completed movements of one calendar month.
type MonthBucket struct {
	Year          int
	Month         int // 1-12
	Contributions Money
	Withdrawals   Money
	Fees          Money
	Other         Money // interest and refunds
	Net           Money
	Balance       Money // closing balance at month end
}

// TransactionStats buckets the completed transactions of l into the
// trailing months of period, oldest first.
func TransactionStats(l Ledger, period StatsPeriod) []MonthBucket {
	n := period.Months()
	first := monthStart(l.At).AddDate(0, -(n - 1), 0)
	buckets := make([]MonthBucket, n)
	for i := range buckets {
		m := first.AddDate(0, i, 0)
		buckets[i].Year = m.Year()
		buckets[i].Month = int(m.Month())
	}

	var opening Money
	for _, tx := range l.Transactions {
		if tx.Status != TxCompleted {
			continue
		}
		created := tx.CreatedAt.UTC()
		if created.Before(first) {
			opening = opening.Add(tx.SignedAmount())
			continue
		}
		i := monthsBetween(first, created)
		if i >= n {
			continue
		}
		b := &buckets[i]
		switch tx.Type {
		case TxInvestment:
			b.Contributions = b.Contributions.Add(tx.Amount)
		case TxWithdrawal:
			b.Withdrawals = b.Withdrawals.Add(tx.Amount)
		case TxFee:
			b.Fees = b.Fees.Add(tx.Amount)
		default:
			b.Other = b.Other.Add(tx.Amount)
		}
		b.Net = b.Net.Add(tx.SignedAmount())
	}

	running := opening
	for i := range buckets {
		running = running.Add(buckets[i].Net)
		buckets[i].Balance = running
	}
	return buckets
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// StatementLine is one child's completed activity over a calendar year.
type StatementLine struct {
	ChildID       string
	ChildName     string
	Opening       Money
	Contributions Money
	Withdrawals   Money
	Fees          Money
	Interest      Money
	Refunds       Money
	Closing       Money
}

func (s *StatementLine) add(tx Transaction) {
	switch tx.Type {
	case TxInvestment:
		s.Contributions = s.Contributions.Add(tx.Amount)
	case TxWithdrawal:
		s.Withdrawals = s.Withdrawals.Add(tx.Amount)
	case TxFee:
		s.Fees = s.Fees.Add(tx.Amount)
	case TxInterest:
		s.Interest = s.Interest.Add(tx.Amount)
	case TxRefund:
		s.Refunds = s.Refunds.Add(tx.Amount)
	}
	s.Closing = s.Closing.Add(tx.SignedAmount())
}

// AnnualStatement is the yearly account statement: one line per child and
// their sum. Only completed transactions count, by UTC creation year.
type AnnualStatement struct {
	Year   int
	Lines  []StatementLine
	Totals StatementLine
}

// BuildAnnualStatement derives the statement of year from l. Lines follow
// the order of l.Children.
func BuildAnnualStatement(l Ledger, year int) AnnualStatement {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	st := AnnualStatement{Year: year, Lines: make([]StatementLine, len(l.Children))}
	index := make(map[string]int, len(l.Children))
	for i, c := range l.Children {
		st.Lines[i] = StatementLine{ChildID: c.ID, ChildName: c.Name}
		index[c.ID] = i
	}

	for _, tx := range l.Transactions {
		i, ok := index[tx.ChildID]
		if !ok || tx.Status != TxCompleted {
			continue
		}
		line := &st.Lines[i]
		created := tx.CreatedAt.UTC()
		switch {
		case created.Before(start):
			line.Opening = line.Opening.Add(tx.SignedAmount())
			line.Closing = line.Closing.Add(tx.SignedAmount())
		case created.Before(end):
			line.add(tx)
		}
	}

	st.Totals.ChildName = "Total"
	for _, line := range st.Lines {
		st.Totals.Opening = st.Totals.Opening.Add(line.Opening)
		st.Totals.Contributions = st.Totals.Contributions.Add(line.Contributions)
		st.Totals.Withdrawals = st.Totals.Withdrawals.Add(line.Withdrawals)
		st.Totals.Fees = st.Totals.Fees.Add(line.Fees)
		st.Totals.Interest = st.Totals.Interest.Add(line.Interest)
		st.Totals.Refunds = st.Totals.Refunds.Add(line.Refunds)
		st.Totals.Closing = st.Totals.Closing.Add(line.Closing)
	}
	return st
}

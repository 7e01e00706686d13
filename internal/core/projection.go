package core

import (
	"github.com/shopspring/decimal"
)

// DefaultMonthlyRate is 6% nominal annual growth compounded monthly.
var DefaultMonthlyRate = decimal.RequireFromString("0.005")

// MaxRatePlaces bounds the precision of a monthly rate. Exact compounding
// grows the intermediate value by this many digits per month.
const MaxRatePlaces = 8

var maxMonthlyRate = decimal.NewFromInt(1)

// ProjectionInput holds every input of a compound-growth projection.
// Equal inputs always produce equal outputs.
type ProjectionInput struct {
	Principal           Money
	MonthlyContribution Money
	MonthlyRate         decimal.Decimal
	Months              int
}

func (in ProjectionInput) Validate() error {
	if in.Principal.IsNegative() {
		return Validationf("principal", "must not be negative")
	}
	if in.MonthlyContribution.IsNegative() {
		return Validationf("amount", "must not be negative")
	}
	if in.MonthlyRate.IsNegative() || in.MonthlyRate.GreaterThan(maxMonthlyRate) {
		return Validationf("rate", "must be between 0 and %s", maxMonthlyRate)
	}
	if !in.MonthlyRate.Equal(in.MonthlyRate.Truncate(MaxRatePlaces)) {
		return Validationf("rate", "must have at most %d decimal places", MaxRatePlaces)
	}
	if in.Months < 0 {
		return Validationf("months", "must not be negative")
	}
	return nil
}

// FutureValue compounds the contribution once per month, contribution first:
//
//	fv = (fv + contribution) * (1 + rate)
//
// starting from the principal. Intermediate values keep full precision; only
// the result is rounded, half-even, to cents. Rate digits past MaxRatePlaces
// are dropped.
func FutureValue(in ProjectionInput) Money {
	fv := in.Principal.Decimal()
	c := in.MonthlyContribution.Decimal()
	growth := decimal.NewFromInt(1).Add(in.MonthlyRate.Truncate(MaxRatePlaces))
	for i := 0; i < in.Months; i++ {
		fv = fv.Add(c).Mul(growth)
	}
	return Money{d: fv.RoundBank(moneyPlaces)}
}

// MonthlyEquivalent converts a recurring contribution to its per-month
// amount, rounded to cents.
func MonthlyEquivalent(amount Money, f Frequency) Money {
	d := amount.Decimal()
	switch f {
	case Weekly:
		d = d.Mul(decimal.NewFromInt(52)).Div(decimal.NewFromInt(12))
	case Quarterly:
		d = d.Div(decimal.NewFromInt(3))
	case Yearly:
		d = d.Div(decimal.NewFromInt(12))
	}
	return NewMoney(d)
}

// PlannedMonthlyContribution sums the monthly equivalents of the active
// recurring investments in invs, or returns fallback when there are none.
func PlannedMonthlyContribution(invs []Investment, fallback Money) Money {
	var total Money
	found := false
	for _, inv := range invs {
		if inv.Status != InvestmentActive || !inv.IsRecurring() {
			continue
		}
		total = total.Add(MonthlyEquivalent(inv.Amount, inv.Frequency))
		found = true
	}
	if !found {
		return fallback
	}
	return total
}

// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for contribution schedules.
// Each frequency (weekly, monthly, quarterly, yearly) has its own strategy
// that knows how to step due dates and how to name the period a date
// falls into.

package services

import (
	"fmt"
	"time"

	"babywallet/internal/core"
)

// Schedule is the strategy interface for a recurring contribution frequency.
type Schedule interface {
	// DueDate returns the n-th due date counted from the start date (n=0 is
	// the start date itself). Dates are computed from the anchor rather than
	// from the previous due date so that month-end clamping never drifts.
	DueDate(start core.Date, n int) core.Date
	// PeriodKey names the scheduling period that date belongs to. Two dates
	// share a key iff they would be the same contribution.
	PeriodKey(start, date core.Date) string
}

// WeeklySchedule buckets dates into 7-day windows aligned to the start date.
type WeeklySchedule struct{}

func (WeeklySchedule) DueDate(start core.Date, n int) core.Date {
	return core.Date{Time: start.AddDate(0, 0, 7*n)}
}

// PeriodKey is the first day of the 7-day window containing date.
func (WeeklySchedule) PeriodKey(start, date core.Date) string {
	days := int(date.Sub(start.Time).Hours() / 24)
	weeks := days / 7
	if days < 0 && days%7 != 0 {
		weeks--
	}
	return start.AddDate(0, 0, 7*weeks).Format("2006-01-02")
}

// MonthlySchedule steps whole months, clamping to the last day of short months.
type MonthlySchedule struct{}

func (MonthlySchedule) DueDate(start core.Date, n int) core.Date {
	return addMonthsClamped(start, n)
}

func (MonthlySchedule) PeriodKey(_, date core.Date) string {
	return date.Format("2006-01")
}

// QuarterlySchedule steps three months at a time; periods are calendar quarters.
type QuarterlySchedule struct{}

func (QuarterlySchedule) DueDate(start core.Date, n int) core.Date {
	return addMonthsClamped(start, 3*n)
}

func (QuarterlySchedule) PeriodKey(_, date core.Date) string {
	return fmt.Sprintf("%d-Q%d", date.Year(), (int(date.Month())-1)/3+1)
}

// YearlySchedule steps whole years; Feb 29 falls back to Feb 28.
type YearlySchedule struct{}

func (YearlySchedule) DueDate(start core.Date, n int) core.Date {
	return addMonthsClamped(start, 12*n)
}

func (YearlySchedule) PeriodKey(_, date core.Date) string {
	return fmt.Sprintf("%d", date.Year())
}

// addMonthsClamped adds months to d keeping its day of month, clamped to
// the target month's length (Jan 31 + 1 month = Feb 28).
func addMonthsClamped(d core.Date, months int) core.Date {
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > lastDay {
		day = lastDay
	}
	return core.NewDate(first.Year(), int(first.Month()), day)
}

// schedules maps frequencies to their strategies.
var schedules = map[core.Frequency]Schedule{
	core.Weekly:    WeeklySchedule{},
	core.Monthly:   MonthlySchedule{},
	core.Quarterly: QuarterlySchedule{},
	core.Yearly:    YearlySchedule{},
}

// GetSchedule returns the strategy for a frequency.
func GetSchedule(frequency core.Frequency) (Schedule, error) {
	s, ok := schedules[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %q", frequency)
	}
	return s, nil
}

// PeriodFor returns the period key of a contribution scheduled on date.
// One-time investments have a single period.
func PeriodFor(inv core.Investment, date core.Date) (string, error) {
	if !inv.IsRecurring() {
		return core.OneTimePeriod, nil
	}
	s, err := GetSchedule(inv.Frequency)
	if err != nil {
		return "", err
	}
	return s.PeriodKey(inv.StartDate, date), nil
}

// DueDates lists every due date of inv up to and including through, bounded
// by the investment's end date. Dates that fall inside a pause are left out:
// a paused period is skipped, not owed.
func DueDates(inv core.Investment, through core.Date) ([]core.Date, error) {
	if through.Before(inv.StartDate.Time) {
		return nil, nil
	}
	if !inv.IsRecurring() {
		return []core.Date{inv.StartDate}, nil
	}
	s, err := GetSchedule(inv.Frequency)
	if err != nil {
		return nil, err
	}

	var dates []core.Date
	for n := 0; ; n++ {
		d := s.DueDate(inv.StartDate, n)
		if d.After(through.Time) {
			break
		}
		if !inv.EndDate.IsEmpty() && d.After(inv.EndDate.Time) {
			break
		}
		if inv.PausedOn(d) {
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}

package services

import (
	"testing"

	"babywallet/internal/core"
)

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		name   string
		start  core.Date
		months int
		want   string
	}{
		{"jan 31 to feb", core.NewDate(2026, 1, 31), 1, "2026-02-28"},
		{"jan 31 to mar keeps anchor day", core.NewDate(2026, 1, 31), 2, "2026-03-31"},
		{"leap year feb", core.NewDate(2028, 1, 31), 1, "2028-02-29"},
		{"leap day yearly", core.NewDate(2024, 2, 29), 12, "2025-02-28"},
		{"year rollover", core.NewDate(2026, 11, 15), 3, "2027-02-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := addMonthsClamped(tt.start, tt.months).String()
			if got != tt.want {
				t.Errorf("addMonthsClamped() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestScheduleDueDates(t *testing.T) {
	tests := []struct {
		name      string
		frequency core.Frequency
		start     core.Date
		n         int
		want      string
	}{
		{"weekly", core.Weekly, core.NewDate(2026, 1, 5), 2, "2026-01-19"},
		{"monthly clamps", core.Monthly, core.NewDate(2026, 1, 31), 1, "2026-02-28"},
		{"monthly recovers", core.Monthly, core.NewDate(2026, 1, 31), 2, "2026-03-31"},
		{"quarterly", core.Quarterly, core.NewDate(2026, 2, 15), 1, "2026-05-15"},
		{"yearly from leap day", core.Yearly, core.NewDate(2024, 2, 29), 1, "2025-02-28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := GetSchedule(tt.frequency)
			if err != nil {
				t.Fatalf("GetSchedule: %v", err)
			}
			if got := s.DueDate(tt.start, tt.n).String(); got != tt.want {
				t.Errorf("DueDate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPeriodKeys(t *testing.T) {
	start := core.NewDate(2026, 1, 5)
	tests := []struct {
		name      string
		frequency core.Frequency
		date      core.Date
		want      string
	}{
		{"weekly inside first window", core.Weekly, core.NewDate(2026, 1, 11), "2026-01-05"},
		{"weekly second window", core.Weekly, core.NewDate(2026, 1, 12), "2026-01-12"},
		{"monthly", core.Monthly, core.NewDate(2026, 3, 17), "2026-03"},
		{"quarterly q4", core.Quarterly, core.NewDate(2026, 11, 2), "2026-Q4"},
		{"quarterly q1", core.Quarterly, core.NewDate(2027, 3, 31), "2027-Q1"},
		{"yearly", core.Yearly, core.NewDate(2026, 12, 31), "2026"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := GetSchedule(tt.frequency)
			if err != nil {
				t.Fatalf("GetSchedule: %v", err)
			}
			if got := s.PeriodKey(start, tt.date); got != tt.want {
				t.Errorf("PeriodKey() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPeriodForOneTime(t *testing.T) {
	inv := core.Investment{Type: core.OneTime, StartDate: core.NewDate(2026, 1, 5)}
	got, err := PeriodFor(inv, core.NewDate(2026, 6, 1))
	if err != nil {
		t.Fatalf("PeriodFor: %v", err)
	}
	if got != core.OneTimePeriod {
		t.Errorf("PeriodFor() = %s, want %s", got, core.OneTimePeriod)
	}
}

func TestDueDates(t *testing.T) {
	inv := core.Investment{
		Type:      core.Recurring,
		Frequency: core.Monthly,
		StartDate: core.NewDate(2026, 1, 31),
		EndDate:   core.NewDate(2026, 4, 30),
	}

	got, err := DueDates(inv, core.NewDate(2026, 12, 1))
	if err != nil {
		t.Fatalf("DueDates: %v", err)
	}
	want := []string{"2026-01-31", "2026-02-28", "2026-03-31", "2026-04-30"}
	if len(got) != len(want) {
		t.Fatalf("expected %d dates, got %v", len(want), got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("date %d = %s, want %s", i, got[i], want[i])
		}
	}

	if got, _ := DueDates(inv, core.NewDate(2025, 12, 31)); len(got) != 0 {
		t.Errorf("expected no dates before start, got %v", got)
	}

	inv.Pauses = []core.PauseWindow{{From: core.NewDate(2026, 2, 10), To: core.NewDate(2026, 4, 1)}}
	got, _ = DueDates(inv, core.NewDate(2026, 12, 1))
	if len(got) != 2 || got[0].String() != "2026-01-31" || got[1].String() != "2026-04-30" {
		t.Errorf("paused dates should be skipped, got %v", got)
	}

	oneTime := core.Investment{Type: core.OneTime, StartDate: core.NewDate(2026, 1, 5)}
	if got, _ := DueDates(oneTime, core.NewDate(2026, 12, 1)); len(got) != 1 {
		t.Errorf("one_time should have exactly one due date, got %v", got)
	}

	if _, err := GetSchedule("daily"); err == nil {
		t.Errorf("expected error for unknown frequency")
	}
}

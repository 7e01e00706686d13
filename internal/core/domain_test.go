package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestChildAge(t *testing.T) {
	c := Child{DateOfBirth: NewDate(2020, 10, 20), UnlockAge: 18}
	if got := c.Age(time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)); got != 5 {
		t.Fatalf("day before birthday: expected 5, got %d", got)
	}
	if got := c.Age(time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)); got != 6 {
		t.Fatalf("on birthday: expected 6, got %d", got)
	}
	if got := c.YearsUntilUnlock(time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)); got != 12 {
		t.Fatalf("expected 12 years until unlock, got %d", got)
	}

	old := Child{DateOfBirth: NewDate(2000, 1, 1), UnlockAge: 18}
	if got := old.YearsUntilUnlock(time.Now()); got != 0 {
		t.Fatalf("expected 0 years for an adult, got %d", got)
	}

	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	born := Child{DateOfBirth: BirthDateForAge(5, now)}
	if got := born.Age(now); got != 5 {
		t.Fatalf("expected derived birth date to give age 5, got %d", got)
	}
}

func TestChildValidate(t *testing.T) {
	good := Child{
		Name:         "Mia",
		DateOfBirth:  NewDate(2020, 1, 1),
		TargetAmount: MustParseMoney("10000"),
		UnlockAge:    18,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []func(c *Child){
		func(c *Child) { c.Name = "  " },
		func(c *Child) { c.TargetAmount = Money{} },
		func(c *Child) { c.TargetAmount = MustParseMoney("1").Neg() },
		func(c *Child) { c.DateOfBirth = Date{} },
		func(c *Child) { c.UnlockAge = 0 },
	}
	for i, mutate := range bads {
		c := good
		mutate(&c)
		err := c.Validate()
		if !IsValidation(err) {
			t.Fatalf("case %d expected ValidationError, got %v", i, err)
		}
	}
}

func TestChildNameLengthCountsCharacters(t *testing.T) {
	c := Child{
		Name:         strings.Repeat("é", maxNameLength),
		DateOfBirth:  NewDate(2020, 1, 1),
		TargetAmount: MustParseMoney("10000"),
		UnlockAge:    18,
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("%d two-byte characters should be accepted, got %v", maxNameLength, err)
	}
	c.Name += "é"
	if err := c.Validate(); !IsValidation(err) {
		t.Fatalf("expected ValidationError past %d characters, got %v", maxNameLength, err)
	}
}

func TestInvestmentValidate(t *testing.T) {
	good := Investment{
		Amount:    MustParseMoney("100"),
		Type:      Recurring,
		Frequency: Monthly,
		StartDate: NewDate(2026, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(inv *Investment)
		target error
	}{
		{"recurring without frequency", func(inv *Investment) { inv.Frequency = "" }, ErrMissingFrequency},
		{"unknown frequency", func(inv *Investment) { inv.Frequency = "daily" }, ErrInvalidFrequency},
		{"zero amount", func(inv *Investment) { inv.Amount = Money{} }, ErrInvalidAmount},
		{"one_time with frequency", func(inv *Investment) { inv.Type = OneTime }, nil},
		{"unknown type", func(inv *Investment) { inv.Type = "monthly" }, nil},
		{"end before start", func(inv *Investment) { inv.EndDate = NewDate(2025, 12, 31) }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := good
			tc.mutate(&inv)
			err := inv.Validate()
			if !IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if tc.target != nil && !errors.Is(err, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, err)
			}
		})
	}
}

func TestInvestmentTransitions(t *testing.T) {
	cases := []struct {
		from, to InvestmentStatus
		ok       bool
	}{
		{InvestmentActive, InvestmentPaused, true},
		{InvestmentPaused, InvestmentActive, true},
		{InvestmentActive, InvestmentCompleted, true},
		{InvestmentActive, InvestmentCancelled, true},
		{InvestmentPaused, InvestmentCancelled, true},
		{InvestmentPaused, InvestmentCompleted, false},
		{InvestmentActive, InvestmentActive, false},
		{InvestmentCompleted, InvestmentActive, false},
		{InvestmentCancelled, InvestmentActive, false},
		{InvestmentCancelled, InvestmentPaused, false},
	}
	at := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	for _, tc := range cases {
		inv := Investment{ID: "inv", Status: tc.from}
		got, err := inv.Transition(tc.to, "move", at)
		if tc.ok {
			if err != nil || got.Status != tc.to || !got.UpdatedAt.Equal(at) {
				t.Fatalf("%s -> %s: expected ok, got %v (%s)", tc.from, tc.to, err, got.Status)
			}
			continue
		}
		if !IsInvalidState(err) {
			t.Fatalf("%s -> %s: expected InvalidStateError, got %v", tc.from, tc.to, err)
		}
		if got.Status != tc.from {
			t.Fatalf("%s -> %s: status changed on failure", tc.from, tc.to)
		}
	}
}

func TestTransactionSettle(t *testing.T) {
	at := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	tx := Transaction{ID: "t1", Amount: MustParseMoney("50"), Type: TxInvestment, Status: TxPending}

	done, err := tx.Settle(TxCompleted, at)
	if err != nil || done.Status != TxCompleted || !done.SettledAt.Equal(at) {
		t.Fatalf("expected completed, got %v (%s)", err, done.Status)
	}
	if _, err := done.Settle(TxFailed, at); !IsInvalidState(err) {
		t.Fatalf("expected InvalidStateError settling twice, got %v", err)
	}
	if _, err := tx.Settle(TxPending, at); !IsValidation(err) {
		t.Fatalf("expected ValidationError for pending outcome, got %v", err)
	} else if !strings.Contains(err.Error(), `"cancelled"`) {
		t.Errorf("error should list every accepted outcome: %v", err)
	}
	if got, err := tx.Settle(TxCancelled, at); err != nil || got.Status != TxCancelled {
		t.Fatalf("expected cancelled, got %v (%s)", err, got.Status)
	}
}

func TestTransitionRecordsPauseWindows(t *testing.T) {
	day := func(y, m, d int) time.Time { return time.Date(y, time.Month(m), d, 9, 30, 0, 0, time.UTC) }
	inv := Investment{ID: "inv", Status: InvestmentActive, StartDate: NewDate(2026, 10, 15)}

	paused, err := inv.Transition(InvestmentPaused, "pause", day(2026, 10, 20))
	if err != nil {
		t.Fatal(err)
	}
	if len(inv.Pauses) != 0 {
		t.Fatal("transition must not modify the original")
	}
	if !paused.PausedOn(NewDate(2027, 1, 15)) {
		t.Error("an open pause should cover later dates")
	}

	resumed, err := paused.Transition(InvestmentActive, "resume", day(2027, 4, 2))
	if err != nil {
		t.Fatal(err)
	}
	if !paused.Pauses[0].To.IsEmpty() {
		t.Fatal("resume must not modify the paused copy")
	}
	if len(resumed.Pauses) != 1 ||
		resumed.Pauses[0].From.String() != "2026-10-20" ||
		resumed.Pauses[0].To.String() != "2027-04-02" {
		t.Fatalf("pauses = %+v, want [2026-10-20, 2027-04-02)", resumed.Pauses)
	}

	cases := []struct {
		date   Date
		paused bool
	}{
		{NewDate(2026, 10, 15), false},
		{NewDate(2026, 10, 20), true},
		{NewDate(2027, 3, 15), true},
		{NewDate(2027, 4, 2), false},
		{NewDate(2027, 4, 15), false},
	}
	for _, tc := range cases {
		if got := resumed.PausedOn(tc.date); got != tc.paused {
			t.Errorf("PausedOn(%s) = %v, want %v", tc.date, got, tc.paused)
		}
	}
	if err := resumed.CoversDate(NewDate(2027, 1, 15)); !IsValidation(err) {
		t.Errorf("expected ValidationError inside a pause, got %v", err)
	}
}

func TestSignedAmount(t *testing.T) {
	amount := MustParseMoney("10")
	for _, typ := range []TransactionType{TxInvestment, TxInterest, TxRefund} {
		if got := (Transaction{Amount: amount, Type: typ}).SignedAmount(); !got.Equal(amount) {
			t.Fatalf("%s should be a credit, got %s", typ, got)
		}
	}
	for _, typ := range []TransactionType{TxWithdrawal, TxFee} {
		if got := (Transaction{Amount: amount, Type: typ}).SignedAmount(); !got.Equal(amount.Neg()) {
			t.Fatalf("%s should be a debit, got %s", typ, got)
		}
	}
}

func TestCoversDate(t *testing.T) {
	inv := Investment{StartDate: NewDate(2026, 1, 1), EndDate: NewDate(2026, 12, 31)}
	if err := inv.CoversDate(NewDate(2026, 6, 1)); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := inv.CoversDate(NewDate(2025, 12, 31)); !IsValidation(err) {
		t.Fatalf("expected ValidationError before start, got %v", err)
	}
	if err := inv.CoversDate(NewDate(2027, 1, 1)); !IsValidation(err) {
		t.Fatalf("expected ValidationError after end, got %v", err)
	}
	open := Investment{StartDate: NewDate(2026, 1, 1)}
	if err := open.CoversDate(NewDate(2040, 1, 1)); err != nil {
		t.Fatalf("expected open-ended plan to cover any later date, got %v", err)
	}
}

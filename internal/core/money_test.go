package core

import (
	"encoding/json"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{".5", "0.50", true},
		{"1.005", "1.01", true}, // half-up rounding
		{"12.344", "12.34", true},
		{" 2.50 ", "2.50", true},
		{"0", "0.00", true},
		{"-1", "", false},
		{"+1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := MustParseMoney("0.01").Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := MustParseMoney("0").Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := MustParseMoney("5").Neg().Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestMoneyArithmeticIsExact(t *testing.T) {
	var sum Money
	for i := 0; i < 10; i++ {
		sum = sum.Add(MustParseMoney("0.10"))
	}
	if !sum.Equal(MustParseMoney("1")) {
		t.Fatalf("expected 1.00, got %s", sum)
	}
	if got := MustParseMoney("10").Sub(MustParseMoney("12.5")); got.String() != "-2.50" {
		t.Fatalf("expected -2.50, got %s", got)
	}
	if got := MoneyFromCents(1234); got.String() != "12.34" || got.Cents() != 1234 {
		t.Fatalf("unexpected cents round trip: %s / %d", got, got.Cents())
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{MustParseMoney("50")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"amount":"50.00"}` {
		t.Fatalf("unexpected encoding: %s", b)
	}

	for _, in := range []string{`"12.5"`, `12.5`} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if m.String() != "12.50" {
			t.Fatalf("unmarshal %s: got %s", in, m)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`"twelve"`), &m); err == nil {
		t.Fatalf("expected error for non-numeric string")
	}
}

func TestMoneyScan(t *testing.T) {
	var m Money
	if err := m.Scan("99.99"); err != nil || m.String() != "99.99" {
		t.Fatalf("scan string: %s %v", m, err)
	}
	if err := m.Scan([]byte("1.5")); err != nil || m.String() != "1.50" {
		t.Fatalf("scan bytes: %s %v", m, err)
	}
	if err := m.Scan(int64(7)); err != nil || m.String() != "7.00" {
		t.Fatalf("scan int: %s %v", m, err)
	}
	if err := m.Scan(3.14); err == nil {
		t.Fatalf("expected error for float source")
	}
	v, err := MustParseMoney("3").Value()
	if err != nil || v != "3.00" {
		t.Fatalf("value: %v %v", v, err)
	}
}

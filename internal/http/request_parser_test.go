package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"babywallet/internal/core"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
		want    string
	}{
		{"valid", `{"name":"Mia"}`, false, "Mia"},
		{"empty body", ``, true, ""},
		{"malformed", `{"name":`, true, ""},
		{"unknown field", `{"name":"Mia","age":3}`, true, ""},
		{"trailing object", `{"name":"Mia"}{"name":"Leo"}`, true, ""},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/children", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var got payload
			err := DecodeJSON(w, r, &got)
			if tt.wantErr {
				var verr *core.ValidationError
				if !errors.As(err, &verr) || verr.Field != "body" {
					t.Fatalf("DecodeJSON() error = %v, want body validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeJSON() error = %v", err)
			}
			if got.Name != tt.want {
				t.Errorf("Name = %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestParseMoneyField(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"25", "25.00", false},
		{"12,345", "12.35", false},
		{" 0.5 ", "0.50", false},
		{"-3", "", true},
		{"abc", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMoneyField("amount", tt.input)
			if tt.wantErr {
				var verr *core.ValidationError
				if !errors.As(err, &verr) || verr.Field != "amount" {
					t.Fatalf("error = %v, want amount validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseOptionalMoney(t *testing.T) {
	got, err := ParseOptionalMoney("principal", "  ")
	if err != nil || !got.IsZero() {
		t.Errorf("blank = (%s, %v), want zero", got, err)
	}
	if _, err := ParseOptionalMoney("principal", "x"); !core.IsValidation(err) {
		t.Errorf("malformed amount error = %v", err)
	}
}

func TestParseDateField(t *testing.T) {
	d, err := ParseDateField("start_date", "2026-03-09")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2026-03-09" {
		t.Errorf("date = %s", d)
	}

	empty, err := ParseDateField("end_date", "")
	if err != nil || !empty.IsZero() {
		t.Errorf("empty = (%v, %v), want zero date", empty, err)
	}

	if _, err := ParseDateField("start_date", "09/03/2026"); !core.IsValidation(err) {
		t.Errorf("bad layout error = %v", err)
	}
}

func TestQueryInt(t *testing.T) {
	q := url.Values{"limit": {"20"}, "offset": {"-1"}, "years": {"ten"}}

	if n, err := QueryInt(q, "limit", 50); err != nil || n != 20 {
		t.Errorf("limit = (%d, %v)", n, err)
	}
	if n, err := QueryInt(q, "missing", 7); err != nil || n != 7 {
		t.Errorf("missing = (%d, %v), want default", n, err)
	}
	if _, err := QueryInt(q, "offset", 0); !core.IsValidation(err) {
		t.Errorf("negative error = %v", err)
	}
	if _, err := QueryInt(q, "years", 0); !core.IsValidation(err) {
		t.Errorf("non-numeric error = %v", err)
	}
}

func TestQueryDecimal(t *testing.T) {
	q := url.Values{"monthly_rate": {"0.004"}, "bad": {"4%"}}

	d, err := QueryDecimal(q, "monthly_rate")
	if err != nil || d == nil || d.String() != "0.004" {
		t.Errorf("monthly_rate = (%v, %v)", d, err)
	}
	if d, err := QueryDecimal(q, "absent"); err != nil || d != nil {
		t.Errorf("absent = (%v, %v), want nil", d, err)
	}
	if _, err := QueryDecimal(q, "bad"); !core.IsValidation(err) {
		t.Errorf("bad error = %v", err)
	}
}

func TestAccountID(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"present", "acct-1", "acct-1", false},
		{"trimmed", "  acct-2 ", "acct-2", false},
		{"missing", "", "", true},
		{"too long", strings.Repeat("a", maxAccountIDLen+1), "", true},
		{"control character", "acct\x01", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/children", nil)
			if tt.header != "" {
				r.Header.Set(headerAccountID, tt.header)
			}
			got, err := AccountID(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AccountID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("AccountID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Mia  ", "Mia"},
		{"Le\x00o", "Leo"},
		{"line\nbreak", "line\nbreak"},
		{"bell\x07", "bell"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.input); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

package walletctl

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("BABYWALLET_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	cmd := NewRootCommand(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestProjectCommand(t *testing.T) {
	out, err := run(t, "project", "--monthly", "100", "--years", "1", "--rate", "0")
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if !strings.Contains(out, "1200.00") {
		t.Errorf("output missing projected value:\n%s", out)
	}
}

func TestProjectCommandJSON(t *testing.T) {
	out, err := run(t, "project", "--json", "--principal", "50", "--monthly", "0", "--years", "2", "--rate", "0")
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	var got struct {
		ProjectedValue string `json:"projected_value"`
		MonthlyRate    string `json:"monthly_rate"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.ProjectedValue != "50.00" || got.MonthlyRate != "0" {
		t.Errorf("got %+v", got)
	}
}

func TestProjectCommandRejectsBadInput(t *testing.T) {
	tests := [][]string{
		{"project", "--monthly", "-5"},
		{"project", "--rate", "fast"},
		{"project", "--years", "500"},
	}
	for _, args := range tests {
		if _, err := run(t, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestAccountScopedCommandsRequireAccount(t *testing.T) {
	for _, name := range []string{"children", "stats"} {
		_, err := run(t, name)
		if err == nil || !strings.Contains(err.Error(), "--account") {
			t.Errorf("%s error = %v, want missing account", name, err)
		}
	}
}

func TestStatsCommandOnEmptyAccount(t *testing.T) {
	out, err := run(t, "stats", "--account", "acct-1", "--period", "3m")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Dashboard", "Monthly activity", "Total savings"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestContributeCommand(t *testing.T) {
	out, err := run(t, "contribute", "--as-of", "2026-10-15")
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if !strings.Contains(out, "Checked 0 investments") {
		t.Errorf("output = %q", out)
	}
}

func TestSettleCommandValidatesOutcome(t *testing.T) {
	if _, err := run(t, "settle", "01JTX", "--outcome", "pending", "--direct"); err == nil {
		t.Error("expected error for non-terminal outcome")
	}
	// Unknown transaction on an empty ledger.
	if _, err := run(t, "settle", "01JTX", "--direct"); err == nil {
		t.Error("expected error for unknown transaction")
	}
}

func TestTableRender(t *testing.T) {
	out := table{
		Headers: []string{"Month", "Net"},
		Rows:    [][]string{{"2026-10", "-12.00"}, {"2026-11", "100.00"}},
	}.render()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("lines = %d, want 6:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[3], "2026-10") || !strings.Contains(lines[3], "-12.00") {
		t.Errorf("first row = %q", lines[3])
	}
}

// Package google mirrors settled ledger transactions to a Google Sheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"babywallet/internal/core"
)

const defaultSheetName = "Ledger"

// Header is the first row of every ledger sheet.
var Header = []any{"Settled", "Created", "Transaction", "Account", "Child", "Investment", "Type", "Status", "Period", "Amount", "Description"}

type Config struct {
	SpreadsheetID string
	// SheetName is the base tab name; the settlement year is prefixed.
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

// New creates a Sheets client. Without extra options it authenticates with
// the service account credentials in cfg, falling back to
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = defaultSheetName
	}

	if len(opts) == 0 {
		creds, err := loadCredentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets export enabled", "component", "export", "sheet", sheet)
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: sheet}, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	if j := strings.TrimSpace(cfg.CredentialsJSON); j != "" {
		return []byte(j), nil
	}
	file := strings.TrimSpace(cfg.CredentialsFile)
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// AppendTransactions appends one row per transaction to the tab of its
// settlement year.
func (c *Client) AppendTransactions(ctx context.Context, txs []core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	for _, group := range groupByYear(txs) {
		sheet := yearPrefixedName(c.sheetBase, group.year)
		rng := fmt.Sprintf("%s!A:K", sheet)
		vr := &gsheet.ValueRange{Values: TransactionRows(group.txs)}
		_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("append to sheet %s: %w", sheet, err)
		}
	}
	return nil
}

// TransactionRows renders transactions as sheet rows. Amounts are signed
// decimal strings so that sheet sums equal ledger balances.
func TransactionRows(txs []core.Transaction) [][]any {
	rows := make([][]any, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, []any{
			formatTime(tx.SettledAt),
			formatTime(tx.CreatedAt),
			tx.ID,
			tx.AccountID,
			tx.ChildID,
			tx.InvestmentID,
			string(tx.Type),
			string(tx.Status),
			tx.Period,
			tx.SignedAmount().String(),
			tx.Description,
		})
	}
	return rows
}

type yearGroup struct {
	year int
	txs  []core.Transaction
}

func groupByYear(txs []core.Transaction) []yearGroup {
	byYear := map[int][]core.Transaction{}
	for _, tx := range txs {
		at := tx.SettledAt
		if at.IsZero() {
			at = tx.CreatedAt
		}
		y := at.UTC().Year()
		byYear[y] = append(byYear[y], tx)
	}
	groups := make([]yearGroup, 0, len(byYear))
	for y, g := range byYear {
		groups = append(groups, yearGroup{year: y, txs: g})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].year < groups[j].year })
	return groups
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

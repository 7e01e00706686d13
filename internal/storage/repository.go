package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"babywallet/internal/core"
	"babywallet/internal/ledger"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Timestamps are stored as fixed-width UTC text so that lexical order is
// chronological order.
const (
	timeLayout = "2006-01-02T15:04:05.000000000Z"
	dateLayout = "2006-01-02"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ ledger.Store = (*SQLiteRepository)(nil)

// DSN builds the connection string used for both the pool and migrations.
// Write transactions start IMMEDIATE so concurrent writers queue on the
// busy timeout instead of failing on lock upgrade.
func DSN(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SchemaVersion reports the applied migration version and whether the last
// migration was left half-applied. A database with no migrations reports 0.
func (r *SQLiteRepository) SchemaVersion(ctx context.Context) (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := r.db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Update runs fn inside one SQL transaction.
func (r *SQLiteRepository) Update(ctx context.Context, fn func(w ledger.Writer) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&writer{reader{tx}}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Snapshot reads the account's ledger inside a single transaction.
func (r *SQLiteRepository) Snapshot(ctx context.Context, accountID string) (core.Ledger, error) {
	var l core.Ledger
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return l, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	rd := reader{tx}
	if l.Children, err = rd.ListChildren(ctx, accountID); err != nil {
		return l, err
	}
	if l.Investments, err = rd.ListInvestments(ctx, ledger.InvestmentQuery{AccountID: accountID}); err != nil {
		return l, err
	}
	l.Transactions, err = rd.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE (?1 = '' OR account_id = ?1) ORDER BY created_at, id`, accountID)
	if err != nil {
		return l, err
	}
	return l, nil
}

func (r *SQLiteRepository) GetChild(ctx context.Context, accountID, id string) (core.Child, error) {
	return reader{r.db}.GetChild(ctx, accountID, id)
}

func (r *SQLiteRepository) ListChildren(ctx context.Context, accountID string) ([]core.Child, error) {
	return reader{r.db}.ListChildren(ctx, accountID)
}

func (r *SQLiteRepository) GetInvestment(ctx context.Context, accountID, id string) (core.Investment, error) {
	return reader{r.db}.GetInvestment(ctx, accountID, id)
}

func (r *SQLiteRepository) ListInvestments(ctx context.Context, q ledger.InvestmentQuery) ([]core.Investment, error) {
	return reader{r.db}.ListInvestments(ctx, q)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, accountID, id string) (core.Transaction, error) {
	return reader{r.db}.GetTransaction(ctx, accountID, id)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, q ledger.TransactionQuery) ([]core.Transaction, error) {
	return reader{r.db}.ListTransactions(ctx, q)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type reader struct{ q querier }

const childColumns = `id, account_id, name, date_of_birth, target_amount, unlock_age, color_theme, created_at, updated_at`

func (r reader) GetChild(ctx context.Context, accountID, id string) (core.Child, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+childColumns+` FROM children WHERE id = ?1 AND (?2 = '' OR account_id = ?2)`, id, accountID)
	c, err := scanChild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Child{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Child{}, fmt.Errorf("get child %s: %w", id, err)
	}
	return c, nil
}

func (r reader) ListChildren(ctx context.Context, accountID string) ([]core.Child, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+childColumns+` FROM children WHERE (?1 = '' OR account_id = ?1) ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var out []core.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const investmentColumns = `id, account_id, child_id, amount, investment_type, frequency, start_date, end_date, status,
	total_contributed, pauses, created_at, updated_at`

func (r reader) GetInvestment(ctx context.Context, accountID, id string) (core.Investment, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE id = ?1 AND (?2 = '' OR account_id = ?2)`, id, accountID)
	inv, err := scanInvestment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Investment{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Investment{}, fmt.Errorf("get investment %s: %w", id, err)
	}
	return inv, nil
}

func (r reader) ListInvestments(ctx context.Context, q ledger.InvestmentQuery) ([]core.Investment, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+investmentColumns+` FROM investments
		WHERE (?1 = '' OR account_id = ?1) AND (?2 = '' OR child_id = ?2) AND (?3 = '' OR status = ?3)
		ORDER BY created_at, id`, q.AccountID, q.ChildID, string(q.Status))
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	defer rows.Close()

	var out []core.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

const txColumns = `id, account_id, child_id, investment_id, amount, transaction_type, status, period, description,
	created_at, settled_at`

func (r reader) GetTransaction(ctx context.Context, accountID, id string) (core.Transaction, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = ?1 AND (?2 = '' OR account_id = ?2)`, id, accountID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (r reader) ListTransactions(ctx context.Context, q ledger.TransactionQuery) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, a ...any) {
		where = append(where, cond)
		args = append(args, a...)
	}
	if q.AccountID != ledger.AnyAccount {
		add("account_id = ?", q.AccountID)
	}
	if q.ChildID != "" {
		add("child_id = ?", q.ChildID)
	}
	if q.InvestmentID != "" {
		add("investment_id = ?", q.InvestmentID)
	}
	if q.Status != "" {
		add("status = ?", string(q.Status))
	}
	if !q.CreatedBefore.IsZero() {
		add("created_at < ?", formatTime(q.CreatedBefore))
	}
	if q.Before != "" {
		cursor, err := r.GetTransaction(ctx, q.AccountID, q.Before)
		if err != nil {
			return nil, err
		}
		at := formatTime(cursor.CreatedAt)
		add("(created_at < ? OR (created_at = ? AND id < ?))", at, at, cursor.ID)
	}

	query := `SELECT ` + txColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = -1
		}
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, limit, q.Offset)
	}
	return r.queryTransactions(ctx, query, args...)
}

func (r reader) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

type writer struct{ reader }

func (w *writer) InsertChild(ctx context.Context, c core.Child) error {
	_, err := w.q.ExecContext(ctx, `INSERT INTO children (`+childColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.AccountID, c.Name, formatDate(c.DateOfBirth), c.TargetAmount, c.UnlockAge, c.ColorTheme,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert child: %w", err)
	}
	return nil
}

func (w *writer) UpdateChild(ctx context.Context, c core.Child) error {
	res, err := w.q.ExecContext(ctx, `UPDATE children
		SET name = ?, date_of_birth = ?, target_amount = ?, unlock_age = ?, color_theme = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, formatDate(c.DateOfBirth), c.TargetAmount, c.UnlockAge, c.ColorTheme, formatTime(c.UpdatedAt), c.ID)
	if err != nil {
		return fmt.Errorf("update child: %w", err)
	}
	return expectOne(res)
}

func (w *writer) DeleteChild(ctx context.Context, accountID, id string) error {
	res, err := w.q.ExecContext(ctx, `DELETE FROM children WHERE id = ?1 AND (?2 = '' OR account_id = ?2)`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete child: %w", err)
	}
	return expectOne(res)
}

func (w *writer) InsertInvestment(ctx context.Context, inv core.Investment) error {
	_, err := w.q.ExecContext(ctx, `INSERT INTO investments (`+investmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.AccountID, inv.ChildID, inv.Amount, string(inv.Type), string(inv.Frequency),
		formatDate(inv.StartDate), nullDate(inv.EndDate), string(inv.Status), inv.TotalContributed,
		formatPauses(inv.Pauses), formatTime(inv.CreatedAt), formatTime(inv.UpdatedAt))
	if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY") {
		return fmt.Errorf("insert investment: child %s: %w", inv.ChildID, ledger.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert investment: %w", err)
	}
	return nil
}

func (w *writer) UpdateInvestment(ctx context.Context, inv core.Investment) error {
	res, err := w.q.ExecContext(ctx, `UPDATE investments
		SET amount = ?, end_date = ?, status = ?, total_contributed = ?, pauses = ?, updated_at = ?
		WHERE id = ?`,
		inv.Amount, nullDate(inv.EndDate), string(inv.Status), inv.TotalContributed, formatPauses(inv.Pauses),
		formatTime(inv.UpdatedAt), inv.ID)
	if err != nil {
		return fmt.Errorf("update investment: %w", err)
	}
	return expectOne(res)
}

func (w *writer) AppendTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := w.q.ExecContext(ctx, `INSERT INTO transactions (`+txColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.AccountID, tx.ChildID, nullString(tx.InvestmentID), tx.Amount, string(tx.Type), string(tx.Status),
		tx.Period, tx.Description, formatTime(tx.CreatedAt), nullTime(tx.SettledAt))
	if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, "transactions.investment_id") {
		return ledger.ErrDuplicatePeriod
	}
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (w *writer) SetTransactionStatus(ctx context.Context, id string, status core.TransactionStatus, at time.Time) error {
	res, err := w.q.ExecContext(ctx, `UPDATE transactions SET status = ?, settled_at = ? WHERE id = ? AND status = 'pending'`,
		string(status), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("set transaction status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := w.GetTransaction(ctx, ledger.AnyAccount, id); err != nil {
		return err
	}
	return ledger.ErrNotPending
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChild(s scanner) (core.Child, error) {
	var (
		c                         core.Child
		dob, createdAt, updatedAt string
	)
	err := s.Scan(&c.ID, &c.AccountID, &c.Name, &dob, &c.TargetAmount, &c.UnlockAge, &c.ColorTheme, &createdAt, &updatedAt)
	if err != nil {
		return c, err
	}
	if c.DateOfBirth, err = core.ParseDate(dob); err != nil {
		return c, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return c, err
	}
	c.UpdatedAt, err = parseTime(updatedAt)
	return c, err
}

func scanInvestment(s scanner) (core.Investment, error) {
	var (
		inv                      core.Investment
		typ, freq, status, start string
		end                      sql.NullString
		pauses                   string
		createdAt, updatedAt     string
	)
	err := s.Scan(&inv.ID, &inv.AccountID, &inv.ChildID, &inv.Amount, &typ, &freq, &start, &end, &status,
		&inv.TotalContributed, &pauses, &createdAt, &updatedAt)
	if err != nil {
		return inv, err
	}
	inv.Type = core.InvestmentType(typ)
	inv.Frequency = core.Frequency(freq)
	inv.Status = core.InvestmentStatus(status)
	if inv.StartDate, err = core.ParseDate(start); err != nil {
		return inv, err
	}
	if end.Valid && end.String != "" {
		if inv.EndDate, err = core.ParseDate(end.String); err != nil {
			return inv, err
		}
	}
	if inv.Pauses, err = parsePauses(pauses); err != nil {
		return inv, err
	}
	if inv.CreatedAt, err = parseTime(createdAt); err != nil {
		return inv, err
	}
	inv.UpdatedAt, err = parseTime(updatedAt)
	return inv, err
}

// formatPauses encodes pause windows as "from..to" ranges joined by commas.
func formatPauses(pauses []core.PauseWindow) string {
	parts := make([]string, len(pauses))
	for i, w := range pauses {
		parts[i] = w.From.String() + ".." + w.To.String()
	}
	return strings.Join(parts, ",")
}

func parsePauses(s string) ([]core.PauseWindow, error) {
	if s == "" {
		return nil, nil
	}
	var out []core.PauseWindow
	for _, part := range strings.Split(s, ",") {
		from, to, ok := strings.Cut(part, "..")
		if !ok {
			return nil, fmt.Errorf("invalid pause window %q", part)
		}
		var (
			w   core.PauseWindow
			err error
		)
		if w.From, err = core.ParseDate(from); err != nil {
			return nil, fmt.Errorf("invalid pause start %q: %w", from, err)
		}
		if to != "" {
			if w.To, err = core.ParseDate(to); err != nil {
				return nil, fmt.Errorf("invalid pause end %q: %w", to, err)
			}
		}
		out = append(out, w)
	}
	return out, nil
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx                   core.Transaction
		investmentID         sql.NullString
		settledAt            sql.NullString
		typ, status, created string
	)
	err := s.Scan(&tx.ID, &tx.AccountID, &tx.ChildID, &investmentID, &tx.Amount, &typ, &status, &tx.Period,
		&tx.Description, &created, &settledAt)
	if err != nil {
		return tx, err
	}
	tx.InvestmentID = investmentID.String
	tx.Type = core.TransactionType(typ)
	tx.Status = core.TransactionStatus(status)
	if tx.CreatedAt, err = parseTime(created); err != nil {
		return tx, err
	}
	if settledAt.Valid && settledAt.String != "" {
		tx.SettledAt, err = parseTime(settledAt.String)
	}
	return tx, err
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }
func formatDate(d core.Date) string { return d.Format(dateLayout) }

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullDate(d core.Date) sql.NullString {
	if d.IsEmpty() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(d), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// isConstraint matches the extended result code, falling back to the
// message when the connection reports only the primary code.
func isConstraint(err error, code int, hint string) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == code {
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), hint)
}

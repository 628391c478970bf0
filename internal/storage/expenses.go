package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tracker/internal/core"
)

// ExpenseFilter narrows ListExpenses. Zero values mean "no constraint".
type ExpenseFilter struct {
	Search string
	From   core.Date
	To     core.Date
}

// CreateExpense inserts an expense row and returns its id.
func (r *Repository) CreateExpense(ctx context.Context, e core.ExpenseEntry) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (user_email, date, category, amount_cents, description,
			receipt_path, is_recurring, frequency, next_date, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		e.UserEmail, e.Date.ISO(), e.Category, e.Amount.Cents, e.Description,
		nullString(e.ReceiptPath), e.Recurring, nullString(string(e.Frequency)), nullDate(e.NextDate))
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"user", e.UserEmail,
		"category", e.Category,
		"amount_cents", e.Amount.Cents,
		"recurring", e.Recurring)

	return id, nil
}

// GetExpense returns one expense owned by email, in any lifecycle state.
func (r *Repository) GetExpense(ctx context.Context, id int64, email string) (core.ExpenseEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_email, date, category, amount_cents, description,
			receipt_path, is_recurring, frequency, next_date, deleted_at
		FROM expenses WHERE id = ? AND user_email = ?`, id, email)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseEntry{}, core.ErrNotFound
	}
	if err != nil {
		return core.ExpenseEntry{}, fmt.Errorf("select expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns active expenses matching the filter, newest first.
func (r *Repository) ListExpenses(ctx context.Context, email string, f ExpenseFilter) ([]core.ExpenseEntry, error) {
	q := `
		SELECT id, user_email, date, category, amount_cents, description,
			receipt_path, is_recurring, frequency, next_date, deleted_at
		FROM expenses WHERE user_email = ? AND deleted_at IS NULL`
	args := []any{email}
	if f.Search != "" {
		q += ` AND description LIKE ?`
		args = append(args, "%"+f.Search+"%")
	}
	if !f.From.IsZero() {
		q += ` AND date >= ?`
		args = append(args, f.From.ISO())
	}
	if !f.To.IsZero() {
		q += ` AND date <= ?`
		args = append(args, f.To.ISO())
	}
	q += ` ORDER BY date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// UpdateExpense rewrites the editable fields of an active expense.
func (r *Repository) UpdateExpense(ctx context.Context, e core.ExpenseEntry) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET date = ?, category = ?, amount_cents = ?, description = ?
		WHERE id = ? AND user_email = ? AND deleted_at IS NULL`,
		e.Date.ISO(), e.Category, e.Amount.Cents, e.Description, e.ID, e.UserEmail)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return requireRow(res)
}

// SetReceiptPath records the stored receipt file for an active expense.
func (r *Repository) SetReceiptPath(ctx context.Context, id int64, email, path string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET receipt_path = ?
		WHERE id = ? AND user_email = ? AND deleted_at IS NULL`,
		nullString(path), id, email)
	if err != nil {
		return fmt.Errorf("set receipt path: %w", err)
	}
	return requireRow(res)
}

// SoftDeleteExpense moves an active expense to the trash.
func (r *Repository) SoftDeleteExpense(ctx context.Context, id int64, email string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET deleted_at = ?
		WHERE id = ? AND user_email = ? AND deleted_at IS NULL`,
		now.UTC().Format(time.RFC3339), id, email)
	if err != nil {
		return fmt.Errorf("soft delete expense: %w", err)
	}
	return requireRow(res)
}

// RestoreExpense brings a trashed expense back into the active set.
func (r *Repository) RestoreExpense(ctx context.Context, id int64, email string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET deleted_at = NULL
		WHERE id = ? AND user_email = ? AND deleted_at IS NOT NULL`,
		id, email)
	if err != nil {
		return fmt.Errorf("restore expense: %w", err)
	}
	return requireRow(res)
}

// PurgeExpense permanently removes a trashed expense. Active rows must be
// trashed first; purging one directly is refused as not found.
func (r *Repository) PurgeExpense(ctx context.Context, id int64, email string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM expenses
		WHERE id = ? AND user_email = ? AND deleted_at IS NOT NULL`,
		id, email)
	if err != nil {
		return fmt.Errorf("purge expense: %w", err)
	}
	return requireRow(res)
}

// ListTrashedExpenses returns the trash, most recently deleted first.
func (r *Repository) ListTrashedExpenses(ctx context.Context, email string) ([]core.ExpenseEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_email, date, category, amount_cents, description,
			receipt_path, is_recurring, frequency, next_date, deleted_at
		FROM expenses WHERE user_email = ? AND deleted_at IS NOT NULL
		ORDER BY deleted_at DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("list trashed expenses: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// TotalExpenseCents sums all active expenses for the user.
func (r *Repository) TotalExpenseCents(ctx context.Context, email string) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		WHERE user_email = ? AND deleted_at IS NULL`, email).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total expenses: %w", err)
	}
	return total, nil
}

// SpendByCategory sums active expenses per category for one YYYY-MM month.
func (r *Repository) SpendByCategory(ctx context.Context, email, monthKey string) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(amount_cents) FROM expenses
		WHERE user_email = ? AND deleted_at IS NULL AND substr(date, 1, 7) = ?
		GROUP BY category`, email, monthKey)
	if err != nil {
		return nil, fmt.Errorf("spend by category: %w", err)
	}
	defer rows.Close()

	spend := make(map[string]int64)
	for rows.Next() {
		var cat string
		var cents int64
		if err := rows.Scan(&cat, &cents); err != nil {
			return nil, fmt.Errorf("scan category spend: %w", err)
		}
		spend[cat] = cents
	}
	return spend, rows.Err()
}

// TotalsByCategory aggregates all active expenses per category (pie chart).
func (r *Repository) TotalsByCategory(ctx context.Context, email string) ([]core.CategoryAmount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(amount_cents) FROM expenses
		WHERE user_email = ? AND deleted_at IS NULL
		GROUP BY category ORDER BY SUM(amount_cents) DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("totals by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Category, &ca.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ca)
	}
	return out, rows.Err()
}

// TotalsByMonth aggregates active expenses per calendar month in
// chronological order. The forecast engine indexes these rows 0..n-1.
func (r *Repository) TotalsByMonth(ctx context.Context, email string) ([]core.MonthlyTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT substr(date, 1, 7) AS month, SUM(amount_cents) FROM expenses
		WHERE user_email = ? AND deleted_at IS NULL
		GROUP BY month ORDER BY month ASC`, email)
	if err != nil {
		return nil, fmt.Errorf("totals by month: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlyTotal
	for rows.Next() {
		var mt core.MonthlyTotal
		if err := rows.Scan(&mt.Month, &mt.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		out = append(out, mt)
	}
	return out, rows.Err()
}

// TotalsByDay aggregates active expenses per calendar day (line chart).
func (r *Repository) TotalsByDay(ctx context.Context, email string) ([]core.DailyTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, SUM(amount_cents) FROM expenses
		WHERE user_email = ? AND deleted_at IS NULL
		GROUP BY date ORDER BY date ASC`, email)
	if err != nil {
		return nil, fmt.Errorf("totals by day: %w", err)
	}
	defer rows.Close()

	var out []core.DailyTotal
	for rows.Next() {
		var dt core.DailyTotal
		if err := rows.Scan(&dt.Date, &dt.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		out = append(out, dt)
	}
	return out, rows.Err()
}

// DueRecurringExpenses returns active recurring templates due on or before today.
func (r *Repository) DueRecurringExpenses(ctx context.Context, email string, today core.Date) ([]core.ExpenseEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_email, date, category, amount_cents, description,
			receipt_path, is_recurring, frequency, next_date, deleted_at
		FROM expenses
		WHERE user_email = ? AND deleted_at IS NULL AND is_recurring = 1 AND next_date <= ?
		ORDER BY id ASC`, email, today.ISO())
	if err != nil {
		return nil, fmt.Errorf("due recurring expenses: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// MaterializeExpense inserts the next occurrence of a due recurring template
// and hands the recurrence over to the new row, all in one transaction. The
// source row is demoted with a guard on its current next_date, so a second
// concurrent invocation claims nothing and materializes nothing.
func (r *Repository) MaterializeExpense(ctx context.Context, src core.ExpenseEntry, today, nextDue core.Date) (bool, error) {
	claimed := false
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE expenses SET is_recurring = 0, frequency = NULL, next_date = NULL
			WHERE id = ? AND user_email = ? AND is_recurring = 1 AND next_date = ? AND deleted_at IS NULL`,
			src.ID, src.UserEmail, src.NextDate.ISO())
		if err != nil {
			return fmt.Errorf("claim recurring expense: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil // another session already materialized this period
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO expenses (user_email, date, category, amount_cents, description,
				receipt_path, is_recurring, frequency, next_date, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, NULL)`,
			src.UserEmail, today.ISO(), src.Category, src.Amount.Cents, src.Description,
			nullString(src.ReceiptPath), string(src.Frequency), nextDue.ISO())
		if err != nil {
			return fmt.Errorf("insert materialized expense: %w", err)
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func nullDate(d core.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.ISO(), Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.ExpenseEntry, error) {
	var (
		e                          core.ExpenseEntry
		date                       string
		receipt, freq, next, delAt sql.NullString
	)
	err := row.Scan(&e.ID, &e.UserEmail, &date, &e.Category, &e.Amount.Cents,
		&e.Description, &receipt, &e.Recurring, &freq, &next, &delAt)
	if err != nil {
		return core.ExpenseEntry{}, err
	}

	d, err := core.ParseDate(date)
	if err != nil {
		return core.ExpenseEntry{}, fmt.Errorf("parse expense date %q: %w", date, err)
	}
	e.Date = d
	e.ReceiptPath = receipt.String
	e.Frequency = core.Frequency(freq.String)
	if next.Valid {
		nd, err := core.ParseDate(next.String)
		if err != nil {
			return core.ExpenseEntry{}, fmt.Errorf("parse next date %q: %w", next.String, err)
		}
		e.NextDate = nd
	}
	if delAt.Valid {
		t, err := time.Parse(time.RFC3339, delAt.String)
		if err != nil {
			return core.ExpenseEntry{}, fmt.Errorf("parse deleted_at %q: %w", delAt.String, err)
		}
		e.DeletedAt = &t
	}
	return e, nil
}

func collectExpenses(rows *sql.Rows) ([]core.ExpenseEntry, error) {
	var out []core.ExpenseEntry
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

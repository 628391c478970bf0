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

// IncomeFilter narrows ListIncomes. Search matches description or source.
type IncomeFilter struct {
	Search string
	From   core.Date
	To     core.Date
}

// CreateIncome inserts an income row and returns its id.
func (r *Repository) CreateIncome(ctx context.Context, i core.IncomeEntry) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO incomes (user_email, date, source, amount_cents, description,
			is_recurring, frequency, next_date, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		i.UserEmail, i.Date.ISO(), i.Source, i.Amount.Cents, i.Description,
		i.Recurring, nullString(string(i.Frequency)), nullDate(i.NextDate))
	if err != nil {
		return 0, fmt.Errorf("insert income: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("income id: %w", err)
	}

	slog.InfoContext(ctx, "Income saved",
		"id", id,
		"user", i.UserEmail,
		"source", i.Source,
		"amount_cents", i.Amount.Cents,
		"recurring", i.Recurring)

	return id, nil
}

// GetIncome returns one income owned by email, in any lifecycle state.
func (r *Repository) GetIncome(ctx context.Context, id int64, email string) (core.IncomeEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_email, date, source, amount_cents, description,
			is_recurring, frequency, next_date, deleted_at
		FROM incomes WHERE id = ? AND user_email = ?`, id, email)
	i, err := scanIncome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.IncomeEntry{}, core.ErrNotFound
	}
	if err != nil {
		return core.IncomeEntry{}, fmt.Errorf("select income: %w", err)
	}
	return i, nil
}

// ListIncomes returns active incomes matching the filter, newest first.
func (r *Repository) ListIncomes(ctx context.Context, email string, f IncomeFilter) ([]core.IncomeEntry, error) {
	q := `
		SELECT id, user_email, date, source, amount_cents, description,
			is_recurring, frequency, next_date, deleted_at
		FROM incomes WHERE user_email = ? AND deleted_at IS NULL`
	args := []any{email}
	if f.Search != "" {
		q += ` AND (description LIKE ? OR source LIKE ?)`
		args = append(args, "%"+f.Search+"%", "%"+f.Search+"%")
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
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()
	return collectIncomes(rows)
}

// UpdateIncome rewrites the editable fields of an active income.
func (r *Repository) UpdateIncome(ctx context.Context, i core.IncomeEntry) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE incomes SET date = ?, source = ?, amount_cents = ?, description = ?
		WHERE id = ? AND user_email = ? AND deleted_at IS NULL`,
		i.Date.ISO(), i.Source, i.Amount.Cents, i.Description, i.ID, i.UserEmail)
	if err != nil {
		return fmt.Errorf("update income: %w", err)
	}
	return requireRow(res)
}

// SoftDeleteIncome moves an active income to the trash.
func (r *Repository) SoftDeleteIncome(ctx context.Context, id int64, email string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE incomes SET deleted_at = ?
		WHERE id = ? AND user_email = ? AND deleted_at IS NULL`,
		now.UTC().Format(time.RFC3339), id, email)
	if err != nil {
		return fmt.Errorf("soft delete income: %w", err)
	}
	return requireRow(res)
}

// RestoreIncome brings a trashed income back into the active set.
func (r *Repository) RestoreIncome(ctx context.Context, id int64, email string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE incomes SET deleted_at = NULL
		WHERE id = ? AND user_email = ? AND deleted_at IS NOT NULL`,
		id, email)
	if err != nil {
		return fmt.Errorf("restore income: %w", err)
	}
	return requireRow(res)
}

// PurgeIncome permanently removes a trashed income.
func (r *Repository) PurgeIncome(ctx context.Context, id int64, email string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM incomes
		WHERE id = ? AND user_email = ? AND deleted_at IS NOT NULL`,
		id, email)
	if err != nil {
		return fmt.Errorf("purge income: %w", err)
	}
	return requireRow(res)
}

// ListTrashedIncomes returns the income trash, most recently deleted first.
func (r *Repository) ListTrashedIncomes(ctx context.Context, email string) ([]core.IncomeEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_email, date, source, amount_cents, description,
			is_recurring, frequency, next_date, deleted_at
		FROM incomes WHERE user_email = ? AND deleted_at IS NOT NULL
		ORDER BY deleted_at DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("list trashed incomes: %w", err)
	}
	defer rows.Close()
	return collectIncomes(rows)
}

// TotalIncomeCents sums all active incomes for the user.
func (r *Repository) TotalIncomeCents(ctx context.Context, email string) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM incomes
		WHERE user_email = ? AND deleted_at IS NULL`, email).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total incomes: %w", err)
	}
	return total, nil
}

// DueRecurringIncomes returns active recurring templates due on or before today.
func (r *Repository) DueRecurringIncomes(ctx context.Context, email string, today core.Date) ([]core.IncomeEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_email, date, source, amount_cents, description,
			is_recurring, frequency, next_date, deleted_at
		FROM incomes
		WHERE user_email = ? AND deleted_at IS NULL AND is_recurring = 1 AND next_date <= ?
		ORDER BY id ASC`, email, today.ISO())
	if err != nil {
		return nil, fmt.Errorf("due recurring incomes: %w", err)
	}
	defer rows.Close()
	return collectIncomes(rows)
}

// MaterializeIncome mirrors MaterializeExpense for the income side.
func (r *Repository) MaterializeIncome(ctx context.Context, src core.IncomeEntry, today, nextDue core.Date) (bool, error) {
	claimed := false
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE incomes SET is_recurring = 0, frequency = NULL, next_date = NULL
			WHERE id = ? AND user_email = ? AND is_recurring = 1 AND next_date = ? AND deleted_at IS NULL`,
			src.ID, src.UserEmail, src.NextDate.ISO())
		if err != nil {
			return fmt.Errorf("claim recurring income: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO incomes (user_email, date, source, amount_cents, description,
				is_recurring, frequency, next_date, deleted_at)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?, NULL)`,
			src.UserEmail, today.ISO(), src.Source, src.Amount.Cents, src.Description,
			string(src.Frequency), nextDue.ISO())
		if err != nil {
			return fmt.Errorf("insert materialized income: %w", err)
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func scanIncome(row rowScanner) (core.IncomeEntry, error) {
	var (
		i                 core.IncomeEntry
		date              string
		freq, next, delAt sql.NullString
	)
	err := row.Scan(&i.ID, &i.UserEmail, &date, &i.Source, &i.Amount.Cents,
		&i.Description, &i.Recurring, &freq, &next, &delAt)
	if err != nil {
		return core.IncomeEntry{}, err
	}

	d, err := core.ParseDate(date)
	if err != nil {
		return core.IncomeEntry{}, fmt.Errorf("parse income date %q: %w", date, err)
	}
	i.Date = d
	i.Frequency = core.Frequency(freq.String)
	if next.Valid {
		nd, err := core.ParseDate(next.String)
		if err != nil {
			return core.IncomeEntry{}, fmt.Errorf("parse next date %q: %w", next.String, err)
		}
		i.NextDate = nd
	}
	if delAt.Valid {
		t, err := time.Parse(time.RFC3339, delAt.String)
		if err != nil {
			return core.IncomeEntry{}, fmt.Errorf("parse deleted_at %q: %w", delAt.String, err)
		}
		i.DeletedAt = &t
	}
	return i, nil
}

func collectIncomes(rows *sql.Rows) ([]core.IncomeEntry, error) {
	var out []core.IncomeEntry
	for rows.Next() {
		i, err := scanIncome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

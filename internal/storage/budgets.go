package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"tracker/internal/core"
)

// UpsertBudget saves a category ceiling for one month, overwriting any
// previous value for the same (month, category) key.
func (r *Repository) UpsertBudget(ctx context.Context, b core.CategoryBudget) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO category_budgets (month_year, category, amount_cents)
		VALUES (?, ?, ?)
		ON CONFLICT (month_year, category) DO UPDATE SET amount_cents = excluded.amount_cents`,
		b.MonthYear, b.Category, b.Ceiling.Cents)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget saved",
		"month", b.MonthYear,
		"category", b.Category,
		"ceiling_cents", b.Ceiling.Cents)

	return nil
}

// ListBudgets returns all category ceilings configured for one month.
func (r *Repository) ListBudgets(ctx context.Context, monthKey string) ([]core.CategoryBudget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT month_year, category, amount_cents FROM category_budgets
		WHERE month_year = ? ORDER BY category ASC`, monthKey)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryBudget
	for rows.Next() {
		var b core.CategoryBudget
		if err := rows.Scan(&b.MonthYear, &b.Category, &b.Ceiling.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// LastAlertStatus returns the persisted budget status for the key, or the
// empty string when the category has never been evaluated for that month.
func (r *Repository) LastAlertStatus(ctx context.Context, email, monthKey, category string) (core.BudgetStatus, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT status FROM budget_alert_states
		WHERE user_email = ? AND month_year = ? AND category = ?`,
		email, monthKey, category).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select alert status: %w", err)
	}
	return core.BudgetStatus(status), nil
}

// SetAlertStatus records the last-known budget status so over-budget alerts
// fire only on the transition, not on every render.
func (r *Repository) SetAlertStatus(ctx context.Context, email, monthKey, category string, status core.BudgetStatus) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_alert_states (user_email, month_year, category, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_email, month_year, category) DO UPDATE SET status = excluded.status`,
		email, monthKey, category, string(status))
	if err != nil {
		return fmt.Errorf("upsert alert status: %w", err)
	}
	return nil
}

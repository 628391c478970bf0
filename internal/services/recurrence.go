// Package services holds the business logic between the HTTP layer and
// storage: recurrence materialization, budget evaluation, forecasting,
// authentication, and export.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tracker/internal/core"
)

// RecurrenceStore is the slice of the repository the engine needs.
type RecurrenceStore interface {
	DueRecurringExpenses(ctx context.Context, email string, today core.Date) ([]core.ExpenseEntry, error)
	MaterializeExpense(ctx context.Context, src core.ExpenseEntry, today, nextDue core.Date) (bool, error)
	DueRecurringIncomes(ctx context.Context, email string, today core.Date) ([]core.IncomeEntry, error)
	MaterializeIncome(ctx context.Context, src core.IncomeEntry, today, nextDue core.Date) (bool, error)
}

// RecurrenceEngine materializes due recurring entries. It runs on dashboard
// load rather than on a schedule, so it must be safe to invoke any number of
// times: each due row is materialized at most once per period, enforced by
// the storage layer's guarded claim.
type RecurrenceEngine struct {
	store RecurrenceStore
}

func NewRecurrenceEngine(store RecurrenceStore) *RecurrenceEngine {
	return &RecurrenceEngine{store: store}
}

// ProcessDue scans the user's recurring expenses and incomes whose next-due
// date is on or before now, inserts the next occurrence dated today, and
// advances the recurrence by the entry's frequency. Returns the number of
// rows materialized. Any store error aborts the batch.
func (e *RecurrenceEngine) ProcessDue(ctx context.Context, email string, now time.Time) (int, error) {
	today := core.DateOf(now)
	count := 0

	dueExpenses, err := e.store.DueRecurringExpenses(ctx, email, today)
	if err != nil {
		return count, fmt.Errorf("list due recurring expenses: %w", err)
	}
	for _, src := range dueExpenses {
		nextDue := core.DateOf(src.Frequency.Advance(today.Time))
		claimed, err := e.store.MaterializeExpense(ctx, src, today, nextDue)
		if err != nil {
			return count, fmt.Errorf("materialize expense %d: %w", src.ID, err)
		}
		if !claimed {
			continue
		}
		count++
		slog.InfoContext(ctx, "Materialized recurring expense",
			"source_id", src.ID,
			"user", email,
			"category", src.Category,
			"amount_cents", src.Amount.Cents,
			"next_due", nextDue.ISO())
	}

	dueIncomes, err := e.store.DueRecurringIncomes(ctx, email, today)
	if err != nil {
		return count, fmt.Errorf("list due recurring incomes: %w", err)
	}
	for _, src := range dueIncomes {
		nextDue := core.DateOf(src.Frequency.Advance(today.Time))
		claimed, err := e.store.MaterializeIncome(ctx, src, today, nextDue)
		if err != nil {
			return count, fmt.Errorf("materialize income %d: %w", src.ID, err)
		}
		if !claimed {
			continue
		}
		count++
		slog.InfoContext(ctx, "Materialized recurring income",
			"source_id", src.ID,
			"user", email,
			"source", src.Source,
			"amount_cents", src.Amount.Cents,
			"next_due", nextDue.ISO())
	}

	if count > 0 {
		slog.InfoContext(ctx, "Recurring processing complete",
			"user", email,
			"materialized", count,
			"date", today.ISO())
	}

	return count, nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"tracker/internal/core"
)

// DashboardStore supplies the all-time totals shown at the top of the
// dashboard.
type DashboardStore interface {
	TotalExpenseCents(ctx context.Context, email string) (int64, error)
	TotalIncomeCents(ctx context.Context, email string) (int64, error)
}

// DashboardService assembles the dashboard summary. Each load first runs the
// recurrence engine, so due recurring entries appear before totals are
// computed, then evaluates the current month's budgets.
type DashboardService struct {
	store      DashboardStore
	recurrence *RecurrenceEngine
	budgets    *BudgetEvaluator
}

func NewDashboardService(store DashboardStore, recurrence *RecurrenceEngine, budgets *BudgetEvaluator) *DashboardService {
	return &DashboardService{store: store, recurrence: recurrence, budgets: budgets}
}

// Summarize builds the summary for one user as of now.
func (s *DashboardService) Summarize(ctx context.Context, email string, now time.Time, sender SenderCredentials) (core.DashboardSummary, error) {
	materialized, err := s.recurrence.ProcessDue(ctx, email, now)
	if err != nil {
		return core.DashboardSummary{}, fmt.Errorf("process recurring: %w", err)
	}

	incomeCents, err := s.store.TotalIncomeCents(ctx, email)
	if err != nil {
		return core.DashboardSummary{}, fmt.Errorf("income total: %w", err)
	}
	expenseCents, err := s.store.TotalExpenseCents(ctx, email)
	if err != nil {
		return core.DashboardSummary{}, fmt.Errorf("expense total: %w", err)
	}

	budgets, err := s.budgets.Evaluate(ctx, email, core.DateOf(now).MonthKey(), sender)
	if err != nil {
		return core.DashboardSummary{}, fmt.Errorf("evaluate budgets: %w", err)
	}

	return core.DashboardSummary{
		IncomeTotal:  core.Money{Cents: incomeCents},
		ExpenseTotal: core.Money{Cents: expenseCents},
		Savings:      core.Money{Cents: incomeCents - expenseCents},
		Materialized: materialized,
		Budgets:      budgets,
	}, nil
}

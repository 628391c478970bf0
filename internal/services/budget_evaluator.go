package services

import (
	"context"
	"fmt"
	"log/slog"

	"tracker/internal/amqp"
	"tracker/internal/core"
)

// BudgetStore is the repository slice the evaluator reads and writes.
type BudgetStore interface {
	ListBudgets(ctx context.Context, monthKey string) ([]core.CategoryBudget, error)
	SpendByCategory(ctx context.Context, email, monthKey string) (map[string]int64, error)
	LastAlertStatus(ctx context.Context, email, monthKey, category string) (core.BudgetStatus, error)
	SetAlertStatus(ctx context.Context, email, monthKey, category string, status core.BudgetStatus) error
}

// AlertPublisher is the notification channel. A nil publisher disables
// alerting without disabling evaluation.
type AlertPublisher interface {
	PublishNotification(ctx context.Context, msg *amqp.NotificationMessage) error
}

// SenderCredentials are the per-user SMTP credentials captured from the
// session. Empty credentials still produce alert messages; the worker skips
// delivery for them.
type SenderCredentials struct {
	Email    string
	Password string
}

// BudgetEvaluator classifies each budgeted category for a month and raises
// an alert when a category crosses into over-budget. Alerts are edge
// triggered: one per crossing, not one per evaluation, so re-rendering the
// dashboard never re-sends mail.
type BudgetEvaluator struct {
	store     BudgetStore
	publisher AlertPublisher
}

func NewBudgetEvaluator(store BudgetStore, publisher AlertPublisher) *BudgetEvaluator {
	return &BudgetEvaluator{store: store, publisher: publisher}
}

// Evaluate computes the budget progress rows for one user and month.
// Alert-state bookkeeping and publishing are best-effort: failures there are
// logged and never fail the evaluation itself.
func (e *BudgetEvaluator) Evaluate(ctx context.Context, email, monthKey string, sender SenderCredentials) ([]core.BudgetProgress, error) {
	budgets, err := e.store.ListBudgets(ctx, monthKey)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	if len(budgets) == 0 {
		return nil, nil
	}

	spend, err := e.store.SpendByCategory(ctx, email, monthKey)
	if err != nil {
		return nil, fmt.Errorf("spend by category: %w", err)
	}

	progress := make([]core.BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		spent := core.Money{Cents: spend[b.Category]}
		p := core.ClassifyBudget(b.Category, spent, b.Ceiling)
		progress = append(progress, p)
		e.trackTransition(ctx, email, monthKey, p, sender)
	}

	return progress, nil
}

// trackTransition records the category's new status and publishes an alert
// only on the transition into over-budget.
func (e *BudgetEvaluator) trackTransition(ctx context.Context, email, monthKey string, p core.BudgetProgress, sender SenderCredentials) {
	prev, err := e.store.LastAlertStatus(ctx, email, monthKey, p.Category)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read alert state",
			"error", err,
			"user", email,
			"category", p.Category)
		return
	}
	if prev == p.Status {
		return
	}

	if err := e.store.SetAlertStatus(ctx, email, monthKey, p.Category, p.Status); err != nil {
		slog.ErrorContext(ctx, "Failed to record alert state",
			"error", err,
			"user", email,
			"category", p.Category)
		return
	}

	if p.Status != core.StatusOverBudget || e.publisher == nil {
		return
	}

	overage := core.Money{Cents: -p.Remaining.Cents}
	msg := amqp.NewBudgetAlertMessage(email, p.Category, overage.Decimal())
	msg.SMTPEmail = sender.Email
	msg.SMTPPassword = sender.Password
	if err := e.publisher.PublishNotification(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish budget alert",
			"error", err,
			"user", email,
			"category", p.Category)
		return
	}

	slog.InfoContext(ctx, "Budget alert raised",
		"user", email,
		"month", monthKey,
		"category", p.Category,
		"overage_cents", overage.Cents)
}

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tracker/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *Repository, email string) {
	t.Helper()
	err := repo.CreateUser(context.Background(), core.User{
		Email:        email,
		Name:         "Test User",
		PasswordHash: "$2a$10$fakehashfakehashfakehash",
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedUser(t, repo, "dup@example.com")

	err := repo.CreateUser(ctx, core.User{Email: "dup@example.com", Name: "Other", PasswordHash: "x"})
	if !errors.Is(err, core.ErrDuplicateEmail) {
		t.Fatalf("CreateUser duplicate = %v, want ErrDuplicateEmail", err)
	}

	// the original row must be untouched
	u, err := repo.GetUser(ctx, "dup@example.com")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Name != "Test User" {
		t.Errorf("duplicate signup altered existing row: name = %q", u.Name)
	}
}

func TestGetUserNotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetUser(context.Background(), "ghost@example.com"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetUser(missing) = %v, want ErrNotFound", err)
	}
}

func TestExpenseSoftDeleteRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "a@example.com")

	id, err := repo.CreateExpense(ctx, core.ExpenseEntry{
		UserEmail: "a@example.com",
		Date:      core.NewDate(2024, 3, 5),
		Category:  "Food",
		Amount:    core.Money{Cents: 4200},
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	total := func() int64 {
		t.Helper()
		cents, err := repo.TotalExpenseCents(ctx, "a@example.com")
		if err != nil {
			t.Fatalf("TotalExpenseCents: %v", err)
		}
		return cents
	}

	if total() != 4200 {
		t.Fatalf("total before delete = %d, want 4200", total())
	}

	if err := repo.SoftDeleteExpense(ctx, id, "a@example.com", time.Now()); err != nil {
		t.Fatalf("SoftDeleteExpense: %v", err)
	}
	if total() != 0 {
		t.Errorf("trashed expense still counted: total = %d", total())
	}

	spend, err := repo.SpendByCategory(ctx, "a@example.com", "2024-03")
	if err != nil {
		t.Fatalf("SpendByCategory: %v", err)
	}
	if spend["Food"] != 0 {
		t.Errorf("trashed expense still in budget aggregate: %d", spend["Food"])
	}

	trash, err := repo.ListTrashedExpenses(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("ListTrashedExpenses: %v", err)
	}
	if len(trash) != 1 || trash[0].ID != id {
		t.Fatalf("trash = %+v, want the deleted row", trash)
	}

	if err := repo.RestoreExpense(ctx, id, "a@example.com"); err != nil {
		t.Fatalf("RestoreExpense: %v", err)
	}
	if total() != 4200 {
		t.Errorf("restored expense not counted: total = %d", total())
	}

	// purge requires the row to be trashed first
	if err := repo.PurgeExpense(ctx, id, "a@example.com"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("PurgeExpense(active) = %v, want ErrNotFound", err)
	}
	if err := repo.SoftDeleteExpense(ctx, id, "a@example.com", time.Now()); err != nil {
		t.Fatalf("SoftDeleteExpense: %v", err)
	}
	if err := repo.PurgeExpense(ctx, id, "a@example.com"); err != nil {
		t.Fatalf("PurgeExpense: %v", err)
	}
	if _, err := repo.GetExpense(ctx, id, "a@example.com"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("purged expense still readable: %v", err)
	}
}

func TestExpenseOwnershipScoping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "owner@example.com")
	seedUser(t, repo, "other@example.com")

	id, err := repo.CreateExpense(ctx, core.ExpenseEntry{
		UserEmail: "owner@example.com",
		Date:      core.NewDate(2024, 1, 1),
		Category:  "Shopping",
		Amount:    core.Money{Cents: 100},
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	if _, err := repo.GetExpense(ctx, id, "other@example.com"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-user GetExpense = %v, want ErrNotFound", err)
	}
	if err := repo.SoftDeleteExpense(ctx, id, "other@example.com", time.Now()); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-user SoftDeleteExpense = %v, want ErrNotFound", err)
	}
}

func TestListExpensesFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "f@example.com")

	entries := []core.ExpenseEntry{
		{Date: core.NewDate(2024, 1, 10), Category: "Food", Amount: core.Money{Cents: 100}, Description: "lunch at cafe"},
		{Date: core.NewDate(2024, 2, 10), Category: "Transport", Amount: core.Money{Cents: 200}, Description: "bus pass"},
		{Date: core.NewDate(2024, 3, 10), Category: "Food", Amount: core.Money{Cents: 300}, Description: "dinner"},
	}
	for _, e := range entries {
		e.UserEmail = "f@example.com"
		if _, err := repo.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}

	got, err := repo.ListExpenses(ctx, "f@example.com", ExpenseFilter{Search: "lunch"})
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(got) != 1 || got[0].Description != "lunch at cafe" {
		t.Errorf("search filter returned %+v", got)
	}

	got, err = repo.ListExpenses(ctx, "f@example.com", ExpenseFilter{
		From: core.NewDate(2024, 2, 1),
		To:   core.NewDate(2024, 2, 28),
	})
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(got) != 1 || got[0].Category != "Transport" {
		t.Errorf("date range filter returned %+v", got)
	}
}

func TestMaterializeExpenseClaimsOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "r@example.com")

	src := core.ExpenseEntry{
		UserEmail:   "r@example.com",
		Date:        core.NewDate(2024, 1, 1),
		Category:    "Rent/Bills",
		Amount:      core.Money{Cents: 80000},
		Description: "rent",
		Recurring:   true,
		Frequency:   core.Monthly,
		NextDate:    core.NewDate(2024, 2, 1),
	}
	id, err := repo.CreateExpense(ctx, src)
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	src.ID = id

	today := core.NewDate(2024, 2, 1)
	nextDue := core.NewDate(2024, 3, 2)

	claimed, err := repo.MaterializeExpense(ctx, src, today, nextDue)
	if err != nil {
		t.Fatalf("MaterializeExpense: %v", err)
	}
	if !claimed {
		t.Fatal("first materialization should claim the row")
	}

	// second invocation with the same snapshot simulates a concurrent tab
	claimed, err = repo.MaterializeExpense(ctx, src, today, nextDue)
	if err != nil {
		t.Fatalf("MaterializeExpense (second): %v", err)
	}
	if claimed {
		t.Fatal("second materialization must be a no-op")
	}

	all, err := repo.ListExpenses(ctx, "r@example.com", ExpenseFilter{})
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected source + one materialized row, got %d", len(all))
	}

	// newest-first ordering puts the materialized row first
	mat := all[0]
	if mat.Date.ISO() != "2024-02-01" || mat.NextDate.ISO() != "2024-03-02" || !mat.Recurring {
		t.Errorf("materialized row = %+v", mat)
	}
	orig, err := repo.GetExpense(ctx, id, "r@example.com")
	if err != nil {
		t.Fatalf("GetExpense: %v", err)
	}
	if orig.Recurring || !orig.NextDate.IsZero() {
		t.Errorf("source row not demoted: %+v", orig)
	}
}

func TestUpsertBudgetOverwrites(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	b := core.CategoryBudget{MonthYear: "2024-03", Category: "Food", Ceiling: core.Money{Cents: 10000}}
	if err := repo.UpsertBudget(ctx, b); err != nil {
		t.Fatalf("UpsertBudget: %v", err)
	}
	b.Ceiling.Cents = 20000
	if err := repo.UpsertBudget(ctx, b); err != nil {
		t.Fatalf("UpsertBudget (overwrite): %v", err)
	}

	budgets, err := repo.ListBudgets(ctx, "2024-03")
	if err != nil {
		t.Fatalf("ListBudgets: %v", err)
	}
	if len(budgets) != 1 || budgets[0].Ceiling.Cents != 20000 {
		t.Errorf("budgets = %+v, want one row with 20000", budgets)
	}
}

func TestAlertStatusRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	status, err := repo.LastAlertStatus(ctx, "a@example.com", "2024-03", "Food")
	if err != nil {
		t.Fatalf("LastAlertStatus: %v", err)
	}
	if status != "" {
		t.Errorf("unseen key should have empty status, got %q", status)
	}

	if err := repo.SetAlertStatus(ctx, "a@example.com", "2024-03", "Food", core.StatusOverBudget); err != nil {
		t.Fatalf("SetAlertStatus: %v", err)
	}
	status, err = repo.LastAlertStatus(ctx, "a@example.com", "2024-03", "Food")
	if err != nil {
		t.Fatalf("LastAlertStatus: %v", err)
	}
	if status != core.StatusOverBudget {
		t.Errorf("status = %q, want over_budget", status)
	}
}

func TestResetTokenConsume(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.CreateResetToken(ctx, "tok-live", "a@example.com", now.Add(time.Hour)); err != nil {
		t.Fatalf("CreateResetToken: %v", err)
	}
	if err := repo.CreateResetToken(ctx, "tok-dead", "a@example.com", now.Add(-time.Hour)); err != nil {
		t.Fatalf("CreateResetToken: %v", err)
	}

	email, err := repo.ConsumeResetToken(ctx, "tok-live", now)
	if err != nil {
		t.Fatalf("ConsumeResetToken: %v", err)
	}
	if email != "a@example.com" {
		t.Errorf("email = %q", email)
	}

	// single use
	if _, err := repo.ConsumeResetToken(ctx, "tok-live", now); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("reused token = %v, want ErrNotFound", err)
	}
	// expired
	if _, err := repo.ConsumeResetToken(ctx, "tok-dead", now); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expired token = %v, want ErrNotFound", err)
	}
	// unknown
	if _, err := repo.ConsumeResetToken(ctx, "tok-missing", now); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown token = %v, want ErrNotFound", err)
	}
}

func TestTotalsByMonthChronological(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "m@example.com")

	dates := []core.Date{
		core.NewDate(2024, 3, 1),
		core.NewDate(2024, 1, 15),
		core.NewDate(2024, 1, 20),
		core.NewDate(2024, 2, 5),
	}
	for _, d := range dates {
		_, err := repo.CreateExpense(ctx, core.ExpenseEntry{
			UserEmail: "m@example.com",
			Date:      d,
			Category:  "Other",
			Amount:    core.Money{Cents: 1000},
		})
		if err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}

	totals, err := repo.TotalsByMonth(ctx, "m@example.com")
	if err != nil {
		t.Fatalf("TotalsByMonth: %v", err)
	}
	want := []core.MonthlyTotal{
		{Month: "2024-01", Total: core.Money{Cents: 2000}},
		{Month: "2024-02", Total: core.Money{Cents: 1000}},
		{Month: "2024-03", Total: core.Money{Cents: 1000}},
	}
	if len(totals) != len(want) {
		t.Fatalf("got %d months, want %d", len(totals), len(want))
	}
	for i := range want {
		if totals[i] != want[i] {
			t.Errorf("month %d = %+v, want %+v", i, totals[i], want[i])
		}
	}
}

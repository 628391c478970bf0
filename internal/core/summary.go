package core

// BudgetStatus classifies one category's spend against its monthly ceiling.
type BudgetStatus string

const (
	StatusNoBudget   BudgetStatus = "no_budget"
	StatusOnTrack    BudgetStatus = "on_track"
	StatusWarning    BudgetStatus = "warning"
	StatusOverBudget BudgetStatus = "over_budget"
)

// BudgetProgress is the evaluated state of one category for one month.
type BudgetProgress struct {
	Category    string
	Ceiling     Money
	Spent       Money
	Remaining   Money
	PercentUsed float64
	Status      BudgetStatus
}

// ClassifyBudget computes remaining, percent used, and exactly one status.
// A zero ceiling means no budget was set; it is never treated as division
// by zero or as 100% used.
func ClassifyBudget(category string, spent, ceiling Money) BudgetProgress {
	p := BudgetProgress{
		Category:  category,
		Ceiling:   ceiling,
		Spent:     spent,
		Remaining: Money{Cents: ceiling.Cents - spent.Cents},
	}
	if ceiling.Cents == 0 {
		p.Status = StatusNoBudget
		return p
	}
	p.PercentUsed = float64(spent.Cents) / float64(ceiling.Cents) * 100
	switch {
	case p.PercentUsed > 100:
		p.Status = StatusOverBudget
	case p.PercentUsed > 80:
		p.Status = StatusWarning
	default:
		p.Status = StatusOnTrack
	}
	return p
}

// CategoryAmount is an amount aggregated by category name.
type CategoryAmount struct {
	Category string
	Total    Money
}

// MonthlyTotal is total active expense for one YYYY-MM month.
type MonthlyTotal struct {
	Month string
	Total Money
}

// DailyTotal is total active expense for one calendar day.
type DailyTotal struct {
	Date  string
	Total Money
}

// DashboardSummary backs the dashboard view: all-time totals, savings, and
// the count of recurring rows materialized on this visit.
type DashboardSummary struct {
	IncomeTotal  Money
	ExpenseTotal Money
	Savings      Money
	Materialized int
	Budgets      []BudgetProgress
}

// Forecast is the linear-trend projection of next month's spend. Predicted
// clamps at zero for display; Raw keeps the unclamped fitted value.
type Forecast struct {
	Months    int
	Slope     float64
	Intercept float64
	Raw       float64
	Predicted Money
}

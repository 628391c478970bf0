package http

import (
	"errors"
	"net/http"
	"time"

	"tracker/internal/core"
	"tracker/internal/services"
	"tracker/internal/session"
)

type budgetProgressView struct {
	Category    string  `json:"category"`
	Ceiling     string  `json:"ceiling"`
	Spent       string  `json:"spent"`
	Remaining   string  `json:"remaining"`
	PercentUsed float64 `json:"percent_used"`
	Status      string  `json:"status"`
}

func budgetProgressToView(p core.BudgetProgress, sess *session.Session) budgetProgressView {
	return budgetProgressView{
		Category:    p.Category,
		Ceiling:     p.Ceiling.Display(sess.Currency, sess.ConvRate),
		Spent:       p.Spent.Display(sess.Currency, sess.ConvRate),
		Remaining:   p.Remaining.Display(sess.Currency, sess.ConvRate),
		PercentUsed: p.PercentUsed,
		Status:      string(p.Status),
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	now := time.Now()
	key := sess.Email + ":" + core.DateOf(now).MonthKey()

	summary, ok := s.summaryCache.Get(key)
	if !ok {
		var err error
		summary, err = s.dashboard.Summarize(r.Context(), sess.Email, now, services.SenderCredentials{
			Email:    sess.SMTPEmail,
			Password: sess.SMTPPass,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		s.summaryCache.Set(key, summary)
	}

	budgets := make([]budgetProgressView, 0, len(summary.Budgets))
	for _, p := range summary.Budgets {
		budgets = append(budgets, budgetProgressToView(p, sess))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":          sess.Name,
		"income_total":  summary.IncomeTotal.Display(sess.Currency, sess.ConvRate),
		"expense_total": summary.ExpenseTotal.Display(sess.Currency, sess.ConvRate),
		"savings":       summary.Savings.Display(sess.Currency, sess.ConvRate),
		"materialized":  summary.Materialized,
		"budgets":       budgets,
	})
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	f, err := s.forecast.Predict(r.Context(), sess.Email)
	if errors.Is(err, services.ErrInsufficientData) {
		writeJSON(w, http.StatusOK, map[string]any{
			"available": false,
			"months":    f.Months,
			"message":   "need at least 3 months of expense history",
		})
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"available": true,
		"months":    f.Months,
		"slope":     f.Slope,
		"intercept": f.Intercept,
		"predicted": f.Predicted.Display(sess.Currency, sess.ConvRate),
	})
}

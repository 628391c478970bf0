package http

import (
	"net/http"
	"time"

	"tracker/internal/core"
	"tracker/internal/session"
)

// monthParam reads the month query parameter, defaulting to the current
// month. The format is YYYY-MM.
func monthParam(r *http.Request) (string, error) {
	m := r.URL.Query().Get("month")
	if m == "" {
		return core.DateOf(time.Now()).MonthKey(), nil
	}
	if _, err := time.Parse("2006-01", m); err != nil {
		return "", core.ErrInvalidDate
	}
	return m, nil
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	month, err := monthParam(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	budgets, err := s.repo.ListBudgets(r.Context(), month)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	spend, err := s.repo.SpendByCategory(r.Context(), sess.Email, month)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	set := make(map[string]core.Money, len(budgets))
	for _, b := range budgets {
		set[b.Category] = b.Ceiling
	}

	// Every category appears, budgeted or not, so the client can render the
	// full form.
	views := make([]budgetProgressView, 0, len(core.Categories))
	for _, cat := range core.Categories {
		p := core.ClassifyBudget(cat, core.Money{Cents: spend[cat]}, set[cat])
		views = append(views, budgetProgressToView(p, sess))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"month":   month,
		"budgets": views,
	})
}

type saveBudgetsPayload struct {
	Month   string            `json:"month"`
	Ceiling map[string]string `json:"ceilings"` // category -> decimal amount, "0" clears
}

func (s *Server) handleSaveBudgets(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var p saveBudgetsPayload
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.Month == "" {
		p.Month = core.DateOf(time.Now()).MonthKey()
	}

	for cat, raw := range p.Ceiling {
		var cents int64
		if raw != "" && raw != "0" {
			var err error
			cents, err = core.ParseDecimalToCents(raw)
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
		}

		b := core.CategoryBudget{
			MonthYear: p.Month,
			Category:  sanitizeInput(cat),
			Ceiling:   core.Money{Cents: cents},
		}
		if err := b.Validate(); err != nil {
			writeDomainError(w, r, err)
			return
		}
		if err := s.repo.UpsertBudget(r.Context(), b); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}

	s.invalidateUserCaches(sess.Email)
	writeJSON(w, http.StatusOK, map[string]string{"status": "budgets saved", "month": p.Month})
}

package http

import (
	"log/slog"
	"net/http"

	applog "tracker/internal/log"
	"tracker/internal/services"
	"tracker/internal/session"
	"tracker/internal/storage"
)

// Both exports honor the same search/from/to parameters as the list
// endpoints, so the download matches what the client is looking at.
func (s *Server) handleExportExpenses(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	search, from, to, err := listFilter(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	entries, err := s.repo.ListExpenses(r.Context(), sess.Email, storage.ExpenseFilter{
		Search: search,
		From:   from,
		To:     to,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.csv"`)
	if err := services.WriteExpensesCSV(w, entries); err != nil {
		// Headers are already sent; nothing left to do but log.
		slog.ErrorContext(r.Context(), "CSV export failed", applog.FieldError, err, applog.FieldUser, sess.Email)
	}
}

func (s *Server) handleExportIncomes(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	search, from, to, err := listFilter(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	entries, err := s.repo.ListIncomes(r.Context(), sess.Email, storage.IncomeFilter{
		Search: search,
		From:   from,
		To:     to,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="incomes.csv"`)
	if err := services.WriteIncomesCSV(w, entries); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed", applog.FieldError, err, applog.FieldUser, sess.Email)
	}
}

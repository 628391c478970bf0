package http

import (
	"net/http"
	"time"

	"tracker/internal/core"
	"tracker/internal/session"
	"tracker/internal/storage"
)

type incomePayload struct {
	Date        string `json:"date"`
	Source      string `json:"source"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Recurring   bool   `json:"recurring"`
	Frequency   string `json:"frequency,omitempty"`
}

type incomeView struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Source      string `json:"source"`
	Amount      string `json:"amount"`
	Display     string `json:"display"`
	Description string `json:"description,omitempty"`
	Recurring   bool   `json:"recurring"`
	Frequency   string `json:"frequency,omitempty"`
	NextDate    string `json:"next_date,omitempty"`
	DeletedAt   string `json:"deleted_at,omitempty"`
}

func incomeToView(i core.IncomeEntry, sess *session.Session) incomeView {
	v := incomeView{
		ID:          i.ID,
		Date:        i.Date.ISO(),
		Source:      i.Source,
		Amount:      i.Amount.Decimal(),
		Display:     i.Amount.Display(sess.Currency, sess.ConvRate),
		Description: i.Description,
		Recurring:   i.Recurring,
		Frequency:   string(i.Frequency),
	}
	if !i.NextDate.IsZero() {
		v.NextDate = i.NextDate.ISO()
	}
	if i.DeletedAt != nil {
		v.DeletedAt = i.DeletedAt.UTC().Format(time.RFC3339)
	}
	return v
}

func parseIncome(p incomePayload, email string) (core.IncomeEntry, error) {
	date, err := core.ParseDate(p.Date)
	if err != nil {
		return core.IncomeEntry{}, err
	}
	cents, err := core.ParseDecimalToCents(p.Amount)
	if err != nil {
		return core.IncomeEntry{}, err
	}

	i := core.IncomeEntry{
		UserEmail:   email,
		Date:        date,
		Source:      sanitizeInput(p.Source),
		Amount:      core.Money{Cents: cents},
		Description: sanitizeInput(p.Description),
		Recurring:   p.Recurring,
	}
	if p.Recurring {
		i.Frequency = core.Frequency(p.Frequency)
		i.NextDate = core.DateOf(i.Frequency.Advance(date.Time))
	}
	if err := i.Validate(); err != nil {
		return core.IncomeEntry{}, err
	}
	return i, nil
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var p incomePayload
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	i, err := parseIncome(p, sess.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	id, err := s.repo.CreateIncome(r.Context(), i)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	i.ID = id

	s.invalidateUserCaches(sess.Email)
	writeJSON(w, http.StatusCreated, incomeToView(i, sess))
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request, sess *session.Session) {
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

	views := make([]incomeView, 0, len(entries))
	for _, i := range entries {
		views = append(views, incomeToView(i, sess))
	}
	writeJSON(w, http.StatusOK, map[string]any{"incomes": views})
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	i, err := s.repo.GetIncome(r.Context(), id, sess.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, incomeToView(i, sess))
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var p incomePayload
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	i, err := parseIncome(p, sess.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	i.ID = id

	if err := s.repo.UpdateIncome(r.Context(), i); err != nil {
		writeDomainError(w, r, err)
		return
	}

	// Only date/source/amount/description are editable; re-read the row so
	// the response reflects the stored recurrence state, not the payload's.
	stored, err := s.repo.GetIncome(r.Context(), id, sess.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidateUserCaches(sess.Email)
	writeJSON(w, http.StatusOK, incomeToView(stored, sess))
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.SoftDeleteIncome(r.Context(), id, sess.Email, time.Now()); err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidateUserCaches(sess.Email)
	writeJSON(w, http.StatusOK, map[string]string{"status": "moved to trash"})
}

func (s *Server) handleRestoreIncome(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.RestoreIncome(r.Context(), id, sess.Email); err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidateUserCaches(sess.Email)
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func (s *Server) handlePurgeIncome(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.PurgeIncome(r.Context(), id, sess.Email); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted permanently"})
}

func (s *Server) handleListTrash(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	expenses, err := s.repo.ListTrashedExpenses(r.Context(), sess.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	incomes, err := s.repo.ListTrashedIncomes(r.Context(), sess.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	ev := make([]expenseView, 0, len(expenses))
	for _, e := range expenses {
		ev = append(ev, expenseToView(e, sess))
	}
	iv := make([]incomeView, 0, len(incomes))
	for _, i := range incomes {
		iv = append(iv, incomeToView(i, sess))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": ev, "incomes": iv})
}

package http

import (
	"net/http"
	"time"

	"tracker/internal/core"
	"tracker/internal/session"
	"tracker/internal/storage"
)

type expensePayload struct {
	Date        string `json:"date"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Recurring   bool   `json:"recurring"`
	Frequency   string `json:"frequency,omitempty"`
}

type expenseView struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Display     string `json:"display"`
	Description string `json:"description,omitempty"`
	HasReceipt  bool   `json:"has_receipt"`
	Recurring   bool   `json:"recurring"`
	Frequency   string `json:"frequency,omitempty"`
	NextDate    string `json:"next_date,omitempty"`
	DeletedAt   string `json:"deleted_at,omitempty"`
}

func expenseToView(e core.ExpenseEntry, sess *session.Session) expenseView {
	v := expenseView{
		ID:          e.ID,
		Date:        e.Date.ISO(),
		Category:    e.Category,
		Amount:      e.Amount.Decimal(),
		Display:     e.Amount.Display(sess.Currency, sess.ConvRate),
		Description: e.Description,
		HasReceipt:  e.ReceiptPath != "",
		Recurring:   e.Recurring,
		Frequency:   string(e.Frequency),
	}
	if !e.NextDate.IsZero() {
		v.NextDate = e.NextDate.ISO()
	}
	if e.DeletedAt != nil {
		v.DeletedAt = e.DeletedAt.UTC().Format(time.RFC3339)
	}
	return v
}

// parseExpense turns the payload into a validated entry for the session user.
func parseExpense(p expensePayload, email string) (core.ExpenseEntry, error) {
	date, err := core.ParseDate(p.Date)
	if err != nil {
		return core.ExpenseEntry{}, err
	}
	cents, err := core.ParseDecimalToCents(p.Amount)
	if err != nil {
		return core.ExpenseEntry{}, err
	}

	e := core.ExpenseEntry{
		UserEmail:   email,
		Date:        date,
		Category:    sanitizeInput(p.Category),
		Amount:      core.Money{Cents: cents},
		Description: sanitizeInput(p.Description),
		Recurring:   p.Recurring,
	}
	if p.Recurring {
		e.Frequency = core.Frequency(p.Frequency)
		e.NextDate = core.DateOf(e.Frequency.Advance(date.Time))
	}
	if err := e.Validate(time.Now()); err != nil {
		return core.ExpenseEntry{}, err
	}
	return e, nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var p expensePayload
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := parseExpense(p, sess.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	id, err := s.repo.CreateExpense(r.Context(), e)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	e.ID = id

	s.invalidateUserCaches(sess.Email)
	writeJSON(w, http.StatusCreated, expenseToView(e, sess))
}

// listFilter reads the shared search/from/to query parameters.
func listFilter(r *http.Request) (search string, from, to core.Date, err error) {
	q := r.URL.Query()
	search = sanitizeInput(q.Get("search"))
	if v := q.Get("from"); v != "" {
		if from, err = core.ParseDate(v); err != nil {
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = core.ParseDate(v); err != nil {
			return
		}
	}
	return
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, sess *session.Session) {
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

	views := make([]expenseView, 0, len(entries))
	for _, e := range entries {
		views = append(views, expenseToView(e, sess))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": views})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := s.repo.GetExpense(r.Context(), id, sess.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenseToView(e, sess))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var p expensePayload
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := parseExpense(p, sess.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	e.ID = id

	if err := s.repo.UpdateExpense(r.Context(), e); err != nil {
		writeDomainError(w, r, err)
		return
	}

	// Only date/category/amount/description are editable; re-read the row so
	// the response reflects the stored recurrence state, not the payload's.
	stored, err := s.repo.GetExpense(r.Context(), id, sess.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidateUserCaches(sess.Email)
	writeJSON(w, http.StatusOK, expenseToView(stored, sess))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.SoftDeleteExpense(r.Context(), id, sess.Email, time.Now()); err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidateUserCaches(sess.Email)
	writeJSON(w, http.StatusOK, map[string]string{"status": "moved to trash"})
}

func (s *Server) handleRestoreExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.repo.RestoreExpense(r.Context(), id, sess.Email); err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidateUserCaches(sess.Email)
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func (s *Server) handlePurgeExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Delete the receipt file with the row; ignore the file being absent.
	if e, err := s.repo.GetExpense(r.Context(), id, sess.Email); err == nil && e.ReceiptPath != "" {
		_ = s.receipts.Remove(sess.Email, e.ReceiptPath)
	}

	if err := s.repo.PurgeExpense(r.Context(), id, sess.Email); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted permanently"})
}

const maxReceiptBytes = 5 << 20

func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("receipt")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing receipt file")
		return
	}
	defer file.Close()

	stored, err := s.receipts.Save(sess.Email, header.Filename, file)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := s.repo.SetReceiptPath(r.Context(), id, sess.Email, stored); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "receipt attached"})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := s.repo.GetExpense(r.Context(), id, sess.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if e.ReceiptPath == "" {
		writeError(w, http.StatusNotFound, "no receipt attached")
		return
	}

	full, err := s.receipts.Path(sess.Email, e.ReceiptPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "receipt file missing")
		return
	}
	http.ServeFile(w, r, full)
}

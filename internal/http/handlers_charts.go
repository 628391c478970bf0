package http

import (
	"net/http"

	"tracker/internal/core"
	"tracker/internal/session"
)

// chartData carries the three chart series in cents; display formatting
// happens per request since the session currency can change.
type chartData struct {
	ByCategory []core.CategoryAmount
	ByMonth    []core.MonthlyTotal
	ByDay      []core.DailyTotal
}

func (s *Server) loadChartData(r *http.Request, email string) (chartData, error) {
	if data, ok := s.chartsCache.Get(email); ok {
		return data, nil
	}

	var data chartData
	var err error
	if data.ByCategory, err = s.repo.TotalsByCategory(r.Context(), email); err != nil {
		return chartData{}, err
	}
	if data.ByMonth, err = s.repo.TotalsByMonth(r.Context(), email); err != nil {
		return chartData{}, err
	}
	if data.ByDay, err = s.repo.TotalsByDay(r.Context(), email); err != nil {
		return chartData{}, err
	}

	s.chartsCache.Set(email, data)
	return data, nil
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	data, err := s.loadChartData(r, sess.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	type point struct {
		Label   string `json:"label"`
		Amount  string `json:"amount"`
		Display string `json:"display"`
	}

	byCategory := make([]point, 0, len(data.ByCategory))
	for _, c := range data.ByCategory {
		byCategory = append(byCategory, point{
			Label:   c.Category,
			Amount:  c.Total.Decimal(),
			Display: c.Total.Display(sess.Currency, sess.ConvRate),
		})
	}
	byMonth := make([]point, 0, len(data.ByMonth))
	for _, m := range data.ByMonth {
		byMonth = append(byMonth, point{
			Label:   m.Month,
			Amount:  m.Total.Decimal(),
			Display: m.Total.Display(sess.Currency, sess.ConvRate),
		})
	}
	byDay := make([]point, 0, len(data.ByDay))
	for _, d := range data.ByDay {
		byDay = append(byDay, point{
			Label:   d.Date,
			Amount:  d.Total.Decimal(),
			Display: d.Total.Display(sess.Currency, sess.ConvRate),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"by_category": byCategory,
		"by_month":    byMonth,
		"by_day":      byDay,
	})
}

package http

import (
	"net/http"

	"tracker/internal/core"
	"tracker/internal/session"
)

type settingsView struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Theme          string  `json:"theme"`
	Currency       string  `json:"currency"`
	ConvRate       float64 `json:"conversion_rate"`
	SMTPEmail      string  `json:"smtp_email,omitempty"`
	SMTPConfigured bool    `json:"smtp_configured"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, settingsView{
		Name:           sess.Name,
		Email:          sess.Email,
		Theme:          sess.Theme,
		Currency:       sess.Currency,
		ConvRate:       sess.ConvRate,
		SMTPEmail:      sess.SMTPEmail,
		SMTPConfigured: sess.SMTPEmail != "" && sess.SMTPPass != "",
	})
}

type settingsPayload struct {
	Theme        *string  `json:"theme,omitempty"`
	Currency     *string  `json:"currency,omitempty"`
	ConvRate     *float64 `json:"conversion_rate,omitempty"`
	SMTPEmail    *string  `json:"smtp_email,omitempty"`
	SMTPPassword *string  `json:"smtp_password,omitempty"`
}

// handleUpdateSettings patches the session preferences. Omitted fields keep
// their current values; SMTP credentials live only in the session and vanish
// on logout.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var p settingsPayload
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if p.Theme != nil && *p.Theme != "light" && *p.Theme != "dark" {
		writeError(w, http.StatusUnprocessableEntity, "theme must be 'light' or 'dark'")
		return
	}
	if p.Currency != nil {
		if _, ok := core.DisplayCurrencies[*p.Currency]; !ok {
			writeError(w, http.StatusUnprocessableEntity, "unsupported currency")
			return
		}
	}
	if p.ConvRate != nil && *p.ConvRate <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "conversion rate must be positive")
		return
	}

	ok := s.sessions.Update(sess.ID, func(sess *session.Session) {
		if p.Theme != nil {
			sess.Theme = *p.Theme
		}
		if p.Currency != nil {
			sess.Currency = *p.Currency
		}
		if p.ConvRate != nil {
			sess.ConvRate = *p.ConvRate
		}
		if p.SMTPEmail != nil {
			sess.SMTPEmail = sanitizeInput(*p.SMTPEmail)
		}
		if p.SMTPPassword != nil {
			sess.SMTPPass = *p.SMTPPassword
		}
	})
	if !ok {
		writeError(w, http.StatusUnauthorized, "login required")
		return
	}

	updated, _ := s.sessions.Get(sess.ID)
	writeJSON(w, http.StatusOK, settingsView{
		Name:           updated.Name,
		Email:          updated.Email,
		Theme:          updated.Theme,
		Currency:       updated.Currency,
		ConvRate:       updated.ConvRate,
		SMTPEmail:      updated.SMTPEmail,
		SMTPConfigured: updated.SMTPEmail != "" && updated.SMTPPass != "",
	})
}

package http

import (
	"errors"
	"log/slog"
	"net/http"

	"tracker/internal/core"
	applog "tracker/internal/log"
	"tracker/internal/services"
)

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.auth.Signup(r.Context(), sanitizeInput(req.Name), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	sess := s.sessions.Create(user.Email, user.Name)
	s.sessions.SetCookie(w, sess)
	writeJSON(w, http.StatusCreated, map[string]string{
		"email": user.Email,
		"name":  user.Name,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	sess := s.sessions.Create(user.Email, user.Name)
	s.sessions.SetCookie(w, sess)
	slog.InfoContext(r.Context(), "User logged in", applog.FieldUser, user.Email)
	writeJSON(w, http.StatusOK, map[string]string{
		"email": user.Email,
		"name":  user.Name,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.sessions.FromRequest(r); ok {
		s.sessions.Delete(sess.ID)
	}
	s.sessions.ClearCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

type resetRequestPayload struct {
	Email string `json:"email"`
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequestPayload
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Reset usually happens logged out, where no sender credentials exist;
	// the notification channel drops the mail silently in that case.
	var sender services.SenderCredentials
	if sess, ok := s.sessions.FromRequest(r); ok {
		sender = services.SenderCredentials{Email: sess.SMTPEmail, Password: sess.SMTPPass}
	}

	err := s.auth.RequestPasswordReset(r.Context(), req.Email, sender)
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, "email not found")
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset token sent"})
}

type resetConfirmPayload struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmPayload
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.auth.ResetPassword(r.Context(), req.Token, req.Password, req.ConfirmPassword)
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusUnprocessableEntity, "invalid or expired token")
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

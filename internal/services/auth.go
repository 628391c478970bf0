package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tracker/internal/amqp"
	"tracker/internal/core"
)

// Input validation errors surfaced directly to the user.
var (
	ErrMissingFields    = errors.New("all fields are required")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

const resetTokenTTL = time.Hour

// UserStore is the account slice of the repository.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) error
	GetUser(ctx context.Context, email string) (core.User, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	CreateResetToken(ctx context.Context, token, email string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, token string, now time.Time) (string, error)
}

// AuthService owns signup, login, and the token-verified password reset
// flow. Passwords are stored as bcrypt hashes, never in a recoverable form.
type AuthService struct {
	store      UserStore
	publisher  AlertPublisher
	bcryptCost int
}

func NewAuthService(store UserStore, publisher AlertPublisher, bcryptCost int) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{store: store, publisher: publisher, bcryptCost: bcryptCost}
}

// NormalizeEmail is the canonical account key: trimmed and lowercased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a new account. The email is normalized before storage so
// login is case-insensitive.
func (s *AuthService) Signup(ctx context.Context, name, email, password, confirm string) (core.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return core.User{}, ErrMissingFields
	}
	if err := validatePassword(password, confirm); err != nil {
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := core.User{Email: email, Name: name, PasswordHash: string(hash)}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return core.User{}, err
	}
	return user, nil
}

// Login verifies credentials. Unknown emails and wrong passwords both return
// core.ErrInvalidCredentials so the response never reveals which accounts
// exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (core.User, error) {
	email = NormalizeEmail(email)
	user, err := s.store.GetUser(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return core.User{}, core.ErrInvalidCredentials
	}
	return user, nil
}

// RequestPasswordReset issues a single-use token valid for one hour and
// enqueues the reset email. Publishing is best-effort; the token still works
// if the mail never arrives and is re-requestable.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, sender SenderCredentials) error {
	email = NormalizeEmail(email)
	if _, err := s.store.GetUser(ctx, email); err != nil {
		return err
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(resetTokenTTL)
	if err := s.store.CreateResetToken(ctx, token, email, expiresAt); err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}

	if s.publisher != nil {
		msg := amqp.NewPasswordResetMessage(email, token)
		msg.SMTPEmail = sender.Email
		msg.SMTPPassword = sender.Password
		if err := s.publisher.PublishNotification(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish reset token", "error", err, "user", email)
		}
	}

	slog.InfoContext(ctx, "Password reset requested", "user", email)
	return nil
}

// ResetPassword consumes the token and replaces the password. Expired or
// already-used tokens fail with core.ErrNotFound.
func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if err := validatePassword(password, confirm); err != nil {
		return err
	}

	email, err := s.store.ConsumeResetToken(ctx, strings.TrimSpace(token), time.Now())
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, email, string(hash)); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Password reset completed", "user", email)
	return nil
}

func validatePassword(password, confirm string) error {
	if len(password) < 6 {
		return ErrPasswordTooShort
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

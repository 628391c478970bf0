// Package http exposes the tracker as a JSON API: auth, the two ledgers,
// budgets, charts, exports, and settings.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tracker/internal/cache"
	"tracker/internal/core"
	applog "tracker/internal/log"
	"tracker/internal/services"
	"tracker/internal/session"
	"tracker/internal/storage"
)

// Server wires the HTTP routes to the service layer.
type Server struct {
	http.Server

	repo      *storage.Repository
	sessions  *session.Store
	auth      *services.AuthService
	dashboard *services.DashboardService
	forecast  *services.ForecastEngine
	receipts  *services.ReceiptStore

	rateLimiter *rateLimiter

	// Dashboard and chart payloads are cached per user; any ledger or
	// budget write drops the user's entries.
	summaryCache *cache.LRU[core.DashboardSummary]
	chartsCache  *cache.LRU[chartData]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// Deps carries everything the server needs.
type Deps struct {
	Repo      *storage.Repository
	Sessions  *session.Store
	Auth      *services.AuthService
	Dashboard *services.DashboardService
	Forecast  *services.ForecastEngine
	Receipts  *services.ReceiptStore
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		repo:         deps.Repo,
		sessions:     deps.Sessions,
		auth:         deps.Auth,
		dashboard:    deps.Dashboard,
		forecast:     deps.Forecast,
		receipts:     deps.Receipts,
		rateLimiter:  newRateLimiter(),
		summaryCache: cache.NewLRU[core.DashboardSummary](200, 2*time.Minute),
		chartsCache:  cache.NewLRU[chartData](200, 2*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.Register(s.chartsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/signup", s.withMiddleware(s.handleSignup))
	mux.HandleFunc("POST /api/login", s.withMiddleware(s.handleLogin))
	mux.HandleFunc("POST /api/logout", s.withMiddleware(s.handleLogout))
	mux.HandleFunc("POST /api/password-reset/request", s.withMiddleware(s.handleResetRequest))
	mux.HandleFunc("POST /api/password-reset/confirm", s.withMiddleware(s.handleResetConfirm))

	mux.HandleFunc("GET /api/dashboard", s.protected(s.handleDashboard))
	mux.HandleFunc("GET /api/forecast", s.protected(s.handleForecast))
	mux.HandleFunc("GET /api/charts", s.protected(s.handleCharts))

	mux.HandleFunc("GET /api/expenses", s.protected(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.protected(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses/{id}", s.protected(s.handleGetExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.protected(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.protected(s.handleDeleteExpense))
	mux.HandleFunc("POST /api/expenses/{id}/restore", s.protected(s.handleRestoreExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}/purge", s.protected(s.handlePurgeExpense))
	mux.HandleFunc("POST /api/expenses/{id}/receipt", s.protected(s.handleUploadReceipt))
	mux.HandleFunc("GET /api/expenses/{id}/receipt", s.protected(s.handleGetReceipt))

	mux.HandleFunc("GET /api/incomes", s.protected(s.handleListIncomes))
	mux.HandleFunc("POST /api/incomes", s.protected(s.handleCreateIncome))
	mux.HandleFunc("GET /api/incomes/{id}", s.protected(s.handleGetIncome))
	mux.HandleFunc("PUT /api/incomes/{id}", s.protected(s.handleUpdateIncome))
	mux.HandleFunc("DELETE /api/incomes/{id}", s.protected(s.handleDeleteIncome))
	mux.HandleFunc("POST /api/incomes/{id}/restore", s.protected(s.handleRestoreIncome))
	mux.HandleFunc("DELETE /api/incomes/{id}/purge", s.protected(s.handlePurgeIncome))

	mux.HandleFunc("GET /api/trash", s.protected(s.handleListTrash))

	mux.HandleFunc("GET /api/budgets", s.protected(s.handleListBudgets))
	mux.HandleFunc("PUT /api/budgets", s.protected(s.handleSaveBudgets))

	mux.HandleFunc("GET /api/export/expenses.csv", s.protected(s.handleExportExpenses))
	mux.HandleFunc("GET /api/export/incomes.csv", s.protected(s.handleExportIncomes))

	mux.HandleFunc("GET /api/settings", s.protected(s.handleGetSettings))
	mux.HandleFunc("PUT /api/settings", s.protected(s.handleUpdateSettings))

	return s
}

// withMiddleware adds request logging, security headers, and rate limiting.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP,
			applog.FieldUserAgent, r.Header.Get("User-Agent"))

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", applog.FieldClientIP, clientIP, applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds())
	}
}

// protected requires a valid session and hands it to the handler.
func (s *Server) protected(next func(http.ResponseWriter, *http.Request, *session.Session)) http.HandlerFunc {
	return s.withMiddleware(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.FromRequest(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		next(w, r, sess)
	})
}

// invalidateUserCaches drops all cached views for one user. Called on every
// write so totals and charts never show stale data.
func (s *Server) invalidateUserCaches(email string) {
	s.summaryCache.DeletePrefix(email)
	s.chartsCache.DeletePrefix(email)
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

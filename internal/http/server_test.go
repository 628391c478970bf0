package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tracker/internal/services"
	"tracker/internal/session"
	"tracker/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	receipts, err := services.NewReceiptStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewReceiptStore: %v", err)
	}

	sessions := session.NewStore(time.Hour)
	t.Cleanup(sessions.Stop)

	recurrence := services.NewRecurrenceEngine(repo)
	evaluator := services.NewBudgetEvaluator(repo, nil)

	srv := NewServer(":0", Deps{
		Repo:      repo,
		Sessions:  sessions,
		Auth:      services.NewAuthService(repo, nil, bcrypt.MinCost),
		Dashboard: services.NewDashboardService(repo, recurrence, evaluator),
		Forecast:  services.NewForecastEngine(repo),
		Receipts:  receipts,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

// do runs one request through the mux, reusing cookies from earlier calls.
func do(t *testing.T, srv *Server, cookies []*http.Cookie, method, path string, body any) (*httptest.ResponseRecorder, []*http.Cookie) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	if got := rec.Result().Cookies(); len(got) > 0 {
		cookies = got
	}
	return rec, cookies
}

func login(t *testing.T, srv *Server, email string) []*http.Cookie {
	t.Helper()

	rec, cookies := do(t, srv, nil, http.MethodPost, "/api/signup", map[string]string{
		"name":             "Test User",
		"email":            email,
		"password":         "secret1",
		"confirm_password": "secret1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d: %s", rec.Code, rec.Body)
	}
	return cookies
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body, err)
	}
	return out
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)

	cookies := login(t, srv, "u@example.com")

	// Duplicate signup conflicts.
	rec, _ := do(t, srv, nil, http.MethodPost, "/api/signup", map[string]string{
		"name":             "Again",
		"email":            "U@EXAMPLE.COM",
		"password":         "secret2",
		"confirm_password": "secret2",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup status = %d", rec.Code)
	}

	// Wrong password rejected without revealing the account.
	rec, _ = do(t, srv, nil, http.MethodPost, "/api/login", map[string]string{
		"email": "u@example.com", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d", rec.Code)
	}

	// Session works, logout kills it.
	rec, cookies = do(t, srv, cookies, http.MethodGet, "/api/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d: %s", rec.Code, rec.Body)
	}
	rec, cookies = do(t, srv, cookies, http.MethodPost, "/api/logout", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	rec, _ = do(t, srv, cookies, http.MethodGet, "/api/dashboard", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("dashboard after logout status = %d", rec.Code)
	}
}

func TestExpenseLifecycle(t *testing.T) {
	srv := newTestServer(t)
	cookies := login(t, srv, "u@example.com")
	today := time.Now().Format("2006-01-02")

	rec, cookies := do(t, srv, cookies, http.MethodPost, "/api/expenses", map[string]any{
		"date":        today,
		"category":    "Food",
		"amount":      "42.50",
		"description": "groceries",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	created := decodeBody(t, rec)
	id := int64(created["id"].(float64))
	if created["amount"] != "42.50" {
		t.Errorf("amount = %v", created["amount"])
	}
	if created["display"] != "₹42.50" {
		t.Errorf("display = %v, want INR default", created["display"])
	}

	// Future dates are rejected for expenses.
	rec, cookies = do(t, srv, cookies, http.MethodPost, "/api/expenses", map[string]any{
		"date":     time.Now().AddDate(0, 0, 2).Format("2006-01-02"),
		"category": "Food",
		"amount":   "1.00",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("future date status = %d", rec.Code)
	}

	// Soft delete hides it from the list but keeps it in trash.
	rec, cookies = do(t, srv, cookies, http.MethodDelete, fmt.Sprintf("/api/expenses/%d", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body)
	}
	rec, cookies = do(t, srv, cookies, http.MethodGet, "/api/expenses", nil)
	if got := decodeBody(t, rec)["expenses"].([]any); len(got) != 0 {
		t.Errorf("active list has %d entries after delete", len(got))
	}
	rec, cookies = do(t, srv, cookies, http.MethodGet, "/api/trash", nil)
	if got := decodeBody(t, rec)["expenses"].([]any); len(got) != 1 {
		t.Errorf("trash has %d entries", len(got))
	}

	// Restore brings it back; purge after a second delete removes it for good.
	rec, cookies = do(t, srv, cookies, http.MethodPost, fmt.Sprintf("/api/expenses/%d/restore", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore status = %d", rec.Code)
	}

	// Purging an active entry is refused.
	rec, cookies = do(t, srv, cookies, http.MethodDelete, fmt.Sprintf("/api/expenses/%d/purge", id), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("purge active status = %d", rec.Code)
	}

	rec, cookies = do(t, srv, cookies, http.MethodDelete, fmt.Sprintf("/api/expenses/%d", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second delete status = %d", rec.Code)
	}
	rec, _ = do(t, srv, cookies, http.MethodDelete, fmt.Sprintf("/api/expenses/%d/purge", id), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("purge status = %d: %s", rec.Code, rec.Body)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	srv := newTestServer(t)
	alice := login(t, srv, "alice@example.com")
	bob := login(t, srv, "bob@example.com")
	today := time.Now().Format("2006-01-02")

	rec, alice := do(t, srv, alice, http.MethodPost, "/api/expenses", map[string]any{
		"date": today, "category": "Food", "amount": "10.00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	id := int64(decodeBody(t, rec)["id"].(float64))

	rec, _ = do(t, srv, bob, http.MethodGet, fmt.Sprintf("/api/expenses/%d", id), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-user get status = %d, want 404", rec.Code)
	}
	rec, _ = do(t, srv, bob, http.MethodDelete, fmt.Sprintf("/api/expenses/%d", id), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-user delete status = %d, want 404", rec.Code)
	}
	_ = alice
}

func TestBudgetsAndDashboard(t *testing.T) {
	srv := newTestServer(t)
	cookies := login(t, srv, "u@example.com")
	now := time.Now()
	today := now.Format("2006-01-02")
	month := now.Format("2006-01")

	rec, cookies := do(t, srv, cookies, http.MethodPut, "/api/budgets", map[string]any{
		"month":    month,
		"ceilings": map[string]string{"Food": "100.00"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save budgets status = %d: %s", rec.Code, rec.Body)
	}

	rec, cookies = do(t, srv, cookies, http.MethodPost, "/api/expenses", map[string]any{
		"date": today, "category": "Food", "amount": "120.00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	rec, cookies = do(t, srv, cookies, http.MethodPost, "/api/incomes", map[string]any{
		"date": today, "source": "Salary", "amount": "500.00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create income status = %d: %s", rec.Code, rec.Body)
	}

	rec, cookies = do(t, srv, cookies, http.MethodGet, "/api/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d: %s", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	if body["savings"] != "₹380.00" {
		t.Errorf("savings = %v", body["savings"])
	}

	budgets := body["budgets"].([]any)
	if len(budgets) != 1 {
		t.Fatalf("dashboard budgets = %d, want 1", len(budgets))
	}
	food := budgets[0].(map[string]any)
	if food["status"] != "over_budget" {
		t.Errorf("Food status = %v", food["status"])
	}

	// The budgets page lists all categories, including unbudgeted ones.
	rec, _ = do(t, srv, cookies, http.MethodGet, "/api/budgets?month="+month, nil)
	all := decodeBody(t, rec)["budgets"].([]any)
	if len(all) != 6 {
		t.Errorf("budget page categories = %d, want 6", len(all))
	}
}

func TestSettingsCurrencyAffectsDisplay(t *testing.T) {
	srv := newTestServer(t)
	cookies := login(t, srv, "u@example.com")
	today := time.Now().Format("2006-01-02")

	rec, cookies := do(t, srv, cookies, http.MethodPost, "/api/expenses", map[string]any{
		"date": today, "category": "Food", "amount": "100.00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatal(rec.Code)
	}

	rate := 0.012
	rec, cookies = do(t, srv, cookies, http.MethodPut, "/api/settings", map[string]any{
		"currency":        "USD",
		"conversion_rate": rate,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("settings status = %d: %s", rec.Code, rec.Body)
	}

	rec, _ = do(t, srv, cookies, http.MethodGet, "/api/expenses", nil)
	entries := decodeBody(t, rec)["expenses"].([]any)
	first := entries[0].(map[string]any)
	if first["display"] != "$1.20" {
		t.Errorf("display = %v, want $1.20", first["display"])
	}
	if first["amount"] != "100.00" {
		t.Errorf("stored amount changed: %v", first["amount"])
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t)
	cookies := login(t, srv, "u@example.com")
	today := time.Now().Format("2006-01-02")

	rec, cookies := do(t, srv, cookies, http.MethodPost, "/api/expenses", map[string]any{
		"date": today, "category": "Transport", "amount": "9.99", "description": "bus pass",
	})
	if rec.Code != http.StatusCreated {
		t.Fatal(rec.Code)
	}

	rec, _ = do(t, srv, cookies, http.MethodGet, "/api/export/expenses.csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Transport,9.99,bus pass") {
		t.Errorf("csv body = %q", rec.Body)
	}
}

func TestExportCSVHonorsFilters(t *testing.T) {
	srv := newTestServer(t)
	cookies := login(t, srv, "u@example.com")
	today := time.Now().Format("2006-01-02")

	for _, e := range []map[string]any{
		{"date": today, "category": "Food", "amount": "12.00", "description": "lunch at cafe"},
		{"date": today, "category": "Transport", "amount": "5.00", "description": "bus pass"},
	} {
		rec, c := do(t, srv, cookies, http.MethodPost, "/api/expenses", e)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
		}
		cookies = c
	}

	// The export carries the same search filter as the list view.
	rec, cookies := do(t, srv, cookies, http.MethodGet, "/api/export/expenses.csv?search=lunch", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "lunch at cafe") {
		t.Errorf("filtered export missing matching row: %q", body)
	}
	if strings.Contains(body, "bus pass") {
		t.Errorf("filtered export contains non-matching row: %q", body)
	}

	// A date range that excludes everything yields just the header.
	rec, _ = do(t, srv, cookies, http.MethodGet, "/api/export/expenses.csv?from=2000-01-01&to=2000-01-31", nil)
	if got := strings.TrimSpace(rec.Body.String()); got != "ID,Date,Category,Amount,Description" {
		t.Errorf("out-of-range export = %q", got)
	}
}

func TestUpdateKeepsRecurrenceState(t *testing.T) {
	srv := newTestServer(t)
	cookies := login(t, srv, "u@example.com")
	today := time.Now().Format("2006-01-02")

	rec, cookies := do(t, srv, cookies, http.MethodPost, "/api/expenses", map[string]any{
		"date":      today,
		"category":  "Rent/Bills",
		"amount":    "800.00",
		"recurring": true,
		"frequency": "Monthly",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	created := decodeBody(t, rec)
	id := int64(created["id"].(float64))
	nextDate := created["next_date"]

	// Updating the amount must not let the payload rewrite recurrence state.
	rec, _ = do(t, srv, cookies, http.MethodPut, fmt.Sprintf("/api/expenses/%d", id), map[string]any{
		"date":     today,
		"category": "Rent/Bills",
		"amount":   "850.00",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body)
	}
	updated := decodeBody(t, rec)
	if updated["amount"] != "850.00" {
		t.Errorf("amount = %v", updated["amount"])
	}
	if updated["recurring"] != true {
		t.Errorf("recurring = %v, want true after update", updated["recurring"])
	}
	if updated["next_date"] != nextDate {
		t.Errorf("next_date = %v, want %v", updated["next_date"], nextDate)
	}
}

func TestUnauthenticatedRequests(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/dashboard", "/api/expenses", "/api/budgets", "/api/charts"} {
		rec, _ := do(t, srv, nil, http.MethodGet, path, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, rec.Code)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := do(t, srv, nil, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	rec, _ = do(t, srv, nil, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz = %d", rec.Code)
	}
}

package services

import (
	"bytes"
	"strings"
	"testing"

	"tracker/internal/core"
)

func TestWriteExpensesCSV(t *testing.T) {
	entries := []core.ExpenseEntry{
		{
			ID:          1,
			Date:        core.NewDate(2024, 3, 15),
			Category:    "Food",
			Amount:      core.Money{Cents: 12345},
			Description: "weekly groceries, \"organic\"",
		},
		{
			ID:       2,
			Date:     core.NewDate(2024, 3, 16),
			Category: "Transport",
			Amount:   core.Money{Cents: 500},
		},
	}

	var buf bytes.Buffer
	if err := WriteExpensesCSV(&buf, entries); err != nil {
		t.Fatalf("WriteExpensesCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows", len(lines))
	}
	if lines[0] != "ID,Date,Category,Amount,Description" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != `1,2024-03-15,Food,123.45,"weekly groceries, ""organic"""` {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != "2,2024-03-16,Transport,5.00," {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestWriteIncomesCSV(t *testing.T) {
	entries := []core.IncomeEntry{
		{ID: 9, Date: core.NewDate(2024, 3, 1), Source: "Salary", Amount: core.Money{Cents: 500000}},
	}

	var buf bytes.Buffer
	if err := WriteIncomesCSV(&buf, entries); err != nil {
		t.Fatalf("WriteIncomesCSV: %v", err)
	}

	want := "ID,Date,Source,Amount,Description\n9,2024-03-01,Salary,5000.00,\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestWriteExpensesCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteExpensesCSV(&buf, nil); err != nil {
		t.Fatalf("WriteExpensesCSV: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "ID,Date,Category,Amount,Description" {
		t.Errorf("empty export = %q, want header only", got)
	}
}

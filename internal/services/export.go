package services

import (
	"encoding/csv"
	"fmt"
	"io"

	"tracker/internal/core"
)

// WriteExpensesCSV streams the user's active expenses as CSV with a header
// row. Amounts are plain decimals in the stored currency; display conversion
// never applies to exports.
func WriteExpensesCSV(w io.Writer, entries []core.ExpenseEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ID", "Date", "Category", "Amount", "Description"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			fmt.Sprintf("%d", e.ID),
			e.Date.ISO(),
			e.Category,
			e.Amount.Decimal(),
			e.Description,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteIncomesCSV streams the user's active incomes as CSV.
func WriteIncomesCSV(w io.Writer, entries []core.IncomeEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ID", "Date", "Source", "Amount", "Description"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			fmt.Sprintf("%d", e.ID),
			e.Date.ISO(),
			e.Source,
			e.Amount.Decimal(),
			e.Description,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

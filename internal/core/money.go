// Package core provides the domain model for the tracker: ledger entries,
// budgets, money parsing, and budget classification.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// DisplayCurrencies maps the supported display currencies to their symbols.
// Amounts are stored in a single base currency; display conversion applies a
// manual session-level multiplier, never touching stored values.
var DisplayCurrencies = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
}

// ParseDecimalToCents converts a positive decimal string to cents, accepting
// both dot and comma separators and rounding half-up on the third decimal.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// Units returns the amount in whole currency units for display. Use cents
// for arithmetic to avoid floating-point drift.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// Decimal renders cents as a plain "123.45" string for JSON and CSV output.
func (m Money) Decimal() string {
	neg := m.Cents < 0
	c := m.Cents
	if neg {
		c = -c
	}
	s := fmt.Sprintf("%d.%02d", c/100, c%100)
	if neg {
		return "-" + s
	}
	return s
}

// Display formats the amount with a currency symbol after applying the
// session's manual conversion rate.
func (m Money) Display(currency string, rate float64) string {
	sym, ok := DisplayCurrencies[currency]
	if !ok {
		sym = DisplayCurrencies["INR"]
	}
	if rate <= 0 {
		rate = 1.0
	}
	converted := m.Units() * rate
	if converted < 0 {
		return fmt.Sprintf("-%s%.2f", sym, -converted)
	}
	return fmt.Sprintf("%s%.2f", sym, converted)
}

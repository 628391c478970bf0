package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Monthly Frequency = "Monthly"
	Weekly  Frequency = "Weekly"
)

type (
	// Frequency is how often a recurring entry regenerates itself.
	Frequency string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// User is an account identified by its (lowercased) email.
	User struct {
		Email        string
		Name         string
		PasswordHash string
	}

	// ExpenseEntry is a single expense row. DeletedAt marks a trashed row;
	// trashed rows are excluded from every aggregate until restored.
	ExpenseEntry struct {
		ID          int64
		UserEmail   string
		Date        Date
		Category    string
		Amount      Money
		Description string
		ReceiptPath string
		Recurring   bool
		Frequency   Frequency
		NextDate    Date
		DeletedAt   *time.Time
	}

	// IncomeEntry mirrors ExpenseEntry for the income side of the ledger.
	IncomeEntry struct {
		ID          int64
		UserEmail   string
		Date        Date
		Source      string
		Amount      Money
		Description string
		Recurring   bool
		Frequency   Frequency
		NextDate    Date
		DeletedAt   *time.Time
	}

	// CategoryBudget is the spending ceiling for a category in one month.
	// Keyed uniquely by (MonthYear, Category); saving again overwrites.
	CategoryBudget struct {
		MonthYear string // YYYY-MM
		Category  string
		Ceiling   Money
	}
)

// Categories is the fixed expense category enumeration.
var Categories = []string{"Food", "Transport", "Rent/Bills", "Entertainment", "Shopping", "Other"}

// IncomeSources is the fixed income source enumeration.
var IncomeSources = []string{"Salary", "Freelance", "Gift", "Other"}

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrFutureDate         = errors.New("date is in the future")
	ErrInvalidCategory    = errors.New("unknown category")
	ErrInvalidSource      = errors.New("unknown income source")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrNotFound           = errors.New("not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO-8601 date string (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DateOf truncates a time to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ISO returns the date as an ISO-8601 string, the storage format.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// MonthKey returns the YYYY-MM key used by budgets and aggregates.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Advance returns the next due date after from for this frequency.
// Monthly advances by a fixed 30 calendar days, weekly by 7.
func (f Frequency) Advance(from time.Time) time.Time {
	switch f {
	case Weekly:
		return from.AddDate(0, 0, 7)
	default:
		return from.AddDate(0, 0, 30)
	}
}

func (f Frequency) Validate() error {
	switch f {
	case Monthly, Weekly:
		return nil
	default:
		return ErrInvalidFrequency
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func validSource(s string) bool {
	for _, known := range IncomeSources {
		if s == known {
			return true
		}
	}
	return false
}

// Validate checks an expense against the input rules: positive amount,
// known category, no future dates, and recurrence metadata when recurring.
func (e ExpenseEntry) Validate(now time.Time) error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.Date.After(DateOf(now).Time) {
		return ErrFutureDate
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !validCategory(e.Category) {
		return ErrInvalidCategory
	}
	if len(e.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if e.Recurring {
		if err := e.Frequency.Validate(); err != nil {
			return err
		}
		if err := e.NextDate.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate applies the same rules to an income entry, except that income
// may be future-dated (a scheduled salary is legitimate input).
func (i IncomeEntry) Validate() error {
	if err := i.Date.Validate(); err != nil {
		return err
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if !validSource(i.Source) {
		return ErrInvalidSource
	}
	if len(i.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if i.Recurring {
		if err := i.Frequency.Validate(); err != nil {
			return err
		}
		if err := i.NextDate.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate allows a zero ceiling: it means "no budget set" rather than
// being rejected, so users can clear a budget by saving zero.
func (b CategoryBudget) Validate() error {
	if !validCategory(b.Category) {
		return ErrInvalidCategory
	}
	if b.Ceiling.Cents < 0 {
		return ErrInvalidAmount
	}
	if _, err := time.Parse("2006-01", b.MonthYear); err != nil {
		return ErrInvalidDate
	}
	return nil
}

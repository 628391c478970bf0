package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"tracker/internal/core"
)

type fakeForecastStore struct {
	totals []core.MonthlyTotal
}

func (f *fakeForecastStore) TotalsByMonth(ctx context.Context, email string) ([]core.MonthlyTotal, error) {
	return f.totals, nil
}

func months(cents ...int64) []core.MonthlyTotal {
	out := make([]core.MonthlyTotal, len(cents))
	for i, c := range cents {
		out[i] = core.MonthlyTotal{Month: "2024-01", Total: core.Money{Cents: c}}
	}
	return out
}

func TestPredictLinearTrend(t *testing.T) {
	engine := NewForecastEngine(&fakeForecastStore{totals: months(10000, 20000, 30000)})

	f, err := engine.Predict(context.Background(), "u@example.com")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if math.Abs(f.Slope-100) > 1e-9 {
		t.Errorf("Slope = %v, want 100", f.Slope)
	}
	if math.Abs(f.Intercept-100) > 1e-9 {
		t.Errorf("Intercept = %v, want 100", f.Intercept)
	}
	if f.Predicted.Cents != 40000 {
		t.Errorf("Predicted = %d cents, want 40000", f.Predicted.Cents)
	}
}

func TestPredictFlatHistory(t *testing.T) {
	engine := NewForecastEngine(&fakeForecastStore{totals: months(25000, 25000, 25000, 25000)})

	f, err := engine.Predict(context.Background(), "u@example.com")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if math.Abs(f.Slope) > 1e-9 {
		t.Errorf("Slope = %v, want 0", f.Slope)
	}
	if f.Predicted.Cents != 25000 {
		t.Errorf("Predicted = %d cents, want 25000", f.Predicted.Cents)
	}
}

func TestPredictClampsNegativeAtZero(t *testing.T) {
	engine := NewForecastEngine(&fakeForecastStore{totals: months(30000, 15000, 1000)})

	f, err := engine.Predict(context.Background(), "u@example.com")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if f.Raw >= 0 {
		t.Fatalf("Raw = %v, want negative fitted value", f.Raw)
	}
	if f.Predicted.Cents != 0 {
		t.Errorf("Predicted = %d cents, want 0", f.Predicted.Cents)
	}
}

func TestPredictInsufficientHistory(t *testing.T) {
	for _, n := range []int{0, 1, 2} {
		engine := NewForecastEngine(&fakeForecastStore{totals: months(make([]int64, n)...)})
		_, err := engine.Predict(context.Background(), "u@example.com")
		if !errors.Is(err, ErrInsufficientData) {
			t.Errorf("%d months: err = %v, want ErrInsufficientData", n, err)
		}
	}
}

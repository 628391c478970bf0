package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"tracker/internal/core"
)

// ErrInsufficientData means fewer than three months of expense history exist,
// too little to fit a trend line.
var ErrInsufficientData = errors.New("not enough history to forecast")

// ForecastStore yields the chronological month-by-month expense totals.
type ForecastStore interface {
	TotalsByMonth(ctx context.Context, email string) ([]core.MonthlyTotal, error)
}

// ForecastEngine projects next month's spend with an ordinary least squares
// fit over the user's monthly totals.
type ForecastEngine struct {
	store ForecastStore
}

func NewForecastEngine(store ForecastStore) *ForecastEngine {
	return &ForecastEngine{store: store}
}

// Predict fits spend = slope*index + intercept over the months in
// chronological order and evaluates the line at the next index. A flat
// history yields slope zero and a prediction equal to the constant spend.
// The displayed prediction clamps at zero; Raw keeps the fitted value.
func (f *ForecastEngine) Predict(ctx context.Context, email string) (core.Forecast, error) {
	totals, err := f.store.TotalsByMonth(ctx, email)
	if err != nil {
		return core.Forecast{}, fmt.Errorf("totals by month: %w", err)
	}
	if len(totals) < 3 {
		return core.Forecast{Months: len(totals)}, ErrInsufficientData
	}

	ys := make([]float64, len(totals))
	for i, t := range totals {
		ys[i] = t.Total.Units()
	}
	slope, intercept := fitLine(ys)
	raw := slope*float64(len(ys)) + intercept

	predicted := raw
	if predicted < 0 {
		predicted = 0
	}

	return core.Forecast{
		Months:    len(totals),
		Slope:     slope,
		Intercept: intercept,
		Raw:       raw,
		Predicted: core.Money{Cents: int64(math.Round(predicted * 100))},
	}, nil
}

// fitLine is ordinary least squares over y indexed 0..n-1.
func fitLine(ys []float64) (slope, intercept float64) {
	n := float64(len(ys))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

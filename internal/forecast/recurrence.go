// Package forecast computes recurrence windows and inflation-adjusted cost
// estimates for recurring major-maintenance items.
//
// Every function is pure: the current day is always passed in by the caller.
package forecast

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultInflationRate is the yearly cost growth applied to forecasts.
const DefaultInflationRate = 0.03

const daysPerYear = 365.25

// Window is the earliest and latest expected date of the next occurrence.
type Window struct {
	Min time.Time
	Max time.Time
}

// Estimate is a full forecast for one item.
type Estimate struct {
	Window       Window
	ExpectedCost decimal.Decimal
}

// NextDueDates adds minYears and maxYears calendar years to last, keeping
// month and day. A zero last date has no window.
func NextDueDates(last time.Time, minYears, maxYears int) (Window, bool) {
	if last.IsZero() {
		return Window{}, false
	}
	return Window{
		Min: last.AddDate(minYears, 0, 0),
		Max: last.AddDate(maxYears, 0, 0),
	}, true
}

// YearsUntil returns the fractional years from today to target, both
// truncated to their calendar day. Negative values mean target is past.
func YearsUntil(target, today time.Time) (float64, bool) {
	if target.IsZero() {
		return 0, false
	}
	days := startOfDay(target).Sub(startOfDay(today)).Hours() / 24
	return days / daysPerYear, true
}

// InflatedCost grows base by rate per year. Negative years clamp to zero so
// past-due items never forecast below their base cost.
func InflatedCost(base decimal.Decimal, years, rate float64) decimal.Decimal {
	if years < 0 {
		years = 0
	}
	factor := math.Pow(1+rate, years)
	return base.Mul(decimal.NewFromFloat(factor)).Round(2)
}

// Forecast derives the next due window and the cost expected at the start of
// that window from the last occurrence.
func Forecast(last time.Time, amount decimal.Decimal, minYears, maxYears int, today time.Time, rate float64) (Estimate, bool) {
	w, ok := NextDueDates(last, minYears, maxYears)
	if !ok {
		return Estimate{}, false
	}
	years, _ := YearsUntil(w.Min, today)
	return Estimate{
		Window:       w,
		ExpectedCost: InflatedCost(amount, years, rate),
	}, true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package forecast

import "fmt"

// Status is the urgency class of a maintenance item's next due date.
type Status string

const (
	Overdue  Status = "overdue"
	Critical Status = "critical"
	Warning  Status = "warning"
	Good     Status = "good"
)

// Thresholds are the year boundaries of the critical and warning buckets.
type Thresholds struct {
	CriticalYears float64 `toml:"critical_years"`
	WarningYears  float64 `toml:"warning_years"`
}

// Policy bundles the tunables of maintenance forecasting.
type Policy struct {
	InflationRate float64
	Thresholds    Thresholds
}

// DefaultThresholds flags items due within one year as critical and within two as warning.
func DefaultThresholds() Thresholds {
	return Thresholds{CriticalYears: 1, WarningYears: 2}
}

// DefaultPolicy returns DefaultInflationRate with the default thresholds.
func DefaultPolicy() Policy {
	return Policy{
		InflationRate: DefaultInflationRate,
		Thresholds:    DefaultThresholds(),
	}
}

// Validate checks that the thresholds are non-negative and ordered.
func (t Thresholds) Validate() error {
	if t.CriticalYears < 0 || t.WarningYears < t.CriticalYears {
		return fmt.Errorf("invalid status thresholds: critical=%v warning=%v", t.CriticalYears, t.WarningYears)
	}
	return nil
}

// Classify buckets the years remaining until an item is due.
func Classify(yearsUntil float64, t Thresholds) Status {
	switch {
	case yearsUntil < 0:
		return Overdue
	case yearsUntil <= t.CriticalYears:
		return Critical
	case yearsUntil <= t.WarningYears:
		return Warning
	default:
		return Good
	}
}

// Rank orders statuses from most to least urgent.
func (s Status) Rank() int {
	switch s {
	case Overdue:
		return 0
	case Critical:
		return 1
	case Warning:
		return 2
	}
	return 3
}

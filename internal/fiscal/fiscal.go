// Package fiscal maps calendar dates onto the club's October–September
// fiscal year.
//
// Fiscal year Y runs from October 1 of Y-1 through September 30 of Y and is
// named by its September year. Fiscal month 0 is October, 11 is September.
package fiscal

import (
	"fmt"
	"time"
)

// StartMonth is the calendar month fiscal years begin in.
const StartMonth = time.October

var monthLabels = [12]string{
	"Oct", "Nov", "Dec", "Jan", "Feb", "Mar",
	"Apr", "May", "Jun", "Jul", "Aug", "Sep",
}

// MonthOf returns the fiscal month of date within fiscalYear. ok is false
// when the date falls outside that fiscal year.
func MonthOf(date time.Time, fiscalYear int) (month int, ok bool) {
	y, m := date.Year(), int(date.Month())-1
	switch {
	case y == fiscalYear-1 && m >= 9:
		return m - 9, true
	case y == fiscalYear && m <= 8:
		return m + 3, true
	}
	return 0, false
}

// YearOf returns the fiscal year containing date.
func YearOf(date time.Time) int {
	if date.Month() >= StartMonth {
		return date.Year() + 1
	}
	return date.Year()
}

// Locate returns the fiscal year and month of date.
func Locate(date time.Time) (fiscalYear, month int) {
	fiscalYear = YearOf(date)
	month, _ = MonthOf(date, fiscalYear)
	return fiscalYear, month
}

// MonthStart returns the first calendar day of a fiscal month.
func MonthStart(fiscalYear, month int) time.Time {
	return time.Date(fiscalYear-1, StartMonth+time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

// Bounds returns the first and last calendar day of a fiscal year.
func Bounds(fiscalYear int) (first, last time.Time) {
	first = MonthStart(fiscalYear, 0)
	last = time.Date(fiscalYear, StartMonth, 0, 0, 0, 0, 0, time.UTC)
	return first, last
}

// MonthLabel returns the short calendar name of a fiscal month.
func MonthLabel(month int) string {
	if month < 0 || month >= len(monthLabels) {
		return fmt.Sprintf("M%d", month)
	}
	return monthLabels[month]
}

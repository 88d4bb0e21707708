package fiscal

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthOf(t *testing.T) {
	cases := []struct {
		name  string
		date  time.Time
		fy    int
		month int
		ok    bool
	}{
		{"first day", day(2025, time.October, 1), 2026, 0, true},
		{"mid october", day(2025, time.October, 15), 2026, 0, true},
		{"december", day(2025, time.December, 31), 2026, 2, true},
		{"january", day(2026, time.January, 1), 2026, 3, true},
		{"last day", day(2026, time.September, 30), 2026, 11, true},
		{"next year", day(2026, time.October, 1), 2026, 0, false},
		{"previous year", day(2025, time.September, 30), 2026, 0, false},
		{"far past", day(2020, time.March, 1), 2026, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			month, ok := MonthOf(tc.date, tc.fy)
			if ok != tc.ok || month != tc.month {
				t.Fatalf("MonthOf(%s, %d) = %d,%v; want %d,%v", tc.date.Format("2006-01-02"), tc.fy, month, ok, tc.month, tc.ok)
			}
		})
	}
}

func TestMonthOfIsBijection(t *testing.T) {
	for _, fy := range []int{2024, 2025, 2026} {
		first, last := Bounds(fy)
		seen := map[int]bool{}
		for d := first.AddDate(0, 0, -40); d.Before(last.AddDate(0, 0, 40)); d = d.AddDate(0, 0, 1) {
			month, ok := MonthOf(d, fy)
			inside := !d.Before(first) && !d.After(last)
			if ok != inside {
				t.Fatalf("fy %d: %s mapped=%v inside=%v", fy, d.Format("2006-01-02"), ok, inside)
			}
			if !ok {
				continue
			}
			if start := MonthStart(fy, month); start.Year() != d.Year() || start.Month() != d.Month() {
				t.Fatalf("fy %d: %s mapped to month %d starting %s", fy, d.Format("2006-01-02"), month, start.Format("2006-01-02"))
			}
			seen[month] = true
		}
		if len(seen) != 12 {
			t.Fatalf("fy %d: expected 12 distinct months, got %d", fy, len(seen))
		}
	}
}

func TestYearOfAndLocate(t *testing.T) {
	if got := YearOf(day(2025, time.October, 1)); got != 2026 {
		t.Fatalf("expected 2026, got %d", got)
	}
	if got := YearOf(day(2025, time.September, 30)); got != 2025 {
		t.Fatalf("expected 2025, got %d", got)
	}
	fy, m := Locate(day(2026, time.March, 10))
	if fy != 2026 || m != 5 {
		t.Fatalf("Locate = %d/%d, want 2026/5", fy, m)
	}
}

func TestBounds(t *testing.T) {
	first, last := Bounds(2026)
	if !first.Equal(day(2025, time.October, 1)) || !last.Equal(day(2026, time.September, 30)) {
		t.Fatalf("unexpected bounds %s..%s", first, last)
	}
}

func TestMonthLabel(t *testing.T) {
	if MonthLabel(0) != "Oct" || MonthLabel(11) != "Sep" {
		t.Fatalf("unexpected labels %q %q", MonthLabel(0), MonthLabel(11))
	}
	if MonthLabel(12) != "M12" {
		t.Fatalf("expected fallback label, got %q", MonthLabel(12))
	}
}

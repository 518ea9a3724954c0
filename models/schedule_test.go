package models_test

import (
	"testing"
	"time"

	"github.com/photoproos/studio_backend/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int {
	return &v
}

func TestComputeNextRunDate(t *testing.T) {
	cases := []struct {
		name      string
		frequency models.RecurringFrequency
		previous  time.Time
		day       *int
		want      time.Time
	}{
		{"weekly", models.RecurringFrequencyWeekly, date(2025, 12, 29), nil, date(2026, 1, 5)},
		{"biweekly across february", models.RecurringFrequencyBiweekly, date(2025, 2, 20), nil, date(2025, 3, 6)},
		{"monthly on the 15th", models.RecurringFrequencyMonthly, date(2025, 1, 15), intPtr(15), date(2025, 2, 15)},
		{"monthly 31st clamps to february", models.RecurringFrequencyMonthly, date(2025, 1, 31), nil, date(2025, 2, 28)},
		{"monthly 31st clamps to leap february", models.RecurringFrequencyMonthly, date(2024, 1, 31), nil, date(2024, 2, 29)},
		{"monthly 31st clamps to april", models.RecurringFrequencyMonthly, date(2025, 3, 31), intPtr(31), date(2025, 4, 30)},
		{"monthly returns to the 31st after a short month", models.RecurringFrequencyMonthly, date(2025, 2, 28), intPtr(31), date(2025, 3, 31)},
		{"monthly across year end", models.RecurringFrequencyMonthly, date(2025, 12, 10), intPtr(10), date(2026, 1, 10)},
		{"monthly snaps to day of month", models.RecurringFrequencyMonthly, date(2025, 1, 3), intPtr(20), date(2025, 2, 20)},
		{"quarterly", models.RecurringFrequencyQuarterly, date(2025, 1, 15), intPtr(15), date(2025, 4, 15)},
		{"quarterly clamps", models.RecurringFrequencyQuarterly, date(2025, 11, 30), intPtr(31), date(2026, 2, 28)},
		{"yearly", models.RecurringFrequencyYearly, date(2025, 6, 1), nil, date(2026, 6, 1)},
		{"yearly from leap day", models.RecurringFrequencyYearly, date(2024, 2, 29), nil, date(2025, 2, 28)},
		{"yearly back to leap day", models.RecurringFrequencyYearly, date(2027, 2, 28), intPtr(29), date(2028, 2, 29)},
		{"clock part is dropped", models.RecurringFrequencyMonthly, time.Date(2025, 1, 15, 18, 30, 0, 0, time.UTC), nil, date(2025, 2, 15)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := models.ComputeNextRunDate(tc.frequency, tc.previous, tc.day)
			if !got.Equal(tc.want) {
				t.Fatalf("ComputeNextRunDate(%s, %s) = %s, want %s",
					tc.frequency, tc.previous.Format("2006-01-02"), got.Format("2006-01-02"), tc.want.Format("2006-01-02"))
			}
		})
	}
}

func TestComputeNextRunDate_AlwaysAdvances(t *testing.T) {
	frequencies := []models.RecurringFrequency{
		models.RecurringFrequencyWeekly, models.RecurringFrequencyBiweekly, models.RecurringFrequencyMonthly,
		models.RecurringFrequencyQuarterly, models.RecurringFrequencyYearly,
	}
	start := date(2023, 1, 1)
	for d := 0; d < 3*366; d++ {
		prev := start.AddDate(0, 0, d)
		for _, f := range frequencies {
			for _, day := range []*int{nil, intPtr(1), intPtr(28), intPtr(31)} {
				next := models.ComputeNextRunDate(f, prev, day)
				if !next.After(prev) {
					t.Fatalf("%s from %s (day %v) gave %s, not after input", f, prev.Format("2006-01-02"), day, next.Format("2006-01-02"))
				}
			}
		}
	}
}

// A day-of-month past the end of a month must land on that month's last day, never in the next month.
func TestComputeNextRunDate_ClampsToLastDay(t *testing.T) {
	for _, f := range []models.RecurringFrequency{models.RecurringFrequencyMonthly, models.RecurringFrequencyQuarterly} {
		step := 1
		if f == models.RecurringFrequencyQuarterly {
			step = 3
		}
		for m := time.January; m <= time.December; m++ {
			for _, year := range []int{2024, 2025} {
				prev := date(year, m, 1)
				next := models.ComputeNextRunDate(f, prev, intPtr(31))

				target := prev.AddDate(0, step, 0)
				if next.Month() != target.Month() || next.Year() != target.Year() {
					t.Fatalf("%s from %s rolled into %s", f, prev.Format("2006-01-02"), next.Format("2006-01-02"))
				}
				if want := models.DaysInMonth(target.Year(), target.Month()); next.Day() != want {
					t.Fatalf("%s from %s gave day %d, want %d", f, prev.Format("2006-01-02"), next.Day(), want)
				}
			}
		}
	}
}

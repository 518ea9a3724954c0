package models

import (
	"time"

	"github.com/photoproos/studio_backend/utils"
)

// ComputeNextRunDate returns the first cycle date strictly after previous.
//
// Month-based frequencies snap to dayOfMonth (or previous's day when nil) and clamp
// to the last day of a shorter target month: Jan 31 monthly gives Feb 28 (29 in leap
// years), never Mar 3. Yearly keeps the month and clamps Feb 29 to Feb 28; passing the
// anchor day as dayOfMonth brings it back to the 29th in the next leap year.
func ComputeNextRunDate(frequency RecurringFrequency, previous time.Time, dayOfMonth *int) time.Time {
	prev := utils.ToDate(previous)
	day := prev.Day()
	if dayOfMonth != nil {
		day = *dayOfMonth
	}

	switch frequency {
	case RecurringFrequencyWeekly:
		return prev.AddDate(0, 0, 7)
	case RecurringFrequencyBiweekly:
		return prev.AddDate(0, 0, 14)
	case RecurringFrequencyQuarterly:
		return addMonthsClamped(prev, 3, day)
	case RecurringFrequencyYearly:
		return addMonthsClamped(prev, 12, day)
	default:
		return addMonthsClamped(prev, 1, day)
	}
}

func addMonthsClamped(d time.Time, months int, day int) time.Time {
	idx := int(d.Month()) - 1 + months
	year := d.Year() + idx/12
	month := time.Month(idx%12 + 1)

	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days in month of year.
func DaysInMonth(year int, month time.Month) int {
	// day 0 of the following month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Package datetime provides month and day helpers for schedules and bookings.
package datetime

import (
	"fmt"
	"time"

	"github.com/iwvelando/dealership-quote/pkg/constants"
)

const (
	// DateTimeLayout is the month format used by amortization schedules.
	DateTimeLayout = constants.DateTimeLayout

	// DayLayout is the format used by test-drive bookings.
	DayLayout = constants.DayLayout
)

// MonthSequence returns count consecutive months starting at start.
func MonthSequence(start string, count int) ([]string, error) {
	startT, err := time.Parse(DateTimeLayout, start)
	if err != nil {
		return nil, fmt.Errorf("invalid start month %q: %w", start, err)
	}
	if count <= 0 {
		return nil, nil
	}
	months := make([]string, count)
	for i := range months {
		months[i] = startT.AddDate(0, i, 0).Format(DateTimeLayout)
	}
	return months, nil
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", day, err)
	}
	return t, nil
}

// DayBefore returns true if day falls on a calendar day strictly before ref.
func DayBefore(day time.Time, ref time.Time) bool {
	ry, rm, rd := ref.Date()
	refDay := time.Date(ry, rm, rd, 0, 0, 0, 0, time.UTC)
	dy, dm, dd := day.Date()
	return time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC).Before(refDay)
}

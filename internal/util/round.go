// Package util provides common helpers for lot rounding and expiration
// day counting.
package util

import (
	"math"
	"time"
)

// RoundToLot rounds x to the nearest multiple of the lot size. A lot size
// of zero or less returns x truncated toward the nearest integer.
func RoundToLot(x float64, lot int) int {
	if lot <= 0 {
		return int(math.Round(x))
	}
	return int(math.Round(x/float64(lot))) * lot
}

// CalendarDaysBetween returns the calendar days from one date to another,
// floored at zero.
func CalendarDaysBetween(from, to time.Time) int {
	f := from.UTC().Truncate(24 * time.Hour)
	t := to.UTC().Truncate(24 * time.Hour)
	d := int(t.Sub(f).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// BusinessDaysBetween counts the weekdays in [from, to), floored at zero.
// Exchange holidays are not modeled.
func BusinessDaysBetween(from, to time.Time) int {
	f := from.UTC().Truncate(24 * time.Hour)
	t := to.UTC().Truncate(24 * time.Hour)
	if !f.Before(t) {
		return 0
	}
	days := 0
	for d := f; d.Before(t); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}

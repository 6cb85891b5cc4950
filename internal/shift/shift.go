// Package shift computes the business-day window used for cash-register
// closing. A business day starts at the boundary hour (06:00 by default)
// in the shop's fixed-offset timezone, not at midnight: the sale rung up
// at 05:59 still belongs to yesterday's shift.
package shift

import (
	"fmt"
	"time"
)

const DayFormat = "2006-01-02"

type Windowing struct {
	loc          *time.Location
	boundaryHour int
}

// New builds a Windowing for a fixed UTC offset in hours. Sales are stored
// in UTC; the offset only moves the day boundary.
func New(utcOffsetHours int, boundaryHour int) Windowing {
	if boundaryHour < 0 || boundaryHour > 23 {
		boundaryHour = 6
	}
	name := fmt.Sprintf("UTC%+d", utcOffsetHours)
	return Windowing{
		loc:          time.FixedZone(name, utcOffsetHours*3600),
		boundaryHour: boundaryHour,
	}
}

func (w Windowing) Location() *time.Location {
	return w.loc
}

// WindowOf returns the UTC half-open interval [start, end) covering the
// given business day.
func (w Windowing) WindowOf(day time.Time) (time.Time, time.Time) {
	local := time.Date(day.Year(), day.Month(), day.Day(), w.boundaryHour, 0, 0, 0, w.loc)
	return local.UTC(), local.Add(24 * time.Hour).UTC()
}

// DayOf maps a timestamp to the business day it belongs to.
func (w Windowing) DayOf(t time.Time) time.Time {
	local := t.In(w.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, w.loc)
	if local.Hour() < w.boundaryHour {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// ParseDay parses a YYYY-MM-DD business-day string in the shop timezone.
func (w Windowing) ParseDay(raw string) (time.Time, error) {
	parsed, err := time.ParseInLocation(DayFormat, raw, w.loc)
	if err != nil {
		return time.Time{}, err
	}
	return parsed, nil
}

// FormatDay renders a business day as YYYY-MM-DD in the shop timezone.
func (w Windowing) FormatDay(day time.Time) string {
	return day.In(w.loc).Format(DayFormat)
}

// Today returns the business day the given instant falls in.
func (w Windowing) Today(now time.Time) time.Time {
	return w.DayOf(now)
}

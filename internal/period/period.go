// Package period maps symbolic period tokens to half-open calendar intervals.
//
// All computations derive new time values from the reference instant; the
// reference is never modified, so resolving "week" and then "month" from the
// same instant always yields consistent boundaries.
package period

import (
	"strings"
	"time"
)

type Token string

const (
	Day   Token = "day"
	Week  Token = "week"
	Month Token = "month"
	Year  Token = "year"
	All   Token = "all"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls in [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Empty reports whether the interval contains no instant.
func (iv Interval) Empty() bool {
	return !iv.Start.Before(iv.End)
}

// ParseToken normalises user input. Unknown or empty values map to All.
func ParseToken(s string) Token {
	switch t := Token(strings.ToLower(strings.TrimSpace(s))); t {
	case Day, Week, Month, Year:
		return t
	default:
		return All
	}
}

// Resolve returns the interval for token relative to ref, in ref's location.
//
// All covers everything from the Unix epoch up to and including ref.
func Resolve(token Token, ref time.Time) Interval {
	loc := ref.Location()
	y, m, d := ref.Date()

	switch token {
	case Day:
		start := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return Interval{Start: start, End: start.AddDate(0, 0, 1)}
	case Week:
		today := time.Date(y, m, d, 0, 0, 0, 0, loc)
		start := today.AddDate(0, 0, -int(ref.Weekday()))
		return Interval{Start: start, End: start.AddDate(0, 0, 7)}
	case Month:
		return MonthOf(y, m, loc)
	case Year:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return Interval{Start: start, End: start.AddDate(1, 0, 0)}
	default:
		return Interval{Start: time.Unix(0, 0).In(loc), End: ref.Add(time.Nanosecond)}
	}
}

// MonthOf returns the interval of a calendar month.
func MonthOf(year int, month time.Month, loc *time.Location) Interval {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Interval{Start: start, End: start.AddDate(0, 1, 0)}
}

// DayOf returns the interval of the calendar day containing t.
func DayOf(t time.Time) Interval {
	return Resolve(Day, t)
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

func (ym YearMonth) Interval(loc *time.Location) Interval {
	return MonthOf(ym.Year, ym.Month, loc)
}

// Previous returns the month before ym, wrapping January to December.
func (ym YearMonth) Previous() YearMonth {
	if ym.Month == time.January {
		return YearMonth{Year: ym.Year - 1, Month: time.December}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month - 1}
}

// SameMonthLastYear returns the same calendar month one year earlier.
func (ym YearMonth) SameMonthLastYear() YearMonth {
	return YearMonth{Year: ym.Year - 1, Month: ym.Month}
}

// DaysIn returns the number of days in the month.
func (ym YearMonth) DaysIn() int {
	return time.Date(ym.Year, ym.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Trailing returns the n months ending with ym, oldest first.
func (ym YearMonth) Trailing(n int) []YearMonth {
	if n <= 0 {
		return nil
	}
	out := make([]YearMonth, n)
	cur := ym
	for i := n - 1; i >= 0; i-- {
		out[i] = cur
		cur = cur.Previous()
	}
	return out
}

// Valid reports whether the month is within 1..12.
func (ym YearMonth) Valid() bool {
	return ym.Month >= time.January && ym.Month <= time.December
}

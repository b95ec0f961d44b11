package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Supported year range for base and resolved dates.
const (
	MinYear = -9999
	MaxYear = 9999
)

// Date is a calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseBaseDate parses a MM/DD/YYYY field into a validated Date.
// Out-of-range days are rejected, never clamped.
func ParseBaseDate(s string) (Date, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("%w: %q; expected MM/DD/YYYY", ErrDateFormat, s)
	}

	month, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q: month %q is not a number", ErrDateFormat, s, parts[0])
	}
	day, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q: day %q is not a number", ErrDateFormat, s, parts[1])
	}
	year, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q: year %q is not a number", ErrDateFormat, s, parts[2])
	}

	if month < 1 || month > 12 {
		return Date{}, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}

	d := Date{Year: int(year), Month: time.Month(month), Day: int(day)}
	if !d.Valid() {
		return Date{}, fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	return d, nil
}

// AddMonths advances d by offset whole months, keeping the day of month.
// It reports false when the target month has no such day (for example
// January 31 plus one month), or when the result leaves the supported range.
func AddMonths(d Date, offset int) (Date, bool) {
	total := d.Year*12 + int(d.Month-1) + offset
	year := floorDiv(total, 12)
	month := time.Month(floorMod(total, 12) + 1)

	out := Date{Year: year, Month: month, Day: d.Day}
	if !out.Valid() {
		return Date{}, false
	}
	return out, true
}

// Valid reports whether d names a real day in the supported range.
func (d Date) Valid() bool {
	if d.Year < MinYear || d.Year > MaxYear {
		return false
	}
	if d.Month < time.January || d.Month > time.December {
		return false
	}
	return d.Day >= 1 && d.Day <= DaysIn(d.Year, d.Month)
}

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Unix returns the Unix timestamp of midnight UTC on d.
func (d Date) Unix() int64 {
	return d.Time().Unix()
}

// String formats d as MM/DD/YYYY.
func (d Date) String() string {
	return fmt.Sprintf("%02d/%02d/%04d", int(d.Month), d.Day, d.Year)
}

// DateFromUnix returns the UTC calendar date containing ts.
func DateFromUnix(ts int64) Date {
	t := time.Unix(ts, 0).UTC()
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// DaysIn returns the number of days in the given month of the proleptic
// Gregorian calendar.
func DaysIn(year int, month time.Month) int {
	switch month {
	case time.February:
		if isLeap(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// floorDiv and floorMod round toward negative infinity so that negative
// flat month indices decompose to the right year.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

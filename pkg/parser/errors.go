package parser

import (
	"errors"
	"fmt"
)

// Error categories returned by the codec. Callers match them with errors.Is.
var (
	// ErrIO is returned when a data file cannot be opened or read.
	ErrIO = errors.New("io error")

	// ErrMalformedRecord is returned when a record cannot be decoded as text.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrMissingDateColumn is returned for a record with no base date field.
	ErrMissingDateColumn = errors.New("missing date column")

	// ErrDateFormat is returned when a base date is not MM/DD/YYYY.
	ErrDateFormat = errors.New("invalid date format")

	// ErrInvalidMonth is returned when a base date month is outside 1-12.
	ErrInvalidMonth = errors.New("invalid month")

	// ErrInvalidDate is returned when a base date is not a real calendar date.
	ErrInvalidDate = errors.New("invalid date")

	// ErrNumericParse is returned when a value field is not a float literal.
	ErrNumericParse = errors.New("invalid numeric value")
)

// RowError locates a codec failure within a data file.
type RowError struct {
	// Source is the file (or reader name) the record came from.
	Source string

	// Line is the 1-based line number of the record, 0 if unknown.
	Line int

	// Column is the 0-based field index, -1 when the whole record is at fault.
	Column int

	// Err is the underlying error, which wraps one of the Err* sentinels.
	Err error
}

func (e *RowError) Error() string {
	loc := e.Source
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
	}
	if e.Column >= 0 {
		return fmt.Sprintf("%s: column %d: %v", loc, e.Column, e.Err)
	}
	return fmt.Sprintf("%s: %v", loc, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

package parser

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// MaterializeRow converts a raw record into a RowData.
//
// Value columns are read left to right. The first empty field ends the row;
// later fields are never looked at. A value whose month offset lands on a
// day that does not exist (February 31) is dropped without error.
func MaterializeRow(rec *RawRecord) (RowData, error) {
	if len(rec.Fields) == 0 {
		return RowData{}, rowError(rec, -1, ErrMissingDateColumn)
	}

	baseField := rec.Fields[0]
	if !utf8.ValidString(baseField) {
		return RowData{}, rowError(rec, 0, fmt.Errorf("%w: date field is not valid UTF-8", ErrMalformedRecord))
	}
	base, err := ParseBaseDate(baseField)
	if err != nil {
		return RowData{}, rowError(rec, 0, err)
	}

	n := len(rec.Fields) - 1
	row := RowData{
		Timestamps: make([]int64, 0, n),
		Values:     make([]float64, 0, n),
	}

	for i := 1; i < len(rec.Fields); i++ {
		field := rec.Fields[i]
		if field == "" {
			break
		}
		if !utf8.ValidString(field) {
			return RowData{}, rowError(rec, i, fmt.Errorf("%w: value field is not valid UTF-8", ErrMalformedRecord))
		}

		val, err := parseValue(field)
		if err != nil {
			return RowData{}, rowError(rec, i, err)
		}

		date, ok := AddMonths(base, i-1)
		if !ok {
			continue
		}

		row.Timestamps = append(row.Timestamps, date.Unix())
		row.Values = append(row.Values, val)
	}

	return row, nil
}

// parseValue parses a float64 literal. Out-of-range literals saturate to
// +/-Inf rather than failing.
func parseValue(s string) (float64, error) {
	val, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: could not parse %q as float64", ErrNumericParse, s)
	}
	return val, nil
}

func rowError(rec *RawRecord, column int, err error) error {
	return &RowError{
		Source: rec.Source,
		Line:   rec.Line,
		Column: column,
		Err:    err,
	}
}

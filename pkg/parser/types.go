// Package parser reads wide-format calendar CSV files and converts each row
// into a sequence of (Unix timestamp, value) pairs.
//
// Column 0 of every row holds a MM/DD/YYYY base date. Column i (i >= 1) holds
// the observation for the month i-1 months after the base date.
package parser

import (
	"encoding/json"
	"math"
	"strconv"
)

// RawRecord is one CSV record before any field is interpreted.
type RawRecord struct {
	// Fields holds the record's fields in column order.
	Fields []string

	// Source is the file path this record came from.
	Source string

	// Line is the 1-based line number where the record starts.
	Line int
}

// RowData is the output of one materialized row. Timestamps and Values are
// index aligned and always the same length.
type RowData struct {
	// Timestamps holds Unix seconds at UTC midnight, ascending.
	Timestamps []int64 `json:"timestamps"`

	// Values holds the observation for the matching timestamp.
	Values []float64 `json:"values"`
}

// MarshalJSON encodes the row with non-finite values as null.
func (r RowData) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Timestamps []int64 `json:"timestamps"`
		Values     Floats  `json:"values"`
	}{r.Timestamps, r.Values})
}

// Len returns the number of points in the row.
func (r RowData) Len() int {
	return len(r.Timestamps)
}

// Point is a single observation.
type Point struct {
	Timestamp int64
	Value     float64
}

// Points returns the row as a slice of points.
func (r RowData) Points() []Point {
	points := make([]Point, len(r.Timestamps))
	for i := range r.Timestamps {
		points[i] = Point{Timestamp: r.Timestamps[i], Value: r.Values[i]}
	}
	return points
}

// Dataset holds every row of one file, in input order.
type Dataset struct {
	// Source is the file path (or reader name) the rows came from.
	Source string `json:"source"`

	// Rows holds one entry per non-blank input line.
	Rows []RowData `json:"rows"`
}

// Len returns the number of rows in the dataset.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Points returns the total number of points across all rows.
func (d *Dataset) Points() int {
	n := 0
	for _, r := range d.Rows {
		n += r.Len()
	}
	return n
}

// Floats is a float64 slice that encodes to JSON with NaN and +/-Inf as
// null. Out-of-range literals in data files parse to +/-Inf, which
// encoding/json refuses to encode.
type Floats []float64

// MarshalJSON implements json.Marshaler.
func (f Floats) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	buf := make([]byte, 0, 2+8*len(f))
	buf = append(buf, '[')
	for i, v := range f {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
	}
	return append(buf, ']'), nil
}

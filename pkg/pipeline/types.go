// Package pipeline runs the codec and a forecasting model over data files.
package pipeline

import (
	"time"

	"juneau/pkg/forecast"
	"juneau/pkg/parser"
)

// SeriesResult is the forecast for one input row.
type SeriesResult struct {
	// ID is the human-readable identifier, "file N row M".
	ID string `json:"id"`

	// Source is the data file the row came from.
	Source string `json:"source"`

	// File is the 1-based position of the file in the run.
	File int `json:"file"`

	// Row is the 0-based row index within the file.
	Row int `json:"row"`

	// Input is the parsed row handed to the model.
	Input parser.RowData `json:"input"`

	// Prediction is the model output, nil when the row was skipped.
	Prediction *forecast.Prediction `json:"prediction,omitempty"`

	// Skipped is set when the row had too few points to forecast.
	Skipped bool `json:"skipped,omitempty"`
}

// FileError records a data file that could not be processed.
type FileError struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
}

// Error returns the error text.
func (e FileError) Error() string {
	return e.Source + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e FileError) Unwrap() error {
	return e.Err
}

// RunResult contains the output of a complete run.
type RunResult struct {
	// Results holds one entry per row, ordered by file then row.
	Results []*SeriesResult

	// FileErrors lists files that failed (only populated in keep-going mode).
	FileErrors []FileError

	// Metadata provides context about the run.
	Metadata RunMetadata
}

// RunMetadata provides context about the run.
type RunMetadata struct {
	Files         []string
	Model         string
	RowsProcessed int
	StartTime     time.Time
	EndTime       time.Time
}

// Forecasts returns the number of rows that were forecast.
func (r *RunResult) Forecasts() int {
	count := 0
	for _, s := range r.Results {
		if s.Prediction != nil {
			count++
		}
	}
	return count
}

// Points returns the number of input points across all rows.
func (r *RunResult) Points() int {
	count := 0
	for _, s := range r.Results {
		count += s.Input.Len()
	}
	return count
}

// HasErrors returns true if any file failed.
func (r *RunResult) HasErrors() bool {
	return len(r.FileErrors) > 0
}

// Point kinds used when a series is flattened for output or storage.
const (
	KindActual   = "actual"
	KindFitted   = "fitted"
	KindForecast = "forecast"
)

// FutureStart returns the index of the first predicted point past the
// input data, or 0 when there is no prediction.
func (s *SeriesResult) FutureStart() int {
	if s.Prediction == nil {
		return 0
	}
	if s.Input.Len() == 0 {
		return 0
	}
	last := s.Input.Timestamps[s.Input.Len()-1]
	for i, ts := range s.Prediction.Timestamps {
		if ts > last {
			return i
		}
	}
	return s.Prediction.Len()
}

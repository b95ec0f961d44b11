package output

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"juneau/pkg/forecast"
	"juneau/pkg/parser"
	"juneau/pkg/pipeline"
)

var csvHeader = []string{"id", "source", "kind", "date", "timestamp", "value", "lower", "upper"}

// CSVFormatter formats reports as long-format CSV, one line per point.
type CSVFormatter struct {
	opts FormatOptions
}

// NewCSVFormatter creates a new CSV formatter with the given options.
func NewCSVFormatter(opts FormatOptions) *CSVFormatter {
	return &CSVFormatter{opts: opts}
}

// Name returns the format name.
func (f *CSVFormatter) Name() string {
	return "csv"
}

// Format renders the report as CSV. Actual and fitted points are included
// only in verbose mode.
func (f *CSVFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	cw := csv.NewWriter(w)

	if f.opts.Quiet {
		_ = cw.Write([]string{"files_processed", "files_failed", "series", "points", "forecasts"})
		_ = cw.Write([]string{
			strconv.Itoa(report.Summary.FilesProcessed),
			strconv.Itoa(report.Summary.FilesFailed),
			strconv.Itoa(report.Summary.Series),
			strconv.Itoa(report.Summary.Points),
			strconv.Itoa(report.Summary.Forecasts),
		})
		cw.Flush()
		return cw.Error()
	}

	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, result := range report.Results {
		if f.opts.Verbose {
			for i, ts := range result.Input.Timestamps {
				if err := cw.Write(pointRecord(result.ID, result.Source, pipeline.KindActual, ts, result.Input.Values[i], nil, -1)); err != nil {
					return err
				}
			}
		}

		pred := result.Prediction
		if pred == nil {
			continue
		}
		start := result.FutureStart()
		for i := 0; i < pred.Len(); i++ {
			kind := pipeline.KindForecast
			if i < start {
				if !f.opts.Verbose {
					continue
				}
				kind = pipeline.KindFitted
			}
			if err := cw.Write(pointRecord(result.ID, result.Source, kind, pred.Timestamps[i], pred.Point[i], pred, i)); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func pointRecord(id, source, kind string, ts int64, value float64, pred *forecast.Prediction, i int) []string {
	lower, upper := "", ""
	if pred != nil && pred.HasInterval() {
		lower = formatFloat(pred.Lower[i])
		upper = formatFloat(pred.Upper[i])
	}
	return []string{
		id,
		source,
		kind,
		parser.DateFromUnix(ts).String(),
		strconv.FormatInt(ts, 10),
		formatFloat(value),
		lower,
		upper,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

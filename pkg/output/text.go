package output

import (
	"context"
	"fmt"
	"io"

	"juneau/pkg/parser"
	"juneau/pkg/pipeline"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "Juneau: %d files, %d series, %d points, %d forecasts, %d failed files\n",
		report.Summary.FilesProcessed,
		report.Summary.Series,
		report.Summary.Points,
		report.Summary.Forecasts,
		report.Summary.FilesFailed)
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	// Header
	fmt.Fprintln(w, "=== Juneau Forecast Report ===")
	fmt.Fprintln(w)

	for _, result := range report.Results {
		f.formatSeries(result, report.Metadata.Model, w)
	}

	if len(report.Errors) > 0 {
		fmt.Fprintln(w, "Failed files:")
		for _, fe := range report.Errors {
			fmt.Fprintf(w, "  - %s: %s\n", fe.Source, fe.Error)
		}
		fmt.Fprintln(w)
	}

	// Summary
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d files processed, %d failed, %d series, %d points, %d forecasts\n",
		report.Summary.FilesProcessed,
		report.Summary.FilesFailed,
		report.Summary.Series,
		report.Summary.Points,
		report.Summary.Forecasts)

	if f.opts.Verbose {
		fmt.Fprintf(w, "Model: %s\n", report.Metadata.Model)
		if report.Metadata.RunID != "" {
			fmt.Fprintf(w, "Run ID: %s\n", report.Metadata.RunID)
		}
		_, err := fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
		return err
	}

	return nil
}

func (f *TextFormatter) formatSeries(result *pipeline.SeriesResult, model string, w io.Writer) {
	fmt.Fprintf(w, "[%s] %s\n", result.ID, result.Source)

	in := result.Input
	if in.Len() == 0 {
		fmt.Fprintln(w, "  Input: no points")
	} else {
		fmt.Fprintf(w, "  Input: %d point(s), %s .. %s\n",
			in.Len(),
			parser.DateFromUnix(in.Timestamps[0]),
			parser.DateFromUnix(in.Timestamps[in.Len()-1]))
	}

	if f.opts.Verbose {
		for i, ts := range in.Timestamps {
			fmt.Fprintf(w, "    %s  %g\n", parser.DateFromUnix(ts), in.Values[i])
		}
	}

	if result.Skipped || result.Prediction == nil {
		fmt.Fprintln(w, "  Skipped: too few points to forecast")
		fmt.Fprintln(w)
		return
	}

	pred := result.Prediction
	start := result.FutureStart()
	if start == pred.Len() {
		fmt.Fprintf(w, "  Forecast (%s): no future months\n", model)
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "  Forecast (%s):\n", model)
	for i := start; i < pred.Len(); i++ {
		if pred.HasInterval() {
			fmt.Fprintf(w, "    %s  %.4f  [%.4f, %.4f]\n",
				parser.DateFromUnix(pred.Timestamps[i]), pred.Point[i], pred.Lower[i], pred.Upper[i])
		} else {
			fmt.Fprintf(w, "    %s  %.4f\n", parser.DateFromUnix(pred.Timestamps[i]), pred.Point[i])
		}
	}
	fmt.Fprintln(w)
}

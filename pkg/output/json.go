package output

import (
	"context"
	"encoding/json"
	"io"
)

// JSONFormatter writes the report as indented JSON.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// quietReport is the summary with failed files alongside, flattened into
// one object.
type quietReport struct {
	Summary
	Errors []FileError `json:"errors,omitempty"`
}

// Format encodes the report. Quiet mode drops results and metadata.
// Non-finite values in rows and predictions are written as null.
func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	if f.opts.Quiet {
		return enc.Encode(quietReport{Summary: report.Summary, Errors: report.Errors})
	}
	return enc.Encode(report)
}

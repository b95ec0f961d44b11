// Package output provides formatting and output generation for forecast runs.
package output

import (
	"time"

	"juneau/pkg/pipeline"
)

// Report is the complete run output.
type Report struct {
	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	// Results contains one entry per input row.
	Results []*pipeline.SeriesResult `json:"results"`

	// Errors lists data files that could not be processed.
	Errors []FileError `json:"errors,omitempty"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate statistics.
type Summary struct {
	// FilesProcessed is the number of data files that parsed and forecast cleanly.
	FilesProcessed int `json:"files_processed"`

	// FilesFailed is the number of data files skipped in keep-going mode.
	FilesFailed int `json:"files_failed"`

	// Series is the number of rows across all processed files.
	Series int `json:"series"`

	// Points is the number of input points across all rows.
	Points int `json:"points"`

	// Forecasts is the number of rows the model was run on.
	Forecasts int `json:"forecasts"`
}

// FileError is a failed data file in serializable form.
type FileError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Metadata provides context about the run.
type Metadata struct {
	// RunID identifies the run in the store, if one was used.
	RunID string `json:"run_id,omitempty"`

	// ConfigFile is the path to the configuration file used, if any.
	ConfigFile string `json:"config_file,omitempty"`

	// Model is the forecasting model name.
	Model string `json:"model"`

	// Sources lists the data files in argument order.
	Sources []string `json:"sources"`

	// AnalyzedAt is when the run finished.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`
}

// NewReport creates a Report from a pipeline run.
func NewReport(result *pipeline.RunResult, configFile string) *Report {
	report := &Report{
		Results: result.Results,
		Metadata: Metadata{
			ConfigFile: configFile,
			Model:      result.Metadata.Model,
			Sources:    result.Metadata.Files,
			AnalyzedAt: result.Metadata.EndTime,
			Duration:   result.Metadata.EndTime.Sub(result.Metadata.StartTime),
		},
		Summary: Summary{
			FilesProcessed: len(result.Metadata.Files) - len(result.FileErrors),
			FilesFailed:    len(result.FileErrors),
			Series:         len(result.Results),
			Points:         result.Points(),
			Forecasts:      result.Forecasts(),
		},
	}

	for _, fe := range result.FileErrors {
		report.Errors = append(report.Errors, FileError{Source: fe.Source, Error: fe.Err.Error()})
	}

	return report
}

// HasErrors returns true if any data file failed.
func (r *Report) HasErrors() bool {
	return r.Summary.FilesFailed > 0
}

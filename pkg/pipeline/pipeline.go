package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"juneau/pkg/forecast"
	"juneau/pkg/parser"
)

// Runner parses data files and forecasts every row.
type Runner struct {
	model forecast.Forecaster

	// Options
	workers   int
	keepGoing bool
	minPoints int
	progress  io.Writer
	logger    *log.Logger
}

// Option configures runner behavior.
type Option func(*Runner)

// WithWorkers sets how many files are processed at once.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithKeepGoing records failing files and continues with the rest instead
// of failing the run. A failing file still contributes no rows.
func WithKeepGoing(v bool) Option {
	return func(r *Runner) {
		r.keepGoing = v
	}
}

// WithMinPoints skips forecasting rows with fewer than n points.
func WithMinPoints(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.minPoints = n
		}
	}
}

// WithProgress draws a progress bar on w as files complete.
func WithProgress(w io.Writer) Option {
	return func(r *Runner) {
		r.progress = w
	}
}

// WithLogger sets the logger for per-file diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a runner that forecasts with model.
func NewRunner(model forecast.Forecaster, opts ...Option) (*Runner, error) {
	if model == nil {
		return nil, errors.New("a forecasting model is required")
	}

	r := &Runner{
		model:     model,
		workers:   1,
		minPoints: 1,
		logger:    log.New(io.Discard, "", 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

type fileOutcome struct {
	rows []*SeriesResult
	err  error
}

// Run processes files and returns results in file then row order.
//
// Each file is parsed and forecast independently. Without keep-going the
// first failing file (in argument order) fails the whole run.
func (r *Runner) Run(ctx context.Context, files []string) (*RunResult, error) {
	if len(files) == 0 {
		return nil, errors.New("no data files to process")
	}

	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var bar *progressbar.ProgressBar
	if r.progress != nil {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(r.progress),
			progressbar.OptionSetDescription("forecasting"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	outcomes := make([]fileOutcome, len(files))
	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup

	for i, path := range files {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				outcomes[i].err = ctx.Err()
				return
			}
			defer func() { <-sem }()

			rows, err := r.processFile(ctx, i, path)
			outcomes[i] = fileOutcome{rows: rows, err: err}
			if err != nil && !r.keepGoing {
				cancel()
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		}(i, path)
	}
	wg.Wait()

	if bar != nil {
		_ = bar.Finish()
	}

	result := &RunResult{
		Results: []*SeriesResult{},
		Metadata: RunMetadata{
			Files:     files,
			Model:     r.model.Name(),
			StartTime: start,
		},
	}

	if !r.keepGoing {
		if err := firstError(outcomes); err != nil {
			return nil, err
		}
	}

	for i, out := range outcomes {
		if out.err != nil {
			r.logger.Printf("[WARN] skipping %s: %v", files[i], out.err)
			result.FileErrors = append(result.FileErrors, FileError{Source: files[i], Err: out.err})
			continue
		}
		result.Results = append(result.Results, out.rows...)
		result.Metadata.RowsProcessed += len(out.rows)
	}

	result.Metadata.EndTime = time.Now()
	return result, nil
}

// firstError returns the error of the earliest failing file, preferring
// real failures over cancellations they triggered in other workers.
func firstError(outcomes []fileOutcome) error {
	var cancelled error
	for _, out := range outcomes {
		if out.err == nil {
			continue
		}
		if errors.Is(out.err, context.Canceled) {
			if cancelled == nil {
				cancelled = out.err
			}
			continue
		}
		return out.err
	}
	return cancelled
}

func (r *Runner) processFile(ctx context.Context, fileIdx int, path string) ([]*SeriesResult, error) {
	ds, err := parser.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	r.logger.Printf("[INFO] %s: %d rows, %d points", path, ds.Len(), ds.Points())

	rows := make([]*SeriesResult, 0, ds.Len())
	for rowIdx, row := range ds.Rows {
		res := &SeriesResult{
			ID:     fmt.Sprintf("file %d row %d", fileIdx+1, rowIdx),
			Source: path,
			File:   fileIdx + 1,
			Row:    rowIdx,
			Input:  row,
		}

		if row.Len() < r.minPoints {
			res.Skipped = true
			r.logger.Printf("[INFO] %s: skipped, %d point(s)", res.ID, row.Len())
			rows = append(rows, res)
			continue
		}

		pred, err := r.model.FitPredict(ctx, row.Timestamps, row.Values)
		if err != nil {
			return nil, fmt.Errorf("forecasting %s (%s): %w", res.ID, path, err)
		}
		res.Prediction = pred
		rows = append(rows, res)
	}

	return rows, nil
}

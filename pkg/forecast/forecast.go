// Package forecast defines the forecasting capability the pipeline hands
// each parsed row to, along with a few in-process models.
package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"juneau/pkg/parser"
)

// Forecaster fits a model to one series and predicts over its own time index.
type Forecaster interface {
	// Name returns the model name (linear, naive, mean).
	Name() string

	// FitPredict fits the series and returns in-sample and future predictions.
	// timestamps are Unix seconds, ascending, index aligned with values.
	FitPredict(ctx context.Context, timestamps []int64, values []float64) (*Prediction, error)
}

// Prediction is a model's output. All populated slices have the same length.
// Lower and Upper are nil when the model produces no interval.
type Prediction struct {
	Timestamps []int64   `json:"timestamps"`
	Point      []float64 `json:"point"`
	Lower      []float64 `json:"lower,omitempty"`
	Upper      []float64 `json:"upper,omitempty"`
}

// MarshalJSON encodes the prediction with non-finite values as null.
func (p Prediction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Timestamps []int64       `json:"timestamps"`
		Point      parser.Floats `json:"point"`
		Lower      parser.Floats `json:"lower,omitempty"`
		Upper      parser.Floats `json:"upper,omitempty"`
	}{p.Timestamps, p.Point, p.Lower, p.Upper})
}

// Len returns the number of predicted points.
func (p *Prediction) Len() int {
	return len(p.Point)
}

// HasInterval reports whether the prediction carries lower and upper bounds.
func (p *Prediction) HasInterval() bool {
	return p.Lower != nil && p.Upper != nil
}

// Options configures model construction.
type Options struct {
	// Horizon is the number of months to forecast past the last observation.
	Horizon int

	// IntervalWidth is the coverage of the prediction interval, in (0, 1).
	IntervalWidth float64
}

// Defaults for Options.
const (
	DefaultModel         = "linear"
	DefaultHorizon       = 12
	DefaultIntervalWidth = 0.8
)

// DefaultOptions returns the default model options.
func DefaultOptions() Options {
	return Options{
		Horizon:       DefaultHorizon,
		IntervalWidth: DefaultIntervalWidth,
	}
}

var (
	// ErrEmptySeries is returned when a series has no points to fit.
	ErrEmptySeries = errors.New("empty series")

	// ErrLengthMismatch is returned when timestamps and values differ in length.
	ErrLengthMismatch = errors.New("timestamps and values must have the same length")

	// ErrUnknownModel is returned by New for an unregistered model name.
	ErrUnknownModel = errors.New("unknown model")
)

var models = map[string]func(Options) Forecaster{
	"linear": func(o Options) Forecaster { return NewLinear(o) },
	"naive":  func(o Options) Forecaster { return NewNaive(o) },
	"mean":   func(o Options) Forecaster { return NewMean(o) },
}

// New creates the named model.
func New(name string, opts Options) (Forecaster, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	ctor, ok := models[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (use one of %v)", ErrUnknownModel, name, Names())
	}
	return ctor(opts), nil
}

// Names lists the available model names, sorted.
func Names() []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the options for out-of-range values.
func (o Options) Validate() error {
	if o.Horizon < 0 {
		return fmt.Errorf("horizon must be >= 0, got %d", o.Horizon)
	}
	if o.IntervalWidth <= 0 || o.IntervalWidth >= 1 {
		return fmt.Errorf("interval width must be between 0 and 1, got %g", o.IntervalWidth)
	}
	return nil
}

func checkInput(ctx context.Context, timestamps []int64, values []float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(timestamps) != len(values) {
		return fmt.Errorf("%w: %d timestamps, %d values", ErrLengthMismatch, len(timestamps), len(values))
	}
	if len(values) == 0 {
		return ErrEmptySeries
	}
	return nil
}

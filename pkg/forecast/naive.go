package forecast

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Naive predicts the previous observation. Future points repeat the last
// value with an interval that widens with the square root of the horizon.
type Naive struct {
	opts Options
}

// NewNaive creates a naive (random walk) model.
func NewNaive(opts Options) *Naive {
	return &Naive{opts: opts}
}

// Name returns the model name.
func (m *Naive) Name() string {
	return "naive"
}

// FitPredict predicts in-sample plus the horizon.
func (m *Naive) FitPredict(ctx context.Context, timestamps []int64, values []float64) (*Prediction, error) {
	if err := checkInput(ctx, timestamps, values); err != nil {
		return nil, err
	}

	n := len(values)
	diffs := make([]float64, 0, n)
	for i := 1; i < n; i++ {
		diffs = append(diffs, values[i]-values[i-1])
	}
	sigma := 0.0
	if len(diffs) >= 2 {
		sigma = stat.StdDev(diffs, nil)
	} else if len(diffs) == 1 {
		sigma = math.Abs(diffs[0])
	}

	out := extendTimestamps(timestamps, m.opts.Horizon)
	point := make([]float64, len(out))
	for i := range out {
		switch {
		case i == 0:
			point[i] = values[0]
		case i < n:
			point[i] = values[i-1]
		default:
			point[i] = values[n-1]
		}
	}

	z := zScore(m.opts.IntervalWidth)
	lower, upper := bounds(point, func(i int) float64 {
		if i < n {
			return z * sigma
		}
		h := monthIndex(out[i]) - monthIndex(timestamps[n-1])
		return z * sigma * math.Sqrt(float64(h))
	})

	return &Prediction{
		Timestamps: out,
		Point:      point,
		Lower:      lower,
		Upper:      upper,
	}, nil
}

package forecast

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean predicts the historical mean everywhere.
type Mean struct {
	opts Options
}

// NewMean creates a mean model.
func NewMean(opts Options) *Mean {
	return &Mean{opts: opts}
}

// Name returns the model name.
func (m *Mean) Name() string {
	return "mean"
}

// FitPredict predicts in-sample plus the horizon.
func (m *Mean) FitPredict(ctx context.Context, timestamps []int64, values []float64) (*Prediction, error) {
	if err := checkInput(ctx, timestamps, values); err != nil {
		return nil, err
	}

	n := len(values)
	mean, sigma := stat.MeanStdDev(values, nil)
	if n < 2 {
		sigma = 0
	}

	out := extendTimestamps(timestamps, m.opts.Horizon)
	point := make([]float64, len(out))
	for i := range point {
		point[i] = mean
	}

	z := zScore(m.opts.IntervalWidth)
	half := z * sigma * math.Sqrt(1+1/float64(n))
	lower, upper := bounds(point, func(int) float64 { return half })

	return &Prediction{
		Timestamps: out,
		Point:      point,
		Lower:      lower,
		Upper:      upper,
	}, nil
}

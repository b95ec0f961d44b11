package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Linear fits an ordinary least squares trend on the month index, with
// month-of-year terms once every calendar month has been seen twice.
type Linear struct {
	opts Options
}

// NewLinear creates a linear trend model.
func NewLinear(opts Options) *Linear {
	return &Linear{opts: opts}
}

// Name returns the model name.
func (m *Linear) Name() string {
	return "linear"
}

// FitPredict fits the trend and predicts in-sample plus the horizon.
func (m *Linear) FitPredict(ctx context.Context, timestamps []int64, values []float64) (*Prediction, error) {
	if err := checkInput(ctx, timestamps, values); err != nil {
		return nil, err
	}

	n := len(values)
	if n < 2 {
		return NewMean(m.opts).FitPredict(ctx, timestamps, values)
	}

	origin := monthIndex(timestamps[0])
	seasonal := hasSeasonalCoverage(timestamps)
	features := func(ts int64) []float64 {
		idx := monthIndex(ts)
		row := []float64{1, float64(idx - origin)}
		if seasonal {
			// Month dummies relative to the first observed month.
			ref := floorMod(origin, 12)
			for mo := 0; mo < 12; mo++ {
				if mo == ref {
					continue
				}
				v := 0.0
				if floorMod(idx, 12) == mo {
					v = 1
				}
				row = append(row, v)
			}
		}
		return row
	}

	p := len(features(timestamps[0]))
	data := make([]float64, 0, n*p)
	for _, ts := range timestamps {
		data = append(data, features(ts)...)
	}
	x := mat.NewDense(n, p, data)
	y := mat.NewVecDense(n, values)

	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("fitting linear model: %w", err)
		}
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)

	sse := 0.0
	for i := 0; i < n; i++ {
		r := values[i] - fitted.AtVec(i)
		sse += r * r
	}
	sigma := 0.0
	if n > p {
		sigma = math.Sqrt(sse / float64(n-p))
	}

	out := extendTimestamps(timestamps, m.opts.Horizon)
	point := make([]float64, len(out))
	for i, ts := range out {
		point[i] = mat.Dot(mat.NewVecDense(p, features(ts)), &beta)
	}

	z := zScore(m.opts.IntervalWidth)
	lower, upper := bounds(point, func(i int) float64 {
		// Widen past the sample by the extrapolation distance.
		h := 0
		if i >= n {
			h = monthIndex(out[i]) - monthIndex(timestamps[n-1])
		}
		return z * sigma * math.Sqrt(1+float64(h)/float64(n))
	})

	return &Prediction{
		Timestamps: out,
		Point:      point,
		Lower:      lower,
		Upper:      upper,
	}, nil
}

// hasSeasonalCoverage reports whether each month of the year appears at
// least twice, which keeps the seasonal design matrix full rank.
func hasSeasonalCoverage(timestamps []int64) bool {
	if len(timestamps) < 24 {
		return false
	}
	var counts [12]int
	for _, ts := range timestamps {
		counts[floorMod(monthIndex(ts), 12)]++
	}
	for _, c := range counts {
		if c < 2 {
			return false
		}
	}
	return true
}

func floorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

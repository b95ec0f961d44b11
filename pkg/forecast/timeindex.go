package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"juneau/pkg/parser"
)

// monthIndex returns the flat month number of a Unix timestamp.
func monthIndex(ts int64) int {
	d := parser.DateFromUnix(ts)
	return d.Year*12 + int(d.Month-1)
}

// extendTimestamps appends up to horizon monthly timestamps after the last
// one, anchored on its day of month. Months without that day are skipped,
// matching how the parser treats them.
func extendTimestamps(timestamps []int64, horizon int) []int64 {
	out := make([]int64, len(timestamps), len(timestamps)+horizon)
	copy(out, timestamps)
	if len(timestamps) == 0 || horizon == 0 {
		return out
	}

	last := parser.DateFromUnix(timestamps[len(timestamps)-1])
	for h := 1; h <= horizon; h++ {
		d, ok := parser.AddMonths(last, h)
		if !ok {
			continue
		}
		out = append(out, d.Unix())
	}
	return out
}

// zScore returns the two-sided standard normal quantile for width.
func zScore(width float64) float64 {
	return distuv.UnitNormal.Quantile(0.5 + width/2)
}

func bounds(point []float64, halfWidth func(i int) float64) (lower, upper []float64) {
	lower = make([]float64, len(point))
	upper = make([]float64, len(point))
	for i, p := range point {
		w := halfWidth(i)
		if math.IsNaN(w) {
			w = 0
		}
		lower[i] = p - w
		upper[i] = p + w
	}
	return lower, upper
}

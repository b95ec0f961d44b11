package store

import (
	"database/sql"
	"math"

	"github.com/google/uuid"

	"juneau/pkg/pipeline"
)

// Point is one stored row: an input observation, an in-sample fit, or a
// forecast. Non-finite numbers are stored as NULL.
type Point struct {
	RunID    uuid.UUID
	SeriesID string
	Source   string
	File     int
	Row      int
	Kind     string
	Ts       int64
	Value    sql.NullFloat64
	Lower    sql.NullFloat64
	Upper    sql.NullFloat64
}

func (p Point) args() []any {
	return []any{p.RunID.String(), p.SeriesID, p.Source, p.File, p.Row, p.Kind, p.Ts, p.Value, p.Lower, p.Upper}
}

// Flatten expands results into points in file, row, then time order.
// Skipped rows contribute their actual observations only.
func Flatten(runID uuid.UUID, results []*pipeline.SeriesResult) []Point {
	var points []Point
	for _, res := range results {
		base := Point{RunID: runID, SeriesID: res.ID, Source: res.Source, File: res.File, Row: res.Row}

		for i, ts := range res.Input.Timestamps {
			p := base
			p.Kind = pipeline.KindActual
			p.Ts = ts
			p.Value = nullFloat(res.Input.Values[i])
			points = append(points, p)
		}

		pred := res.Prediction
		if pred == nil {
			continue
		}
		start := res.FutureStart()
		for i, ts := range pred.Timestamps {
			p := base
			p.Kind = pipeline.KindForecast
			if i < start {
				p.Kind = pipeline.KindFitted
			}
			p.Ts = ts
			p.Value = nullFloat(pred.Point[i])
			if pred.HasInterval() {
				p.Lower = nullFloat(pred.Lower[i])
				p.Upper = nullFloat(pred.Upper[i])
			}
			points = append(points, p)
		}
	}
	return points
}

// nullFloat maps NaN and +/-Inf to NULL; neither MySQL DOUBLE nor the
// portable subset of SQL accepts them.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

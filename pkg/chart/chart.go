// Package chart renders series forecasts as PNG line charts.
package chart

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/llgcode/draw2d/draw2dkit"
	"golang.org/x/image/font/gofont/goregular"

	"juneau/pkg/parser"
	"juneau/pkg/pipeline"
)

// Options sizes the rendered image.
type Options struct {
	Width  int
	Height int
}

const margin = 40.0

var (
	background = color.RGBA{0xff, 0xff, 0xff, 0xff}
	axisColor  = color.RGBA{0x44, 0x44, 0x44, 0xff}
	inputColor = color.RGBA{0x1f, 0x77, 0xb4, 0xff}
	fcstColor  = color.RGBA{0xff, 0x7f, 0x0e, 0xff}
	bandColor  = color.RGBA{0xff, 0x7f, 0x0e, 0x40}
)

var labelFont = draw2d.FontData{Name: "goregular"}

var (
	fontOnce sync.Once
	fontErr  error
)

func loadFont() error {
	fontOnce.Do(func() {
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			fontErr = fmt.Errorf("loading chart font: %w", err)
			return
		}
		draw2d.RegisterFont(labelFont, f)
	})
	return fontErr
}

// FileName returns the PNG name for a series, derived from its ID.
func FileName(res *pipeline.SeriesResult) string {
	return strings.ReplaceAll(res.ID, " ", "-") + ".png"
}

// RenderAll writes one chart per forecast series into dir and returns the
// paths written. Skipped series are ignored.
func RenderAll(dir string, results []*pipeline.SeriesResult, title string, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating chart directory: %w", err)
	}

	var paths []string
	for _, res := range results {
		if res.Prediction == nil {
			continue
		}
		path := filepath.Join(dir, FileName(res))
		if err := Render(path, res, title, opts); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Render draws the input series, the forecast line and its interval band.
func Render(path string, res *pipeline.SeriesResult, title string, opts Options) error {
	if opts.Width <= 2*margin || opts.Height <= 2*margin {
		return fmt.Errorf("chart size %dx%d is too small", opts.Width, opts.Height)
	}
	if err := loadFont(); err != nil {
		return err
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	gc := draw2dimg.NewGraphicContext(img)

	gc.SetFillColor(background)
	draw2dkit.Rectangle(gc, 0, 0, float64(opts.Width), float64(opts.Height))
	gc.Fill()

	sc := newScale(res, float64(opts.Width), float64(opts.Height))

	drawAxes(gc, sc, res, title)

	if pred := res.Prediction; pred != nil {
		if pred.HasInterval() {
			gc.SetFillColor(bandColor)
			gc.MoveTo(sc.x(pred.Timestamps[0]), sc.y(pred.Upper[0]))
			for i := 1; i < pred.Len(); i++ {
				gc.LineTo(sc.x(pred.Timestamps[i]), sc.y(pred.Upper[i]))
			}
			for i := pred.Len() - 1; i >= 0; i-- {
				gc.LineTo(sc.x(pred.Timestamps[i]), sc.y(pred.Lower[i]))
			}
			gc.Close()
			gc.Fill()
		}
		polyline(gc, sc, pred.Timestamps, pred.Point, fcstColor, 1.5)
	}
	polyline(gc, sc, res.Input.Timestamps, res.Input.Values, inputColor, 2)

	if err := draw2dimg.SaveToPngFile(path, img); err != nil {
		return fmt.Errorf("writing chart %s: %w", path, err)
	}
	return nil
}

func polyline(gc *draw2dimg.GraphicContext, sc scale, ts []int64, vs []float64, c color.Color, width float64) {
	if len(ts) == 0 {
		return
	}
	gc.SetStrokeColor(c)
	gc.SetLineWidth(width)
	gc.MoveTo(sc.x(ts[0]), sc.y(vs[0]))
	for i := 1; i < len(ts); i++ {
		gc.LineTo(sc.x(ts[i]), sc.y(vs[i]))
	}
	if len(ts) == 1 {
		// A lone point still gets a visible mark.
		draw2dkit.Circle(gc, sc.x(ts[0]), sc.y(vs[0]), 2)
		gc.SetFillColor(c)
		gc.FillStroke()
		return
	}
	gc.Stroke()
}

func drawAxes(gc *draw2dimg.GraphicContext, sc scale, res *pipeline.SeriesResult, title string) {
	gc.SetStrokeColor(axisColor)
	gc.SetLineWidth(1)
	gc.MoveTo(margin, margin)
	gc.LineTo(margin, sc.h-margin)
	gc.LineTo(sc.w-margin, sc.h-margin)
	gc.Stroke()

	gc.SetFontData(labelFont)
	gc.SetFontSize(9)
	gc.SetFillColor(axisColor)

	gc.FillStringAt(res.ID+" "+title, margin, margin-16)
	gc.FillStringAt(fmt.Sprintf("%.4g", sc.maxV), 2, margin+4)
	gc.FillStringAt(fmt.Sprintf("%.4g", sc.minV), 2, sc.h-margin)
	gc.FillStringAt(parser.DateFromUnix(sc.minT).String(), margin, sc.h-margin+16)
	gc.FillStringAt(parser.DateFromUnix(sc.maxT).String(), sc.w-margin-60, sc.h-margin+16)
}

// scale maps timestamps and values into pixel space.
type scale struct {
	w, h       float64
	minT, maxT int64
	minV, maxV float64
}

func newScale(res *pipeline.SeriesResult, w, h float64) scale {
	sc := scale{w: w, h: h, minT: math.MaxInt64, maxT: math.MinInt64, minV: math.Inf(1), maxV: math.Inf(-1)}

	observe := func(ts []int64, series ...[]float64) {
		for _, t := range ts {
			sc.minT = min(sc.minT, t)
			sc.maxT = max(sc.maxT, t)
		}
		for _, vs := range series {
			for _, v := range vs {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				sc.minV = math.Min(sc.minV, v)
				sc.maxV = math.Max(sc.maxV, v)
			}
		}
	}
	observe(res.Input.Timestamps, res.Input.Values)
	if pred := res.Prediction; pred != nil {
		observe(pred.Timestamps, pred.Point, pred.Lower, pred.Upper)
	}

	if sc.minT > sc.maxT {
		sc.minT, sc.maxT = 0, 1
	}
	if sc.minT == sc.maxT {
		sc.maxT = sc.minT + 1
	}
	if math.IsInf(sc.minV, 1) {
		sc.minV, sc.maxV = 0, 1
	}
	if sc.minV == sc.maxV {
		sc.minV--
		sc.maxV++
	}
	return sc
}

func (sc scale) x(t int64) float64 {
	frac := float64(t-sc.minT) / float64(sc.maxT-sc.minT)
	return margin + frac*(sc.w-2*margin)
}

func (sc scale) y(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = sc.minV
	}
	frac := (v - sc.minV) / (sc.maxV - sc.minV)
	return sc.h - margin - frac*(sc.h-2*margin)
}

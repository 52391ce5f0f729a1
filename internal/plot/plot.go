package plot

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/cosinor-cli/internal/cosinor"
	"github.com/KaramelBytes/cosinor-cli/internal/dataset"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Format is an output image format.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// ParseFormat accepts "png" or "svg" (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case PNG, "":
		return PNG, nil
	case SVG:
		return SVG, nil
	}
	return "", fmt.Errorf("unsupported figure format: %s (use png|svg)", s)
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string { return "." + string(f) }

// Options controls figure rendering.
type Options struct {
	Format     Format
	Width      int
	Height     int
	ShowPoints bool
	// CurvePoints is the number of samples of the fitted curve.
	CurvePoints int
	// YRange fixes the y-axis; a zero range lets the chart pick one.
	YRange dataset.Range
}

// DefaultOptions mirrors a 9x5 inch figure at 150 dpi.
func DefaultOptions() Options {
	return Options{Format: PNG, Width: 1350, Height: 750, ShowPoints: true, CurvePoints: 500}
}

var (
	black = drawing.ColorBlack
	white = drawing.ColorWhite
)

// Legend labels.
const (
	rawLabel   = "Raw data"
	meanLabel  = "Mean ± SD"
	curveLabel = "Cosinor fit"
)

// Render draws one gene figure: raw points, mean ± SD per time point and the
// fitted curve over one period.
func Render(s *dataset.Series, res *cosinor.Result, opt Options) ([]byte, error) {
	if s == nil || res == nil {
		return nil, fmt.Errorf("render: missing series or fit")
	}
	if opt.CurvePoints < 2 {
		opt.CurvePoints = 500
	}
	period := res.Period
	if period <= 0 {
		period = cosinor.DefaultPeriod
	}

	var series []chart.Series
	var legendSeries []chart.Series
	if opt.ShowPoints && s.Len() > 0 {
		raw := chart.ContinuousSeries{
			Name:    rawLabel,
			XValues: s.Times,
			YValues: s.Values,
			Style:   pointStyle(black, rawRadius),
		}
		series = append(series, raw, hollow(raw))
		legendSeries = append(legendSeries, raw)
	}

	groups := s.GroupByTime()
	means := chart.ContinuousSeries{Name: meanLabel, Style: pointStyle(black, 8)}
	for _, g := range groups {
		means.XValues = append(means.XValues, g.Time)
		means.YValues = append(means.YValues, g.Mean)
		series = append(series, errorBar(g, capHalfWidth(period))...)
	}
	if len(groups) > 0 {
		series = append(series, means)
		legendSeries = append(legendSeries, means)
	}

	cx, cy := cosinor.Curve(res.Params, period, 0, period, opt.CurvePoints)
	curve := chart.ContinuousSeries{
		Name:    curveLabel,
		XValues: cx,
		YValues: cy,
		Style:   chart.Style{StrokeColor: black, StrokeWidth: 2},
	}
	series = append(series, curve)
	legendSeries = append(legendSeries, curve)

	xMin, xMax := 0.0, period
	ticks := xTicks(s.UniqueTimes(), period)
	if len(ticks) > 0 {
		xMin = math.Min(xMin, ticks[0].Value)
		xMax = math.Max(xMax, ticks[len(ticks)-1].Value)
	}
	half := capHalfWidth(period)
	xMin, xMax = xMin-2*half, xMax+2*half

	ch := chart.Chart{
		Title:      fmt.Sprintf("%s — Cosinor Analysis", s.Gene),
		TitleStyle: chart.Style{FontSize: 18},
		Width:      opt.Width,
		Height:     opt.Height,
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20}},
		XAxis: chart.XAxis{
			Name:      "ZT (hours)",
			NameStyle: chart.Style{FontSize: 16},
			Style:     chart.Style{FontSize: 14},
			Range:     &chart.ContinuousRange{Min: xMin, Max: xMax},
			Ticks:     ticks,
		},
		YAxis: chart.YAxis{
			Name:      "Expression Ratio (GOI/HK)",
			NameStyle: chart.Style{FontSize: 16},
			Style:     chart.Style{FontSize: 14},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return formatTick(f)
				}
				return fmt.Sprint(v)
			},
		},
		Series: series,
	}
	if opt.YRange.Max > opt.YRange.Min {
		ch.YAxis.Range = &chart.ContinuousRange{Min: opt.YRange.Min, Max: opt.YRange.Max}
	}
	// The legend only lists the three named series, not the error bar segments.
	legendSrc := chart.Chart{Series: legendSeries}
	ch.Elements = []chart.Renderable{chart.Legend(&legendSrc, chart.Style{FontSize: 12})}

	var buf bytes.Buffer
	provider := chart.PNG
	if opt.Format == SVG {
		provider = chart.SVG
	}
	if err := ch.Render(provider, &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", s.Gene, err)
	}
	return buf.Bytes(), nil
}

// rawRadius is the outer radius of the open replicate markers.
const rawRadius = 6

// hollow punches out the inside of a dot series, leaving a ring. go-chart fills
// and strokes dots with one color, so open markers take two passes.
func hollow(ring chart.ContinuousSeries) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		XValues: ring.XValues,
		YValues: ring.YValues,
		Style:   pointStyle(white, ring.Style.DotWidth-1.5),
	}
}

// pointStyle renders points only (no connecting line).
func pointStyle(col drawing.Color, width float64) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    width,
		DotColor:    col,
	}
}

// errorBar returns the vertical whisker and two caps for one time point.
// Points without a defined spread get nothing.
func errorBar(g dataset.TimePoint, half float64) []chart.Series {
	if math.IsNaN(g.SD) || g.SD == 0 {
		return nil
	}
	lo, hi := g.Mean-g.SD, g.Mean+g.SD
	st := chart.Style{StrokeColor: black, StrokeWidth: 1.5}
	return []chart.Series{
		chart.ContinuousSeries{XValues: []float64{g.Time, g.Time}, YValues: []float64{lo, hi}, Style: st},
		chart.ContinuousSeries{XValues: []float64{g.Time - half, g.Time + half}, YValues: []float64{lo, lo}, Style: st},
		chart.ContinuousSeries{XValues: []float64{g.Time - half, g.Time + half}, YValues: []float64{hi, hi}, Style: st},
	}
}

func capHalfWidth(period float64) float64 { return period / 96 }

// xTicks places a tick at every sampled time plus the end of the period.
func xTicks(times []float64, period float64) []chart.Tick {
	seen := map[float64]struct{}{}
	var vals []float64
	for _, t := range append(append([]float64(nil), times...), period) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		vals = append(vals, t)
	}
	sort.Float64s(vals)
	ticks := make([]chart.Tick, len(vals))
	for i, v := range vals {
		ticks[i] = chart.Tick{Value: v, Label: formatTick(v)}
	}
	return ticks
}

func formatTick(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e6 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', 4, 64)
}

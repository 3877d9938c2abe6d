// Package render writes chart and report artifacts to the output directory.
package render

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/ZanzyTHEbar/insight-agent/insight/dataframe"
)

// ErrNoNumericData is returned when a chart needs a numeric column and the
// frame has none.
var ErrNoNumericData = errors.New("no numeric column to plot")

const (
	chartWidth  = 12 * vg.Inch
	chartHeight = 6 * vg.Inch
)

// ChartRenderer draws frames as PNG charts.
type ChartRenderer struct {
	dir    string
	now    func() time.Time
	logger zerolog.Logger
}

// NewChartRenderer writes charts under <outputDir>/charts.
func NewChartRenderer(outputDir string, logger zerolog.Logger) *ChartRenderer {
	return &ChartRenderer{
		dir:    filepath.Join(outputDir, "charts"),
		now:    time.Now,
		logger: logger.With().Str("component", "charts").Logger(),
	}
}

// Render draws f as kind and returns the PNG path. Unknown kinds draw as bar.
func (r *ChartRenderer) Render(ctx context.Context, f *dataframe.Frame, kind, title string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f == nil || f.Len() == 0 || f.Width() == 0 {
		return "", fmt.Errorf("render %s: empty frame", kind)
	}

	p := plot.New()
	p.Title.Text = title

	var err error
	switch kind {
	case "line":
		err = drawLine(p, f)
	case "pie":
		err = drawPie(p, f)
	case "scatter":
		err = drawScatter(p, f)
	case "histogram":
		err = drawHistogram(p, f)
	case "heatmap":
		err = drawHeatmap(p, f)
	default:
		kind = "bar"
		err = drawBar(p, f)
	}
	if err != nil {
		return "", fmt.Errorf("render %s: %w", kind, err)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}
	name := fmt.Sprintf("viz_%s_%s_%s.png", kind, r.now().Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(r.dir, name)
	if err := p.Save(chartWidth, chartHeight, path); err != nil {
		return "", fmt.Errorf("save chart: %w", err)
	}

	r.logger.Info().Str("path", path).Str("kind", kind).Int("rows", f.Len()).Msg("Chart saved")
	return path, nil
}

// xAxis returns plot positions for the first column. Datetime columns map to
// unix seconds with time ticks, numeric columns are used as-is and anything
// else becomes nominal positions.
func xAxis(p *plot.Plot, f *dataframe.Frame) []float64 {
	x := f.Columns[0]
	p.X.Label.Text = x.Name
	xs := make([]float64, f.Len())

	switch x.Kind {
	case dataframe.KindTime:
		p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
		for i, v := range x.Values {
			if t, ok := v.(time.Time); ok {
				xs[i] = float64(t.Unix())
			}
		}
	case dataframe.KindNumeric:
		for i, v := range x.Values {
			if fv, ok := v.(float64); ok {
				xs[i] = fv
			}
		}
	default:
		for i := range xs {
			xs[i] = float64(i)
		}
		p.NominalX(x.Strings()...)
	}
	return xs
}

// yColumns returns the numeric columns after the first.
func yColumns(f *dataframe.Frame) []*dataframe.Column {
	var out []*dataframe.Column
	for _, c := range f.Columns[1:] {
		if c.Kind == dataframe.KindNumeric {
			out = append(out, c)
		}
	}
	return out
}

func drawLine(p *plot.Plot, f *dataframe.Frame) error {
	ys := yColumns(f)
	if len(ys) == 0 {
		return ErrNoNumericData
	}
	xs := xAxis(p, f)
	p.Y.Label.Text = "value"

	for i, c := range ys {
		pts := make(plotter.XYs, 0, len(xs))
		for row, v := range c.Values {
			if y, ok := v.(float64); ok {
				pts = append(pts, plotter.XY{X: xs[row], Y: y})
			}
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		p.Add(line, points)
		if len(ys) > 1 {
			p.Legend.Add(c.Name, line, points)
		}
	}
	return nil
}

func drawBar(p *plot.Plot, f *dataframe.Frame) error {
	ys := yColumns(f)
	if len(ys) == 0 {
		return ErrNoNumericData
	}
	p.X.Label.Text = f.Columns[0].Name
	p.Y.Label.Text = "value"

	w := vg.Points(float64(400) / float64(f.Len()*len(ys)+1))
	if w > vg.Points(40) {
		w = vg.Points(40)
	}
	for i, c := range ys {
		values := make(plotter.Values, len(c.Values))
		for row, v := range c.Values {
			if y, ok := v.(float64); ok {
				values[row] = y
			}
		}
		bars, err := plotter.NewBarChart(values, w)
		if err != nil {
			return err
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = vg.Length(float64(i)-float64(len(ys)-1)/2) * w
		p.Add(bars)
		if len(ys) > 1 {
			p.Legend.Add(c.Name, bars)
		}
	}
	p.NominalX(f.Columns[0].Strings()...)
	return nil
}

func drawScatter(p *plot.Plot, f *dataframe.Frame) error {
	if f.Width() < 2 {
		return fmt.Errorf("scatter needs two columns")
	}
	x, y := f.Columns[0], f.Columns[1]
	p.X.Label.Text = x.Name
	p.Y.Label.Text = y.Name

	var pts plotter.XYs
	for i := range x.Values {
		xv, okX := x.Values[i].(float64)
		yv, okY := y.Values[i].(float64)
		if okX && okY {
			pts = append(pts, plotter.XY{X: xv, Y: yv})
		}
	}
	if len(pts) == 0 {
		return ErrNoNumericData
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	s.Color = plotutil.Color(0)
	p.Add(s)
	return nil
}

// HistogramBins clamps n/5 to [10, 30].
func HistogramBins(n int) int {
	return min(30, max(10, n/5))
}

func drawHistogram(p *plot.Plot, f *dataframe.Frame) error {
	numeric := f.ByKind(dataframe.KindNumeric)
	if len(numeric) == 0 {
		return ErrNoNumericData
	}
	c := numeric[0]
	values := plotter.Values(c.Floats())
	if len(values) == 0 {
		return ErrNoNumericData
	}

	h, err := plotter.NewHist(values, HistogramBins(len(values)))
	if err != nil {
		return err
	}
	h.FillColor = plotutil.Color(0)
	p.Add(h)
	p.X.Label.Text = c.Name
	p.Y.Label.Text = "frequency"
	return nil
}

func drawHeatmap(p *plot.Plot, f *dataframe.Frame) error {
	numeric := f.ByKind(dataframe.KindNumeric)
	if len(numeric) < 2 {
		return drawBar(p, f)
	}

	grid := corrGrid(dataframe.CorrelationMatrix(numeric))
	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)
	hm := plotter.NewHeatMap(grid, cm.Palette(255))
	hm.Min, hm.Max = -1, 1
	p.Add(hm)

	names := make([]string, len(numeric))
	for i, c := range numeric {
		names[i] = c.Name
	}
	p.NominalX(names...)
	p.NominalY(names...)
	return nil
}

// corrGrid adapts a square matrix to plotter.GridXYZ.
type corrGrid [][]float64

func (g corrGrid) Dims() (c, r int) { return len(g), len(g) }
func (g corrGrid) X(c int) float64  { return float64(c) }
func (g corrGrid) Y(r int) float64  { return float64(r) }

// Z reports undefined correlations as 0.
func (g corrGrid) Z(c, r int) float64 {
	if v := g[r][c]; !math.IsNaN(v) {
		return v
	}
	return 0
}

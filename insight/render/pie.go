package render

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/ZanzyTHEbar/insight-agent/insight/dataframe"
)

// pieChart draws wedges proportional to Values, starting at 12 o'clock and
// running counter-clockwise.
type pieChart struct {
	Values []float64
	Colors []color.Color
	Total  float64
}

func drawPie(p *plot.Plot, f *dataframe.Frame) error {
	labels := f.Columns[0].Strings()
	value := f.Columns[0]
	if f.Width() > 1 {
		value = f.Columns[1]
	}
	if value.Kind != dataframe.KindNumeric {
		return ErrNoNumericData
	}

	pc := &pieChart{}
	for i, v := range value.Values {
		x, _ := v.(float64)
		if x < 0 {
			x = 0
		}
		pc.Values = append(pc.Values, x)
		pc.Colors = append(pc.Colors, plotutil.Color(i))
		pc.Total += x
	}
	if pc.Total == 0 {
		return fmt.Errorf("pie values sum to zero")
	}

	p.HideAxes()
	p.Add(pc)
	for i, l := range labels {
		p.Legend.Add(fmt.Sprintf("%s (%.1f%%)", l, pc.Values[i]/pc.Total*100), wedgeThumb{c: pc.Colors[i]})
	}
	p.Legend.Top = true
	return nil
}

// Plot implements plot.Plotter.
func (pc *pieChart) Plot(c draw.Canvas, plt *plot.Plot) {
	center := c.Center()
	radius := vg.Length(math.Min(float64(c.Max.X-c.Min.X), float64(c.Max.Y-c.Min.Y))) * 0.4

	sty := text.Style{
		Color:   color.White,
		Font:    plt.Legend.TextStyle.Font,
		XAlign:  text.XCenter,
		YAlign:  text.YCenter,
		Handler: plt.Legend.TextStyle.Handler,
	}

	start := math.Pi / 2
	for i, v := range pc.Values {
		if v == 0 {
			continue
		}
		angle := v / pc.Total * 2 * math.Pi

		var path vg.Path
		path.Move(center)
		path.Arc(center, radius, start, angle)
		path.Close()
		c.SetColor(pc.Colors[i])
		c.Fill(path)

		mid := start + angle/2
		at := vg.Point{
			X: center.X + vg.Length(math.Cos(mid))*radius*0.65,
			Y: center.Y + vg.Length(math.Sin(mid))*radius*0.65,
		}
		if v/pc.Total >= 0.03 {
			c.FillText(sty, at, fmt.Sprintf("%.1f%%", v/pc.Total*100))
		}
		start += angle
	}
}

// wedgeThumb is the legend swatch for one wedge.
type wedgeThumb struct {
	c color.Color
}

func (w wedgeThumb) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(w.c, pts)
}

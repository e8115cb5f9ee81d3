package report

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/plotter"
)

var nanColor = color.Gray{Y: 200}

// BoundaryColormap assigns one colour per interval between consecutive
// boundaries.
type BoundaryColormap struct {
	Boundaries []float64     // N+1 boundaries for N colors
	Colors     []color.Color // N colors
	UnderColor color.Color   // below the first boundary
	OverColor  color.Color   // at or above the last boundary
	NaNColor   color.Color
}

// band indexes z in the order Bands reports them: under, one per interval,
// over, NaN.
func (cm *BoundaryColormap) band(z float64) int {
	n := len(cm.Colors)
	if math.IsNaN(z) {
		return n + 2
	}
	if z < cm.Boundaries[0] {
		return 0
	}
	for i := 0; i < n; i++ {
		if z < cm.Boundaries[i+1] {
			return i + 1
		}
	}
	return n + 1
}

// Color returns the colour for z.
func (cm *BoundaryColormap) Color(z float64) color.Color {
	n := len(cm.Colors)
	switch i := cm.band(z); {
	case i == 0:
		return cm.UnderColor
	case i <= n:
		return cm.Colors[i-1]
	case i == n+1:
		return cm.OverColor
	}
	return cm.NaNColor
}

// Band is one colour of a BoundaryColormap and the number of cells painted
// with it.
type Band struct {
	Label string
	Color color.Color
	Count int
}

// Bands counts the cells of g per band, in the order under, each interval,
// over, NaN. Every cell lands in exactly one band.
func (cm *BoundaryColormap) Bands(g plotter.GridXYZ) []Band {
	b, n := cm.Boundaries, len(cm.Colors)
	out := make([]Band, 0, n+3)
	out = append(out, Band{Label: fmt.Sprintf("< %g", b[0]), Color: cm.UnderColor})
	for i := 0; i < n; i++ {
		out = append(out, Band{Label: fmt.Sprintf("[%g, %g)", b[i], b[i+1]), Color: cm.Colors[i]})
	}
	out = append(out,
		Band{Label: fmt.Sprintf(">= %g", b[n]), Color: cm.OverColor},
		Band{Label: "nan", Color: cm.NaNColor},
	)

	cols, rows := g.Dims()
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			out[cm.band(g.Z(c, r))].Count++
		}
	}
	return out
}

// AccuracyColormap colours relative errors: green below 0.2, yellow up to
// 0.4, orange up to 1 and red beyond.
func AccuracyColormap() *BoundaryColormap {
	return &BoundaryColormap{
		Boundaries: []float64{0, 0.2, 0.4, 1.0},
		Colors: []color.Color{
			color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 255}, // Green
			color.RGBA{R: 0xdb, G: 0xdb, B: 0x8d, A: 255}, // PaleYellow
			color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 255}, // Orange
		},
		UnderColor: color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 255},
		OverColor:  color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 255}, // DarkRed
		NaNColor:   nanColor,
	}
}

// Grid exposes a metric grid as a plotter.GridXYZ. Columns map to X and rows
// to Y, both in cell units.
type Grid struct {
	m *mat.Dense
}

var _ plotter.GridXYZ = (*Grid)(nil)

func NewGrid(m *mat.Dense) *Grid { return &Grid{m: m} }

func (g *Grid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g *Grid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g *Grid) X(c int) float64    { return float64(c) }
func (g *Grid) Y(r int) float64    { return float64(r) }

// Range returns the smallest and largest finite values. ok is false when the
// grid holds no finite value.
func (g *Grid) Range() (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	cols, rows := g.Dims()
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			v := g.Z(c, r)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			min = math.Min(min, v)
			max = math.Max(max, v)
		}
	}
	return min, max, min <= max
}

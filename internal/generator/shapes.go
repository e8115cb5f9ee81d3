package generator

import (
	"fmt"
	"math"
	"sort"

	"github.com/user/tsunami_accuracy_go/internal/parser"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Shape names accepted by NewShape.
const (
	ShapeGradientX    = "gradient_x"
	ShapeGradientY    = "gradient_y"
	ShapeParabola     = "parabola"
	ShapeParabolaSine = "parabola_sine"
)

// ShapeOptions parameterises the synthetic wave shapes.
type ShapeOptions struct {
	Min, Max   float64
	SinAmp     float64
	SinPeriodX float64
	SinPeriodY float64
}

// DefaultShapeOptions spans [0, 1] with a 50 pixel sine period.
func DefaultShapeOptions() ShapeOptions {
	return ShapeOptions{Min: 0, Max: 1, SinAmp: 0.5, SinPeriodX: 50, SinPeriodY: 50}
}

var shapes = map[string]func(h, w int, o ShapeOptions) *mat.Dense{
	ShapeGradientX: func(h, w int, o ShapeOptions) *mat.Dense { return GradientX(h, w, o.Min, o.Max) },
	ShapeGradientY: func(h, w int, o ShapeOptions) *mat.Dense { return GradientY(h, w, o.Min, o.Max) },
	ShapeParabola:  func(h, w int, o ShapeOptions) *mat.Dense { return Parabola(h, w, o.Min, o.Max) },
	ShapeParabolaSine: func(h, w int, o ShapeOptions) *mat.Dense {
		return ParabolaSine(h, w, o.Min, o.Max, o.SinAmp, o.SinPeriodX, o.SinPeriodY)
	},
}

// ShapeNames lists the known shapes in sorted order.
func ShapeNames() []string {
	names := make([]string, 0, len(shapes))
	for name := range shapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewShape builds the named shape over the full grid of z.
func NewShape(z *parser.ZoneConfig, name string, o ShapeOptions) (*mat.Dense, error) {
	gen, ok := shapes[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown shape %q, want one of %v", parser.ErrConfig, name, ShapeNames())
	}
	if name == ShapeParabolaSine && (o.SinPeriodX == 0 || o.SinPeriodY == 0) {
		return nil, fmt.Errorf("%w: sine periods must be non-zero", parser.ErrConfig)
	}
	return gen(z.Height, z.Width, o), nil
}

// linspace returns n evenly spaced values from lo to hi inclusive.
func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	switch n {
	case 0:
	case 1:
		out[0] = lo
	default:
		floats.Span(out, lo, hi)
	}
	return out
}

// GradientX rises linearly from lo in the first column to hi in the last.
func GradientX(h, w int, lo, hi float64) *mat.Dense {
	x := linspace(lo, hi, w)
	m := mat.NewDense(h, w, nil)
	for r := 0; r < h; r++ {
		m.SetRow(r, x)
	}
	return m
}

// GradientY rises linearly from lo in the first row to hi in the last.
func GradientY(h, w int, lo, hi float64) *mat.Dense {
	y := linspace(lo, hi, h)
	m := mat.NewDense(h, w, nil)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			m.Set(r, c, y[r])
		}
	}
	return m
}

// Parabola is constant along x and falls from hi at the top row to lo at the
// bottom row as 1 - y², y normalised to [0, 1].
func Parabola(h, w int, lo, hi float64) *mat.Dense {
	y := linspace(0, 1, h)
	m := mat.NewDense(h, w, nil)
	for r := 0; r < h; r++ {
		v := lo + (hi-lo)*(1-y[r]*y[r])
		for c := 0; c < w; c++ {
			m.Set(r, c, v)
		}
	}
	return m
}

// ParabolaSine adds amp·sin(2πx/periodX)·sin(2πy/periodY) to Parabola, with x
// and y in pixels.
func ParabolaSine(h, w int, lo, hi, amp, periodX, periodY float64) *mat.Dense {
	m := Parabola(h, w, lo, hi)
	for r := 0; r < h; r++ {
		sy := math.Sin(2 * math.Pi * float64(r) / periodY)
		for c := 0; c < w; c++ {
			sx := math.Sin(2 * math.Pi * float64(c) / periodX)
			m.Set(r, c, m.At(r, c)+amp*(sx*sy))
		}
	}
	return m
}

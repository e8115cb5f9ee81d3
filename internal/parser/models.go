package parser

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Region names used by the zone descriptor.
const (
	SubductionZone = "subduction_zone"
	MariogrammZone = "mariogramm_zone"
)

// DefaultBasisPattern extracts the trailing index of files such as "basis_12.wave".
const DefaultBasisPattern = `.*?(\d+)\.wave`

// Region is a half-open rectangle [YMin,YMax) x [XMin,XMax) in absolute pixels.
type Region struct {
	YMin, YMax int
	XMin, XMax int
}

func (r Region) Height() int { return r.YMax - r.YMin }
func (r Region) Width() int  { return r.XMax - r.XMin }

func (r Region) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d]", r.YMin, r.YMax, r.XMin, r.XMax)
}

// ZoneConfig is the grid geometry shared read-only by every loader.
type ZoneConfig struct {
	Path    string
	Height  int
	Width   int
	Regions map[string]Region
}

// Region returns the named region or an ErrConfig error.
func (z *ZoneConfig) Region(name string) (Region, error) {
	r, ok := z.Regions[name]
	if !ok {
		return Region{}, fmt.Errorf("%w: %s: region %q not defined", ErrConfig, z.Path, name)
	}
	return r, nil
}

// BasisStack holds the cropped basis functions ordered by ascending file index.
// Fields[i] is the basis weighted by coefficient layer i.
type BasisStack struct {
	Dir     string
	Indices []int
	Fields  []*mat.Dense
}

func (b *BasisStack) Len() int { return len(b.Fields) }

// Dims returns the shape shared by all basis fields.
func (b *BasisStack) Dims() (rows, cols int) {
	if len(b.Fields) == 0 {
		return 0, 0
	}
	return b.Fields[0].Dims()
}

// Gaps lists the indices missing between the smallest and largest index found.
func (b *BasisStack) Gaps() []int {
	var gaps []int
	for i := 1; i < len(b.Indices); i++ {
		for missing := b.Indices[i-1] + 1; missing < b.Indices[i]; missing++ {
			gaps = append(gaps, missing)
		}
	}
	return gaps
}

// Matrix flattens the stack into a layers x (rows*cols) matrix, one basis per row.
func (b *BasisStack) Matrix() *mat.Dense {
	h, w := b.Dims()
	m := mat.NewDense(b.Len(), h*w, nil)
	for l, f := range b.Fields {
		m.SetRow(l, Flatten(f))
	}
	return m
}

// CoefficientGrid is the dense form of a sparse coefficient file.
// Cells absent from the file hold NaN coefficients and NaN error and report
// Defined(r, c) == false.
type CoefficientGrid struct {
	Path   string
	Rows   int
	Cols   int
	Layers int
	// Coefs is row-major [row][col][layer].
	Coefs   []float64
	Errors  *mat.Dense
	defined []bool
}

// NewCoefficientGrid allocates a grid with every cell undefined.
func NewCoefficientGrid(path string, rows, cols, layers int) *CoefficientGrid {
	g := &CoefficientGrid{
		Path:    path,
		Rows:    rows,
		Cols:    cols,
		Layers:  layers,
		Coefs:   make([]float64, rows*cols*layers),
		Errors:  mat.NewDense(rows, cols, nil),
		defined: make([]bool, rows*cols),
	}
	for i := range g.Coefs {
		g.Coefs[i] = math.NaN()
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g.Errors.Set(r, c, math.NaN())
		}
	}
	return g
}

// Set stores the coefficient vector and approximation error of one cell.
func (g *CoefficientGrid) Set(r, c int, coefs []float64, aproxErr float64) {
	copy(g.Vector(r, c), coefs)
	g.Errors.Set(r, c, aproxErr)
	g.defined[r*g.Cols+c] = true
}

// Vector returns the coefficient vector of one cell, sharing storage.
func (g *CoefficientGrid) Vector(r, c int) []float64 {
	off := (r*g.Cols + c) * g.Layers
	return g.Coefs[off : off+g.Layers]
}

func (g *CoefficientGrid) Defined(r, c int) bool { return g.defined[r*g.Cols+c] }

// Undefined counts the cells with no entry in the source file.
func (g *CoefficientGrid) Undefined() int {
	n := 0
	for _, d := range g.defined {
		if !d {
			n++
		}
	}
	return n
}

// RowBlock views rows [r0, r1) as a ((r1-r0)*Cols) x Layers matrix without copying.
func (g *CoefficientGrid) RowBlock(r0, r1 int) *mat.Dense {
	n := (r1 - r0) * g.Cols
	off := r0 * g.Cols * g.Layers
	return mat.NewDense(n, g.Layers, g.Coefs[off:off+n*g.Layers])
}

// Flatten copies a matrix into a row-major slice.
func Flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	if d, ok := m.(*mat.Dense); ok {
		for i := 0; i < r; i++ {
			out = append(out, d.RawRowView(i)...)
		}
		return out
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

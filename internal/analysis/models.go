package analysis

import (
	"math"

	"github.com/user/tsunami_accuracy_go/internal/parser"
	"gonum.org/v1/gonum/mat"
)

// Metric names, also used as output file stems.
const (
	MetricRMS          = "rms_accuracy"
	MetricMax          = "max_accuracy"
	MetricMaxValueDiff = "max_value_diff"
)

// MetricNames lists the metrics in output order.
var MetricNames = []string{MetricRMS, MetricMax, MetricMaxValueDiff}

// DefaultChunkSize is the number of coefficient-grid rows reconstructed at once.
const DefaultChunkSize = 37

// Family pairs a basis stack with the coefficients expressed in it.
type Family struct {
	Name  string
	Basis *parser.BasisStack
	Coefs *parser.CoefficientGrid
}

// Options tunes the engine. None of it changes the numbers produced.
type Options struct {
	ChunkSize int
	Workers   int
	// Progress, when set, is called after each finished chunk. It may be
	// called from several goroutines when Workers > 1.
	Progress func(done, total int)
}

// AccuracyMaps holds the per-cell metrics. A cell whose coefficients were
// absent from the input holds NaN in every map.
type AccuracyMaps struct {
	RMS          *mat.Dense
	Max          *mat.Dense
	MaxValueDiff *mat.Dense

	WaveRMS float64
	WaveMax float64
}

func newAccuracyMaps(rows, cols int) *AccuracyMaps {
	return &AccuracyMaps{
		RMS:          mat.NewDense(rows, cols, nil),
		Max:          mat.NewDense(rows, cols, nil),
		MaxValueDiff: mat.NewDense(rows, cols, nil),
	}
}

// Dims returns the coefficient-grid extent the maps cover.
func (a *AccuracyMaps) Dims() (rows, cols int) { return a.RMS.Dims() }

// Named returns exactly the three metric grids keyed by metric name.
func (a *AccuracyMaps) Named() map[string]*mat.Dense {
	return map[string]*mat.Dense{
		MetricRMS:          a.RMS,
		MetricMax:          a.Max,
		MetricMaxValueDiff: a.MaxValueDiff,
	}
}

// Value reports a metric for one cell; ok is false when the cell has no data.
func (a *AccuracyMaps) Value(metric string, r, c int) (v float64, ok bool) {
	m, found := a.Named()[metric]
	if !found {
		return math.NaN(), false
	}
	v = m.At(r, c)
	return v, !math.IsNaN(v)
}

// Undefined counts the cells without data.
func (a *AccuracyMaps) Undefined() int {
	rows, cols := a.Dims()
	n := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if math.IsNaN(a.RMS.At(r, c)) {
				n++
			}
		}
	}
	return n
}

// CellReconstruction is the data behind a single-cell comparison.
type CellReconstruction struct {
	Row, Col       int
	Wave           *mat.Dense
	Reconstruction *mat.Dense
	Difference     *mat.Dense
}

// ThresholdSummary describes the cells of a metric grid below one threshold.
type ThresholdSummary struct {
	Threshold float64
	Count     int
	Total     int
	// Percent is Count relative to every cell, including cells without data.
	Percent float64
	// Mean of the values below the threshold; NaN when Count is zero.
	Mean float64
}

package analysis

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/user/tsunami_accuracy_go/internal/parser"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// checkFamilies verifies that every family can be contracted against the wave
// and that all families cover the same coefficient grid.
func checkFamilies(wave *mat.Dense, families []Family) (rows, cols int, err error) {
	if wave == nil {
		return 0, 0, fmt.Errorf("%w: no reference wave", parser.ErrConfig)
	}
	if len(families) == 0 {
		return 0, 0, fmt.Errorf("%w: no basis families", parser.ErrConfig)
	}
	h, w := wave.Dims()
	first := families[0].Coefs
	if first == nil {
		return 0, 0, fmt.Errorf("%w: family %q has no coefficients", parser.ErrConfig, families[0].Name)
	}

	for _, f := range families {
		if f.Basis == nil || f.Coefs == nil {
			return 0, 0, fmt.Errorf("%w: family %q is incomplete", parser.ErrConfig, f.Name)
		}
		if f.Basis.Len() != f.Coefs.Layers {
			return 0, 0, &parser.ShapeMismatchError{
				BasisDir: f.Basis.Dir,
				CoefPath: f.Coefs.Path,
				What:     "layer count",
				Expected: fmt.Sprint(f.Coefs.Layers),
				Actual:   fmt.Sprint(f.Basis.Len()),
			}
		}
		if bh, bw := f.Basis.Dims(); bh != h || bw != w {
			return 0, 0, &parser.ShapeMismatchError{
				BasisDir: f.Basis.Dir,
				CoefPath: f.Coefs.Path,
				What:     "basis field shape",
				Expected: fmt.Sprintf("%dx%d", h, w),
				Actual:   fmt.Sprintf("%dx%d", bh, bw),
			}
		}
		if f.Coefs.Rows != first.Rows || f.Coefs.Cols != first.Cols {
			return 0, 0, &parser.ShapeMismatchError{
				BasisDir: f.Basis.Dir,
				CoefPath: f.Coefs.Path,
				What:     "coefficient grid shape",
				Expected: fmt.Sprintf("%dx%d", first.Rows, first.Cols),
				Actual:   fmt.Sprintf("%dx%d", f.Coefs.Rows, f.Coefs.Cols),
			}
		}
	}
	return first.Rows, first.Cols, nil
}

// basisMatrix is one family's basis as a layers x H*W matrix, with the pixels
// that hold a NaN or Inf in any layer.
type basisMatrix struct {
	m         *mat.Dense
	nonFinite []int
}

func basisMatrices(families []Family) []basisMatrix {
	out := make([]basisMatrix, len(families))
	for i, f := range families {
		m := f.Basis.Matrix()
		layers, pixels := m.Dims()
		var bad []int
		for j := 0; j < pixels; j++ {
			for l := 0; l < layers; l++ {
				if v := m.At(l, j); math.IsNaN(v) || math.IsInf(v, 0) {
					bad = append(bad, j)
					break
				}
			}
		}
		out[i] = basisMatrix{m: m, nonFinite: bad}
	}
	return out
}

// reconstructRows contracts coefficient rows [r0, r1) of every family against
// its basis matrix. The result has one row per cell, (r1-r0)*cols rows in
// total, each holding a flattened H*W reconstruction. With several families
// the reconstructions are averaged before anything is compared.
func reconstructRows(families []Family, basisMats []basisMatrix, r0, r1 int) *mat.Dense {
	var acc *mat.Dense
	for i, f := range families {
		coefs := f.Coefs.RowBlock(r0, r1)
		b := basisMats[i]
		var rec mat.Dense
		rec.Mul(coefs, b.m)
		// Mul drops terms whose coefficient is zero, so 0*NaN and 0*Inf never
		// reach the sum. Redo non-finite pixels term by term.
		if len(b.nonFinite) > 0 {
			n, layers := coefs.Dims()
			for _, j := range b.nonFinite {
				for k := 0; k < n; k++ {
					var v float64
					for l := 0; l < layers; l++ {
						v += coefs.At(k, l) * b.m.At(l, j)
					}
					rec.Set(k, j, v)
				}
			}
		}
		if acc == nil {
			acc = &rec
			continue
		}
		acc.Add(acc, &rec)
	}
	if len(families) > 1 {
		n := float64(len(families))
		data := acc.RawMatrix().Data
		for i := range data {
			data[i] /= n
		}
	}
	return acc
}

// nanMax keeps NaN once seen, matching numpy's max.
func nanMax(cur, v float64) float64 {
	if v > cur || math.IsNaN(v) {
		return v
	}
	return cur
}

// cellErrors returns the unnormalised RMS difference, the peak absolute
// difference and the peak absolute reconstruction value.
func cellErrors(wave, rec []float64) (rms, maxDiff, maxRec float64) {
	var sumSq float64
	for j, w := range wave {
		d := w - rec[j]
		sumSq += d * d
		maxDiff = nanMax(maxDiff, math.Abs(d))
		maxRec = nanMax(maxRec, math.Abs(rec[j]))
	}
	return math.Sqrt(sumSq / float64(len(wave))), maxDiff, maxRec
}

func (a *AccuracyMaps) storeRows(rec *mat.Dense, wave []float64, r0, cols int) {
	n, _ := rec.Dims()
	for i := 0; i < n; i++ {
		rms, maxDiff, maxRec := cellErrors(wave, rec.RawRowView(i))
		r, c := r0+i/cols, i%cols
		a.RMS.Set(r, c, rms/a.WaveRMS)
		a.Max.Set(r, c, maxDiff/a.WaveMax)
		a.MaxValueDiff.Set(r, c, math.Abs(maxRec-a.WaveMax)/a.WaveMax)
	}
}

// ComputeAccuracy reconstructs the wave at every coefficient-grid cell and
// scores the reconstruction against it. One family gives the plain accuracy;
// several families score the mean of their reconstructions.
//
// Rows are processed in chunks of opts.ChunkSize; chunking and the worker
// count only bound memory and throughput, the output is bit-identical for any
// choice.
func ComputeAccuracy(ctx context.Context, wave *mat.Dense, families []Family, opts Options) (*AccuracyMaps, error) {
	rows, cols, err := checkFamilies(wave, families)
	if err != nil {
		return nil, err
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	workers := max(opts.Workers, 1)

	waveFlat := parser.Flatten(wave)
	maps := newAccuracyMaps(rows, cols)
	maps.WaveRMS = floats.Norm(waveFlat, 2) / math.Sqrt(float64(len(waveFlat)))
	maps.WaveMax = floats.Norm(waveFlat, math.Inf(1))

	basisMats := basisMatrices(families)

	var starts []int
	for r0 := 0; r0 < rows; r0 += chunkSize {
		starts = append(starts, r0)
	}
	var done atomic.Int64
	runChunk := func(r0 int) {
		r1 := min(r0+chunkSize, rows)
		rec := reconstructRows(families, basisMats, r0, r1)
		maps.storeRows(rec, waveFlat, r0, cols)
		if opts.Progress != nil {
			opts.Progress(int(done.Add(1)), len(starts))
		}
	}

	if workers == 1 {
		for _, r0 := range starts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			runChunk(r0)
		}
		return maps, nil
	}

	// Chunks write disjoint row ranges of maps and only read shared inputs.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, r0 := range starts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			runChunk(r0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return maps, nil
}

// ReconstructCell rebuilds the wave from the coefficients of a single cell and
// returns it with the difference wave - reconstruction.
func ReconstructCell(wave *mat.Dense, families []Family, r, c int) (*CellReconstruction, error) {
	rows, cols, err := checkFamilies(wave, families)
	if err != nil {
		return nil, err
	}
	if r < 0 || r >= rows || c < 0 || c >= cols {
		return nil, fmt.Errorf("%w: cell [%d,%d] outside coefficient grid %dx%d", parser.ErrConfig, r, c, rows, cols)
	}

	basisMats := basisMatrices(families)
	h, w := wave.Dims()
	row := reconstructRows(families, basisMats, r, r+1).RawRowView(c)

	rec := mat.NewDense(h, w, append([]float64(nil), row...))
	diff := mat.NewDense(h, w, nil)
	diff.Sub(wave, rec)
	return &CellReconstruction{
		Row:            r,
		Col:            c,
		Wave:           wave,
		Reconstruction: rec,
		Difference:     diff,
	}, nil
}

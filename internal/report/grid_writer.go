package report

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/user/tsunami_accuracy_go/internal/analysis"
	"gonum.org/v1/gonum/mat"
)

// AproxErrorFile is the stem of the exported approximation-error grid.
const AproxErrorFile = "aprox_error"

// formatValue renders v with six decimals. Non-finite values are spelled the
// way the field loader and numpy read them back.
func formatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteGrid writes m as whitespace-separated text, one matrix row per line.
// Parent directories are created as needed.
func WriteGrid(path string, m mat.Matrix) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	rows, cols := m.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c > 0 {
				w.WriteByte(' ')
			}
			w.WriteString(formatValue(m.At(r, c)))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// WriteMaps writes each metric grid to dir/{metric}.txt and returns the paths
// in metric order.
func WriteMaps(dir string, maps *analysis.AccuracyMaps) ([]string, error) {
	named := maps.Named()
	paths := make([]string, 0, len(analysis.MetricNames))
	for _, name := range analysis.MetricNames {
		path := filepath.Join(dir, name+".txt")
		if err := WriteGrid(path, named[name]); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteAproxError writes the per-cell approximation error reported by the
// decomposition next to the metric grids.
func WriteAproxError(dir string, errs *mat.Dense) (string, error) {
	path := filepath.Join(dir, AproxErrorFile+".txt")
	if errs == nil {
		return "", fmt.Errorf("no approximation errors to write to %s", path)
	}
	return path, WriteGrid(path, errs)
}

// WriteCell writes the wave, the reconstruction and their difference for one
// inspected cell as {prefix}_wave.txt, {prefix}_reconstruction.txt and
// {prefix}_difference.txt, where prefix is cell_{row}_{col}.
func WriteCell(dir string, cell *analysis.CellReconstruction) ([]string, error) {
	prefix := fmt.Sprintf("cell_%d_%d", cell.Row, cell.Col)
	parts := []struct {
		suffix string
		m      *mat.Dense
	}{
		{"wave", cell.Wave},
		{"reconstruction", cell.Reconstruction},
		{"difference", cell.Difference},
	}

	var paths []string
	for _, p := range parts {
		path := filepath.Join(dir, prefix+"_"+p.suffix+".txt")
		if err := WriteGrid(path, p.m); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

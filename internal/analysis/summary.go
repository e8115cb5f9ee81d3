package analysis

import (
	"math"

	"github.com/user/tsunami_accuracy_go/internal/parser"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultThresholds are the error levels used to compare basis sizes.
var DefaultThresholds = []float64{0.2, 0.4}

// SummarizeThresholds reports, per threshold, how much of the grid has a
// metric strictly below it and the mean metric over that part. Cells without
// data count towards the total but never fall below a threshold.
func SummarizeThresholds(grid mat.Matrix, thresholds []float64) []ThresholdSummary {
	values := parser.Flatten(grid)
	out := make([]ThresholdSummary, 0, len(thresholds))
	for _, thr := range thresholds {
		var below []float64
		for _, v := range values {
			if v < thr {
				below = append(below, v)
			}
		}
		s := ThresholdSummary{
			Threshold: thr,
			Count:     len(below),
			Total:     len(values),
			Mean:      math.NaN(),
		}
		if s.Total > 0 {
			s.Percent = 100 * float64(s.Count) / float64(s.Total)
		}
		if s.Count > 0 {
			s.Mean = stat.Mean(below, nil)
		}
		out = append(out, s)
	}
	return out
}

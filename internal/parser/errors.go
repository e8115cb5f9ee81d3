package parser

import (
	"errors"
	"fmt"
)

// Error classes returned by the loaders. Callers match them with errors.Is;
// the wrapped message always names the offending file or directory.
var (
	ErrConfig           = errors.New("config error")
	ErrFormat           = errors.New("format error")
	ErrInconsistentData = errors.New("inconsistent data")
	ErrNotFound         = errors.New("not found")
	ErrShapeMismatch    = errors.New("shape mismatch")
)

// ShapeMismatchError reports basis and coefficient inputs that cannot be
// contracted together.
type ShapeMismatchError struct {
	BasisDir string
	CoefPath string
	What     string // "layer count", "basis field shape", "coefficient grid shape"
	Expected string
	Actual   string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%v: %s: expected %s, got %s (basis %q, coefficients %q)",
		ErrShapeMismatch, e.What, e.Expected, e.Actual, e.BasisDir, e.CoefPath)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}

package parser

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadZones(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := writeFile(t, dir, "zones.json",
			`{"size": [100, 200], "subduction_zone": [10, 50, 20, 180], "mariogramm_zone": [60, 90, 0, 200]}`)
		zc, err := LoadZones(path, SubductionZone)
		require.NoError(t, err)
		assert.Equal(t, 100, zc.Height)
		assert.Equal(t, 200, zc.Width)

		sub, err := zc.Region(SubductionZone)
		require.NoError(t, err)
		assert.Equal(t, Region{YMin: 10, YMax: 50, XMin: 20, XMax: 180}, sub)
		assert.Equal(t, 40, sub.Height())
		assert.Equal(t, 160, sub.Width())

		_, err = zc.Region("nope")
		assert.ErrorIs(t, err, ErrConfig)
	})

	tests := []struct {
		name    string
		content string
	}{
		{"malformed", `{"size": [100, 200],`},
		{"missing size", `{"subduction_zone": [0, 1, 0, 1]}`},
		{"bad size", `{"size": [100], "subduction_zone": [0, 1, 0, 1]}`},
		{"missing region", `{"size": [100, 200]}`},
		{"region past height", `{"size": [100, 200], "subduction_zone": [10, 101, 0, 10]}`},
		{"empty region", `{"size": [100, 200], "subduction_zone": [10, 10, 0, 10]}`},
		{"negative col", `{"size": [100, 200], "subduction_zone": [0, 10, -1, 10]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "bad.json", tt.content)
			_, err := LoadZones(path, SubductionZone)
			assert.ErrorIs(t, err, ErrConfig)
			assert.Contains(t, err.Error(), path)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadZones(filepath.Join(dir, "absent.json"))
		assert.ErrorIs(t, err, ErrConfig)
	})
}

func TestLoadField(t *testing.T) {
	dir := t.TempDir()

	path := writeFile(t, dir, "wave.wave", "# header\n1.0 2.0 3.0\n\n4 5 6\n  7e0\t8.5   nan\n")
	m, err := LoadField(path)
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 8.5, m.At(2, 1))
	assert.True(t, math.IsNaN(m.At(2, 2)))

	cropped, err := Crop(m, Region{YMin: 1, YMax: 3, XMin: 0, XMax: 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 7, 8.5}, Flatten(cropped))

	// The crop is a copy, not a view.
	cropped.Set(0, 0, -1)
	assert.Equal(t, 4.0, m.At(1, 0))

	_, err = Crop(m, Region{YMin: 0, YMax: 4, XMin: 0, XMax: 1})
	assert.ErrorIs(t, err, ErrFormat)

	ragged := writeFile(t, dir, "ragged.wave", "1 2 3\n4 5\n")
	_, err = LoadField(ragged)
	assert.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), ragged)
	assert.Contains(t, err.Error(), "line 2")

	junk := writeFile(t, dir, "junk.wave", "1 2\n3 x\n")
	_, err = LoadField(junk)
	assert.ErrorIs(t, err, ErrFormat)

	empty := writeFile(t, dir, "empty.wave", "\n\n")
	_, err = LoadField(empty)
	assert.ErrorIs(t, err, ErrFormat)

	_, err = LoadField(filepath.Join(dir, "missing.wave"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadBasisStackOrdersByIndex(t *testing.T) {
	dir := t.TempDir()
	// Written out of order; lexical order would put basis_10 before basis_2.
	writeFile(t, dir, "basis_10.wave", "10 10\n10 10\n")
	writeFile(t, dir, "basis_2.wave", "2 2\n2 2\n")
	writeFile(t, dir, "basis_0.wave", "0 0\n0 0\n")
	writeFile(t, dir, "readme.txt", "not a basis")
	writeFile(t, dir, "basis_3.txt", "3 3\n3 3\n")

	region := Region{YMin: 0, YMax: 1, XMin: 1, XMax: 2}
	stack, err := LoadBasisStack(dir, region, BasisOptions{})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 10}, stack.Indices)
	require.Equal(t, 3, stack.Len())
	for i, want := range []float64{0, 2, 10} {
		assert.Equal(t, want, stack.Fields[i].At(0, 0))
	}
	h, w := stack.Dims()
	assert.Equal(t, 1, h)
	assert.Equal(t, 1, w)
	assert.Equal(t, []int{1, 3, 4, 5, 6, 7, 8, 9}, stack.Gaps())

	bm := stack.Matrix()
	r, c := bm.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)
	assert.Equal(t, 10.0, bm.At(2, 0))

	_, err = LoadBasisStack(dir, region, BasisOptions{Strict: true})
	assert.ErrorIs(t, err, ErrConfig)

	txt, err := LoadBasisStack(dir, region, BasisOptions{Pattern: `basis_(\d+)\.txt$`})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, txt.Indices)
}

func TestLoadBasisStackErrors(t *testing.T) {
	region := Region{YMin: 0, YMax: 1, XMin: 0, XMax: 1}

	_, err := LoadBasisStack(filepath.Join(t.TempDir(), "missing"), region, BasisOptions{})
	assert.ErrorIs(t, err, ErrNotFound)

	empty := t.TempDir()
	writeFile(t, empty, "notes.md", "x")
	_, err = LoadBasisStack(empty, region, BasisOptions{})
	assert.ErrorIs(t, err, ErrNotFound)

	dup := t.TempDir()
	writeFile(t, dup, "a_1.wave", "1\n")
	writeFile(t, dup, "b_01.wave", "1\n")
	_, err = LoadBasisStack(dup, region, BasisOptions{})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = LoadBasisStack(dup, region, BasisOptions{Pattern: `\.wave`})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = LoadBasisStack(dup, region, BasisOptions{Pattern: `(`})
	assert.ErrorIs(t, err, ErrConfig)

	bad := t.TempDir()
	writeFile(t, bad, "basis_0.wave", "1 2\n3\n")
	_, err = LoadBasisStack(bad, region, BasisOptions{})
	assert.ErrorIs(t, err, ErrFormat)
}

func TestLoadCoefficientsSparse(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "coefs.json", `{
		"[0,0]": {"coefs": [1.0, 2.0], "aprox_error": 0.1},
		"[ 2 , 1 ]": {"coefs": [3.0, 4.0], "aprox_error": 0.2},
		"[1,0]": {"coefs": [NaN, -Infinity], "aprox_error": NaN}
	}`)

	grid, err := LoadCoefficients(path)
	require.NoError(t, err)
	assert.Equal(t, 3, grid.Rows)
	assert.Equal(t, 2, grid.Cols)
	assert.Equal(t, 2, grid.Layers)

	assert.Equal(t, []float64{1, 2}, grid.Vector(0, 0))
	assert.Equal(t, []float64{3, 4}, grid.Vector(2, 1))
	assert.Equal(t, 0.2, grid.Errors.At(2, 1))

	nanVec := grid.Vector(1, 0)
	assert.True(t, math.IsNaN(nanVec[0]))
	assert.True(t, math.IsInf(nanVec[1], -1))
	assert.True(t, grid.Defined(1, 0))

	for _, cell := range [][2]int{{0, 1}, {1, 1}, {2, 0}} {
		assert.False(t, grid.Defined(cell[0], cell[1]), "cell %v", cell)
		for _, v := range grid.Vector(cell[0], cell[1]) {
			assert.True(t, math.IsNaN(v))
		}
		assert.True(t, math.IsNaN(grid.Errors.At(cell[0], cell[1])))
	}
	assert.Equal(t, 3, grid.Undefined())

	block := grid.RowBlock(2, 3)
	r, c := block.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 4.0, block.At(1, 1))
}

func TestLoadCoefficientsErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"inconsistent layers", `{"[0,0]": {"coefs": [1, 2]}, "[0,1]": {"coefs": [1]}}`, ErrInconsistentData},
		{"empty vector", `{"[0,0]": {"coefs": []}}`, ErrInconsistentData},
		{"bad key", `{"0-0": {"coefs": [1]}}`, ErrFormat},
		{"negative key", `{"[-1,0]": {"coefs": [1]}}`, ErrFormat},
		{"no coefs", `{"[0,0]": {"aprox_error": 1}}`, ErrFormat},
		{"empty object", `{}`, ErrFormat},
		{"array", `[1, 2]`, ErrFormat},
		{"truncated", `{"[0,0]": {"coefs": [1]`, ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "c.json", tt.content)
			_, err := LoadCoefficients(path)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), path)
		})
	}

	_, err := LoadCoefficients(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadCoefficientsRejectsOversizedGrid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"product overflows int": `{"[0,0]": {"coefs": [1.0, 2.0]}, "[3037000499,3037000499]": {"coefs": [1.0, 2.0]}}`,
		"max int row":           `{"[9223372036854775807,0]": {"coefs": [1.0]}}`,
		"wide and deep":         `{"[0,300000]": {"coefs": [` + strings.TrimSuffix(strings.Repeat("1,", 1000), ",") + `]}}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, "c.json", content)
			_, err := LoadCoefficients(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFormat)
			assert.Contains(t, err.Error(), path)
		})
	}
	path := writeFile(t, dir, "c.json", tests["product overflows int"])
	_, err := LoadCoefficients(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[3037000499,3037000499]")
}

func TestLoadCoefficientsMissingErrorIsNaN(t *testing.T) {
	path := writeFile(t, t.TempDir(), "c.json", `{"[0,0]": {"coefs": [1], "aprox_error": null}, "[0,1]": {"coefs": [2]}}`)
	grid, err := LoadCoefficients(path)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(grid.Errors.At(0, 0)))
	assert.True(t, math.IsNaN(grid.Errors.At(0, 1)))
	assert.Equal(t, 0, grid.Undefined())
}

func TestQuoteNonFiniteLeavesStringsAlone(t *testing.T) {
	in := []byte(`{"NaN \"Infinity\"": [NaN, -Infinity, Infinity, 1]}`)
	got := string(quoteNonFinite(in))
	assert.Equal(t, `{"NaN \"Infinity\"": ["NaN", "-Inf", "+Inf", 1]}`, got)
}

func TestShapeMismatchError(t *testing.T) {
	var err error = &ShapeMismatchError{BasisDir: "b", CoefPath: "c.json", What: "layers", Expected: "3", Actual: "2"}
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.Contains(t, err.Error(), "c.json")
	assert.Contains(t, err.Error(), "expected 3, got 2")
}

func TestNewDatasetPaths(t *testing.T) {
	p := NewDatasetPaths("root", "x_200_2000", "basis_6", "gaus_single_2")
	assert.Equal(t, filepath.Join("root", "waves", "gaus_single_2.wave"), p.Wave)
	assert.Equal(t, filepath.Join("root", "basises", "basis_6"), p.BasisDir)
	assert.Equal(t, filepath.Join("root", "coeffs", "case_statistics_gaus_single_2_basis_6_x_200_2000_all.json"), p.Coefs)
}

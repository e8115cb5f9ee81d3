package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/tsunami_accuracy_go/internal/config"
	"github.com/user/tsunami_accuracy_go/internal/generator"
	"github.com/user/tsunami_accuracy_go/internal/parser"
	"github.com/user/tsunami_accuracy_go/internal/report"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"
)

const zonesJSON = `{"size": [6, 6], "mariogramm_zone": [1, 5, 1, 5], "subduction_zone": [0, 6, 0, 6]}`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func ones(h, w int) *mat.Dense {
	m := mat.NewDense(h, w, nil)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			m.Set(r, c, 1)
		}
	}
	return m
}

// dataset lays out a results tree with one wave and the given families, each
// a single constant basis function with its coefficient JSON.
func dataset(t *testing.T, families map[string]string) (root, zones string) {
	t.Helper()
	root = t.TempDir()
	zones = writeFile(t, filepath.Join(root, "zones.json"), zonesJSON)
	require.NoError(t, report.WriteGrid(filepath.Join(root, "waves", "w1.wave"), ones(6, 6)))
	for name, coefs := range families {
		require.NoError(t, report.WriteGrid(filepath.Join(root, "basises", name, "basis_0.wave"), ones(6, 6)))
		p := parser.NewDatasetPaths(root, "b1", name, "w1")
		writeFile(t, p.Coefs, coefs)
	}
	return root, zones
}

const flatCoefs = `{
	"[0,0]": {"coefs": [1.0], "aprox_error": 0.1},
	"[0, 1]": {"coefs": [0.5], "aprox_error": NaN},
	"[1,1]": {"coefs": [0.0]}
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func TestAccuracyCommand(t *testing.T) {
	root, zones := dataset(t, map[string]string{"flat": flatCoefs})
	out := filepath.Join(t.TempDir(), "acc")

	stdout, err := run(t, "accuracy", "--zones", zones, "-o", out, "--chunk-size", "1",
		"--root", root, "--bath", "b1", "--wave-name", "w1", "--basis-name", "flat", "--aprox-error")
	require.NoError(t, err)

	lines := strings.Fields(stdout)
	require.Len(t, lines, 4)
	assert.Equal(t, filepath.Join(out, "rms_accuracy.txt"), lines[0])
	assert.Equal(t, filepath.Join(out, "aprox_error.txt"), lines[3])

	assert.Equal(t, "0.000000 0.500000\nnan 1.000000\n", readFile(t, lines[0]))
	assert.Equal(t, "0.000000 0.500000\nnan 1.000000\n", readFile(t, lines[1]))
	assert.Equal(t, "0.000000 0.500000\nnan 1.000000\n", readFile(t, lines[2]))
	assert.Equal(t, "0.100000 nan\nnan nan\n", readFile(t, lines[3]))

	stdout, err = run(t, "summary", filepath.Join(out, "rms_accuracy.txt"), "--threshold", "0.2", "--threshold", "0.6")
	require.NoError(t, err)
	assert.Contains(t, stdout, "range 0.000000 .. 1.000000")
	assert.Contains(t, stdout, "< 0.2: 1/4 cells (25.00%), mean 0.000000")
	assert.Contains(t, stdout, "< 0.6: 2/4 cells (50.00%), mean 0.250000")
	assert.Contains(t, stdout, "  band [0, 0.2): 1 cells\n")
	assert.Contains(t, stdout, "  band [0.4, 1): 1 cells\n")
	assert.Contains(t, stdout, "  band >= 1: 1 cells\n")
	assert.Contains(t, stdout, "  band nan: 1 cells\n")
	assert.NotContains(t, stdout, "band [0.2, 0.4)")
}

func TestDefaultRegionIsSubductionZone(t *testing.T) {
	root, zones := dataset(t, map[string]string{"flat": `{"[0,0]": {"coefs": [1.0]}}`})
	// Only the corner differs, and it lies outside the mariogramm zone.
	wave := ones(6, 6)
	wave.Set(0, 0, 5)
	require.NoError(t, report.WriteGrid(filepath.Join(root, "waves", "w1.wave"), wave))
	args := []string{"--root", root, "--bath", "b1", "--wave-name", "w1", "--basis-name", "flat"}

	out := filepath.Join(t.TempDir(), "default")
	_, err := run(t, append([]string{"accuracy", "--zones", zones, "-o", out}, args...)...)
	require.NoError(t, err)
	// sqrt(16/36) / sqrt(60/36)
	assert.Equal(t, "0.516398\n", readFile(t, filepath.Join(out, "rms_accuracy.txt")))
	assert.Equal(t, "0.800000\n", readFile(t, filepath.Join(out, "max_accuracy.txt")))

	out = filepath.Join(t.TempDir(), "inner")
	_, err = run(t, append([]string{"accuracy", "--zones", zones, "--region", parser.MariogrammZone, "-o", out}, args...)...)
	require.NoError(t, err)
	assert.Equal(t, "0.000000\n", readFile(t, filepath.Join(out, "rms_accuracy.txt")))
}

func TestAccuracyCommandErrors(t *testing.T) {
	root, zones := dataset(t, map[string]string{"flat": flatCoefs, "other": flatCoefs})
	out := t.TempDir()

	_, err := run(t, "accuracy", "--zones", zones, "-o", out,
		"--root", root, "--bath", "b1", "--wave-name", "w1", "--basis-name", "flat,other")
	assert.ErrorIs(t, err, parser.ErrConfig)

	_, err = run(t, "accuracy", "--zones", zones, "-o", out,
		"--root", root, "--bath", "b2", "--wave-name", "w1", "--basis-name", "flat")
	assert.ErrorIs(t, err, parser.ErrNotFound)

	_, err = run(t, "accuracy", "--zones", zones, "-o", out, "--root", root)
	assert.ErrorIs(t, err, parser.ErrConfig)

	_, err = run(t, "accuracy", "--zones", zones, "-o", out, "--wave", "w.wave", "--family", "nodelimiter")
	assert.ErrorIs(t, err, parser.ErrConfig)

	_, err = run(t, "accuracy", "--zones", zones, "--region", "nowhere", "-o", out,
		"--root", root, "--bath", "b1", "--wave-name", "w1", "--basis-name", "flat")
	assert.ErrorIs(t, err, parser.ErrConfig)

	_, err = run(t, "accuracy", "--workers", "0", "--root", root)
	assert.ErrorIs(t, err, parser.ErrConfig)
}

func TestRunAccuracyMean(t *testing.T) {
	double := `{"[0,0]": {"coefs": [2.0]}, "[0,1]": {"coefs": [2.0]}, "[1,1]": {"coefs": [2.0]}}`
	zero := `{"[0,0]": {"coefs": [0.0]}, "[0,1]": {"coefs": [0.0]}, "[1,1]": {"coefs": [0.0]}}`
	root, zones := dataset(t, map[string]string{"double": double, "zero": zero})

	cfg := config.DefaultConfig()
	cfg.Zones = zones
	cfg.Workers = 2
	core, logs := observer.New(zapcore.InfoLevel)
	app := NewApp(context.Background(), zap.New(core), cfg)

	out := t.TempDir()
	res, err := app.RunAccuracy(DatasetInputs(root, "b1", "w1", []string{"double", "zero"}), out, true)
	require.NoError(t, err)

	// Averaging reconstructions 2 and 0 gives back the wave exactly.
	assert.Equal(t, 0.0, res.Maps.RMS.At(0, 0))
	assert.Equal(t, 0.0, res.Maps.MaxValueDiff.At(0, 1))
	assert.Equal(t, 1, res.Maps.Undefined())
	assert.Contains(t, res.Files, filepath.Join(out, "double", "aprox_error.txt"))
	assert.Contains(t, res.Files, filepath.Join(out, "zero", "aprox_error.txt"))

	missing := logs.FilterMessage("cells without coefficients").All()
	require.Len(t, missing, 2)
	assert.Equal(t, 1, logs.FilterMessage("accuracy undefined for some cells").Len())
}

func TestInspectCommand(t *testing.T) {
	root, zones := dataset(t, map[string]string{"flat": flatCoefs})
	out := t.TempDir()

	stdout, err := run(t, "inspect", "--zones", zones, "-o", out, "--row", "0", "--col", "1",
		"--root", root, "--bath", "b1", "--wave-name", "w1", "--basis-name", "flat")
	require.NoError(t, err)
	paths := strings.Fields(stdout)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(out, "cell_0_1_reconstruction.txt"), paths[1])

	rec, err := parser.LoadField(paths[1])
	require.NoError(t, err)
	r, c := rec.Dims()
	assert.Equal(t, 6, r)
	assert.Equal(t, 6, c)
	assert.Equal(t, 0.5, rec.At(3, 3))

	_, err = run(t, "inspect", "--zones", zones, "-o", out, "--row", "5", "--col", "0",
		"--root", root, "--bath", "b1", "--wave-name", "w1", "--basis-name", "flat")
	assert.ErrorIs(t, err, parser.ErrConfig)
}

func TestGenerateThenAccuracy(t *testing.T) {
	dir := t.TempDir()
	zones := writeFile(t, filepath.Join(dir, "zones.json"), zonesJSON)
	basisDir := filepath.Join(dir, "tiles")

	stdout, err := run(t, "generate", "basis", "--zones", zones, "-o", basisDir,
		"--tile-height", "3", "--tile-width", "3", "--value", "1")
	require.NoError(t, err)
	require.Len(t, strings.Fields(stdout), 4)
	assert.FileExists(t, filepath.Join(basisDir, "basis_3.wave"))

	// Weights 1..4 over the four quadrants.
	wave := mat.NewDense(6, 6, nil)
	tiles, err := generator.Tiles(parser.Region{YMax: 6, XMax: 6}, 3, 3)
	require.NoError(t, err)
	for i, tile := range tiles {
		wave.Add(wave, generator.TileBasis(6, 6, tile, float64(i+1)))
	}
	wavePath := filepath.Join(dir, "wave.wave")
	require.NoError(t, report.WriteGrid(wavePath, wave))
	coefs := writeFile(t, filepath.Join(dir, "coefs.json"),
		`{"[0,0]": {"coefs": [1, 2, 3, 4]}, "[0,1]": {"coefs": [0, 0, 0, 0]}}`)

	out := filepath.Join(dir, "acc")
	_, err = run(t, "accuracy", "--zones", zones, "-o", out, "--strict-indices",
		"--wave", wavePath, "--family", basisDir+"="+coefs)
	require.NoError(t, err)
	assert.Equal(t, "0.000000 1.000000\n", readFile(t, filepath.Join(out, "rms_accuracy.txt")))
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "run.yaml")

	stdout, err := run(t, "--config", path, "--workers", "3", "config", "init")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", stdout)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	want := config.DefaultConfig()
	want.Workers = 3
	assert.Equal(t, want, cfg)

	_, err = run(t, "--config", path, "config", "init")
	assert.ErrorIs(t, err, parser.ErrConfig)

	_, err = run(t, "--config", path, "--chunk-size", "5", "config", "init", "--force")
	require.NoError(t, err)
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ChunkSize)
	assert.Equal(t, 3, cfg.Workers)
}

func TestGenerateFields(t *testing.T) {
	dir := t.TempDir()
	zones := writeFile(t, filepath.Join(dir, "zones.json"), zonesJSON)

	shapeOut := filepath.Join(dir, "shape.wave")
	_, err := run(t, "generate", "shape", "--zones", zones, "--form", generator.ShapeGradientX,
		"--min", "0", "--max", "5", "--out", shapeOut)
	require.NoError(t, err)
	shape, err := parser.LoadField(shapeOut)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, mat.Row(nil, 2, shape))

	srcOut := filepath.Join(dir, "src.wave")
	_, err = run(t, "generate", "subduction", "--zones", zones, "--form", generator.SourceGaussian,
		"--sigma-x", "2", "--sigma-y", "2", "--amplitude", "3", "--out", srcOut)
	require.NoError(t, err)
	src, err := parser.LoadField(srcOut)
	require.NoError(t, err)
	assert.Equal(t, 3.0, src.At(3, 3))

	_, err = run(t, "generate", "subduction", "--zones", zones, "--form", "ring", "--out", srcOut)
	assert.ErrorIs(t, err, parser.ErrConfig)
}

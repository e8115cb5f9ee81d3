package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/tsunami_accuracy_go/internal/analysis"
	"github.com/user/tsunami_accuracy_go/internal/config"
	"github.com/user/tsunami_accuracy_go/internal/generator"
	"github.com/user/tsunami_accuracy_go/internal/parser"
	"github.com/user/tsunami_accuracy_go/internal/report"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// FamilyPaths locates one basis family and the coefficients expressed in it.
type FamilyPaths struct {
	Name     string
	BasisDir string
	Coefs    string
}

// Inputs are the files of one accuracy run.
type Inputs struct {
	Wave     string
	Families []FamilyPaths
}

// DatasetInputs resolves the results-tree layout for one wave and one or more
// basis families.
func DatasetInputs(root, bath, wave string, basisNames []string) Inputs {
	in := Inputs{Wave: parser.NewDatasetPaths(root, bath, "", wave).Wave}
	for _, name := range basisNames {
		p := parser.NewDatasetPaths(root, bath, name, wave)
		in.Families = append(in.Families, FamilyPaths{Name: name, BasisDir: p.BasisDir, Coefs: p.Coefs})
	}
	return in
}

// RunResult lists what an accuracy run produced.
type RunResult struct {
	Maps  *analysis.AccuracyMaps
	Files []string
}

// App carries the shared state of one command invocation.
type App struct {
	ctx    context.Context
	logger *zap.Logger
	cfg    *config.Config
}

// NewApp creates a new App application struct
func NewApp(ctx context.Context, logger *zap.Logger, cfg *config.Config) *App {
	return &App{ctx: ctx, logger: logger, cfg: cfg}
}

func (a *App) sendStatus(message string, fields ...zap.Field) {
	a.logger.Info(message, fields...)
}

func (a *App) loadZones(required ...string) (*parser.ZoneConfig, error) {
	zones, err := parser.LoadZones(a.cfg.Zones, required...)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("zones loaded",
		zap.String("path", zones.Path),
		zap.Int("height", zones.Height),
		zap.Int("width", zones.Width))
	return zones, nil
}

// loadInputs reads the wave and every family, cropped to the configured region.
// Families are independent and load concurrently.
func (a *App) loadInputs(in Inputs) (*mat.Dense, []analysis.Family, error) {
	if len(in.Families) == 0 {
		return nil, nil, fmt.Errorf("%w: no basis families given", parser.ErrConfig)
	}
	zones, err := a.loadZones(a.cfg.Region)
	if err != nil {
		return nil, nil, err
	}
	region, err := zones.Region(a.cfg.Region)
	if err != nil {
		return nil, nil, err
	}

	a.sendStatus("loading wave", zap.String("path", in.Wave), zap.Stringer("region", region))
	wave, err := parser.LoadRegion(in.Wave, region)
	if err != nil {
		return nil, nil, err
	}

	families := make([]analysis.Family, len(in.Families))
	var g errgroup.Group
	g.SetLimit(a.cfg.Workers)
	for i, fp := range in.Families {
		g.Go(func() error {
			basis, err := parser.LoadBasisStack(fp.BasisDir, region, a.cfg.BasisOptions())
			if err != nil {
				return err
			}
			if gaps := basis.Gaps(); len(gaps) > 0 {
				a.logger.Warn("basis indices are not contiguous",
					zap.String("family", fp.Name),
					zap.Ints("missing", gaps))
			}
			coefs, err := parser.LoadCoefficients(fp.Coefs)
			if err != nil {
				return err
			}
			a.sendStatus("family loaded",
				zap.String("family", fp.Name),
				zap.Int("layers", basis.Len()),
				zap.Int("rows", coefs.Rows),
				zap.Int("cols", coefs.Cols))
			if n := coefs.Undefined(); n > 0 {
				a.logger.Warn("cells without coefficients",
					zap.String("family", fp.Name),
					zap.Int("count", n))
			}
			families[i] = analysis.Family{Name: fp.Name, Basis: basis, Coefs: coefs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return wave, families, nil
}

func (a *App) progress(done, total int) {
	a.logger.Debug("chunk done", zap.Int("done", done), zap.Int("total", total))
}

// RunAccuracy scores the reconstruction from one or more families and writes
// the metric grids to outDir. With writeErrors the per-cell approximation error
// of every family is written as well.
func (a *App) RunAccuracy(in Inputs, outDir string, writeErrors bool) (*RunResult, error) {
	wave, families, err := a.loadInputs(in)
	if err != nil {
		return nil, err
	}

	opts := a.cfg.AnalysisOptions()
	opts.Progress = a.progress
	a.sendStatus("computing accuracy",
		zap.Int("families", len(families)),
		zap.Int("chunk_size", opts.ChunkSize),
		zap.Int("workers", opts.Workers))
	maps, err := analysis.ComputeAccuracy(a.ctx, wave, families, opts)
	if err != nil {
		return nil, err
	}
	if n := maps.Undefined(); n > 0 {
		rows, cols := maps.Dims()
		a.logger.Warn("accuracy undefined for some cells",
			zap.Int("count", n),
			zap.Int("total", rows*cols))
	}

	files, err := report.WriteMaps(outDir, maps)
	if err != nil {
		return nil, err
	}
	if writeErrors {
		for _, f := range families {
			dir := outDir
			if len(families) > 1 {
				dir = filepath.Join(outDir, f.Name)
			}
			path, err := report.WriteAproxError(dir, f.Coefs.Errors)
			if err != nil {
				return nil, err
			}
			files = append(files, path)
		}
	}
	a.sendStatus("accuracy written",
		zap.String("dir", outDir),
		zap.Float64("wave_rms", maps.WaveRMS),
		zap.Float64("wave_max", maps.WaveMax))
	return &RunResult{Maps: maps, Files: files}, nil
}

// Inspect writes the wave, reconstruction and difference behind one cell.
func (a *App) Inspect(in Inputs, row, col int, outDir string) ([]string, error) {
	wave, families, err := a.loadInputs(in)
	if err != nil {
		return nil, err
	}
	cell, err := analysis.ReconstructCell(wave, families, row, col)
	if err != nil {
		return nil, err
	}
	for _, f := range families {
		if !f.Coefs.Defined(row, col) {
			a.logger.Warn("inspected cell has no coefficients",
				zap.String("family", f.Name),
				zap.Int("row", row),
				zap.Int("col", col))
		}
	}
	return report.WriteCell(outDir, cell)
}

// GridSummary describes a metric grid loaded from disk.
type GridSummary struct {
	Path       string
	Min, Max   float64
	HasValues  bool
	Thresholds []analysis.ThresholdSummary
	Bands      []report.Band
}

// Summary reports how much of a written metric grid falls below each threshold
// and how many cells land in each band of the accuracy colormap.
func (a *App) Summary(path string, thresholds []float64) (*GridSummary, error) {
	m, err := parser.LoadField(path)
	if err != nil {
		return nil, err
	}
	grid := report.NewGrid(m)
	s := &GridSummary{
		Path:       path,
		Thresholds: analysis.SummarizeThresholds(m, thresholds),
		Bands:      report.AccuracyColormap().Bands(grid),
	}
	s.Min, s.Max, s.HasValues = grid.Range()
	if !s.HasValues {
		a.logger.Warn("grid holds no finite values", zap.String("path", path))
	}
	return s, nil
}

// GenerateBasis tiles the subduction zone and writes one basis file per tile.
func (a *App) GenerateBasis(outDir string, tileHeight, tileWidth int, value float64) ([]string, error) {
	zones, err := a.loadZones(parser.SubductionZone)
	if err != nil {
		return nil, err
	}
	fields, err := generator.SubductionBasis(zones, tileHeight, tileWidth, value)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(fields))
	for i, f := range fields {
		if err := a.ctx.Err(); err != nil {
			return paths, err
		}
		path := filepath.Join(outDir, generator.BasisFileName(i))
		if err := report.WriteGrid(path, f); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	a.sendStatus("basis written", zap.String("dir", outDir), zap.Int("tiles", len(paths)))
	return paths, nil
}

// GenerateShape writes a synthetic wave over the full grid.
func (a *App) GenerateShape(out, form string, o generator.ShapeOptions) error {
	zones, err := a.loadZones()
	if err != nil {
		return err
	}
	field, err := generator.NewShape(zones, form, o)
	if err != nil {
		return err
	}
	if err := report.WriteGrid(out, field); err != nil {
		return err
	}
	a.sendStatus("shape written", zap.String("form", form), zap.String("path", out))
	return nil
}

// GenerateSource writes a gaussian source confined to the subduction zone.
func (a *App) GenerateSource(out, form string, o generator.GaussianOptions) error {
	zones, err := a.loadZones(parser.SubductionZone)
	if err != nil {
		return err
	}
	field, err := generator.NewSource(zones, form, o)
	if err != nil {
		return err
	}
	if err := report.WriteGrid(out, field); err != nil {
		return err
	}
	a.sendStatus("source written", zap.String("form", form), zap.String("path", out))
	return nil
}

// WriteConfig saves the effective settings, flag overrides included, to path.
// An existing file is only replaced when force is set.
func (a *App) WriteConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s already exists, use --force to overwrite", parser.ErrConfig, path)
	}
	if err := a.cfg.Save(path); err != nil {
		return err
	}
	a.sendStatus("config written", zap.String("path", path))
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/user/tsunami_accuracy_go/internal/config"
	"github.com/user/tsunami_accuracy_go/internal/generator"
	"github.com/user/tsunami_accuracy_go/internal/logging"
	"github.com/user/tsunami_accuracy_go/internal/parser"
	"go.uber.org/zap"
)

// cli holds the flag values of one invocation.
type cli struct {
	cfgPath string
	verbose bool

	zones         string
	region        string
	chunkSize     int
	workers       int
	basisPattern  string
	strictIndices bool
	outputDir     string

	app    *App
	logger *zap.Logger
}

// inputFlags selects the files of a run either from the results tree or
// explicitly.
type inputFlags struct {
	root       string
	bath       string
	waveName   string
	basisNames []string

	wave     string
	families []string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.root, "root", "", "Results tree holding waves/, basises/ and coeffs/")
	cmd.Flags().StringVar(&f.bath, "bath", "", "Bathymetry name used in coefficient file names")
	cmd.Flags().StringVar(&f.waveName, "wave-name", "", "Wave name inside the results tree")
	cmd.Flags().StringSliceVar(&f.basisNames, "basis-name", nil, "Basis family name inside the results tree (repeatable)")
	cmd.Flags().StringVar(&f.wave, "wave", "", "Reference wave file")
	cmd.Flags().StringSliceVar(&f.families, "family", nil, "Basis family as BASIS_DIR=COEFS_JSON (repeatable)")
}

func (f *inputFlags) resolve() (Inputs, error) {
	if f.root != "" {
		if f.bath == "" || f.waveName == "" || len(f.basisNames) == 0 {
			return Inputs{}, fmt.Errorf("%w: --root needs --bath, --wave-name and --basis-name", parser.ErrConfig)
		}
		return DatasetInputs(f.root, f.bath, f.waveName, f.basisNames), nil
	}
	if f.wave == "" || len(f.families) == 0 {
		return Inputs{}, fmt.Errorf("%w: give either --root or --wave with --family", parser.ErrConfig)
	}
	in := Inputs{Wave: f.wave}
	for _, fam := range f.families {
		dir, coefs, ok := strings.Cut(fam, "=")
		if !ok || dir == "" || coefs == "" {
			return Inputs{}, fmt.Errorf("%w: family %q is not BASIS_DIR=COEFS_JSON", parser.ErrConfig, fam)
		}
		in.Families = append(in.Families, FamilyPaths{Name: filepath.Base(dir), BasisDir: dir, Coefs: coefs})
	}
	return in, nil
}

// setup loads the configuration, applies flag overrides and builds the logger.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("zones") {
		cfg.Zones = c.zones
	}
	if flags.Changed("region") {
		cfg.Region = c.region
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSize = c.chunkSize
	}
	if flags.Changed("workers") {
		cfg.Workers = c.workers
	}
	if flags.Changed("basis-pattern") {
		cfg.BasisPattern = c.basisPattern
	}
	if flags.Changed("strict-indices") {
		cfg.StrictBasisIndices = c.strictIndices
	}
	if flags.Changed("output") {
		cfg.OutputDir = c.outputDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := cfg.Logging.Level
	if c.verbose {
		level = "debug"
	}
	c.logger, err = logging.New(level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	c.app = NewApp(cmd.Context(), c.logger, cfg)
	return nil
}

func printPaths(cmd *cobra.Command, paths []string) {
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "tsunami_accuracy",
		Short: "Accuracy of tsunami source reconstructions from basis decompositions",
		Long: `Reconstructs a reference wave from per-cell decomposition coefficients
and reports how well the reconstruction matches it:

  rms_accuracy    normalised RMS difference
  max_accuracy    normalised peak absolute difference
  max_value_diff  normalised difference of peak amplitudes

Grid geometry comes from a zone descriptor (JSON); run settings from an
optional YAML file given with --config.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&c.cfgPath, "config", "c", "tsunami_accuracy.yaml", "Run settings file (YAML)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVar(&c.zones, "zones", "", "Zone descriptor (overrides config)")
	pf.StringVar(&c.region, "region", "", "Region the fields are cropped to (overrides config)")
	pf.IntVar(&c.chunkSize, "chunk-size", 0, "Coefficient rows reconstructed at once (overrides config)")
	pf.IntVar(&c.workers, "workers", 0, "Concurrent chunk workers (overrides config)")
	pf.StringVar(&c.basisPattern, "basis-pattern", "", "Regex with one capture group for basis file indices (overrides config)")
	pf.BoolVar(&c.strictIndices, "strict-indices", false, "Reject basis directories with index gaps")
	pf.StringVarP(&c.outputDir, "output", "o", "", "Output directory (overrides config)")

	root.AddCommand(
		accuracyCmd(c, "accuracy", "Accuracy maps for a single basis family", false),
		accuracyCmd(c, "mean", "Accuracy maps for the mean reconstruction of several basis families", true),
		inspectCmd(c),
		summaryCmd(c),
		generateCmd(c),
		configCmd(c),
	)
	return root
}

func accuracyCmd(c *cli, use, short string, mean bool) *cobra.Command {
	var in inputFlags
	var writeErrors bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := in.resolve()
			if err != nil {
				return err
			}
			if !mean && len(inputs.Families) != 1 {
				return fmt.Errorf("%w: accuracy takes one basis family, got %d; use mean", parser.ErrConfig, len(inputs.Families))
			}
			res, err := c.app.RunAccuracy(inputs, c.app.cfg.OutputDir, writeErrors)
			if err != nil {
				return err
			}
			printPaths(cmd, res.Files)
			return nil
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVar(&writeErrors, "aprox-error", false, "Also write the per-cell approximation error")
	return cmd
}

func inspectCmd(c *cli) *cobra.Command {
	var in inputFlags
	var row, col int
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Write wave, reconstruction and difference for one coefficient cell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := in.resolve()
			if err != nil {
				return err
			}
			paths, err := c.app.Inspect(inputs, row, col, c.app.cfg.OutputDir)
			if err != nil {
				return err
			}
			printPaths(cmd, paths)
			return nil
		},
	}
	in.register(cmd)
	cmd.Flags().IntVar(&row, "row", 0, "Coefficient grid row")
	cmd.Flags().IntVar(&col, "col", 0, "Coefficient grid column")
	return cmd
}

func summaryCmd(c *cli) *cobra.Command {
	var thresholds []float64
	cmd := &cobra.Command{
		Use:   "summary <grid.txt>...",
		Short: "Share of cells below each accuracy threshold",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("threshold") {
				thresholds = c.app.cfg.Thresholds
			}
			out := cmd.OutOrStdout()
			for _, path := range args {
				s, err := c.app.Summary(path, thresholds)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\n", s.Path)
				if s.HasValues {
					fmt.Fprintf(out, "  range %.6f .. %.6f\n", s.Min, s.Max)
				}
				for _, t := range s.Thresholds {
					fmt.Fprintf(out, "  < %g: %d/%d cells (%.2f%%), mean %.6f\n",
						t.Threshold, t.Count, t.Total, t.Percent, t.Mean)
				}
				for _, b := range s.Bands {
					if b.Count > 0 {
						fmt.Fprintf(out, "  band %s: %d cells\n", b.Label, b.Count)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().Float64SliceVar(&thresholds, "threshold", nil, "Threshold (repeatable; defaults to config)")
	return cmd
}

func generateCmd(c *cli) *cobra.Command {
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Generate basis functions and synthetic waves",
	}

	var tileHeight, tileWidth int
	var value float64
	basis := &cobra.Command{
		Use:   "basis",
		Short: "Tile the subduction zone into piecewise-constant basis functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := c.app.GenerateBasis(c.app.cfg.OutputDir, tileHeight, tileWidth, value)
			if err != nil {
				return err
			}
			printPaths(cmd, paths)
			return nil
		},
	}
	basis.Flags().IntVar(&tileHeight, "tile-height", 0, "Tile height in pixels")
	basis.Flags().IntVar(&tileWidth, "tile-width", 0, "Tile width in pixels")
	basis.Flags().Float64Var(&value, "value", 1.0, "Value inside the tile")
	_ = basis.MarkFlagRequired("tile-height")
	_ = basis.MarkFlagRequired("tile-width")

	var shapeForm, shapeOut string
	so := generator.DefaultShapeOptions()
	shape := &cobra.Command{
		Use:   "shape",
		Short: "Synthetic wave over the full grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.GenerateShape(shapeOut, shapeForm, so); err != nil {
				return err
			}
			printPaths(cmd, []string{shapeOut})
			return nil
		},
	}
	shape.Flags().StringVar(&shapeForm, "form", "", "One of "+strings.Join(generator.ShapeNames(), ", "))
	shape.Flags().StringVar(&shapeOut, "out", "", "Output file")
	shape.Flags().Float64Var(&so.Min, "min", so.Min, "Minimum value")
	shape.Flags().Float64Var(&so.Max, "max", so.Max, "Maximum value")
	shape.Flags().Float64Var(&so.SinAmp, "sin-amp", so.SinAmp, "Sine modulation amplitude")
	shape.Flags().Float64Var(&so.SinPeriodX, "sin-period-x", so.SinPeriodX, "Sine period along x in pixels")
	shape.Flags().Float64Var(&so.SinPeriodY, "sin-period-y", so.SinPeriodY, "Sine period along y in pixels")
	_ = shape.MarkFlagRequired("form")
	_ = shape.MarkFlagRequired("out")

	var srcForm, srcOut string
	gopts := generator.DefaultGaussianOptions()
	source := &cobra.Command{
		Use:   "subduction",
		Short: "Gaussian source inside the subduction zone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.GenerateSource(srcOut, srcForm, gopts); err != nil {
				return err
			}
			printPaths(cmd, []string{srcOut})
			return nil
		},
	}
	source.Flags().StringVar(&srcForm, "form", "", "gaussian or double_gaussian")
	source.Flags().StringVar(&srcOut, "out", "", "Output file")
	source.Flags().Float64Var(&gopts.SigmaX, "sigma-x", gopts.SigmaX, "Standard deviation along x")
	source.Flags().Float64Var(&gopts.SigmaY, "sigma-y", gopts.SigmaY, "Standard deviation along y")
	source.Flags().Float64Var(&gopts.Amplitude, "amplitude", gopts.Amplitude, "Amplitude of the single gaussian")
	source.Flags().Float64Var(&gopts.Amplitude1, "amplitude1", gopts.Amplitude1, "Amplitude of the gaussian at cy+L/3")
	source.Flags().Float64Var(&gopts.Amplitude2, "amplitude2", gopts.Amplitude2, "Amplitude of the gaussian at cy-L/3")
	_ = source.MarkFlagRequired("form")
	_ = source.MarkFlagRequired("out")

	gen.AddCommand(basis, shape, source)
	return gen
}

func configCmd(c *cli) *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage the run settings file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective settings to the --config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.WriteConfig(c.cfgPath, force); err != nil {
				return err
			}
			printPaths(cmd, []string{c.cfgPath})
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	cfg.AddCommand(initCmd)
	return cfg
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

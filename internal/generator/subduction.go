package generator

import (
	"fmt"
	"math"

	"github.com/user/tsunami_accuracy_go/internal/parser"
	"gonum.org/v1/gonum/mat"
)

// Source shapes accepted by NewSource.
const (
	SourceGaussian       = "gaussian"
	SourceDoubleGaussian = "double_gaussian"
)

// GaussianOptions parameterises the subduction sources. Amplitude is used by
// the single gaussian, Amplitude1 and Amplitude2 by the double one.
type GaussianOptions struct {
	SigmaX, SigmaY float64
	Amplitude      float64
	Amplitude1     float64
	Amplitude2     float64
}

func DefaultGaussianOptions() GaussianOptions {
	return GaussianOptions{SigmaX: 50, SigmaY: 50, Amplitude: 1, Amplitude1: 1, Amplitude2: 1}
}

type bump struct {
	amp, cx, cy float64
}

// fillGaussians sums anisotropic gaussians over zone and leaves the rest of
// the h x w field at zero.
func fillGaussians(h, w int, zone parser.Region, sx, sy float64, bumps ...bump) *mat.Dense {
	m := mat.NewDense(h, w, nil)
	for r := zone.YMin; r < zone.YMax; r++ {
		for c := zone.XMin; c < zone.XMax; c++ {
			var v float64
			for _, b := range bumps {
				dx, dy := float64(c)-b.cx, float64(r)-b.cy
				v += b.amp * math.Exp(-(dx*dx/(2*sx*sx) + dy*dy/(2*sy*sy)))
			}
			m.Set(r, c, v)
		}
	}
	return m
}

func zoneCentre(zone parser.Region) (cx, cy float64) {
	return float64(zone.XMin+zone.XMax) / 2, float64(zone.YMin+zone.YMax) / 2
}

// Gaussian places one gaussian at the centre of zone.
func Gaussian(h, w int, zone parser.Region, amplitude, sigmaX, sigmaY float64) *mat.Dense {
	cx, cy := zoneCentre(zone)
	return fillGaussians(h, w, zone, sigmaX, sigmaY, bump{amplitude, cx, cy})
}

// DoubleGaussian places two gaussians on the vertical centre line of zone,
// amplitude1 at row cy+L/3 and amplitude2 at row cy-L/3, where cy is the zone
// centre row and L the zone height.
func DoubleGaussian(h, w int, zone parser.Region, sigmaX, sigmaY, amplitude1, amplitude2 float64) *mat.Dense {
	cx, cy := zoneCentre(zone)
	l := float64(zone.Height())
	return fillGaussians(h, w, zone, sigmaX, sigmaY,
		bump{amplitude1, cx, cy + l/3},
		bump{amplitude2, cx, cy - l/3},
	)
}

// NewSource builds the named source inside the subduction zone of z.
func NewSource(z *parser.ZoneConfig, name string, o GaussianOptions) (*mat.Dense, error) {
	if o.SigmaX <= 0 || o.SigmaY <= 0 {
		return nil, fmt.Errorf("%w: sigma %gx%g must be positive", parser.ErrConfig, o.SigmaX, o.SigmaY)
	}
	zone, err := z.Region(parser.SubductionZone)
	if err != nil {
		return nil, err
	}
	switch name {
	case SourceGaussian:
		return Gaussian(z.Height, z.Width, zone, o.Amplitude, o.SigmaX, o.SigmaY), nil
	case SourceDoubleGaussian:
		return DoubleGaussian(z.Height, z.Width, zone, o.SigmaX, o.SigmaY, o.Amplitude1, o.Amplitude2), nil
	}
	return nil, fmt.Errorf("%w: unknown source %q, want %s or %s", parser.ErrConfig, name, SourceGaussian, SourceDoubleGaussian)
}

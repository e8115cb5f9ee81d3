package generator

import (
	"fmt"

	"github.com/user/tsunami_accuracy_go/internal/parser"
	"gonum.org/v1/gonum/mat"
)

// BasisFileName is the name the basis loader's default pattern expects.
func BasisFileName(i int) string { return fmt.Sprintf("basis_%d.wave", i) }

// Tiles splits zone into tileHeight x tileWidth tiles, row by row from the top.
// The zone extents must be multiples of the tile size.
func Tiles(zone parser.Region, tileHeight, tileWidth int) ([]parser.Region, error) {
	if tileHeight <= 0 || tileWidth <= 0 {
		return nil, fmt.Errorf("%w: tile size %dx%d must be positive", parser.ErrConfig, tileHeight, tileWidth)
	}
	if zone.Height()%tileHeight != 0 {
		return nil, fmt.Errorf("%w: zone height %d is not a multiple of tile height %d", parser.ErrConfig, zone.Height(), tileHeight)
	}
	if zone.Width()%tileWidth != 0 {
		return nil, fmt.Errorf("%w: zone width %d is not a multiple of tile width %d", parser.ErrConfig, zone.Width(), tileWidth)
	}

	ny, nx := zone.Height()/tileHeight, zone.Width()/tileWidth
	tiles := make([]parser.Region, 0, ny*nx)
	for i := 0; i < ny; i++ {
		for j := 0; j < nx; j++ {
			y0 := zone.YMin + i*tileHeight
			x0 := zone.XMin + j*tileWidth
			tiles = append(tiles, parser.Region{
				YMin: y0, YMax: y0 + tileHeight,
				XMin: x0, XMax: x0 + tileWidth,
			})
		}
	}
	return tiles, nil
}

// TileBasis returns a height x width zero field holding value inside tile.
func TileBasis(height, width int, tile parser.Region, value float64) *mat.Dense {
	m := mat.NewDense(height, width, nil)
	for r := tile.YMin; r < tile.YMax; r++ {
		for c := tile.XMin; c < tile.XMax; c++ {
			m.Set(r, c, value)
		}
	}
	return m
}

// SubductionBasis tiles the subduction zone of z and returns one full-size
// basis field per tile in tile order.
func SubductionBasis(z *parser.ZoneConfig, tileHeight, tileWidth int, value float64) ([]*mat.Dense, error) {
	zone, err := z.Region(parser.SubductionZone)
	if err != nil {
		return nil, err
	}
	tiles, err := Tiles(zone, tileHeight, tileWidth)
	if err != nil {
		return nil, err
	}
	fields := make([]*mat.Dense, len(tiles))
	for i, t := range tiles {
		fields[i] = TileBasis(z.Height, z.Width, t, value)
	}
	return fields, nil
}

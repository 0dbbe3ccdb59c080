package tilegrid

import (
	"math"

	"github.com/pkg/errors"
)

const (
	// MaxZoom highest zoom level a coordinate can address
	MaxZoom = 30
	// TileSize default tile edge in pixel
	TileSize = 256

	// half of the EPSG:3857 world extent in meter
	mercatorExtent = 20037508.342789244
	// meter per pixel at zoom 0 for 256 pixel tiles
	mercatorResolution = 2 * mercatorExtent / TileSize
)

// Grid describes a tile matrix: its top left origin, the tile size and the
// resolution (map units per pixel) of every zoom level.
type Grid struct {
	OriginLeft   float64
	OriginTop    float64
	TileSize     int
	Resolutions  []float64
	WrapDateLine bool
}

// SphericalMercatorGrid the EPSG:3857 grid used by web maps, zoom 0..maxZoom.
func SphericalMercatorGrid(maxZoom int) Grid {
	if maxZoom < 0 {
		maxZoom = 0
	}
	if maxZoom > MaxZoom {
		maxZoom = MaxZoom
	}
	res := make([]float64, maxZoom+1)
	for z := range res {
		res[z] = mercatorResolution / float64(uint64(1)<<z)
	}
	return Grid{
		OriginLeft:  -mercatorExtent,
		OriginTop:   mercatorExtent,
		TileSize:    TileSize,
		Resolutions: res,
	}
}

// Zoom returns the zoom level whose resolution is closest to res.
func (g Grid) Zoom(res float64) int {
	zoom := 0
	best := math.Inf(1)
	for z, r := range g.Resolutions {
		d := math.Abs(r - res)
		if d < best {
			best = d
			zoom = z
		}
	}
	return zoom
}

// ComputeTileCoordinate calculates the tile covering the given bounds at the
// given resolution. The result uses the grid convention, row 0 at the top.
func (g Grid) ComputeTileCoordinate(bounds ViewportBounds, resolution float64) (TileCoordinate, error) {
	if !(resolution > 0) || math.IsInf(resolution, 0) {
		return TileCoordinate{}, errors.Wrapf(ErrInvalidResolution, "%g", resolution)
	}
	if err := bounds.Validate(); err != nil {
		return TileCoordinate{}, err
	}
	if len(g.Resolutions) == 0 || g.TileSize <= 0 {
		return TileCoordinate{}, errors.New("grid without resolutions")
	}
	z := g.Zoom(resolution)
	span := g.Resolutions[z] * float64(g.TileSize)
	x := int(math.Round((bounds.Left - g.OriginLeft) / span))
	y := int(math.Round((g.OriginTop - bounds.Top) / span))
	if g.WrapDateLine {
		limit := 1 << z
		x = ((x % limit) + limit) % limit
	}
	c := TileCoordinate{X: x, Y: y, Z: z}
	if err := c.Valid(); err != nil {
		return c, err
	}
	return c, nil
}

// TileBounds returns the projected bounds of a grid coordinate.
func (g Grid) TileBounds(c TileCoordinate) (ViewportBounds, error) {
	if err := c.Valid(); err != nil {
		return ViewportBounds{}, err
	}
	if c.Z >= len(g.Resolutions) {
		return ViewportBounds{}, errors.Wrapf(ErrInvalidCoordinate, "zoom %d not in grid", c.Z)
	}
	span := g.Resolutions[c.Z] * float64(g.TileSize)
	left := g.OriginLeft + float64(c.X)*span
	top := g.OriginTop - float64(c.Y)*span
	return ViewportBounds{Left: left, Bottom: top - span, Right: left + span, Top: top}, nil
}

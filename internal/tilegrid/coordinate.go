package tilegrid

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidCoordinate a tile coordinate is outside the range of its zoom level
	ErrInvalidCoordinate = errors.New("invalid tile coordinate")
	// ErrInvalidBounds the viewport rectangle is empty or inverted
	ErrInvalidBounds = errors.New("invalid viewport bounds")
	// ErrInvalidResolution the resolution is not a positive number
	ErrInvalidResolution = errors.New("invalid resolution")
)

// TileCoordinate addresses one tile of the grid. Z is the zoom level,
// X the column from the west edge, Y the row.
type TileCoordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Valid checks 0 <= x,y < 2^z and z >= 0.
func (c TileCoordinate) Valid() error {
	if c.Z < 0 || c.Z > MaxZoom {
		return errors.Wrapf(ErrInvalidCoordinate, "zoom %d out of range", c.Z)
	}
	n := 1 << c.Z
	if c.X < 0 || c.X >= n {
		return errors.Wrapf(ErrInvalidCoordinate, "x %d out of range for zoom %d", c.X, c.Z)
	}
	if c.Y < 0 || c.Y >= n {
		return errors.Wrapf(ErrInvalidCoordinate, "y %d out of range for zoom %d", c.Y, c.Z)
	}
	return nil
}

func (c TileCoordinate) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// ToSourceRowConvention converts a coordinate in grid convention (row 0 at
// the top) to the row convention of a tile source. For TMS sources the row
// is reflected, y' = 2^z - y - 1. The reflection is its own inverse, so the
// same call converts TMS rows back to grid rows.
func ToSourceRowConvention(c TileCoordinate, tms bool) (TileCoordinate, error) {
	if !tms {
		return c, nil
	}
	if c.Z < 0 || c.Z > MaxZoom {
		return c, errors.Wrapf(ErrInvalidCoordinate, "zoom %d out of range", c.Z)
	}
	ymax := 1 << c.Z
	if c.Y < 0 || c.Y >= ymax {
		return c, errors.Wrapf(ErrInvalidCoordinate, "y %d out of range for zoom %d", c.Y, c.Z)
	}
	return TileCoordinate{X: c.X, Y: ymax - c.Y - 1, Z: c.Z}, nil
}

// ViewportBounds is a rectangle in map projection units.
type ViewportBounds struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

func (b ViewportBounds) Validate() error {
	if !(b.Left < b.Right) || !(b.Bottom < b.Top) {
		return errors.Wrapf(ErrInvalidBounds, "%g,%g,%g,%g", b.Left, b.Bottom, b.Right, b.Top)
	}
	return nil
}

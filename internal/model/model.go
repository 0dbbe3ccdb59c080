package model

import (
	"fmt"

	"github.com/willie68/go_argenmap/internal/tilegrid"
)

// Tile a tile request of a layer, always in XYZ (grid) convention
type Tile struct {
	Layer string
	Z     int
	X     int
	Y     int
}

func FromCoordinate(layer string, c tilegrid.TileCoordinate) Tile {
	return Tile{Layer: layer, Z: c.Z, X: c.X, Y: c.Y}
}

func (t Tile) Coordinate() tilegrid.TileCoordinate {
	return tilegrid.TileCoordinate{X: t.X, Y: t.Y, Z: t.Z}
}

func (t Tile) String() string {
	return fmt.Sprintf("Layer: %s, Z:%d, X:%d, Y:%d", t.Layer, t.Z, t.X, t.Y)
}

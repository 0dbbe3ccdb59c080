package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/willie68/go_argenmap/internal/tilegrid"
)

func TestTileCoordinate(t *testing.T) {
	ast := assert.New(t)
	c := tilegrid.TileCoordinate{X: 3, Y: 5, Z: 8}
	tile := FromCoordinate("argenmap", c)
	ast.Equal("argenmap", tile.Layer)
	ast.Equal(c, tile.Coordinate())
	ast.Equal("Layer: argenmap, Z:8, X:3, Y:5", tile.String())
}

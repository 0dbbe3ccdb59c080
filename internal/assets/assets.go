package assets

import (
	"bytes"
	_ "embed"
	"io"
)

// a transparent 256x256 png
//
//go:embed empty.png
var emptyPNG []byte

// EmptyTile the tile served for layers with the "empty" fallback
func EmptyTile() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(emptyPNG))
}

package tilegrid

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedTemplate a url template misses one of the {z}, {x}, {y} placeholders
var ErrMalformedTemplate = errors.New("malformed tile url template")

// golden ratio conjugate, spreads the tile keys over the mirrors
var urlHashFactor = (math.Sqrt(5) - 1) / 2

// BuildTileURL substitutes the {z}, {x} and {y} placeholders of the template
// with the coordinate. The ${z} form of the placeholders is accepted as well.
// Nothing else of the template is touched. The template of a mirror comes
// from SourceConfig.Template with the index of SelectSource.
func BuildTileURL(template string, c TileCoordinate) string {
	z := strconv.Itoa(c.Z)
	x := strconv.Itoa(c.X)
	y := strconv.Itoa(c.Y)
	r := strings.NewReplacer(
		"${z}", z, "${x}", x, "${y}", y,
		"{z}", z, "{x}", x, "{y}", y,
	)
	return r.Replace(template)
}

// ValidateTemplate checks that all three placeholders are present.
func ValidateTemplate(template string) error {
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(template, p) {
			return errors.Wrapf(ErrMalformedTemplate, "%q misses %s", template, p)
		}
	}
	return nil
}

// SelectSource picks one of n mirrors for the given key. The same key always
// selects the same mirror, so a tile is cached by the browser only once.
func SelectSource(key string, n int) int {
	if n <= 1 {
		return 0
	}
	product := 1.0
	for _, ch := range key {
		product *= float64(ch) * urlHashFactor
		product -= math.Floor(product)
	}
	idx := int(math.Floor(product * float64(n)))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// SourceKey the selection key of a coordinate, x, y and z concatenated
func SourceKey(c TileCoordinate) string {
	return strconv.Itoa(c.X) + strconv.Itoa(c.Y) + strconv.Itoa(c.Z)
}

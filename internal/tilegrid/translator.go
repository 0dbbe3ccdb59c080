package tilegrid

import "github.com/pkg/errors"

// Translator maps grid coordinates and viewports to the tile address of a
// source. It holds only values and is safe for concurrent use.
type Translator struct {
	src  SourceConfig
	grid Grid
}

func NewTranslator(src SourceConfig, grid Grid) *Translator {
	return &Translator{
		src:  src.Clone(),
		grid: grid,
	}
}

func (t *Translator) Source() SourceConfig {
	return t.src.Clone()
}

func (t *Translator) Grid() Grid {
	return t.grid
}

// Address converts a grid coordinate into the row convention of the source.
func (t *Translator) Address(c TileCoordinate) (TileCoordinate, error) {
	if err := c.Valid(); err != nil {
		return c, err
	}
	return ToSourceRowConvention(c, t.src.TMS)
}

// TileURL returns the upstream url of the grid coordinate.
func (t *Translator) TileURL(c TileCoordinate) (string, error) {
	sc, err := t.Address(c)
	if err != nil {
		return "", err
	}
	if len(t.src.URLs) == 0 {
		return "", errors.Wrapf(ErrMalformedTemplate, "source %q without urls", t.src.Name)
	}
	idx := SelectSource(SourceKey(sc), len(t.src.URLs))
	return BuildTileURL(t.src.Template(idx), sc), nil
}

// Locate runs the whole pipeline: viewport to grid coordinate to url.
func (t *Translator) Locate(bounds ViewportBounds, resolution float64) (TileCoordinate, string, error) {
	c, err := t.grid.ComputeTileCoordinate(bounds, resolution)
	if err != nil {
		return c, "", err
	}
	u, err := t.TileURL(c)
	if err != nil {
		return c, "", err
	}
	return c, u, nil
}

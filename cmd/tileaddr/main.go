// tileaddr prints the upstream url of an Argenmap tile, addressed either by
// a geographic position and zoom level or by z/x/y in XYZ numbering.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
	"github.com/willie68/go_argenmap/internal/tilegrid"
)

var (
	lat, lon float64
	zoom     int
	tile     string
	urls     []string
	xyz      bool
)

func init() {
	flag.Float64Var(&lat, "lat", 0, "latitude of the position")
	flag.Float64Var(&lon, "lon", 0, "longitude of the position")
	flag.IntVarP(&zoom, "zoom", "z", 0, "zoom level")
	flag.StringVarP(&tile, "tile", "t", "", "tile in z/x/y, XYZ numbering, overrides lat/lon")
	flag.StringSliceVarP(&urls, "url", "u", nil, "url templates of the source, default the argenmap mirrors")
	flag.BoolVar(&xyz, "xyz", false, "the source uses XYZ numbering instead of TMS")
}

func main() {
	flag.Parse()
	c, err := coordinate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
		os.Exit(1)
	}
	src := tilegrid.DefaultSource().WithOptions(
		tilegrid.WithURLs(urls...),
		tilegrid.WithTMS(!xyz),
	)
	if err := src.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	tr := tilegrid.NewTranslator(src, src.Grid())
	u, err := tr.TileURL(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	sc, _ := tr.Address(c)
	fmt.Printf("tile:   %s\n", c.String())
	fmt.Printf("source: %s\n", sc.String())
	fmt.Printf("url:    %s\n", u)
}

func coordinate() (tilegrid.TileCoordinate, error) {
	if tile != "" {
		return parseTile(tile)
	}
	if zoom < 0 || zoom > tilegrid.MaxZoom {
		return tilegrid.TileCoordinate{}, errors.Wrapf(tilegrid.ErrInvalidCoordinate, "zoom %d", zoom)
	}
	if lat < -85.0511 || lat > 85.0511 || lon < -180 || lon > 180 {
		return tilegrid.TileCoordinate{}, errors.Errorf("position %f, %f outside of the mercator grid", lat, lon)
	}
	t := maptile.At(orb.Point{lon, lat}, maptile.Zoom(zoom))
	return tilegrid.TileCoordinate{X: int(t.X), Y: int(t.Y), Z: int(t.Z)}, nil
}

func parseTile(s string) (tilegrid.TileCoordinate, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) != 3 {
		return tilegrid.TileCoordinate{}, errors.Errorf("tile %q not in z/x/y", s)
	}
	v := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return tilegrid.TileCoordinate{}, errors.Errorf("tile %q not in z/x/y", s)
		}
		v[i] = n
	}
	c := tilegrid.TileCoordinate{Z: v[0], X: v[1], Y: v[2]}
	return c, c.Valid()
}

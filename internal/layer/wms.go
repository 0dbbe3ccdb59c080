package layer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
	"github.com/willie68/go_argenmap/internal/logging"
	"github.com/willie68/go_argenmap/internal/model"
	"github.com/willie68/go_argenmap/internal/tilegrid"
)

const (
	srsMercator = "EPSG:3857"
	srsWGS84    = "EPSG:4326"
)

type wmsLayer struct {
	name   string
	log    *slog.Logger
	config Config
	grid   tilegrid.Grid
	cl     *http.Client
}

func newWMSLayer(name string, config Config) *wmsLayer {
	if config.MaxZoom <= 0 {
		config.MaxZoom = 18
	}
	return &wmsLayer{
		name:   name,
		log:    logging.New("wms").With("layer", name),
		config: config,
		grid:   tilegrid.SphericalMercatorGrid(config.MaxZoom),
		cl:     &http.Client{Timeout: config.timeout()},
	}
}

func (s *wmsLayer) Tile(ctx context.Context, tile model.Tile) (io.ReadCloser, error) {
	if tile.Z < s.config.MinZoom || tile.Z > s.config.MaxZoom {
		return nil, errors.Wrapf(ErrTileNotFound, "zoom level %d out of bounds (%d - %d)", tile.Z, s.config.MinZoom, s.config.MaxZoom)
	}
	bb, err := s.tileToBBox(tile)
	if err != nil {
		return nil, err
	}
	wmsURL, err := s.buildWMSUrl(bb)
	if err != nil {
		return nil, err
	}
	s.log.Debug("requesting wms tile", "url", wmsURL)
	return fetch(ctx, s.cl, s.log, wmsURL, s.config.Headers)
}

func (s *wmsLayer) Info() Info {
	title := s.config.Title
	if title == "" {
		title = s.name
	}
	return Info{
		Name:              s.name,
		Type:              TypeWMS,
		Title:             title,
		URLs:              []string{s.config.URL},
		Attribution:       s.config.Attribution,
		SphericalMercator: true,
		WrapDateLine:      s.config.wrapDateLine(),
		MinZoom:           s.config.MinZoom,
		MaxZoom:           s.config.MaxZoom,
	}
}

func (s *wmsLayer) srs() string {
	if s.config.SRS == "" {
		return srsMercator
	}
	return s.config.SRS
}

func (s *wmsLayer) buildWMSUrl(bb tilegrid.ViewportBounds) (string, error) {
	base, err := url.Parse(s.config.URL)
	if err != nil {
		return "", errors.Wrapf(err, "invalid wms url of layer %s", s.name)
	}
	version := s.config.Version
	if version == "" {
		version = "1.3.0"
	}
	format := s.config.Format
	if format == "" {
		format = "image/png"
	}
	srsKey := "crs"
	if version != "1.3.0" {
		srsKey = "srs"
	}

	params := url.Values{}
	params.Add("service", "WMS")
	params.Add("request", "GetMap")
	params.Add("layers", s.config.Layers)
	params.Add("format", format)
	params.Add("transparent", "true")
	params.Add("bbox", s.bboxParam(bb, version))
	params.Add("width", strconv.Itoa(tilegrid.TileSize))
	params.Add("height", strconv.Itoa(tilegrid.TileSize))
	params.Add(srsKey, s.srs())
	params.Add("version", version)
	params.Add("styles", s.config.Styles)

	base.RawQuery = params.Encode()
	return base.String(), nil
}

// WMS 1.3.0 uses lat/lon axis order for EPSG:4326
func (s *wmsLayer) bboxParam(bb tilegrid.ViewportBounds, version string) string {
	if s.srs() == srsWGS84 && version == "1.3.0" {
		return fmt.Sprintf("%.9f,%.9f,%.9f,%.9f", bb.Bottom, bb.Left, bb.Top, bb.Right)
	}
	return fmt.Sprintf("%.9f,%.9f,%.9f,%.9f", bb.Left, bb.Bottom, bb.Right, bb.Top)
}

// tileToBBox the bounds of the tile in the srs of the layer
func (s *wmsLayer) tileToBBox(tile model.Tile) (tilegrid.ViewportBounds, error) {
	if s.srs() == srsWGS84 {
		if err := tile.Coordinate().Valid(); err != nil {
			return tilegrid.ViewportBounds{}, err
		}
		b := maptile.New(uint32(tile.X), uint32(tile.Y), maptile.Zoom(tile.Z)).Bound()
		return tilegrid.ViewportBounds{Left: b.Left(), Bottom: b.Bottom(), Right: b.Right(), Top: b.Top()}, nil
	}
	return s.grid.TileBounds(tile.Coordinate())
}

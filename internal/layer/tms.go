package layer

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"
	"github.com/willie68/go_argenmap/internal/logging"
	"github.com/willie68/go_argenmap/internal/model"
	"github.com/willie68/go_argenmap/internal/tilegrid"
)

// templateLayer fetches tiles from url templates, TMS or XYZ numbered
type templateLayer struct {
	name   string
	log    *slog.Logger
	config Config
	tr     *tilegrid.Translator
	cl     *http.Client
}

func newTemplateLayer(name string, config Config, src tilegrid.SourceConfig) *templateLayer {
	return &templateLayer{
		name:   name,
		log:    logging.New(config.Type).With("layer", name),
		config: config,
		tr:     tilegrid.NewTranslator(src, src.Grid()),
		cl:     &http.Client{Timeout: config.timeout()},
	}
}

func (s *templateLayer) Tile(ctx context.Context, tile model.Tile) (io.ReadCloser, error) {
	src := s.tr.Source()
	if tile.Z < src.MinZoom || tile.Z > src.MaxZoom {
		return nil, errors.Wrapf(ErrTileNotFound, "zoom level %d out of bounds (%d - %d)", tile.Z, src.MinZoom, src.MaxZoom)
	}
	tileURL, err := s.tr.TileURL(tile.Coordinate())
	if err != nil {
		return nil, err
	}
	s.log.Debug("requesting tile", "url", tileURL)
	return fetch(ctx, s.cl, s.log, tileURL, s.config.Headers)
}

func (s *templateLayer) Info() Info {
	src := s.tr.Source()
	title := src.Name
	if title == "" {
		title = s.name
	}
	return Info{
		Name:              s.name,
		Type:              s.config.Type,
		Title:             title,
		URLs:              src.URLs,
		Attribution:       src.Attribution,
		SphericalMercator: src.SphericalMercator,
		WrapDateLine:      src.WrapDateLine,
		TMS:               src.TMS,
		MinZoom:           src.MinZoom,
		MaxZoom:           src.MaxZoom,
	}
}

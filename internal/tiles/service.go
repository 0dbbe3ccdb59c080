package tiles

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/do/v2"
	"github.com/willie68/go_argenmap/internal/assets"
	"github.com/willie68/go_argenmap/internal/layer"
	"github.com/willie68/go_argenmap/internal/logging"
	"github.com/willie68/go_argenmap/internal/model"
	"github.com/willie68/go_argenmap/internal/utils/measurement"
)

type layerFactory interface {
	HasLayer(layerName string) bool
	Layer(layerName string) (layer.Service, error)
	IsCached(layerName string) bool
	Fallback(layerName string) string
}

type tileCache interface {
	Has(ctx context.Context, tile model.Tile) bool
	Tile(ctx context.Context, tile model.Tile) (io.ReadCloser, bool)
	Save(ctx context.Context, tile model.Tile, data io.Reader) error
	IsActive() bool
}

// Service delivers tiles of the configured layers, cache first
type Service struct {
	log     *slog.Logger
	cache   tileCache
	layers  layerFactory
	metrics *measurement.Service
	saves   sync.WaitGroup
}

func Init(inj do.Injector) {
	do.ProvideValue(inj, New(
		do.MustInvokeAs[tileCache](inj),
		do.MustInvoke[*layer.Factory](inj),
		do.MustInvoke[*measurement.Service](inj),
	))
}

func New(cache tileCache, layers layerFactory, metrics *measurement.Service) *Service {
	return &Service{
		log:     logging.New("tiles"),
		cache:   cache,
		layers:  layers,
		metrics: metrics,
	}
}

// FTile returns the tile, the tile coordinate is in XYZ convention
func (s *Service) FTile(ctx context.Context, tile model.Tile) (io.ReadCloser, error) {
	return s.fTile(ctx, tile, map[string]bool{})
}

func (s *Service) fTile(ctx context.Context, tile model.Tile, visited map[string]bool) (io.ReadCloser, error) {
	if !s.layers.HasLayer(tile.Layer) {
		return nil, errors.Wrapf(layer.ErrNotFound, "%s", tile.Layer)
	}
	if err := tile.Coordinate().Valid(); err != nil {
		return nil, err
	}
	visited[tile.Layer] = true

	cached := s.IsCached(tile.Layer)
	if cached {
		td := s.metrics.Start("getTileFromCache")
		if tr, ok := s.cache.Tile(ctx, tile); ok {
			td.Stop()
			s.log.Debug("tile found in cache", "tile", tile.String())
			return tr, nil
		}
		td.Stop()
	}

	ts, err := s.layers.Layer(tile.Layer)
	if err != nil {
		s.log.Error("system error", "error", err)
		return nil, err
	}

	td := s.metrics.Start("getTileFromLayer")
	tsd := s.metrics.Start(fmt.Sprintf("getTileFromLayer:%s", tile.Layer))
	rd, err := ts.Tile(ctx, tile)
	if err != nil {
		td.SetError()
		tsd.SetError()
		td.Stop()
		tsd.Stop()
		if errors.Is(err, layer.ErrTileNotFound) {
			return s.fallback(ctx, tile, err, visited)
		}
		s.log.Error("error getting tile from layer", "tile", tile.String(), "error", err)
		return nil, err
	}
	tsd.Stop()
	td.Stop()

	if !cached || !s.cache.IsActive() {
		return rd, nil
	}

	defer rd.Close()
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		td := s.metrics.Start("saveTileToCache")
		defer td.Stop()
		err := s.cache.Save(context.WithoutCancel(ctx), tile, bytes.NewReader(data))
		if err != nil {
			td.SetError()
			s.log.Error("error saving tile to cache", "tile", tile.String(), "error", err)
		}
	}()
	return io.NopCloser(bytes.NewReader(data)), nil
}

// fallback serves an empty tile or the tile of another layer
func (s *Service) fallback(ctx context.Context, tile model.Tile, cause error, visited map[string]bool) (io.ReadCloser, error) {
	fb := s.layers.Fallback(tile.Layer)
	switch {
	case fb == "":
		return nil, cause
	case fb == layer.FallbackEmpty:
		s.log.Debug("serving empty tile", "tile", tile.String())
		return assets.EmptyTile(), nil
	case visited[fb]:
		return nil, errors.Wrapf(cause, "fallback loop at layer %s", fb)
	}
	s.log.Debug("using fallback layer", "tile", tile.String(), "fallback", fb)
	tile.Layer = fb
	return s.fTile(ctx, tile, visited)
}

func (s *Service) HasLayer(layerName string) bool {
	return s.layers.HasLayer(layerName)
}

func (s *Service) IsCached(layerName string) bool {
	return s.layers.IsCached(layerName)
}

// WaitSaves waits for all running cache writes
func (s *Service) WaitSaves() {
	s.saves.Wait()
}

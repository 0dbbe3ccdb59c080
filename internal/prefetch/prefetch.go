package prefetch

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/do/v2"
	"github.com/willie68/go_argenmap/internal/layer"
	"github.com/willie68/go_argenmap/internal/logging"
	"github.com/willie68/go_argenmap/internal/model"
	"github.com/willie68/go_argenmap/internal/tilecache"
	"github.com/willie68/go_argenmap/internal/tiles"
	"github.com/willie68/go_argenmap/pkg/extstrgutils"
	pb "gopkg.in/cheggaaa/pb.v1"
)

const numWorkers = 16

var (
	log = logging.New("prefetch")

	// ErrCacheInactive prefetching needs an active cache
	ErrCacheInactive = errors.New("tile cache not active")
)

type layers interface {
	HasLayer(layerName string) bool
	IsCached(layerName string) bool
	IsPrefetchable(layerName string) bool
	MaxZoom(layerName string) int
}

type tileCache interface {
	Has(ctx context.Context, tile model.Tile) bool
	IsActive() bool
}

type tileService interface {
	FTile(ctx context.Context, tile model.Tile) (io.ReadCloser, error)
	WaitSaves()
}

// Prefetcher loads all tiles of some layers up to a zoom level into the cache
type Prefetcher struct {
	layers  layers
	cache   tileCache
	tiles   tileService
	workers int
	bar     bool
}

// Prefetch prefetches the layers of the csv list into the cache of the injector
func Prefetch(ctx context.Context, inj do.Injector, layerNames string, maxZoom int) error {
	p := New(
		do.MustInvoke[*layer.Factory](inj),
		do.MustInvokeAs[tilecache.TileCache](inj),
		do.MustInvoke[*tiles.Service](inj),
	)
	p.bar = true
	return p.Run(ctx, extstrgutils.SplitUnique(layerNames), maxZoom)
}

func New(l layers, cache tileCache, ts tileService) *Prefetcher {
	return &Prefetcher{
		layers:  l,
		cache:   cache,
		tiles:   ts,
		workers: numWorkers,
	}
}

// Layers filters the layers which are allowed to prefetch
func (p *Prefetcher) Layers(names []string) []string {
	res := make([]string, 0, len(names))
	for _, n := range names {
		switch {
		case !p.layers.HasLayer(n):
			log.Warn("unknown layer, skipped", "layer", n)
		case !p.layers.IsCached(n):
			log.Warn("layer not cached, skipped", "layer", n)
		case !p.layers.IsPrefetchable(n):
			log.Warn("prefetching not allowed for layer, skipped", "layer", n)
		default:
			res = append(res, n)
		}
	}
	return res
}

// Count the number of tiles of zoom levels 0 to maxZoom
func Count(maxZoom int) int64 {
	var n int64
	for z := range maxZoom + 1 {
		n += int64(1) << (2 * z)
	}
	return n
}

// Run fetches all missing tiles. A canceled context stops after the running
// requests.
func (p *Prefetcher) Run(ctx context.Context, names []string, maxZoom int) error {
	if !p.cache.IsActive() {
		return ErrCacheInactive
	}
	names = p.Layers(names)
	if len(names) == 0 || maxZoom < 0 {
		return nil
	}

	var total int64
	zooms := make(map[string]int, len(names))
	for _, n := range names {
		zooms[n] = min(maxZoom, p.layers.MaxZoom(n))
		total += Count(zooms[n])
	}
	var bar *pb.ProgressBar
	if p.bar {
		bar = pb.StartNew(int(total))
		defer bar.Finish()
	}

	jobs := make(chan model.Tile, 1000)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errCount int
	for range p.workers {
		wg.Go(func() {
			for j := range jobs {
				if err := p.fetch(ctx, j); err != nil {
					log.Error("error prefetching tile", "tile", j.String(), "error", err)
					mu.Lock()
					errCount++
					mu.Unlock()
				}
				if bar != nil {
					bar.Increment()
				}
			}
		})
	}

produce:
	for _, n := range names {
		log.Info("prefetching layer", "layer", n, "maxzoom", zooms[n])
		for z := range zooms[n] + 1 {
			rg := 1 << z
			for x := range rg {
				for y := range rg {
					select {
					case jobs <- model.Tile{Layer: n, Z: z, X: x, Y: y}:
					case <-ctx.Done():
						break produce
					}
				}
			}
		}
	}
	close(jobs)
	wg.Wait()
	p.tiles.WaitSaves()

	if err := ctx.Err(); err != nil {
		return err
	}
	if errCount > 0 {
		return errors.Errorf("%d tiles could not be prefetched", errCount)
	}
	return nil
}

func (p *Prefetcher) fetch(ctx context.Context, tile model.Tile) error {
	if ctx.Err() != nil || p.cache.Has(ctx, tile) {
		return nil
	}
	rd, err := p.tiles.FTile(ctx, tile)
	if err != nil {
		if errors.Is(err, layer.ErrTileNotFound) {
			return nil
		}
		return err
	}
	defer rd.Close()
	_, err = io.Copy(io.Discard, rd)
	return err
}

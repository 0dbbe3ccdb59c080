package tilecache

import (
	"context"
	"io"

	"github.com/samber/do/v2"
	"github.com/willie68/go_argenmap/internal/logging"
	"github.com/willie68/go_argenmap/internal/model"
)

// cache types
const (
	TypeFile   = "file"
	TypeBadger = "badger"
	TypeS3     = "s3"
)

type TileCache interface {
	Has(ctx context.Context, tile model.Tile) bool
	Tile(ctx context.Context, tile model.Tile) (io.ReadCloser, bool)
	Save(ctx context.Context, tile model.Tile, data io.Reader) error
	IsActive() bool
	Close() error
}

type Config struct {
	Type   string   `yaml:"type"` // file, badger, s3
	Path   string   `yaml:"path"`
	Active bool     `yaml:"active"`
	MaxAge int      `yaml:"maxage"` // in hours
	S3     S3Config `yaml:"s3"`
}

type cacheConfig interface {
	GetCacheConfig() Config
}

var (
	_ TileCache = (*FileCache)(nil)
	_ TileCache = (*BadgerCache)(nil)
	_ TileCache = (*S3Cache)(nil)
)

// Init creates the configured cache. If the backend can't be opened the
// service runs with an inactive cache.
func Init(inj do.Injector) {
	cfg := do.MustInvokeAs[cacheConfig](inj).GetCacheConfig()
	log := logging.New("tilecache")
	if !cfg.Active {
		do.ProvideValue(inj, NewFileCache(cfg))
		return
	}
	switch cfg.Type {
	case TypeBadger:
		c, err := NewBadgerCache(cfg)
		if err == nil {
			do.ProvideValue(inj, c)
			return
		}
		log.Error("can't open badger cache, caching disabled", "path", cfg.Path, "error", err)
	case TypeS3:
		c, err := NewS3Cache(context.Background(), cfg)
		if err == nil {
			do.ProvideValue(inj, c)
			return
		}
		log.Error("can't connect to s3 cache, caching disabled", "endpoint", cfg.S3.Endpoint, "error", err)
	case TypeFile, "":
		do.ProvideValue(inj, NewFileCache(cfg))
		return
	default:
		log.Error("unknown cache type, caching disabled", "type", cfg.Type)
	}
	cfg.Active = false
	do.ProvideValue(inj, NewFileCache(cfg))
}

package tilecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/willie68/go_argenmap/internal/logging"
	"github.com/willie68/go_argenmap/internal/model"
	"github.com/willie68/go_argenmap/pkg/fileutils"
)

// FileCache stores the tiles as <path>/<layer>/<z>/<x>/<y>.png
type FileCache struct {
	log    *slog.Logger
	path   string
	active bool
	maxage int // in hours
	stop   chan struct{}
	once   sync.Once

	flock sync.RWMutex
}

func NewFileCache(cfg Config) *FileCache {
	c := &FileCache{
		log:    logging.New("filecache"),
		path:   cfg.Path,
		active: cfg.Active,
		maxage: cfg.MaxAge,
		stop:   make(chan struct{}),
	}
	if c.active && c.maxage > 0 {
		c.startCacheCleanupJob()
	}
	return c
}

func (c *FileCache) startCacheCleanupJob() {
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
			}
			err := c.CleanupOldFiles(time.Duration(c.maxage) * time.Hour)
			if err != nil {
				c.log.Error("cache cleanup error", "error", err)
			} else {
				c.log.Debug("cache cleanup completed")
			}
		}
	}()
}

func (c *FileCache) IsActive() bool {
	return c.active
}

func (c *FileCache) Has(_ context.Context, tile model.Tile) bool {
	if !c.active {
		return false
	}
	fname := c.getFilename(tile)
	c.flock.RLock()
	defer c.flock.RUnlock()
	return fileutils.FileExists(fname)
}

func (c *FileCache) Tile(_ context.Context, tile model.Tile) (io.ReadCloser, bool) {
	if !c.active {
		return nil, false
	}
	fname := c.getFilename(tile)
	c.flock.RLock()
	defer c.flock.RUnlock()
	f, err := os.Open(fname)
	if err != nil {
		return nil, false
	}
	return f, true
}

func (c *FileCache) Save(_ context.Context, tile model.Tile, data io.Reader) error {
	if !c.active {
		return nil
	}
	fn := c.getFilename(tile)
	c.flock.Lock()
	defer c.flock.Unlock()
	// only cache if the file does not exists
	if _, err := os.Stat(fn); !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(fn), 0o755); err != nil {
		return err
	}
	// write to a temp file first, readers never see a partial tile
	tmp := fn + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, fn)
}

// CleanupOldFiles deletes cache files older than the given duration.
func (c *FileCache) CleanupOldFiles(olderThan time.Duration) error {
	if !fileutils.IsDir(c.path) {
		return nil
	}
	now := time.Now()
	return filepath.Walk(c.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if now.Sub(info.ModTime()) > olderThan {
			c.log.Debug("removing old cache file", "file", path)
			c.deleteFile(path)
		}
		return nil
	})
}

func (c *FileCache) deleteFile(path string) {
	c.flock.Lock()
	defer c.flock.Unlock()
	err := os.Remove(path)
	if err != nil {
		c.log.Error("error removing file", "file", path, "error", err)
	}
}

func (c *FileCache) getFilename(tile model.Tile) string {
	return filepath.Join(c.path, fileutils.ValidPathName(tile.Layer), strconv.Itoa(tile.Z), strconv.Itoa(tile.X), fmt.Sprintf("%d.png", tile.Y))
}

func (c *FileCache) Close() error {
	c.once.Do(func() {
		close(c.stop)
	})
	return nil
}

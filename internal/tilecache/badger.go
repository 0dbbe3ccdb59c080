package tilecache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/willie68/go_argenmap/internal/logging"
	"github.com/willie68/go_argenmap/internal/model"
)

// BadgerCache stores the tiles in a badger key value store, the max age is
// the ttl of the entries.
type BadgerCache struct {
	log    *slog.Logger
	db     *badger.DB
	maxage int // in hours
	stop   chan struct{}
	once   sync.Once
}

func NewBadgerCache(cfg Config) (*BadgerCache, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open badger db %s", cfg.Path)
	}
	c := &BadgerCache{
		log:    logging.New("badgercache"),
		db:     db,
		maxage: cfg.MaxAge,
		stop:   make(chan struct{}),
	}
	c.startGCJob()
	return c, nil
}

func (c *BadgerCache) startGCJob() {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
			}
			for c.db.RunValueLogGC(0.5) == nil {
			}
			c.log.Debug("value log gc completed")
		}
	}()
}

func (c *BadgerCache) IsActive() bool {
	return true
}

func (c *BadgerCache) Has(_ context.Context, tile model.Tile) bool {
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key(tile))
		return err
	})
	return err == nil
}

func (c *BadgerCache) Tile(_ context.Context, tile model.Tile) (io.ReadCloser, bool) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(tile))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.log.Error("error reading tile", "tile", tile.String(), "error", err)
		}
		return nil, false
	}
	return io.NopCloser(bytes.NewReader(data)), true
}

func (c *BadgerCache) Save(_ context.Context, tile model.Tile, data io.Reader) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key(tile), buf)
		if c.maxage > 0 {
			e = e.WithTTL(time.Duration(c.maxage) * time.Hour)
		}
		return txn.SetEntry(e)
	})
}

func (c *BadgerCache) Close() error {
	var err error
	c.once.Do(func() {
		close(c.stop)
		err = c.db.Close()
	})
	return err
}

func key(tile model.Tile) []byte {
	return []byte(fmt.Sprintf("%s/%d/%d/%d", tile.Layer, tile.Z, tile.X, tile.Y))
}

package layer

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/i0tool5/mbtiles-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
	"github.com/willie68/go_argenmap/internal/logging"
	"github.com/willie68/go_argenmap/internal/model"
	"github.com/willie68/go_argenmap/internal/tilegrid"
)

type metadata struct {
	Name        string
	Format      string
	Attribution string
	Maxzoom     int
	Minzoom     int
	BBox        *orb.Bound
}

// MBTilesLayer serves tiles of a local mbtiles file. MBTiles stores the rows
// in TMS convention.
type MBTilesLayer struct {
	name string
	log  *slog.Logger
	db   *mbtiles.MBtiles
	meta metadata
}

func NewMBTilesLayer(name string, config Config) (*MBTilesLayer, error) {
	log := logging.New("mbtiles").With("layer", name)
	db, err := mbtiles.Open(config.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open mbtiles database %s", config.Path)
	}
	tf := db.GetTileFormat()
	log.Info("mbtiles format", "format", tf.String())
	meta, err := db.ReadMetadata()
	if err != nil {
		log.Error("failed to read mbtiles metadata", "error", err)
	}
	mbt := &MBTilesLayer{
		name: name,
		log:  log,
		db:   db,
		meta: parseMetadata(meta),
	}
	if config.Title != "" {
		mbt.meta.Name = config.Title
	}
	if config.Attribution != "" {
		mbt.meta.Attribution = config.Attribution
	}
	return mbt, nil
}

func (s *MBTilesLayer) Tile(_ context.Context, tile model.Tile) (io.ReadCloser, error) {
	if tile.Z < s.meta.Minzoom || tile.Z > s.meta.Maxzoom {
		return nil, errors.Wrapf(ErrTileNotFound, "zoom level %d out of bounds (%d - %d)", tile.Z, s.meta.Minzoom, s.meta.Maxzoom)
	}
	if !s.inBounds(tile) {
		return nil, errors.Wrapf(ErrTileNotFound, "tile %d/%d/%d out of bounds", tile.Z, tile.X, tile.Y)
	}
	sc, err := tilegrid.ToSourceRowConvention(tile.Coordinate(), true)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.db.ReadTile(int64(sc.Z), int64(sc.X), int64(sc.Y), &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrTileNotFound, "tile %s", sc.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read tile")
	}
	if len(data) == 0 {
		return nil, errors.Wrapf(ErrTileNotFound, "tile %s", sc.String())
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MBTilesLayer) inBounds(tile model.Tile) bool {
	if s.meta.BBox == nil {
		return true
	}
	if err := tile.Coordinate().Valid(); err != nil {
		return false
	}
	tb := maptile.New(uint32(tile.X), uint32(tile.Y), maptile.Zoom(tile.Z)).Bound()
	return tb.Intersects(*s.meta.BBox)
}

func (s *MBTilesLayer) Info() Info {
	title := s.meta.Name
	if title == "" {
		title = s.name
	}
	return Info{
		Name:              s.name,
		Type:              TypeMBTiles,
		Title:             title,
		Attribution:       s.meta.Attribution,
		SphericalMercator: true,
		TMS:               true,
		MinZoom:           s.meta.Minzoom,
		MaxZoom:           s.meta.Maxzoom,
	}
}

func (s *MBTilesLayer) Close() error {
	s.db.Close()
	return nil
}

// parseMetadata reads the known keys of the metadata table, values may come
// as numbers or as strings depending on the writer of the file
func parseMetadata(meta map[string]any) metadata {
	m := metadata{Maxzoom: 18}
	m.Name, _ = meta["name"].(string)
	m.Format, _ = meta["format"].(string)
	m.Attribution, _ = meta["attribution"].(string)
	if v, ok := toInt(meta["maxzoom"]); ok {
		m.Maxzoom = v
	}
	if v, ok := toInt(meta["minzoom"]); ok {
		m.Minzoom = v
	}
	if bb, ok := toBounds(meta["bounds"]); ok {
		m.BBox = &bb
	}
	return m
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// bounds are given as left,bottom,right,top in WGS84
func toBounds(v any) (orb.Bound, bool) {
	var vals []float64
	switch b := v.(type) {
	case []float64:
		vals = b
	case string:
		for _, p := range strings.Split(b, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return orb.Bound{}, false
			}
			vals = append(vals, f)
		}
	}
	if len(vals) != 4 {
		return orb.Bound{}, false
	}
	return orb.Bound{Min: orb.Point{vals[0], vals[1]}, Max: orb.Point{vals[2], vals[3]}}, true
}

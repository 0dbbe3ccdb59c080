package layer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/do/v2"
	"github.com/willie68/go_argenmap/configs"
	"github.com/willie68/go_argenmap/internal/logging"
	"github.com/willie68/go_argenmap/internal/model"
	"github.com/willie68/go_argenmap/internal/tilegrid"
)

// layer types
const (
	TypeArgenmap = "argenmap"
	TypeTMS      = "tms"
	TypeXYZ      = "xyz"
	TypeWMS      = "wms"
	TypeMBTiles  = "mbtiles"

	// FallbackEmpty serves an empty tile if the layer has none
	FallbackEmpty = "empty"
)

type Service interface {
	Tile(ctx context.Context, tile model.Tile) (io.ReadCloser, error)
	Info() Info
}

// Info is the configuration of a layer as a map client needs it
type Info struct {
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	Title             string   `json:"title"`
	URLs              []string `json:"urls,omitempty"`
	Attribution       string   `json:"attribution,omitempty"`
	SphericalMercator bool     `json:"sphericalMercator"`
	WrapDateLine      bool     `json:"wrapDateLine"`
	TMS               bool     `json:"tms"`
	MinZoom           int      `json:"minZoom"`
	MaxZoom           int      `json:"maxZoom"`
}

type ConfigMap map[string]Config

type Config struct {
	Type         string            `yaml:"type"` // argenmap, tms, xyz, wms, mbtiles
	Title        string            `yaml:"title"`
	URL          string            `yaml:"url"`
	URLs         []string          `yaml:"urls"`
	Attribution  string            `yaml:"attribution"`
	TMS          *bool             `yaml:"tms"`          // unset keeps the row convention of the type
	WrapDateLine *bool             `yaml:"wrapdateline"` // unset keeps the default of the type
	MinZoom      int               `yaml:"minzoom"`
	MaxZoom      int               `yaml:"maxzoom"`
	NoCached     bool              `yaml:"nocache"`
	Layers       string            `yaml:"layers"`
	Format       string            `yaml:"format"`
	Styles       string            `yaml:"styles"`
	Version      string            `yaml:"version"`
	SRS          string            `yaml:"srs"`
	Headers      map[string]string `yaml:"headers"`
	Path         string            `yaml:"path"`     // for file based layers
	Fallback     string            `yaml:"fallback"` // name of another layer or "empty"
	NoPrefetch   bool              `yaml:"noprefetch"`
	Timeout      int               `yaml:"timeout"` // in seconds
}

// Templates returns all url templates of the config
func (c Config) Templates() []string {
	urls := slices.Clone(c.URLs)
	if c.URL != "" {
		urls = append([]string{c.URL}, urls...)
	}
	return urls
}

// Source builds the tile source of a template based layer
func (c Config) Source(name string) (tilegrid.SourceConfig, error) {
	var src tilegrid.SourceConfig
	switch c.Type {
	case TypeArgenmap:
		src = tilegrid.DefaultSource().WithOptions(
			tilegrid.WithName(c.Title),
			tilegrid.WithURLs(c.Templates()...),
			tilegrid.WithAttribution(c.Attribution),
			tilegrid.WithZoomRange(c.MinZoom, c.MaxZoom),
		).WithOptions(c.overrides()...)
	case TypeTMS, TypeXYZ:
		src = tilegrid.SourceConfig{
			Name:              name,
			URLs:              c.Templates(),
			Attribution:       c.Attribution,
			TMS:               c.Type == TypeTMS,
			SphericalMercator: true,
			MinZoom:           0,
			MaxZoom:           18,
		}.WithOptions(
			tilegrid.WithName(c.Title),
			tilegrid.WithZoomRange(c.MinZoom, c.MaxZoom),
		).WithOptions(c.overrides()...)
	default:
		return src, errors.Errorf("layer type %q has no url templates", c.Type)
	}
	if err := src.Validate(); err != nil {
		return src, errors.Wrapf(err, "layer %s", name)
	}
	return src, nil
}

// overrides the explicitly configured flags of a template source
func (c Config) overrides() []tilegrid.Option {
	opts := make([]tilegrid.Option, 0, 2)
	if c.TMS != nil {
		opts = append(opts, tilegrid.WithTMS(*c.TMS))
	}
	if c.WrapDateLine != nil {
		opts = append(opts, tilegrid.WithWrapDateLine(*c.WrapDateLine))
	}
	return opts
}

func (c Config) wrapDateLine() bool {
	return c.WrapDateLine != nil && *c.WrapDateLine
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

type Factory struct {
	log     *slog.Logger
	configs ConfigMap
	layers  map[string]Service
}

var (
	ErrNotFound = errors.New("layer not found")
	// ErrTileNotFound the layer has no tile for this address
	ErrTileNotFound = errors.New("tile not found")
)

type layerConfig interface {
	GetLayerConfig() ConfigMap
}

func Init(inj do.Injector) {
	f := &Factory{
		log:     logging.New("factory"),
		configs: do.MustInvokeAs[layerConfig](inj).GetLayerConfig(),
		layers:  make(map[string]Service),
	}
	do.ProvideValue(inj, f)
	for lname, config := range f.configs {
		var s Service
		switch config.Type {
		case TypeArgenmap, TypeTMS, TypeXYZ:
			src, err := config.Source(lname)
			if err != nil {
				f.log.Error("layer rejected", "layer", lname, "error", err)
				continue
			}
			s = newTemplateLayer(lname, config, src)
		case TypeWMS:
			s = newWMSLayer(lname, config)
		case TypeMBTiles:
			mbt, err := NewMBTilesLayer(lname, config)
			if err != nil {
				f.log.Error("layer rejected", "layer", lname, "error", err)
				continue
			}
			do.ProvideNamedValue(inj, lname+".mbtiles", mbt)
			s = mbt
		default:
			panic(fmt.Sprintf("unknown layer type: %s", config.Type))
		}
		do.ProvideNamedValue(inj, lname, s)
		f.layers[lname] = s
		f.log.Info("layer registered", "layer", lname, "type", config.Type)
	}
}

func (f *Factory) HasLayer(layerName string) bool {
	_, ok := f.layers[layerName]
	return ok
}

func (f *Factory) Layer(layerName string) (Service, error) {
	s, ok := f.layers[layerName]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s", layerName)
	}
	return s, nil
}

// Layers returns the names of all registered layers, sorted
func (f *Factory) Layers() []string {
	names := make([]string, 0, len(f.layers))
	for n := range f.layers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Translator returns the tile address translator of a template based layer
func (f *Factory) Translator(layerName string) (*tilegrid.Translator, bool) {
	s, ok := f.layers[layerName]
	if !ok {
		return nil, false
	}
	tl, ok := s.(*templateLayer)
	if !ok {
		return nil, false
	}
	return tl.tr, true
}

func (f *Factory) IsCached(layerName string) bool {
	config, ok := f.configs[layerName]
	if !ok {
		return false
	}
	return !config.NoCached
}

func (f *Factory) Fallback(layerName string) string {
	return f.configs[layerName].Fallback
}

func (f *Factory) IsPrefetchable(layerName string) bool {
	config, ok := f.configs[layerName]
	if !ok || !f.HasLayer(layerName) {
		return false
	}
	if slices.ContainsFunc(config.Templates(), configs.IsBlacklisted) {
		return false
	}
	return !config.NoPrefetch
}

// MaxZoom the highest zoom level a layer serves
func (f *Factory) MaxZoom(layerName string) int {
	s, ok := f.layers[layerName]
	if !ok {
		return 0
	}
	return s.Info().MaxZoom
}

// Close releases file based layers
func (f *Factory) Close() error {
	var err error
	for _, s := range f.layers {
		if c, ok := s.(io.Closer); ok {
			if e := c.Close(); e != nil {
				err = e
			}
		}
	}
	return err
}

func setDefaultHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "go_argenmap/0.1")
	req.Header.Set("Accept", "*/*")
}

// fetch runs a GET request with the configured headers. Any other status
// than 200 is an error, 404 maps to ErrTileNotFound.
func fetch(ctx context.Context, cl *http.Client, log *slog.Logger, url string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	setDefaultHeaders(req)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := cl.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "tile request failed")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error("error on tile request", "url", url, "status", resp.Status, "body", string(body))
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
			return nil, errors.Wrapf(ErrTileNotFound, "status %s", resp.Status)
		}
		return nil, errors.Errorf("tile error, status %s", resp.Status)
	}
	return resp.Body, nil
}

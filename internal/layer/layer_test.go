package layer

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/willie68/go_argenmap/internal/model"
	"github.com/willie68/go_argenmap/internal/tilegrid"
)

type testConfig struct {
	layers ConfigMap
}

func (c *testConfig) GetLayerConfig() ConfigMap {
	return c.layers
}

type upstream struct {
	sync.Mutex
	paths []string
}

func newUpstream(t *testing.T) (*httptest.Server, *upstream) {
	up := &upstream{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up.Lock()
		up.paths = append(up.paths, r.URL.Path)
		up.Unlock()
		if r.Header.Get("X-Api-Key") != "secret" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if r.URL.Path == "/tms/4/0/0.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		io.WriteString(w, "png:"+r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv, up
}

func initFactory(t *testing.T, layers ConfigMap) (*Factory, do.Injector) {
	inj := do.New()
	do.ProvideValue(inj, &testConfig{layers: layers})
	Init(inj)
	return do.MustInvoke[*Factory](inj), inj
}

func TestTemplateLayers(t *testing.T) {
	ast := assert.New(t)
	srv, up := newUpstream(t)
	headers := map[string]string{"X-Api-Key": "secret"}
	f, inj := initFactory(t, ConfigMap{
		"argenmap": {Type: TypeArgenmap, URLs: []string{srv.URL + "/tms/{z}/{x}/{y}.png"}, Headers: headers},
		"osm":      {Type: TypeXYZ, URL: srv.URL + "/xyz/{z}/{x}/{y}.png", Headers: headers, WrapDateLine: ptr(true)},
		"argenxyz": {Type: TypeArgenmap, URLs: []string{srv.URL + "/xyz/{z}/{x}/{y}.png"}, Headers: headers, TMS: ptr(false)},
	})
	ast.Equal([]string{"argenmap", "argenxyz", "osm"}, f.Layers())
	ast.True(f.HasLayer("argenmap"))
	ast.False(f.HasLayer("unknown"))

	s, err := do.InvokeNamed[Service](inj, "argenmap")
	ast.NoError(err)

	rd, err := s.Tile(t.Context(), model.Tile{Layer: "argenmap", Z: 3, X: 3, Y: 2})
	ast.NoError(err)
	data, _ := io.ReadAll(rd)
	rd.Close()
	ast.Equal("png:/tms/3/3/5.png", string(data))

	s, err = f.Layer("osm")
	ast.NoError(err)
	rd, err = s.Tile(t.Context(), model.Tile{Layer: "osm", Z: 8, X: 3, Y: 5})
	ast.NoError(err)
	data, _ = io.ReadAll(rd)
	rd.Close()
	ast.Equal("png:/xyz/8/3/5.png", string(data))

	// tms row 0 of zoom 4 is grid row 15
	_, err = f.layers["argenmap"].Tile(t.Context(), model.Tile{Layer: "argenmap", Z: 4, X: 0, Y: 15})
	ast.ErrorIs(err, ErrTileNotFound)

	_, err = s.Tile(t.Context(), model.Tile{Layer: "osm", Z: 3, X: 0, Y: 8})
	ast.ErrorIs(err, tilegrid.ErrInvalidCoordinate)

	_, err = s.Tile(t.Context(), model.Tile{Layer: "osm", Z: 19, X: 0, Y: 0})
	ast.ErrorIs(err, ErrTileNotFound)

	// argenmap defaults with the row flip switched off
	s, err = f.Layer("argenxyz")
	ast.NoError(err)
	ast.False(s.Info().TMS)
	ast.True(s.Info().WrapDateLine)
	rd, err = s.Tile(t.Context(), model.Tile{Layer: "argenxyz", Z: 3, X: 3, Y: 2})
	ast.NoError(err)
	data, _ = io.ReadAll(rd)
	rd.Close()
	ast.Equal("png:/xyz/3/3/2.png", string(data))

	_, err = f.Layer("unknown")
	ast.True(errors.Is(err, ErrNotFound))

	up.Lock()
	ast.Len(up.paths, 4)
	up.Unlock()
}

func ptr[T any](v T) *T {
	return &v
}

func TestSourceOverrides(t *testing.T) {
	ast := assert.New(t)
	tt := []struct {
		name string
		cfg  Config
		tms  bool
		wrap bool
	}{
		{"argenmap defaults", Config{Type: TypeArgenmap}, true, true},
		{"argenmap no wrap", Config{Type: TypeArgenmap, WrapDateLine: ptr(false)}, true, false},
		{"argenmap xyz rows", Config{Type: TypeArgenmap, TMS: ptr(false)}, false, true},
		{"tms defaults", Config{Type: TypeTMS, URL: "http://host/{z}/{x}/{y}.png"}, true, false},
		{"xyz with wrap", Config{Type: TypeXYZ, URL: "http://host/{z}/{x}/{y}.png", WrapDateLine: ptr(true)}, false, true},
		{"xyz type flipped", Config{Type: TypeXYZ, URL: "http://host/{z}/{x}/{y}.png", TMS: ptr(true)}, true, false},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			src, err := tc.cfg.Source(tc.name)
			ast.NoError(err)
			ast.Equal(tc.tms, src.TMS)
			ast.Equal(tc.wrap, src.WrapDateLine)
			ast.Equal(tc.wrap, src.Grid().WrapDateLine)
		})
	}
}

func TestUpstreamErrors(t *testing.T) {
	ast := assert.New(t)
	srv, _ := newUpstream(t)
	f, _ := initFactory(t, ConfigMap{
		"nokey": {Type: TypeXYZ, URL: srv.URL + "/xyz/{z}/{x}/{y}.png"},
	})
	s, err := f.Layer("nokey")
	ast.NoError(err)
	_, err = s.Tile(t.Context(), model.Tile{Layer: "nokey", Z: 1, X: 0, Y: 0})
	ast.Error(err)
	ast.False(errors.Is(err, ErrTileNotFound))
}

func TestMalformedTemplateRejected(t *testing.T) {
	ast := assert.New(t)
	f, _ := initFactory(t, ConfigMap{
		"broken": {Type: TypeTMS, URL: "http://host/{z}/{x}.png"},
		"empty":  {Type: TypeXYZ},
		"ok":     {Type: TypeTMS, URL: "http://host/{z}/{x}/{y}.png"},
	})
	ast.Equal([]string{"ok"}, f.Layers())
}

func TestUnknownTypePanics(t *testing.T) {
	ast := assert.New(t)
	ast.Panics(func() {
		initFactory(t, ConfigMap{"x": {Type: "wfs"}})
	})
}

func TestLayerInfo(t *testing.T) {
	ast := assert.New(t)
	f, _ := initFactory(t, ConfigMap{
		"argenmap": {Type: TypeArgenmap},
		"sig":      {Type: TypeTMS, Title: "Vectores IGN", URL: "http://sig.ign.gob.ar/tms/capabasesigign/{z}/{x}/{y}.png", MaxZoom: 14},
	})
	s, err := f.Layer("argenmap")
	ast.NoError(err)
	info := s.Info()
	def := tilegrid.DefaultSource()
	ast.Equal("Mapa IGN", info.Title)
	ast.Equal(def.URLs, info.URLs)
	ast.Equal(def.Attribution, info.Attribution)
	ast.True(info.TMS)
	ast.True(info.SphericalMercator)
	ast.True(info.WrapDateLine)

	s, err = f.Layer("sig")
	ast.NoError(err)
	info = s.Info()
	ast.Equal("Vectores IGN", info.Title)
	ast.Equal(14, info.MaxZoom)
	ast.Equal(14, f.MaxZoom("sig"))
	ast.False(info.WrapDateLine)

	tr, ok := f.Translator("sig")
	ast.True(ok)
	u, err := tr.TileURL(tilegrid.TileCoordinate{X: 3, Y: 2, Z: 3})
	ast.NoError(err)
	ast.Equal("http://sig.ign.gob.ar/tms/capabasesigign/3/3/5.png", u)
}

func TestPrefetchable(t *testing.T) {
	ast := assert.New(t)
	f, _ := initFactory(t, ConfigMap{
		"argenmap": {Type: TypeArgenmap},
		"osm":      {Type: TypeXYZ, URL: "https://tile.openstreetmap.org/{z}/{x}/{y}.png"},
		"private":  {Type: TypeXYZ, URL: "http://host/{z}/{x}/{y}.png", NoPrefetch: true, NoCached: true},
	})
	ast.True(f.IsPrefetchable("argenmap"))
	ast.False(f.IsPrefetchable("osm"))
	ast.False(f.IsPrefetchable("private"))
	ast.False(f.IsPrefetchable("unknown"))
	ast.True(f.IsCached("argenmap"))
	ast.False(f.IsCached("private"))
	ast.False(f.IsCached("unknown"))
}

func TestWMSUrl(t *testing.T) {
	ast := assert.New(t)
	s := newWMSLayer("gebco", Config{
		Type:   TypeWMS,
		URL:    "https://geoserver.openseamap.org/geoserver/gwc/service/wms",
		Layers: "gebco2021:gebco_2021",
	})
	bb, err := s.tileToBBox(model.Tile{Z: 1, X: 1, Y: 0})
	ast.NoError(err)
	ast.InDelta(0, bb.Left, 1e-6)
	ast.InDelta(0, bb.Bottom, 1e-6)
	ast.InDelta(20037508.342789244, bb.Top, 1e-6)

	u, err := s.buildWMSUrl(bb)
	ast.NoError(err)
	pu, err := url.Parse(u)
	ast.NoError(err)
	q := pu.Query()
	ast.Equal("GetMap", q.Get("request"))
	ast.Equal("EPSG:3857", q.Get("crs"))
	ast.Equal("256", q.Get("width"))
	ast.Equal("image/png", q.Get("format"))

	s = newWMSLayer("wgs", Config{Type: TypeWMS, URL: "http://host/wms", SRS: "EPSG:4326", Version: "1.1.1"})
	bb, err = s.tileToBBox(model.Tile{Z: 1, X: 0, Y: 0})
	ast.NoError(err)
	ast.InDelta(-180, bb.Left, 1e-9)
	ast.InDelta(0, bb.Right, 1e-9)
	ast.InDelta(0, bb.Bottom, 1e-9)
	u, err = s.buildWMSUrl(bb)
	ast.NoError(err)
	pu, _ = url.Parse(u)
	ast.Equal("EPSG:4326", pu.Query().Get("srs"))

	_, err = s.tileToBBox(model.Tile{Z: 1, X: 2, Y: 0})
	ast.ErrorIs(err, tilegrid.ErrInvalidCoordinate)
}

func TestParseMetadata(t *testing.T) {
	ast := assert.New(t)
	m := parseMetadata(map[string]any{
		"name":    "argentina",
		"format":  "png",
		"minzoom": "2",
		"maxzoom": int64(12),
		"bounds":  "-73.6,-55.1,-53.6,-21.8",
	})
	ast.Equal("argentina", m.Name)
	ast.Equal(2, m.Minzoom)
	ast.Equal(12, m.Maxzoom)
	ast.NotNil(m.BBox)
	ast.InDelta(-73.6, m.BBox.Min[0], 1e-9)
	ast.InDelta(-21.8, m.BBox.Max[1], 1e-9)

	m = parseMetadata(nil)
	ast.Equal(18, m.Maxzoom)
	ast.Nil(m.BBox)

	l := &MBTilesLayer{meta: parseMetadata(map[string]any{"bounds": "-73.6,-55.1,-53.6,-21.8"})}
	// the tile of buenos aires at zoom 4 and one in europe
	ast.True(l.inBounds(model.Tile{Z: 4, X: 5, Y: 9}))
	ast.False(l.inBounds(model.Tile{Z: 4, X: 8, Y: 5}))
}

package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/willie68/go_argenmap/internal"
	"github.com/willie68/go_argenmap/internal/config"
	"github.com/willie68/go_argenmap/internal/layer"
	"github.com/willie68/go_argenmap/internal/tilecache"
	"github.com/willie68/go_argenmap/internal/tilegrid"
	"github.com/willie68/go_argenmap/internal/tiles"
)

type testEnv struct {
	srv    *httptest.Server
	health *httptest.Server
	tiles  *tiles.Service
	calls  *atomic.Int32
	inj    do.Injector
}

func newTestServer(t *testing.T) testEnv {
	calls := &atomic.Int32{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/tms/1/0/0.png" {
			http.NotFound(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/jpg/") {
			io.WriteString(w, "\xFF\xD8\xFF\xE0"+r.URL.Path)
			return
		}
		io.WriteString(w, r.URL.Path)
	}))
	t.Cleanup(upstream.Close)

	cfg := &config.Config{
		Metrics: true,
		Layers: layer.ConfigMap{
			"argenmap": {Type: layer.TypeArgenmap, URLs: []string{upstream.URL + "/tms/{z}/{x}/{y}.png"}},
			"sigign":   {Type: layer.TypeTMS, URL: upstream.URL + "/tms/{z}/{x}/{y}.png", Fallback: layer.FallbackEmpty, NoCached: true},
			"gebco":    {Type: layer.TypeWMS, URL: upstream.URL + "/wms"},
			"photo":    {Type: layer.TypeXYZ, URL: upstream.URL + "/jpg/{z}/{x}/{y}.jpg", NoCached: true},
		},
		Cache: tilecache.Config{Active: true, Type: tilecache.TypeFile, Path: t.TempDir()},
	}
	inj := do.New()
	do.ProvideValue(inj, cfg)
	do.ProvideValue(inj, *config.NewVersion())
	internal.InitServices(inj)
	t.Cleanup(func() { internal.Stop(inj) })

	router, err := APIRoutes(inj)
	assert.NoError(t, err)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	health := httptest.NewServer(HealthRoutes(inj))
	t.Cleanup(health.Close)

	return testEnv{
		srv:    srv,
		health: health,
		tiles:  do.MustInvoke[*tiles.Service](inj),
		calls:  calls,
		inj:    inj,
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	assert.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestXYZTile(t *testing.T) {
	ast := assert.New(t)
	env := newTestServer(t)

	status, body := get(t, env.srv.URL+"/tileserver/argenmap/xyz/3/3/2.png")
	ast.Equal(http.StatusOK, status)
	ast.Equal("/tms/3/3/5.png", body)
	env.tiles.WaitSaves()

	// now served by the cache
	status, body = get(t, env.srv.URL+"/tileserver/argenmap/xyz/3/3/2.png")
	ast.Equal(http.StatusOK, status)
	ast.Equal("/tms/3/3/5.png", body)
	ast.Equal(int32(1), env.calls.Load())
}

func TestTMSTile(t *testing.T) {
	ast := assert.New(t)
	env := newTestServer(t)

	status, body := get(t, env.srv.URL+"/tileserver/argenmap/tms/3/3/5.png")
	ast.Equal(http.StatusOK, status)
	ast.Equal("/tms/3/3/5.png", body)
}

func TestTileErrors(t *testing.T) {
	ast := assert.New(t)
	env := newTestServer(t)
	tt := []struct {
		name   string
		path   string
		status int
	}{
		{"row out of range", "/tileserver/argenmap/xyz/3/0/8.png", http.StatusBadRequest},
		{"column out of range", "/tileserver/argenmap/xyz/3/8/0.png", http.StatusBadRequest},
		{"tms row out of range", "/tileserver/argenmap/tms/3/0/8.png", http.StatusBadRequest},
		{"negative zoom", "/tileserver/argenmap/xyz/-1/0/0.png", http.StatusBadRequest},
		{"no number", "/tileserver/argenmap/xyz/a/0/0.png", http.StatusBadRequest},
		{"unknown layer", "/tileserver/unknown/xyz/1/0/0.png", http.StatusNotFound},
		{"upstream 404", "/tileserver/argenmap/xyz/1/0/1.png", http.StatusNotFound},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := get(t, env.srv.URL+tc.path)
			ast.Equal(tc.status, status)
		})
	}
}

func TestEmptyFallback(t *testing.T) {
	ast := assert.New(t)
	env := newTestServer(t)
	resp, err := http.Get(env.srv.URL + "/tileserver/sigign/xyz/1/0/1.png")
	ast.NoError(err)
	defer resp.Body.Close()
	ast.Equal(http.StatusOK, resp.StatusCode)
	ast.Equal("image/png", resp.Header.Get("Content-Type"))
}

func TestAddress(t *testing.T) {
	ast := assert.New(t)
	env := newTestServer(t)

	g := tilegrid.SphericalMercatorGrid(18)
	b, err := g.TileBounds(tilegrid.TileCoordinate{X: 3, Y: 2, Z: 3})
	ast.NoError(err)
	u := fmt.Sprintf("%s/tileserver/argenmap/address?bbox=%f,%f,%f,%f&resolution=%f", env.srv.URL, b.Left, b.Bottom, b.Right, b.Top, g.Resolutions[3])
	status, body := get(t, u)
	ast.Equal(http.StatusOK, status)
	var addr Address
	ast.NoError(json.Unmarshal([]byte(body), &addr))
	ast.Equal(3, addr.Z)
	ast.Equal(3, addr.X)
	ast.Equal(2, addr.Y)
	ast.Contains(addr.URL, "/tms/3/3/5.png")

	status, _ = get(t, env.srv.URL+"/tileserver/argenmap/address?bbox=1,2,3&resolution=1")
	ast.Equal(http.StatusBadRequest, status)
	status, _ = get(t, env.srv.URL+"/tileserver/argenmap/address?bbox=0,0,1,1&resolution=0")
	ast.Equal(http.StatusBadRequest, status)
	status, _ = get(t, env.srv.URL+"/tileserver/unknown/address?bbox=0,0,1,1&resolution=1")
	ast.Equal(http.StatusNotFound, status)
	status, _ = get(t, env.srv.URL+"/tileserver/gebco/address?bbox=0,0,1,1&resolution=1")
	ast.Equal(http.StatusInternalServerError, status)
}

func TestLayers(t *testing.T) {
	ast := assert.New(t)
	env := newTestServer(t)

	status, body := get(t, env.srv.URL+"/layers")
	ast.Equal(http.StatusOK, status)
	var infos []layer.Info
	ast.NoError(json.Unmarshal([]byte(body), &infos))
	ast.Len(infos, 4)
	ast.Equal("argenmap", infos[0].Name)
	ast.True(infos[0].TMS)
	ast.True(infos[0].SphericalMercator)
	ast.True(infos[0].WrapDateLine)
	ast.Equal(tilegrid.DefaultSource().Attribution, infos[0].Attribution)

	status, body = get(t, env.srv.URL+"/layers/sigign")
	ast.Equal(http.StatusOK, status)
	ast.Contains(body, `"name":"sigign"`)

	status, _ = get(t, env.srv.URL+"/layers/unknown")
	ast.Equal(http.StatusNotFound, status)
}

func TestMetricsAndHealth(t *testing.T) {
	ast := assert.New(t)
	env := newTestServer(t)
	get(t, env.srv.URL+"/tileserver/argenmap/xyz/0/0/0.png")

	status, body := get(t, env.srv.URL+"/metrics")
	ast.Equal(http.StatusOK, status)
	ast.Contains(body, "getTile")

	health := env.health.URL
	status, _ = get(t, health+"/livez")
	ast.Equal(http.StatusOK, status)
	status, body = get(t, health+"/readyz")
	ast.Equal(http.StatusOK, status)
	ast.Contains(body, "argenmap")
}

func TestTileContentType(t *testing.T) {
	ast := assert.New(t)
	env := newTestServer(t)

	resp, err := http.Get(env.srv.URL + "/tileserver/photo/xyz/2/1/1.png")
	ast.NoError(err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	ast.Equal(http.StatusOK, resp.StatusCode)
	ast.Equal("image/jpeg", resp.Header.Get("Content-Type"))
	ast.Equal("\xFF\xD8\xFF\xE0/jpg/2/1/1.jpg", string(data))

	// not sniffable as image
	resp, err = http.Get(env.srv.URL + "/tileserver/argenmap/xyz/2/1/1.png")
	ast.NoError(err)
	resp.Body.Close()
	ast.Equal("image/png", resp.Header.Get("Content-Type"))
}

func TestContentType(t *testing.T) {
	ast := assert.New(t)
	tt := []struct {
		name string
		data string
		exp  string
	}{
		{"png", "\x89PNG\r\n\x1a\n0000", "image/png"},
		{"jpeg", "\xFF\xD8\xFF\xE0", "image/jpeg"},
		{"gif", "GIF89a", "image/gif"},
		{"text", "not an image", "image/png"},
		{"empty", "", "image/png"},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			br := bufio.NewReaderSize(strings.NewReader(tc.data), sniffLen)
			ast.Equal(tc.exp, contentType(br))
			rest, err := io.ReadAll(br)
			ast.NoError(err)
			ast.Equal(tc.data, string(rest))
		})
	}
}

type brokenWriter struct {
	header http.Header
	status int
}

func (b *brokenWriter) Header() http.Header {
	return b.header
}

func (b *brokenWriter) WriteHeader(status int) {
	b.status = status
}

func (b *brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestTileWriteError(t *testing.T) {
	ast := assert.New(t)
	env := newTestServer(t)
	router, err := APIRoutes(env.inj)
	ast.NoError(err)

	w := &brokenWriter{header: http.Header{}}
	req := httptest.NewRequest(http.MethodGet, "/tileserver/photo/xyz/1/0/0.png", nil)
	ast.NotPanics(func() {
		router.ServeHTTP(w, req)
	})
	ast.Equal("image/jpeg", w.header.Get("Content-Type"))
}

package api

import (
	"bufio"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/samber/do/v2"
	"github.com/willie68/go_argenmap/internal/layer"
	"github.com/willie68/go_argenmap/internal/logging"
	"github.com/willie68/go_argenmap/internal/model"
	"github.com/willie68/go_argenmap/internal/tilegrid"
	"github.com/willie68/go_argenmap/internal/tiles"
	"github.com/willie68/go_argenmap/internal/utils/measurement"
	"github.com/willie68/go_argenmap/pkg/fileutils"
)

// http.DetectContentType considers at most 512 bytes
const sniffLen = 512

type translators interface {
	HasLayer(layerName string) bool
	Translator(layerName string) (*tilegrid.Translator, bool)
}

type TilesHandler struct {
	log     *slog.Logger
	tiles   *tiles.Service
	layers  translators
	metrics *measurement.Service
}

// Address the answer of the address endpoint
type Address struct {
	Layer string `json:"layer"`
	Z     int    `json:"z"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	URL   string `json:"url"`
}

func NewTilesHandler(inj do.Injector) *chi.Mux {
	th := &TilesHandler{
		log:     logging.New("api"),
		tiles:   do.MustInvoke[*tiles.Service](inj),
		layers:  do.MustInvoke[*layer.Factory](inj),
		metrics: do.MustInvoke[*measurement.Service](inj),
	}
	router := chi.NewRouter()
	router.Get("/{layer}/xyz/{z}/{x}/{y}.png", th.GetTileHandler(false))
	router.Get("/{layer}/tms/{z}/{x}/{y}.png", th.GetTileHandler(true))
	router.Get("/{layer}/address", th.GetAddressHandler)
	return router
}

// GetTileHandler serves one tile. With tms the requested row is in TMS
// convention and is converted to the grid convention first.
func (h *TilesHandler) GetTileHandler(tms bool) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		td := h.metrics.Start("getTile")
		defer td.Stop()

		h.log.Debug("tile request", "path", r.URL.Path)
		tile, err := h.getRequestParameter(r, tms)
		if err != nil {
			td.SetError()
			h.error(w, r, err)
			return
		}

		rd, err := h.tiles.FTile(r.Context(), tile)
		if err != nil {
			td.SetError()
			h.error(w, r, err)
			return
		}
		defer rd.Close()

		br := bufio.NewReaderSize(rd, sniffLen)
		w.Header().Set("Content-Type", contentType(br))
		if _, err := io.Copy(w, br); err != nil {
			h.log.Debug("error writing tile", "path", r.URL.Path, "error", err)
		}
	})
}

// contentType sniffs the image type of the tile, without consuming it.
// Anything not detected as an image is served as png.
func contentType(br *bufio.Reader) string {
	head, _ := br.Peek(sniffLen)
	ct := http.DetectContentType(head)
	if !strings.HasPrefix(ct, "image/") {
		return "image/png"
	}
	return ct
}

// GetAddressHandler translates a viewport into the upstream tile address
func (h *TilesHandler) GetAddressHandler(w http.ResponseWriter, r *http.Request) {
	lname := chi.URLParam(r, "layer")
	tr, ok := h.layers.Translator(lname)
	if !ok {
		if h.layers.HasLayer(lname) {
			h.error(w, r, errors.Errorf("layer %s has no url templates", lname))
			return
		}
		h.error(w, r, errors.Wrapf(layer.ErrNotFound, "%s", lname))
		return
	}
	bounds, err := parseBBox(r.URL.Query().Get("bbox"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	res, err := strconv.ParseFloat(r.URL.Query().Get("resolution"), 64)
	if err != nil {
		h.error(w, r, errors.Wrapf(tilegrid.ErrInvalidResolution, "%q", r.URL.Query().Get("resolution")))
		return
	}
	c, u, err := tr.Locate(bounds, res)
	if err != nil {
		h.error(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Address{Layer: lname, Z: c.Z, X: c.X, Y: c.Y, URL: u})
}

func (h *TilesHandler) getRequestParameter(r *http.Request, tms bool) (tile model.Tile, err error) {
	tile.Layer = chi.URLParam(r, "layer")
	zs := chi.URLParam(r, "z")
	xs := chi.URLParam(r, "x")
	ys := fileutils.FileNameWithoutExtension(chi.URLParam(r, "y"))

	if !h.tiles.HasLayer(tile.Layer) {
		return tile, errors.Wrapf(layer.ErrNotFound, "%s", tile.Layer)
	}
	tile.Z, err = strconv.Atoi(zs)
	if err != nil {
		return tile, errors.Wrap(errBadRequest, "error in zoom level")
	}
	tile.X, err = strconv.Atoi(xs)
	if err != nil {
		return tile, errors.Wrap(errBadRequest, "error in x axis")
	}
	tile.Y, err = strconv.Atoi(ys)
	if err != nil {
		return tile, errors.Wrap(errBadRequest, "error in y axis")
	}
	c, err := tilegrid.ToSourceRowConvention(tile.Coordinate(), tms)
	if err != nil {
		return tile, err
	}
	if err := c.Valid(); err != nil {
		return tile, err
	}
	return model.FromCoordinate(tile.Layer, c), nil
}

func parseBBox(s string) (tilegrid.ViewportBounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return tilegrid.ViewportBounds{}, errors.Wrapf(tilegrid.ErrInvalidBounds, "bbox %q", s)
	}
	v := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return tilegrid.ViewportBounds{}, errors.Wrapf(tilegrid.ErrInvalidBounds, "bbox %q", s)
		}
		v[i] = f
	}
	b := tilegrid.ViewportBounds{Left: v[0], Bottom: v[1], Right: v[2], Top: v[3]}
	return b, b.Validate()
}

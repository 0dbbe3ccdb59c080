package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/samber/do/v2"
	"github.com/willie68/go_argenmap/internal/config"
	"github.com/willie68/go_argenmap/internal/layer"
	"github.com/willie68/go_argenmap/internal/tilegrid"
	"github.com/willie68/go_argenmap/internal/utils/measurement"
)

var errBadRequest = errors.New("bad request")

// APIRoutes all routes of the tile service
func APIRoutes(inj do.Injector) (*chi.Mux, error) {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}),
	)
	router.Mount("/tileserver", NewTilesHandler(inj))
	router.Mount("/layers", NewLayersHandler(inj))
	router.Mount("/metrics", measurement.Routes(inj))
	return router, nil
}

// HealthRoutes the liveness and readiness endpoints
func HealthRoutes(inj do.Injector) *chi.Mux {
	router := chi.NewRouter()
	router.Get("/livez", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		f, err := do.Invoke[*layer.Factory](inj)
		if err != nil || len(f.Layers()) == 0 {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"status": "no layers"})
			return
		}
		ver := do.MustInvoke[config.Version](inj)
		render.JSON(w, r, map[string]any{"status": "ok", "version": ver.String(), "layers": f.Layers()})
	})
	return router
}

type errorResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// error maps the domain errors to http status codes
func (h *TilesHandler) error(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, layer.ErrNotFound), errors.Is(err, layer.ErrTileNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tilegrid.ErrInvalidCoordinate),
		errors.Is(err, tilegrid.ErrInvalidBounds),
		errors.Is(err, tilegrid.ErrInvalidResolution),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.log.Error("system error", "path", r.URL.Path, "error", err)
	}
	writeError(w, r, status, err)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Status: status, Error: err.Error()})
}

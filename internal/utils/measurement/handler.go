package measurement

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/samber/do/v2"
)

type metricsHandler struct {
	ms *Service
}

// Routes the metric endpoints, GET lists the points, POST resets them
func Routes(inj do.Injector) *chi.Mux {
	h := metricsHandler{ms: do.MustInvoke[*Service](inj)}
	router := chi.NewRouter()
	router.Get("/", h.list)
	router.Get("/{name}", h.point)
	router.Post("/reset", h.reset)
	router.Post("/reset/{name}", h.resetPoint)
	return router
}

func (h metricsHandler) list(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.ms.Datas())
}

func (h metricsHandler) point(w http.ResponseWriter, r *http.Request) {
	d, ok := h.ms.Data(chi.URLParam(r, "name"))
	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "unknown measure point"})
		return
	}
	render.JSON(w, r, d)
}

func (h metricsHandler) reset(w http.ResponseWriter, r *http.Request) {
	h.ms.Reset()
	render.NoContent(w, r)
}

func (h metricsHandler) resetPoint(w http.ResponseWriter, r *http.Request) {
	if !h.ms.Has(chi.URLParam(r, "name")) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "unknown measure point"})
		return
	}
	h.ms.Point(chi.URLParam(r, "name")).Reset()
	render.NoContent(w, r)
}

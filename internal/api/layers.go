package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/samber/do/v2"
	"github.com/willie68/go_argenmap/internal/layer"
)

type layerRegistry interface {
	Layers() []string
	Layer(layerName string) (layer.Service, error)
}

type LayersHandler struct {
	layers layerRegistry
}

func NewLayersHandler(inj do.Injector) *chi.Mux {
	lh := &LayersHandler{
		layers: do.MustInvoke[*layer.Factory](inj),
	}
	router := chi.NewRouter()
	router.Get("/", lh.GetLayersHandler)
	router.Get("/{layer}", lh.GetLayerHandler)
	return router
}

// GetLayersHandler lists the client configuration of all layers
func (h *LayersHandler) GetLayersHandler(w http.ResponseWriter, r *http.Request) {
	infos := make([]layer.Info, 0)
	for _, n := range h.layers.Layers() {
		s, err := h.layers.Layer(n)
		if err != nil {
			continue
		}
		infos = append(infos, s.Info())
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, infos)
}

func (h *LayersHandler) GetLayerHandler(w http.ResponseWriter, r *http.Request) {
	s, err := h.layers.Layer(chi.URLParam(r, "layer"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, s.Info())
}

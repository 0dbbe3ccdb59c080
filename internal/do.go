package internal

import (
	"github.com/samber/do/v2"
	"github.com/willie68/go_argenmap/internal/config"
	"github.com/willie68/go_argenmap/internal/layer"
	"github.com/willie68/go_argenmap/internal/logging"
	"github.com/willie68/go_argenmap/internal/shttp"
	"github.com/willie68/go_argenmap/internal/tilecache"
	"github.com/willie68/go_argenmap/internal/tiles"
	"github.com/willie68/go_argenmap/internal/utils/measurement"
)

// Init wires all services of the tile service into the injector
func Init(inj do.Injector) {
	config.Init(inj)
	InitServices(inj)
	shttp.Init(inj)
}

// InitServices wires everything below the http layer, the config has to be
// provided already
func InitServices(inj do.Injector) {
	logging.Init(inj)
	measurement.Init(inj)
	tilecache.Init(inj)
	layer.Init(inj)
	tiles.Init(inj)
}

// Stop waits for pending cache writes and closes cache, layers and logs
func Stop(inj do.Injector) {
	log := logging.New("internal")
	if ts, err := do.Invoke[*tiles.Service](inj); err == nil {
		ts.WaitSaves()
	}
	if tc, err := do.InvokeAs[tilecache.TileCache](inj); err == nil {
		if err := tc.Close(); err != nil {
			log.Error("error on close tilecache", "error", err)
		}
	}
	if f, err := do.Invoke[*layer.Factory](inj); err == nil {
		if err := f.Close(); err != nil {
			log.Error("error on close layers", "error", err)
		}
	}
	if lc, err := do.Invoke[*logging.Closer](inj); err == nil {
		lc.Close()
	}
}

package shttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/do/v2"
	"github.com/willie68/go_argenmap/internal/logging"
)

type Config struct {
	Port       int
	Healthport int
}

type serverConfig interface {
	GetServerConfig() Config
}

// SHttp runs the api and the health server
type SHttp struct {
	cfg    Config
	log    *slog.Logger
	srv    *http.Server
	health *http.Server
}

func Init(inj do.Injector) {
	do.ProvideValue(inj, New(do.MustInvokeAs[serverConfig](inj).GetServerConfig()))
}

func New(cfg Config) *SHttp {
	return &SHttp{
		cfg: cfg,
		log: logging.New("shttp"),
	}
}

// StartServers starts both servers in the background, a health port of 0
// disables the health server
func (s *SHttp) StartServers(router, healthRouter http.Handler) {
	s.srv = s.start("api", s.cfg.Port, router)
	if s.cfg.Healthport > 0 && healthRouter != nil {
		s.health = s.start("health", s.cfg.Healthport, healthRouter)
	}
}

func (s *SHttp) start(name string, port int, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		s.log.Info("starting server", "name", name, "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error on listen and serve", "name", name, "error", err)
		}
	}()
	return srv
}

// ShutdownServers stops the servers, running requests get 15 seconds to finish
func (s *SHttp) ShutdownServers() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, srv := range []*http.Server{s.srv, s.health} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			s.log.Error("error on shutdown", "addr", srv.Addr, "error", err)
		}
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"
	flag "github.com/spf13/pflag"
	"github.com/willie68/go_argenmap/configs"
	"github.com/willie68/go_argenmap/internal"
	"github.com/willie68/go_argenmap/internal/api"
	"github.com/willie68/go_argenmap/internal/config"
	"github.com/willie68/go_argenmap/internal/logging"
	"github.com/willie68/go_argenmap/internal/prefetch"
	"github.com/willie68/go_argenmap/internal/shttp"
	"github.com/willie68/go_argenmap/pkg/fileutils"
)

var (
	log         *slog.Logger
	configFile  string
	envFile     string
	showVersion bool
	initConfig  bool
	pfZoom      int
	pfLayers    string
	port        int
)

func init() {
	flag.BoolVarP(&initConfig, "init", "i", false, "init config, writes out a default config.")
	flag.BoolVarP(&showVersion, "version", "v", false, "showing the version")
	flag.StringVarP(&configFile, "config", "c", "config.yaml", "this is the path and filename to the config file")
	flag.StringVarP(&envFile, "env", "e", ".env", "env file with ARGENMAP_* overrides, a missing file is ignored")
	flag.IntVarP(&port, "port", "p", 0, "overwrite the port (8580) of the config")
	flag.IntVarP(&pfZoom, "zoom", "z", 0, "max zoom for prefetch tiles")
	flag.StringVarP(&pfLayers, "system", "s", "", "prefetch layers, if empty no prefetching will be done, csv if more than one needed.")
	flag.Usage = func() {
		fmt.Printf("Usage of %s:\n", os.Args[0])
		fmt.Println("more on https://github.com/willie68/go_argenmap")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("examples:")
		fmt.Println("serve the argenmap tiles: write the default config, adjust the layers and run")
		fmt.Printf("%s -i > config.yaml\n", os.Args[0])
		fmt.Printf("%s -c config.yaml\n", os.Args[0])
		fmt.Println("with caching and prefetching up to zoom 5: switch caching to active, set a path and run")
		fmt.Printf("%s -c config.yaml -s argenmap -z 5\n", os.Args[0])
	}
}

func main() {
	flag.Parse()
	if showVersion {
		fmt.Println(config.NewVersion().String())
		os.Exit(0)
	}
	if initConfig {
		fmt.Println(configs.ConfigFile)
		os.Exit(0)
	}
	if !fileutils.FileExists(configFile) {
		fmt.Fprint(os.Stderr, "no config given or dosn't exists.\r\n\r\n")
		flag.Usage()
		os.Exit(1)
	}
	if err := config.Load(configFile); err != nil {
		panic(err)
	}
	if err := config.LoadEnv(envFile); err != nil {
		panic(err)
	}
	config.SetParameter(config.WithPort(port))
	js := config.JSON()
	if js == "" {
		panic("error on marshal config to json")
	}
	fmt.Printf("Config:\n%s\n", js)

	inj := do.New()
	internal.Init(inj)
	log = logging.New("main")
	log.Info("starting tile service", "version", config.NewVersion().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if pfLayers != "" {
		if err := prefetch.Prefetch(ctx, inj, pfLayers, pfZoom); err != nil {
			log.Error("prefetch failed", "error", err)
		}
	}

	router, err := api.APIRoutes(inj)
	if err != nil {
		log.Error("could not create api routes", "error", err)
		os.Exit(1)
	}
	healthRouter := api.HealthRoutes(inj)

	sh := do.MustInvoke[*shttp.SHttp](inj)
	sh.StartServers(router, healthRouter)

	log.Info("waiting for clients")
	<-ctx.Done()

	sh.ShutdownServers()
	log.Info("server finished")

	internal.Stop(inj)
}

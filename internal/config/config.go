package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/samber/do/v2"
	"github.com/willie68/go_argenmap/internal/layer"
	"github.com/willie68/go_argenmap/internal/logging"
	"github.com/willie68/go_argenmap/internal/shttp"
	"github.com/willie68/go_argenmap/internal/tilecache"
	"go.yaml.in/yaml/v3"
)

// environment variables overriding the config file
const (
	EnvPort       = "ARGENMAP_PORT"
	EnvHealthport = "ARGENMAP_HEALTHPORT"
	EnvCachePath  = "ARGENMAP_CACHE_PATH"
	EnvLogLevel   = "ARGENMAP_LOG_LEVEL"
)

type Config struct {
	Port       int              `yaml:"port"`
	Healthport int              `yaml:"healthport"`
	Metrics    bool             `yaml:"metrics"`
	Layers     layer.ConfigMap  `yaml:"layers"`
	Logging    logging.Config   `yaml:"logging"`
	Cache      tilecache.Config `yaml:"cache"`
}

var (
	config = Config{
		Port:       8580,
		Healthport: 8581,
	}
)

// Option changes a single value of the loaded config
type Option func(c *Config)

// WithPort overwrites the port, 0 keeps the configured one
func WithPort(p int) Option {
	return func(c *Config) {
		if p > 0 {
			c.Port = p
		}
	}
}

func WithCachePath(path string) Option {
	return func(c *Config) {
		if path != "" {
			c.Cache.Path = path
		}
	}
}

func WithLogLevel(level string) Option {
	return func(c *Config) {
		if level != "" {
			c.Logging.Level = level
		}
	}
}

func SetParameter(opts ...Option) {
	for _, o := range opts {
		o(&config)
	}
}

func Get() *Config {
	return &config
}

func JSON() string {
	js, err := config.JSON()
	if err != nil {
		return ""
	}
	return js
}

// Load loads the config
func Load(file string) error {
	_, err := os.Stat(file)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("can't load config file: %s", err.Error())
	}
	return Parse(data)
}

// Parse reads the config from yaml data
func Parse(data []byte) error {
	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return fmt.Errorf("can't unmarshal config file: %s", err.Error())
	}
	return nil
}

// LoadEnv reads the given .env files (default .env, a missing file is fine)
// and applies the ARGENMAP_* variables to the config.
func LoadEnv(files ...string) error {
	existing := make([]string, 0, len(files))
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return fmt.Errorf("can't load env file: %s", err.Error())
		}
	}
	if v, ok := os.LookupEnv(EnvPort); ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %s", EnvPort, v)
		}
		SetParameter(WithPort(p))
	}
	if v, ok := os.LookupEnv(EnvHealthport); ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %s", EnvHealthport, v)
		}
		config.Healthport = p
	}
	SetParameter(
		WithCachePath(os.Getenv(EnvCachePath)),
		WithLogLevel(os.Getenv(EnvLogLevel)),
	)
	return nil
}

func Init(inj do.Injector) {
	do.ProvideValue(inj, &config)

	ver := NewVersion()
	do.ProvideValue(inj, *ver)
}

func (c *Config) JSON() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("can't marshal config to json: %s", err.Error())
	}
	return string(data), nil
}

func (c *Config) GetLayerConfig() layer.ConfigMap {
	return c.Layers
}

func (c *Config) GetLoggingConfig() logging.Config {
	return c.Logging
}

func (c *Config) GetCacheConfig() tilecache.Config {
	return c.Cache
}

func (c *Config) GetServerConfig() shttp.Config {
	return shttp.Config{
		Port:       c.Port,
		Healthport: c.Healthport,
	}
}

func (c *Config) IsMetricsActive() bool {
	return c.Metrics
}

package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/samber/do/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config of the logging system
type Config struct {
	Level      string            `yaml:"level"`
	Format     string            `yaml:"format"` // text or json
	Filename   string            `yaml:"filename"`
	MaxSize    int               `yaml:"maxsize"` // in megabytes
	MaxBackups int               `yaml:"maxbackups"`
	MaxAge     int               `yaml:"maxage"` // in days
	Compress   bool              `yaml:"compress"`
	Gelfurl    string            `yaml:"gelf-url"` // e.g. udp://graylog:12201
	Attrs      map[string]string `yaml:"attrs"`
}

type loggingConfig interface {
	GetLoggingConfig() Config
}

var root atomic.Pointer[slog.Logger]

func init() {
	root.Store(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// New creates a named logger. Loggers created before Init follow the
// configuration once Init has run.
func New(name string) *slog.Logger {
	return slog.New(&lazyHandler{}).With("logger", name)
}

// Init configures the root logger from the config in the injector
func Init(inj do.Injector) {
	cfg := do.MustInvokeAs[loggingConfig](inj).GetLoggingConfig()
	h, closer := newHandler(cfg, os.Stdout)
	l := slog.New(h)
	root.Store(l)
	slog.SetDefault(l)
	if closer != nil {
		do.ProvideValue(inj, closer)
	}
}

// Closer closes the log outputs on shutdown
type Closer struct {
	outputs []io.Closer
}

func (c *Closer) Close() error {
	var err error
	for _, o := range c.outputs {
		if e := o.Close(); e != nil {
			err = e
		}
	}
	return err
}

func newHandler(cfg Config, stdout io.Writer) (slog.Handler, *Closer) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var w io.Writer = stdout
	closer := &Closer{}
	if cfg.Filename != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		closer.outputs = append(closer.outputs, lj)
		w = io.MultiWriter(stdout, lj)
	}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	if cfg.Gelfurl != "" {
		gh, err := newGelfHandler(cfg.Gelfurl, opts.Level.Level(), cfg.Attrs)
		if err != nil {
			slog.New(h).Error("can't connect to gelf server", "url", cfg.Gelfurl, "error", err)
		} else {
			closer.outputs = append(closer.outputs, gh)
			h = &fanoutHandler{handlers: []slog.Handler{h, gh}}
		}
	}
	return h, closer
}

// ParseLevel converts a level name, unknown names are info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// lazyHandler resolves the root handler on every record
type lazyHandler struct {
	ops []func(slog.Handler) slog.Handler
}

func (h *lazyHandler) resolve() slog.Handler {
	r := root.Load().Handler()
	for _, op := range h.ops {
		r = op(r)
	}
	return r
}

func (h *lazyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return root.Load().Handler().Enabled(ctx, level)
}

func (h *lazyHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.resolve().Handle(ctx, r)
}

func (h *lazyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(n slog.Handler) slog.Handler { return n.WithAttrs(attrs) })
}

func (h *lazyHandler) WithGroup(name string) slog.Handler {
	return h.with(func(n slog.Handler) slog.Handler { return n.WithGroup(name) })
}

func (h *lazyHandler) with(op func(slog.Handler) slog.Handler) slog.Handler {
	ops := make([]func(slog.Handler) slog.Handler, 0, len(h.ops)+1)
	ops = append(ops, h.ops...)
	ops = append(ops, op)
	return &lazyHandler{ops: ops}
}

type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.handlers {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	for _, s := range h.handlers {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if e := s.Handle(ctx, r.Clone()); e != nil {
			err = e
		}
	}
	return err
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(h.handlers))
	for i, s := range h.handlers {
		hs[i] = s.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: hs}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(h.handlers))
	for i, s := range h.handlers {
		hs[i] = s.WithGroup(name)
	}
	return &fanoutHandler{handlers: hs}
}

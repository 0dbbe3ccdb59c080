package logging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aphistic/golf"
)

// gelfHandler sends log records to a graylog server
type gelfHandler struct {
	client *golf.Client
	logger *golf.Logger
	level  slog.Level
	attrs  map[string]interface{}
	group  string
}

func newGelfHandler(url string, level slog.Level, attrs map[string]string) (*gelfHandler, error) {
	c, err := golf.NewClient()
	if err != nil {
		return nil, err
	}
	if err := c.Dial(url); err != nil {
		c.Close()
		return nil, err
	}
	l, err := c.NewLogger()
	if err != nil {
		c.Close()
		return nil, err
	}
	l.SetAttr("facility", "go_argenmap")
	for k, v := range attrs {
		l.SetAttr(k, v)
	}
	return &gelfHandler{
		client: c,
		logger: l,
		level:  level,
		attrs:  make(map[string]interface{}),
	}, nil
}

func (h *gelfHandler) Close() error {
	return h.client.Close()
}

func (h *gelfHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *gelfHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
	for k, v := range h.attrs {
		attrs[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[h.key(a.Key)] = fmt.Sprint(a.Value.Any())
		return true
	})
	switch {
	case r.Level >= slog.LevelError:
		return h.logger.Errm(attrs, "%s", r.Message)
	case r.Level >= slog.LevelWarn:
		return h.logger.Warnm(attrs, "%s", r.Message)
	case r.Level >= slog.LevelInfo:
		return h.logger.Infom(attrs, "%s", r.Message)
	default:
		return h.logger.Dbgm(attrs, "%s", r.Message)
	}
}

func (h *gelfHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := h.clone()
	for _, a := range attrs {
		n.attrs[h.key(a.Key)] = fmt.Sprint(a.Value.Any())
	}
	return n
}

func (h *gelfHandler) WithGroup(name string) slog.Handler {
	n := h.clone()
	n.group = h.key(name)
	return n
}

func (h *gelfHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func (h *gelfHandler) clone() *gelfHandler {
	attrs := make(map[string]interface{}, len(h.attrs))
	for k, v := range h.attrs {
		attrs[k] = v
	}
	return &gelfHandler{
		client: h.client,
		logger: h.logger,
		level:  h.level,
		attrs:  attrs,
		group:  h.group,
	}
}

package tilegrid

import (
	"slices"

	"github.com/pkg/errors"
)

// SourceConfig is the configuration of a remote tile source.
type SourceConfig struct {
	Name              string   `yaml:"name" json:"name"`
	URLs              []string `yaml:"urls" json:"urls"`
	Attribution       string   `yaml:"attribution" json:"attribution"`
	TMS               bool     `yaml:"tms" json:"tms"`
	SphericalMercator bool     `yaml:"sphericalmercator" json:"sphericalMercator"`
	WrapDateLine      bool     `yaml:"wrapdateline" json:"wrapDateLine"`
	MinZoom           int      `yaml:"minzoom" json:"minZoom"`
	MaxZoom           int      `yaml:"maxzoom" json:"maxZoom"`
}

// DefaultSource returns the configuration of the official Argenmap tileset
// of the IGN Argentina.
func DefaultSource() SourceConfig {
	return SourceConfig{
		Name: "Mapa IGN",
		URLs: []string{
			"http://igntiles1.ap01.aws.af.cm/tms/capabaseargenmap/{z}/{x}/{y}.png",
			"http://mapaabierto.aws.af.cm/tms/capabaseargenmap/{z}/{x}/{y}.png",
			"http://igntiles2.eu01.aws.af.cm/tms/capabaseargenmap/{z}/{x}/{y}.png",
		},
		Attribution:       "Argenmap, de <a href='http://www.ign.gob.ar'>IGN Argentina</a>",
		TMS:               true,
		SphericalMercator: true,
		WrapDateLine:      true,
		MinZoom:           0,
		MaxZoom:           18,
	}
}

// Option changes a copy of a source config
type Option func(s *SourceConfig)

func WithName(name string) Option {
	return func(s *SourceConfig) {
		if name != "" {
			s.Name = name
		}
	}
}

// WithURLs replaces the template list, an empty list keeps the current one
func WithURLs(urls ...string) Option {
	return func(s *SourceConfig) {
		if len(urls) > 0 {
			s.URLs = slices.Clone(urls)
		}
	}
}

func WithAttribution(attr string) Option {
	return func(s *SourceConfig) {
		if attr != "" {
			s.Attribution = attr
		}
	}
}

func WithTMS(tms bool) Option {
	return func(s *SourceConfig) {
		s.TMS = tms
	}
}

func WithWrapDateLine(wrap bool) Option {
	return func(s *SourceConfig) {
		s.WrapDateLine = wrap
	}
}

// WithZoomRange sets the zoom range, a zero max zoom keeps the current range
func WithZoomRange(minZoom, maxZoom int) Option {
	return func(s *SourceConfig) {
		if maxZoom > 0 {
			s.MinZoom = minZoom
			s.MaxZoom = maxZoom
		}
	}
}

// Clone returns a deep copy
func (s SourceConfig) Clone() SourceConfig {
	c := s
	c.URLs = slices.Clone(s.URLs)
	return c
}

// WithOptions returns a copy with all options applied
func (s SourceConfig) WithOptions(opts ...Option) SourceConfig {
	c := s.Clone()
	for _, o := range opts {
		o(&c)
	}
	return c
}

// Validate checks the templates and the zoom range
func (s SourceConfig) Validate() error {
	if len(s.URLs) == 0 {
		return errors.Wrapf(ErrMalformedTemplate, "source %q without urls", s.Name)
	}
	for _, u := range s.URLs {
		if err := ValidateTemplate(u); err != nil {
			return err
		}
	}
	if s.MinZoom < 0 || s.MaxZoom > MaxZoom || s.MinZoom > s.MaxZoom {
		return errors.Errorf("source %q: invalid zoom range %d - %d", s.Name, s.MinZoom, s.MaxZoom)
	}
	return nil
}

// Template returns the template with the given index, modulo the number of templates
func (s SourceConfig) Template(sourceIndex int) string {
	if len(s.URLs) == 0 {
		return ""
	}
	n := len(s.URLs)
	return s.URLs[((sourceIndex%n)+n)%n]
}

// Grid returns the tile grid the source is published in
func (s SourceConfig) Grid() Grid {
	g := SphericalMercatorGrid(s.MaxZoom)
	g.WrapDateLine = s.WrapDateLine
	return g
}

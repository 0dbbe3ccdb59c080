package measurement

import (
	"slices"
	"strings"
	"sync"

	"github.com/samber/do/v2"
)

// Service collects timings of named measure points
type Service struct {
	active bool
	plock  sync.Mutex
	points map[string]*Point
}

type Data struct {
	Name      string `json:"name"`
	Min       int64  `json:"min"`
	Max       int64  `json:"max"`
	Average   int64  `json:"average"`
	Total     int64  `json:"total"`
	Count     int    `json:"count"`
	Errors    int    `json:"errors"`
	MaxActive int    `json:"maxActive"`
}

type metricsConfig interface {
	IsMetricsActive() bool
}

func Init(inj do.Injector) {
	active := do.MustInvokeAs[metricsConfig](inj).IsMetricsActive()
	do.ProvideValue(inj, New(active))
}

func New(active bool) *Service {
	return &Service{
		active: active,
		points: make(map[string]*Point),
	}
}

// Start starts a new timer on the named point
func (s *Service) Start(name string) *Timer {
	t := s.Point(name).Timer()
	t.start()
	return t
}

func (s *Service) Point(name string) *Point {
	s.plock.Lock()
	defer s.plock.Unlock()
	p, ok := s.points[name]
	if !ok {
		p = NewPoint(name, s.active)
		s.points[name] = p
	}
	return p
}

// Has checks if the point was already started once
func (s *Service) Has(name string) bool {
	s.plock.Lock()
	defer s.plock.Unlock()
	_, ok := s.points[name]
	return ok
}

// Data the data of a single point, false for unknown points
func (s *Service) Data(name string) (Data, bool) {
	s.plock.Lock()
	p, ok := s.points[name]
	s.plock.Unlock()
	if !ok {
		return Data{}, false
	}
	return p.Data(), true
}

// IsActive reports if the service measures at all
func (s *Service) IsActive() bool {
	return s.active
}

// Datas returns the data of all points sorted by name
func (s *Service) Datas() []Data {
	s.plock.Lock()
	datas := make([]Data, 0, len(s.points))
	for _, v := range s.points {
		datas = append(datas, v.Data())
	}
	s.plock.Unlock()
	slices.SortFunc(datas, func(d1, d2 Data) int {
		return strings.Compare(d1.Name, d2.Name)
	})
	return datas
}

func (s *Service) Reset() {
	s.plock.Lock()
	defer s.plock.Unlock()
	for _, v := range s.points {
		v.Reset()
	}
}

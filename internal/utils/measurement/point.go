package measurement

import (
	"sync"
	"time"
)

type Point struct {
	name                     string
	sactive                  bool
	min, max, average, total time.Duration
	errorCount, count        int
	active, maxActive        int
	calcLock                 sync.Mutex
}

// Timer measures one run of a point, a timer of an inactive point measures nothing
type Timer struct {
	point   *Point
	begin   time.Time
	accrued time.Duration
	running bool
	failed  bool
}

func NewPoint(name string, active bool) *Point {
	return &Point{
		name:    name,
		sactive: active,
	}
}

// Name the name of this measure point
func (p *Point) Name() string {
	return p.name
}

func (p *Point) Reset() {
	p.calcLock.Lock()
	defer p.calcLock.Unlock()
	p.min = 0
	p.max = 0
	p.average = 0
	p.total = 0
	p.errorCount = 0
	p.count = 0
	p.active = 0
	p.maxActive = 0
}

func (p *Point) Timer() *Timer {
	if !p.sactive {
		return &Timer{}
	}
	return &Timer{point: p}
}

func (p *Point) begin() {
	p.calcLock.Lock()
	defer p.calcLock.Unlock()
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
}

func (p *Point) end(accrued time.Duration, failed bool) {
	p.calcLock.Lock()
	defer p.calcLock.Unlock()
	if p.active > 0 {
		p.active--
	}
	if failed {
		p.errorCount++
	}
	p.count++
	p.total += accrued
	p.average = p.total / time.Duration(p.count)
	if accrued > p.max {
		p.max = accrued
	}
	if (accrued < p.min) || (p.min == 0) {
		p.min = accrued
	}
}

func (p *Point) Data() Data {
	p.calcLock.Lock()
	defer p.calcLock.Unlock()
	return Data{
		Name:      p.name,
		Min:       p.min.Milliseconds(),
		Max:       p.max.Milliseconds(),
		Average:   p.average.Milliseconds(),
		Total:     p.total.Milliseconds(),
		Count:     p.count,
		Errors:    p.errorCount,
		MaxActive: p.maxActive,
	}
}

func (t *Timer) start() {
	if t.point == nil {
		return
	}
	t.begin = time.Now()
	t.running = true
	t.point.begin()
}

// Stop ends the measurement, returns false if the timer was not running
func (t *Timer) Stop() bool {
	if !t.running {
		return false
	}
	t.running = false
	t.accrued = time.Since(t.begin)
	t.point.end(t.accrued, t.failed)
	return true
}

// SetError marks the run as failed
func (t *Timer) SetError() {
	t.failed = true
}

func (t *Timer) Accrued() time.Duration {
	return t.accrued
}

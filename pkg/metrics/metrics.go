// Metric primitives for RC-Driver Go migration
//
// Counters, gauges, and histograms with Prometheus text exposition.
// Plain metrics are lock-free atomics so the control runner can record
// per-tick observations without a map lookup or a mutex; labeled
// families carry exactly one label key, which covers every series the
// drive exports (phase, axis, kind, reason, topic, type).
//
// Copyright (C) 2026  RC-Driver Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Metric is anything the registry can render.
type Metric interface {
	Name() string
	appendExpo(b []byte) []byte
}

// atomicFloat accumulates a float64 through CAS on its bit pattern.
type atomicFloat struct {
	bits atomic.Uint64
}

func (a *atomicFloat) Store(v float64) {
	a.bits.Store(math.Float64bits(v))
}

func (a *atomicFloat) Add(v float64) {
	for {
		old := a.bits.Load()
		upd := math.Float64bits(math.Float64frombits(old) + v)
		if a.bits.CompareAndSwap(old, upd) {
			return
		}
	}
}

func (a *atomicFloat) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

// Counter is a monotonically increasing value.
type Counter struct {
	name string
	help string
	v    atomic.Uint64
}

// NewCounter creates a counter.
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Name() string { return c.name }

// Inc adds one.
func (c *Counter) Inc() { c.v.Add(1) }

// Add adds n.
func (c *Counter) Add(n uint64) { c.v.Add(n) }

// Value returns the current count.
func (c *Counter) Value() uint64 { return c.v.Load() }

func (c *Counter) appendExpo(b []byte) []byte {
	b = expoHeader(b, c.name, c.help, "counter")
	b = append(b, c.name...)
	b = append(b, ' ')
	b = strconv.AppendUint(b, c.v.Load(), 10)
	return append(b, '\n')
}

// Gauge is a value that moves both ways.
type Gauge struct {
	name string
	help string
	v    atomicFloat
}

// NewGauge creates a gauge.
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Name() string { return g.name }

// Set stores the value.
func (g *Gauge) Set(v float64) { g.v.Store(v) }

// Value returns the current value.
func (g *Gauge) Value() float64 { return g.v.Load() }

func (g *Gauge) appendExpo(b []byte) []byte {
	b = expoHeader(b, g.name, g.help, "gauge")
	b = append(b, g.name...)
	b = append(b, ' ')
	b = appendFloat(b, g.v.Load())
	return append(b, '\n')
}

// Histogram buckets observations against a fixed set of upper bounds.
type Histogram struct {
	name    string
	help    string
	bounds  []float64
	buckets []atomic.Uint64
	count   atomic.Uint64
	sum     atomicFloat
}

// NewHistogram creates a histogram; bounds are sorted upper bucket
// edges (an implicit +Inf bucket catches the rest).
func NewHistogram(name, help string, bounds []float64) *Histogram {
	sorted := make([]float64, len(bounds))
	copy(sorted, bounds)
	sort.Float64s(sorted)
	return &Histogram{
		name:    name,
		help:    help,
		bounds:  sorted,
		buckets: make([]atomic.Uint64, len(sorted)),
	}
}

func (h *Histogram) Name() string { return h.name }

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	if i := sort.SearchFloat64s(h.bounds, v); i < len(h.bounds) {
		h.buckets[i].Add(1)
	}
	h.count.Add(1)
	h.sum.Add(v)
}

// Count returns the total number of observations.
func (h *Histogram) Count() uint64 { return h.count.Load() }

// Sum returns the running sum of observed values.
func (h *Histogram) Sum() float64 { return h.sum.Load() }

// Scrapes may see an observation land between the bucket and count
// loads; exposition tolerates that skew.
func (h *Histogram) appendExpo(b []byte) []byte {
	b = expoHeader(b, h.name, h.help, "histogram")
	var cum uint64
	for i, bound := range h.bounds {
		cum += h.buckets[i].Load()
		b = append(b, h.name...)
		b = append(b, `_bucket{le="`...)
		b = appendFloat(b, bound)
		b = append(b, `"} `...)
		b = strconv.AppendUint(b, cum, 10)
		b = append(b, '\n')
	}
	total := h.count.Load()
	b = append(b, h.name...)
	b = append(b, `_bucket{le="+Inf"} `...)
	b = strconv.AppendUint(b, total, 10)
	b = append(b, '\n')
	b = append(b, h.name...)
	b = append(b, "_sum "...)
	b = appendFloat(b, h.sum.Load())
	b = append(b, '\n')
	b = append(b, h.name...)
	b = append(b, "_count "...)
	b = strconv.AppendUint(b, total, 10)
	return append(b, '\n')
}

// CounterVec is a counter family split by one label.
type CounterVec struct {
	name  string
	help  string
	key   string
	mu    sync.RWMutex
	cells map[string]*Counter
}

// NewCounterVec creates a counter family keyed by the given label.
func NewCounterVec(name, help, key string) *CounterVec {
	return &CounterVec{name: name, help: help, key: key, cells: make(map[string]*Counter)}
}

func (v *CounterVec) Name() string { return v.name }

// With returns the counter for one label value, creating it on first
// use. The returned counter is stable and may be retained.
func (v *CounterVec) With(value string) *Counter {
	v.mu.RLock()
	c := v.cells[value]
	v.mu.RUnlock()
	if c != nil {
		return c
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if c = v.cells[value]; c == nil {
		c = &Counter{}
		v.cells[value] = c
	}
	return c
}

func (v *CounterVec) appendExpo(b []byte) []byte {
	b = expoHeader(b, v.name, v.help, "counter")
	v.mu.RLock()
	defer v.mu.RUnlock()
	values := make([]string, 0, len(v.cells))
	for value := range v.cells {
		values = append(values, value)
	}
	sort.Strings(values)
	for _, value := range values {
		b = appendSeries(b, v.name, v.key, value)
		b = strconv.AppendUint(b, v.cells[value].v.Load(), 10)
		b = append(b, '\n')
	}
	return b
}

// GaugeVec is a gauge family split by one label.
type GaugeVec struct {
	name  string
	help  string
	key   string
	mu    sync.RWMutex
	cells map[string]*Gauge
}

// NewGaugeVec creates a gauge family keyed by the given label.
func NewGaugeVec(name, help, key string) *GaugeVec {
	return &GaugeVec{name: name, help: help, key: key, cells: make(map[string]*Gauge)}
}

func (v *GaugeVec) Name() string { return v.name }

// With returns the gauge for one label value, creating it on first use.
func (v *GaugeVec) With(value string) *Gauge {
	v.mu.RLock()
	g := v.cells[value]
	v.mu.RUnlock()
	if g != nil {
		return g
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if g = v.cells[value]; g == nil {
		g = &Gauge{}
		v.cells[value] = g
	}
	return g
}

func (v *GaugeVec) appendExpo(b []byte) []byte {
	b = expoHeader(b, v.name, v.help, "gauge")
	v.mu.RLock()
	defer v.mu.RUnlock()
	values := make([]string, 0, len(v.cells))
	for value := range v.cells {
		values = append(values, value)
	}
	sort.Strings(values)
	for _, value := range values {
		b = appendSeries(b, v.name, v.key, value)
		b = appendFloat(b, v.cells[value].v.Load())
		b = append(b, '\n')
	}
	return b
}

// Registry holds the exported metrics of one process.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Metric
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Metric)}
}

// Register adds a metric; a second metric with the same name is an
// error.
func (r *Registry) Register(m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[m.Name()]; dup {
		return fmt.Errorf("metrics: %q already registered", m.Name())
	}
	r.byName[m.Name()] = m
	return nil
}

// MustRegister adds metrics and panics on a name collision.
func (r *Registry) MustRegister(ms ...Metric) {
	for _, m := range ms {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Get returns a registered metric, or nil.
func (r *Registry) Get(name string) Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Gather renders every registered metric in Prometheus text format,
// ordered by metric name.
func (r *Registry) Gather() string {
	r.mu.RLock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	b := make([]byte, 0, 4096)
	for _, n := range names {
		b = r.byName[n].appendExpo(b)
	}
	r.mu.RUnlock()
	return string(b)
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func expoHeader(b []byte, name, help, kind string) []byte {
	b = append(b, "# HELP "...)
	b = append(b, name...)
	b = append(b, ' ')
	b = append(b, help...)
	b = append(b, "\n# TYPE "...)
	b = append(b, name...)
	b = append(b, ' ')
	b = append(b, kind...)
	return append(b, '\n')
}

func appendSeries(b []byte, name, key, value string) []byte {
	b = append(b, name...)
	b = append(b, '{')
	b = append(b, key...)
	b = append(b, `="`...)
	b = append(b, labelEscaper.Replace(value)...)
	return append(b, `"} `...)
}

func appendFloat(b []byte, v float64) []byte {
	return strconv.AppendFloat(b, v, 'g', -1, 64)
}

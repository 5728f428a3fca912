// Package promstats exports ertrace pool counters as Prometheus metrics.
//
// The collector reads Stats at scrape time, so the pools themselves stay free
// of any metrics dependency and pay nothing between scrapes.
package promstats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/xgx-io/ertrace"
)

// StatsSource is anything that can report pool statistics; every
// ertrace.Pool qualifies.
type StatsSource interface {
	Stats() ertrace.Stats
}

// Collector is a prometheus.Collector over one pool.
type Collector struct {
	src StatsSource

	acquired  *prometheus.Desc
	released  *prometheus.Desc
	allocated *prometheus.Desc
	recycled  *prometheus.Desc
	wraps     *prometheus.Desc
	live      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for src. name distinguishes pools in the
// "pool" label; strategy is reported in the "strategy" label.
func NewCollector(src StatsSource, name string) *Collector {
	constLabels := prometheus.Labels{"pool": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName("ertrace", "nodes", metric),
			help,
			[]string{"strategy"},
			constLabels,
		)
	}
	return &Collector{
		src:       src,
		acquired:  desc("acquired_total", "Trace nodes handed out by Acquire."),
		released:  desc("released_total", "Trace nodes handed back by Release."),
		allocated: desc("allocated", "Node slots created (free list) or ring capacity (arena)."),
		recycled:  desc("recycled_total", "Acquisitions served from the free list."),
		wraps:     desc("arena_wraps_total", "Completed trips around the arena ring."),
		live:      desc("live", "Trace nodes currently owned by traces."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.released
	ch <- c.allocated
	ch <- c.recycled
	ch <- c.wraps
	ch <- c.live
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	strategy := s.Strategy.String()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.CounterValue, float64(s.Acquired), strategy)
	ch <- prometheus.MustNewConstMetric(c.released, prometheus.CounterValue, float64(s.Released), strategy)
	ch <- prometheus.MustNewConstMetric(c.allocated, prometheus.GaugeValue, float64(s.Allocated), strategy)
	ch <- prometheus.MustNewConstMetric(c.recycled, prometheus.CounterValue, float64(s.Recycled), strategy)
	ch <- prometheus.MustNewConstMetric(c.wraps, prometheus.CounterValue, float64(s.Wraps), strategy)
	ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(s.Live()), strategy)
}

// Register registers a collector for src with reg.
func Register(reg prometheus.Registerer, src StatsSource, name string) (*Collector, error) {
	c := NewCollector(src, name)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}

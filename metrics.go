package lmdbm

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Keys for store gauges. Ticker counters are named after their TickerType,
// e.g. lmdbm.map.growths is exported as lmdbm_map_growths_total.
const (
	MapSizeBytesKey = "lmdbm_map_size_bytes"
	EntriesKey      = "lmdbm_entries"
)

// Collector exports the statistics of a Store as Prometheus metrics: every
// ticker as a counter, plus the current map size and entry count as
// gauges. All metrics carry a constant "path" label.
type Collector struct {
	s       *Store
	tickers [TickerEnumMax]*prometheus.Desc
	mapSize *prometheus.Desc
	entries *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a Collector over s. Register it with a
// prometheus.Registerer.
func NewCollector(s *Store) *Collector {
	var labels = prometheus.Labels{"path": s.path}
	var c = &Collector{
		s: s,
		mapSize: prometheus.NewDesc(MapSizeBytesKey,
			"Current size of the LMDB map reservation.", nil, labels),
		entries: prometheus.NewDesc(EntriesKey,
			"Number of entries in the store.", nil, labels),
	}
	for t := range TickerEnumMax {
		c.tickers[t] = prometheus.NewDesc(tickerMetricName(t),
			"Cumulative count of "+t.String()+".", nil, labels)
	}
	return c
}

func tickerMetricName(t TickerType) string {
	return strings.ReplaceAll(t.String(), ".", "_") + "_total"
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.tickers {
		ch <- d
	}
	ch <- c.mapSize
	ch <- c.entries
}

// Collect implements prometheus.Collector. Gauges are omitted once the
// store is closed.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var stats = c.s.Statistics()
	for t, d := range c.tickers {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue,
			float64(stats.GetTickerCount(TickerType(t))))
	}
	if size, err := c.s.MapSize(); err == nil {
		ch <- prometheus.MustNewConstMetric(c.mapSize, prometheus.GaugeValue, float64(size))
	}
	if n, err := c.s.Len(); err == nil {
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(n))
	}
}

package registry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SDP-Group-CIE-04/ridlink/link"
)

const namespace = "ridlink"

type counterDesc struct {
	desc  *prometheus.Desc
	value func(m *link.LinkMetrics) uint64
}

// collector exports the metrics of every registered link.
type collector struct {
	reg      *Registry
	counters []counterDesc
	up       *prometheus.Desc
	busy     *prometheus.Desc
}

func newCounter(name, help string, value func(m *link.LinkMetrics) uint64) counterDesc {
	return counterDesc{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "link", name), help, []string{"port"}, nil),
		value: value,
	}
}

// Collector returns a Prometheus collector for the links of r.
// Links added after registration are picked up on the next scrape.
func (r *Registry) Collector() prometheus.Collector {
	return &collector{
		reg: r,
		counters: []counterDesc{
			newCounter("bytes_sent_total", "Number of bytes written to the module.",
				func(m *link.LinkMetrics) uint64 { return m.BytesSent.Load() }),
			newCounter("bytes_received_total", "Number of bytes read from the module.",
				func(m *link.LinkMetrics) uint64 { return m.BytesRecv.Load() }),
			newCounter("commands_total", "Number of commands submitted.",
				func(m *link.LinkMetrics) uint64 { return m.CommandCount.Load() }),
			newCounter("command_errors_total", "Number of commands that ended with an error.",
				func(m *link.LinkMetrics) uint64 { return m.CommandErrCount.Load() }),
			newCounter("command_timeouts_total", "Number of commands that timed out.",
				func(m *link.LinkMetrics) uint64 { return m.CommandTimeoutCount.Load() }),
			newCounter("opens_total", "Number of successful opens.",
				func(m *link.LinkMetrics) uint64 { return m.OpenCount.Load() }),
			newCounter("failures_total", "Number of transport failures that closed the link.",
				func(m *link.LinkMetrics) uint64 { return m.LinkFailureCount.Load() }),
		},
		up: prometheus.NewDesc(prometheus.BuildFQName(namespace, "link", "up"),
			"Whether the link is open.", []string{"port"}, nil),
		busy: prometheus.NewDesc(prometheus.BuildFQName(namespace, "link", "busy"),
			"Whether a command is in flight.", []string{"port"}, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	ch <- c.up
	ch <- c.busy
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	c.reg.Range(func(portName string, l *link.Link) bool {
		m := l.Metrics()
		for _, cd := range c.counters {
			ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(cd.value(m)), portName)
		}
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, boolValue(l.State() == link.StateOpen), portName)
		ch <- prometheus.MustNewConstMetric(c.busy, prometheus.GaugeValue, boolValue(l.Busy()), portName)

		return true
	})
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

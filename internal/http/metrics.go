package httpx

import (
	"github.com/prometheus/client_golang/prometheus"

	"pooldemo/internal/db"
)

const metricsNamespace = "pooldemo_db_pool"

// PoolCollector exports pool statistics, read fresh on every scrape.
type PoolCollector struct {
	metrics func() (db.PoolMetrics, bool)

	maxConns          *prometheus.Desc
	acquiredConns     *prometheus.Desc
	idleConns         *prometheus.Desc
	totalConns        *prometheus.Desc
	constructingConns *prometheus.Desc
	acquireCount      *prometheus.Desc
	emptyAcquireCount *prometheus.Desc
	canceledAcquire   *prometheus.Desc
	newConnsCount     *prometheus.Desc
	idleDestroyCount  *prometheus.Desc
	acquireSeconds    *prometheus.Desc
}

func NewPoolCollector(metrics func() (db.PoolMetrics, bool)) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, nil, nil)
	}
	return &PoolCollector{
		metrics:           metrics,
		maxConns:          desc("max_conns", "Maximum size of the pool."),
		acquiredConns:     desc("acquired_conns", "Connections currently checked out."),
		idleConns:         desc("idle_conns", "Idle connections in the pool."),
		totalConns:        desc("total_conns", "Connections currently allocated."),
		constructingConns: desc("constructing_conns", "Connections being opened."),
		acquireCount:      desc("acquire_total", "Successful acquires."),
		emptyAcquireCount: desc("empty_acquire_total", "Acquires that had to wait for a connection."),
		canceledAcquire:   desc("canceled_acquire_total", "Acquires canceled by their context."),
		newConnsCount:     desc("new_conns_total", "Connections opened."),
		idleDestroyCount:  desc("idle_destroy_total", "Connections closed for exceeding the idle time."),
		acquireSeconds:    desc("acquire_duration_seconds_total", "Time spent acquiring connections."),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.maxConns
	ch <- c.acquiredConns
	ch <- c.idleConns
	ch <- c.totalConns
	ch <- c.constructingConns
	ch <- c.acquireCount
	ch <- c.emptyAcquireCount
	ch <- c.canceledAcquire
	ch <- c.newConnsCount
	ch <- c.idleDestroyCount
	ch <- c.acquireSeconds
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	m, ok := c.metrics()
	if !ok {
		return
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}
	gauge(c.maxConns, float64(m.MaxSize))
	gauge(c.acquiredConns, float64(m.AcquiredSize))
	gauge(c.idleConns, float64(m.IdleSize))
	gauge(c.totalConns, float64(m.AllocatedSize))
	gauge(c.constructingConns, float64(m.ConstructingSize))
	counter(c.acquireCount, float64(m.AcquireCount))
	counter(c.emptyAcquireCount, float64(m.EmptyAcquireCount))
	counter(c.canceledAcquire, float64(m.CanceledAcquireCount))
	counter(c.newConnsCount, float64(m.NewConnsCount))
	counter(c.idleDestroyCount, float64(m.MaxIdleDestroyCount))
	counter(c.acquireSeconds, m.AcquireDuration.Seconds())
}

package ssache

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of Prometheus collectors a Server reports. It is
// constructed once per process and registered against a private registry
// so repeated test construction never collides with the global default.
type Metrics struct {
	registry *prometheus.Registry

	commandsTotal       *prometheus.CounterVec
	keyspaceSize        prometheus.GaugeFunc
	saveDuration        prometheus.Histogram
	replicationDuration *prometheus.HistogramVec
	replicationErrors   *prometheus.CounterVec
}

// NewMetrics registers the server's collectors, wiring keyspaceSize to ks so
// it always reports the live count without a background updater.
func NewMetrics(ks *Keyspace) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ssache_commands_total",
			Help: "Commands processed, by verb.",
		}, []string{"verb"}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ssache_save_duration_seconds",
			Help:    "Time spent writing a snapshot file.",
			Buckets: prometheus.DefBuckets,
		}),
		replicationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ssache_replication_duration_seconds",
			Help:    "Time spent pushing state to a replica, by replica address.",
			Buckets: prometheus.DefBuckets,
		}, []string{"replica"}),
		replicationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ssache_replication_errors_total",
			Help: "Failed replication pushes, by replica address.",
		}, []string{"replica"}),
	}
	m.keyspaceSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ssache_keyspace_size",
		Help: "Number of live keys currently stored.",
	}, func() float64 { return float64(ks.Len()) })

	reg.MustRegister(m.commandsTotal, m.saveDuration, m.replicationDuration, m.replicationErrors, m.keyspaceSize)
	return m
}

// Handler returns the HTTP handler to mount on the metrics port.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

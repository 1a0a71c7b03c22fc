package metric

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values.
const (
	Ok   = "ok"
	Fail = "fail"

	SourceCache   = "cache"
	SourceNetwork = "network"
)

// Lifecycle state gauge values.
const (
	StateUnloaded = 0
	StateLoading  = 1
	StateReady    = 2
)

const namespace = "snapql"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Snapshot metrics
	SnapshotLoads       *prometheus.CounterVec
	SnapshotLoadSeconds prometheus.Histogram
	SnapshotFetches     *prometheus.CounterVec
	SnapshotBytes       prometheus.Gauge
	LifecycleState      prometheus.Gauge

	// Query metrics
	Queries        *prometheus.CounterVec
	QueryDuration  prometheus.Histogram
	QueryRowsTotal prometheus.Counter

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RateLimited     prometheus.Counter

	// Notification metrics
	NotifyClients  prometheus.Gauge
	Notifications  *prometheus.CounterVec
	ProtocolErrors prometheus.Counter
}

// NewRegistry creates a registry with every snapql collector registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		SnapshotLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "loads_total",
			Help:      "Snapshot load attempts by outcome.",
		}, []string{"status"}),
		SnapshotLoadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "load_duration_seconds",
			Help:      "Time to fetch and open a snapshot.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		SnapshotFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "fetches_total",
			Help:      "Snapshot resource fetches by source and outcome.",
		}, []string{"source", "status"}),
		SnapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "size_bytes",
			Help:      "Size of the last fetched snapshot payload.",
		}),
		LifecycleState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "state",
			Help:      "Database load state: 0 unloaded, 1 loading, 2 ready.",
		}),

		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "SQL requests by response status.",
		}, []string{"code"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "SQL request execution time, including any snapshot load.",
			Buckets:   prometheus.DefBuckets,
		}),
		QueryRowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "rows_total",
			Help:      "Rows returned by successful SQL requests.",
		}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Intercepted HTTP requests by branch and status.",
		}, []string{"branch", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Intercepted HTTP request latency by branch.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"branch"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),

		NotifyClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "clients",
			Help:      "Connected notification clients.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "messages_total",
			Help:      "Messages posted to pages by type and delivery outcome.",
		}, []string{"type", "status"}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "protocol_errors_total",
			Help:      "Inbound page messages dropped as malformed.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.SnapshotLoads,
		r.SnapshotLoadSeconds,
		r.SnapshotFetches,
		r.SnapshotBytes,
		r.LifecycleState,
		r.Queries,
		r.QueryDuration,
		r.QueryRowsTotal,
		r.RequestsTotal,
		r.RequestDuration,
		r.RateLimited,
		r.NotifyClients,
		r.Notifications,
		r.ProtocolErrors,
	)

	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Registerer exposes the underlying registry for extra collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for reading.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler serving the registry in Prometheus format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveSnapshotLoad records a finished load attempt.
func (r *Registry) ObserveSnapshotLoad(err error, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.SnapshotLoads.WithLabelValues(status(err)).Inc()
	r.SnapshotLoadSeconds.Observe(elapsed.Seconds())
}

// ObserveSnapshotFetch records a fetch from source with its payload size.
func (r *Registry) ObserveSnapshotFetch(source string, size int, err error) {
	if r == nil {
		return
	}
	r.SnapshotFetches.WithLabelValues(source, status(err)).Inc()
	if err == nil {
		r.SnapshotBytes.Set(float64(size))
	}
}

// SetLifecycleState records the database load state.
func (r *Registry) SetLifecycleState(state int) {
	if r == nil {
		return
	}
	r.LifecycleState.Set(float64(state))
}

// ObserveQuery records a finished SQL request.
func (r *Registry) ObserveQuery(code, rows int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.Queries.WithLabelValues(strconv.Itoa(code)).Inc()
	r.QueryDuration.Observe(elapsed.Seconds())
	r.QueryRowsTotal.Add(float64(rows))
}

// ObserveRequest records a finished intercepted request.
func (r *Registry) ObserveRequest(branch string, code int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(branch, strconv.Itoa(code)).Inc()
	r.RequestDuration.WithLabelValues(branch).Observe(elapsed.Seconds())
}

// IncRateLimited counts a rejected request.
func (r *Registry) IncRateLimited() {
	if r == nil {
		return
	}
	r.RateLimited.Inc()
}

// SetNotifyClients records the number of connected pages.
func (r *Registry) SetNotifyClients(n int) {
	if r == nil {
		return
	}
	r.NotifyClients.Set(float64(n))
}

// ObserveNotification records a message posted to a page.
func (r *Registry) ObserveNotification(msgType string, err error) {
	if r == nil {
		return
	}
	r.Notifications.WithLabelValues(msgType, status(err)).Inc()
}

// IncProtocolErrors counts a dropped inbound message.
func (r *Registry) IncProtocolErrors() {
	if r == nil {
		return
	}
	r.ProtocolErrors.Inc()
}

func status(err error) string {
	if err != nil {
		return Fail
	}
	return Ok
}

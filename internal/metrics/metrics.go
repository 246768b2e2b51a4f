// Package metrics is the observability layer (C14, ambient): request and
// domain counters exposed at GET /metrics in Prometheus exposition format
// using prometheus/client_golang. HTTP counters are genuine
// prometheus.CounterVec/HistogramVec instances; the CAN/storage domain
// gauges are pulled live from their owning subsystems at scrape time via a
// custom Collector, rather than mirrored into a second set of atomics.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/canlogger/canlogger/internal/reclaim"
	"github.com/canlogger/canlogger/internal/writer"
)

const namespace = "canlogger"

// Registry owns this process's Prometheus registry: HTTP request counters
// recorded by Middleware, and a pull collector reading the live subsystem
// handles it was constructed with.
type Registry struct {
	reg *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New builds a Registry that scrapes units (per-bus ingest/file-manager
// counters), wr's sampled throughput, reclaimer's deletion count, and
// activeDownloads (the download limiter's current slot usage) on every
// /metrics request. Any of reclaimer/activeDownloads may be nil.
func New(units []writer.Unit, wr *writer.Writer, reclaimer *reclaim.Reclaimer, activeDownloads func() int) *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests served by the control API, by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.reg.MustRegister(r.requestsTotal, r.requestDuration)
	r.reg.MustRegister(&pullCollector{units: units, wr: wr, reclaimer: reclaimer, activeDownloads: activeDownloads})
	r.reg.MustRegister(prometheus.NewGoCollector())
	r.reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return r
}

// Handler returns the promhttp handler serving this registry's exposition.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Middleware records one request-count and one duration observation per
// request, labeled by method/route/status. Routes are collapsed to their
// first two path segments (e.g. "/api/files") so a per-file download or
// per-id delete never explodes into one label series per catalog entry.
func (r *Registry) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, req)

			route := routeLabel(req.URL.Path)
			r.requestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(rec.status)).Inc()
			r.requestDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// routeLabel collapses a request path to its first two segments, e.g.
// "/api/files/log_123_bus1_foo.sav/download" -> "/api/files".
func routeLabel(path string) string {
	segs := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	switch {
	case len(segs) >= 2:
		return "/" + segs[0] + "/" + segs[1]
	case len(segs) == 1 && segs[0] != "":
		return "/" + segs[0]
	default:
		return "/"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// pullCollector reads live subsystem counters at Collect time rather than
// mirroring them into Prometheus types on every change — the per-bus block
// buffer and log-file manager already hold the canonical numbers behind
// their own spinlock-equivalent mutexes, so there is nothing to gain from a
// second set of atomics.
type pullCollector struct {
	units           []writer.Unit
	wr              *writer.Writer
	reclaimer       *reclaim.Reclaimer
	activeDownloads func() int
}

var (
	dropsDesc = prometheus.NewDesc(namespace+"_bus_drops_total", "Frames dropped for lack of a free ingest block, per bus.", []string{"bus"}, nil)
	hwmDesc   = prometheus.NewDesc(namespace+"_bus_highwater_bytes", "Highest observed sum of block lengths, per bus.", []string{"bus"}, nil)
	writtenDesc = prometheus.NewDesc(namespace+"_bus_bytes_written_total", "Bytes written to the active log file, per bus.", []string{"bus"}, nil)
	writeFailDesc = prometheus.NewDesc(namespace+"_bus_write_failures_total", "Write failures recovered by reopen, per bus.", []string{"bus"}, nil)
	throughputDesc = prometheus.NewDesc(namespace+"_writer_bytes_per_second", "Most recently sampled writer throughput across all buses.", nil, nil)
	reclaimDesc    = prometheus.NewDesc(namespace+"_reclaim_deletions_total", "Cumulative log files removed by storage reclamation.", nil, nil)
	downloadsDesc  = prometheus.NewDesc(namespace+"_active_downloads", "Log file downloads currently in flight.", nil, nil)
)

func (c *pullCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- dropsDesc
	ch <- hwmDesc
	ch <- writtenDesc
	ch <- writeFailDesc
	ch <- throughputDesc
	ch <- reclaimDesc
	ch <- downloadsDesc
}

func (c *pullCollector) Collect(ch chan<- prometheus.Metric) {
	for _, u := range c.units {
		bus := strconv.Itoa(int(u.BusID) + 1)
		ch <- prometheus.MustNewConstMetric(dropsDesc, prometheus.CounterValue, float64(u.Buffer.Drops()), bus)
		ch <- prometheus.MustNewConstMetric(hwmDesc, prometheus.GaugeValue, float64(u.Buffer.HighWaterBytes()), bus)

		stats := u.Manager.Stats()
		ch <- prometheus.MustNewConstMetric(writtenDesc, prometheus.CounterValue, float64(stats.BytesWritten), bus)
		ch <- prometheus.MustNewConstMetric(writeFailDesc, prometheus.CounterValue, float64(stats.WriteFailures), bus)
	}

	if c.wr != nil {
		ch <- prometheus.MustNewConstMetric(throughputDesc, prometheus.GaugeValue, float64(c.wr.BytesPerSec()))
	}
	if c.reclaimer != nil {
		ch <- prometheus.MustNewConstMetric(reclaimDesc, prometheus.CounterValue, float64(c.reclaimer.Deletions()))
	}
	if c.activeDownloads != nil {
		ch <- prometheus.MustNewConstMetric(downloadsDesc, prometheus.GaugeValue, float64(c.activeDownloads()))
	}
}

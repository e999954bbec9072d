// package metrics holds the Prometheus collectors shared by the importer and the HTTP server.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "royalty"

// Collectors groups every metric the service exports.
type Collectors struct {
	RowsProcessed  *prometheus.CounterVec
	Uploads        *prometheus.CounterVec
	ImportDuration prometheus.Histogram

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

var collectors = sync.OnceValue(func() *Collectors {
	return &Collectors{
		RowsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Report rows processed, by result (imported, duplicate, error).",
		}, []string{"result"}),
		Uploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "uploads_total",
			Help:      "Finished uploads, by final status.",
		}, []string{"status"}),
		ImportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Time spent importing one report.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency, by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
})

// Get returns the process wide collectors, registering them on first use.
func Get() *Collectors {
	return collectors()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	Get()
	return promhttp.Handler()
}

// Import result labels.
const (
	ResultImported  = "imported"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
)

// ObserveRows adds row outcomes to the rows counter.
func ObserveRows(imported, duplicates, errors int) {
	c := Get()
	c.RowsProcessed.WithLabelValues(ResultImported).Add(float64(imported))
	c.RowsProcessed.WithLabelValues(ResultDuplicate).Add(float64(duplicates))
	c.RowsProcessed.WithLabelValues(ResultError).Add(float64(errors))
}

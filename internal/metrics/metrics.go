// Package metrics exposes Prometheus counters and histograms for HTTP traffic and invoice events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/invoicer/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names.
const (
	MetricRequestsTotal          = "http_requests_total"
	MetricRequestDurationSeconds = "http_request_duration_seconds"
	MetricInvoicesCreatedTotal   = "invoices_created_total"
	MetricStatusChangesTotal     = "invoice_status_changes_total"
	MetricOverduePromotionsTotal = "invoice_overdue_promotions_total"
)

// Collector owns a private registry so tests and multiple apps never collide.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	invoicesCreated   prometheus.Counter
	statusChanges     *prometheus.CounterVec
	overduePromotions prometheus.Counter
}

// New creates a Collector with its metrics registered. Go runtime and process
// collectors are included when withRuntime is true.
func New(withRuntime bool) *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricRequestsTotal,
			Help: "Total number of HTTP requests served.",
		},
		[]string{"method", "route", "status"},
	)
	c.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricRequestDurationSeconds,
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	c.invoicesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricInvoicesCreatedTotal,
		Help: "Total number of invoices created.",
	})
	c.statusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricStatusChangesTotal,
			Help: "Total number of explicit invoice status changes, by target status.",
		},
		[]string{"status"},
	)
	c.overduePromotions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricOverduePromotionsTotal,
		Help: "Total number of invoices promoted from Sent to Overdue on read.",
	})

	c.registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.invoicesCreated,
		c.statusChanges,
		c.overduePromotions,
	)
	if withRuntime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveRequest records one served HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	c.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (c *Collector) InvoiceCreated() { c.invoicesCreated.Inc() }

func (c *Collector) StatusChanged(status models.InvoiceStatus) {
	c.statusChanges.WithLabelValues(status.String()).Inc()
}

func (c *Collector) OverduePromoted() { c.overduePromotions.Inc() }

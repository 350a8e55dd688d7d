package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const promNamespace = "ticketdesk"

// Prom holds the HTTP and DB metric families. Worker-side counters live in
// JobMetrics; the worker process exposes them over its stats endpoint.
type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec

	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed",
		}, []string{"method", "route", "status"}),

		RequestsDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distributions.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"method", "route", "status"}),

		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: promNamespace,
			Name:      "http_in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}, []string{"method", "route"}),

		DbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "DB operation latency (logical op, not raw SQL)",
			Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
		}, []string{"op", "status"}),

		DbErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Subsystem: "db",
			Name:      "errors_total",
			Help:      "DB errors by logical op and class.",
		}, []string{"op", "class"}),
	}

	reg.MustRegister(
		p.RequestsTotal,
		p.RequestsDuration,
		p.InFlight,
		p.DbQueryDuration,
		p.DbErrorsTotal,
	)

	return p
}

// GinHandleMiddleware records per-route request counts, latency, and
// in-flight gauge. Labels use the route template so cardinality stays
// bounded; unmatched paths collapse into a single label.
func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		inFlight := p.InFlight.WithLabelValues(method, route)
		inFlight.Inc()

		start := time.Now()
		c.Next()
		elapsed := time.Since(start).Seconds()

		inFlight.Dec()

		status := strconv.Itoa(c.Writer.Status())
		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(elapsed)
	}
}

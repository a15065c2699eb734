// Package metrics registers the Prometheus collectors exported on /metrics:
// HTTP request counters and latency, plus QR lifecycle counters.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addwise_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "addwise_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// CodesIssued counts QR codes created by bulk issuance.
	CodesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "addwise_qrcodes_issued_total",
		Help: "QR codes created by bulk issuance.",
	})

	// GeneratorCollisions counts redraws caused by an already used value.
	GeneratorCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "addwise_qrcode_generator_collisions_total",
		Help: "Generated QR values that were already taken and had to be redrawn.",
	})

	// Assignments counts assignment attempts by outcome kind.
	Assignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addwise_qrcode_assignments_total",
			Help: "QR code assignment attempts by result.",
		},
		[]string{"result"},
	)

	// LocationPushes counts accepted device location readings.
	LocationPushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "addwise_qrcode_location_pushes_total",
		Help: "Accepted location readings.",
	})
)

// Middleware records request count and latency.  The route label is the
// registered path pattern so ids do not blow up cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)
			httpRequestsTotal.WithLabelValues(method, route, status).Inc()
			httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

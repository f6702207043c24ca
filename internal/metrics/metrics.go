// Package metrics exposes Prometheus collectors for HTTP traffic and the
// business events the agency cares about.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "route"},
	)

	InvoicesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoices_created_total",
		Help: "Invoices created",
	})

	PaymentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Payments recorded against invoices",
	})

	ClientsInvited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clients_invited_total",
			Help: "Client invitations by result",
		},
		[]string{"result"}, // ok, exists, provider_error, rolled_back
	)

	CallRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_requests_total",
		Help: "Call requests submitted from the public site",
	})
)

func ObserveHTTP(method, route, status string, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

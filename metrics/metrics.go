package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Requests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Time taken to serve HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	OrdersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Number of pending orders handed to a payment provider",
		},
		[]string{"provider"},
	)

	ProviderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_provider_failures_total",
			Help: "Number of failed calls to a payment provider",
		},
		[]string{"provider"},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_notifications_total",
			Help: "Number of payment notifications by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	EnrollmentsGranted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enrollments_granted_total",
			Help: "Number of enrollments created by confirmed payments",
		},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Number of requests rejected by a rate limiter",
		},
		[]string{"limiter"},
	)

	OrdersExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_expired_total",
			Help: "Number of pending orders failed by the expiry sweep",
		},
	)
)

var once sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			Requests,
			OrdersCreated,
			ProviderFailures,
			Notifications,
			EnrollmentsGranted,
			RateLimited,
			OrdersExpired,
		)
	})
}

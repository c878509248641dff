package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchingRounds = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "isuride", Name: "matching_rounds_total", Help: "Matching rounds by outcome"},
		[]string{"outcome"}, // matched | no_ride | no_chair | exhausted | skipped | error
	)
	MatchingDraws = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "isuride",
		Name:      "matching_draws",
		Help:      "Chair draws used per matching round",
		Buckets:   prometheus.LinearBuckets(1, 1, 10),
	})

	PaymentAttempts = promauto.NewCounter(prometheus.CounterOpts{Namespace: "isuride", Name: "payment_attempts_total", Help: "Payment settlement attempts, retries included"})
	PaymentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "isuride", Name: "payment_settlements_total", Help: "Settlement results"},
		[]string{"outcome"}, // settled | failed
	)

	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "isuride", Name: "notifications_delivered_total", Help: "Status events marked delivered per channel"},
		[]string{"channel", "status"},
	)

	RideStatusRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "isuride", Name: "ride_status_recorded_total", Help: "Ride status events recorded"},
		[]string{"status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "isuride", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "isuride",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

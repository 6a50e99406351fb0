package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// Checks counts availability-check outcomes: found, none, failed, skipped.
	Checks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_checks_total", Help: "Availability checks by outcome."},
		[]string{"outcome"},
	)
	// CheckDuration records availability-check durations in seconds.
	CheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "route_check_duration_seconds", Help: "Availability check duration in seconds.", Buckets: prometheus.DefBuckets},
	)
	// RoutesExpired counts routes transitioned to EXPIRED by the sweeper.
	RoutesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "routes_expired_total", Help: "Routes expired by the sweeper."},
	)
	// Notifications counts notification deliveries by status: enqueued, sent, retried, dropped.
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "notifications_total", Help: "Notification deliveries by status."},
		[]string{"status"},
	)
)

// RegisterDefault registers collectors on the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(Checks)
		Registry.MustRegister(CheckDuration)
		Registry.MustRegister(RoutesExpired)
		Registry.MustRegister(Notifications)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// CacheLookups counts cache-aside lookups by result (hit, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_cache_lookups_total",
		Help: "Cache-aside lookups by result",
	}, []string{"result"})

	// ImageCleanupFailures counts best-effort image removals that failed.
	ImageCleanupFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_image_cleanup_failures_total",
		Help: "Image removals that failed after a successful record mutation",
	}, []string{"operation"})

	// SessionEvents counts session lifecycle events (login, logout, login_failed).
	SessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_session_events_total",
		Help: "Session lifecycle events",
	}, []string{"event"})
)

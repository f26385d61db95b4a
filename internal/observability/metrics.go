package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pos_terminal", Name: "api_calls_total", Help: "Remote commerce API calls by operation and outcome"},
		[]string{"operation", "outcome"},
	)
	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pos_terminal",
			Name:      "api_call_duration_seconds",
			Help:      "Remote commerce API call latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	TriggerSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pos_terminal", Name: "trigger_sessions_total", Help: "Trigger activations by terminal state"},
		[]string{"state"},
	)
	DetectionsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "pos_terminal", Name: "detections_total", Help: "Proximity detections received"})
	ReadersConnected  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "pos_terminal", Name: "readers_connected", Help: "NFC reader bridges currently connected"})
	ShellCacheHits    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "pos_terminal", Name: "shell_cache_hits_total", Help: "Shell asset requests served from cache"})
	ShellCacheMisses  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "pos_terminal", Name: "shell_cache_misses_total", Help: "Shell asset requests fetched from origin"})
	FeedPublishErrors = promauto.NewCounter(prometheus.CounterOpts{Namespace: "pos_terminal", Name: "feed_publish_errors_total", Help: "Sale event publish failures"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pos_terminal", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pos_terminal",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

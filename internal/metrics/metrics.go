package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gateway",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "resolution_cache_hits_total",
		Help:      "Total resolution cache hits.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "resolution_cache_misses_total",
		Help:      "Total resolution cache misses.",
	})

	CacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gateway",
		Name:      "resolution_cache_entries",
		Help:      "Current number of resolution cache entries.",
	})

	EpisodeResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "episode_resolutions_total",
		Help:      "Episode resolution outcomes by status.",
	}, []string{"status"})

	EpisodeBatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gateway",
		Name:      "episode_batch_duration_seconds",
		Help:      "Duration of concurrent episode resolution batches.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
	})

	ActiveProxySessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gateway",
		Name:      "active_proxy_sessions",
		Help:      "Number of byte-proxy streams currently in flight.",
	})

	ActiveTranscodeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gateway",
		Name:      "active_transcode_sessions",
		Help:      "Number of transcoder processes currently running.",
	})

	TranscodeStartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "transcode_starts_total",
		Help:      "Total number of transcoder processes started.",
	})

	TranscodeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "transcode_failures_total",
		Help:      "Total number of transcoder processes that failed before output.",
	})

	ProxyBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "proxy_bytes_total",
		Help:      "Total bytes relayed by the streaming proxy.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheEntries,
		EpisodeResolutionsTotal,
		EpisodeBatchDuration,
		ActiveProxySessions,
		ActiveTranscodeSessions,
		TranscodeStartsTotal,
		TranscodeFailuresTotal,
		ProxyBytesTotal,
	)
}

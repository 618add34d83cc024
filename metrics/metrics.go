package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signage_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signage_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "signage_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Playlist table metrics
var (
	PlaylistWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signage_playlist_writes_total",
			Help: "Total number of playlist table writes",
		},
		[]string{"status"}, // "ok", "error"
	)

	PlaylistWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signage_playlist_write_duration_seconds",
			Help:    "Time spent in a locked load-modify-save cycle",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	PurgedEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signage_purged_entries_total",
			Help: "Total number of playlist entries removed because their asset was deleted",
		},
	)
)

// Asset metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signage_uploads_total",
			Help: "Total number of upload attempts",
		},
		[]string{"result"}, // "ok", "too_large", "unsupported", "error"
	)

	UploadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signage_uploaded_bytes_total",
			Help: "Total number of bytes stored by accepted uploads",
		},
	)

	AssetDeletesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signage_asset_deletes_total",
			Help: "Total number of asset delete requests",
		},
	)
)

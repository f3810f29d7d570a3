package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventlens",
		Name:      "photos_processed_total",
		Help:      "Photos processed by the upload pipeline, by outcome and failing stage",
	}, []string{"outcome", "stage"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eventlens",
		Name:      "faces_detected_total",
		Help:      "Total number of faces returned by the recognition service",
	})

	FacesMatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eventlens",
		Name:      "faces_matched_total",
		Help:      "Faces associated with an attendee of the photo's event",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventlens",
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Duration of per-photo pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"stage"})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "eventlens",
		Name:      "batch_duration_seconds",
		Help:      "Duration of photo batch uploads",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventlens",
		Name:      "notifications_total",
		Help:      "Notifications by result (sent, failed, dropped)",
	}, []string{"result"})

	NotifyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventlens",
		Name:      "notify_queue_depth",
		Help:      "Number of notifications waiting for a dispatcher worker",
	})

	StreamPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventlens",
		Name:      "notifications_stream_pending",
		Help:      "Notifications waiting in the JetStream stream",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventlens",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventlens",
		Name:      "ws_connections",
		Help:      "Number of active upload progress WebSocket connections",
	})
)

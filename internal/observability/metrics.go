package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoid",
		Name:      "photos_ingested_total",
		Help:      "Total number of ingest calls by outcome",
	}, []string{"status"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photoid",
		Name:      "faces_detected_total",
		Help:      "Total number of faces that passed the confidence floor",
	})

	FacesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoid",
		Name:      "faces_resolved_total",
		Help:      "Total number of faces assigned to a person",
	}, []string{"outcome"}) // matched | new_person

	PersonsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photoid",
		Name:      "persons_created_total",
		Help:      "Total number of new person identities created",
	})

	ResolveJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoid",
		Name:      "resolve_jobs_total",
		Help:      "Total number of resolution jobs by outcome",
	}, []string{"outcome"}) // ok | skipped | error

	ResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photoid",
		Name:      "resolve_duration_seconds",
		Help:      "Duration of resolution job stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"stage"}) // fetch | extract | detect | embed | assign

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "photoid",
		Name:      "queue_depth",
		Help:      "Number of pending resolution tasks in the queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photoid",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "photoid",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)

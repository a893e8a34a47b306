package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_sessions_started_total",
		Help: "Sessions created from a published interview",
	})

	SessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_sessions_completed_total",
		Help: "First-time completion events (exactly one per session)",
	})

	SegmentsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcript_segments_appended_total",
		Help: "Transcript segments accepted by the append log",
	})

	ReportsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_reports_upserted_total",
		Help: "Report writes, including idempotent replaces",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "API request latency by route",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	}, []string{"route", "status"})
)

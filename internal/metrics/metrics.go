// Package metrics exposes process-wide Prometheus collectors for the
// detection engine. It mirrors the reference lineage's monitoring
// package-level-promauto-variable pattern but carries no HTTP coupling:
// nothing here is a middleware, and exposition (a /metrics endpoint) is a
// façade concern outside this module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DetectorInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionguard_detector_invocations_total",
		Help: "Number of times a detector's Detect was called, by detector name and outcome.",
	}, []string{"detector", "outcome"}) // outcome: ok, error, timeout, invalid

	DetectorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visionguard_detector_duration_seconds",
		Help:    "Wall-clock duration of a single detector call.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"detector"})

	DiagnosesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionguard_diagnoses_total",
		Help: "Number of Frame Pipeline diagnoses produced, by primary issue and severity.",
	}, []string{"primary_issue", "severity"})

	SuppressionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionguard_suppressions_total",
		Help: "Number of findings suppressed, by suppressing and suppressed issue type.",
	}, []string{"suppressor", "suppressed"})

	VideoDiagnosesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionguard_video_diagnoses_total",
		Help: "Number of Video Pipeline diagnoses produced, by primary issue.",
	}, []string{"primary_issue"})

	StreamConnectionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "visionguard_stream_connected",
		Help: "1 if the stream ingestor is currently connected, else 0.",
	}, []string{"stream_id"})

	StreamReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionguard_stream_reconnects_total",
		Help: "Number of reconnect attempts made by a stream ingestor.",
	}, []string{"stream_id"})

	StreamFramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionguard_stream_frames_received_total",
		Help: "Number of frames read from a stream's capture loop.",
	}, []string{"stream_id"})

	SchedulerJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionguard_scheduler_jobs_total",
		Help: "Number of scheduler job executions, by kind and final status.",
	}, []string{"kind", "status"})

	StreamAnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionguard_stream_analyses_total",
		Help: "Number of analyze-loop ticks completed by a stream ingestor, by outcome.",
	}, []string{"stream_id", "outcome"})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "visionguard_active_streams",
		Help: "Number of streams currently registered with the stream service.",
	})
)

// RecordDetector updates the invocation counter and duration histogram for
// one detector call.
func RecordDetector(name, outcome string, seconds float64) {
	DetectorInvocations.WithLabelValues(name, outcome).Inc()
	DetectorDuration.WithLabelValues(name).Observe(seconds)
}

// RecordDiagnosis updates diagnosis-level counters after a Frame Pipeline
// run completes.
func RecordDiagnosis(primaryIssue, severity string) {
	if primaryIssue == "" {
		primaryIssue = "none"
	}
	DiagnosesTotal.WithLabelValues(primaryIssue, severity).Inc()
}

// RecordSuppression updates the suppression counter for one suppressed
// issue.
func RecordSuppression(suppressor, suppressed string) {
	SuppressionsTotal.WithLabelValues(suppressor, suppressed).Inc()
}

// RecordSchedulerJob updates the scheduler outcome counter.
func RecordSchedulerJob(kind, status string) {
	SchedulerJobsTotal.WithLabelValues(kind, status).Inc()
}

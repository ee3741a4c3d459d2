// Package metrics exposes Prometheus instrumentation for the queue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsAdded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gardenqueue_jobs_added_total",
		Help: "Jobs accepted into the offline queue",
	}, []string{"kind"})

	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gardenqueue_jobs_completed_total",
		Help: "Jobs confirmed on-chain",
	}, []string{"kind"})

	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gardenqueue_jobs_failed_total",
		Help: "Jobs that failed permanently, by error type",
	}, []string{"kind", "error_type"})

	JobsRetried = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gardenqueue_jobs_retried_total",
		Help: "Transient failures scheduled for retry",
	}, []string{"kind", "error_type"})

	PendingJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gardenqueue_pending_jobs",
		Help: "Jobs waiting to be synced",
	})

	FlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gardenqueue_flush_seconds",
		Help:    "Wall time of a full flush pass",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	ProcessingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gardenqueue_job_processing_seconds",
		Help:    "Time to encode and submit one job",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"kind"})

	AttachmentBytesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gardenqueue_attachment_bytes_uploaded_total",
		Help: "Bytes of job media moved to remote storage",
	})

	BreakerOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gardenqueue_breaker_open",
		Help: "1 while the submission circuit breaker is open",
	})
)

// Handler exposes the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus collectors for the encoding
// pipeline and the HTTP server that serves them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/avtoolkit/encodarr/internal/queue"
)

var (
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "encodarr_queue_depth",
		Help: "Number of jobs waiting in queue",
	})

	deadLetterCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "encodarr_dead_letter_count",
		Help: "Number of jobs in dead letter queue",
	})

	jobsInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "encodarr_jobs_in_progress",
		Help: "Number of jobs currently being encoded",
	})

	encodesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "encodarr_encodes_total",
		Help: "Total number of encode operations",
	}, []string{"status"}) // status=success|failure|dead_letter

	encodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "encodarr_encode_duration_seconds",
		Help:    "Time taken to encode videos in seconds",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400},
	})

	sizeReductionRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "encodarr_size_reduction_ratio",
		Help:    "Ratio of input size to output size",
		Buckets: []float64{1, 1.5, 2, 2.5, 3, 4, 5, 10},
	})

	vmafScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "encodarr_vmaf_score",
		Help:    "VMAF scores of encoded videos",
		Buckets: []float64{80, 85, 90, 92, 94, 95, 96, 97, 98, 99},
	})
)

// RecordSuccess records a completed encode and its result histograms.
func RecordSuccess(meta *queue.ResultMetadata) {
	encodesTotal.WithLabelValues("success").Inc()
	encodeDuration.Observe(meta.EncodeDurationSecs)
	sizeReductionRatio.Observe(meta.CompressionRatio())
	if meta.VMAFScore != nil {
		vmafScore.Observe(*meta.VMAFScore)
	}
}

// RecordFailure records one failed encode attempt.
func RecordFailure() {
	encodesTotal.WithLabelValues("failure").Inc()
}

// RecordDeadLetter records a job exhausting its attempts.
func RecordDeadLetter() {
	encodesTotal.WithLabelValues("dead_letter").Inc()
}

// SetQueueDepth updates the pending-queue gauge.
func SetQueueDepth(n int64) {
	queueDepth.Set(float64(n))
}

// SetDeadLetterCount updates the dead-letter gauge.
func SetDeadLetterCount(n int64) {
	deadLetterCount.Set(float64(n))
}

// SetJobsInProgress updates the in-flight gauge.
func SetJobsInProgress(n int64) {
	jobsInProgress.Set(float64(n))
}

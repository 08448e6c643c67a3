package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepfake_jobs_submitted_total",
		Help: "Total number of accepted video uploads",
	})

	UploadsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepfake_uploads_rejected_total",
		Help: "Uploads rejected before a job was created, by reason",
	}, []string{"reason"})

	JobsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepfake_jobs_finished_total",
		Help: "Jobs that reached a terminal status, by status",
	}, []string{"status"})

	VerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepfake_verdicts_total",
		Help: "Overall verdicts of completed jobs, by label",
	}, []string{"label"})

	FramesClassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepfake_frames_classified_total",
		Help: "Frames run through the classifier, by label",
	}, []string{"label"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deepfake_stage_duration_seconds",
		Help:    "Duration of each analysis pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "deepfake_active_jobs",
		Help: "Number of jobs currently being processed",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "deepfake_queue_depth",
		Help: "Number of jobs waiting in the analysis queue",
	})

	JobsEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepfake_jobs_evicted_total",
		Help: "Jobs removed by stale artifact eviction",
	})
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	transcribeWeb = "transcribe_web"

	// Job metrics
	jobsSubmittedTotal = "jobs_submitted_total"
	jobsFinishedTotal  = "jobs_finished_total"
	jobsRejectedTotal  = "jobs_rejected_total"
	jobsInProgress     = "jobs_in_progress"
	jobDurationSeconds = "job_duration_seconds"

	// Labels
	jobStatusLabel    = "status"
	rejectReasonLabel = "reason"
)

/**
* Metrics definition
**/
var jobsSubmittedTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: transcribeWeb,
		Name:      jobsSubmittedTotal,
		Help:      "number of transcription jobs accepted",
	},
)

var jobsFinishedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: transcribeWeb,
		Name:      jobsFinishedTotal,
		Help:      "number of transcription jobs that reached a terminal status",
	},
	[]string{jobStatusLabel},
)

var jobsRejectedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: transcribeWeb,
		Name:      jobsRejectedTotal,
		Help:      "number of uploads rejected by validation",
	},
	[]string{rejectReasonLabel},
)

var jobsInProgressMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: transcribeWeb,
		Name:      jobsInProgress,
		Help:      "number of transcription jobs currently running",
	},
)

var jobDurationSecondsMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: transcribeWeb,
		Name:      jobDurationSeconds,
		Help:      "wall time of a transcription job from start to terminal status",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
	},
	[]string{jobStatusLabel},
)

func IncreaseJobsSubmittedMetric() {
	jobsSubmittedTotalMetric.Inc()
}

func IncreaseJobsRejectedMetric(reason string) {
	jobsRejectedTotalMetric.With(prometheus.Labels{rejectReasonLabel: reason}).Inc()
}

func JobStarted() {
	jobsInProgressMetric.Inc()
}

// JobFinished records the terminal status and duration of a started job
func JobFinished(status string, seconds float64) {
	labels := prometheus.Labels{jobStatusLabel: status}
	jobsInProgressMetric.Dec()
	jobsFinishedTotalMetric.With(labels).Inc()
	jobDurationSecondsMetric.With(labels).Observe(seconds)
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsSubmittedTotalMetric)
	prometheus.MustRegister(jobsFinishedTotalMetric)
	prometheus.MustRegister(jobsRejectedTotalMetric)
	prometheus.MustRegister(jobsInProgressMetric)
	prometheus.MustRegister(jobDurationSecondsMetric)
}

// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	// outcome: accepted, degraded, duplicate, window_closed, invalid, failed
	IntakeSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_submissions_total",
			Help: "Submission attempts by pipeline outcome",
		},
		[]string{"outcome"},
	)

	IntakeStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_stage_duration_seconds",
			Help:    "Duration of each submission pipeline stage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	IntakeDegradations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_degradations_total",
			Help: "Best-effort steps that fell back (photo upload, ip lookup)",
		},
		[]string{"step"},
	)

	IntakeHookFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_hook_failures_total",
			Help: "Post-commit hook failures by hook name",
		},
		[]string{"hook"},
	)

	AdminStatsCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_stats_cache_total",
			Help: "Admin stats cache lookups by result",
		},
		[]string{"result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)
)

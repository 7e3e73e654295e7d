package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuizStarted counts sessions by kind: diagnostic/mock.
	QuizStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_quiz_started_total",
			Help: "Total number of quiz sessions started",
		},
		[]string{"kind"},
	)

	QuizFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_quiz_finished_total",
			Help: "Total number of quiz sessions finished",
		},
		[]string{"kind"},
	)

	QuestionsTimedOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coach_questions_timed_out_total",
			Help: "Total number of diagnostic questions auto-skipped on timeout",
		},
	)

	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coach_sessions_evicted_total",
			Help: "Total number of idle quiz sessions dropped",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coach_active_sessions_current",
			Help: "Current number of running quiz sessions",
		},
	)

	PlansGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_plans_generated_total",
			Help: "Total number of daily plans generated",
		},
		[]string{"type"}, // type: study/rest
	)

	BlocksResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_blocks_resolved_total",
			Help: "Total number of plan blocks marked done or skipped",
		},
		[]string{"status"},
	)

	HoursAdjusted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_hours_adjusted_total",
			Help: "Total number of nightly recommended-hours changes",
		},
		[]string{"reason"}, // reason: decrease/increase/burnout
	)

	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_job_runs_total",
			Help: "Total number of scheduled job runs",
		},
		[]string{"job"},
	)

	JobFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_job_user_failures_total",
			Help: "Total number of per-user failures inside scheduled jobs",
		},
		[]string{"job"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coach_job_duration_seconds",
			Help:    "Time spent running scheduled jobs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)

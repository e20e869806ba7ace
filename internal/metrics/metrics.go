package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "insightforge"

var (
	TasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_submitted_total",
		Help:      "Analysis tasks accepted by the upload endpoint.",
	}, []string{"task_type"})

	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_total",
		Help:      "Attempts to hand a task to the job queue.",
	}, []string{"outcome"})

	Jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Jobs processed by the worker pool by outcome.",
	}, []string{"outcome"})

	AIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ai_request_duration_seconds",
		Help:      "Latency of analyze requests to the AI service.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	Callbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "callbacks_total",
		Help:      "Result callbacks received from the AI service.",
	}, []string{"status"})
)

const (
	OutcomeSuccess      = "success"
	OutcomeFailure      = "failure"
	OutcomeRetry        = "retry"
	OutcomeFinalFailure = "final_failure"
	OutcomeSkipped      = "skipped"
)

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orch_sessions_total",
		Help: "Sessions registered with the orchestrator",
	})

	metricEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_events_total",
		Help: "Inbound session events by kind",
	}, []string{"kind"})

	metricTaskDurationMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orch_task_duration_ms",
		Help:    "Time one queued event took to resolve",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 14),
	}, []string{"kind"})

	metricTaskFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_task_failures_total",
		Help: "Queued events that failed, isolated from later events",
	}, []string{"kind"})

	metricToolRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orch_tool_rounds",
		Help:    "Model turns needed to resolve one event",
		Buckets: prometheus.LinearBuckets(1, 1, 8),
	})

	metricToolLoopExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orch_tool_loop_exceeded_total",
		Help: "Events abandoned after the tool round limit",
	})

	metricToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_tool_calls_total",
		Help: "Tool calls by tool and status",
	}, []string{"tool", "status"})

	metricSpeech = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_speech_total",
		Help: "Speak requests by outcome (voiced or suppression reason)",
	}, []string{"outcome"})

	metricStepProposals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_step_proposals_total",
		Help: "Step proposals by outcome (locked, advanced or rejection reason)",
	}, []string{"outcome"})

	metricFrameStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_frame_status_total",
		Help: "Frame assessments by step status",
	}, []string{"status"})

	metricRecipesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orch_recipes_saved_total",
		Help: "Recipes saved to the catalog",
	})
)

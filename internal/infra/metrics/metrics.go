package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_runs_total",
		Help: "Engine invocations by outcome.",
	}, []string{"engine", "outcome"})

	messagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_messages_sent_total",
		Help: "Confirmed successful dispatches per engine.",
	}, []string{"engine"})

	locksSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_locks_skipped_total",
		Help: "Ledger claims lost to an earlier invocation, per engine.",
	}, []string{"engine"})

	dispatchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_dispatch_failures_total",
		Help: "Per-recipient delivery failures per engine.",
	}, []string{"engine"})

	rateLimitExceededTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_rate_limit_exceeded_total",
		Help: "Trigger requests rejected by the fixed-window rate limiter.",
	}, []string{"endpoint"})
)

func ObserveRun(engine, outcome string, sent, skipped, failures int) {
	runsTotal.WithLabelValues(engine, outcome).Inc()
	messagesSentTotal.WithLabelValues(engine).Add(float64(sent))
	locksSkippedTotal.WithLabelValues(engine).Add(float64(skipped))
	dispatchFailuresTotal.WithLabelValues(engine).Add(float64(failures))
}

func IncRateLimitExceeded(endpoint string) {
	rateLimitExceededTotal.WithLabelValues(endpoint).Inc()
}

// Package metrics provides Prometheus metrics for monitoring orchestration components.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Orchestration execution metrics
var (
	// agentExecutionTotal records the total number of agent invocations.
	// Labels:
	//   - agent: Agent name (e.g., "QueryAgent", "NarrativeAgent")
	//   - mode: Stage execution mode ("sequential" or "parallel")
	//   - status: Invocation outcome (e.g., "success", "failure", "skipped")
	agentExecutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_agent_executions_total",
			Help: "Total number of agent invocations",
		},
		[]string{"agent", "mode", "status"},
	)

	// agentCallDuration records the duration of agent HTTP calls.
	// Labels:
	//   - agent: Agent name
	//   - mode: Stage execution mode
	// Buckets: 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	agentCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_agent_call_duration_seconds",
			Help:    "Duration of agent HTTP calls in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"agent", "mode"},
	)

	// qualityGateTotal records quality gate evaluations.
	// Labels:
	//   - gate: Gate name (e.g., "sql_validation")
	//   - outcome: "passed" or "failed"
	qualityGateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_quality_gate_results_total",
			Help: "Total number of quality gate evaluations by outcome",
		},
		[]string{"gate", "outcome"},
	)

	// fallbackEventsTotal records degraded fallback substitutions.
	// Labels:
	//   - agent: Agent whose call was replaced by a degraded marker
	//   - reason: Failure reason category (e.g., "timeout", "low_confidence")
	fallbackEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_fallback_events_total",
			Help: "Total number of degraded fallback substitutions",
		},
		[]string{"agent", "reason"},
	)
)

func init() {
	// Register all orchestration metrics with Prometheus
	prometheus.MustRegister(agentExecutionTotal)
	prometheus.MustRegister(agentCallDuration)
	prometheus.MustRegister(qualityGateTotal)
	prometheus.MustRegister(fallbackEventsTotal)
}

// RecordAgentExecution records one agent invocation outcome.
func RecordAgentExecution(agent, mode, status string) {
	agentExecutionTotal.WithLabelValues(agent, mode, status).Inc()
}

// RecordAgentCallDuration records the duration of one agent HTTP call.
func RecordAgentCallDuration(agent, mode string, durationSeconds float64) {
	agentCallDuration.WithLabelValues(agent, mode).Observe(durationSeconds)
}

// RecordQualityGate records one quality gate evaluation.
func RecordQualityGate(gate string, passed bool) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	qualityGateTotal.WithLabelValues(gate, outcome).Inc()
}

// RecordFallbackEvent records a degraded fallback substitution.
func RecordFallbackEvent(agent, reason string) {
	fallbackEventsTotal.WithLabelValues(agent, reason).Inc()
}

// Package metrics exposes Prometheus counters and histograms for the voice
// orchestrator's internal operations. These are observational only; nothing
// in the orchestrator's correctness depends on scraping them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// StateTransitions counts state-machine transitions by from/to state.
	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voiceorchestrator_state_transitions_total",
			Help: "Count of state machine transitions by from and to state.",
		},
		[]string{"from", "to"},
	)

	// ToolCalls counts tool invocations by tool name and outcome.
	ToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voiceorchestrator_tool_calls_total",
			Help: "Count of tool invocations by tool name and outcome.",
		},
		[]string{"tool", "outcome"},
	)

	// ToolCallLatency records tool execution duration in seconds.
	ToolCallLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voiceorchestrator_tool_call_duration_seconds",
			Help:    "Tool execution latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	// DispatcherDrops counts frames the dispatcher discarded (unknown type or validation failure).
	DispatcherDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voiceorchestrator_dispatcher_drops_total",
			Help: "Count of inbound frames dropped by the event dispatcher.",
		},
		[]string{"reason"},
	)
)

// Registry is a dedicated Prometheus registry so the orchestrator never
// pollutes the default global registry of its embedding process.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(StateTransitions, ToolCalls, ToolCallLatency, DispatcherDrops)
}

// Package metrics exposes Prometheus counters for model fallback, content
// optimization and response assembly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	modelOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudecoder_model_outcomes_total",
			Help: "Model invocation outcomes reported to the fallback manager",
		},
		[]string{"model", "outcome"},
	)

	modelTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudecoder_model_transitions_total",
			Help: "Model state changes made by the fallback manager",
		},
		[]string{"model", "from", "to"},
	)

	fallbackSwitches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "claudecoder_fallback_switches_total",
			Help: "Times the current model changed",
		},
	)

	emergencyResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "claudecoder_fallback_emergency_resets_total",
			Help: "Times every model was failed and failed models were reset",
		},
	)

	optimizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudecoder_optimizations_total",
			Help: "Content optimization runs by result",
		},
		[]string{"result"},
	)

	classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudecoder_classifications_total",
			Help: "File classification runs by classifier",
		},
		[]string{"classifier"},
	)

	summaryCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claudecoder_summary_cache_total",
			Help: "Summary cache lookups by result",
		},
		[]string{"result"},
	)

	assemblyTurns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "claudecoder_assembly_turns_total",
			Help: "Model turns requested while assembling responses",
		},
	)
)

// Optimization results.
const (
	OptimizationSkipped   = "skipped"
	OptimizationFits      = "fits"
	OptimizationOptimized = "optimized"
	OptimizationFailed    = "failed"
)

// ModelOutcome counts a reported invocation outcome for model.
func ModelOutcome(model, outcome string) {
	modelOutcomes.WithLabelValues(model, outcome).Inc()
}

// ModelTransition counts a status change of model.
func ModelTransition(model, from, to string) {
	modelTransitions.WithLabelValues(model, from, to).Inc()
}

// FallbackSwitch counts a change of the current model.
func FallbackSwitch() {
	fallbackSwitches.Inc()
}

// EmergencyReset counts a reset triggered by every model having failed.
func EmergencyReset() {
	emergencyResets.Inc()
}

// Optimization counts an optimizer run with the given result.
func Optimization(result string) {
	optimizations.WithLabelValues(result).Inc()
}

// Classification counts a classification made by classifier ("ai" or "heuristic").
func Classification(classifier string) {
	classifications.WithLabelValues(classifier).Inc()
}

// SummaryCacheHit counts a summary served from the cache.
func SummaryCacheHit() {
	summaryCache.WithLabelValues("hit").Inc()
}

// SummaryCacheMiss counts a summary that had to be generated.
func SummaryCacheMiss() {
	summaryCache.WithLabelValues("miss").Inc()
}

// AssemblyTurn counts one model turn of the response assembler.
func AssemblyTurn() {
	assemblyTurns.Inc()
}

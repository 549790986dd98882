package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// HookMetrics counts transfer hook instruction outcomes.
type HookMetrics struct {
	initializations *prometheus.CounterVec
	admitted        prometheus.Counter
	rejected        *prometheus.CounterVec
	instructions    *prometheus.HistogramVec
}

var (
	hookOnce     sync.Once
	hookRegistry *HookMetrics
)

func Hook() *HookMetrics {
	hookOnce.Do(func() {
		hookRegistry = &HookMetrics{
			initializations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "transferhook_initializations_total",
				Help: "Count of extra account list initializations by outcome.",
			}, []string{"outcome"}),
			admitted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "transferhook_transfers_admitted_total",
				Help: "Count of transfers that passed credential verification.",
			}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "transferhook_transfers_rejected_total",
				Help: "Count of rejected transfers by verification stage and failure kind.",
			}, []string{"stage", "kind"}),
			instructions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "transferhook_instruction_duration_seconds",
				Help:    "Latency of executed instructions by program.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			}, []string{"program"}),
		}
		prometheus.MustRegister(
			hookRegistry.initializations,
			hookRegistry.admitted,
			hookRegistry.rejected,
			hookRegistry.instructions,
		)
	})
	return hookRegistry
}

func (m *HookMetrics) ObserveInitialization(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.initializations.WithLabelValues(outcome).Inc()
}

func (m *HookMetrics) ObserveAdmitted() {
	if m == nil {
		return
	}
	m.admitted.Inc()
}

func (m *HookMetrics) ObserveRejected(stage, kind string) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	if kind == "" {
		kind = "unknown"
	}
	m.rejected.WithLabelValues(stage, kind).Inc()
}

// ObserveInstruction records how long the runtime spent executing an
// instruction for program.
func (m *HookMetrics) ObserveInstruction(program string, seconds float64) {
	if m == nil {
		return
	}
	m.instructions.WithLabelValues(program).Observe(seconds)
}

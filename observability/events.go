package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"gatehook/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking emitted hook events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gatehook",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of transfer hook events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// RecordEvent increments the counter for the event's type.
func (m *eventMetrics) RecordEvent(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	kind := strings.TrimSpace(evt.EventType())
	if kind == "" {
		kind = "unknown"
	}
	m.emitted.WithLabelValues(kind).Inc()
}

// CountingEmitter records every event before forwarding it to Next.
type CountingEmitter struct {
	Next events.Emitter
}

func (c CountingEmitter) Emit(evt events.Event) {
	Events().RecordEvent(evt)
	if c.Next != nil {
		c.Next.Emit(evt)
	}
}

package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"remithub/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking emitted engine events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "remithub",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of engine events segmented by event type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Record increments the counter for the supplied event type.
func (m *eventMetrics) Record(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// MeterEmitter is an events.Emitter that counts every event by type before
// forwarding to the wrapped emitter.
type MeterEmitter struct {
	next events.Emitter
}

// NewMeterEmitter wraps next with event counting. A nil next discards
// events after counting.
func NewMeterEmitter(next events.Emitter) *MeterEmitter {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &MeterEmitter{next: next}
}

// Emit implements the events.Emitter interface.
func (m *MeterEmitter) Emit(evt events.Event) {
	if evt != nil {
		Events().Record(evt.EventType())
	}
	m.next.Emit(evt)
}

// metrics.go — Prometheus collectors for the ingest-and-analysis core.
// Grounded on the pack's client_golang usage (jordigilh-kubernaut,
// other_examples/gpud): package-level collectors registered once, updated
// from the hot paths (Event Store writes, Transport connection lifecycle).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SessionsConnected tracks currently-connected SDK sessions.
	SessionsConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "devradar",
		Name:      "sessions_connected",
		Help:      "Number of SDK sessions currently connected over the WebSocket transport.",
	})

	// EventsIngestedTotal counts every event appended to the Event Store, by type.
	EventsIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devradar",
		Name:      "events_ingested_total",
		Help:      "Total events appended to the Event Store, labeled by eventType.",
	}, []string{"event_type"})

	// RingBufferOccupancy reports the Event Store ring's current fill level.
	RingBufferOccupancy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "devradar",
		Name:      "ring_buffer_occupancy",
		Help:      "Number of events currently held in the Event Store ring buffer.",
	})

	// PersistLogWriteFailuresTotal counts dual-write failures that were
	// swallowed per §4.3's best-effort guarantee.
	PersistLogWriteFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "devradar",
		Name:      "persist_log_write_failures_total",
		Help:      "Persistent log dual-write failures, logged and discarded per the best-effort contract.",
	})

	// CommandRoundtripSeconds observes sendCommand latency from dispatch to
	// correlated command_response (or timeout).
	CommandRoundtripSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "devradar",
		Name:      "command_roundtrip_seconds",
		Help:      "sendCommand round-trip latency, labeled by outcome (ok, timeout, no_connection, circuit_open).",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
)

// Collectors groups the collectors above for callers that want to register
// them against a specific prometheus.Registerer rather than the default one.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SessionsConnected,
		EventsIngestedTotal,
		RingBufferOccupancy,
		PersistLogWriteFailuresTotal,
		CommandRoundtripSeconds,
	}
}

// MustRegister registers every collector against reg, panicking on duplicate
// registration (mirrors prometheus.MustRegister's contract).
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(Collectors()...)
}

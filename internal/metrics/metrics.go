// Package metrics exposes the relay's Prometheus collectors and a small
// status server for health probes and scraping.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the relay updates.
type Metrics struct {
	registry *prometheus.Registry

	// Mailbox
	PollCycles        *prometheus.CounterVec
	PollCycleDuration prometheus.Histogram
	MessagesProcessed *prometheus.CounterVec

	// Transcription
	ChunksTranscribed prometheus.Counter
	ChunksFailed      prometheus.Counter

	// Delivery
	DeliveryAttempts *prometheus.CounterVec
	PartsDelivered   *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, so tests and parallel
// instances never collide on the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PollCycles: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "vmrelay_poll_cycles_total",
			Help: "Mailbox poll cycles by result (ok, error)",
		}, []string{"result"}),
		PollCycleDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vmrelay_poll_cycle_duration_seconds",
			Help:    "Wall time of one poll cycle including message processing",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		MessagesProcessed: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "vmrelay_messages_processed_total",
			Help: "Voicemail messages by outcome (processed, skipped, failed)",
		}, []string{"outcome"}),

		ChunksTranscribed: auto.NewCounter(prometheus.CounterOpts{
			Name: "vmrelay_chunks_transcribed_total",
			Help: "Audio chunks transcribed successfully",
		}),
		ChunksFailed: auto.NewCounter(prometheus.CounterOpts{
			Name: "vmrelay_chunks_failed_total",
			Help: "Audio chunks whose transcription failed",
		}),

		DeliveryAttempts: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "vmrelay_delivery_attempts_total",
			Help: "Telegram send calls by result (delivered, transient, rate_limited, permanent)",
		}, []string{"result"}),
		PartsDelivered: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "vmrelay_parts_total",
			Help: "Caption parts by final state (delivered, abandoned)",
		}, []string{"state"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCycle records one finished poll cycle.
func (m *Metrics) ObserveCycle(result string, d time.Duration, processed, skipped, failed int) {
	m.PollCycles.WithLabelValues(result).Inc()
	m.PollCycleDuration.Observe(d.Seconds())
	m.MessagesProcessed.WithLabelValues("processed").Add(float64(processed))
	m.MessagesProcessed.WithLabelValues("skipped").Add(float64(skipped))
	m.MessagesProcessed.WithLabelValues("failed").Add(float64(failed))
}

// ObserveChunks records the transcription results of one message.
func (m *Metrics) ObserveChunks(ok, failed int) {
	m.ChunksTranscribed.Add(float64(ok))
	m.ChunksFailed.Add(float64(failed))
}

// DeliveryAttempt counts one Telegram send call.
func (m *Metrics) DeliveryAttempt(result string) {
	m.DeliveryAttempts.WithLabelValues(result).Inc()
}

// PartFinished counts one caption part by its terminal state.
func (m *Metrics) PartFinished(state string) {
	m.PartsDelivered.WithLabelValues(state).Inc()
}

// Package metrics exposes the orchestrator's Prometheus counters,
// gauges and histograms: scheduler tick throughput, platform sync
// outcomes, signal filtering, deliverable generation, and LLM call
// volume.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksProcessedTotal counts scheduler dispatcher ticks completed.
	TicksProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticks_processed_total",
		Help: "Total number of scheduler ticks processed.",
	})

	// PlatformSyncsTotal counts platform sync attempts by platform and
	// outcome.
	PlatformSyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_syncs_total",
		Help: "Total number of platform sync attempts, by platform and status.",
	}, []string{"platform", "status"})

	// PlatformSyncDuration records how long a platform sync took.
	PlatformSyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "platform_sync_duration_seconds",
		Help:    "Platform sync duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"platform"})

	// SignalsProcessedTotal counts signals that passed through the
	// orchestrator's filter stage.
	SignalsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signals_processed_total",
		Help: "Total number of signals processed by the orchestrator.",
	})

	// SignalsFilteredTotal counts signals dropped, labeled by the
	// reason they were filtered (dedup, below_confidence, policy_denied).
	SignalsFilteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signals_filtered_total",
		Help: "Total number of signals filtered out before execution, by reason.",
	}, []string{"reason"})

	// DeliverablesGeneratedTotal counts deliverable version generation
	// attempts by deliverable type and outcome.
	DeliverablesGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deliverables_generated_total",
		Help: "Total number of deliverable versions generated, by type and status.",
	}, []string{"deliverable_type", "status"})

	// DeliverableGenerationDuration records how long deliverable
	// generation (gather through delivery) took.
	DeliverableGenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deliverable_generation_duration_seconds",
		Help:    "Deliverable generation duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"deliverable_type"})

	// DeliveryErrorsTotal counts export/delivery failures by
	// destination platform and error type.
	DeliveryErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_errors_total",
		Help: "Total number of delivery failures, by platform and error type.",
	}, []string{"platform", "error_type"})

	// LLMAPICallsTotal counts outbound LLM provider calls.
	LLMAPICallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_api_calls_total",
		Help: "Total number of LLM provider API calls, by provider.",
	}, []string{"provider"})

	// LLMAPIErrorsTotal counts LLM provider call failures.
	LLMAPIErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_api_errors_total",
		Help: "Total number of LLM provider API errors, by provider and error type.",
	}, []string{"provider", "error_type"})

	// LLMCallDuration records LLM round-trip latency.
	LLMCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_call_duration_seconds",
		Help:    "LLM provider call duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	// ActiveLocksGauge tracks currently held advisory locks.
	ActiveLocksGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_locks",
		Help: "Number of advisory locks currently held.",
	})

	// WorkTicketsRunning tracks in-flight deliverable generation work.
	WorkTicketsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "work_tickets_running",
		Help: "Number of deliverable generation work tickets currently running.",
	})

	// QueueDroppedTotal counts same-user same-phase work dropped by the
	// scheduler's backpressure ceiling, by phase.
	QueueDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_dropped_total",
		Help: "Total number of scheduler work items dropped due to backpressure, by phase.",
	}, []string{"phase"})
)

// RecordPlatformSync records the outcome and duration of a platform
// sync attempt.
func RecordPlatformSync(platform, status string, d time.Duration) {
	PlatformSyncsTotal.WithLabelValues(platform, status).Inc()
	PlatformSyncDuration.WithLabelValues(platform).Observe(d.Seconds())
}

// RecordSignalFiltered records a signal dropped before execution.
func RecordSignalFiltered(reason string) {
	SignalsFilteredTotal.WithLabelValues(reason).Inc()
}

// RecordDeliverableGenerated records the outcome and duration of a
// deliverable version generation attempt.
func RecordDeliverableGenerated(deliverableType, status string, d time.Duration) {
	DeliverablesGeneratedTotal.WithLabelValues(deliverableType, status).Inc()
	DeliverableGenerationDuration.WithLabelValues(deliverableType).Observe(d.Seconds())
}

// RecordDeliveryError records an export/delivery failure.
func RecordDeliveryError(platform, errorType string) {
	DeliveryErrorsTotal.WithLabelValues(platform, errorType).Inc()
}

// RecordLLMCall records an LLM API call and its duration.
func RecordLLMCall(provider string, d time.Duration) {
	LLMAPICallsTotal.WithLabelValues(provider).Inc()
	LLMCallDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordLLMError records an LLM API call failure.
func RecordLLMError(provider, errorType string) {
	LLMAPIErrorsTotal.WithLabelValues(provider, errorType).Inc()
}

// IncrementWorkTicketsRunning increments the in-flight work ticket
// gauge.
func IncrementWorkTicketsRunning() {
	WorkTicketsRunning.Inc()
}

// DecrementWorkTicketsRunning decrements the in-flight work ticket
// gauge.
func DecrementWorkTicketsRunning() {
	WorkTicketsRunning.Dec()
}

// RecordQueueDropped records one unit of work dropped by a phase's
// backpressure ceiling.
func RecordQueueDropped(phase string) {
	QueueDroppedTotal.WithLabelValues(phase).Inc()
}

// Timer measures elapsed time for a single operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns time elapsed since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// RecordPlatformSync records a platform sync outcome using the
// timer's elapsed duration.
func (t *Timer) RecordPlatformSync(platform, status string) {
	RecordPlatformSync(platform, status, t.Elapsed())
}

// RecordDeliverableGenerated records a deliverable generation outcome
// using the timer's elapsed duration.
func (t *Timer) RecordDeliverableGenerated(deliverableType, status string) {
	RecordDeliverableGenerated(deliverableType, status, t.Elapsed())
}

// RecordLLMCall records an LLM call using the timer's elapsed
// duration.
func (t *Timer) RecordLLMCall(provider string) {
	RecordLLMCall(provider, t.Elapsed())
}

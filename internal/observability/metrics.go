package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	roomConnectionsActive     prometheus.Gauge
	roomEventsIngestedTotal   *prometheus.CounterVec
	roomFlushesTotal          prometheus.Counter
	giftStackMergesTotal      prometheus.Counter
	pendingEventsDroppedTotal prometheus.Counter
	chatSendsDeniedTotal      prometheus.Counter

	giftTransactionsTotal *prometheus.CounterVec

	ledgerMutationsTotal            *prometheus.CounterVec
	ledgerCompensationsTotal        prometheus.Counter
	ledgerCompensationFailuresTotal prometheus.Counter
)

// RegisterMetrics initialises every Prometheus collector exposed by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		roomConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "room_connections_active",
			Help: "Number of websocket room connections currently open.",
		})

		roomEventsIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "room_events_ingested_total",
			Help: "Total number of room events applied to viewer timelines.",
		}, []string{"type"})

		roomFlushesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "room_flushes_total",
			Help: "Total number of non-empty timeline flush ticks.",
		})

		giftStackMergesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gift_stack_merges_total",
			Help: "Total number of gift events merged into an existing timeline entry.",
		})

		pendingEventsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pending_events_dropped_total",
			Help: "Total number of remote events dropped due to a full pending buffer.",
		})

		chatSendsDeniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_sends_denied_total",
			Help: "Total number of chat sends rejected by the per-sender cooldown.",
		})

		giftTransactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gift_transactions_total",
			Help: "Total number of gift send attempts by outcome.",
		}, []string{"outcome"})

		ledgerMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_mutations_total",
			Help: "Total number of committed balance mutations by reason.",
		}, []string{"reason"})

		ledgerCompensationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_compensations_total",
			Help: "Total number of balance restores after a failed ledger insert.",
		})

		ledgerCompensationFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_compensation_failures_total",
			Help: "Total number of failed balance restores leaving an inconsistent balance.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			roomConnectionsActive,
			roomEventsIngestedTotal,
			roomFlushesTotal,
			giftStackMergesTotal,
			pendingEventsDroppedTotal,
			chatSendsDeniedTotal,
			giftTransactionsTotal,
			ledgerMutationsTotal,
			ledgerCompensationsTotal,
			ledgerCompensationFailuresTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// RoomConnectionsActive exposes the gauge of open room connections.
func RoomConnectionsActive() prometheus.Gauge {
	RegisterMetrics()
	return roomConnectionsActive
}

// RoomEventsIngestedTotal exposes the counter of applied room events.
func RoomEventsIngestedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return roomEventsIngestedTotal
}

// RoomFlushesTotal exposes the counter of timeline flushes.
func RoomFlushesTotal() prometheus.Counter {
	RegisterMetrics()
	return roomFlushesTotal
}

// GiftStackMergesTotal exposes the counter of gift stack merges.
func GiftStackMergesTotal() prometheus.Counter {
	RegisterMetrics()
	return giftStackMergesTotal
}

// PendingEventsDroppedTotal exposes the counter of dropped pending events.
func PendingEventsDroppedTotal() prometheus.Counter {
	RegisterMetrics()
	return pendingEventsDroppedTotal
}

// ChatSendsDeniedTotal exposes the counter of throttled chat sends.
func ChatSendsDeniedTotal() prometheus.Counter {
	RegisterMetrics()
	return chatSendsDeniedTotal
}

// GiftTransactionsTotal exposes the counter of gift send outcomes.
func GiftTransactionsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return giftTransactionsTotal
}

// LedgerMutationsTotal exposes the counter of committed ledger mutations.
func LedgerMutationsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return ledgerMutationsTotal
}

// LedgerCompensationsTotal exposes the counter of successful balance restores.
func LedgerCompensationsTotal() prometheus.Counter {
	RegisterMetrics()
	return ledgerCompensationsTotal
}

// LedgerCompensationFailuresTotal exposes the counter of failed balance restores.
func LedgerCompensationFailuresTotal() prometheus.Counter {
	RegisterMetrics()
	return ledgerCompensationFailuresTotal
}

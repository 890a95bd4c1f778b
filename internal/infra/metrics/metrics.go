package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PipelineMetrics struct {
	chainTipGauge         prometheus.Gauge
	processedLedgerGauge  prometheus.Gauge
	outboxBacklogGauge    prometheus.Gauge
	processedLedgersCount prometheus.Counter
	enqueuedCount         prometheus.Counter
	sentCount             prometheus.Counter
	droppedCount          *prometheus.CounterVec
	sendFailuresCount     prometheus.Counter
	decodeErrorsCount     prometheus.Counter
	disabledChatsCount    prometheus.Counter
	monitorRetriesCount   prometheus.Counter
}

func NewPipelineMetrics(namespace string) *PipelineMetrics {
	m := PipelineMetrics{
		// ledger side
		chainTipGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_chain_tip_ledger", namespace),
			Help: "The latest ledger reported by the ledger API",
		}),
		processedLedgerGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_processed_ledger", namespace),
			Help: "The latest fully processed ledger",
		}),
		processedLedgersCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_processed_ledger_count", namespace),
			Help: "The total number of processed ledgers",
		}),
		decodeErrorsCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_decode_error_count", namespace),
			Help: "The total number of envelopes that could not be decoded",
		}),
		monitorRetriesCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_monitor_retry_count", namespace),
			Help: "The total number of ledger monitor backoffs",
		}),
		// outbox side
		outboxBacklogGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_outbox_backlog", namespace),
			Help: "The number of notifications waiting to be sent",
		}),
		enqueuedCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_enqueued_notification_count", namespace),
			Help: "The total number of enqueued notifications",
		}),
		sentCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_sent_notification_count", namespace),
			Help: "The total number of delivered notifications",
		}),
		sendFailuresCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_send_failure_count", namespace),
			Help: "The total number of transient send failures",
		}),
		droppedCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_dropped_notification_count", namespace),
			Help: "The total number of notifications removed without delivery",
		}, []string{"reason"}),
		disabledChatsCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_disabled_chat_count", namespace),
			Help: "The total number of chats disabled after a permanent failure",
		}),
	}
	return &m
}

func (m *PipelineMetrics) SetChainTip(ledger uint64) {
	m.chainTipGauge.Set(float64(ledger))
}

func (m *PipelineMetrics) SetProcessedLedger(ledger uint64) {
	m.processedLedgerGauge.Set(float64(ledger))
	m.processedLedgersCount.Inc()
}

// SetCursor only moves the gauge, for values read back from the store.
func (m *PipelineMetrics) SetCursor(ledger uint64) {
	m.processedLedgerGauge.Set(float64(ledger))
}

func (m *PipelineMetrics) SetOutboxBacklog(n int64) {
	m.outboxBacklogGauge.Set(float64(n))
}

func (m *PipelineMetrics) AddEnqueued(n int) {
	m.enqueuedCount.Add(float64(n))
}

func (m *PipelineMetrics) IncSent() {
	m.sentCount.Inc()
}

func (m *PipelineMetrics) IncSendFailures() {
	m.sendFailuresCount.Inc()
}

// IncDropped counts a removal without delivery, reason is "unreachable", "disabled" or "dead_letter".
func (m *PipelineMetrics) IncDropped(reason string) {
	m.droppedCount.WithLabelValues(reason).Inc()
}

func (m *PipelineMetrics) IncDisabledChats() {
	m.disabledChatsCount.Inc()
}

func (m *PipelineMetrics) IncDecodeErrors() {
	m.decodeErrorsCount.Inc()
}

func (m *PipelineMetrics) IncMonitorRetries() {
	m.monitorRetriesCount.Inc()
}

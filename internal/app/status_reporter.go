package app

import (
	"context"
	"fmt"

	"stellar_notification_bot/internal/domain/cursor"
	"stellar_notification_bot/internal/domain/outbox"
	"stellar_notification_bot/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

type StatusReport struct {
	ChainTip        uint64 `json:"chain_tip"`
	ProcessedLedger uint64 `json:"processed_ledger"`
	Lag             uint64 `json:"lag"`
	Backlog         int64  `json:"backlog"`
}

// StatusReporter takes a periodic snapshot of how far behind the pipeline is.
type StatusReporter struct {
	fetcher *LedgerFetcher
	cursor  cursor.Store
	outbox  outbox.Store
	metrics *metrics.PipelineMetrics
	log     *logrus.Entry
}

func NewStatusReporter(fetcher *LedgerFetcher, cursorStore cursor.Store, outboxStore outbox.Store, m *metrics.PipelineMetrics, log *logrus.Entry) *StatusReporter {
	return &StatusReporter{
		fetcher: fetcher,
		cursor:  cursorStore,
		outbox:  outboxStore,
		metrics: m,
		log:     log,
	}
}

func (r *StatusReporter) Report(ctx context.Context) (*StatusReport, error) {
	tip, err := r.fetcher.CurrentHeight(ctx)
	if err != nil {
		return nil, err
	}
	processed, err := r.cursor.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading cursor: %w", err)
	}
	backlog, err := r.outbox.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting outbox: %w", err)
	}

	report := &StatusReport{
		ChainTip:        tip,
		ProcessedLedger: processed,
		Backlog:         backlog,
	}
	if tip > processed {
		report.Lag = tip - processed
	}

	r.metrics.SetChainTip(tip)
	r.metrics.SetCursor(processed)
	r.metrics.SetOutboxBacklog(backlog)
	r.log.WithFields(logrus.Fields{
		"chain_tip":        report.ChainTip,
		"processed_ledger": report.ProcessedLedger,
		"lag":              report.Lag,
		"backlog":          report.Backlog,
	}).Info("Pipeline status")
	return report, nil
}

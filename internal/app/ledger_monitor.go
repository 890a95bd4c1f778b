package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stellar_notification_bot/internal/domain/cursor"
	"stellar_notification_bot/internal/domain/outbox"
	"stellar_notification_bot/internal/infra/backoff"
	"stellar_notification_bot/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

type MonitorState int

const (
	StateFetchTip MonitorState = iota
	StateCompare
	StateCaughtUp
	StateAdvance
	StateBackoff
)

func (s MonitorState) String() string {
	switch s {
	case StateFetchTip:
		return "fetch_tip"
	case StateCompare:
		return "compare"
	case StateCaughtUp:
		return "caught_up"
	case StateAdvance:
		return "advance"
	case StateBackoff:
		return "backoff"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// LedgerCommitter is implemented by outbox stores that can enqueue a ledger's
// notifications and move the cursor in one atomic write.
type LedgerCommitter interface {
	CommitLedger(ctx context.Context, height uint64, notifications []*outbox.PendingNotification) error
}

// LedgerMonitor walks the chain one ledger at a time, turning transactions into
// outbox entries. The cursor only moves after a ledger's notifications are stored.
type LedgerMonitor struct {
	fetcher      *LedgerFetcher
	classifier   *Classifier
	cursor       cursor.Store
	outbox       outbox.Store
	committer    LedgerCommitter
	backoff      backoff.Policy
	clock        backoff.Clock
	pollInterval time.Duration
	metrics      *metrics.PipelineMetrics
	log          *logrus.Entry

	state     MonitorState
	tip       uint64
	processed uint64
	failures  int
}

func NewLedgerMonitor(
	fetcher *LedgerFetcher,
	classifier *Classifier,
	cursorStore cursor.Store,
	outboxStore outbox.Store,
	policy backoff.Policy,
	clock backoff.Clock,
	pollInterval time.Duration,
	m *metrics.PipelineMetrics,
	log *logrus.Entry,
) *LedgerMonitor {
	committer, _ := outboxStore.(LedgerCommitter)
	return &LedgerMonitor{
		fetcher:      fetcher,
		classifier:   classifier,
		cursor:       cursorStore,
		outbox:       outboxStore,
		committer:    committer,
		backoff:      policy,
		clock:        clock,
		pollInterval: pollInterval,
		metrics:      m,
		log:          log,
		state:        StateFetchTip,
	}
}

func (lm *LedgerMonitor) State() MonitorState {
	return lm.state
}

// Run steps the monitor until ctx is cancelled or a fatal error occurs.
// Cancellation is not an error.
func (lm *LedgerMonitor) Run(ctx context.Context) error {
	lm.log.WithField("atomic_commit", lm.committer != nil).Info("Ledger monitor started")
	for {
		err := lm.Step(ctx)
		if ctx.Err() != nil {
			lm.log.Info("Ledger monitor stopped")
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Step performs exactly one state transition. It returns an error only when the
// monitor cannot continue: the cursor was never seeded or ctx is done.
func (lm *LedgerMonitor) Step(ctx context.Context) error {
	switch lm.state {
	case StateFetchTip:
		tip, err := lm.fetcher.CurrentHeight(ctx)
		if err != nil {
			lm.fail(err)
			return nil
		}
		lm.tip = tip
		lm.metrics.SetChainTip(tip)
		lm.state = StateCompare

	case StateCompare:
		processed, err := lm.cursor.Get(ctx)
		if errors.Is(err, cursor.ErrUninitialized) {
			return fmt.Errorf("ledger monitor: %w", err)
		}
		if err != nil {
			lm.fail(err)
			return nil
		}
		lm.processed = processed
		if processed >= lm.tip {
			lm.state = StateCaughtUp
		} else {
			lm.state = StateAdvance
		}

	case StateCaughtUp:
		lm.failures = 0
		if err := lm.clock.Sleep(ctx, lm.pollInterval); err != nil {
			return err
		}
		lm.state = StateFetchTip

	case StateAdvance:
		height := lm.processed + 1
		if err := lm.advance(ctx, height); err != nil {
			lm.fail(fmt.Errorf("processing ledger %d: %w", height, err))
			return nil
		}
		lm.failures = 0
		lm.state = StateCompare

	case StateBackoff:
		lm.failures++
		delay := lm.backoff.Delay(lm.failures)
		lm.log.WithFields(logrus.Fields{"attempt": lm.failures, "delay": delay}).Debug("Backing off")
		if err := lm.clock.Sleep(ctx, delay); err != nil {
			return err
		}
		lm.state = StateFetchTip

	default:
		return fmt.Errorf("ledger monitor in unknown state %s", lm.state)
	}
	return nil
}

func (lm *LedgerMonitor) advance(ctx context.Context, height uint64) error {
	envelopes, err := lm.fetcher.TransactionsFor(ctx, height)
	if err != nil {
		return err
	}
	notifications, err := lm.classifier.ClassifyAll(ctx, envelopes)
	if err != nil {
		return err
	}

	if lm.committer != nil {
		if err := lm.committer.CommitLedger(ctx, height, notifications); err != nil {
			return fmt.Errorf("committing ledger: %w", err)
		}
	} else {
		// enqueue first: a crash in between re-delivers, it never loses
		if err := lm.outbox.EnqueueBatch(ctx, notifications); err != nil {
			return fmt.Errorf("enqueueing notifications: %w", err)
		}
		if err := lm.cursor.Set(ctx, height); err != nil {
			return fmt.Errorf("setting cursor: %w", err)
		}
	}

	lm.metrics.SetProcessedLedger(height)
	lm.metrics.AddEnqueued(len(notifications))
	lm.log.WithFields(logrus.Fields{
		"ledger":        height,
		"transactions":  len(envelopes),
		"notifications": len(notifications),
	}).Info("Processed ledger")
	return nil
}

func (lm *LedgerMonitor) fail(err error) {
	lm.metrics.IncMonitorRetries()
	lm.log.WithError(err).WithField("from_state", lm.state.String()).Warn("Ledger monitor step failed")
	lm.state = StateBackoff
}

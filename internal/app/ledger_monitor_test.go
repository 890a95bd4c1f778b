package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stellar_notification_bot/internal/domain/cursor"
	"stellar_notification_bot/internal/domain/ledger"
	"stellar_notification_bot/internal/domain/outbox"
	"stellar_notification_bot/internal/infra/backoff"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type monitorFixture struct {
	api      *FakeLedgerAPI
	registry *FakeRegistry
	cursor   *FakeCursorStore
	outbox   outbox.Store
	clock    *FakeClock
	monitor  *LedgerMonitor
}

// newMonitorFixture serves ledgers processed+1..tip, each with one account merge from alice.
func newMonitorFixture(tip uint64, processed uint64, store func(*FakeCursorStore) outbox.Store) *monitorFixture {
	api := &FakeLedgerAPI{tip: tip, pages: map[uint64][][]string{}, failures: map[uint64]int{}}
	txs := map[string]*ledger.Transaction{}
	for h := processed + 1; h <= tip; h++ {
		key := fmt.Sprintf("env-%d", h)
		api.pages[h] = [][]string{{key}}
		txs[key] = &ledger.Transaction{
			Hash:       key,
			Source:     alice,
			Operations: []ledger.Operation{ledger.AccountMerge{Account: alice, Into: bob}},
		}
	}

	registry := NewFakeRegistry()
	registry.watch(1, true, alice)

	cursorStore := &FakeCursorStore{value: processed, seeded: true}
	outboxStore := store(cursorStore)
	clock := &FakeClock{}

	monitor := NewLedgerMonitor(
		NewLedgerFetcher(api),
		NewClassifier(&FakeDecoder{txs: txs}, registry, NewTinyPaymentFilter(true), FeeBumpSkip, m, testLogger()),
		cursorStore,
		outboxStore,
		backoff.Exponential{Initial: time.Second, Max: 8 * time.Second},
		clock,
		3*time.Second,
		m,
		testLogger(),
	)
	return &monitorFixture{api: api, registry: registry, cursor: cursorStore, outbox: outboxStore, clock: clock, monitor: monitor}
}

func plainOutbox(*FakeCursorStore) outbox.Store { return &FakeOutbox{} }

func stepUntil(t *testing.T, lm *LedgerMonitor, state MonitorState, maxSteps int) {
	t.Helper()
	for i := 0; i < maxSteps; i++ {
		require.NoError(t, lm.Step(context.Background()))
		if lm.State() == state {
			return
		}
	}
	t.Fatalf("monitor did not reach %s within %d steps, stuck in %s", state, maxSteps, lm.State())
}

func TestLedgerMonitor_ProcessesEveryLedgerInOrder(t *testing.T) {
	f := newMonitorFixture(103, 100, plainOutbox)

	stepUntil(t, f.monitor, StateCaughtUp, 20)

	assert.Equal(t, []uint64{101, 102, 103}, f.cursor.history)
	assert.Equal(t, []uint64{101, 102, 103}, f.api.calls)

	fifo := f.outbox.(*FakeOutbox)
	require.Len(t, fifo.items, 3)
	for i, n := range fifo.items {
		assert.Equal(t, fmt.Sprintf("env-%d", 101+i), n.TxHash)
	}

	// caught up: poll interval, then ask for the tip again
	require.NoError(t, f.monitor.Step(context.Background()))
	assert.Equal(t, StateFetchTip, f.monitor.State())
	assert.Equal(t, []time.Duration{3 * time.Second}, f.clock.sleeps)
}

func TestLedgerMonitor_FailedLedgerIsRetriedNotSkipped(t *testing.T) {
	f := newMonitorFixture(103, 100, plainOutbox)
	f.api.failures[102] = 2

	stepUntil(t, f.monitor, StateCaughtUp, 40)

	assert.Equal(t, []uint64{101, 102, 103}, f.cursor.history)
	assert.Equal(t, []uint64{101, 102, 102, 102, 103}, f.api.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.clock.sleeps)
}

func TestLedgerMonitor_EnqueueFailureLeavesCursor(t *testing.T) {
	f := newMonitorFixture(101, 100, plainOutbox)
	f.outbox.(*FakeOutbox).enqueueErr = errors.New("disk full")

	stepUntil(t, f.monitor, StateBackoff, 5)

	value, err := f.cursor.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), value)
	assert.Empty(t, f.cursor.history)
}

func TestLedgerMonitor_TipFailureBacksOff(t *testing.T) {
	f := newMonitorFixture(101, 100, plainOutbox)
	f.api.tipErr = errors.New("timeout")

	require.NoError(t, f.monitor.Step(context.Background()))
	assert.Equal(t, StateBackoff, f.monitor.State())
	require.NoError(t, f.monitor.Step(context.Background()))
	assert.Equal(t, StateFetchTip, f.monitor.State())
	assert.Equal(t, []time.Duration{time.Second}, f.clock.sleeps)
}

func TestLedgerMonitor_UninitializedCursorIsFatal(t *testing.T) {
	f := newMonitorFixture(101, 100, plainOutbox)
	f.cursor.seeded = false

	require.NoError(t, f.monitor.Step(context.Background()))
	err := f.monitor.Step(context.Background())
	assert.ErrorIs(t, err, cursor.ErrUninitialized)

	err = f.monitor.Run(context.Background())
	assert.ErrorIs(t, err, cursor.ErrUninitialized)
}

func TestLedgerMonitor_UsesAtomicCommitWhenAvailable(t *testing.T) {
	var committing *FakeCommittingOutbox
	f := newMonitorFixture(102, 100, func(c *FakeCursorStore) outbox.Store {
		committing = &FakeCommittingOutbox{cursor: c}
		return committing
	})

	stepUntil(t, f.monitor, StateCaughtUp, 20)

	assert.Equal(t, []uint64{101, 102}, committing.commits)
	assert.Equal(t, []uint64{101, 102}, f.cursor.history)
	assert.Len(t, committing.items, 2)
}

func TestLedgerMonitor_EmptyLedgerStillAdvances(t *testing.T) {
	f := newMonitorFixture(101, 100, plainOutbox)
	f.api.pages[101] = nil

	stepUntil(t, f.monitor, StateCaughtUp, 10)

	assert.Equal(t, []uint64{101}, f.cursor.history)
	assert.Empty(t, f.outbox.(*FakeOutbox).items)
}

func TestLedgerMonitor_RunStopsOnCancel(t *testing.T) {
	f := newMonitorFixture(100, 100, plainOutbox)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, f.monitor.Run(ctx))
}

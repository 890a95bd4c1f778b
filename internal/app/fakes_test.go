package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"stellar_notification_bot/internal/domain/cursor"
	"stellar_notification_bot/internal/domain/ledger"
	"stellar_notification_bot/internal/domain/outbox"
	"stellar_notification_bot/internal/domain/subscription"
	"stellar_notification_bot/internal/infra/metrics"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

var m = metrics.NewPipelineMetrics("test")

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(l)
}

// FakeLedgerAPI serves pages of envelopes per ledger. Pages are addressed by
// their index encoded as the page token.
type FakeLedgerAPI struct {
	tip      uint64
	tipErr   error
	pages    map[uint64][][]string
	failures map[uint64]int // remaining failing calls per ledger
	calls    []uint64
}

func (f *FakeLedgerAPI) CurrentHeight(_ context.Context) (uint64, error) {
	if f.tipErr != nil {
		return 0, f.tipErr
	}
	return f.tip, nil
}

func (f *FakeLedgerAPI) ListTransactions(_ context.Context, height uint64, pageToken string) ([]string, string, error) {
	f.calls = append(f.calls, height)
	if f.failures[height] > 0 {
		f.failures[height]--
		return nil, "", fmt.Errorf("ledger %d unavailable", height)
	}
	pages := f.pages[height]
	if len(pages) == 0 {
		return nil, "", nil
	}
	idx := 0
	if pageToken != "" {
		idx, _ = strconv.Atoi(pageToken)
	}
	next := ""
	if idx+1 < len(pages) {
		next = strconv.Itoa(idx + 1)
	}
	return pages[idx], next, nil
}

// FakeDecoder maps envelope strings to prepared transactions; anything else is malformed.
type FakeDecoder struct {
	txs map[string]*ledger.Transaction
}

func (f *FakeDecoder) Decode(envelopeXDR string) (*ledger.Transaction, error) {
	tx, ok := f.txs[envelopeXDR]
	if !ok {
		return nil, &ledger.DecodeError{Err: fmt.Errorf("unknown envelope %q", envelopeXDR)}
	}
	return tx, nil
}

// FakeRegistry is an in-memory subscription.Repository.
type FakeRegistry struct {
	mu       sync.Mutex
	subs     map[int64]*subscription.Subscription
	findErr  error
	disabled []int64
}

func NewFakeRegistry() *FakeRegistry {
	return &FakeRegistry{subs: make(map[int64]*subscription.Subscription)}
}

func (f *FakeRegistry) watch(chatID int64, enabled bool, accounts ...string) {
	f.subs[chatID] = &subscription.Subscription{ChatID: chatID, AccountIDs: accounts, Enabled: enabled}
}

func (f *FakeRegistry) EnsureChat(_ context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub, ok := f.subs[chatID]; ok {
		sub.Enabled = true
		return nil
	}
	f.subs[chatID] = &subscription.Subscription{ChatID: chatID, Enabled: true}
	return nil
}

func (f *FakeRegistry) Get(_ context.Context, chatID int64) (*subscription.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[chatID]
	if !ok {
		return nil, subscription.ErrNotFound
	}
	cp := *sub
	cp.AccountIDs = append([]string(nil), sub.AccountIDs...)
	return &cp, nil
}

func (f *FakeRegistry) AddAccount(_ context.Context, chatID int64, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[chatID]
	if !ok {
		sub = &subscription.Subscription{ChatID: chatID, Enabled: true}
		f.subs[chatID] = sub
	}
	for _, acc := range sub.AccountIDs {
		if acc == accountID {
			return nil
		}
	}
	sub.AccountIDs = append(sub.AccountIDs, accountID)
	return nil
}

func (f *FakeRegistry) RemoveAccount(_ context.Context, chatID int64, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[chatID]
	if !ok {
		return subscription.ErrNotFound
	}
	kept := sub.AccountIDs[:0]
	for _, acc := range sub.AccountIDs {
		if acc != accountID {
			kept = append(kept, acc)
		}
	}
	sub.AccountIDs = kept
	return nil
}

func (f *FakeRegistry) setEnabled(chatID int64, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[chatID]
	if !ok {
		return subscription.ErrNotFound
	}
	sub.Enabled = enabled
	return nil
}

func (f *FakeRegistry) Enable(_ context.Context, chatID int64) error {
	return f.setEnabled(chatID, true)
}

func (f *FakeRegistry) Disable(_ context.Context, chatID int64) error {
	f.disabled = append(f.disabled, chatID)
	return f.setEnabled(chatID, false)
}

// FindEnabledChatsWatching returns a chat once per matching account on purpose,
// so callers must deduplicate.
func (f *FakeRegistry) FindEnabledChatsWatching(_ context.Context, accountIDs []string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var ids []int64
	for _, account := range accountIDs {
		var matched []int64
		for chatID, sub := range f.subs {
			if !sub.Enabled {
				continue
			}
			for _, acc := range sub.AccountIDs {
				if acc == account {
					matched = append(matched, chatID)
				}
			}
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })
		ids = append(ids, matched...)
	}
	return ids, nil
}

type FakeCursorStore struct {
	value   uint64
	seeded  bool
	getErr  error
	setErr  error
	history []uint64
}

func (f *FakeCursorStore) Get(_ context.Context) (uint64, error) {
	if f.getErr != nil {
		return 0, f.getErr
	}
	if !f.seeded {
		return 0, cursor.ErrUninitialized
	}
	return f.value, nil
}

func (f *FakeCursorStore) Set(_ context.Context, ledger uint64) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.value, f.seeded = ledger, true
	f.history = append(f.history, ledger)
	return nil
}

func (f *FakeCursorStore) SeedIfAbsent(_ context.Context, ledger uint64) (bool, error) {
	if f.seeded {
		return false, nil
	}
	f.value, f.seeded = ledger, true
	return true, nil
}

// FakeOutbox is an in-memory FIFO outbox.Store.
type FakeOutbox struct {
	mu         sync.Mutex
	seq        int
	items      []*outbox.PendingNotification
	enqueueErr error
	removed    []string
}

func (f *FakeOutbox) EnqueueBatch(_ context.Context, ns []*outbox.PendingNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	for _, n := range ns {
		f.seq++
		n.ID = strconv.Itoa(f.seq)
		n.EnqueuedAt = time.Now()
		f.items = append(f.items, n)
	}
	return nil
}

func (f *FakeOutbox) PeekOldest(_ context.Context) (*outbox.PendingNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		return nil, outbox.ErrEmpty
	}
	return f.items[0], nil
}

func (f *FakeOutbox) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	for i, n := range f.items {
		if n.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *FakeOutbox) Len(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.items)), nil
}

// FakeCommittingOutbox moves the cursor together with the enqueue.
type FakeCommittingOutbox struct {
	FakeOutbox
	cursor  *FakeCursorStore
	commits []uint64
}

func (f *FakeCommittingOutbox) CommitLedger(ctx context.Context, height uint64, ns []*outbox.PendingNotification) error {
	if err := f.EnqueueBatch(ctx, ns); err != nil {
		return err
	}
	f.commits = append(f.commits, height)
	return f.cursor.Set(ctx, height)
}

// FakeClock records requested sleeps without waiting.
type FakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (f *FakeClock) Now() time.Time { return f.now }

func (f *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

type sentMessage struct {
	chatID  int64
	text    string
	options *telebot.SendOptions
}

// FakeTelegramClient returns queued errors per chat, nil once the queue is drained.
type FakeTelegramClient struct {
	errs     map[int64][]error
	sent     []sentMessage
	attempts map[int64]int
}

func (f *FakeTelegramClient) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if f.attempts == nil {
		f.attempts = make(map[int64]int)
	}
	f.attempts[chatID]++
	if queue := f.errs[chatID]; len(queue) > 0 {
		f.errs[chatID] = queue[1:]
		if queue[0] != nil {
			return queue[0]
		}
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, options: options})
	return nil
}

var errTransient = errors.New("connection reset by peer")

package pebbledb

import (
	"context"
	"testing"

	"stellar_notification_bot/internal/domain/cursor"
	"stellar_notification_bot/internal/domain/outbox"
	"stellar_notification_bot/internal/domain/subscription"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemStore(t *testing.T, fs vfs.FS) *Store {
	t.Helper()
	store, err := open("store", &pebble.Options{FS: fs})
	require.NoError(t, err)
	return store
}

func TestCursorRepository(t *testing.T) {
	store := openMemStore(t, vfs.NewMem())
	defer store.Close()
	repo := store.Cursor()
	ctx := context.Background()

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, cursor.ErrUninitialized)

	seeded, err := repo.SeedIfAbsent(ctx, 123)
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = repo.SeedIfAbsent(ctx, 999)
	require.NoError(t, err)
	assert.False(t, seeded)

	value, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(123), value)

	require.NoError(t, repo.Set(ctx, 124))
	value, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(124), value)
}

func TestOutboxRepository_FIFOAcrossBatches(t *testing.T) {
	store := openMemStore(t, vfs.NewMem())
	defer store.Close()
	repo := store.Outbox()
	ctx := context.Background()

	_, err := repo.PeekOldest(ctx)
	assert.ErrorIs(t, err, outbox.ErrEmpty)
	require.NoError(t, repo.EnqueueBatch(ctx, nil))

	first := []*outbox.PendingNotification{{ChatID: 1, Body: "a", TxHash: "h1"}, {ChatID: 2, Body: "b"}}
	require.NoError(t, repo.EnqueueBatch(ctx, first))
	require.NoError(t, repo.EnqueueBatch(ctx, []*outbox.PendingNotification{{ChatID: 1, Body: "c"}}))
	assert.Equal(t, "1", first[0].ID)
	assert.Equal(t, "2", first[1].ID)
	assert.False(t, first[0].EnqueuedAt.IsZero())

	n, err := repo.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	head, err := repo.PeekOldest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", head.Body)
	assert.Equal(t, "h1", head.TxHash)
	assert.Equal(t, int64(1), head.ChatID)

	for _, want := range []string{"a", "b", "c"} {
		head, err := repo.PeekOldest(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, head.Body)
		require.NoError(t, repo.Remove(ctx, head.ID))
		require.NoError(t, repo.Remove(ctx, head.ID))
	}
	_, err = repo.PeekOldest(ctx)
	assert.ErrorIs(t, err, outbox.ErrEmpty)
}

func TestOutboxRepository_CommitLedgerMovesCursor(t *testing.T) {
	store := openMemStore(t, vfs.NewMem())
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Outbox().CommitLedger(ctx, 50, []*outbox.PendingNotification{{ChatID: 1, Body: "x"}}))
	require.NoError(t, store.Outbox().CommitLedger(ctx, 51, nil))

	value, err := store.Cursor().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(51), value)

	n, err := store.Outbox().Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOutboxRepository_SequenceSurvivesReopen(t *testing.T) {
	fs := vfs.NewMem()
	ctx := context.Background()

	store := openMemStore(t, fs)
	require.NoError(t, store.Outbox().EnqueueBatch(ctx, []*outbox.PendingNotification{{Body: "old-1"}, {Body: "old-2"}}))
	require.NoError(t, store.Close())

	store = openMemStore(t, fs)
	defer store.Close()
	fresh := []*outbox.PendingNotification{{Body: "new"}}
	require.NoError(t, store.Outbox().EnqueueBatch(ctx, fresh))
	assert.Equal(t, "3", fresh[0].ID)

	head, err := store.Outbox().PeekOldest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old-1", head.Body)
}

func TestSubscriptionRepository(t *testing.T) {
	store := openMemStore(t, vfs.NewMem())
	defer store.Close()
	repo := store.Subscriptions()
	ctx := context.Background()

	_, err := repo.Get(ctx, 1)
	assert.ErrorIs(t, err, subscription.ErrNotFound)
	assert.ErrorIs(t, repo.Disable(ctx, 1), subscription.ErrNotFound)
	assert.ErrorIs(t, repo.RemoveAccount(ctx, 1, "GA"), subscription.ErrNotFound)

	require.NoError(t, repo.AddAccount(ctx, 1, "GA"))
	require.NoError(t, repo.AddAccount(ctx, 1, "GA"))
	require.NoError(t, repo.AddAccount(ctx, 1, "GB"))
	require.NoError(t, repo.AddAccount(ctx, 2, "GB"))
	require.NoError(t, repo.AddAccount(ctx, 3, "GA"))
	require.NoError(t, repo.Disable(ctx, 3))

	sub, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"GA", "GB"}, sub.AccountIDs)
	assert.True(t, sub.Enabled)

	chats, err := repo.FindEnabledChatsWatching(ctx, []string{"GB", "GA"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, chats)

	require.NoError(t, repo.RemoveAccount(ctx, 1, "GA"))
	require.NoError(t, repo.EnsureChat(ctx, 3))
	chats, err = repo.FindEnabledChatsWatching(ctx, []string{"GA"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, chats)

	// prefix of another account id must not match
	require.NoError(t, repo.AddAccount(ctx, 4, "GAB"))
	chats, err = repo.FindEnabledChatsWatching(ctx, []string{"GA"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, chats)
}

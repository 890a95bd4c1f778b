//go:build integration

package mongodb

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"stellar_notification_bot/internal/domain/cursor"
	"stellar_notification_bot/internal/domain/outbox"
	"stellar_notification_bot/internal/domain/subscription"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func openTestDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)

	db := client.Database(fmt.Sprintf("stellar_notification_bot_test_%d", time.Now().UnixNano()))
	require.NoError(t, EnsureIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestCursorRepository(t *testing.T) {
	repo := NewCursorRepository(openTestDatabase(t))
	ctx := context.Background()

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, cursor.ErrUninitialized)

	seeded, err := repo.SeedIfAbsent(ctx, 10)
	require.NoError(t, err)
	assert.True(t, seeded)
	seeded, err = repo.SeedIfAbsent(ctx, 20)
	require.NoError(t, err)
	assert.False(t, seeded)

	require.NoError(t, repo.Set(ctx, 11))
	value, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), value)
}

func TestOutboxRepository_FIFO(t *testing.T) {
	repo := NewOutboxRepository(openTestDatabase(t))
	ctx := context.Background()

	_, err := repo.PeekOldest(ctx)
	assert.ErrorIs(t, err, outbox.ErrEmpty)

	require.NoError(t, repo.EnqueueBatch(ctx, []*outbox.PendingNotification{
		{ChatID: 1, Body: "first"}, {ChatID: 2, Body: "second"},
	}))
	require.NoError(t, repo.EnqueueBatch(ctx, []*outbox.PendingNotification{{ChatID: 1, Body: "third"}}))

	n, err := repo.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for _, want := range []string{"first", "second", "third"} {
		head, err := repo.PeekOldest(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, head.Body)
		require.NoError(t, repo.Remove(ctx, head.ID))
	}
}

func TestSubscriptionRepository(t *testing.T) {
	repo := NewSubscriptionRepository(openTestDatabase(t))
	ctx := context.Background()

	assert.ErrorIs(t, repo.Enable(ctx, 1), subscription.ErrNotFound)

	require.NoError(t, repo.AddAccount(ctx, 1, "GA"))
	require.NoError(t, repo.AddAccount(ctx, 1, "GA"))
	require.NoError(t, repo.AddAccount(ctx, 2, "GB"))
	require.NoError(t, repo.AddAccount(ctx, 3, "GA"))
	require.NoError(t, repo.Disable(ctx, 3))

	sub, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"GA"}, sub.AccountIDs)
	assert.True(t, sub.Enabled)

	chats, err := repo.FindEnabledChatsWatching(ctx, []string{"GA", "GB"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, chats)

	require.NoError(t, repo.EnsureChat(ctx, 3))
	require.NoError(t, repo.RemoveAccount(ctx, 1, "GA"))
	chats, err = repo.FindEnabledChatsWatching(ctx, []string{"GA"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, chats)
}

package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistoryStore(t *testing.T) (*HistoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewHistoryStore(rdb, nil), mr
}

func TestHistoryStoreRoundTrip(t *testing.T) {
	store, _ := newTestHistoryStore(t)
	ctx := context.Background()

	history := []Message{
		{Role: "user", Content: "I need a checkup"},
		{Role: "assistant", Content: "What brings you in today?"},
	}
	require.NoError(t, store.Save(ctx, "conv-1", history))

	loaded, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, history, loaded)
}

func TestHistoryStoreUnknownSession(t *testing.T) {
	store, _ := newTestHistoryStore(t)

	loaded, err := store.Load(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestHistoryStoreExpires(t *testing.T) {
	store, mr := newTestHistoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "conv-1", []Message{{Role: "user", Content: "hi"}}))

	mr.FastForward(historyTTL + 1)

	loaded, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

package shared

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIdempotencyStoreRejectsReplay(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "req-1", "inventory"))
	require.ErrorIs(t, store.CheckAndInsert(ctx, "req-1", "inventory"), ErrIdempotencyConflict)
	require.NoError(t, store.CheckAndInsert(ctx, "req-1", "analytics"))

	require.NoError(t, store.Delete(ctx, "req-1", "inventory"))
	require.NoError(t, store.CheckAndInsert(ctx, "req-1", "inventory"))
}

func TestIdempotencyStoreRequiresKey(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewIdempotencyStore(client, 0)

	require.Error(t, store.CheckAndInsert(context.Background(), "", "inventory"))
	require.Error(t, store.CheckAndInsert(context.Background(), "k", ""))

	var nilStore *IdempotencyStore
	require.Error(t, nilStore.CheckAndInsert(context.Background(), "k", "inventory"))
	require.NoError(t, nilStore.Delete(context.Background(), "k", "inventory"))
}

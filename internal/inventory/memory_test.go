package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreTimestampsStrictlyIncrease(t *testing.T) {
	frozen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return frozen })
	ctx := context.Background()

	var last time.Time
	for i := 0; i < 5; i++ {
		entry, err := store.Append(ctx, LedgerEntry{ItemID: "a", Kind: KindAdded, QuantityDelta: 1})
		require.NoError(t, err)
		require.True(t, entry.CreatedAt.After(last))
		require.Equal(t, int64(i+1), entry.Seq)
		last = entry.CreatedAt
	}
}

func TestMemoryStoreListAllFilters(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		now = now.Add(time.Hour)
		_, err := store.Append(ctx, LedgerEntry{ItemID: "a", Kind: KindAdded, QuantityDelta: int64(i + 1)})
		require.NoError(t, err)
	}

	all, err := store.ListAll(ctx, LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, int64(4), all[0].QuantityDelta)

	limited, err := store.ListAll(ctx, LedgerFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)

	since, err := store.ListAll(ctx, LedgerFilter{Since: time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, since, 2)
	require.Equal(t, int64(3), since[1].QuantityDelta)
}

func TestMemoryStoreRejectsInvalidEntries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Append(ctx, LedgerEntry{ItemID: "a", Kind: Kind("moved")})
	require.Error(t, err)
	_, err = store.Append(ctx, LedgerEntry{ItemID: "a", Kind: KindAdded, QuantityDelta: -1})
	require.Error(t, err)

	_, err = store.CreateItem(ctx, Item{Name: "", Quantity: 1})
	require.Error(t, err)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	before := int64(3)
	entry, err := store.Append(ctx, LedgerEntry{ItemID: "a", Kind: KindAdded, QuantityDelta: 1, QuantityBefore: &before})
	require.NoError(t, err)
	*entry.QuantityBefore = 99
	before = 42

	entries, err := store.ListForItem(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, int64(3), *entries[0].QuantityBefore)
}

func TestMemoryStoreItemsNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	first, err := store.CreateItem(ctx, Item{Name: "first", Quantity: 1})
	require.NoError(t, err)
	second, err := store.CreateItem(ctx, Item{Name: "second", Quantity: 1})
	require.NoError(t, err)

	items, err := store.ListItems(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{second.ID, first.ID}, []string{items[0].ID, items[1].ID})

	require.NoError(t, store.DeleteItem(ctx, first.ID))
	require.ErrorIs(t, store.DeleteItem(ctx, first.ID), ErrItemNotFound)
}

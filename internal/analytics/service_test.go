package analytics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/inventory"
)

type stubItems struct {
	items []inventory.Item
	err   error
	calls atomic.Int32
}

func (s *stubItems) ListItems(ctx context.Context) ([]inventory.Item, error) {
	s.calls.Add(1)
	return s.items, s.err
}

type stubLedger struct {
	entries []inventory.LedgerEntry
	err     error
}

// ListAll mimics the store contract: entries are kept newest first.
func (s *stubLedger) ListAll(ctx context.Context, filter inventory.LedgerFilter) ([]inventory.LedgerEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]inventory.LedgerEntry, 0)
	for _, e := range s.entries {
		if !filter.Since.IsZero() && e.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, ttl)
}

func TestSummarize(t *testing.T) {
	items := &stubItems{items: []inventory.Item{
		{ID: "a", Name: "Bolt", Quantity: 5, ReorderThreshold: 10, Category: "Hardware", Price: price("0.25")},
		{ID: "b", Name: "Nut", Quantity: 0, ReorderThreshold: 0, Category: "Hardware"},
		{ID: "c", Name: "Glue", Quantity: 40, ReorderThreshold: 5, Price: price("3.10")},
	}}
	svc := NewService(items, &stubLedger{}, nil, nil)

	summary, err := svc.Summarize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, summary.TotalItems)
	require.Equal(t, int64(45), summary.TotalQuantity)
	require.True(t, decimal.RequireFromString("125.25").Equal(summary.TotalValue), summary.TotalValue.String())

	require.Len(t, summary.LowStockItems, 2)
	require.Equal(t, "b", summary.LowStockItems[0].ID)
	require.Equal(t, "a", summary.LowStockItems[1].ID)
	require.Len(t, summary.OutOfStockItems, 1)
	require.Equal(t, "b", summary.OutOfStockItems[0].ID)

	require.Equal(t, map[string]int64{"Hardware": 5, UncategorizedBucket: 40}, summary.Categories)
}

func TestSummarizeEmpty(t *testing.T) {
	svc := NewService(&stubItems{}, &stubLedger{}, nil, nil)
	summary, err := svc.Summarize(context.Background())
	require.NoError(t, err)
	require.Zero(t, summary.TotalItems)
	require.NotNil(t, summary.LowStockItems)
	require.True(t, summary.TotalValue.IsZero())
}

func TestActivityCountsReportsEveryKind(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	ledger := &stubLedger{entries: []inventory.LedgerEntry{
		{Kind: inventory.KindAdded, QuantityDelta: 2, CreatedAt: now.Add(-time.Hour)},
		{Kind: inventory.KindAdded, QuantityDelta: 1, CreatedAt: now.Add(-2 * time.Hour)},
		{Kind: inventory.KindCreated, QuantityDelta: 4, CreatedAt: now.Add(-48 * time.Hour)},
	}}
	svc := NewService(&stubItems{}, ledger, nil, nil)

	counts, err := svc.ActivityCounts(context.Background(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, counts, len(inventory.Kinds))
	require.Equal(t, 2, counts[inventory.KindAdded])
	require.Equal(t, 0, counts[inventory.KindCreated])
	require.Equal(t, 0, counts[inventory.KindDeleted])

	all, err := svc.ActivityCounts(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, all[inventory.KindCreated])
}

func TestDailySeries(t *testing.T) {
	day1 := time.Date(2024, 5, 8, 23, 30, 0, 0, time.UTC)
	day3 := time.Date(2024, 5, 10, 1, 0, 0, 0, time.UTC)
	ledger := &stubLedger{entries: []inventory.LedgerEntry{
		{Kind: inventory.KindRemoved, QuantityDelta: 3, CreatedAt: day3},
		{Kind: inventory.KindAdded, QuantityDelta: 7, CreatedAt: day3.Add(-time.Minute)},
		{Kind: inventory.KindUpdated, CreatedAt: day1.Add(24 * time.Hour)},
		{Kind: inventory.KindCreated, QuantityDelta: 50, CreatedAt: day1.Add(time.Minute)},
		{Kind: inventory.KindAdded, QuantityDelta: 2, CreatedAt: day1},
	}}
	svc := NewService(&stubItems{}, ledger, nil, nil)

	series, err := svc.DailySeries(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, []DailyPoint{
		{Date: "2024-05-08", Added: 2},
		{Date: "2024-05-10", Added: 7, Removed: 3},
	}, series)
}

func TestDailySeriesWithoutActivityIsEmpty(t *testing.T) {
	ledger := &stubLedger{entries: []inventory.LedgerEntry{
		{Kind: inventory.KindUpdated, CreatedAt: time.Now()},
	}}
	svc := NewService(&stubItems{}, ledger, nil, nil)

	series, err := svc.DailySeries(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NotNil(t, series)
	require.Empty(t, series)
}

func TestOverviewPropagatesErrors(t *testing.T) {
	boom := errors.New("store offline")
	svc := NewService(&stubItems{}, &stubLedger{err: boom}, nil, nil)
	_, err := svc.Overview(context.Background(), time.Now())
	require.ErrorIs(t, err, boom)
}

func TestOverviewCachesUntilBump(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	items := &stubItems{items: []inventory.Item{{ID: "a", Name: "Bolt", Quantity: 3, ReorderThreshold: 1}}}
	ledger := &stubLedger{}
	for i := 0; i < 12; i++ {
		ledger.entries = append(ledger.entries, inventory.LedgerEntry{
			ID: "e", Kind: inventory.KindAdded, QuantityDelta: 1, CreatedAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}
	svc := NewService(items, ledger, newTestCache(t, time.Minute), nil)
	ctx := context.Background()

	first, err := svc.Overview(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(3), first.Summary.TotalQuantity)
	require.Len(t, first.Recent, 10)
	require.Equal(t, 12, first.Activity[inventory.KindAdded])
	require.Equal(t, int32(1), items.calls.Load())

	_, err = svc.Overview(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int32(1), items.calls.Load())

	items.items[0].Quantity = 9
	svc.LedgerAppended(ctx, inventory.LedgerEntry{ItemID: "a"})

	refreshed, err := svc.Overview(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(9), refreshed.Summary.TotalQuantity)
	require.Equal(t, int32(2), items.calls.Load())
}

func TestOverviewWithoutTTLSkipsCache(t *testing.T) {
	items := &stubItems{}
	svc := NewService(items, &stubLedger{}, newTestCache(t, 0), nil)
	ctx := context.Background()

	_, err := svc.Overview(ctx, time.Now())
	require.NoError(t, err)
	_, err = svc.Overview(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, int32(2), items.calls.Load())
}

func TestCacheVersionBump(t *testing.T) {
	cache := newTestCache(t, time.Minute)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "analytics", "overview")
	require.NoError(t, err)
	require.Equal(t, "analytics:overview:1", key)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, "analytics", "overview")
	require.NoError(t, err)
	require.Equal(t, "analytics:overview:2", key)

	var nilCache *Cache
	key, err = nilCache.BuildKey(ctx, "a", "b")
	require.NoError(t, err)
	require.Equal(t, "a:b", key)
	require.NoError(t, nilCache.Bump(ctx))
}

package analytics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/stockledger/internal/inventory"
)

// UncategorizedBucket groups items without a category.
const UncategorizedBucket = "Uncategorized"

const (
	overviewActivityWindow = 30 * 24 * time.Hour
	overviewDailyWindow    = 7 * 24 * time.Hour
	overviewRecentEntries  = 10
	dateLayout             = "2006-01-02"
)

// ItemReader exposes current item state.
type ItemReader interface {
	ListItems(ctx context.Context) ([]inventory.Item, error)
}

// LedgerReader exposes the ledger feed.
type LedgerReader interface {
	ListAll(ctx context.Context, filter inventory.LedgerFilter) ([]inventory.LedgerEntry, error)
}

// StockItem is the projection of an item listed in alerts.
type StockItem struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Category         string `json:"category,omitempty"`
	Quantity         int64  `json:"quantity"`
	ReorderThreshold int64  `json:"reorderThreshold"`
}

// Summary aggregates current item state.
type Summary struct {
	TotalItems      int              `json:"totalItems"`
	TotalQuantity   int64            `json:"totalQuantity"`
	TotalValue      decimal.Decimal  `json:"totalValue"`
	LowStockItems   []StockItem      `json:"lowStockItems"`
	OutOfStockItems []StockItem      `json:"outOfStockItems"`
	Categories      map[string]int64 `json:"categories"`
}

// DailyPoint holds the added and removed quantity for one UTC date.
type DailyPoint struct {
	Date    string `json:"date"`
	Added   int64  `json:"added"`
	Removed int64  `json:"removed"`
}

// Overview bundles the dashboard payload.
type Overview struct {
	Summary     Summary                 `json:"summary"`
	Activity    map[inventory.Kind]int  `json:"activity"`
	Daily       []DailyPoint            `json:"daily"`
	Recent      []inventory.LedgerEntry `json:"recent"`
	GeneratedAt time.Time               `json:"generatedAt"`
}

// Service rebuilds analytics from the item and ledger stores. Every call
// rescans; only Overview may be served from the cache.
type Service struct {
	items  ItemReader
	ledger LedgerReader
	cache  *Cache
	logger *slog.Logger
}

// NewService wires the readers with an optional Cache.
func NewService(items ItemReader, ledger LedgerReader, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{items: items, ledger: ledger, cache: cache, logger: logger}
}

// Summarize computes totals, alerts and the category breakdown.
func (s *Service) Summarize(ctx context.Context) (Summary, error) {
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		TotalItems:      len(items),
		TotalValue:      decimal.Zero,
		LowStockItems:   make([]StockItem, 0),
		OutOfStockItems: make([]StockItem, 0),
		Categories:      make(map[string]int64),
	}
	for _, item := range items {
		summary.TotalQuantity += item.Quantity
		if item.Price != nil {
			summary.TotalValue = summary.TotalValue.Add(item.Price.Mul(decimal.NewFromInt(item.Quantity)))
		}
		if item.LowStock() {
			summary.LowStockItems = append(summary.LowStockItems, project(item))
		}
		if item.Quantity == 0 {
			summary.OutOfStockItems = append(summary.OutOfStockItems, project(item))
		}
		category := item.Category
		if category == "" {
			category = UncategorizedBucket
		}
		summary.Categories[category] += item.Quantity
	}
	sortStock(summary.LowStockItems)
	sortStock(summary.OutOfStockItems)
	return summary, nil
}

// ActivityCounts counts ledger entries per kind since windowStart. Every kind
// is present in the result. A zero windowStart means all time.
func (s *Service) ActivityCounts(ctx context.Context, windowStart time.Time) (map[inventory.Kind]int, error) {
	entries, err := s.ledger.ListAll(ctx, inventory.LedgerFilter{Since: windowStart})
	if err != nil {
		return nil, err
	}
	counts := make(map[inventory.Kind]int, len(inventory.Kinds))
	for _, kind := range inventory.Kinds {
		counts[kind] = 0
	}
	for _, entry := range entries {
		counts[entry.Kind]++
	}
	return counts, nil
}

// DailySeries sums added and removed quantities per UTC date since
// windowStart, oldest date first. Dates without activity are omitted.
func (s *Service) DailySeries(ctx context.Context, windowStart time.Time) ([]DailyPoint, error) {
	entries, err := s.ledger.ListAll(ctx, inventory.LedgerFilter{Since: windowStart})
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]*DailyPoint)
	for _, entry := range entries {
		if entry.Kind != inventory.KindAdded && entry.Kind != inventory.KindRemoved {
			continue
		}
		date := entry.CreatedAt.UTC().Format(dateLayout)
		point, ok := byDate[date]
		if !ok {
			point = &DailyPoint{Date: date}
			byDate[date] = point
		}
		if entry.Kind == inventory.KindAdded {
			point.Added += entry.QuantityDelta
		} else {
			point.Removed += entry.QuantityDelta
		}
	}
	series := make([]DailyPoint, 0, len(byDate))
	for _, point := range byDate {
		series = append(series, *point)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return series, nil
}

// Overview assembles the dashboard: the summary, 30-day activity, the 7-day
// daily series and the most recent entries.
func (s *Service) Overview(ctx context.Context, now time.Time) (Overview, error) {
	key, err := s.cache.BuildKey(ctx, "analytics", "overview")
	if err != nil {
		s.logger.Warn("analytics: cache unavailable", slog.Any("error", err))
		return s.buildOverview(ctx, now)
	}
	var (
		out       Overview
		loaderErr error
	)
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		overview, err := s.buildOverview(ctx, now)
		loaderErr = err
		return overview, err
	})
	if err != nil {
		if loaderErr != nil {
			return Overview{}, loaderErr
		}
		s.logger.Warn("analytics: cache unavailable", slog.Any("error", err))
		return s.buildOverview(ctx, now)
	}
	return out, nil
}

func (s *Service) buildOverview(ctx context.Context, now time.Time) (Overview, error) {
	now = now.UTC()
	out := Overview{GeneratedAt: now}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := s.Summarize(gctx)
		out.Summary = summary
		return err
	})
	g.Go(func() error {
		counts, err := s.ActivityCounts(gctx, now.Add(-overviewActivityWindow))
		out.Activity = counts
		return err
	})
	g.Go(func() error {
		series, err := s.DailySeries(gctx, now.Add(-overviewDailyWindow))
		out.Daily = series
		return err
	})
	g.Go(func() error {
		recent, err := s.ledger.ListAll(gctx, inventory.LedgerFilter{Limit: overviewRecentEntries})
		out.Recent = recent
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}

// LedgerAppended invalidates cached analytics after a committed mutation.
func (s *Service) LedgerAppended(ctx context.Context, entry inventory.LedgerEntry) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("analytics: cache bump failed",
			slog.String("item_id", entry.ItemID),
			slog.Any("error", err),
		)
	}
}

func project(item inventory.Item) StockItem {
	return StockItem{
		ID:               item.ID,
		Name:             item.Name,
		Category:         item.Category,
		Quantity:         item.Quantity,
		ReorderThreshold: item.ReorderThreshold,
	}
}

// sortStock orders alerts by quantity, then name.
func sortStock(items []StockItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Quantity != items[j].Quantity {
			return items[i].Quantity < items[j].Quantity
		}
		return items[i].Name < items[j].Name
	})
}

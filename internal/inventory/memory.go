package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps items and the ledger in process memory. It implements
// ItemStore and LedgerStore but not Transactor: each call is atomic on its own.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]memoryItem
	ledger  []LedgerEntry
	itemSeq int64
	seq     int64
	lastAt  time.Time
	now     func() time.Time
}

type memoryItem struct {
	Item
	ord int64
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), now: time.Now}
}

// WithClock overrides the clock used for timestamps.
func (m *MemoryStore) WithClock(fn func() time.Time) *MemoryStore {
	if fn != nil {
		m.now = fn
	}
	return m
}

// CreateItem stores a new item with a fresh identity.
func (m *MemoryStore) CreateItem(ctx context.Context, item Item) (Item, error) {
	if err := ValidateNew(item); err != nil {
		return Item{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	at := m.tick()
	item.ID = uuid.NewString()
	item.Price = clonePrice(item.Price)
	item.CreatedAt = at
	item.UpdatedAt = at
	m.itemSeq++
	m.items[item.ID] = memoryItem{Item: item, ord: m.itemSeq}
	return cloneItem(item), nil
}

// GetItem returns the item or ErrItemNotFound.
func (m *MemoryStore) GetItem(ctx context.Context, id string) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return cloneItem(stored.Item), nil
}

// ListItems returns all items, newest first.
func (m *MemoryStore) ListItems(ctx context.Context) ([]Item, error) {
	m.mu.RLock()
	rows := make([]memoryItem, 0, len(m.items))
	for _, stored := range m.items {
		rows = append(rows, stored)
	}
	m.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ord > rows[j].ord
	})
	out := make([]Item, len(rows))
	for i, row := range rows {
		out[i] = cloneItem(row.Item)
	}
	return out, nil
}

// UpdateItem applies patch to the stored item.
func (m *MemoryStore) UpdateItem(ctx context.Context, id string, patch ItemPatch) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	next, _, err := patch.Apply(stored.Item)
	if err != nil {
		return Item{}, err
	}
	next.UpdatedAt = m.tick()
	stored.Item = next
	m.items[id] = stored
	return cloneItem(next), nil
}

// DeleteItem removes the item.
func (m *MemoryStore) DeleteItem(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrItemNotFound
	}
	delete(m.items, id)
	return nil
}

// Append assigns identity, sequence and a strictly increasing timestamp.
func (m *MemoryStore) Append(ctx context.Context, entry LedgerEntry) (LedgerEntry, error) {
	if !entry.Kind.Valid() {
		return LedgerEntry{}, &ValidationError{Field: "kind", Reason: "is unknown"}
	}
	if entry.QuantityDelta < 0 {
		return LedgerEntry{}, &ValidationError{Field: "quantityDelta", Reason: "must be >= 0"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := uuid.NewV7()
	if err != nil {
		return LedgerEntry{}, &StorageError{Op: "append ledger", Err: err}
	}
	m.seq++
	entry.ID = id.String()
	entry.Seq = m.seq
	entry.CreatedAt = m.tick()
	entry.QuantityBefore = cloneInt64(entry.QuantityBefore)
	m.ledger = append(m.ledger, entry)
	return cloneEntry(entry), nil
}

// ListAll returns entries newest first.
func (m *MemoryStore) ListAll(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LedgerEntry, 0)
	for i := len(m.ledger) - 1; i >= 0; i-- {
		entry := m.ledger[i]
		if !filter.Since.IsZero() && entry.CreatedAt.Before(filter.Since) {
			break
		}
		out = append(out, cloneEntry(entry))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// ListForItem returns the item's entries newest first, including entries of a
// deleted item.
func (m *MemoryStore) ListForItem(ctx context.Context, itemID string) ([]LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LedgerEntry, 0)
	for i := len(m.ledger) - 1; i >= 0; i-- {
		if m.ledger[i].ItemID == itemID {
			out = append(out, cloneEntry(m.ledger[i]))
		}
	}
	return out, nil
}

// tick returns a timestamp strictly after the previous one. Callers hold mu.
func (m *MemoryStore) tick() time.Time {
	at := m.now().UTC().Truncate(time.Microsecond)
	if !at.After(m.lastAt) {
		at = m.lastAt.Add(time.Microsecond)
	}
	m.lastAt = at
	return at
}

func cloneItem(item Item) Item {
	item.Price = clonePrice(item.Price)
	return item
}

func cloneEntry(entry LedgerEntry) LedgerEntry {
	entry.QuantityBefore = cloneInt64(entry.QuantityBefore)
	return entry
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

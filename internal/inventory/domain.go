package inventory

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a ledger entry.
type Kind string

const (
	// KindCreated records item creation with its opening quantity.
	KindCreated Kind = "created"
	// KindAdded records a quantity increase.
	KindAdded Kind = "added"
	// KindRemoved records a quantity decrease.
	KindRemoved Kind = "removed"
	// KindUpdated records a change that left quantity untouched.
	KindUpdated Kind = "updated"
	// KindDeleted records item removal with its closing quantity.
	KindDeleted Kind = "deleted"
)

// Kinds lists every ledger kind in reporting order.
var Kinds = []Kind{KindAdded, KindRemoved, KindUpdated, KindCreated, KindDeleted}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCreated, KindAdded, KindRemoved, KindUpdated, KindDeleted:
		return true
	}
	return false
}

// Item is the current state of a tracked inventory record.
type Item struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description,omitempty"`
	Quantity         int64            `json:"quantity"`
	Category         string           `json:"category,omitempty"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	ReorderThreshold int64            `json:"reorderThreshold"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// LowStock reports whether quantity is at or below the reorder threshold.
func (i Item) LowStock() bool {
	return i.Quantity <= i.ReorderThreshold
}

// LedgerEntry is an immutable record of one quantity-affecting event. ItemID is a
// weak reference; the item may no longer exist.
type LedgerEntry struct {
	ID             string    `json:"id"`
	Seq            int64     `json:"-"`
	ItemID         string    `json:"itemId"`
	ItemName       string    `json:"itemName"`
	Kind           Kind      `json:"kind"`
	QuantityDelta  int64     `json:"quantityDelta"`
	QuantityBefore *int64    `json:"quantityBefore,omitempty"`
	ActorID        string    `json:"actorId"`
	ActorName      string    `json:"actorName"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SignedDelta returns the entry's contribution to the item's quantity.
func (e LedgerEntry) SignedDelta() int64 {
	switch e.Kind {
	case KindCreated, KindAdded:
		return e.QuantityDelta
	case KindRemoved, KindDeleted:
		return -e.QuantityDelta
	}
	return 0
}

// LedgerFilter narrows ListAll. Zero values mean unbounded.
type LedgerFilter struct {
	Limit int
	Since time.Time
}

// ItemInput describes a request to create an item.
type ItemInput struct {
	Name             string           `json:"name" validate:"required,max=200"`
	Description      string           `json:"description" validate:"max=2000"`
	Quantity         *int64           `json:"quantity" validate:"required,gte=0"`
	Category         string           `json:"category" validate:"max=100"`
	Price            *decimal.Decimal `json:"price"`
	ReorderThreshold int64            `json:"reorderThreshold" validate:"gte=0"`
}

// ItemPatch carries the fields to change. Nil fields are left as they are.
type ItemPatch struct {
	Name             *string          `json:"name" validate:"omitempty,max=200"`
	Description      *string          `json:"description" validate:"omitempty,max=2000"`
	Quantity         *int64           `json:"quantity" validate:"omitempty,gte=0"`
	Category         *string          `json:"category" validate:"omitempty,max=100"`
	Price            *decimal.Decimal `json:"price"`
	ReorderThreshold *int64           `json:"reorderThreshold" validate:"omitempty,gte=0"`
}

func (in ItemInput) normalize() ItemInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	return in
}

// item converts a validated input into a new Item without identity.
func (in ItemInput) item() Item {
	item := Item{
		Name:             in.Name,
		Description:      in.Description,
		Category:         in.Category,
		Price:            clonePrice(in.Price),
		ReorderThreshold: in.ReorderThreshold,
	}
	if in.Quantity != nil {
		item.Quantity = *in.Quantity
	}
	return item
}

// ValidateNew checks the invariants every stored item must satisfy.
func ValidateNew(item Item) error {
	if strings.TrimSpace(item.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if item.Quantity < 0 {
		return &ValidationError{Field: "quantity", Reason: "must be >= 0"}
	}
	if item.Price != nil && item.Price.IsNegative() {
		return &ValidationError{Field: "price", Reason: "must be >= 0"}
	}
	if item.ReorderThreshold < 0 {
		return &ValidationError{Field: "reorderThreshold", Reason: "must be >= 0"}
	}
	return nil
}

// Apply merges the patch into item. It reports whether any non-quantity field
// changed and fails when the result would break an item invariant.
func (p ItemPatch) Apply(item Item) (Item, bool, error) {
	next := item
	next.Price = clonePrice(item.Price)
	changed := false

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return item, false, &ValidationError{Field: "name", Reason: "is required"}
		}
		if name != item.Name {
			next.Name = name
			changed = true
		}
	}
	if p.Description != nil {
		desc := strings.TrimSpace(*p.Description)
		if desc != item.Description {
			next.Description = desc
			changed = true
		}
	}
	if p.Category != nil {
		category := strings.TrimSpace(*p.Category)
		if category != item.Category {
			next.Category = category
			changed = true
		}
	}
	if p.Price != nil {
		if p.Price.IsNegative() {
			return item, false, &ValidationError{Field: "price", Reason: "must be >= 0"}
		}
		if item.Price == nil || !item.Price.Equal(*p.Price) {
			next.Price = clonePrice(p.Price)
			changed = true
		}
	}
	if p.ReorderThreshold != nil {
		if *p.ReorderThreshold < 0 {
			return item, false, &ValidationError{Field: "reorderThreshold", Reason: "must be >= 0"}
		}
		if *p.ReorderThreshold != item.ReorderThreshold {
			next.ReorderThreshold = *p.ReorderThreshold
			changed = true
		}
	}
	if p.Quantity != nil {
		if *p.Quantity < 0 {
			return item, false, &ValidationError{Field: "quantity", Reason: "must be >= 0"}
		}
		next.Quantity = *p.Quantity
	}
	return next, changed, nil
}

func clonePrice(p *decimal.Decimal) *decimal.Decimal {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func int64Ptr(v int64) *int64 {
	return &v
}

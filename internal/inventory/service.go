package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// ItemStore holds current-state item records. It never writes ledger entries.
type ItemStore interface {
	CreateItem(ctx context.Context, item Item) (Item, error)
	GetItem(ctx context.Context, id string) (Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	UpdateItem(ctx context.Context, id string, patch ItemPatch) (Item, error)
	DeleteItem(ctx context.Context, id string) error
}

// LedgerStore is the append-only log of item events.
type LedgerStore interface {
	Append(ctx context.Context, entry LedgerEntry) (LedgerEntry, error)
	ListAll(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error)
	ListForItem(ctx context.Context, itemID string) ([]LedgerEntry, error)
}

// Transactor runs fn with stores bound to a single storage transaction. Either
// every write made through them commits or none does.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, items ItemStore, ledger LedgerStore) error) error
}

const (
	defaultLockTimeout  = 5 * time.Second
	defaultHistoryLimit = 100
)

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// RejectOverRemoval makes AdjustBy fail instead of clamping at zero.
	RejectOverRemoval bool
	LockTimeout       time.Duration
	HistoryLimit      int
}

// ServiceDeps wires the collaborators of Service. Tx and Locker are optional.
type ServiceDeps struct {
	Items  ItemStore
	Ledger LedgerStore
	Tx     Transactor
	Locker shared.Locker
	Logger *slog.Logger
	Hooks  []LedgerHook
}

// Service is the stock mutator: every quantity change is paired with exactly one
// ledger entry, serialised per item.
type Service struct {
	items    ItemStore
	ledger   LedgerStore
	tx       Transactor
	locker   shared.Locker
	logger   *slog.Logger
	hooks    []LedgerHook
	validate *validator.Validate
	cfg      ServiceConfig
}

// NewService builds Service.
func NewService(deps ServiceDeps, cfg ServiceConfig) *Service {
	if deps.Locker == nil {
		deps.Locker = shared.NewLocalLocker()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaultLockTimeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &Service{
		items:    deps.Items,
		ledger:   deps.Ledger,
		tx:       deps.Tx,
		locker:   deps.Locker,
		logger:   deps.Logger,
		hooks:    deps.Hooks,
		validate: validator.New(),
		cfg:      cfg,
	}
}

// Create stores a new item and its "created" ledger entry.
func (s *Service) Create(ctx context.Context, input ItemInput, actor shared.Actor) (Item, error) {
	input = input.normalize()
	if err := s.validateStruct(input); err != nil {
		return Item{}, err
	}
	item := input.item()
	if err := ValidateNew(item); err != nil {
		return Item{}, err
	}

	var (
		created Item
		entry   LedgerEntry
	)
	err := s.within(ctx, func(ctx context.Context, items ItemStore, ledger LedgerStore) error {
		stored, err := items.CreateItem(ctx, item)
		if err != nil {
			return err
		}
		appended, err := ledger.Append(ctx, LedgerEntry{
			ItemID:         stored.ID,
			ItemName:       stored.Name,
			Kind:           KindCreated,
			QuantityDelta:  stored.Quantity,
			QuantityBefore: int64Ptr(0),
			ActorID:        actor.ID,
			ActorName:      actor.Name,
		})
		if err != nil {
			return &IntegrityError{Op: "create", ItemID: stored.ID, Err: err}
		}
		created, entry = stored, appended
		return nil
	})
	if err != nil {
		return Item{}, s.fail("create", "", err)
	}
	s.notify(ctx, entry)
	return created, nil
}

// Mutate merges patch into the item and records the classified ledger entry.
func (s *Service) Mutate(ctx context.Context, id string, patch ItemPatch, actor shared.Actor) (Item, error) {
	if err := s.validateStruct(patch); err != nil {
		return Item{}, err
	}
	return s.mutate(ctx, "mutate", id, actor, func(Item) (ItemPatch, error) {
		return patch, nil
	})
}

// AdjustBy shifts the quantity by delta, saturating at zero unless
// RejectOverRemoval is set.
func (s *Service) AdjustBy(ctx context.Context, id string, delta int64, actor shared.Actor) (Item, error) {
	return s.mutate(ctx, "adjust", id, actor, func(current Item) (ItemPatch, error) {
		if delta > 0 && current.Quantity > math.MaxInt64-delta {
			return ItemPatch{}, &ValidationError{Field: "delta", Reason: "overflows quantity"}
		}
		target := current.Quantity + delta
		if target < 0 {
			if s.cfg.RejectOverRemoval {
				return ItemPatch{}, &ValidationError{
					Field:  "delta",
					Reason: fmt.Sprintf("would drive quantity below zero (have %d, requested %d)", current.Quantity, delta),
				}
			}
			s.logger.Warn("inventory: adjustment clamped at zero",
				slog.String("item_id", current.ID),
				slog.Int64("quantity", current.Quantity),
				slog.Int64("delta", delta),
			)
			target = 0
		}
		return ItemPatch{Quantity: &target}, nil
	})
}

// Delete records a "deleted" entry carrying the closing quantity, then removes
// the item.
func (s *Service) Delete(ctx context.Context, id string, actor shared.Actor) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	unlock, err := s.lockItem(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	var entry LedgerEntry
	err = s.within(ctx, func(ctx context.Context, items ItemStore, ledger LedgerStore) error {
		current, err := items.GetItem(ctx, id)
		if err != nil {
			return err
		}
		appended, err := ledger.Append(ctx, LedgerEntry{
			ItemID:        current.ID,
			ItemName:      current.Name,
			Kind:          KindDeleted,
			QuantityDelta: current.Quantity,
			ActorID:       actor.ID,
			ActorName:     actor.Name,
		})
		if err != nil {
			return err
		}
		if err := items.DeleteItem(ctx, id); err != nil {
			return &IntegrityError{Op: "delete", ItemID: id, Err: err}
		}
		entry = appended
		return nil
	})
	if err != nil {
		return s.fail("delete", id, err)
	}
	s.notify(ctx, entry)
	return nil
}

// Get returns a single item.
func (s *Service) Get(ctx context.Context, id string) (Item, error) {
	if strings.TrimSpace(id) == "" {
		return Item{}, &ValidationError{Field: "id", Reason: "is required"}
	}
	return s.items.GetItem(ctx, id)
}

// List returns every item, newest first.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	return s.items.ListItems(ctx)
}

// ListHistory returns ledger entries newest first. With an empty itemID it
// returns the most recent entries across all items, bounded by HistoryLimit.
func (s *Service) ListHistory(ctx context.Context, itemID string) ([]LedgerEntry, error) {
	if strings.TrimSpace(itemID) == "" {
		return s.ledger.ListAll(ctx, LedgerFilter{Limit: s.cfg.HistoryLimit})
	}
	return s.ledger.ListForItem(ctx, itemID)
}

// ListLedger returns entries matching filter, newest first.
func (s *Service) ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	if filter.Limit < 0 {
		return nil, &ValidationError{Field: "limit", Reason: "must be >= 0"}
	}
	return s.ledger.ListAll(ctx, filter)
}

func (s *Service) mutate(ctx context.Context, op, id string, actor shared.Actor, plan func(current Item) (ItemPatch, error)) (Item, error) {
	if strings.TrimSpace(id) == "" {
		return Item{}, &ValidationError{Field: "id", Reason: "is required"}
	}
	unlock, err := s.lockItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	defer unlock()

	var (
		updated Item
		entry   LedgerEntry
	)
	err = s.within(ctx, func(ctx context.Context, items ItemStore, ledger LedgerStore) error {
		current, err := items.GetItem(ctx, id)
		if err != nil {
			return err
		}
		patch, err := plan(current)
		if err != nil {
			return err
		}
		next, otherChanged, err := patch.Apply(current)
		if err != nil {
			return err
		}
		kind, delta, changed := Classify(current.Quantity, next.Quantity, otherChanged)
		result := current
		if changed {
			result, err = items.UpdateItem(ctx, id, patch)
			if err != nil {
				return err
			}
		}
		appended, err := ledger.Append(ctx, LedgerEntry{
			ItemID:         id,
			ItemName:       result.Name,
			Kind:           kind,
			QuantityDelta:  delta,
			QuantityBefore: int64Ptr(current.Quantity),
			ActorID:        actor.ID,
			ActorName:      actor.Name,
		})
		if err != nil {
			if changed {
				return &IntegrityError{Op: op, ItemID: id, Err: err}
			}
			return err
		}
		updated, entry = result, appended
		return nil
	})
	if err != nil {
		return Item{}, s.fail(op, id, err)
	}
	s.notify(ctx, entry)
	return updated, nil
}

// within runs fn inside a storage transaction when one is available. A
// transaction rolls back both halves together, so an integrity error raised
// inside it degrades to its cause.
func (s *Service) within(ctx context.Context, fn func(ctx context.Context, items ItemStore, ledger LedgerStore) error) error {
	if s.tx == nil {
		return fn(ctx, s.items, s.ledger)
	}
	err := s.tx.WithTx(ctx, fn)
	var integrity *IntegrityError
	if errors.As(err, &integrity) {
		return integrity.Err
	}
	return err
}

func (s *Service) lockItem(ctx context.Context, id string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()
	return s.locker.Lock(lockCtx, shared.ItemLockKey(id))
}

func (s *Service) validateStruct(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Field: lowerFirst(fe.Field()), Reason: describeTag(fe)}
		}
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}

func (s *Service) fail(op, id string, err error) error {
	var integrity *IntegrityError
	if errors.As(err, &integrity) {
		s.logger.Error("inventory: ledger integrity fault",
			slog.String("op", op),
			slog.String("item_id", integrity.ItemID),
			slog.Any("error", integrity.Err),
		)
		return err
	}
	if errors.Is(err, shared.ErrStorageUnavailable) {
		s.logger.Warn("inventory: storage failure", slog.String("op", op), slog.String("item_id", id), slog.Any("error", err))
	}
	return err
}

func (s *Service) notify(ctx context.Context, entry LedgerEntry) {
	for _, hook := range s.hooks {
		if hook != nil {
			hook.LedgerAppended(ctx, entry)
		}
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag()
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

package inventory

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/platform/db"
)

//go:embed schema/postgres.sql
var postgresSchema string

// Repository persists items and the ledger in PostgreSQL. Inside WithTx item
// reads take a row lock.
type Repository struct {
	pool *pgxpool.Pool
	pgStore
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, pgStore: pgStore{q: pool}}
}

// Migrate creates the tables when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, postgresSchema); err != nil {
		return &StorageError{Op: "migrate", Err: err}
	}
	return nil
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, ItemStore, LedgerStore) error) error {
	if r == nil || r.pool == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		store := &pgStore{q: tx, forUpdate: true}
		return fn(ctx, store, store)
	})
}

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgStore struct {
	q         pgQuerier
	forUpdate bool
}

const pgItemColumns = `id::text, name, description, quantity, category, price::text, reorder_threshold, created_at, updated_at`

const pgLedgerColumns = `seq, id::text, item_id::text, item_name, kind, quantity_delta, quantity_before, actor_id, actor_name, created_at`

func (s *pgStore) CreateItem(ctx context.Context, item Item) (Item, error) {
	if err := ValidateNew(item); err != nil {
		return Item{}, err
	}
	row := s.q.QueryRow(ctx, `INSERT INTO inventory_items (id, name, description, quantity, category, price, reorder_threshold)
VALUES ($1,$2,$3,$4,$5,$6::numeric,$7)
RETURNING `+pgItemColumns,
		uuid.NewString(), item.Name, item.Description, item.Quantity, item.Category, priceParam(item.Price), item.ReorderThreshold)
	created, err := scanPgItem(row)
	if err != nil {
		return Item{}, pgError("create item", err)
	}
	return created, nil
}

func (s *pgStore) GetItem(ctx context.Context, id string) (Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Item{}, ErrItemNotFound
	}
	query := `SELECT ` + pgItemColumns + ` FROM inventory_items WHERE id=$1`
	if s.forUpdate {
		query += ` FOR UPDATE`
	}
	item, err := scanPgItem(s.q.QueryRow(ctx, query, id))
	if err != nil {
		return Item{}, pgError("get item", err)
	}
	return item, nil
}

func (s *pgStore) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := s.q.Query(ctx, `SELECT `+pgItemColumns+` FROM inventory_items ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, pgError("list items", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		item, err := scanPgItem(rows)
		if err != nil {
			return nil, pgError("list items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("list items", err)
	}
	return items, nil
}

func (s *pgStore) UpdateItem(ctx context.Context, id string, patch ItemPatch) (Item, error) {
	current, err := s.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	next, _, err := patch.Apply(current)
	if err != nil {
		return Item{}, err
	}
	row := s.q.QueryRow(ctx, `UPDATE inventory_items
SET name=$2, description=$3, quantity=$4, category=$5, price=$6::numeric, reorder_threshold=$7, updated_at=clock_timestamp()
WHERE id=$1
RETURNING `+pgItemColumns,
		id, next.Name, next.Description, next.Quantity, next.Category, priceParam(next.Price), next.ReorderThreshold)
	updated, err := scanPgItem(row)
	if err != nil {
		return Item{}, pgError("update item", err)
	}
	return updated, nil
}

func (s *pgStore) DeleteItem(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrItemNotFound
	}
	tag, err := s.q.Exec(ctx, `DELETE FROM inventory_items WHERE id=$1`, id)
	if err != nil {
		return pgError("delete item", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *pgStore) Append(ctx context.Context, entry LedgerEntry) (LedgerEntry, error) {
	if !entry.Kind.Valid() {
		return LedgerEntry{}, &ValidationError{Field: "kind", Reason: "is unknown"}
	}
	id, err := uuid.NewV7()
	if err != nil {
		return LedgerEntry{}, &StorageError{Op: "append ledger", Err: err}
	}
	row := s.q.QueryRow(ctx, `INSERT INTO inventory_ledger (id, item_id, item_name, kind, quantity_delta, quantity_before, actor_id, actor_name)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING `+pgLedgerColumns,
		id.String(), entry.ItemID, entry.ItemName, string(entry.Kind), entry.QuantityDelta, entry.QuantityBefore, entry.ActorID, entry.ActorName)
	appended, err := scanPgEntry(row)
	if err != nil {
		return LedgerEntry{}, pgError("append ledger", err)
	}
	return appended, nil
}

func (s *pgStore) ListAll(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	query := `SELECT ` + pgLedgerColumns + ` FROM inventory_ledger
WHERE ($1::timestamptz IS NULL OR created_at >= $1)
ORDER BY created_at DESC, seq DESC`
	args := []any{nullTime(filter.Since)}
	if filter.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, filter.Limit)
	}
	return s.queryEntries(ctx, "list ledger", query, args...)
}

func (s *pgStore) ListForItem(ctx context.Context, itemID string) ([]LedgerEntry, error) {
	if _, err := uuid.Parse(itemID); err != nil {
		return []LedgerEntry{}, nil
	}
	return s.queryEntries(ctx, "list item ledger", `SELECT `+pgLedgerColumns+` FROM inventory_ledger
WHERE item_id=$1
ORDER BY created_at DESC, seq DESC`, itemID)
}

func (s *pgStore) queryEntries(ctx context.Context, op, query string, args ...any) ([]LedgerEntry, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, pgError(op, err)
	}
	defer rows.Close()

	entries := make([]LedgerEntry, 0)
	for rows.Next() {
		entry, err := scanPgEntry(rows)
		if err != nil {
			return nil, pgError(op, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError(op, err)
	}
	return entries, nil
}

func scanPgItem(row pgx.Row) (Item, error) {
	var (
		item  Item
		price *string
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Quantity, &item.Category, &price, &item.ReorderThreshold, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Item{}, err
	}
	parsed, err := parsePrice(price)
	if err != nil {
		return Item{}, err
	}
	item.Price = parsed
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}

func scanPgEntry(row pgx.Row) (LedgerEntry, error) {
	var (
		entry LedgerEntry
		kind  string
	)
	if err := row.Scan(&entry.Seq, &entry.ID, &entry.ItemID, &entry.ItemName, &kind, &entry.QuantityDelta, &entry.QuantityBefore, &entry.ActorID, &entry.ActorName, &entry.CreatedAt); err != nil {
		return LedgerEntry{}, err
	}
	entry.Kind = Kind(kind)
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, nil
}

// pgError maps driver failures onto the domain taxonomy.
func pgError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrItemNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23514", "23502":
			field := pgErr.ColumnName
			if field == "" {
				field = pgErr.ConstraintName
			}
			return &ValidationError{Field: field, Reason: "violates constraint: " + pgErr.Message}
		}
	}
	return &StorageError{Op: op, Err: err}
}

func priceParam(p *decimal.Decimal) *string {
	if p == nil {
		return nil
	}
	s := p.String()
	return &s
}

func parsePrice(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

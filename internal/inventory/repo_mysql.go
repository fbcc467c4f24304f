package inventory

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/odyssey-erp/stockledger/internal/platform/db"
)

//go:embed schema/mysql.sql
var mysqlSchema string

// mysqlCheckViolation is ER_CHECK_CONSTRAINT_VIOLATED.
const mysqlCheckViolation = 3819

// MySQLRepository persists items and the ledger in MySQL 8.
type MySQLRepository struct {
	handle *sql.DB
	sqlStore
}

// NewMySQLRepository constructs MySQLRepository.
func NewMySQLRepository(handle *sql.DB) *MySQLRepository {
	return &MySQLRepository{handle: handle, sqlStore: sqlStore{q: handle, now: time.Now}}
}

// Migrate creates the tables when missing. The driver runs one statement per
// call, so the schema is split on semicolons.
func (r *MySQLRepository) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(mysqlSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := r.handle.ExecContext(ctx, stmt); err != nil {
			return &StorageError{Op: "migrate", Err: err}
		}
	}
	return nil
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *MySQLRepository) WithTx(ctx context.Context, fn func(context.Context, ItemStore, LedgerStore) error) error {
	if r == nil || r.handle == nil {
		return errors.New("inventory mysql repository not initialised")
	}
	return db.WithSQLTx(ctx, r.handle, func(tx *sql.Tx) error {
		store := &sqlStore{q: tx, forUpdate: true, now: r.now}
		return fn(ctx, store, store)
	})
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlStore struct {
	q         sqlQuerier
	forUpdate bool
	now       func() time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

const sqlItemColumns = `id, name, description, quantity, category, price, reorder_threshold, created_at, updated_at`

const sqlLedgerColumns = `seq, id, item_id, item_name, kind, quantity_delta, quantity_before, actor_id, actor_name, created_at`

func (s *sqlStore) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *sqlStore) CreateItem(ctx context.Context, item Item) (Item, error) {
	if err := ValidateNew(item); err != nil {
		return Item{}, err
	}
	at := s.stamp()
	item.ID = uuid.NewString()
	item.Price = clonePrice(item.Price)
	item.CreatedAt = at
	item.UpdatedAt = at
	_, err := s.q.ExecContext(ctx, `INSERT INTO inventory_items (`+sqlItemColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		item.ID, item.Name, item.Description, item.Quantity, item.Category, priceParam(item.Price), item.ReorderThreshold, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return Item{}, mysqlError("create item", err)
	}
	return item, nil
}

func (s *sqlStore) GetItem(ctx context.Context, id string) (Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Item{}, ErrItemNotFound
	}
	query := `SELECT ` + sqlItemColumns + ` FROM inventory_items WHERE id=?`
	if s.forUpdate {
		query += ` FOR UPDATE`
	}
	item, err := scanSQLItem(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return Item{}, mysqlError("get item", err)
	}
	return item, nil
}

func (s *sqlStore) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+sqlItemColumns+` FROM inventory_items ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, mysqlError("list items", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		item, err := scanSQLItem(rows)
		if err != nil {
			return nil, mysqlError("list items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, mysqlError("list items", err)
	}
	return items, nil
}

func (s *sqlStore) UpdateItem(ctx context.Context, id string, patch ItemPatch) (Item, error) {
	current, err := s.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	next, _, err := patch.Apply(current)
	if err != nil {
		return Item{}, err
	}
	next.UpdatedAt = s.stamp()
	_, err = s.q.ExecContext(ctx, `UPDATE inventory_items
SET name=?, description=?, quantity=?, category=?, price=?, reorder_threshold=?, updated_at=?
WHERE id=?`,
		next.Name, next.Description, next.Quantity, next.Category, priceParam(next.Price), next.ReorderThreshold, next.UpdatedAt, id)
	if err != nil {
		return Item{}, mysqlError("update item", err)
	}
	return next, nil
}

func (s *sqlStore) DeleteItem(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrItemNotFound
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM inventory_items WHERE id=?`, id)
	if err != nil {
		return mysqlError("delete item", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mysqlError("delete item", err)
	}
	if affected == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *sqlStore) Append(ctx context.Context, entry LedgerEntry) (LedgerEntry, error) {
	if !entry.Kind.Valid() {
		return LedgerEntry{}, &ValidationError{Field: "kind", Reason: "is unknown"}
	}
	id, err := uuid.NewV7()
	if err != nil {
		return LedgerEntry{}, &StorageError{Op: "append ledger", Err: err}
	}
	entry.ID = id.String()
	entry.CreatedAt = s.stamp()
	entry.QuantityBefore = cloneInt64(entry.QuantityBefore)
	res, err := s.q.ExecContext(ctx, `INSERT INTO inventory_ledger (id, item_id, item_name, kind, quantity_delta, quantity_before, actor_id, actor_name, created_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		entry.ID, entry.ItemID, entry.ItemName, string(entry.Kind), entry.QuantityDelta, entry.QuantityBefore, entry.ActorID, entry.ActorName, entry.CreatedAt)
	if err != nil {
		return LedgerEntry{}, mysqlError("append ledger", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return LedgerEntry{}, mysqlError("append ledger", err)
	}
	entry.Seq = seq
	return entry, nil
}

func (s *sqlStore) ListAll(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	var (
		clauses []string
		args    []any
	)
	query := `SELECT ` + sqlLedgerColumns + ` FROM inventory_ledger`
	if !filter.Since.IsZero() {
		clauses = append(clauses, `created_at >= ?`)
		args = append(args, filter.Since.UTC())
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	return s.queryEntries(ctx, "list ledger", query, args...)
}

func (s *sqlStore) ListForItem(ctx context.Context, itemID string) ([]LedgerEntry, error) {
	if _, err := uuid.Parse(itemID); err != nil {
		return []LedgerEntry{}, nil
	}
	return s.queryEntries(ctx, "list item ledger", `SELECT `+sqlLedgerColumns+` FROM inventory_ledger
WHERE item_id=?
ORDER BY created_at DESC, seq DESC`, itemID)
}

func (s *sqlStore) queryEntries(ctx context.Context, op, query string, args ...any) ([]LedgerEntry, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mysqlError(op, err)
	}
	defer rows.Close()

	entries := make([]LedgerEntry, 0)
	for rows.Next() {
		entry, err := scanSQLEntry(rows)
		if err != nil {
			return nil, mysqlError(op, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mysqlError(op, err)
	}
	return entries, nil
}

func scanSQLItem(row rowScanner) (Item, error) {
	var (
		item  Item
		price sql.NullString
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Quantity, &item.Category, &price, &item.ReorderThreshold, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Item{}, err
	}
	if price.Valid {
		parsed, err := parsePrice(&price.String)
		if err != nil {
			return Item{}, err
		}
		item.Price = parsed
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}

func scanSQLEntry(row rowScanner) (LedgerEntry, error) {
	var (
		entry  LedgerEntry
		kind   string
		before sql.NullInt64
	)
	if err := row.Scan(&entry.Seq, &entry.ID, &entry.ItemID, &entry.ItemName, &kind, &entry.QuantityDelta, &before, &entry.ActorID, &entry.ActorName, &entry.CreatedAt); err != nil {
		return LedgerEntry{}, err
	}
	entry.Kind = Kind(kind)
	if before.Valid {
		entry.QuantityBefore = int64Ptr(before.Int64)
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, nil
}

func mysqlError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrItemNotFound
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlCheckViolation {
		return &ValidationError{Reason: "violates constraint: " + myErr.Message}
	}
	return &StorageError{Op: op, Err: err}
}

// Package orderstore persists orders, their pending and done action
// lists, and operator-facing notes in the local SQLite database.
//
// It is the storage side of actionqueue.OrderStore. Action lists are kept
// as JSON columns on the order row so one UPDATE replaces a whole list.
package orderstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/database"
)

// DefaultStatus is given to orders created without a status.
const DefaultStatus = "processing"

// ErrOrderExists is returned by CreateOrder for a duplicate reference.
var ErrOrderExists = errors.New("orderstore: order already exists")

// Order is a stored order with its decoded action lists.
type Order struct {
	Ref           string
	PaymentMethod string
	Status        string
	Pending       []actionqueue.ActionRecord
	Done          []actionqueue.ActionRecord
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Note is an operator-visible history entry on an order.
type Note struct {
	ID        int64     `json:"id"`
	OrderRef  string    `json:"order_ref"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFilter narrows ListOrders. Zero fields match everything.
type ListFilter struct {
	PaymentMethod string
	Status        string
	PendingOnly   bool
	Limit         int
}

// Store is a SQLite-backed order store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the store at the default database path.
func Open() (*Store, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, err
	}
	return OpenAt(path)
}

// OpenAt opens the store at path, creating the schema if needed.
func OpenAt(path string) (*Store, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	return database.Migrate(ctx, s.db, "orderstore",
		`CREATE TABLE IF NOT EXISTS orders (
			ref             TEXT    PRIMARY KEY,
			payment_method  TEXT    NOT NULL,
			status          TEXT    NOT NULL,
			pending_actions TEXT    NOT NULL DEFAULT '[]',
			done_actions    TEXT    NOT NULL DEFAULT '[]',
			has_pending     INTEGER NOT NULL DEFAULT 0,
			created_at      TEXT    NOT NULL,
			updated_at      TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_pending ON orders(payment_method, has_pending, ref)`,
		`CREATE TABLE IF NOT EXISTS order_notes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			order_ref  TEXT    NOT NULL REFERENCES orders(ref) ON DELETE CASCADE,
			body       TEXT    NOT NULL,
			created_at TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_notes_ref ON order_notes(order_ref, id)`,
		`CREATE TABLE IF NOT EXISTS order_locks (
			order_ref  TEXT    PRIMARY KEY,
			holder     TEXT    NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
	)
}

// Close releases database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func notFound(ref string) error {
	return fmt.Errorf("orderstore: order %s: %w", ref, actionqueue.ErrOrderNotFound)
}

// CreateOrder inserts a new order with empty action lists.
func (s *Store) CreateOrder(ctx context.Context, ref, paymentMethod, status string) error {
	if status == "" {
		status = DefaultStatus
	}
	ts := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (ref, payment_method, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ref) DO NOTHING`,
		ref, paymentMethod, status, ts, ts)
	if err != nil {
		return fmt.Errorf("orderstore: insert failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrOrderExists, ref)
	}
	return nil
}

const orderColumns = `ref, payment_method, status, pending_actions, done_actions, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*Order, error) {
	var o Order
	var pending, done, createdStr, updatedStr string
	if err := row.Scan(&o.Ref, &o.PaymentMethod, &o.Status, &pending, &done, &createdStr, &updatedStr); err != nil {
		return nil, err
	}
	var err error
	if o.Pending, err = actionqueue.DecodeRecords([]byte(pending)); err != nil {
		return nil, fmt.Errorf("orderstore: order %s pending list: %w", o.Ref, err)
	}
	if o.Done, err = actionqueue.DecodeRecords([]byte(done)); err != nil {
		return nil, fmt.Errorf("orderstore: order %s done list: %w", o.Ref, err)
	}
	o.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	o.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return &o, nil
}

// GetOrder returns the order with the given reference.
func (s *Store) GetOrder(ctx context.Context, ref string) (*Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE ref = ?`, ref)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("orderstore: query failed: %w", err)
	}
	return o, nil
}

// ListOrders returns orders matching f, ordered by reference.
func (s *Store) ListOrders(ctx context.Context, f ListFilter) ([]Order, error) {
	var (
		where []string
		args  []any
	)
	if f.PaymentMethod != "" {
		where = append(where, "payment_method = ?")
		args = append(args, f.PaymentMethod)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.PendingOnly {
		where = append(where, "has_pending = 1")
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ref"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orderstore: query failed: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("orderstore: scan failed: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// Notes returns the notes of an order, oldest first.
func (s *Store) Notes(ctx context.Context, ref string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_ref, body, created_at FROM order_notes
		WHERE order_ref = ? ORDER BY id`, ref)
	if err != nil {
		return nil, fmt.Errorf("orderstore: query failed: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		var createdStr string
		if err := rows.Scan(&n.ID, &n.OrderRef, &n.Body, &createdStr); err != nil {
			return nil, fmt.Errorf("orderstore: scan failed: %w", err)
		}
		n.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// PaymentMethod implements actionqueue.OrderStore.
func (s *Store) PaymentMethod(ctx context.Context, ref string) (string, error) {
	var method string
	err := s.db.QueryRowContext(ctx, `SELECT payment_method FROM orders WHERE ref = ?`, ref).Scan(&method)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(ref)
	}
	if err != nil {
		return "", fmt.Errorf("orderstore: query failed: %w", err)
	}
	return method, nil
}

// LoadPending implements actionqueue.OrderStore.
func (s *Store) LoadPending(ctx context.Context, ref string) ([]actionqueue.ActionRecord, error) {
	return s.loadList(ctx, ref, "pending_actions")
}

// LoadDone implements actionqueue.OrderStore.
func (s *Store) LoadDone(ctx context.Context, ref string) ([]actionqueue.ActionRecord, error) {
	return s.loadList(ctx, ref, "done_actions")
}

// column is one of a fixed set of names, never user input.
func (s *Store) loadList(ctx context.Context, ref, column string) ([]actionqueue.ActionRecord, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT `+column+` FROM orders WHERE ref = ?`, ref).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("orderstore: query failed: %w", err)
	}
	records, err := actionqueue.DecodeRecords([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("orderstore: order %s: %w", ref, err)
	}
	return records, nil
}

// SavePending implements actionqueue.OrderStore.
func (s *Store) SavePending(ctx context.Context, ref string, records []actionqueue.ActionRecord) error {
	raw, err := actionqueue.EncodeRecords(records)
	if err != nil {
		return err
	}
	hasPending := 0
	if len(records) > 0 {
		hasPending = 1
	}
	return s.update(ctx, ref,
		`UPDATE orders SET pending_actions = ?, has_pending = ?, updated_at = ? WHERE ref = ?`,
		string(raw), hasPending, s.timestamp(), ref)
}

// SaveDone implements actionqueue.OrderStore.
func (s *Store) SaveDone(ctx context.Context, ref string, records []actionqueue.ActionRecord) error {
	raw, err := actionqueue.EncodeRecords(records)
	if err != nil {
		return err
	}
	return s.update(ctx, ref,
		`UPDATE orders SET done_actions = ?, updated_at = ? WHERE ref = ?`,
		string(raw), s.timestamp(), ref)
}

// SaveLists implements actionqueue.ListSaver. Both columns change in a
// single UPDATE, so a record is never visible on both lists.
func (s *Store) SaveLists(ctx context.Context, ref string, pending, done []actionqueue.ActionRecord) error {
	rawPending, err := actionqueue.EncodeRecords(pending)
	if err != nil {
		return err
	}
	rawDone, err := actionqueue.EncodeRecords(done)
	if err != nil {
		return err
	}
	hasPending := 0
	if len(pending) > 0 {
		hasPending = 1
	}
	return s.update(ctx, ref, `
		UPDATE orders SET pending_actions = ?, done_actions = ?, has_pending = ?, updated_at = ?
		WHERE ref = ?`,
		string(rawPending), string(rawDone), hasPending, s.timestamp(), ref)
}

// SetStatus implements actionqueue.OrderStore.
func (s *Store) SetStatus(ctx context.Context, ref, status string) error {
	return s.update(ctx, ref,
		`UPDATE orders SET status = ?, updated_at = ? WHERE ref = ?`,
		status, s.timestamp(), ref)
}

// AppendNote implements actionqueue.OrderStore.
func (s *Store) AppendNote(ctx context.Context, ref, text string) error {
	return s.update(ctx, ref, `
		INSERT INTO order_notes (order_ref, body, created_at)
		SELECT ref, ?, ? FROM orders WHERE ref = ?`,
		text, s.timestamp(), ref)
}

func (s *Store) update(ctx context.Context, ref, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("orderstore: update failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(ref)
	}
	return nil
}

// ListPendingOrders implements actionqueue.OrderStore. It pages by
// reference: pass the last reference of the previous page as afterRef.
func (s *Store) ListPendingOrders(ctx context.Context, paymentMethod, afterRef string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ref FROM orders
		WHERE payment_method = ? AND has_pending = 1 AND ref > ?
		ORDER BY ref LIMIT ?`,
		paymentMethod, afterRef, limit)
	if err != nil {
		return nil, fmt.Errorf("orderstore: query failed: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("orderstore: scan failed: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

var (
	_ actionqueue.OrderStore = (*Store)(nil)
	_ actionqueue.ListSaver  = (*Store)(nil)
)

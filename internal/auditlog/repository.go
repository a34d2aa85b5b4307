// Package auditlog keeps a local history of CLI commands and of every
// remote attempt the action queue makes, for operators diagnosing a
// stuck order.
package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nathanbeddoewebdev/payq/internal/actionqueue"
	"nathanbeddoewebdev/payq/internal/database"
)

// Repository defines the persistence interface for audit entries.
type Repository interface {
	Save(entry *AuditEntry) error
	List(limit int) ([]AuditEntry, error)
	ListByCommand(command string, limit int) ([]AuditEntry, error)
	ListByOrder(orderRef string, limit int) ([]AuditEntry, error)
	ListAttempts(orderRef string, limit int) ([]AuditEntry, error)
	Prune(olderThan time.Duration) (int64, error)
	Close() error
}

// SQLiteRepository implements Repository backed by a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// Open creates or opens the audit repository at the default path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("auditlog: %w", err)
	}
	return OpenAt(path)
}

// OpenAt creates or opens a SQLite database at the given path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("auditlog: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := database.Migrate(context.Background(), db, "auditlog",
		`CREATE TABLE IF NOT EXISTS audit_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   TEXT    NOT NULL,
			command     TEXT    NOT NULL,
			args        TEXT    NOT NULL DEFAULT '',
			source      TEXT    NOT NULL DEFAULT '',
			order_ref   TEXT    NOT NULL DEFAULT '',
			kind        TEXT    NOT NULL DEFAULT '',
			attempt     INTEGER NOT NULL DEFAULT 0,
			outcome     TEXT    NOT NULL DEFAULT '',
			detail      TEXT    NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_command ON audit_log(command)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_order ON audit_log(order_ref, timestamp)`,
	); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// Save inserts a new audit entry.
func (r *SQLiteRepository) Save(entry *AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	result, err := r.db.Exec(`
		INSERT INTO audit_log (timestamp, command, args, source, order_ref, kind, attempt, outcome, detail, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.UTC().Format(time.RFC3339Nano), entry.Command, entry.Args, entry.Trigger,
		entry.OrderRef, entry.Kind, entry.Attempt, entry.Outcome, entry.Detail, entry.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("auditlog: insert failed: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("auditlog: failed to get last insert ID: %w", err)
	}
	entry.ID = id
	return nil
}

// RecordAttempt implements actionqueue.AttemptRecorder.
func (r *SQLiteRepository) RecordAttempt(ctx context.Context, a actionqueue.Attempt) error {
	meta := MetadataFromContext(ctx)
	entry := &AuditEntry{
		Timestamp:  a.StartedAt.UTC(),
		Command:    "remote " + string(a.Kind),
		Trigger:    meta.Trigger,
		OrderRef:   a.OrderRef,
		Kind:       string(a.Kind),
		Attempt:    a.FailedCount + 1,
		Outcome:    OutcomeSuccess,
		DurationMs: a.Duration.Milliseconds(),
	}
	if a.Err != nil {
		entry.Outcome = OutcomeError
		entry.Detail = SanitizeDetail(a.Err.Error())
	}
	return r.Save(entry)
}

const selectColumns = `
	SELECT id, timestamp, command, args, source, order_ref, kind, attempt, outcome, detail, duration_ms
	FROM audit_log`

// List returns the most recent n audit entries.
func (r *SQLiteRepository) List(limit int) ([]AuditEntry, error) {
	return r.query(selectColumns+` ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
}

// ListByCommand returns the most recent n audit entries for a command.
func (r *SQLiteRepository) ListByCommand(command string, limit int) ([]AuditEntry, error) {
	return r.query(selectColumns+` WHERE command = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, command, limit)
}

// ListByOrder returns the most recent n audit entries for an order.
func (r *SQLiteRepository) ListByOrder(orderRef string, limit int) ([]AuditEntry, error) {
	return r.query(selectColumns+` WHERE order_ref = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, orderRef, limit)
}

// ListAttempts returns the most recent n remote attempts for an order,
// leaving out CLI commands that named it.
func (r *SQLiteRepository) ListAttempts(orderRef string, limit int) ([]AuditEntry, error) {
	return r.query(selectColumns+` WHERE order_ref = ? AND kind != '' ORDER BY timestamp DESC, id DESC LIMIT ?`, orderRef, limit)
}

func (r *SQLiteRepository) query(q string, args ...any) ([]AuditEntry, error) {
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("auditlog: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Prune deletes entries older than the given duration.
func (r *SQLiteRepository) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	result, err := r.db.Exec(`DELETE FROM audit_log WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("auditlog: delete failed: %w", err)
	}
	return result.RowsAffected()
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanRows(rows *sql.Rows) ([]AuditEntry, error) {
	var entries []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		var timestampStr string
		err := rows.Scan(
			&entry.ID, &timestampStr, &entry.Command, &entry.Args, &entry.Trigger,
			&entry.OrderRef, &entry.Kind, &entry.Attempt, &entry.Outcome, &entry.Detail, &entry.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("auditlog: scan failed: %w", err)
		}
		entry.Timestamp, _ = time.Parse(time.RFC3339Nano, timestampStr)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

var (
	_ Repository                  = (*SQLiteRepository)(nil)
	_ actionqueue.AttemptRecorder = (*SQLiteRepository)(nil)
)

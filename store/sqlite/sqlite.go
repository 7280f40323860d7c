/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface the portal needs using SQLite. In
  production the same schema runs on PostgreSQL with only minor dialect
  differences.

INTERFACES IMPLEMENTED:
  benefits.VoucherStore:      Issued vouchers
  benefits.CatalogStore:      Benefit definitions
  benefits.EmployeeDirectory: Employee records
  selfservice.Store:          Self-service requests
  audit.Log:                  Append-only audit trail

KEY TABLES:
  employees:             Directory, including termination date
  benefits:              Catalog definitions (value stored as decimal text)
  vouchers:              One row per issued voucher, snapshots inline
  selfservice_requests:  Requests and their single review
  audit_log:             Who did what when

CONSTRAINTS DOING REAL WORK:
  - vouchers.code UNIQUE: a colliding code is retried with a fresh one
  - vouchers.idempotency_key UNIQUE: resubmissions are refused per item
  - vouchers.benefit_id REFERENCES benefits(id): no dangling benefit
  - selfservice_requests review update is guarded by status = 'pending'

TIME STORAGE:
  All timestamps are stored in UTC with a fixed-width layout so that
  string comparison in SQL orders them correctly.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/benefits.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - benefits/store.go, selfservice/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
)

// timeLayout is fixed-width so lexical order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// maxCodeAttempts bounds the retry loop on voucher code collisions.
const maxCodeAttempts = 5

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	now        func() time.Time
	codeSource io.Reader
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employees (directory)
	CREATE TABLE IF NOT EXISTS employees (
		employee_number TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		hire_date TEXT,
		terminated_at TEXT,
		created_at TEXT NOT NULL
	);

	-- Benefit catalog
	CREATE TABLE IF NOT EXISTS benefits (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		value TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_benefits_active
		ON benefits(active);

	-- Vouchers (one row per issued benefit)
	CREATE TABLE IF NOT EXISTS vouchers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		issued_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		employee_number TEXT NOT NULL,
		employee_name TEXT NOT NULL,
		employee_email TEXT NOT NULL,
		employee_department TEXT NOT NULL DEFAULT '',
		benefit_id TEXT NOT NULL REFERENCES benefits(id),
		benefit_name TEXT NOT NULL,
		benefit_description TEXT NOT NULL DEFAULT '',
		justification TEXT NOT NULL DEFAULT '',
		urgent BOOLEAN NOT NULL DEFAULT FALSE,
		value TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		redeemed_at TEXT,
		cancel_reason TEXT NOT NULL DEFAULT '',
		idempotency_key TEXT UNIQUE
	);

	CREATE INDEX IF NOT EXISTS idx_vouchers_employee
		ON vouchers(employee_number);
	CREATE INDEX IF NOT EXISTS idx_vouchers_status_expiry
		ON vouchers(status, expires_at);

	-- Self-service requests
	CREATE TABLE IF NOT EXISTS selfservice_requests (
		id TEXT PRIMARY KEY,
		employee_number TEXT NOT NULL,
		requester_name TEXT NOT NULL,
		requester_department TEXT NOT NULL DEFAULT '',
		requester_role TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		submitted_at TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		reviewer_id TEXT,
		reviewer_name TEXT,
		reviewed_at TEXT,
		review_justification TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_selfservice_requests_status
		ON selfservice_requests(status);
	CREATE INDEX IF NOT EXISTS idx_selfservice_requests_employee
		ON selfservice_requests(employee_number);

	-- Audit trail (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		at TEXT NOT NULL,
		actor_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		subject_type TEXT NOT NULL DEFAULT '',
		subject_id TEXT NOT NULL DEFAULT '',
		details_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_subject
		ON audit_log(subject_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action
		ON audit_log(action);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset deletes all data. Used by demo scenarios and tests.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		DELETE FROM audit_log;
		DELETE FROM selfservice_requests;
		DELETE FROM vouchers;
		DELETE FROM benefits;
		DELETE FROM employees;
	`)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by hand or by older builds may use plain RFC3339.
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// constraintColumn reports whether a unique violation names table.column.
func constraintColumn(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), column)
}

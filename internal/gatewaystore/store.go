// Package gatewaystore persists the HTTP gateway's idempotency-key cache
// and audit log, following services/escrow-gateway/storage.go's SQLiteStore
// trimmed to the two concerns this gateway needs.
package gatewaystore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists idempotency keys and audit log entries.
type Store struct {
	db *sql.DB
}

// ErrIdempotencyMismatch is returned when a key is reused with a different request body.
var ErrIdempotencyMismatch = errors.New("gatewaystore: idempotency key reuse with different request body")

// Open creates or opens the SQLite database at path and ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
            principal TEXT NOT NULL,
            idempotency_key TEXT NOT NULL,
            request_hash TEXT NOT NULL,
            response_status INTEGER NOT NULL,
            response_body BLOB NOT NULL,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY(principal, idempotency_key)
        );`,
		`CREATE TABLE IF NOT EXISTS audit_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            occurred_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            principal TEXT,
            method TEXT NOT NULL,
            path TEXT NOT NULL,
            request_body BLOB,
            response_status INTEGER,
            response_body BLOB
        );`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoredResponse is a cached response for an idempotency key.
type StoredResponse struct {
	Status int
	Body   []byte
}

// LookupIdempotency returns the cached response for (principal, key), nil if
// absent, or ErrIdempotencyMismatch if the same key was used with a
// different request body.
func (s *Store) LookupIdempotency(ctx context.Context, principal, key, requestHash string) (*StoredResponse, error) {
	const query = `SELECT response_status, response_body, request_hash FROM idempotency_keys WHERE principal = ? AND idempotency_key = ?`
	row := s.db.QueryRowContext(ctx, query, principal, key)
	var status int
	var body []byte
	var storedHash string
	err := row.Scan(&status, &body, &storedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if storedHash != requestHash {
		return nil, ErrIdempotencyMismatch
	}
	return &StoredResponse{Status: status, Body: body}, nil
}

// SaveIdempotency records the response served for (principal, key).
func (s *Store) SaveIdempotency(ctx context.Context, principal, key, requestHash string, status int, body []byte) error {
	const stmt = `INSERT OR REPLACE INTO idempotency_keys(principal, idempotency_key, request_hash, response_status, response_body, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, stmt, principal, key, requestHash, status, body, time.Now().UTC())
	return err
}

// AuditEntry is one audit log row.
type AuditEntry struct {
	Principal      string
	Method         string
	Path           string
	RequestBody    []byte
	ResponseBody   []byte
	ResponseStatus int
	Timestamp      time.Time
}

// InsertAuditLog appends an audit log entry.
func (s *Store) InsertAuditLog(ctx context.Context, entry AuditEntry) error {
	const stmt = `INSERT INTO audit_log(principal, method, path, request_body, response_status, response_body, occurred_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, stmt, entry.Principal, entry.Method, entry.Path, entry.RequestBody, entry.ResponseStatus, entry.ResponseBody, entry.Timestamp)
	return err
}

// Copyright 2026 Snowbridge Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package audit provides a SQLite-backed audit trail of CRUD operations.
//
// Entries record who did what to which table and whether it worked. Record
// contents and queries are deliberately not stored; the trail answers
// "what happened" without becoming a second copy of instance data.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/snowbridge-io/snowbridge/internal/snow"
)

// SQLiteStore is a SQLite-backed Auditor.
type SQLiteStore struct {
	db *sql.DB
}

// Config contains audit storage configuration.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// Special value ":memory:" creates an in-memory database.
	Path string

	// MaxOpenConns sets the maximum number of open connections.
	MaxOpenConns int
}

// New creates a SQLite audit store and applies the schema.
func New(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// WAL mode so reads don't block the single writer
	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns == 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate creates the database schema.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS operations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			occurred_at TEXT NOT NULL,
			operation TEXT NOT NULL,
			table_name TEXT NOT NULL,
			sys_id TEXT,
			success INTEGER NOT NULL,
			error_type TEXT,
			request_id TEXT,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_operations_occurred_at ON operations(occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_operations_table ON operations(table_name)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Record implements snow.Auditor.
func (s *SQLiteStore) Record(ctx context.Context, entry *snow.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operations
			(occurred_at, operation, table_name, sys_id, success, error_type, request_id, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Time.Format(time.RFC3339Nano),
		string(entry.Operation),
		entry.Table,
		entry.SysID,
		boolToInt(entry.Success),
		entry.ErrorType,
		entry.RequestID,
		entry.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]snow.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT occurred_at, operation, table_name, sys_id, success, error_type, request_id, duration_ms
		FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []snow.AuditEntry
	for rows.Next() {
		var (
			entry      snow.AuditEntry
			occurredAt string
			operation  string
			success    int
			durationMS int64
		)
		if err := rows.Scan(&occurredAt, &operation, &entry.Table, &entry.SysID,
			&success, &entry.ErrorType, &entry.RequestID, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, occurredAt); perr == nil {
			entry.Time = t
		}
		entry.Operation = snow.Operation(operation)
		entry.Success = success != 0
		entry.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

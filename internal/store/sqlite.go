// Package store persists provider-registered tool descriptors in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/toolrelay/toolrelay/internal/registry"
	"github.com/toolrelay/toolrelay/internal/schema"
)

const toolsSchema = `
CREATE TABLE IF NOT EXISTS tools (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	schema_json BLOB NOT NULL,
	provider TEXT NOT NULL,
	registered_at TEXT NOT NULL
);`

// SQLite is a registry.Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ registry.Store = (*SQLite)(nil)

// Open opens (or creates) the database at dsn.
func Open(dsn string) (*SQLite, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("tool store sqlite dsn is required")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tool store open: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tool store set WAL mode: %w", err)
	}
	if _, err := db.Exec(toolsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tool store create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Save inserts or replaces d. A replaced tool keeps its original position.
func (s *SQLite) Save(ctx context.Context, d registry.Descriptor) error {
	raw, err := json.Marshal(d.Schema)
	if err != nil {
		return fmt.Errorf("tool store encode schema %s: %w", d.Name, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO tools (name, description, schema_json, provider, registered_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	description = excluded.description,
	schema_json = excluded.schema_json,
	provider = excluded.provider,
	registered_at = excluded.registered_at`,
		d.Name, d.Description, raw, d.Provider, d.RegisteredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("tool store save %s: %w", d.Name, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tools WHERE name = ?`, name); err != nil {
		return fmt.Errorf("tool store delete %s: %w", name, err)
	}
	return nil
}

// List returns all stored descriptors in first-save order.
func (s *SQLite) List(ctx context.Context) ([]registry.Descriptor, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, description, schema_json, provider, registered_at
FROM tools
ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("tool store list: %w", err)
	}
	defer rows.Close()

	var out []registry.Descriptor
	for rows.Next() {
		var (
			d         registry.Descriptor
			rawSchema []byte
			at        string
		)
		if err := rows.Scan(&d.Name, &d.Description, &rawSchema, &d.Provider, &at); err != nil {
			return nil, fmt.Errorf("tool store scan: %w", err)
		}
		if d.Schema, err = schema.Parse(rawSchema); err != nil {
			return nil, fmt.Errorf("tool store decode schema %s: %w", d.Name, err)
		}
		if d.RegisteredAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("tool store decode registered_at %s: %w", d.Name, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tool store list: %w", err)
	}
	return out, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

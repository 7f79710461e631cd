// Package catalog records every wpsnap run in a local SQLite database so
// operators can audit what was backed up or restored, and when.
package catalog

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"wpsnap/internal/catalog/migrations"
	"wpsnap/internal/config"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Operation is one recorded backup/restore/stack run.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "running", "success", "aborted" or "error"
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// Catalog is the SQLite-backed run history.
type Catalog struct {
	db   *sql.DB
	path string
}

// NewFromConfig opens a catalog based on the catalog config type.
func NewFromConfig(cfg config.CatalogConfig) (*Catalog, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite catalog")
		}
		return Open(filepath.Join(cfg.DataDir, "wpsnap.db"))
	case "memory":
		return Open(":memory:")
	default:
		return nil, fmt.Errorf("unknown catalog type: %s", cfg.Type)
	}
}

// Open opens (and if needed migrates) the catalog at path.
// path can be a file path or ":memory:".
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward
	// compatibility).
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating catalog schema: %w", err)
	}

	return &Catalog{db: db, path: path}, nil
}

// CreateOperation records the start of a run and returns it with its
// assigned ID.
func (c *Catalog) CreateOperation(operation, parameters string) (*Operation, error) {
	now := time.Now().UTC()
	res, err := c.db.Exec(
		`INSERT INTO operations (operation, parameters, status, started_at) VALUES (?, ?, 'running', ?)`,
		operation, parameters, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}

	return &Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
		StartedAt:  now,
	}, nil
}

// FinishOperation records a run's final status and finish time.
func (c *Catalog) FinishOperation(id int64, status string) error {
	_, err := c.db.Exec(
		`UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

// ListOperations returns the most recent runs, newest first.
func (c *Catalog) ListOperations(limit int) ([]*Operation, error) {
	rows, err := c.db.Query(
		`SELECT id, operation, parameters, status, started_at, finished_at
		 FROM operations ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.Status, &op.StartedAt, &op.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return ops, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

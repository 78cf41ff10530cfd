package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all Quarry tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	// One row per work source node; the tree shape lives in parent_id
	// and position. Config is the node's settings as JSON.
	`CREATE TABLE IF NOT EXISTS nodes (
		id         TEXT PRIMARY KEY,
		parent_id  TEXT,
		position   INTEGER NOT NULL DEFAULT 0,
		kind       TEXT NOT NULL,
		config     TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS fetch_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		node_id    TEXT NOT NULL,
		fetchers   INTEGER NOT NULL,
		units      REAL NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_nodes_parent_id ON nodes(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_fetch_events_node_id ON fetch_events(node_id)`,
	`CREATE INDEX IF NOT EXISTS idx_fetch_events_created_at ON fetch_events(created_at)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

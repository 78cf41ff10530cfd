package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/me/quarry/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Tree persistence ---

// SaveTree replaces the persisted tree with the given deflated root,
// in one transaction so readers never see a half-written tree.
func (s *SQLiteStore) SaveTree(ctx context.Context, root model.NodeDescriptor) error {
	s.logger.Debug("sql", "op", "save_tree", "nodes", root.CountNodes())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
		return fmt.Errorf("clear nodes: %w", err)
	}
	if err := insertNode(ctx, tx, root, "", 0); err != nil {
		return err
	}
	return tx.Commit()
}

func insertNode(ctx context.Context, tx *sql.Tx, desc model.NodeDescriptor, parentID string, position int) error {
	configJSON, err := json.Marshal(desc.Config)
	if err != nil {
		return fmt.Errorf("marshal config for %s: %w", desc.ID, err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var parent any
	if parentID != "" {
		parent = parentID
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO nodes (id, parent_id, position, kind, config, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		desc.ID, parent, position, string(desc.Kind), string(configJSON), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert node %s: %w", desc.ID, err)
	}

	for i, child := range desc.Children {
		if err := insertNode(ctx, tx, child, desc.ID, i); err != nil {
			return err
		}
	}
	return nil
}

// LoadTree reconstructs the persisted tree. Returns (nil, nil) when no
// tree has been saved yet.
func (s *SQLiteStore) LoadTree(ctx context.Context) (*model.NodeDescriptor, error) {
	s.logger.Debug("sql", "op", "load_tree")

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, parent_id, position, kind, config FROM nodes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type row struct {
		desc     model.NodeDescriptor
		parentID string
		position int
	}
	var all []*row
	byID := make(map[string]*row)

	for rows.Next() {
		var r row
		var parentID sql.NullString
		var configJSON string
		var kind string
		if err := rows.Scan(&r.desc.ID, &parentID, &r.position, &kind, &configJSON); err != nil {
			return nil, err
		}
		r.desc.Kind = model.SourceKind(kind)
		r.parentID = parentID.String
		// Rows written by older schemas may omit the priority field;
		// zero is a meaningful weight, so default only when absent.
		r.desc.Config = model.SourceConfig{Priority: model.DefaultPriority}
		if err := json.Unmarshal([]byte(configJSON), &r.desc.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config for %s: %w", r.desc.ID, err)
		}
		all = append(all, &r)
		byID[r.desc.ID] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}

	// Group children under their parents, ordered by position.
	children := make(map[string][]*row)
	var root *row
	for _, r := range all {
		if r.parentID == "" {
			if root != nil {
				return nil, fmt.Errorf("multiple root nodes persisted (%s and %s)", root.desc.ID, r.desc.ID)
			}
			root = r
			continue
		}
		if _, ok := byID[r.parentID]; !ok {
			return nil, fmt.Errorf("node %s references missing parent %s", r.desc.ID, r.parentID)
		}
		children[r.parentID] = append(children[r.parentID], r)
	}
	if root == nil {
		return nil, fmt.Errorf("persisted tree has no root")
	}
	for _, kids := range children {
		sort.Slice(kids, func(i, j int) bool { return kids[i].position < kids[j].position })
	}

	var build func(r *row) model.NodeDescriptor
	build = func(r *row) model.NodeDescriptor {
		desc := r.desc
		for _, kid := range children[desc.ID] {
			desc.Children = append(desc.Children, build(kid))
		}
		return desc
	}
	desc := build(root)
	return &desc, nil
}

// --- Dispatch accounting ---

// RecordDispatch appends one fetch dispatch outcome.
func (s *SQLiteStore) RecordDispatch(ctx context.Context, nodeID string, fetchers int, units float64, at time.Time) error {
	s.logger.Debug("sql", "op", "insert", "table", "fetch_events", "node_id", nodeID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetch_events (node_id, fetchers, units, created_at) VALUES (?, ?, ?, ?)`,
		nodeID, fetchers, units, at.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Totals aggregates all recorded dispatch events.
func (s *SQLiteStore) Totals(ctx context.Context) (DispatchTotals, error) {
	return s.totalsWhere(ctx,
		`SELECT COUNT(*), COALESCE(SUM(fetchers), 0), COALESCE(SUM(units), 0) FROM fetch_events`)
}

// TotalsSince aggregates dispatch events recorded at or after since.
func (s *SQLiteStore) TotalsSince(ctx context.Context, since time.Time) (DispatchTotals, error) {
	return s.totalsWhere(ctx,
		`SELECT COUNT(*), COALESCE(SUM(fetchers), 0), COALESCE(SUM(units), 0) FROM fetch_events WHERE created_at >= ?`,
		since.UTC().Format(time.RFC3339Nano))
}

func (s *SQLiteStore) totalsWhere(ctx context.Context, query string, args ...any) (DispatchTotals, error) {
	var t DispatchTotals
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&t.Events, &t.Fetchers, &t.Units)
	if err != nil {
		return DispatchTotals{}, err
	}
	return t, nil
}

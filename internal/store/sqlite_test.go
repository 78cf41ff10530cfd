package store

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/me/quarry/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleTree() model.NodeDescriptor {
	return model.NodeDescriptor{
		ID:     uuid.New().String(),
		Kind:   model.SourceKindGroup,
		Config: model.SourceConfig{Name: "root", Enabled: true, Priority: 1, Granularity: 16},
		Children: []model.NodeDescriptor{
			{
				ID:     uuid.New().String(),
				Kind:   model.SourceKindHTTP,
				Config: model.SourceConfig{Name: "pool-a", Enabled: true, Priority: 2, URL: "http://upstream/work"},
			},
			{
				ID:     uuid.New().String(),
				Kind:   model.SourceKindSynthetic,
				Config: model.SourceConfig{Name: "gen", Enabled: false, Priority: 1},
			},
		},
	}
}

func TestMigrateIdempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestLoadTreeEmpty(t *testing.T) {
	st := testStore(t)
	desc, err := st.LoadTree(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if desc != nil {
		t.Errorf("desc = %+v, want nil for empty store", desc)
	}
}

func TestSaveAndLoadTree(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	tree := sampleTree()

	if err := st.SaveTree(ctx, tree); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := st.LoadTree(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatal("got nil tree")
	}
	if got.ID != tree.ID {
		t.Errorf("root id = %q, want %q", got.ID, tree.ID)
	}
	if got.CountNodes() != 3 {
		t.Errorf("node count = %d, want 3", got.CountNodes())
	}
	if len(got.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(got.Children))
	}
	// Sibling order survives via the position column.
	if got.Children[0].Config.Name != "pool-a" {
		t.Errorf("first child = %q, want pool-a", got.Children[0].Config.Name)
	}
	if got.Children[0].Config.URL != "http://upstream/work" {
		t.Errorf("url = %q, not round-tripped", got.Children[0].Config.URL)
	}
	if got.Children[1].Config.Enabled {
		t.Error("disabled flag not round-tripped")
	}
}

func TestSaveTreeReplaces(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if err := st.SaveTree(ctx, sampleTree()); err != nil {
		t.Fatalf("first save: %v", err)
	}

	small := model.NodeDescriptor{
		ID:     uuid.New().String(),
		Kind:   model.SourceKindGroup,
		Config: model.SourceConfig{Name: "fresh", Enabled: true},
	}
	if err := st.SaveTree(ctx, small); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := st.LoadTree(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.CountNodes() != 1 {
		t.Errorf("node count = %d, want 1 (old tree replaced)", got.CountNodes())
	}
	if got.Config.Name != "fresh" {
		t.Errorf("root = %q, want fresh", got.Config.Name)
	}
}

func TestRecordDispatchAndTotals(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	nodeID := uuid.New().String()
	now := time.Now()

	if err := st.RecordDispatch(ctx, nodeID, 3, 12.5, now); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := st.RecordDispatch(ctx, nodeID, 1, 2.5, now.Add(time.Second)); err != nil {
		t.Fatalf("record: %v", err)
	}

	totals, err := st.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Events != 2 {
		t.Errorf("events = %d, want 2", totals.Events)
	}
	if totals.Fetchers != 4 {
		t.Errorf("fetchers = %d, want 4", totals.Fetchers)
	}
	if totals.Units != 15 {
		t.Errorf("units = %v, want 15", totals.Units)
	}
}

func TestTotalsEmpty(t *testing.T) {
	st := testStore(t)
	totals, err := st.Totals(context.Background())
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Events != 0 || totals.Fetchers != 0 || totals.Units != 0 {
		t.Errorf("totals = %+v, want zeros", totals)
	}
}

func TestTotalsSince(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	nodeID := uuid.New().String()
	now := time.Now()

	if err := st.RecordDispatch(ctx, nodeID, 1, 1, now.Add(-time.Hour)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := st.RecordDispatch(ctx, nodeID, 2, 2, now); err != nil {
		t.Fatalf("record: %v", err)
	}

	totals, err := st.TotalsSince(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("totals since: %v", err)
	}
	if totals.Events != 1 {
		t.Errorf("events = %d, want 1 (old event excluded)", totals.Events)
	}
	if totals.Fetchers != 2 {
		t.Errorf("fetchers = %d, want 2", totals.Fetchers)
	}
}

package tree

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/me/quarry/internal/provider"
	"github.com/me/quarry/internal/source"
	"github.com/me/quarry/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	logger := testLogger()
	factories := map[model.SourceKind]Factory{
		model.SourceKindSynthetic: func(id uuid.UUID, cfg model.SourceConfig) (source.Source, error) {
			return provider.NewLeaf(id, model.SourceKindSynthetic, cfg, provider.NewSyntheticFetcher(cfg.BatchUnits, 0), logger), nil
		},
	}
	return NewManager(factories, logger)
}

func sampleDescriptor() model.NodeDescriptor {
	return model.NodeDescriptor{
		Kind:   model.SourceKindGroup,
		Config: model.SourceConfig{Name: "root", Enabled: true},
		Children: []model.NodeDescriptor{
			{
				Kind:   model.SourceKindGroup,
				Config: model.SourceConfig{Name: "pools", Enabled: true, Priority: 2},
				Children: []model.NodeDescriptor{
					{
						Kind:   model.SourceKindSynthetic,
						Config: model.SourceConfig{Name: "gen-a", Enabled: true},
					},
				},
			},
			{
				Kind:   model.SourceKindSynthetic,
				Config: model.SourceConfig{Name: "gen-b", Enabled: false},
			},
		},
	}
}

func inflated(t *testing.T) *Manager {
	t.Helper()
	m := testManager(t)
	if err := m.Inflate(sampleDescriptor()); err != nil {
		t.Fatalf("inflate: %v", err)
	}
	return m
}

func findByName(t *testing.T, m *Manager, name string) source.Source {
	t.Helper()
	for _, st := range m.Statuses() {
		if st.Config.Name == name {
			id, err := uuid.Parse(st.ID)
			if err != nil {
				t.Fatalf("parse id %q: %v", st.ID, err)
			}
			node, ok := m.Get(id)
			if !ok {
				t.Fatalf("node %q not in index", name)
			}
			return node
		}
	}
	t.Fatalf("node %q not found", name)
	return nil
}

func TestInflateDeflateRoundTrip(t *testing.T) {
	m := inflated(t)

	desc := m.Deflate()
	if desc.Kind != model.SourceKindGroup {
		t.Errorf("root kind = %q, want group", desc.Kind)
	}
	if desc.CountNodes() != 4 {
		t.Errorf("node count = %d, want 4", desc.CountNodes())
	}
	if len(desc.Children) != 2 {
		t.Fatalf("root children = %d, want 2", len(desc.Children))
	}
	if desc.Children[0].Config.Name != "pools" {
		t.Errorf("first child = %q, want pools (order preserved)", desc.Children[0].Config.Name)
	}
	if desc.Children[1].Config.Enabled {
		t.Error("gen-b must stay disabled through the round trip")
	}

	// IDs were assigned; reinflating the deflated shape keeps them.
	m2 := testManager(t)
	if err := m2.Inflate(desc); err != nil {
		t.Fatalf("reinflate: %v", err)
	}
	if m2.Deflate().Children[0].ID != desc.Children[0].ID {
		t.Error("node ID changed across inflate/deflate")
	}
}

func TestInflateRejectsLeafRoot(t *testing.T) {
	m := testManager(t)
	err := m.Inflate(model.NodeDescriptor{
		Kind:   model.SourceKindSynthetic,
		Config: model.SourceConfig{Name: "leaf"},
	})
	if err == nil {
		t.Fatal("leaf root accepted")
	}
}

func TestInflateRejectsDuplicateIDs(t *testing.T) {
	m := testManager(t)
	id := uuid.New().String()
	err := m.Inflate(model.NodeDescriptor{
		Kind:   model.SourceKindGroup,
		Config: model.SourceConfig{Name: "root", Enabled: true},
		Children: []model.NodeDescriptor{
			{ID: id, Kind: model.SourceKindSynthetic, Config: model.SourceConfig{Name: "a"}},
			{ID: id, Kind: model.SourceKindSynthetic, Config: model.SourceConfig{Name: "b"}},
		},
	})
	if err == nil {
		t.Fatal("duplicate IDs accepted")
	}
}

func TestInflateRejectsUnknownKind(t *testing.T) {
	m := testManager(t)
	err := m.Inflate(model.NodeDescriptor{
		Kind:   model.SourceKindGroup,
		Config: model.SourceConfig{Name: "root", Enabled: true},
		Children: []model.NodeDescriptor{
			{Kind: "carrier-pigeon", Config: model.SourceConfig{Name: "x"}},
		},
	})
	if err == nil {
		t.Fatal("unknown kind accepted")
	}
}

func TestAttachToRoot(t *testing.T) {
	m := inflated(t)

	node, err := m.Attach(uuid.Nil, model.SourceKindSynthetic, model.SourceConfig{Name: "gen-c", Enabled: true})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, ok := m.Get(node.ID()); !ok {
		t.Error("attached node not in index")
	}
	if len(m.Root().Children()) != 3 {
		t.Errorf("root children = %d, want 3", len(m.Root().Children()))
	}
}

func TestAttachToLeafFails(t *testing.T) {
	m := inflated(t)
	leaf := findByName(t, m, "gen-a")

	if _, err := m.Attach(leaf.ID(), model.SourceKindSynthetic, model.SourceConfig{Name: "x"}); err == nil {
		t.Fatal("attach under a leaf accepted")
	}
}

func TestAttachUnknownParent(t *testing.T) {
	m := inflated(t)
	_, err := m.Attach(uuid.New(), model.SourceKindSynthetic, model.SourceConfig{Name: "x"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrNotFound {
		t.Fatalf("err = %v, want not-found", err)
	}
}

func TestAttachInvalidConfig(t *testing.T) {
	m := inflated(t)
	// http sources must carry a URL.
	if _, err := m.Attach(uuid.Nil, model.SourceKindHTTP, model.SourceConfig{Name: "x"}); err == nil {
		t.Fatal("http node without url accepted")
	}
}

func TestMoveNode(t *testing.T) {
	m := inflated(t)
	pools := findByName(t, m, "pools")
	genB := findByName(t, m, "gen-b")

	if err := m.Move(genB.ID(), pools.ID()); err != nil {
		t.Fatalf("move: %v", err)
	}
	if genB.Parent() != source.Source(pools.(*source.Group)) {
		t.Error("parent not updated after move")
	}
	if len(m.Root().Children()) != 1 {
		t.Errorf("root children = %d, want 1 after move", len(m.Root().Children()))
	}
}

func TestMoveRootFails(t *testing.T) {
	m := inflated(t)
	pools := findByName(t, m, "pools")
	if err := m.Move(m.Root().ID(), pools.ID()); err == nil {
		t.Fatal("moving the root accepted")
	}
}

func TestMoveCycleFails(t *testing.T) {
	m := inflated(t)
	pools := findByName(t, m, "pools")

	sub, err := m.Attach(pools.ID(), model.SourceKindGroup, model.SourceConfig{Name: "sub", Enabled: true})
	if err != nil {
		t.Fatalf("attach sub: %v", err)
	}

	err = m.Move(pools.ID(), sub.ID())
	var cycleErr *model.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("err = %v, want CycleError", err)
	}
}

func TestDetachSubtree(t *testing.T) {
	m := inflated(t)
	pools := findByName(t, m, "pools")
	genA := findByName(t, m, "gen-a")

	if err := m.Detach(pools.ID()); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if _, ok := m.Get(pools.ID()); ok {
		t.Error("detached group still in index")
	}
	if _, ok := m.Get(genA.ID()); ok {
		t.Error("nested child of detached group still in index")
	}
	if len(m.Root().Children()) != 1 {
		t.Errorf("root children = %d, want 1", len(m.Root().Children()))
	}
}

func TestDetachRootFails(t *testing.T) {
	m := inflated(t)
	if err := m.Detach(m.Root().ID()); err == nil {
		t.Fatal("detaching the root accepted")
	}
}

func TestSetConfig(t *testing.T) {
	m := inflated(t)
	genB := findByName(t, m, "gen-b")

	cfg := genB.Config()
	cfg.Enabled = true
	cfg.Priority = 7
	if err := m.SetConfig(genB.ID(), cfg); err != nil {
		t.Fatalf("set config: %v", err)
	}
	if got := genB.Config(); !got.Enabled || got.Priority != 7 {
		t.Errorf("config = %+v, not applied", got)
	}
}

func TestSetConfigInvalid(t *testing.T) {
	m := inflated(t)
	genB := findByName(t, m, "gen-b")

	cfg := genB.Config()
	cfg.Priority = -1
	if err := m.SetConfig(genB.ID(), cfg); err == nil {
		t.Fatal("negative priority accepted")
	}
}

func TestStatuses(t *testing.T) {
	m := inflated(t)
	statuses := m.Statuses()
	if len(statuses) != 4 {
		t.Fatalf("statuses = %d, want 4", len(statuses))
	}
	if statuses[0].Config.Name != "root" {
		t.Errorf("first status = %q, want root (tree order)", statuses[0].Config.Name)
	}
}

// Package tree maintains the registry over a work source tree: node
// lookup by ID, construction of nodes from persisted descriptors, and
// the structural operations the API exposes.
package tree

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/me/quarry/internal/source"
	"github.com/me/quarry/pkg/model"
)

// Factory constructs a leaf work source of one kind.
type Factory func(id uuid.UUID, cfg model.SourceConfig) (source.Source, error)

// Manager owns the live tree and an ID index over it. Structural
// operations (attach, move, detach) go through the Manager so the
// index never drifts from the tree.
type Manager struct {
	logger    *slog.Logger
	factories map[model.SourceKind]Factory

	mu    sync.Mutex
	root  *source.Group
	nodes map[uuid.UUID]source.Source
}

// NewManager creates a Manager with the given leaf factories. The tree
// is empty until Inflate is called.
func NewManager(factories map[model.SourceKind]Factory, logger *slog.Logger) *Manager {
	return &Manager{
		logger:    logger.With("component", "tree"),
		factories: factories,
		nodes:     make(map[uuid.UUID]source.Source),
	}
}

// Inflate reconstructs the tree from a persisted descriptor, replacing
// any current tree. The descriptor root must be a group.
func (m *Manager) Inflate(desc model.NodeDescriptor) error {
	if !desc.Kind.IsGroup() {
		return fmt.Errorf("tree root must be a group, got %q", desc.Kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	nodes := make(map[uuid.UUID]source.Source)
	root, err := m.inflateNode(desc, nodes)
	if err != nil {
		return err
	}
	m.root = root.(*source.Group)
	m.nodes = nodes
	m.logger.Info("tree inflated", "nodes", len(nodes))
	return nil
}

func (m *Manager) inflateNode(desc model.NodeDescriptor, nodes map[uuid.UUID]source.Source) (source.Source, error) {
	id, err := parseOrNewID(desc.ID)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", desc.Config.Name, err)
	}
	if _, dup := nodes[id]; dup {
		return nil, fmt.Errorf("duplicate node id %s", id)
	}

	node, err := m.construct(id, desc.Kind, desc.Config)
	if err != nil {
		return nil, err
	}
	nodes[id] = node

	if len(desc.Children) > 0 {
		group, ok := node.(*source.Group)
		if !ok {
			return nil, fmt.Errorf("leaf node %q has children", desc.Config.Name)
		}
		for _, childDesc := range desc.Children {
			child, err := m.inflateNode(childDesc, nodes)
			if err != nil {
				return nil, err
			}
			if err := group.Add(child); err != nil {
				return nil, fmt.Errorf("attach %q under %q: %w", child.Name(), group.Name(), err)
			}
		}
	}
	return node, nil
}

func (m *Manager) construct(id uuid.UUID, kind model.SourceKind, cfg model.SourceConfig) (source.Source, error) {
	cfg = model.Normalize(kind, cfg)
	if err := model.Validate(kind, cfg); err != nil {
		return nil, fmt.Errorf("node %q: %w", cfg.Name, err)
	}
	if kind.IsGroup() {
		return source.NewGroup(id, cfg, m.logger), nil
	}
	factory, ok := m.factories[kind]
	if !ok {
		return nil, fmt.Errorf("no factory registered for source kind %q", kind)
	}
	return factory(id, cfg)
}

func parseOrNewID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse node id %q: %w", s, err)
	}
	return id, nil
}

// Root returns the root group. Nil before Inflate.
func (m *Manager) Root() *source.Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root
}

// Get looks a node up by ID.
func (m *Manager) Get(id uuid.UUID) (source.Source, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.nodes[id]
	return node, ok
}

// Attach creates a new node and adds it under the given parent group.
// A zero parent ID targets the root.
func (m *Manager) Attach(parentID uuid.UUID, kind model.SourceKind, cfg model.SourceConfig) (source.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, err := m.groupLocked(parentID)
	if err != nil {
		return nil, err
	}
	node, err := m.construct(uuid.New(), kind, cfg)
	if err != nil {
		return nil, err
	}
	if err := parent.Add(node); err != nil {
		return nil, err
	}
	m.nodes[node.ID()] = node
	m.logger.Info("node attached", "id", node.ID(), "kind", kind, "name", node.Name(), "parent", parent.Name())
	return node, nil
}

// Move reparents an existing node under another group. Returns a
// CycleError when the move would make the node its own ancestor.
func (m *Manager) Move(id, newParentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[id]
	if !ok {
		return model.NewNotFoundError("Node", id.String())
	}
	if node == source.Source(m.root) {
		return fmt.Errorf("cannot move the root group")
	}
	parent, err := m.groupLocked(newParentID)
	if err != nil {
		return err
	}
	return parent.Add(node)
}

// Detach removes a node (and its subtree, for groups) from the tree.
// The root cannot be detached.
func (m *Manager) Detach(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.nodes[id]
	if !ok {
		return model.NewNotFoundError("Node", id.String())
	}
	if node == source.Source(m.root) {
		return fmt.Errorf("cannot detach the root group")
	}
	if parent, ok := node.Parent().(*source.Group); ok && parent != nil {
		parent.Remove(node)
	}
	m.forgetLocked(node)
	m.logger.Info("node detached", "id", id, "name", node.Name())
	return nil
}

// forgetLocked drops a node and, for groups, its whole subtree from
// the ID index.
func (m *Manager) forgetLocked(node source.Source) {
	delete(m.nodes, node.ID())
	if group, ok := node.(*source.Group); ok {
		for _, child := range group.Children() {
			m.forgetLocked(child)
		}
	}
}

// SetConfig applies new settings to a node.
func (m *Manager) SetConfig(id uuid.UUID, cfg model.SourceConfig) error {
	node, ok := m.Get(id)
	if !ok {
		return model.NewNotFoundError("Node", id.String())
	}
	return node.Configure(cfg)
}

// Deflate produces the persisted shape of the whole tree.
func (m *Manager) Deflate() model.NodeDescriptor {
	return m.Root().Deflate()
}

// Statuses returns the live view of every node in tree order.
func (m *Manager) Statuses() []model.SourceStatus {
	root := m.Root()
	if root == nil {
		return nil
	}
	var out []model.SourceStatus
	collectStatus(root, &out)
	return out
}

func collectStatus(node source.Source, out *[]model.SourceStatus) {
	fetchers, units := node.RunningFetcherCount()
	*out = append(*out, model.SourceStatus{
		ID:           node.ID().String(),
		Kind:         node.Kind(),
		Config:       node.Config(),
		Fetchers:     fetchers,
		Units:        units,
		PendingQuota: node.PendingQuota(),
	})
	if group, ok := node.(*source.Group); ok {
		for _, child := range group.Children() {
			collectStatus(child, out)
		}
	}
}

func (m *Manager) groupLocked(id uuid.UUID) (*source.Group, error) {
	if id == uuid.Nil {
		if m.root == nil {
			return nil, fmt.Errorf("tree not inflated")
		}
		return m.root, nil
	}
	node, ok := m.nodes[id]
	if !ok {
		return nil, model.NewNotFoundError("Node", id.String())
	}
	group, ok := node.(*source.Group)
	if !ok {
		return nil, model.NewValidationError(fmt.Sprintf("node %q is not a group", node.Name()))
	}
	return group, nil
}

package source

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/me/quarry/pkg/model"
)

// Group is a composite work source. It owns an ordered list of children
// and splits its yield budget among them by priority and measured yield
// rate; dispatch walks the children in rotating order for fairness.
//
// Three lock domains, acquired in this order when nested: lifeMu
// serializes start/stop cascades and structural moves, childMu guards
// the children slice and the rotation cursor, and the embedded Base
// state lock guards quota counters and settings. childMu is never held
// across a recursive call into a child, except during lifecycle
// cascades where structural changes mid-cascade must be excluded.
type Group struct {
	Base
	logger *slog.Logger

	lifeMu    sync.Mutex // start/stop lock; also taken by Add/Remove
	childMu   sync.Mutex // guards children and lastIndex
	children  []Source
	lastIndex int

	// lastTime is guarded by the Base state lock together with the
	// quota counters.
	lastTime time.Time

	// now is the clock used by the quota distributor. Overridden in
	// tests to control elapsed time.
	now func() time.Time
}

// NewGroup creates a group work source with no children.
func NewGroup(id uuid.UUID, cfg model.SourceConfig, logger *slog.Logger) *Group {
	g := &Group{
		Base:   NewBase(id, model.SourceKindGroup, cfg),
		logger: logger.With("component", "source-group", "group", cfg.Name),
		now:    time.Now,
	}
	g.lastTime = g.now()
	return g
}

// Add attaches ws as a child. If ws already has a parent it is moved
// atomically: detached there, attached here. Fails with a CycleError
// when ws is the group itself or one of its ancestors; the tree is
// left unchanged. Re-adding an existing child is a no-op beyond the
// move. If the group is started, the new child is started too; a start
// failure is logged and the child is still added.
func (g *Group) Add(ws Source) error {
	g.lifeMu.Lock()
	defer g.lifeMu.Unlock()

	for node := Source(g); node != nil; node = node.Parent() {
		if node == ws {
			return &model.CycleError{Source: ws.Name(), Target: g.Name()}
		}
	}

	if old := ws.Parent(); old != nil {
		if og, ok := old.(*Group); ok && og != g {
			og.Remove(ws)
		}
	}
	ws.SetParent(g)

	g.childMu.Lock()
	defer g.childMu.Unlock()
	if slices.Contains(g.children, ws) {
		return nil
	}
	if g.Started() {
		g.logger.Info("starting work source", "name", ws.Name())
		if err := ws.Start(); err != nil {
			g.logger.Warn("could not start work source", "name", ws.Name(), "error", err)
		}
	}
	g.children = append(g.children, ws)
	return nil
}

// Remove detaches every occurrence of ws from the children list
// (defensive against accidental duplicates) and clears its parent
// link. If the group is started the child is stopped first; a stop
// failure is logged and removal proceeds. Afterwards the child is an
// orphan; the caller decides what happens to it.
func (g *Group) Remove(ws Source) {
	g.lifeMu.Lock()
	defer g.lifeMu.Unlock()
	g.childMu.Lock()
	defer g.childMu.Unlock()

	for slices.Contains(g.children, ws) {
		ws.SetParent(nil)
		if g.Started() {
			g.logger.Info("stopping work source", "name", ws.Name())
			if err := ws.Stop(); err != nil {
				g.logger.Warn("could not stop work source", "name", ws.Name(), "error", err)
			}
		}
		i := slices.Index(g.children, ws)
		g.children = slices.Delete(g.children, i, i+1)
	}
}

// Start brings the group online and cascades to all children. A child
// failing to start is logged and does not prevent starting the rest.
func (g *Group) Start() error {
	g.lifeMu.Lock()
	defer g.lifeMu.Unlock()
	if g.Started() {
		return nil
	}
	g.resetDispatch()
	g.SetStarted(true)

	g.childMu.Lock()
	defer g.childMu.Unlock()
	for _, ws := range g.children {
		g.logger.Info("starting work source", "name", ws.Name())
		if err := ws.Start(); err != nil {
			g.logger.Warn("could not start work source", "name", ws.Name(), "error", err)
		}
	}
	return nil
}

// Stop cascades shutdown to all children before taking the group
// itself offline. Per-child failures are isolated and logged.
func (g *Group) Stop() error {
	g.lifeMu.Lock()
	defer g.lifeMu.Unlock()
	if !g.Started() {
		return nil
	}

	g.childMu.Lock()
	for _, ws := range g.children {
		g.logger.Info("stopping work source", "name", ws.Name())
		if err := ws.Stop(); err != nil {
			g.logger.Warn("could not stop work source", "name", ws.Name(), "error", err)
		}
	}
	g.childMu.Unlock()

	g.SetStarted(false)
	return nil
}

// resetDispatch rewinds the rotation cursor and the replenishment
// clock. Called on every start so a stopped interval does not mint a
// huge budget on restart.
func (g *Group) resetDispatch() {
	g.childMu.Lock()
	g.lastIndex = 0
	g.childMu.Unlock()

	g.Base.mu.Lock()
	g.lastTime = g.now()
	g.Base.mu.Unlock()
}

// Children returns a snapshot of the current child list.
func (g *Group) Children() []Source {
	g.childMu.Lock()
	defer g.childMu.Unlock()
	return slices.Clone(g.children)
}

// RunningFetcherCount sums the running fetcher and unit counts over the
// subtree. Children may mutate concurrently; the result is a
// per-child-consistent, eventually-consistent snapshot.
func (g *Group) RunningFetcherCount() (int, float64) {
	fetchers := 0
	units := 0.0
	for _, child := range g.Children() {
		f, u := child.RunningFetcherCount()
		fetchers += f
		units += u
	}
	return fetchers, units
}

// DispatchCost is zero for groups: a group regulates its own children
// and needs no quota debit from its parent.
func (g *Group) DispatchCost() float64 {
	return 0
}

// Deflate produces the persisted shape of the subtree, children
// deflated before the group itself.
func (g *Group) Deflate() model.NodeDescriptor {
	children := g.Children()
	desc := g.Base.Deflate()
	desc.Children = make([]model.NodeDescriptor, 0, len(children))
	for _, child := range children {
		desc.Children = append(desc.Children, child.Deflate())
	}
	return desc
}

package source

import (
	"sync"

	"github.com/google/uuid"
	"github.com/me/quarry/pkg/model"
)

// Quota constants shared by the distributor and the dispatcher.
const (
	// ReferenceUnit is the quota consumed by one leaf fetch operation.
	// It is a normalization constant relating the yield budget to fetch
	// operations; tune it together with group granularity.
	ReferenceUnit = 4294.967296

	// deferredPayback is the share of deferred quota paid back into
	// pending on each replenishment tick.
	deferredPayback = 0.1

	// deferredDecay shrinks the deferred balance every tick, so budget
	// that keeps going unused converges to zero instead of piling up.
	deferredDecay = 0.9
)

// Base holds the node state common to every work source variant: its
// identity, settings, parent handle, lifecycle flag, and quota
// counters. The state mutex is the per-node state lock; it is never
// held across calls into other nodes.
type Base struct {
	id   uuid.UUID
	kind model.SourceKind

	mu            sync.Mutex
	cfg           model.SourceConfig
	parent        Source
	started       bool
	pendingQuota  float64
	deferredQuota float64
}

// NewBase creates the shared state for a node of the given kind.
// cfg is normalized; invalid configs must be rejected by the caller
// (Configure) before construction.
func NewBase(id uuid.UUID, kind model.SourceKind, cfg model.SourceConfig) Base {
	return Base{
		id:   id,
		kind: kind,
		cfg:  model.Normalize(kind, cfg),
	}
}

// ID returns the stable node identifier.
func (b *Base) ID() uuid.UUID {
	return b.id
}

// Kind returns the variant of this source.
func (b *Base) Kind() model.SourceKind {
	return b.kind
}

// Name returns the configured display name.
func (b *Base) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Name
}

// Config returns a snapshot of the node's settings.
func (b *Base) Config() model.SourceConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// Configure normalizes, validates, and applies new settings.
func (b *Base) Configure(cfg model.SourceConfig) error {
	cfg = model.Normalize(b.kind, cfg)
	if err := model.Validate(b.kind, cfg); err != nil {
		return err
	}
	b.mu.Lock()
	b.cfg = cfg
	b.mu.Unlock()
	return nil
}

// Enabled reports whether the node participates in quota distribution
// and dispatch.
func (b *Base) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Enabled
}

// Parent returns the owning group, or nil for a root.
func (b *Base) Parent() Source {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parent
}

// SetParent updates the non-owning back-reference.
func (b *Base) SetParent(p Source) {
	b.mu.Lock()
	b.parent = p
	b.mu.Unlock()
}

// Started reports whether the node is online.
func (b *Base) Started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// SetStarted flips the lifecycle flag. Called by the variant's
// Start/Stop under its own lifecycle lock.
func (b *Base) SetStarted(v bool) {
	b.mu.Lock()
	b.started = v
	b.mu.Unlock()
}

// PendingQuota returns the accumulated, unconsumed yield budget.
func (b *Base) PendingQuota() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pendingQuota
}

// AddPendingQuota adjusts the pending budget by delta.
func (b *Base) AddPendingQuota(delta float64) {
	b.mu.Lock()
	b.pendingQuota += delta
	b.mu.Unlock()
}

// DeferredQuota returns the decaying carry-forward balance.
func (b *Base) DeferredQuota() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deferredQuota
}

// ReplenishQuota credits amount plus the payback share of deferred
// quota into pending, then decays the deferred balance. The whole
// update is atomic with respect to concurrent dispatch accounting.
func (b *Base) ReplenishQuota(amount float64) {
	b.mu.Lock()
	b.pendingQuota += amount + b.deferredQuota*deferredPayback
	b.deferredQuota *= deferredDecay
	b.mu.Unlock()
}

// CreditDeferred records budget that was offered but left unused.
func (b *Base) CreditDeferred(amount float64) {
	b.mu.Lock()
	b.deferredQuota += amount
	b.mu.Unlock()
}

// Deflate produces the persisted shape of a childless node. Groups
// override this to include their children.
func (b *Base) Deflate() model.NodeDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.NodeDescriptor{
		ID:     b.id.String(),
		Kind:   b.kind,
		Config: b.cfg,
	}
}

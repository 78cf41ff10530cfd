// Package source implements the work source tree: leaf sources fetch
// work from upstream providers, groups aggregate children and distribute
// a continuously replenished yield budget among them.
package source

import (
	"github.com/google/uuid"
	"github.com/me/quarry/pkg/model"
)

// Source is the capability contract shared by leaf work sources and
// groups. A parent group only ever talks to children through it.
type Source interface {
	// ID returns the stable node identifier.
	ID() uuid.UUID

	// Kind returns the variant of this source.
	Kind() model.SourceKind

	// Name returns the configured display name.
	Name() string

	// Config returns a snapshot of the node's settings.
	Config() model.SourceConfig

	// Configure normalizes, validates, and applies new settings.
	Configure(cfg model.SourceConfig) error

	// Parent returns the owning group, or nil for a root.
	Parent() Source

	// SetParent updates the non-owning back-reference. Used only by
	// group membership operations.
	SetParent(p Source)

	// Start brings the source online. Idempotent.
	Start() error

	// Stop takes the source offline. Idempotent.
	Stop() error

	// StartFetchers requests up to count fetch operations worth at most
	// maxUnits work units. A (0, 0) return means no progress was made;
	// it is an expected outcome, not an error.
	StartFetchers(count int, maxUnits float64) (started int, units float64)

	// RunningFetcherCount reports the in-flight fetch operations and
	// their unit volume across the subtree. The snapshot is only
	// per-node consistent; children may mutate concurrently.
	RunningFetcherCount() (fetchers int, units float64)

	// PendingQuota returns the accumulated, unconsumed yield budget.
	PendingQuota() float64

	// AddPendingQuota adjusts the pending budget by delta. Negative
	// deltas are the dispatcher's optimistic debit.
	AddPendingQuota(delta float64)

	// ReplenishQuota credits a fresh allocation plus the payback share
	// of deferred quota, then decays the deferred balance.
	ReplenishQuota(amount float64)

	// CreditDeferred records budget that was offered but left unused,
	// to be paid back gradually by future replenishment ticks.
	CreditDeferred(amount float64)

	// DispatchCost returns the pending quota a parent must debit to
	// dispatch one fetch to this source: one reference unit for leaves,
	// zero for groups (groups self-regulate internally).
	DispatchCost() float64

	// Deflate produces the persisted shape of this node. Groups deflate
	// children before themselves.
	Deflate() model.NodeDescriptor
}

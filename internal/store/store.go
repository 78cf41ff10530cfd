package store

import (
	"context"
	"time"

	"github.com/me/quarry/pkg/model"
)

// DispatchTotals aggregates recorded fetch dispatch events.
type DispatchTotals struct {
	Events   int
	Fetchers int
	Units    float64
}

// Store defines the persistence layer for Quarry.
type Store interface {
	// Tree persistence
	SaveTree(ctx context.Context, root model.NodeDescriptor) error
	LoadTree(ctx context.Context) (*model.NodeDescriptor, error)

	// Dispatch accounting
	RecordDispatch(ctx context.Context, nodeID string, fetchers int, units float64, at time.Time) error
	Totals(ctx context.Context) (DispatchTotals, error)
	TotalsSince(ctx context.Context, since time.Time) (DispatchTotals, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

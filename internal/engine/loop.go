// Package engine drives the work source tree: a polling pump loop that
// keeps a target number of fetch operations in flight by repeatedly
// asking the root group for fetchers.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/quarry/internal/source"
	"github.com/me/quarry/internal/store"
)

// Config holds pump loop configuration.
type Config struct {
	// PollInterval is how often the loop checks the in-flight count.
	PollInterval time.Duration
	// TargetFetchers is the number of fetch operations the loop keeps
	// running across the whole tree.
	TargetFetchers int
	// UnitBudget caps the work units requested in a single tick.
	UnitBudget float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:   2 * time.Second,
		TargetFetchers: 8,
		UnitBudget:     64,
	}
}

// Loop is the polling pump over a work source tree.
type Loop struct {
	root   *source.Group
	store  store.Store
	config Config
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewLoop creates a pump loop over the given root group.
func NewLoop(root *source.Group, st store.Store, cfg Config, logger *slog.Logger) *Loop {
	return &Loop{
		root:   root,
		store:  st,
		config: cfg,
		logger: logger.With("component", "engine"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the pump loop. Blocks until ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.logger.Info("engine started",
		"poll_interval", l.config.PollInterval,
		"target_fetchers", l.config.TargetFetchers)
	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("engine stopping (context cancelled)")
			close(l.doneCh)
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("engine stopping (stop called)")
			close(l.doneCh)
			return nil
		case <-ticker.C:
			if err := l.Tick(ctx); err != nil {
				l.logger.Error("tick error", "error", err)
			}
		}
	}
}

// Stop gracefully shuts down the loop and waits for the current tick to finish.
func (l *Loop) Stop() error {
	close(l.stopCh)
	<-l.doneCh
	return nil
}

// Tick runs a single pump iteration: measure the in-flight deficit,
// ask the root group to fill it, and record the outcome.
func (l *Loop) Tick(ctx context.Context) error {
	running, runningUnits := l.root.RunningFetcherCount()
	deficit := l.config.TargetFetchers - running
	if deficit <= 0 {
		l.logger.Debug("at target", "running", running, "units", runningUnits)
		return nil
	}

	started, units := l.root.StartFetchers(deficit, l.config.UnitBudget)
	if started == 0 && units == 0 {
		l.logger.Debug("no fetch progress", "deficit", deficit)
		return nil
	}

	l.logger.Info("fetchers dispatched", "started", started, "units", units, "deficit", deficit)

	if err := l.store.RecordDispatch(ctx, l.root.ID().String(), started, units, time.Now()); err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	return nil
}

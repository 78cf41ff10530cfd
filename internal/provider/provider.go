// Package provider implements leaf work sources: nodes that spend
// their yield budget running concrete fetch operations against an
// upstream work provider.
package provider

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/me/quarry/internal/source"
	"github.com/me/quarry/pkg/model"
)

// Fetcher is one upstream collaborator: a single Fetch call obtains a
// batch of work and reports how many units it actually yielded.
type Fetcher interface {
	Fetch(ctx context.Context) (units float64, err error)
}

// Leaf is a leaf work source. It runs up to MaxFetchers concurrent
// fetch operations, each consuming one reference unit of the quota its
// parent group debited on dispatch. A fetch that comes back empty
// moves that unit into deferred quota, so wasted allocation is paid
// back gradually instead of vanishing.
type Leaf struct {
	source.Base
	logger  *slog.Logger
	fetcher Fetcher

	lifeMu sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statMu          sync.Mutex
	runningFetchers int
	runningUnits    float64
}

// NewLeaf creates a leaf work source of the given kind backed by fetcher.
func NewLeaf(id uuid.UUID, kind model.SourceKind, cfg model.SourceConfig, fetcher Fetcher, logger *slog.Logger) *Leaf {
	return &Leaf{
		Base:    source.NewBase(id, kind, cfg),
		logger:  logger.With("component", "provider", "source", cfg.Name),
		fetcher: fetcher,
	}
}

// Start brings the leaf online. Idempotent.
func (l *Leaf) Start() error {
	l.lifeMu.Lock()
	defer l.lifeMu.Unlock()
	if l.Started() {
		return nil
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.SetStarted(true)
	return nil
}

// Stop cancels in-flight fetches and waits for them to drain.
func (l *Leaf) Stop() error {
	l.lifeMu.Lock()
	defer l.lifeMu.Unlock()
	if !l.Started() {
		return nil
	}
	l.cancel()
	l.wg.Wait()
	l.SetStarted(false)
	return nil
}

// StartFetchers launches up to count fetch operations worth at most
// maxUnits units. Returns how many were started and the unit volume
// they are expected to produce; (0, 0) means no capacity.
func (l *Leaf) StartFetchers(count int, maxUnits float64) (int, float64) {
	if !l.Started() || !l.Enabled() || count == 0 {
		return 0, 0
	}
	cfg := l.Config()
	batch := cfg.BatchUnits
	if batch > maxUnits {
		batch = maxUnits
	}
	if batch <= 0 {
		return 0, 0
	}

	l.lifeMu.Lock()
	ctx := l.ctx
	l.lifeMu.Unlock()
	if ctx == nil {
		return 0, 0
	}

	l.statMu.Lock()
	free := cfg.MaxFetchers - l.runningFetchers
	n := count
	if n > free {
		n = free
	}
	if n <= 0 {
		l.statMu.Unlock()
		return 0, 0
	}
	l.runningFetchers += n
	l.runningUnits += float64(n) * batch
	l.statMu.Unlock()

	for i := 0; i < n; i++ {
		l.wg.Add(1)
		go l.runFetch(ctx, batch)
	}
	return n, float64(n) * batch
}

func (l *Leaf) runFetch(ctx context.Context, batch float64) {
	defer l.wg.Done()
	defer func() {
		l.statMu.Lock()
		l.runningFetchers--
		l.runningUnits -= batch
		l.statMu.Unlock()
	}()

	units, err := l.fetcher.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Warn("fetch failed", "error", err)
		}
		l.CreditDeferred(source.ReferenceUnit)
		return
	}
	if units == 0 {
		// Budget was offered but the upstream had nothing for us.
		l.CreditDeferred(source.ReferenceUnit)
		return
	}
	l.logger.Debug("fetch completed", "units", units)
}

// RunningFetcherCount reports in-flight fetch operations and their
// expected unit volume.
func (l *Leaf) RunningFetcherCount() (int, float64) {
	l.statMu.Lock()
	defer l.statMu.Unlock()
	return l.runningFetchers, l.runningUnits
}

// DispatchCost is one reference unit: the quota a parent debits to
// dispatch a single fetch to this leaf.
func (l *Leaf) DispatchCost() float64 {
	return source.ReferenceUnit
}

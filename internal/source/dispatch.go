package source

// Escalation bounds for the ring search. Without them a group whose
// children are all disabled or all out of quota would spin forever:
// after forceAfterIterations full rings the quota check is dropped
// entirely, and after maxIterations the search gives up and returns
// the best partial result seen. The two-stage replenish-then-force
// escalation is load-bearing for liveness; do not reorder it.
const (
	forceAfterIterations = 100
	maxIterations        = 150
)

// StartFetchers asks the group to begin up to count fetch operations
// worth at most maxUnits work units, delegating to children. Returns
// (0, 0) when the group is stopped, disabled, childless, or count is
// zero, or when no child could make progress.
func (g *Group) StartFetchers(count int, maxUnits float64) (int, float64) {
	if !g.Started() || !g.Enabled() || count == 0 {
		return 0, 0
	}

	started := 0
	produced := 0.0
	for started < count && produced < maxUnits {
		n, units := g.findAndStart(maxUnits, false)
		if n == 0 && units == 0 {
			n, units = g.findAndStart(maxUnits, true)
		}
		if n == 0 && units == 0 {
			break
		}
		started += n
		produced += units
	}
	return started, produced
}

// findAndStart performs one bounded search for a child that can take a
// fetch. Children are walked in ring order starting one past the
// previous call's cursor, so successive calls rotate through the list.
// An eligible child is optimistically debited its dispatch cost before
// the recursive call; the debit is refunded unless the child reports a
// full success (leaves account their own consumption once a fetcher
// actually starts). When a full ring finds no eligible child at all,
// the quota distributor runs and the walk retries, escalating per the
// constants above. Partial results (units without a started fetcher)
// are remembered and the best one is returned if nothing better turns
// up.
func (g *Group) findAndStart(maxUnits float64, force bool) (int, float64) {
	children, start := g.snapshotRing()
	if len(children) == 0 {
		return 0, 0
	}

	bestUnits := 0.0
	iteration := 0
	for {
		found := false
		for i := range children {
			child := children[(start+i)%len(children)]
			if !child.Config().Enabled {
				continue
			}
			cost := child.DispatchCost()
			if !force && child.PendingQuota() < cost {
				continue
			}
			found = true
			if cost > 0 {
				child.AddPendingQuota(-cost)
			}
			n, units := child.StartFetchers(1, maxUnits)
			if n > 0 {
				// Full success: the debit stands as consumed budget.
				return n, units
			}
			// No fetcher started; the reservation must not leak.
			if cost > 0 {
				child.AddPendingQuota(cost)
			}
			if units > bestUnits {
				bestUnits = units
			}
		}
		if found {
			// Every eligible child was tried and none fully
			// succeeded; hand back the best partial.
			return 0, bestUnits
		}
		g.replenish()
		iteration++
		if iteration > maxIterations {
			return 0, bestUnits
		}
		if iteration > forceAfterIterations {
			force = true
		}
	}
}

// snapshotRing copies the child list and advances the rotation cursor,
// both under the child-list lock, so concurrent dispatch calls start
// their walks at different children.
func (g *Group) snapshotRing() ([]Source, int) {
	g.childMu.Lock()
	defer g.childMu.Unlock()
	if len(g.children) == 0 {
		return nil, 0
	}
	g.lastIndex++
	if g.lastIndex >= len(g.children) {
		g.lastIndex = 0
	}
	children := make([]Source, len(g.children))
	copy(children, g.children)
	return children, g.lastIndex
}

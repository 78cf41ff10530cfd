package source

// replenish converts the wall-clock time elapsed since the previous
// tick into a fresh yield budget and spreads it over the enabled
// children. Two passes:
//
//  1. Every enabled child is credited elapsed x its yield rate, plus
//     the payback share of its deferred quota; its deferred balance
//     decays. The yield credit is subtracted from the pool.
//  2. Whatever pool remains is split among enabled children in
//     proportion to priority.
//
// Disabled children are untouched. Counter updates go through each
// child's own state lock; the group's state lock is held for the whole
// tick so concurrent dispatch never observes a half-distributed pool.
func (g *Group) replenish() {
	children := g.Children()

	g.Base.mu.Lock()
	defer g.Base.mu.Unlock()

	now := g.now()
	elapsed := now.Sub(g.lastTime).Seconds()
	g.lastTime = now

	pool := elapsed * ReferenceUnit * g.cfg.Granularity
	totalPriority := 0.0

	for _, child := range children {
		cfg := child.Config()
		if !cfg.Enabled {
			continue
		}
		totalPriority += cfg.Priority
		credit := elapsed * cfg.YieldRate
		child.ReplenishQuota(credit)
		pool -= credit
	}

	if pool > 0 && totalPriority > 0 {
		unit := pool / totalPriority
		for _, child := range children {
			cfg := child.Config()
			if !cfg.Enabled {
				continue
			}
			child.AddPendingQuota(unit * cfg.Priority)
		}
	}
}

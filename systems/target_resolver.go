package systems

import (
	"math"

	"github.com/pthm-cable/combatcore/components"
)

// TargetResolver resolves per-observer candidate scoring, 1-vs-1 lock
// arbitration, memory-backed search when line of sight is lost, and
// sector-based surround bookkeeping.
type TargetResolver struct {
	grid      Grid
	factions  *FactionTable
	obstacles Obstacles
	query     AgentQuery
	memory    *TargetMemory
	locks     *TargetLock
	cfg       ResolverConfig
	losCache  map[losCacheKey]losCacheEntry

	// engaged tracks, outside of formal locks, which attackers currently
	// have a target as their live intent. Used by the combat-priority
	// penalty (rule 9) when one_vs_one locking is disabled or hasn't
	// caught up yet.
	engaged map[components.Handle]map[components.Handle]components.Faction
}

// NewTargetResolver wires a resolver against the given grid, faction
// table, agent query, and optional static obstacles.
func NewTargetResolver(grid Grid, factions *FactionTable, query AgentQuery, obstacles Obstacles, cfg ResolverConfig) *TargetResolver {
	return &TargetResolver{
		grid:      grid,
		factions:  factions,
		obstacles: obstacles,
		query:     query,
		memory:    NewTargetMemory(cfg.MemoryDurationTicks, cfg.MaxSearchAttempts),
		locks:     NewTargetLock(),
		cfg:       cfg,
		losCache:  make(map[losCacheKey]losCacheEntry),
		engaged:   make(map[components.Handle]map[components.Handle]components.Faction),
	}
}

// Memory exposes the resolver's memory table, e.g. for the brain's
// search-fallback movement.
func (r *TargetResolver) Memory() *TargetMemory { return r.memory }

// Locks exposes the resolver's lock table.
func (r *TargetResolver) Locks() *TargetLock { return r.locks }

// MarkEngaged records that attacker currently has target as a live
// chase/attack intent, for the combat-priority penalty (rule 9).
func (r *TargetResolver) MarkEngaged(target, attacker components.Handle, attackerFaction components.Faction) {
	m, ok := r.engaged[target]
	if !ok {
		m = make(map[components.Handle]components.Faction)
		r.engaged[target] = m
	}
	m[attacker] = attackerFaction
}

// ClearEngaged forgets attacker's engagement with every target. Call on
// intent change or death.
func (r *TargetResolver) ClearEngaged(attacker components.Handle) {
	for target, m := range r.engaged {
		delete(m, attacker)
		if len(m) == 0 {
			delete(r.engaged, target)
		}
	}
}

func (r *TargetResolver) isEngagedByAllyOf(target components.Handle, faction components.Faction, exclude components.Handle) bool {
	m, ok := r.engaged[target]
	if !ok {
		return false
	}
	for attacker, f := range m {
		if attacker != exclude && f == faction {
			return true
		}
	}
	return false
}

// checkLOS answers visibility between observer and target, consulting
// and populating the resolver's cache. maxDist is the looser of the
// observer's detection range and the configured LOS distance cap.
func (r *TargetResolver) checkLOS(observer, target components.Handle, a, b components.Position, observerFaction components.Faction, maxDist float32, tick int64) bool {
	key := losKey(a, b)
	if e, ok := r.losCache[key]; ok && tick <= e.expiresAt {
		return e.visible
	}
	visible := computeLOS(a, b, observer, target, maxDist, r.obstacles, r.grid, observerFaction, r.factions, r.cfg)
	r.losCache[key] = losCacheEntry{visible: visible, expiresAt: tick + r.cfg.LOSCacheTimeoutTicks}
	return visible
}

// losBound is the distance inside which LOS may succeed: when both the
// detection range and the configured cap apply, the looser bound wins.
func (r *TargetResolver) losBound(detectionRange float32) float32 {
	if detectionRange > r.cfg.MaxLineOfSightDistance {
		return detectionRange
	}
	return r.cfg.MaxLineOfSightDistance
}

const sectorCount = 8

// sectorOf buckets the direction from target to attacker into one of 8
// equal 45-degree wedges, used for surround bookkeeping.
func sectorOf(targetPos, attackerPos components.Position) int {
	angle := math.Atan2(float64(attackerPos.Y-targetPos.Y), float64(attackerPos.X-targetPos.X))
	if angle < 0 {
		angle += 2 * math.Pi
	}
	s := int(angle / (math.Pi / 4))
	if s >= sectorCount {
		s = sectorCount - 1
	}
	return s
}

// score runs the full candidate-scoring pipeline, in order.
func (r *TargetResolver) score(attacker components.Handle, attackerPos components.Position, attackerFaction components.Faction, detectionRange float32, hit Hit, tick int64) (float32, bool) {
	stats, ok := r.query.Stats(hit.Entity)
	if !ok {
		return 0, false
	}

	// 1. base
	score := float32(100)

	// 2. wounded bonus
	if stats.MaxHP > 0 {
		score += 100 * (1 - stats.HP/stats.MaxHP)
	}

	// 3. threat bonus
	score += 30 * (stats.BaseAttack / 50)

	// 4. type bonus
	switch hit.Type {
	case components.TypePlayer:
		score += 300
	case components.TypeBoss:
		score += 150
	case components.TypeElite:
		score += 50
	}

	dist := hit.Dist()

	// 5. distance factor
	distFactor := float32(0.5)
	rem := (200 - dist) / 200
	if rem < 0 {
		rem = 0
	}
	distFactor += 0.5 * rem
	score *= distFactor

	// 6. LOS multiplier
	visible := r.checkLOS(attacker, hit.Entity, attackerPos, hit.Pos, attackerFaction, r.losBound(detectionRange), tick)
	if visible {
		score *= 1.2
	}

	// 7. surround adjustment
	if r.cfg.EnableSurround {
		score *= r.surroundFactor(attackerPos, hit, attackerFaction)
	}

	// 8 / 9. lock adjustments, else combat-priority penalty
	appliedLockRule := false
	if r.cfg.EnableOneVsOne {
		holder, targetLocked := r.locks.HolderOf(hit.Entity)
		_, attackerLocked := r.locks.TargetOf(attacker)
		switch {
		case targetLocked && holder == attacker:
			// the locked pair itself: bidirectional bookkeeping means
			// holder == attacker implies attacker's lock is this target
			appliedLockRule = true
			score *= r.cfg.LockedPairPenalty
		case targetLocked:
			appliedLockRule = true
			score *= 0.05
		case attackerLocked:
			// attacker is already committed to some other target
			appliedLockRule = true
			score *= 0.05
		}
	}
	if !appliedLockRule && r.isEngagedByAllyOf(hit.Entity, attackerFaction, attacker) {
		score *= r.cfg.CombatPriorityPenalty
	}

	return score, visible
}

func (r *TargetResolver) surroundFactor(attackerPos components.Position, hit Hit, attackerFaction components.Faction) float32 {
	neighbors := r.grid.QueryRadius(hit.Pos, r.cfg.CombatDetectionRange, QueryOptions{
		Factions:  []components.Faction{attackerFaction},
		Ignore:    hit.Entity,
		HasIgnore: true,
	})
	mySector := sectorOf(hit.Pos, attackerPos)
	counts := make([]int, sectorCount)
	for _, n := range neighbors {
		counts[sectorOf(hit.Pos, n.Pos)]++
	}

	factor := float32(1)
	if counts[mySector] >= r.cfg.SectorCrowdingThreshold {
		factor *= r.cfg.SectorCrowdingPenalty
	}
	left := (mySector + sectorCount - 1) % sectorCount
	right := (mySector + 1) % sectorCount
	if counts[left] == 0 && counts[right] == 0 {
		factor *= r.cfg.SurroundBonus
	}
	opposite := (mySector + sectorCount/2) % sectorCount
	if counts[opposite] == 0 {
		factor *= 0.8 * r.cfg.SurroundBonus
	}
	return factor
}

// FindBest scores every living hostile within detectionRange and
// returns the highest-scoring visible candidate. When no candidate is
// visible it falls back to a memory search around remembered last-seen
// positions, charging a search attempt per remembered target.
func (r *TargetResolver) FindBest(observer components.Handle, observerPos components.Position, observerFaction components.Faction, detectionRange float32, tick int64) (TargetInfo, bool) {
	enemies := r.factions.Enemies(observerFaction)
	if len(enemies) == 0 {
		return TargetInfo{}, false
	}
	hits := r.grid.QueryRadius(observerPos, detectionRange, QueryOptions{
		Factions:  enemies,
		OnlyAlive: true,
		Ignore:    observer,
		HasIgnore: true,
	})

	best := TargetInfo{}
	found := false
	for _, h := range hits {
		s, visible := r.score(observer, observerPos, observerFaction, detectionRange, h, tick)
		if visible {
			r.memory.Observe(observer, h.Entity, h.Pos, tick, true)
			if !found || s > best.Score {
				best = TargetInfo{Entity: h.Entity, Pos: h.Pos, Score: s, Visible: true}
				found = true
			}
		}
	}
	if found {
		return best, true
	}
	return r.memorySearch(observer, tick)
}

// memorySearch scans inside the configured search radius around every
// non-expired remembered position. Each scan, hit or miss, spends one
// search attempt; entries whose budget is exhausted are dropped by the
// attempt accounting itself.
func (r *TargetResolver) memorySearch(observer components.Handle, tick int64) (TargetInfo, bool) {
	for _, e := range r.memory.EntriesFor(observer, tick) {
		hits := r.grid.QueryRadius(e.LastSeenPos, r.cfg.SearchRadius, QueryOptions{OnlyAlive: true})
		var foundHit Hit
		foundTarget := false
		for _, h := range hits {
			if h.Entity == e.Target {
				foundHit = h
				foundTarget = true
				break
			}
		}
		r.memory.RegisterSearchAttempt(observer, e.Target)
		if foundTarget {
			r.memory.Observe(observer, e.Target, foundHit.Pos, tick, true)
			return TargetInfo{Entity: e.Target, Pos: foundHit.Pos, Visible: false}, true
		}
	}
	return TargetInfo{}, false
}

// FindAndLock runs FindBest and, when one_vs_one is enabled, attempts to
// acquire a lock on the winner. It reports the target together with
// whether the lock (if applicable) succeeded.
func (r *TargetResolver) FindAndLock(observer components.Handle, observerPos components.Position, observerFaction components.Faction, detectionRange float32, tick int64) (TargetInfo, bool) {
	info, found := r.FindBest(observer, observerPos, observerFaction, detectionRange, tick)
	if !found {
		return info, false
	}
	if r.cfg.EnableOneVsOne {
		alive := agentAliveAdapter{r.query}
		if !r.locks.Acquire(info.Entity, observer, alive) {
			return TargetInfo{}, false
		}
	}
	r.MarkEngaged(info.Entity, observer, observerFaction)
	return info, true
}

// RecallOrSearch returns a remembered position to move toward when no
// live target is visible, incrementing the search-attempt counter. It
// reports false once the memory has expired or the search budget is
// exhausted.
func (r *TargetResolver) RecallOrSearch(observer, target components.Handle, tick int64) (components.Position, bool) {
	pos, ok := r.memory.Recall(observer, target, tick)
	if !ok {
		return components.Position{}, false
	}
	if r.memory.RegisterSearchAttempt(observer, target) {
		return components.Position{}, false
	}
	return pos, true
}

// ReleaseAttacker releases any lock and engagement held by attacker, and
// forgets its memory. Called on death, despawn, or intent change.
func (r *TargetResolver) ReleaseAttacker(attacker components.Handle) {
	r.locks.ReleaseAttacker(attacker)
	r.ClearEngaged(attacker)
	r.memory.ForgetObserver(attacker)
}

// ReleaseTarget releases the lock held on target and clears every
// engagement on it. Observers' memory of target is left in place.
// Called when target dies.
func (r *TargetResolver) ReleaseTarget(target components.Handle) {
	r.locks.ReleaseTarget(target)
	delete(r.engaged, target)
}

// Sweep runs periodic maintenance: stale-lock cleanup and memory
// pruning, releasing any deadlocked pairs.
func (r *TargetResolver) Sweep(tick int64) {
	alive := agentAliveAdapter{r.query}
	r.locks.Sweep(alive)
	r.memory.Prune(tick)
}

type agentAliveAdapter struct{ q AgentQuery }

func (a agentAliveAdapter) IsAlive(h components.Handle) bool { return a.q.IsAlive(h) }

package systems

import (
	"sort"

	"github.com/pthm-cable/combatcore/components"
)

// memoryEntry is what an observer remembers about a single target.
type memoryEntry struct {
	lastSeenPos     components.Position
	lastSeenTick    int64
	wasVisible      bool
	searchAttempts  int
	memoryExpiresAt int64
}

// TargetMemory lets an observer keep chasing a target's last-known
// position after losing line of sight, for a bounded duration and a
// bounded number of search attempts.
type TargetMemory struct {
	byObserver map[components.Handle]map[components.Handle]*memoryEntry
	duration   int64
	maxSearch  int
}

// NewTargetMemory builds a memory table with the given retention window
// (in ticks) and maximum search-attempt budget per lost target.
func NewTargetMemory(durationTicks int64, maxSearchAttempts int) *TargetMemory {
	return &TargetMemory{
		byObserver: make(map[components.Handle]map[components.Handle]*memoryEntry),
		duration:   durationTicks,
		maxSearch:  maxSearchAttempts,
	}
}

// Observe records a sighting (visible=true) or a memory refresh
// (visible=false, called while still tracking a remembered position).
func (m *TargetMemory) Observe(observer, target components.Handle, pos components.Position, tick int64, visible bool) {
	targets, ok := m.byObserver[observer]
	if !ok {
		targets = make(map[components.Handle]*memoryEntry)
		m.byObserver[observer] = targets
	}
	e, ok := targets[target]
	if !ok {
		e = &memoryEntry{}
		targets[target] = e
	}
	e.lastSeenPos = pos
	e.lastSeenTick = tick
	e.wasVisible = visible
	e.memoryExpiresAt = tick + m.duration
	if visible {
		e.searchAttempts = 0
	}
}

// Recall returns the last known position of target for observer, if it
// has not expired.
func (m *TargetMemory) Recall(observer, target components.Handle, tick int64) (components.Position, bool) {
	targets, ok := m.byObserver[observer]
	if !ok {
		return components.Position{}, false
	}
	e, ok := targets[target]
	if !ok || tick > e.memoryExpiresAt {
		return components.Position{}, false
	}
	return e.lastSeenPos, true
}

// RegisterSearchAttempt increments the search-attempt counter for a lost
// target and reports whether the budget is exhausted, meaning the
// memory entry should be discarded.
func (m *TargetMemory) RegisterSearchAttempt(observer, target components.Handle) (exhausted bool) {
	targets, ok := m.byObserver[observer]
	if !ok {
		return true
	}
	e, ok := targets[target]
	if !ok {
		return true
	}
	e.searchAttempts++
	if e.searchAttempts >= m.maxSearch {
		delete(targets, target)
		return true
	}
	return false
}

// MemorySearchEntry is one remembered target a memory search may scan
// around.
type MemorySearchEntry struct {
	Target      components.Handle
	LastSeenPos components.Position
}

// EntriesFor returns observer's non-expired entries, ordered by target
// handle id so a search fallback visits them in a stable order.
func (m *TargetMemory) EntriesFor(observer components.Handle, tick int64) []MemorySearchEntry {
	targets, ok := m.byObserver[observer]
	if !ok {
		return nil
	}
	out := make([]MemorySearchEntry, 0, len(targets))
	for target, e := range targets {
		if tick > e.memoryExpiresAt {
			continue
		}
		out = append(out, MemorySearchEntry{Target: target, LastSeenPos: e.lastSeenPos})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target.ID() < out[j].Target.ID() })
	return out
}

// Forget removes all memory of target for observer.
func (m *TargetMemory) Forget(observer, target components.Handle) {
	if targets, ok := m.byObserver[observer]; ok {
		delete(targets, target)
	}
}

// ForgetObserver removes all memory held by observer, e.g. on death.
func (m *TargetMemory) ForgetObserver(observer components.Handle) {
	delete(m.byObserver, observer)
}

// Prune drops every expired entry across all observers. Intended to run
// periodically, not every tick, to keep per-tick cost bounded.
func (m *TargetMemory) Prune(tick int64) {
	for observer, targets := range m.byObserver {
		for target, e := range targets {
			if tick > e.memoryExpiresAt {
				delete(targets, target)
			}
		}
		if len(targets) == 0 {
			delete(m.byObserver, observer)
		}
	}
}

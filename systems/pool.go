package systems

import "github.com/pthm-cable/combatcore/components"

// ResetFunc restores an acquired handle's components to spawn-fresh
// values (hp, position, facing, flags) and runs any per-kind on_reuse
// hook. Supplied by the world/factory layer, since the pool itself
// holds no component data.
type ResetFunc func(h components.Handle, spawnPos components.Position)

// ReleaseFunc stops animation, clears timers, zeroes velocity, and
// deactivates an agent or projectile on release.
type ReleaseFunc func(h components.Handle)

// poolKind is one free-list bucket, keyed by the level descriptor's
// agent_kind / projectile_id string.
type poolKind struct {
	free  []components.Handle
	reset ResetFunc
	rel   ReleaseFunc
}

// Pool recycles agents and projectiles instead of freeing them: an
// acquire/release free-list API with pre-warming and a recycle event.
type Pool struct {
	events *EventSink
	kinds  map[string]*poolKind
	owner  map[components.Handle]string
}

// NewPool builds an empty pool. Register kinds with RegisterKind before
// pre-warming or acquiring.
func NewPool(events *EventSink) *Pool {
	return &Pool{
		events: events,
		kinds:  make(map[string]*poolKind),
		owner:  make(map[components.Handle]string),
	}
}

// RegisterKind declares a free-list bucket for kind, with the reset/
// release hooks the world supplies for it.
func (p *Pool) RegisterKind(kind string, reset ResetFunc, release ReleaseFunc) {
	p.kinds[kind] = &poolKind{reset: reset, rel: release}
}

// Prewarm seeds kind's free list with the given freshly-minted handles;
// the caller decides how many (LoadLevel mints the kind's summed
// max_count).
func (p *Pool) Prewarm(kind string, handles []components.Handle) {
	k, ok := p.kinds[kind]
	if !ok {
		return
	}
	k.free = append(k.free, handles...)
	for _, h := range handles {
		p.owner[h] = kind
	}
}

// Acquire pops a free handle of kind, resets it in place at spawnPos, and
// returns it with ok=false if the free list is exhausted (the level's
// max_count was reached; the caller should treat this as "no handle
// available" rather than minting a new one).
func (p *Pool) Acquire(kind string, spawnPos components.Position) (components.Handle, bool) {
	k, ok := p.kinds[kind]
	if !ok || len(k.free) == 0 {
		return components.Handle{}, false
	}
	n := len(k.free)
	h := k.free[n-1]
	k.free = k.free[:n-1]
	if k.reset != nil {
		k.reset(h, spawnPos)
	}
	return h, true
}

// Release returns h to its kind's free list, running the release hook
// and emitting the recycle event.
func (p *Pool) Release(h components.Handle) {
	kind, ok := p.owner[h]
	if !ok {
		return
	}
	k := p.kinds[kind]
	if k.rel != nil {
		k.rel(h)
	}
	k.free = append(k.free, h)
	if p.events != nil {
		p.events.emit(Event{Kind: EventPoolRecycle, Handle: h})
	}
}

// Available reports how many handles of kind are currently free.
func (p *Pool) Available(kind string) int {
	k, ok := p.kinds[kind]
	if !ok {
		return 0
	}
	return len(k.free)
}

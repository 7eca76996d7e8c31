package game

import (
	"github.com/pthm-cable/combatcore/components"
)

// Spawn pulls a free handle from kind's pool (reset to spawnPos, alive,
// with its kind's default faction already wired into the grid/ORCA),
// then overrides faction if the host asked for a different one than
// the level descriptor's default for this kind. ok is false when
// kind's pool is exhausted (max_count already in play).
func (d *Driver) Spawn(kind string, pos components.Position, faction components.Faction) (components.Handle, bool) {
	h, ok := d.pool.Acquire(kind, pos)
	if !ok {
		return components.Handle{}, false
	}

	meta, ok := d.world.Meta(h)
	if ok && meta.Faction != faction {
		meta.Faction = faction
		d.world.SetMeta(h, meta)

		d.grid.Unregister(h)
		d.grid.Register(h, faction, meta.Type, pos)

		d.orca.Unregister(h)
		if body, ok := d.world.Body(h); ok {
			d.orca.Register(h, pos, body.Radius, body.MaxSpeed, meta.Type, faction)
		}
	}
	return h, true
}

// FactionAliveCount reports how many of faction's agents currently carry
// FlagAlive, for a host (or the parameter tuner) that needs to observe
// combat outcome without the core persisting any state of its own.
func (d *Driver) FactionAliveCount(faction components.Faction) int {
	count := 0
	d.world.Each(func(h components.Handle) {
		meta, ok := d.world.Meta(h)
		if !ok || !meta.Flags.Has(components.FlagAlive) || meta.Flags.Has(components.FlagIsProjectile) {
			return
		}
		if meta.Faction == faction {
			count++
		}
	})
	return count
}

// SetIntent installs a manual, sticky override that wins over the
// brain's own decision for handle until the host calls SetIntent again.
// Passing IntentNone releases handle back to AI control.
func (d *Driver) SetIntent(handle components.Handle, intent components.Intent) {
	if intent.Kind == components.IntentNone {
		delete(d.manual, handle)
		return
	}
	d.manual[handle] = intent
}

// ApplyDamage applies damage from an external source (scripted trap,
// host-driven effect) that bypasses the faction hostility check
// Combat.DealDamage enforces between agents.
func (d *Driver) ApplyDamage(handle components.Handle, amount float32) {
	d.combat.ApplyExternalDamage(handle, amount)
}

// SetWalkable flips every NavGrid cell overlapping rect and
// invalidates every cached path with a waypoint within half the rect's
// diagonal of its center, so the pathfinder's next request for such a
// path sees the change immediately rather than after its cache timeout.
// A cached path that crosses the rect with no waypoint that close stays
// cached.
func (d *Driver) SetWalkable(rect Rect, walkable bool) {
	if d.navGrid == nil {
		return
	}
	minGX, minGY := d.navGrid.WorldToGrid(components.Position{X: rect.MinX, Y: rect.MinY})
	maxGX, maxGY := d.navGrid.WorldToGrid(components.Position{X: rect.MaxX, Y: rect.MaxY})
	for gx := minGX; gx <= maxGX; gx++ {
		for gy := minGY; gy <= maxGY; gy++ {
			if d.navGrid.InBounds(gx, gy) {
				d.navGrid.SetWalkable(gx, gy, walkable)
			}
		}
	}

	if d.paths == nil {
		return
	}
	center := components.Position{X: (rect.MinX + rect.MaxX) / 2, Y: (rect.MinY + rect.MaxY) / 2}
	radius := dist2D(components.Position{X: rect.MinX, Y: rect.MinY}, components.Position{X: rect.MaxX, Y: rect.MaxY}) / 2
	d.paths.MarkWalkable(center, walkable, radius)
}

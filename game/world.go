// Package game wires the systems package's subsystems into one owning
// world and a fixed-step driver.
package game

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/combatcore/components"
)

// World owns every agent and projectile's component data. It is the
// only thing in the module holding a direct ECS reference; every
// subsystem consumes it through the narrow AgentQuery/HPMutator/
// PositionMutator/Obstacles/AliveLookup interfaces instead, so
// cross-cutting concerns query typed methods rather than downcast.
type World struct {
	ecsWorld *ecs.World

	mapper *ecs.Map5[components.Position, components.Velocity, components.Body, components.Meta, components.Stats]
	filter *ecs.Filter5[components.Position, components.Velocity, components.Body, components.Meta, components.Stats]

	posMap   *ecs.Map1[components.Position]
	velMap   *ecs.Map1[components.Velocity]
	bodyMap  *ecs.Map1[components.Body]
	metaMap  *ecs.Map1[components.Meta]
	statsMap *ecs.Map1[components.Stats]

	obstacles []Rect
}

// Rect is a static axis-aligned obstacle. Static obstacles always
// block line of sight and pathfinding.
type Rect struct {
	MinX, MinY, MaxX, MaxY float32
}

func (r Rect) contains(pos components.Position) bool {
	return pos.X >= r.MinX && pos.X <= r.MaxX && pos.Y >= r.MinY && pos.Y <= r.MaxY
}

// NewWorld builds an empty ECS world with the five shared components
// registered, plus a static obstacle list.
func NewWorld(obstacles []Rect) *World {
	ecsWorld := ecs.NewWorld()
	return &World{
		ecsWorld: ecsWorld,
		mapper: ecs.NewMap5[
			components.Position,
			components.Velocity,
			components.Body,
			components.Meta,
			components.Stats,
		](ecsWorld),
		filter: ecs.NewFilter5[
			components.Position,
			components.Velocity,
			components.Body,
			components.Meta,
			components.Stats,
		](ecsWorld),
		posMap:    ecs.NewMap1[components.Position](ecsWorld),
		velMap:    ecs.NewMap1[components.Velocity](ecsWorld),
		bodyMap:   ecs.NewMap1[components.Body](ecsWorld),
		metaMap:   ecs.NewMap1[components.Meta](ecsWorld),
		statsMap:  ecs.NewMap1[components.Stats](ecsWorld),
		obstacles: obstacles,
	}
}

// NewEntity mints one fresh, permanent slot. The pool cycles its
// component values for the life of the level; the entity itself is
// never removed from the ECS store, so its generational handle
// survives every acquire/release cycle.
func (w *World) NewEntity(pos components.Position, vel components.Velocity, body components.Body, meta components.Meta, stats components.Stats) components.Handle {
	return w.mapper.NewEntity(&pos, &vel, &body, &meta, &stats)
}

// Each iterates every live (ECS-present) handle. Pooled-but-released
// entities are still iterated (the component set is never removed);
// callers needing only active agents should check Meta.Flags.Has(FlagAlive).
func (w *World) Each(fn func(h components.Handle)) {
	query := w.filter.Query()
	for query.Next() {
		fn(query.Entity())
	}
}

// Position implements systems.AgentQuery.
func (w *World) Position(h components.Handle) (components.Position, bool) {
	if !w.ecsWorld.Alive(h) {
		return components.Position{}, false
	}
	return *w.posMap.Get(h), true
}

// Faction implements systems.AgentQuery.
func (w *World) Faction(h components.Handle) (components.Faction, bool) {
	if !w.ecsWorld.Alive(h) {
		return 0, false
	}
	return w.metaMap.Get(h).Faction, true
}

// Type implements systems.AgentQuery.
func (w *World) Type(h components.Handle) (components.EntityType, bool) {
	if !w.ecsWorld.Alive(h) {
		return 0, false
	}
	return w.metaMap.Get(h).Type, true
}

// Stats implements systems.AgentQuery.
func (w *World) Stats(h components.Handle) (components.Stats, bool) {
	if !w.ecsWorld.Alive(h) {
		return components.Stats{}, false
	}
	return *w.statsMap.Get(h), true
}

// IsAlive implements systems.AgentQuery and systems.AliveLookup: a
// handle counts as alive only while its FlagAlive bit is set, which the
// driver clears the instant the state machine enters Dead.
func (w *World) IsAlive(h components.Handle) bool {
	if !w.ecsWorld.Alive(h) {
		return false
	}
	return w.metaMap.Get(h).Flags.Has(components.FlagAlive)
}

// SetPosition implements systems.PositionMutator.
func (w *World) SetPosition(h components.Handle, pos components.Position) {
	if !w.ecsWorld.Alive(h) {
		return
	}
	*w.posMap.Get(h) = pos
}

// SetVelocity commits a driver-integrated or ORCA-resolved velocity.
func (w *World) SetVelocity(h components.Handle, vel components.Velocity) {
	if !w.ecsWorld.Alive(h) {
		return
	}
	*w.velMap.Get(h) = vel
}

// Body returns h's collision geometry.
func (w *World) Body(h components.Handle) (components.Body, bool) {
	if !w.ecsWorld.Alive(h) {
		return components.Body{}, false
	}
	return *w.bodyMap.Get(h), true
}

// Meta returns h's faction/type/behavior/flags bundle.
func (w *World) Meta(h components.Handle) (components.Meta, bool) {
	if !w.ecsWorld.Alive(h) {
		return components.Meta{}, false
	}
	return *w.metaMap.Get(h), true
}

// SetMeta overwrites h's faction/type/behavior/flags bundle.
func (w *World) SetMeta(h components.Handle, meta components.Meta) {
	if !w.ecsWorld.Alive(h) {
		return
	}
	*w.metaMap.Get(h) = meta
}

// SetFlag toggles one bit of h's Meta.Flags in place.
func (w *World) SetFlag(h components.Handle, flag components.Flags, on bool) {
	if !w.ecsWorld.Alive(h) {
		return
	}
	m := w.metaMap.Get(h)
	m.Flags = m.Flags.Set(flag, on)
}

// SetStats overwrites h's combat numbers.
func (w *World) SetStats(h components.Handle, stats components.Stats) {
	if !w.ecsWorld.Alive(h) {
		return
	}
	*w.statsMap.Get(h) = stats
}

// SetLastAttackTime updates just the cooldown field of h's Stats, so the
// brain's next decide call sees the same cooldown state the state
// machine is enforcing.
func (w *World) SetLastAttackTime(h components.Handle, at float64) {
	if !w.ecsWorld.Alive(h) {
		return
	}
	w.statsMap.Get(h).LastAttackTime = at
}

// ApplyDamage implements systems.HPMutator: decrements hp, floored at
// zero, and reports whether the hit was lethal.
func (w *World) ApplyDamage(h components.Handle, amount float32) (newHP float32, died bool) {
	if !w.ecsWorld.Alive(h) {
		return 0, false
	}
	s := w.statsMap.Get(h)
	s.HP -= amount
	if s.HP < 0 {
		s.HP = 0
	}
	return s.HP, s.HP <= 0
}

// IsBlocked implements systems.Obstacles.
func (w *World) IsBlocked(pos components.Position) bool {
	for _, r := range w.obstacles {
		if r.contains(pos) {
			return true
		}
	}
	return false
}

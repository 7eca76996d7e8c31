package systems

import (
	"sort"

	"github.com/pthm-cable/combatcore/components"
)

// HPMutator is the write side of agent health, kept separate from the
// read-only AgentQuery: Combat never holds component pointers directly,
// mutating hp only through a passed-in interface rather than owning the
// store itself.
type HPMutator interface {
	ApplyDamage(h components.Handle, amount float32) (newHP float32, died bool)
}

// PositionMutator commits a projectile's integrated position back into
// the world's component store, so the grid's cell bookkeeping (updated
// via Grid.Move) and AgentQuery.Position never diverge for a handle
// Combat moves on its own. Projectile integration is the one place
// Combat, rather than the driver, performs physics integration.
type PositionMutator interface {
	SetPosition(h components.Handle, pos components.Position)
}

// ProjectileSpec describes one ranged weapon's projectile: its pool
// kind, speed, lifetime, damage, and hit radius.
type ProjectileSpec struct {
	Kind          string
	Speed         float32
	LifetimeTicks int64
	Damage        float32
	Radius        float32
}

type projectileState struct {
	ownerFaction  components.Faction
	damage        float32
	radius        float32
	vel           components.Velocity
	spawnedAtTick int64
	expiresAtTick int64
}

type hitRecord struct {
	tookDamage bool
	dead       bool
}

// Combat implements deal_damage's hostility/hp/transition pipeline and
// the projectile (fireball) lifecycle. Hp mutates through a typed
// interface with a death check, the same pattern a metabolic-decay
// system would use, generalized to hostile damage application; the
// projectile hit test reuses the grid's predict_collision query.
type Combat struct {
	grid      Grid
	factions  *FactionTable
	events    *EventSink
	query     AgentQuery
	hp        HPMutator
	pos       PositionMutator
	pool      *Pool
	scheduler *EventScheduler

	offsets map[components.Facing]components.Position
	spec    ProjectileSpec

	projectiles map[components.Handle]*projectileState
	hits        map[components.Handle]*hitRecord
}

// NewCombat wires Combat against the shared grid, faction table, event
// sink, agent query, hp mutator, pool, and tick-scheduled event
// scheduler: the same one the FSM schedules attack-damage frames onto.
// Combat's own step performs projectile integration and drains
// scheduled damage events.
func NewCombat(grid Grid, factions *FactionTable, events *EventSink, query AgentQuery, hp HPMutator, pos PositionMutator, pool *Pool, scheduler *EventScheduler, offsets map[components.Facing]components.Position, spec ProjectileSpec) *Combat {
	return &Combat{
		grid:        grid,
		factions:    factions,
		events:      events,
		query:       query,
		hp:          hp,
		pos:         pos,
		pool:        pool,
		scheduler:   scheduler,
		offsets:     offsets,
		spec:        spec,
		projectiles: make(map[components.Handle]*projectileState),
		hits:        make(map[components.Handle]*hitRecord),
	}
}

// DealDamage is a no-op between same-faction or allied entities,
// otherwise an hp decrement recorded for the next tick's
// AgentStateMachine.Step to consume as tookDamage/dead.
func (c *Combat) DealDamage(attacker, target components.Handle, amount float32) {
	attackerFaction, ok := c.query.Faction(attacker)
	if !ok {
		return
	}
	targetFaction, ok := c.query.Faction(target)
	if !ok {
		return
	}
	if !c.factions.IsHostile(attackerFaction, targetFaction) {
		return
	}
	c.applyHit(attacker, target, amount)
}

// applyHit decrements target's hp unconditionally; callers (DealDamage,
// the projectile hit test) are responsible for verifying hostility
// first, since a projectile's owner faction never appears in AgentQuery.
func (c *Combat) applyHit(attacker, target components.Handle, amount float32) {
	_, died := c.hp.ApplyDamage(target, amount)
	c.events.emit(Event{Kind: EventDamageDealt, Attacker: attacker, Target: target, Amount: amount})
	c.hits[target] = &hitRecord{tookDamage: true, dead: died}
}

// ApplyExternalDamage is a host-driven hit with no attacking entity,
// bypassing the hostility check DealDamage enforces between agents (the
// host is always authorized to damage whatever it names). Folds into
// the same hit record AgentFSM.Step consumes, so an externally-damaged
// agent still transitions into Hurt/Dead on the next tick.
func (c *Combat) ApplyExternalDamage(target components.Handle, amount float32) {
	_, died := c.hp.ApplyDamage(target, amount)
	c.events.emit(Event{Kind: EventDamageDealt, Target: target, Amount: amount})
	c.hits[target] = &hitRecord{tookDamage: true, dead: died}
}

// ConsumeHit returns and clears target's pending hit record, for the
// driver to fold into the next AgentStateMachine.Step call. This is
// also where the one-shot hit flag gets cleared for the tick.
func (c *Combat) ConsumeHit(target components.Handle) (tookDamage, dead bool) {
	r, ok := c.hits[target]
	if !ok {
		return false, false
	}
	delete(c.hits, target)
	return r.tookDamage, r.dead
}

// SpawnProjectile handles a ranged attack: spawn position derives from
// projectile_offsets[facing] relative to the owner; velocity aims at
// target's live position when available, otherwise along the facing
// direction. tick is the spawn tick, used to set the projectile's
// absolute expiry. damage is the firing agent's own base_attack: every
// ranged kind shares one projectile's kinetics (speed/lifetime/radius/
// pool kind, from ProjectileSpec) but deals its own configured damage,
// the way a fireball and an arrow would differ in damage while sharing
// this engine's single ballistic-agent model.
func (c *Combat) SpawnProjectile(owner, target components.Handle, facing components.Facing, tick int64, damage float32) {
	ownerPos, ok := c.query.Position(owner)
	if !ok {
		return
	}
	ownerFaction, ok := c.query.Faction(owner)
	if !ok {
		return
	}
	offset := c.offsets[facing]
	origin := components.Position{X: ownerPos.X + offset.X, Y: ownerPos.Y + offset.Y}

	// Re-aim per shot: the acquired target's live position first, then
	// the nearest live enemy the projectile could still reach, then the
	// facing-derived angle.
	dir := facingDirection(facing)
	aim, haveAim := c.query.Position(target)
	if !haveAim || !c.query.IsAlive(target) {
		reach := c.spec.Speed * float32(c.spec.LifetimeTicks) / 60
		if hit, ok := c.grid.QueryNearest(origin, QueryOptions{
			Factions:    c.factions.Enemies(ownerFaction),
			OnlyAlive:   true,
			MaxDistance: reach,
			Ignore:      owner,
			HasIgnore:   true,
		}); ok {
			aim, haveAim = hit.Pos, true
		} else {
			haveAim = false
		}
	}
	if haveAim {
		dx, dy := aim.X-origin.X, aim.Y-origin.Y
		if n := vecLen(components.Velocity{X: dx, Y: dy}); n > 1e-6 {
			dir = components.Velocity{X: dx / n, Y: dy / n}
		}
	}

	h, ok := c.pool.Acquire(c.spec.Kind, origin)
	if !ok {
		return
	}
	c.grid.Register(h, ownerFaction, components.TypeNormal, origin)
	c.projectiles[h] = &projectileState{
		ownerFaction:  ownerFaction,
		damage:        damage,
		radius:        c.spec.Radius,
		vel:           components.Velocity{X: dir.X * c.spec.Speed, Y: dir.Y * c.spec.Speed},
		spawnedAtTick: tick,
		expiresAtTick: tick + c.spec.LifetimeTicks,
	}
	c.events.emit(Event{Kind: EventProjectileSpawn, ProjectileKind: c.spec.Kind, Origin: origin, Velocity: c.projectiles[h].vel, Amount: damage, OwnerFaction: ownerFaction})
}

func facingDirection(f components.Facing) components.Velocity {
	switch f {
	case components.FacingLeft:
		return components.Velocity{X: -1, Y: 0}
	case components.FacingRight:
		return components.Velocity{X: 1, Y: 0}
	case components.FacingBack:
		return components.Velocity{X: 0, Y: -1}
	default:
		return components.Velocity{X: 0, Y: 1}
	}
}

// Step integrates projectiles one tick, drains the shared event
// scheduler (damage frames, pool-return timers), and despawns
// expired/hit projectiles back to their pool. Projectiles advance in
// handle-id order so a tick's event stream never depends on map
// iteration order.
func (c *Combat) Step(dt float32, tick int64) {
	c.scheduler.Advance(tick)

	order := make([]components.Handle, 0, len(c.projectiles))
	for h := range c.projectiles {
		order = append(order, h)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].ID() < order[j].ID() })

	for _, h := range order {
		p := c.projectiles[h]
		if tick >= p.expiresAtTick {
			c.despawnProjectile(h)
			continue
		}
		pos, ok := c.query.Position(h)
		if !ok {
			c.despawnProjectile(h)
			continue
		}
		step := components.Velocity{X: p.vel.X * dt, Y: p.vel.Y * dt}
		newPos := components.Position{X: pos.X + step.X, Y: pos.Y + step.Y}
		c.grid.Move(h, newPos)
		c.pos.SetPosition(h, newPos)

		// Only hostile bodies stop the projectile: allies in the beam are
		// overflown, not shields for the enemy behind them.
		maxDist := vecLen(step)
		hit, found := c.grid.PredictCollision(pos, p.vel, maxDist, QueryOptions{
			Factions:   c.factions.Enemies(p.ownerFaction),
			BeamRadius: p.radius,
			OnlyAlive:  true,
			HasIgnore:  true,
			Ignore:     h,
		})
		if found {
			c.applyHit(h, hit.Entity, p.damage)
			c.despawnProjectile(h)
		}
	}
	c.grid.Flush()
}

func (c *Combat) despawnProjectile(h components.Handle) {
	delete(c.projectiles, h)
	c.grid.Unregister(h)
	c.pool.Release(h)
	c.events.emit(Event{Kind: EventProjectileDespawn, Handle: h})
}

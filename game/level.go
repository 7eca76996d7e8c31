package game

import (
	"fmt"

	"github.com/pthm-cable/combatcore/components"
	"github.com/pthm-cable/combatcore/config"
	"github.com/pthm-cable/combatcore/systems"
)

// parseFaction maps a level or agent config's faction name to its
// canonical components.Faction: descriptors name factions by string,
// not by the enum's wire value.
func parseFaction(name string) (components.Faction, bool) {
	for _, f := range components.AllFactions() {
		if f.String() == name {
			return f, true
		}
	}
	return 0, false
}

// parseEntityType maps an agent config's entity_type string onto the
// type-bonus tier the target-scoring pipeline reads, defaulting to
// Normal for the omitted/empty case.
func parseEntityType(name string) components.EntityType {
	switch name {
	case "player":
		return components.TypePlayer
	case "boss":
		return components.TypeBoss
	case "elite":
		return components.TypeElite
	default:
		return components.TypeNormal
	}
}

func parseBehavior(name string) components.Behavior {
	if name == "ranged" {
		return components.BehaviorRanged
	}
	return components.BehaviorMelee
}

func toPosition(p config.Point) components.Position {
	return components.Position{X: float32(p.X), Y: float32(p.Y)}
}

// LoadLevel mints every kind's pool of entities from the level/agent
// config descriptors, wires each kind's acquire/release hooks against
// the shared grid/ORCA/FSM, prewarms every pool to its max_count, spawns
// the level's starting population across each kind's spawn points, and
// builds the marching-band flow field from flow_field_pairs.
func (d *Driver) LoadLevel(desc config.LevelDescriptor, agents config.AgentConfigTable) error {
	// Two KindSpawn entries can name the same agent_kind under different
	// factions (one monster squad fielded by two armies), so pool
	// registration aggregates max_count by agent_kind rather than
	// registering - and silently overwriting - the same pool bucket once
	// per entry. The first entry naming a kind supplies its nominal
	// default faction; Spawn overrides it per-call when a later entry
	// spawns the same kind under a different faction.
	type kindAgg struct {
		faction  components.Faction
		behavior components.Behavior
		cfg      config.AgentConfig
		maxCount int
	}
	aggs := make(map[string]*kindAgg)
	var order []string
	for _, kind := range desc.Kinds {
		cfg, ok := agents.Get(kind.AgentKind)
		if !ok {
			return fmt.Errorf("game: level references unknown agent kind %q", kind.AgentKind)
		}
		faction, ok := parseFaction(kind.Faction)
		if !ok {
			return fmt.Errorf("game: level references unknown faction %q", kind.Faction)
		}
		agg, exists := aggs[kind.AgentKind]
		if !exists {
			agg = &kindAgg{faction: faction, behavior: parseBehavior(kind.Behavior), cfg: cfg}
			aggs[kind.AgentKind] = agg
			order = append(order, kind.AgentKind)
		}
		agg.maxCount += kind.MaxCount
	}
	rangedSlots := 0
	for _, name := range order {
		agg := aggs[name]
		if err := d.registerAgentKind(name, agg.faction, agg.behavior, agg.cfg, agg.maxCount); err != nil {
			return err
		}
		if agg.behavior == components.BehaviorRanged {
			rangedSlots += agg.maxCount
		}
	}
	d.registerProjectileKind(rangedSlots)

	for _, kind := range desc.Kinds {
		if len(kind.SpawnPoints) == 0 {
			continue
		}
		faction, _ := parseFaction(kind.Faction)
		for i := 0; i < kind.InitialCount; i++ {
			pt := kind.SpawnPoints[i%len(kind.SpawnPoints)]
			if _, ok := d.Spawn(kind.AgentKind, toPosition(pt), faction); !ok {
				break // pool exhausted: max_count reached before initial_count
			}
		}
	}

	d.SetFlowField(buildFlowField(desc))
	return nil
}

// registerAgentKind mints max_count permanent ECS slots for kind, then
// registers a pool bucket whose reset hook replays every mutable field a
// pooled reuse must refresh (position, hp, flags, grid/ORCA/FSM
// bookkeeping) and whose release hook undoes the driver-side bookkeeping
// Driver.onDeath does not already own. World has no SetBody, so the
// collider/speed baked into Body at NewEntity time is permanent for the
// life of this handle; correct, since every acquire of the same kind
// shares that kind's geometry.
func (d *Driver) registerAgentKind(kind string, faction components.Faction, behavior components.Behavior, cfg config.AgentConfig, maxCount int) error {
	if maxCount <= 0 {
		return fmt.Errorf("game: agent kind %q has max_count <= 0", kind)
	}

	etype := parseEntityType(cfg.EntityType)
	radius := float32(cfg.ColliderSize) / 2
	maxSpeed := float32(cfg.MoveSpeed)
	maxHP := float32(cfg.MaxHP)
	baseAttack := float32(cfg.BaseAttack)
	attackRange := float32(cfg.AttackRange)
	detectionRange := float32(cfg.DetectionRange)
	attackInterval := float32(cfg.AttackInterval)

	handles := make([]components.Handle, 0, maxCount)
	for i := 0; i < maxCount; i++ {
		body := components.Body{Radius: radius, MaxSpeed: maxSpeed}
		meta := components.Meta{Faction: faction, Type: etype, Behavior: behavior, ConfigID: kind}
		h := d.world.NewEntity(components.Position{}, components.Velocity{}, body, meta, components.Stats{})
		handles = append(handles, h)
	}

	reset := func(h components.Handle, spawnPos components.Position) {
		d.world.SetPosition(h, spawnPos)
		d.world.SetVelocity(h, components.Velocity{})
		d.world.SetStats(h, components.Stats{
			HP:             maxHP,
			MaxHP:          maxHP,
			BaseAttack:     baseAttack,
			AttackRange:    attackRange,
			DetectionRange: detectionRange,
			AttackInterval: attackInterval,
			LastAttackTime: float64(-attackInterval), // cooldown ready at spawn
		})
		d.world.SetFlag(h, components.FlagAlive, true)
		d.world.SetFlag(h, components.FlagFromPool, true)
		d.fsm.Register(h, behavior, baseAttack)
		d.grid.Register(h, faction, etype, spawnPos)
		d.orca.Register(h, spawnPos, radius, maxSpeed, etype, faction)
		d.runtime[h] = agentRuntime{kind: kind, maxSpeed: maxSpeed}
		d.facingOf[h] = components.FacingFront
		d.lastAttackAt[h] = float64(-attackInterval)
	}
	release := func(h components.Handle) {
		d.world.SetVelocity(h, components.Velocity{})
		d.world.SetFlag(h, components.FlagAlive, false)
		delete(d.runtime, h)
		delete(d.facingOf, h)
		delete(d.lastAttackAt, h)
	}

	d.pool.RegisterKind(kind, reset, release)
	d.pool.Prewarm(kind, handles)
	return nil
}

// registerProjectileKind mints and pre-warms the shared projectile pool
// bucket Combat acquires from on every ranged shot. The bucket is sized
// from pool.max_counts when the config names the projectile kind there,
// otherwise from the level's ranged agent slots with headroom for
// several projectiles in flight per shooter. A level with no ranged
// kinds registers nothing: nothing can fire.
func (d *Driver) registerProjectileKind(rangedSlots int) {
	kind := d.cfg.Projectile.Kind
	if kind == "" || rangedSlots <= 0 {
		return
	}
	count := d.cfg.Pool.MaxCounts[kind]
	if count <= 0 {
		count = rangedSlots * 4
	}

	radius := float32(d.cfg.Projectile.Radius)
	speed := float32(d.cfg.Projectile.Speed)

	handles := make([]components.Handle, 0, count)
	for i := 0; i < count; i++ {
		body := components.Body{Radius: radius, MaxSpeed: speed}
		meta := components.Meta{ConfigID: kind, Flags: components.FlagIsProjectile}
		h := d.world.NewEntity(components.Position{}, components.Velocity{}, body, meta, components.Stats{})
		handles = append(handles, h)
	}

	reset := func(h components.Handle, spawnPos components.Position) {
		d.world.SetPosition(h, spawnPos)
		d.world.SetVelocity(h, components.Velocity{})
		d.world.SetFlag(h, components.FlagIsProjectile, true)
		d.world.SetFlag(h, components.FlagFromPool, true)
	}
	release := func(h components.Handle) {
		d.world.SetVelocity(h, components.Velocity{})
	}

	d.pool.RegisterKind(kind, reset, release)
	d.pool.Prewarm(kind, handles)
}

// buildFlowField derives the marching-band direction table from a level
// descriptor's flow_field_pairs and its kinds' spawn points: an
// attacking faction whose target faction's spawns sit left of the grid's
// midline marches LEFT, the rest march RIGHT.
func buildFlowField(desc config.LevelDescriptor) *systems.FlowField {
	pairs := make(map[components.Faction]components.Faction, len(desc.FlowFieldPairs))
	for attackerName, targetName := range desc.FlowFieldPairs {
		attacker, ok := parseFaction(attackerName)
		if !ok {
			continue
		}
		target, ok := parseFaction(targetName)
		if !ok {
			continue
		}
		pairs[attacker] = target
	}

	midline := desc.GridWidth / 2
	avgX := make(map[components.Faction]float64)
	counts := make(map[components.Faction]int)
	for _, kind := range desc.Kinds {
		faction, ok := parseFaction(kind.Faction)
		if !ok {
			continue
		}
		for _, pt := range kind.SpawnPoints {
			avgX[faction] += pt.X
			counts[faction]++
		}
	}

	leftOf := make(map[components.Faction]bool, len(avgX))
	for f, sum := range avgX {
		if n := counts[f]; n > 0 {
			leftOf[f] = sum/float64(n) < midline
		}
	}

	return systems.NewFlowField(pairs, leftOf, 0)
}

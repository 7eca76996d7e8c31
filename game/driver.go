package game

import (
	"log/slog"
	"math"

	"github.com/pthm-cable/combatcore/components"
	"github.com/pthm-cable/combatcore/config"
	"github.com/pthm-cable/combatcore/systems"
	"github.com/pthm-cable/combatcore/telemetry"
)

// agentRuntime caches the per-handle values the driver needs every tick
// but that never change after spawn (config-derived, not ECS state).
type agentRuntime struct {
	kind     string
	maxSpeed float32
}

// Driver is the fixed-step orchestrator wiring every systems subsystem
// against one World, and the module's sole entry point for a host.
// Each Tick call runs every subsystem once, in a fixed nine-step order.
type Driver struct {
	cfg *config.Config

	world    *World
	factions *systems.FactionTable
	grid     systems.Grid
	useBand  bool
	cols     int
	worldW   float32

	navGrid *systems.NavGrid
	planner *systems.AStarPlanner
	paths   *systems.Scheduler

	orca     *systems.ORCASolver
	flow     *systems.FlowField
	resolver *systems.TargetResolver
	brain    *systems.AgentBrain
	fsm      *systems.AgentFSM
	combat   *systems.Combat
	pool     *systems.Pool

	scheduler *systems.EventScheduler
	events    *systems.EventSink

	collector *telemetry.Collector
	output    *telemetry.OutputManager

	tick    int64
	simTime float64

	runtime       map[components.Handle]agentRuntime
	manual        map[components.Handle]components.Intent
	lastAttackAt  map[components.Handle]float64
	facingOf      map[components.Handle]components.Facing
	moveWaypoints map[components.Handle][]components.Position
	moveTargetOf  map[components.Handle]components.Position
	pathPending   map[components.Handle]bool
}

// NewDriver builds every subsystem from cfg and wires them together. The
// caller still needs to call LoadLevel before ticking.
func NewDriver(cfg *config.Config, obstacles []Rect, outputDir string) *Driver {
	world := NewWorld(obstacles)
	factions := systems.NewFactionTable()

	grid := newGrid(cfg, world)

	navGrid := systems.NewNavGrid(
		int(cfg.Pathfinder.MapW/cfg.Pathfinder.GridSize)+1,
		int(cfg.Pathfinder.MapH/cfg.Pathfinder.GridSize)+1,
		float32(cfg.Pathfinder.GridSize),
		world,
	)
	planner := systems.NewAStarPlanner(navGrid, cfg.Pathfinder.AllowDiagonal, cfg.Pathfinder.EnableSmoothing)
	paths := systems.NewScheduler(planner, cfg.Pathfinder.RequestTimeoutTicks, cfg.Pathfinder.PathCacheTimeTicks, cfg.Pathfinder.MaxSolvesPerTick)

	orcaCfg := systems.ORCAConfig{
		TimeHorizon:       float32(cfg.ORCA.TimeHorizon),
		MaxIterations:     cfg.ORCA.MaxIterations,
		Tolerance:         float32(cfg.ORCA.ConvergenceTol),
		NeighborDistBase:  float32(cfg.ORCA.NeighborDist),
		ResistanceFactor:  float32(cfg.ORCA.ResistanceFactor),
		PassiveBoost:      float32(cfg.ORCA.PassiveBoost),
		UpdateIntervalSec: cfg.Derived.ORCAIntervalS,
	}
	orca := systems.NewORCASolver(grid, orcaCfg)

	resolverCfg := systems.ResolverConfig{
		MemoryDurationTicks:     cfg.TargetResolver.MemoryDurationTicks,
		MaxLineOfSightDistance:  float32(cfg.TargetResolver.MaxLineOfSightDistance),
		SearchRadius:            float32(cfg.TargetResolver.SearchRadius),
		MaxSearchAttempts:       cfg.TargetResolver.MaxSearchAttempts,
		CombatDetectionRange:    float32(cfg.TargetResolver.CombatDetectionRange),
		CombatPriorityPenalty:   float32(cfg.TargetResolver.CombatPriorityPenalty),
		LockedPairPenalty:       float32(cfg.TargetResolver.LockedPairPenalty),
		SectorCrowdingThreshold: cfg.TargetResolver.SectorCrowdingThreshold,
		SectorCrowdingPenalty:   float32(cfg.TargetResolver.SectorCrowdingPenalty),
		SurroundBonus:           float32(cfg.TargetResolver.SurroundBonus),
		AlliesBlockLOS:          cfg.TargetResolver.AlliesBlockLOS,
		EnemiesBlockLOS:         cfg.TargetResolver.EnemiesBlockLOS,
		EnableOneVsOne:          cfg.TargetResolver.EnableOneVsOne,
		EnableSurround:          cfg.TargetResolver.EnableSurround,
		LOSCacheTimeoutTicks:    cfg.TargetResolver.LOSCacheTimeoutTicks,
	}
	resolver := systems.NewTargetResolver(grid, factions, world, world, resolverCfg)

	brainCfg := systems.BrainConfig{
		DecideIntervalTicks: cfg.Brain.DecideIntervalTicks,
		IntentValidityTicks: cfg.Brain.IntentValidityTicks,
		CombatTimeoutTicks:  cfg.Brain.CombatTimeoutTicks,
	}

	events := systems.NewEventSink()
	scheduler := systems.NewEventScheduler()
	pool := systems.NewPool(events)

	fsmCfg := systems.FSMConfig{
		AutoRecycleDelayTicks: cfg.StateMachine.AutoRecycleDelayTicks,
		AttackDamageFrame:     cfg.StateMachine.AttackDamageFrame,
		AnimationSpeedFPS:     float32(cfg.StateMachine.AnimationSpeedFPS),
		HurtAnimTicks:         cfg.StateMachine.HurtAnimTicks,
		AttackAnimTicks:       cfg.StateMachine.AttackAnimTicks,
	}

	projectileSpec := systems.ProjectileSpec{
		Kind:          cfg.Projectile.Kind,
		Speed:         float32(cfg.Projectile.Speed),
		LifetimeTicks: cfg.Projectile.LifetimeTicks,
		Radius:        float32(cfg.Projectile.Radius),
	}
	combat := systems.NewCombat(grid, factions, events, world, world, world, pool, scheduler, defaultFacingOffsets(), projectileSpec)
	fsm := systems.NewAgentFSM(fsmCfg, events, scheduler, resolver, combat, pool)
	brain := systems.NewAgentBrain(resolver, grid, nil, world, brainCfg)

	output, err := telemetry.NewOutputManager(outputDir)
	if err != nil {
		slog.Error("telemetry output disabled", "error", err)
	}

	d := &Driver{
		cfg:      cfg,
		world:    world,
		factions: factions,
		grid:     grid,
		useBand:  cfg.SpatialGrid.Variant == "1d",
		cols:     cfg.SpatialGrid.Cols,
		worldW:   float32(cfg.SpatialGrid.WorldW),

		navGrid: navGrid,
		planner: planner,
		paths:   paths,

		orca:     orca,
		resolver: resolver,
		brain:    brain,
		fsm:      fsm,
		combat:   combat,
		pool:     pool,

		scheduler: scheduler,
		events:    events,

		collector: telemetry.NewCollector(int64(cfg.Derived.TickRateHz) * 10),
		output:    output,

		runtime:       make(map[components.Handle]agentRuntime),
		manual:        make(map[components.Handle]components.Intent),
		lastAttackAt:  make(map[components.Handle]float64),
		facingOf:      make(map[components.Handle]components.Facing),
		moveWaypoints: make(map[components.Handle][]components.Position),
		moveTargetOf:  make(map[components.Handle]components.Position),
		pathPending:   make(map[components.Handle]bool),
	}
	return d
}

func newGrid(cfg *config.Config, alive systems.AliveLookup) systems.Grid {
	interval := cfg.SpatialGrid.UpdateIntervalMS / 1000.0
	switch cfg.SpatialGrid.Variant {
	case "nx3":
		return systems.NewNxThreeGrid(cfg.SpatialGrid.Cols, float32(cfg.SpatialGrid.WorldW), float32(cfg.SpatialGrid.WorldH), interval, alive)
	case "1d":
		return systems.NewGrid1D(cfg.SpatialGrid.Cols, float32(cfg.SpatialGrid.WorldW), interval, alive)
	default:
		return systems.NewBucket2DGrid(float32(cfg.SpatialGrid.WorldW), float32(cfg.SpatialGrid.WorldH), float32(cfg.SpatialGrid.CellSize), interval, alive)
	}
}

// defaultFacingOffsets places a ranged attacker's muzzle one body-length
// ahead of its own position along its facing. A single fixed table is
// shared by every ranged kind, per Combat's single-archetype projectile
// model.
func defaultFacingOffsets() map[components.Facing]components.Position {
	const reach = 16
	return map[components.Facing]components.Position{
		components.FacingFront: {X: 0, Y: reach},
		components.FacingBack:  {X: 0, Y: -reach},
		components.FacingLeft:  {X: -reach, Y: 0},
		components.FacingRight: {X: reach, Y: 0},
	}
}

// SetFlowField installs the marching-band direction table built by
// LoadLevel from the level descriptor's flow_field_pairs.
func (d *Driver) SetFlowField(f *systems.FlowField) {
	d.flow = f
	d.brain = systems.NewAgentBrain(d.resolver, d.grid, f, d.world, d.brain.ConfigSnapshot())
}

// Tick advances the simulation by exactly one fixed step and returns the
// batch of host-facing events produced. Host input
// (SetIntent/ApplyDamage/SetWalkable) must be applied before calling
// Tick; its effects are picked up as the implicit step 1 ("drain
// input"), since those calls only ever mutate driver-owned state that
// step 3 onward reads.
func (d *Driver) Tick() []systems.Event {
	tick := d.tick
	now := d.simTime
	dt := d.cfg.Derived.DT

	// Step 2: flush the spatial grid's batched moves from last tick, once
	// the grid's own update_interval has elapsed.
	d.grid.Advance(float64(dt))

	// Steps 3-5: per agent, decide -> translate into FSM/ORCA inputs.
	d.paths.Advance(tick)
	d.world.Each(func(h components.Handle) {
		meta, ok := d.world.Meta(h)
		if !ok || !meta.Flags.Has(components.FlagAlive) || meta.Flags.Has(components.FlagIsProjectile) {
			return
		}
		d.stepAgent(h, meta, tick, now)
	})

	// Step 5 (cont'd): solve ORCA once every agent's preferred velocity
	// for this tick has been set, then integrate committed velocities.
	d.orca.Advance(float64(dt), tick)
	d.integrate(dt)

	// Step 6: projectile integration and scheduled damage/pool events
	// (the shared EventScheduler drains FSM's damage-frame and
	// auto-recycle callbacks from inside this call).
	d.combat.Step(dt, tick)

	// Step 7: background target-registry sweep, throttled to ~1/s.
	if tick%int64(d.cfg.Derived.TickRateHz) == 0 {
		d.resolver.Sweep(tick)
	}

	// Step 8 is folded into step 6: Combat.Step drains the same
	// scheduler FSM's enterDead schedules pool.Release onto, so there is
	// no separate pool-recycle pass.

	// Step 9: one-shot state (per-tick hit records, already consumed via
	// ConsumeHit in stepAgent) needs no further clearing; manual intents
	// are intentionally sticky until the host changes them.

	batch := d.events.Drain()
	d.recordTelemetry(tick, batch)

	d.tick++
	d.simTime += float64(dt)
	return batch
}

func (d *Driver) recordTelemetry(tick int64, batch []systems.Event) {
	rows := make([]telemetry.Event, 0, len(batch))
	for _, e := range batch {
		switch e.Kind {
		case systems.EventAnimationRequest:
			if e.State == systems.StateAttacking {
				if faction, ok := d.world.Faction(e.Handle); ok {
					d.collector.RecordAttackAttempt(faction)
				}
			}
		case systems.EventDamageDealt:
			attackerFaction, _ := d.world.Faction(e.Attacker)
			targetFaction, ok := d.world.Faction(e.Target)
			if ok {
				stats, _ := d.world.Stats(e.Target)
				d.collector.RecordDamageDealt(attackerFaction, targetFaction, stats.HP <= 0)
			}
			rows = append(rows, telemetry.Event{Type: telemetry.EventDamageDealt, Tick: tick, Attacker: handleID(e.Attacker), Target: handleID(e.Target), Amount: e.Amount, Faction: uint8(targetFaction)})
		case systems.EventDeath:
			rows = append(rows, telemetry.Event{Type: telemetry.EventDeath, Tick: tick, Target: handleID(e.Handle)})
		case systems.EventPoolRecycle:
			d.collector.RecordPoolRecycle()
			rows = append(rows, telemetry.Event{Type: telemetry.EventPoolRecycle, Tick: tick, Target: handleID(e.Handle)})
		case systems.EventProjectileSpawn:
			rows = append(rows, telemetry.Event{Type: telemetry.EventProjectileSpawn, Tick: tick, Amount: e.Amount, Faction: uint8(e.OwnerFaction)})
		}
	}
	if d.output != nil {
		_ = d.output.WriteEvents(rows)
	}
	if d.collector.ShouldFlush(tick) {
		stats := d.collector.Flush(tick)
		if d.output != nil {
			_ = d.output.WriteWindowStats(stats)
		}
	}
}

func handleID(h components.Handle) uint64 { return uint64(h.ID()) }

// normalizedIntent unifies a host-set manual components.Intent and a
// brain-published systems.Intent into one shape resolveIntent can act
// on without caring which source produced it: manual input and AI
// decision feed the same per-tick movement resolution.
type normalizedIntent struct {
	kind       components.IntentKind
	target     components.Handle
	hasTarget  bool
	moveTarget components.Position
	marchDir   components.MarchDirection
}

// decisionFor returns h's intent for this tick: the host's manual
// intent when one has been set via SetIntent (sticky until changed),
// otherwise the brain's freshly-decided (or still-valid, throttled)
// intent.
func (d *Driver) decisionFor(h components.Handle, pos components.Position, tick int64, now float64) normalizedIntent {
	if in, ok := d.manual[h]; ok {
		return normalizedIntent{kind: in.Kind, target: in.Target, hasTarget: in.HasTarget, moveTarget: in.MoveTarget, marchDir: in.MarchDir}
	}

	col := d.columnFor(pos)
	var intent systems.Intent
	if d.useBand {
		intent = d.brain.DecideBand(h, col, tick, now)
	} else {
		intent = d.brain.Decide(h, col, tick, now)
	}

	switch intent.Kind {
	case systems.IntentAttackTarget:
		return normalizedIntent{kind: components.IntentAttackTarget, target: intent.Target, hasTarget: true}
	case systems.IntentChaseTarget:
		return normalizedIntent{kind: components.IntentChaseTarget, target: intent.Target, hasTarget: true}
	case systems.IntentMarch:
		md := components.MarchRight
		if intent.Direction == systems.DirectionLeft {
			md = components.MarchLeft
		}
		return normalizedIntent{kind: components.IntentMarch, marchDir: md}
	default:
		return normalizedIntent{kind: components.IntentIdle}
	}
}

// resolveIntent turns h's intent for this tick into the FSM/ORCA inputs
// stepAgent needs: whether it wants to move and/or attack, which target
// (if any), a normalized direction, its configured speed, and the
// facing that direction implies, derived from the movement vector.
func (d *Driver) resolveIntent(h components.Handle, pos components.Position, faction components.Faction, stats components.Stats, rt agentRuntime, tick int64, now float64) (moving, attack bool, target components.Handle, dir components.Velocity, speed float32, facing components.Facing) {
	speed = rt.maxSpeed
	facing = d.facingOf[h]
	dec := d.decisionFor(h, pos, tick, now)

	switch dec.kind {
	case components.IntentAttackTarget:
		if dec.hasTarget && d.world.IsAlive(dec.target) {
			if tpos, ok := d.world.Position(dec.target); ok {
				facing = components.FacingFromDelta(tpos.X-pos.X, tpos.Y-pos.Y)
			}
			return false, true, dec.target, components.Velocity{}, speed, facing
		}

	case components.IntentChaseTarget:
		if dec.hasTarget && d.world.IsAlive(dec.target) {
			if tpos, ok := d.world.Position(dec.target); ok {
				dirVec := unitTowards(pos, tpos)
				if dirVec.X != 0 || dirVec.Y != 0 {
					facing = components.FacingFromDelta(dirVec.X, dirVec.Y)
					return true, false, dec.target, dirVec, speed, facing
				}
			}
		}

	case components.IntentMoveTo:
		dirVec, walking := d.moveAlongPath(h, pos, dec.moveTarget, tick)
		if walking {
			facing = components.FacingFromDelta(dirVec.X, dirVec.Y)
		}
		return walking, false, components.Handle{}, dirVec, speed, facing

	case components.IntentMarch:
		dirVec := marchVelocity(dec.marchDir)
		if dirVec.X != 0 || dirVec.Y != 0 {
			facing = components.FacingFromDelta(dirVec.X, dirVec.Y)
			return true, false, components.Handle{}, dirVec, speed, facing
		}
	}

	return false, false, components.Handle{}, components.Velocity{}, speed, facing
}

// marchVelocity converts a host-facing MarchDirection into a unit
// vector along the band's X axis.
func marchVelocity(d components.MarchDirection) components.Velocity {
	switch d {
	case components.MarchLeft:
		return components.Velocity{X: -1, Y: 0}
	case components.MarchRight:
		return components.Velocity{X: 1, Y: 0}
	default:
		return components.Velocity{}
	}
}

const (
	waypointReachedEps = 8.0
	repathGoalEps      = 4.0
)

// moveAlongPath follows h's cached waypoint list toward goal, requesting
// a fresh async path when the goal changes or none is cached yet. While
// a request is still pending it reports not-moving rather than guessing
// a direct line, so a path-blocked agent doesn't walk into the obstacle
// it's routing around.
func (d *Driver) moveAlongPath(h components.Handle, pos, goal components.Position, tick int64) (components.Velocity, bool) {
	prevGoal, hadGoal := d.moveTargetOf[h]
	if !hadGoal || dist2D(prevGoal, goal) > repathGoalEps {
		d.moveTargetOf[h] = goal
		d.moveWaypoints[h] = nil
		d.requestPath(h, pos, goal, tick)
	}

	wps := d.moveWaypoints[h]
	for len(wps) > 0 && dist2D(pos, wps[0]) <= waypointReachedEps {
		wps = wps[1:]
	}
	d.moveWaypoints[h] = wps

	var next components.Position
	switch {
	case len(wps) > 0:
		next = wps[0]
	case !d.pathPending[h]:
		next = goal
	default:
		return components.Velocity{}, false
	}

	if dist2D(pos, next) <= waypointReachedEps {
		return components.Velocity{}, false
	}
	dirVec := unitTowards(pos, next)
	return dirVec, dirVec.X != 0 || dirVec.Y != 0
}

// requestPath enqueues an async A* request for h, marking it pending
// until the scheduler's callback fires.
func (d *Driver) requestPath(h components.Handle, start, end components.Position, tick int64) {
	if d.paths == nil {
		return
	}
	d.pathPending[h] = true
	d.paths.Request(start, end, 0, tick, func(waypoints []components.Position, ok bool) {
		d.pathPending[h] = false
		if ok {
			d.moveWaypoints[h] = waypoints
		} else {
			d.moveWaypoints[h] = nil
		}
	})
}

// stepAgent runs one non-projectile agent through decide -> FSM.Step and
// publishes its resulting preferred velocity to ORCA.
func (d *Driver) stepAgent(h components.Handle, meta components.Meta, tick int64, now float64) {
	pos, ok := d.world.Position(h)
	if !ok {
		return
	}
	stats, _ := d.world.Stats(h)
	rt := d.runtime[h]

	moving, attack, target, dir, speed, facing := d.resolveIntent(h, pos, meta.Faction, stats, rt, tick, now)

	tookDamage, dead := d.combat.ConsumeHit(h)
	prevState := d.fsm.State(h)
	d.fsm.Step(h, tick, now, moving, attack, tookDamage, dead, target, stats.AttackInterval, d.lastAttackAt[h], facing)
	newState := d.fsm.State(h)

	if newState == systems.StateAttacking && prevState != systems.StateAttacking {
		d.lastAttackAt[h] = now
		d.world.SetLastAttackTime(h, now)
	}
	if newState == systems.StateDead && prevState != systems.StateDead {
		d.onDeath(h, meta.Faction)
		return
	}

	d.facingOf[h] = facing

	var pref components.Velocity
	switch newState {
	case systems.StateAttacking, systems.StateHurt:
		pref = components.Velocity{}
	default:
		pref = components.Velocity{X: dir.X * speed, Y: dir.Y * speed}
	}

	passive := newState == systems.StateIdle
	_, focusLocked := d.resolver.Locks().TargetOf(h)
	d.world.SetFlag(h, components.FlagFocusLocked, focusLocked)
	d.orca.SetPreferredVelocity(h, pref, pos, passive, focusLocked, newState == systems.StateAttacking)
}

// integrate commits every registered agent's ORCA velocity into the
// world's Position/Velocity components and the spatial grid, the
// "physics integration" step that sits outside ORCA itself.
func (d *Driver) integrate(dt float32) {
	d.world.Each(func(h components.Handle) {
		meta, ok := d.world.Meta(h)
		if !ok || !meta.Flags.Has(components.FlagAlive) || meta.Flags.Has(components.FlagIsProjectile) {
			return
		}
		vel, ok := d.orca.Velocity(h)
		if !ok {
			return
		}
		pos, ok := d.world.Position(h)
		if !ok {
			return
		}
		next := components.Position{X: pos.X + vel.X*dt, Y: pos.Y + vel.Y*dt}
		d.world.SetPosition(h, next)
		d.world.SetVelocity(h, vel)
		d.grid.Move(h, next)
	})
}

func (d *Driver) onDeath(h components.Handle, faction components.Faction) {
	d.world.SetFlag(h, components.FlagAlive, false)
	d.grid.Unregister(h)
	d.orca.Unregister(h)
	d.brain.Forget(h)
	delete(d.manual, h)
	delete(d.moveWaypoints, h)
	delete(d.moveTargetOf, h)
	delete(d.pathPending, h)
}

func (d *Driver) columnFor(pos components.Position) int {
	if d.cols <= 0 || d.worldW <= 0 {
		return 0
	}
	colWidth := d.worldW / float32(d.cols)
	c := int(pos.X / colWidth)
	if c < 0 {
		c = 0
	} else if c >= d.cols {
		c = d.cols - 1
	}
	return c
}

func dist2D(a, b components.Position) float32 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return float32(math.Sqrt(float64(dx*dx + dy*dy)))
}

func unitTowards(from, to components.Position) components.Velocity {
	dx, dy := to.X-from.X, to.Y-from.Y
	n := float32(math.Sqrt(float64(dx*dx + dy*dy)))
	if n < 1e-6 {
		return components.Velocity{}
	}
	return components.Velocity{X: dx / n, Y: dy / n}
}

package systems

import (
	"math"

	"github.com/pthm-cable/combatcore/components"
)

// IntentKind is the brain's published decision.
type IntentKind uint8

const (
	IntentIdle IntentKind = iota
	IntentMarch
	IntentChaseTarget
	IntentAttackTarget
)

// Intent is the brain's output: what the agent wants to do next, valid
// until ExpiresAt so a stale decision is never consumed by the FSM
// after the agent has gone quiet for longer than the validity window.
type Intent struct {
	Kind       IntentKind
	Target     components.Handle
	Direction  MarchDirection
	IssuedTick int64
	ExpiresAt  int64
}

// Valid reports whether the intent has not yet expired at tick.
func (i Intent) Valid(tick int64) bool { return tick <= i.ExpiresAt }

// BrainMode distinguishes the plain perceive/decide loop from the
// Marching/Encounter variant used on the 1D band.
type BrainMode uint8

const (
	ModeFree BrainMode = iota
	ModeMarchingBand
)

// BandState tracks the Marching<->Encounter sub-state for an agent
// running in ModeMarchingBand.
type BandState uint8

const (
	BandMarching BandState = iota
	BandEncounter
)

// BrainConfig holds the knobs governing decision throttling and the
// band variant's timeout.
type BrainConfig struct {
	DecideIntervalTicks int64
	IntentValidityTicks int64
	CombatTimeoutTicks  int64
}

// DefaultBrainConfig returns reasonable defaults at a 60hz tick rate:
// decide_interval ~100ms, intent validity ~2.5s.
func DefaultBrainConfig() BrainConfig {
	return BrainConfig{
		DecideIntervalTicks: 6,
		IntentValidityTicks: 150,
		CombatTimeoutTicks:  180,
	}
}

type agentBrainState struct {
	lastDecideTick  int64
	lastIntent      Intent
	band            BandState
	lastContactTick int64
}

// AgentBrain is the AI decision layer: every decide_interval it queries
// the target resolver and spatial grid and publishes one Intent per
// observer. It never moves or damages anything directly.
//
// The perceive-weight-publish loop follows a per-organism Update
// pattern, with a fixed priority table in place of a learned output
// layer.
type AgentBrain struct {
	resolver *TargetResolver
	grid     Grid
	flow     *FlowField
	query    AgentQuery
	cfg      BrainConfig
	state    map[components.Handle]*agentBrainState
}

// NewAgentBrain wires a brain against the shared resolver, grid, and
// flow field.
func NewAgentBrain(resolver *TargetResolver, grid Grid, flow *FlowField, query AgentQuery, cfg BrainConfig) *AgentBrain {
	return &AgentBrain{
		resolver: resolver,
		grid:     grid,
		flow:     flow,
		query:    query,
		cfg:      cfg,
		state:    make(map[components.Handle]*agentBrainState),
	}
}

// ConfigSnapshot returns the brain's current tuning, e.g. for rebuilding a
// brain against a newly installed flow field without losing it.
func (b *AgentBrain) ConfigSnapshot() BrainConfig { return b.cfg }

func (b *AgentBrain) stateFor(h components.Handle) *agentBrainState {
	s, ok := b.state[h]
	if !ok {
		s = &agentBrainState{lastDecideTick: -1 << 62}
		b.state[h] = s
	}
	return s
}

// Forget drops an agent's throttling/band state. Call on death or
// despawn-to-pool.
func (b *AgentBrain) Forget(h components.Handle) { delete(b.state, h) }

// Decide runs the free-mode decision table for observer, throttled to
// DecideIntervalTicks. Returns the previous intent, still valid, when
// called before the next decide_interval boundary. now is the
// simulation clock in seconds, the same unit Stats.LastAttackTime and
// attack_interval are expressed in, for the cooldown guard
// last_attack_time + attack_interval <= now.
func (b *AgentBrain) Decide(observer components.Handle, column int, tick int64, now float64) Intent {
	s := b.stateFor(observer)
	if tick-s.lastDecideTick < b.cfg.DecideIntervalTicks && s.lastIntent.Valid(tick) {
		return s.lastIntent
	}
	s.lastDecideTick = tick

	intent := b.decideFree(observer, column, tick, now)
	s.lastIntent = intent
	return intent
}

// DecideBand runs the Marching<->Encounter variant for the 1D grid:
// Marching scans the three-column window ahead; any detection switches
// to Encounter, halting march inertia; Encounter runs the
// attack/chase/idle table and falls back to Marching after
// CombatTimeoutTicks without a further detection.
func (b *AgentBrain) DecideBand(observer components.Handle, column int, tick int64, now float64) Intent {
	s := b.stateFor(observer)
	if tick-s.lastDecideTick < b.cfg.DecideIntervalTicks && s.lastIntent.Valid(tick) {
		return s.lastIntent
	}
	s.lastDecideTick = tick

	pos, ok := b.query.Position(observer)
	if !ok {
		return s.lastIntent
	}
	faction, ok := b.query.Faction(observer)
	if !ok {
		return s.lastIntent
	}
	stats, ok := b.query.Stats(observer)
	if !ok {
		return s.lastIntent
	}

	var intent Intent
	switch s.band {
	case BandMarching:
		enemies := b.grid.QueryThreeColumns(column, QueryOptions{
			Factions:  b.resolver.factions.Enemies(faction),
			OnlyAlive: true,
			HasIgnore: true,
			Ignore:    observer,
		})
		if len(enemies) > 0 {
			s.band = BandEncounter
			s.lastContactTick = tick
			intent = b.decideCombat(observer, pos, faction, stats, tick, now)
		} else {
			dir := b.flow.DirectionFor(faction, column, pos)
			intent = Intent{Kind: IntentMarch, Direction: dir, IssuedTick: tick, ExpiresAt: tick + b.cfg.IntentValidityTicks}
		}
	case BandEncounter:
		intent = b.decideCombat(observer, pos, faction, stats, tick, now)
		if intent.Kind == IntentIdle {
			if tick-s.lastContactTick > b.cfg.CombatTimeoutTicks {
				s.band = BandMarching
				dir := b.flow.DirectionFor(faction, column, pos)
				intent = Intent{Kind: IntentMarch, Direction: dir, IssuedTick: tick, ExpiresAt: tick + b.cfg.IntentValidityTicks}
			}
		} else {
			s.lastContactTick = tick
		}
	}
	s.lastIntent = intent
	return intent
}

func (b *AgentBrain) decideFree(observer components.Handle, column int, tick int64, now float64) Intent {
	pos, ok := b.query.Position(observer)
	if !ok {
		return Intent{Kind: IntentIdle, IssuedTick: tick, ExpiresAt: tick + b.cfg.IntentValidityTicks}
	}
	faction, ok := b.query.Faction(observer)
	if !ok {
		return Intent{Kind: IntentIdle, IssuedTick: tick, ExpiresAt: tick + b.cfg.IntentValidityTicks}
	}
	stats, ok := b.query.Stats(observer)
	if !ok {
		return Intent{Kind: IntentIdle, IssuedTick: tick, ExpiresAt: tick + b.cfg.IntentValidityTicks}
	}

	intent := b.decideCombat(observer, pos, faction, stats, tick, now)
	if intent.Kind != IntentIdle {
		return intent
	}
	if b.flow != nil {
		dir := b.flow.DirectionFor(faction, column, pos)
		if dir != DirectionNone {
			return Intent{Kind: IntentMarch, Direction: dir, IssuedTick: tick, ExpiresAt: tick + b.cfg.IntentValidityTicks}
		}
	}
	return Intent{Kind: IntentIdle, IssuedTick: tick, ExpiresAt: tick + b.cfg.IntentValidityTicks}
}

// decideCombat implements the AttackTarget/ChaseTarget/Idle rows of the
// priority table, shared by both brain modes.
func (b *AgentBrain) decideCombat(observer components.Handle, pos components.Position, faction components.Faction, stats components.Stats, tick int64, now float64) Intent {
	info, found := b.resolver.FindAndLock(observer, pos, faction, stats.DetectionRange, tick)
	if !found {
		return Intent{Kind: IntentIdle, IssuedTick: tick, ExpiresAt: tick + b.cfg.IntentValidityTicks}
	}

	dist := dist2D(pos, info.Pos)
	if dist <= stats.AttackRange && attackReady(stats.LastAttackTime, stats.AttackInterval, now) {
		return Intent{Kind: IntentAttackTarget, Target: info.Entity, IssuedTick: tick, ExpiresAt: tick + b.cfg.IntentValidityTicks}
	}
	return Intent{Kind: IntentChaseTarget, Target: info.Entity, IssuedTick: tick, ExpiresAt: tick + b.cfg.IntentValidityTicks}
}

func dist2D(a, b components.Position) float32 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return float32(math.Sqrt(float64(dx*dx + dy*dy)))
}

package systems

import "github.com/pthm-cable/combatcore/components"

// AgentState is one of the five agent lifecycle states.
type AgentState uint8

const (
	StateIdle AgentState = iota
	StateWalking
	StateAttacking
	StateHurt
	StateDead
)

func (s AgentState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateWalking:
		return "Walking"
	case StateAttacking:
		return "Attacking"
	case StateHurt:
		return "Hurt"
	case StateDead:
		return "Dead"
	default:
		return "Idle"
	}
}

// FSMConfig holds the state machine's tunable knobs.
type FSMConfig struct {
	AutoRecycleDelayTicks int64
	AttackDamageFrame     int
	AnimationSpeedFPS     float32
	HurtAnimTicks         int64
	AttackAnimTicks       int64
}

// DefaultFSMConfig returns sensible defaults at 60hz.
func DefaultFSMConfig() FSMConfig {
	return FSMConfig{
		AutoRecycleDelayTicks: 120, // ~2s
		AttackDamageFrame:     5,
		AnimationSpeedFPS:     12,
		HurtAnimTicks:         18,
		AttackAnimTicks:       30,
	}
}

// DamageApplier performs the actual hp decrement dispatched from the
// attack-damage-frame event; implemented by Combat.
type DamageApplier interface {
	DealDamage(attacker, target components.Handle, amount float32)
	SpawnProjectile(owner, target components.Handle, facing components.Facing, tick int64, damage float32)
}

type fsmAgentState struct {
	state       AgentState
	facing      components.Facing
	moving      bool
	enteredTick int64
	animEndTick int64
	behavior    components.Behavior
	baseAttack  float32
}

// AgentFSM drives the five-state lifecycle, scheduling attack-damage
// frames and the Dead-state pool-return/lock-release sequence on the
// shared EventScheduler.
type AgentFSM struct {
	cfg       FSMConfig
	events    *EventSink
	scheduler *EventScheduler
	resolver  *TargetResolver
	combat    DamageApplier
	pool      *Pool

	agents map[components.Handle]*fsmAgentState
}

// NewAgentFSM wires an FSM against the shared event scheduler, target
// resolver (for lock/registry release on death), damage dispatcher, and
// pool (for the Dead-state auto-recycle).
func NewAgentFSM(cfg FSMConfig, events *EventSink, scheduler *EventScheduler, resolver *TargetResolver, combat DamageApplier, pool *Pool) *AgentFSM {
	return &AgentFSM{
		cfg:       cfg,
		events:    events,
		scheduler: scheduler,
		resolver:  resolver,
		combat:    combat,
		pool:      pool,
		agents:    make(map[components.Handle]*fsmAgentState),
	}
}

// Register begins tracking h in StateIdle.
func (m *AgentFSM) Register(h components.Handle, behavior components.Behavior, baseAttack float32) {
	m.agents[h] = &fsmAgentState{state: StateIdle, behavior: behavior, baseAttack: baseAttack}
}

// State reports h's current state, or StateDead if untracked.
func (m *AgentFSM) State(h components.Handle) AgentState {
	if s, ok := m.agents[h]; ok {
		return s.state
	}
	return StateDead
}

// Forget stops tracking h (after a pool release completes).
func (m *AgentFSM) Forget(h components.Handle) { delete(m.agents, h) }

// attackReady reports whether h's attack cooldown has elapsed.
func attackReady(lastAttackAt float64, attackInterval float32, now float64) bool {
	return lastAttackAt+float64(attackInterval) <= now
}

// Step advances h's state given this tick's movement/attack intent and
// whatever damage/death it has taken, per the state transition guard
// table. moving is true when the agent has nonzero requested velocity.
// attack is true when the brain's intent is AttackTarget and the cooldown guard
// (attackReady) passes. tookDamage/dead reflect the hits Combat recorded
// since the previous Step: in the driver's tick order Combat runs after
// the FSM, so a hit dealt on one tick is consumed on the next.
func (m *AgentFSM) Step(h components.Handle, tick int64, now float64, moving, attack, tookDamage, dead bool, target components.Handle, attackInterval float32, lastAttackAt float64, facing components.Facing) {
	s, ok := m.agents[h]
	if !ok {
		return
	}
	if s.state == StateDead {
		return
	}
	s.facing = facing
	s.moving = moving

	if dead {
		m.enterDead(h, s, tick)
		return
	}
	// Damage taken interrupts Idle/Walking/Attacking into Hurt; Hurt has
	// no self-transition on further damage (only Dead, handled above).
	if tookDamage && s.state != StateHurt {
		m.enterHurt(h, s, tick)
		return
	}

	attack = attack && attackReady(lastAttackAt, attackInterval, now)

	switch s.state {
	case StateIdle:
		if attack {
			m.enterAttacking(h, s, tick, target)
		} else if moving {
			m.setLocomotion(h, s, tick, StateWalking)
		}
	case StateWalking:
		if attack {
			m.enterAttacking(h, s, tick, target)
		} else if !moving {
			m.setLocomotion(h, s, tick, StateIdle)
		}
	case StateAttacking:
		if tick >= s.animEndTick {
			if moving {
				m.setLocomotion(h, s, tick, StateWalking)
			} else {
				m.setLocomotion(h, s, tick, StateIdle)
			}
		}
	case StateHurt:
		if tick >= s.animEndTick {
			if moving {
				m.setLocomotion(h, s, tick, StateWalking)
			} else {
				m.setLocomotion(h, s, tick, StateIdle)
			}
		}
	}
}

// setLocomotion moves the agent into Idle or Walking, emitting the
// animation request the host resolves into a clip name.
func (m *AgentFSM) setLocomotion(h components.Handle, s *fsmAgentState, tick int64, next AgentState) {
	s.state = next
	s.enteredTick = tick
	m.events.emit(Event{Kind: EventAnimationRequest, Handle: h, State: next, Facing: s.facing})
}

func (m *AgentFSM) enterAttacking(h components.Handle, s *fsmAgentState, tick int64, target components.Handle) {
	s.state = StateAttacking
	s.enteredTick = tick
	s.animEndTick = tick + m.cfg.AttackAnimTicks

	m.events.emit(Event{Kind: EventAnimationRequest, Handle: h, State: StateAttacking, Facing: s.facing})

	damageTick := tick + framesToTicks(m.cfg.AttackDamageFrame, m.cfg.AnimationSpeedFPS)
	behavior := s.behavior
	m.scheduler.ScheduleAt(damageTick, func() {
		cur, ok := m.agents[h]
		if !ok || cur.state != StateAttacking {
			return // interrupted by death/hurt before the damage frame
		}
		if behavior == components.BehaviorRanged {
			m.combat.SpawnProjectile(h, target, cur.facing, damageTick, cur.baseAttack)
		} else {
			m.combat.DealDamage(h, target, cur.baseAttack)
		}
	})
}

func (m *AgentFSM) enterHurt(h components.Handle, s *fsmAgentState, tick int64) {
	s.state = StateHurt
	s.enteredTick = tick
	s.animEndTick = tick + m.cfg.HurtAnimTicks
	m.events.emit(Event{Kind: EventAnimationRequest, Handle: h, State: StateHurt, Facing: s.facing})
}

func (m *AgentFSM) enterDead(h components.Handle, s *fsmAgentState, tick int64) {
	s.state = StateDead
	m.events.emit(Event{Kind: EventAnimationRequest, Handle: h, State: StateDead, Facing: s.facing})
	m.events.emit(Event{Kind: EventDeath, Handle: h})

	if m.resolver != nil {
		m.resolver.ReleaseAttacker(h)
		m.resolver.ReleaseTarget(h)
	}

	m.scheduler.ScheduleAt(tick+m.cfg.AutoRecycleDelayTicks, func() {
		if m.pool != nil {
			m.pool.Release(h) // emits EventPoolRecycle itself
		}
		m.Forget(h)
	})
}

func framesToTicks(frame int, fps float32) int64 {
	if fps <= 0 {
		return 0
	}
	const tickRateHz = 60.0
	return int64(float32(frame) / fps * tickRateHz)
}

// Package components defines the ECS components shared by every subsystem.
//
// An agent's identity is its ecs.Entity, which is already a generational
// index: it survives pooling and never aliases a recycled slot. All
// cross-subsystem references (spatial grid, target locks, pool) hold
// ecs.Entity values, never pointers into the component store.
package components

import "github.com/mlange-42/ark/ecs"

// Handle is the stable, generational entity identifier used across every
// subsystem. It is a plain alias for ecs.Entity: ark already guarantees
// the generational-index semantics a recycled slot needs.
type Handle = ecs.Entity

// Position is an entity's world position.
type Position struct {
	X, Y float32
}

// Velocity is an entity's committed velocity (world units per second).
type Velocity struct {
	X, Y float32
}

// Body holds collision geometry shared by agents and projectiles.
type Body struct {
	Radius   float32
	MaxSpeed float32
}

// Facing is one of the four cardinal animation directions, derived from
// the movement vector: |dx| > |dy| selects Left/Right, otherwise Up/Down.
type Facing uint8

const (
	FacingFront Facing = iota
	FacingBack
	FacingLeft
	FacingRight
)

func (f Facing) String() string {
	switch f {
	case FacingFront:
		return "Front"
	case FacingBack:
		return "Back"
	case FacingLeft:
		return "Left"
	case FacingRight:
		return "Right"
	default:
		return "Front"
	}
}

// FacingFromDelta derives a 4-way facing from a movement delta:
// |dx|>|dy| picks Left/Right, otherwise Up/Down.
func FacingFromDelta(dx, dy float32) Facing {
	if dx == 0 && dy == 0 {
		return FacingFront
	}
	adx, ady := dx, dy
	if adx < 0 {
		adx = -adx
	}
	if ady < 0 {
		ady = -ady
	}
	if adx > ady {
		if dx > 0 {
			return FacingRight
		}
		return FacingLeft
	}
	if dy > 0 {
		return FacingFront
	}
	return FacingBack
}

// EntityType categorizes an agent for target-scoring bonuses.
type EntityType uint8

const (
	TypeNormal EntityType = iota
	TypePlayer
	TypeBoss
	TypeElite
)

// Behavior selects the attack style: melee deals damage directly, ranged
// spawns a projectile. Subtype-specific logic is dispatched on this tag
// rather than through subclassing.
type Behavior uint8

const (
	BehaviorMelee Behavior = iota
	BehaviorRanged
)

// Flags are boolean agent properties packed into a bitmask.
type Flags uint8

const (
	FlagAlive Flags = 1 << iota
	FlagFromPool
	FlagFocusLocked
	FlagIsProjectile
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }
func (f Flags) Set(flag Flags, on bool) Flags {
	if on {
		return f | flag
	}
	return f &^ flag
}

// Meta bundles faction, type, behavior tag, and flags for an agent: one
// data-driven component with a behavior tag, not a class hierarchy.
type Meta struct {
	Faction  Faction
	Type     EntityType
	Behavior Behavior
	ConfigID string
	Flags    Flags
}

// Stats holds an agent's combat numbers.
type Stats struct {
	HP             float32
	MaxHP          float32
	BaseAttack     float32
	AttackRange    float32
	DetectionRange float32
	AttackInterval float32
	LastAttackTime float64
}

// IsAlive reports whether the agent's hp is above zero.
func (s Stats) IsAlive() bool { return s.HP > 0 }

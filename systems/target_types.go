package systems

import "github.com/pthm-cable/combatcore/components"

// AgentQuery is the read-only view of agent state the target resolver
// needs. It is implemented by the world package so the resolver never
// holds a direct reference to the ECS component store: cross-cutting
// concerns consume typed queries, never downcast.
type AgentQuery interface {
	Position(h components.Handle) (components.Position, bool)
	Faction(h components.Handle) (components.Faction, bool)
	Type(h components.Handle) (components.EntityType, bool)
	Stats(h components.Handle) (components.Stats, bool)
	IsAlive(h components.Handle) bool
}

// Obstacles answers static line-of-sight blocking queries; static
// obstacles always block. A nil Obstacles means an open world.
type Obstacles interface {
	IsBlocked(pos components.Position) bool
}

// TargetInfo is the resolver's selection result.
type TargetInfo struct {
	Entity  components.Handle
	Pos     components.Position
	Score   float32
	Visible bool
}

// ResolverConfig holds every TargetResolver tunable knob.
type ResolverConfig struct {
	MemoryDurationTicks     int64
	MaxLineOfSightDistance  float32
	SearchRadius            float32
	MaxSearchAttempts       int
	CombatDetectionRange    float32
	CombatPriorityPenalty   float32
	LockedPairPenalty       float32
	SectorCrowdingThreshold int
	SectorCrowdingPenalty   float32
	SurroundBonus           float32
	AlliesBlockLOS          bool
	EnemiesBlockLOS         bool
	EnableOneVsOne          bool
	EnableSurround          bool
	LOSCacheTimeoutTicks    int64
}

// DefaultResolverConfig returns reasonable defaults.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		MemoryDurationTicks:     300, // 5s at 60hz
		MaxLineOfSightDistance:  500,
		SearchRadius:            80,
		MaxSearchAttempts:       5,
		CombatDetectionRange:    200,
		CombatPriorityPenalty:   0.3,
		LockedPairPenalty:       0.2,
		SectorCrowdingThreshold: 3,
		SectorCrowdingPenalty:   0.2,
		SurroundBonus:           2.0,
		AlliesBlockLOS:          false,
		EnemiesBlockLOS:         false,
		EnableOneVsOne:          true,
		EnableSurround:          true,
		LOSCacheTimeoutTicks:    90, // ~1.5s at 60hz
	}
}

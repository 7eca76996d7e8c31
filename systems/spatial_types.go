// Package systems implements the combat simulation's core subsystems:
// spatial indexing, target resolution, pathfinding, local collision
// avoidance, behavior, the agent state machine, combat, and pooling.
package systems

import (
	"math"

	"github.com/pthm-cable/combatcore/components"
)

// Hit is a single spatial query result: a precomputed delta/distance to
// avoid recomputation in hot callers.
type Hit struct {
	Entity  components.Handle
	Pos     components.Position
	Faction components.Faction
	Type    components.EntityType
	DX, DY  float32
	DistSq  float32
}

// Dist returns the Euclidean distance for this hit.
func (h Hit) Dist() float32 {
	return float32(math.Sqrt(float64(h.DistSq)))
}

// AliveLookup lets a grid consult agent liveness for the OnlyAlive query
// option without holding a reference to the world's component store.
type AliveLookup interface {
	IsAlive(h components.Handle) bool
}

// QueryOptions filters a spatial query.
type QueryOptions struct {
	Factions    []components.Faction    // empty = any
	EntityTypes []components.EntityType // empty = any
	MaxDistance float32                 // 0 = no additional cap
	Ignore      components.Handle
	HasIgnore   bool
	OnlyAlive   bool
	BeamRadius  float32 // used by PredictCollision as the cast width
}

func (o QueryOptions) matchesFaction(f components.Faction) bool {
	if len(o.Factions) == 0 {
		return true
	}
	for _, x := range o.Factions {
		if x == f {
			return true
		}
	}
	return false
}

func (o QueryOptions) matchesType(t components.EntityType) bool {
	if len(o.EntityTypes) == 0 {
		return true
	}
	for _, x := range o.EntityTypes {
		if x == t {
			return true
		}
	}
	return false
}

// Grid is the shared contract implemented by every spatial-index variant:
// Bucket2D, NxThree, and Grid1D. Queries never fail; they return empty
// results. Registering a known handle updates it in place; unregistering
// an unknown handle is a no-op; flushing after an entity has been freed
// skips the stale handle rather than panicking.
type Grid interface {
	Register(h components.Handle, faction components.Faction, etype components.EntityType, pos components.Position)
	Unregister(h components.Handle)
	Move(h components.Handle, pos components.Position)
	Flush()
	Advance(dt float64)
	QueryNearest(pos components.Position, opts QueryOptions) (Hit, bool)
	QueryRadius(pos components.Position, r float32, opts QueryOptions) []Hit
	QueryThreeColumns(col int, opts QueryOptions) []Hit
	PredictCollision(origin components.Position, dir components.Velocity, maxDist float32, opts QueryOptions) (Hit, bool)
	FactionCountsAt(pos components.Position) map[components.Faction]int
}

// entityRecord is the grid's private bookkeeping per registered handle.
type entityRecord struct {
	faction components.Faction
	etype   components.EntityType
	pos     components.Position
	cell    int
}

// moveBatcher batches Move() calls so the grid only relocates entities
// between cells once per update_interval, preventing per-frame cell
// thrash.
type moveBatcher struct {
	pending  map[components.Handle]components.Position
	interval float64
	elapsed  float64
}

func newMoveBatcher(intervalSeconds float64) moveBatcher {
	return moveBatcher{pending: make(map[components.Handle]components.Position), interval: intervalSeconds}
}

func (b *moveBatcher) enqueue(h components.Handle, pos components.Position) {
	b.pending[h] = pos
}

func (b *moveBatcher) advance(dt float64) bool {
	b.elapsed += dt
	if b.interval <= 0 || b.elapsed >= b.interval {
		b.elapsed = 0
		return true
	}
	return false
}

func predictRay(origin components.Position, dir components.Velocity, maxDist float32, beamRadius float32, candidates []Hit) (Hit, bool) {
	dx, dy := float64(dir.X), float64(dir.Y)
	mag := math.Sqrt(dx*dx + dy*dy)
	if mag < 1e-9 {
		return Hit{}, false
	}
	dx, dy = dx/mag, dy/mag

	best := Hit{}
	bestT := float32(math.Inf(1))
	found := false
	for _, c := range candidates {
		t := c.DX*float32(dx) + c.DY*float32(dy)
		if t < 0 || t > maxDist {
			continue
		}
		perpSq := c.DistSq - t*t
		if perpSq < 0 {
			perpSq = 0
		}
		if perpSq > beamRadius*beamRadius {
			continue
		}
		if t < bestT {
			bestT = t
			best = c
			found = true
		}
	}
	return best, found
}

package systems

import (
	"math"

	"github.com/pthm-cable/combatcore/components"
)

// losStepSize is the sampling interval along a line-of-sight ray. The
// walk-and-sample-occluders approach is the same one a sun-occlusion
// raycast uses; combatcore has no single grid cell size shared across
// variants, so a fixed world-unit step is used instead of a cell-sized
// step.
const losStepSize float32 = 16

// losBlockRadius is how close a blocking unit must be to a sampled point
// along the ray to count as blocking it.
const losBlockRadius float32 = 6

type losCacheKey struct {
	x1, y1, x2, y2 int32
}

type losCacheEntry struct {
	visible   bool
	expiresAt int64
}

func losKey(a, b components.Position) losCacheKey {
	return losCacheKey{
		x1: int32(a.X / losStepSize), y1: int32(a.Y / losStepSize),
		x2: int32(b.X / losStepSize), y2: int32(b.Y / losStepSize),
	}
}

// computeLOS walks from a to b in losStepSize increments, checking
// static obstacles and, depending on config, blocking units of either
// faction relation to observerFaction. The observer and the target
// themselves never count as blockers: only the first hit that is not
// the target marks the line blocked.
func computeLOS(a, b components.Position, observer, target components.Handle, maxDist float32, obstacles Obstacles, grid Grid, observerFaction components.Faction, factions *FactionTable, cfg ResolverConfig) bool {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dist := float32(math.Sqrt(float64(dx*dx + dy*dy)))
	if dist <= 0 {
		return true
	}
	if maxDist > 0 && dist > maxDist {
		return false
	}
	steps := int(dist/losStepSize) + 1
	stepX := dx / float32(steps)
	stepY := dy / float32(steps)

	blockAllies := cfg.AlliesBlockLOS
	blockEnemies := cfg.EnemiesBlockLOS
	needsUnitCheck := grid != nil && (blockAllies || blockEnemies)

	for i := 1; i < steps; i++ {
		p := components.Position{X: a.X + stepX*float32(i), Y: a.Y + stepY*float32(i)}
		if obstacles != nil && obstacles.IsBlocked(p) {
			return false
		}
		if !needsUnitCheck {
			continue
		}
		hits := grid.QueryRadius(p, losBlockRadius, QueryOptions{OnlyAlive: true})
		for _, h := range hits {
			if factions == nil || h.Entity == observer || h.Entity == target {
				continue
			}
			rel := factions.Relation(observerFaction, h.Faction)
			if (rel == RelationAlly && blockAllies) || (rel == RelationEnemy && blockEnemies) {
				return false
			}
		}
	}
	return true
}

package systems

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/combatcore/components"
)

// MarchDirection is the flow field's two-valued output.
type MarchDirection int8

const (
	DirectionNone MarchDirection = iota
	DirectionLeft
	DirectionRight
)

func (d MarchDirection) String() string {
	switch d {
	case DirectionLeft:
		return "LEFT"
	case DirectionRight:
		return "RIGHT"
	default:
		return "NONE"
	}
}

// FlowField answers direction_for(faction, column|position) -> LEFT|RIGHT
// for the 1D marching band. It is deliberately degenerate: direction is a
// static per-attacker-faction table derived at construction from each
// faction's target faction, ignoring column. The position parameter and
// an optional jitter amplitude are kept as a future extension point for
// varying direction by local density.
//
// The coherent-noise machinery that once drove decorative particle
// velocity survives here purely as the jitter term; the force field
// itself is replaced by a static direction table.
type FlowField struct {
	direction map[components.Faction]MarchDirection
	noise     opensimplex.Noise
	jitterAmp float32
}

// NewFlowField builds a direction table from a list of (attacker, target)
// faction pairs: attacker marches toward target's side of the band.
// jitterAmp scales the coherent noise JitterAt samples at (position,
// tick); DirectionFor does not use it, so the returned LEFT/RIGHT value
// is unaffected. Callers that want local variation read JitterAt.
func NewFlowField(pairs map[components.Faction]components.Faction, leftOf map[components.Faction]bool, jitterAmp float32) *FlowField {
	ff := &FlowField{
		direction: make(map[components.Faction]MarchDirection, len(pairs)),
		noise:     opensimplex.New(7),
		jitterAmp: jitterAmp,
	}
	for attacker, target := range pairs {
		if leftOf[target] {
			ff.direction[attacker] = DirectionLeft
		} else {
			ff.direction[attacker] = DirectionRight
		}
	}
	return ff
}

// NewBandFlowField is the common two-faction band setup: left faction
// marches RIGHT toward right, right faction marches LEFT toward left.
func NewBandFlowField(leftFaction, rightFaction components.Faction) *FlowField {
	return &FlowField{
		direction: map[components.Faction]MarchDirection{
			leftFaction:  DirectionRight,
			rightFaction: DirectionLeft,
		},
		noise: opensimplex.New(7),
	}
}

// DirectionFor returns the march direction for faction, regardless of
// column or position.
func (f *FlowField) DirectionFor(faction components.Faction, column int, pos components.Position) MarchDirection {
	d, ok := f.direction[faction]
	if !ok {
		return DirectionNone
	}
	return d
}

// JitterAt samples the retained coherent-noise field at pos, scaled by
// jitterAmp, for callers implementing local-density variation. Returns 0
// when no jitter amplitude was configured.
func (f *FlowField) JitterAt(pos components.Position, tick int64) float32 {
	if f.jitterAmp == 0 {
		return 0
	}
	const noiseScale = 0.01
	n := f.noise.Eval2(float64(pos.X)*noiseScale, float64(pos.Y)*noiseScale+float64(tick)*0.0005)
	return float32(n) * f.jitterAmp
}

// VelocityFor converts a march direction into a unit-scaled velocity
// along the X axis, for brains that want to hand the flow field's output
// straight to the ORCA solver as a preferred velocity.
func VelocityFor(d MarchDirection, speed float32) components.Velocity {
	switch d {
	case DirectionLeft:
		return components.Velocity{X: -speed, Y: 0}
	case DirectionRight:
		return components.Velocity{X: speed, Y: 0}
	default:
		return components.Velocity{}
	}
}

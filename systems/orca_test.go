package systems

import (
	"testing"

	"github.com/pthm-cable/combatcore/components"
)

// S3: A at (0,0) with v=(1,0), B at (10,0) with v=(-1,0), both radius 5,
// max speed 2, time horizon 2. One solve step must break the head-on
// symmetry: both agents pick up a lateral component, on opposite sides,
// without exceeding max speed.
func TestORCAHeadOnAgentsBreakSymmetryToOppositeSides(t *testing.T) {
	grid := NewBucket2DGrid(1000, 1000, 50, 0, nil)
	cfg := DefaultORCAConfig()
	cfg.TimeHorizon = 2
	solver := NewORCASolver(grid, cfg)

	ids := testEntities(2)
	a, b := ids[0], ids[1]

	posA := components.Position{X: 0, Y: 0}
	posB := components.Position{X: 10, Y: 0}
	solver.Register(a, posA, 5, 2, components.TypeNormal, components.FactionRed)
	solver.Register(b, posB, 5, 2, components.TypeNormal, components.FactionBlue)
	grid.Register(a, components.FactionRed, components.TypeNormal, posA)
	grid.Register(b, components.FactionBlue, components.TypeNormal, posB)

	solver.SetVelocity(a, components.Velocity{X: 1, Y: 0})
	solver.SetVelocity(b, components.Velocity{X: -1, Y: 0})
	solver.SetPreferredVelocity(a, components.Velocity{X: 2, Y: 0}, posA, false, false, false)
	solver.SetPreferredVelocity(b, components.Velocity{X: -2, Y: 0}, posB, false, false, false)

	solver.Step(1.0/18.0, 1)

	velA, ok := solver.Velocity(a)
	if !ok {
		t.Fatal("expected agent a to have a committed velocity")
	}
	velB, _ := solver.Velocity(b)
	if vecLen(velA) > 2+1e-3 {
		t.Fatalf("expected |velA| <= max_speed, got %f", vecLen(velA))
	}
	if vecLen(velB) > 2+1e-3 {
		t.Fatalf("expected |velB| <= max_speed, got %f", vecLen(velB))
	}
	if velA.Y == 0 || velB.Y == 0 {
		t.Fatalf("expected both agents to gain a lateral component, got %+v and %+v", velA, velB)
	}
	if velA.Y*velB.Y >= 0 {
		t.Fatalf("expected opposite lateral signs, got %+v and %+v", velA, velB)
	}
}

// Two agents at identical positions with zero velocity must separate
// along non-colinear directions within one step.
func TestORCAIdenticalPositionsSeparate(t *testing.T) {
	grid := NewBucket2DGrid(1000, 1000, 50, 0, nil)
	solver := NewORCASolver(grid, DefaultORCAConfig())

	ids := testEntities(2)
	a, b := ids[0], ids[1]
	pos := components.Position{X: 100, Y: 100}
	solver.Register(a, pos, 5, 2, components.TypeNormal, components.FactionRed)
	solver.Register(b, pos, 5, 2, components.TypeNormal, components.FactionBlue)
	grid.Register(a, components.FactionRed, components.TypeNormal, pos)
	grid.Register(b, components.FactionBlue, components.TypeNormal, pos)

	solver.SetPreferredVelocity(a, components.Velocity{}, pos, false, false, false)
	solver.SetPreferredVelocity(b, components.Velocity{}, pos, false, false, false)

	solver.Step(1.0/18.0, 1)

	velA, _ := solver.Velocity(a)
	velB, _ := solver.Velocity(b)
	if velA.X == 0 && velA.Y == 0 && velB.X == 0 && velB.Y == 0 {
		t.Fatal("expected overlapping agents to be pushed apart")
	}
	cross := velA.X*velB.Y - velA.Y*velB.X
	dot := velA.X*velB.X + velA.Y*velB.Y
	if cross == 0 && dot > 0 {
		t.Fatalf("expected non-colinear separation velocities, got %+v and %+v", velA, velB)
	}
}

func TestORCAFocusLockedAgentStandsStill(t *testing.T) {
	grid := NewBucket2DGrid(1000, 1000, 50, 0, nil)
	solver := NewORCASolver(grid, DefaultORCAConfig())

	ids := testEntities(1)
	a := ids[0]
	pos := components.Position{X: 0, Y: 0}
	solver.Register(a, pos, 5, 10, components.TypeNormal, components.FactionRed)
	grid.Register(a, components.FactionRed, components.TypeNormal, pos)
	solver.SetPreferredVelocity(a, components.Velocity{}, pos, false, true, false)

	solver.Step(1.0/18.0, 1)

	vel, _ := solver.Velocity(a)
	if vel.X != 0 || vel.Y != 0 {
		t.Fatalf("expected a focus-locked agent with zero preferred velocity to stand still, got %+v", vel)
	}
}

func TestReciprocityLowForFocusLockedHighForPassivePeer(t *testing.T) {
	cfg := DefaultORCAConfig()
	standGround := Reciprocity(true, false, cfg)
	normal := Reciprocity(false, false, cfg)
	yieldToPassive := Reciprocity(false, true, cfg)

	if standGround >= normal {
		t.Fatalf("expected a focus-locked/attacking agent's reciprocity (%f) to be lower than normal (%f)", standGround, normal)
	}
	if yieldToPassive <= normal {
		t.Fatalf("expected reciprocity against a passive peer (%f) to exceed normal (%f)", yieldToPassive, normal)
	}
}

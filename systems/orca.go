package systems

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
	"github.com/pthm-cable/combatcore/components"
)

// ORCAConfig holds the solver's tunable parameters.
type ORCAConfig struct {
	TimeHorizon       float32
	MaxIterations     int
	Tolerance         float32
	NeighborDistBase  float32
	ResistanceFactor  float32 // reciprocity floor for focus-locked/attacking agents
	PassiveBoost      float32 // added to reciprocity when the peer is passive
	UpdateIntervalSec float64 // fixed internal solve interval, independent of render tick
}

// DefaultORCAConfig returns reasonable defaults for a 60hz render tick.
func DefaultORCAConfig() ORCAConfig {
	return ORCAConfig{
		TimeHorizon:       2.0,
		MaxIterations:     20,
		Tolerance:         1e-3,
		NeighborDistBase:  8,
		ResistanceFactor:  0.15,
		PassiveBoost:      0.5,
		UpdateIntervalSec: 1.0 / 18.0,
	}
}

// orcaLine is a half-plane: a velocity v is feasible iff
// (v - Point) . Direction >= 0. Direction is the unit correction
// direction u-hat, i.e. the half-plane's outward normal; the boundary
// line itself runs along the perpendicular of Direction through Point.
type orcaLine struct {
	Point, Direction components.Velocity
}

// orcaAgentState is the solver's private per-agent registration record.
type orcaAgentState struct {
	pos         components.Position
	vel         components.Velocity // last committed velocity
	prefVel     components.Velocity
	radius      float32
	maxSpeed    float32
	etype       components.EntityType
	faction     components.Faction
	passive     bool
	focusLocked bool
	attacking   bool
}

// ORCASolver implements reciprocal velocity-obstacle collision avoidance,
// ticking at its own fixed internal rate independent of the render tick.
// Vector math is plain float32 functions rather than a vector library.
type ORCASolver struct {
	grid    Grid
	cfg     ORCAConfig
	agents  map[components.Handle]*orcaAgentState
	noise   opensimplex.Noise
	elapsed float64
}

// NewORCASolver wires a solver against the given spatial grid. The noise
// seed only needs to be fixed and shared across a run; it drives the
// deterministic tie-break, never genuine randomness.
func NewORCASolver(grid Grid, cfg ORCAConfig) *ORCASolver {
	return &ORCASolver{
		grid:   grid,
		cfg:    cfg,
		agents: make(map[components.Handle]*orcaAgentState),
		noise:  opensimplex.New(1),
	}
}

// Register adds or updates an agent's ORCA state.
func (s *ORCASolver) Register(h components.Handle, pos components.Position, radius, maxSpeed float32, etype components.EntityType, faction components.Faction) {
	st, ok := s.agents[h]
	if !ok {
		st = &orcaAgentState{}
		s.agents[h] = st
	}
	st.pos = pos
	st.radius = radius
	st.maxSpeed = maxSpeed
	st.etype = etype
	st.faction = faction
}

// Unregister removes an agent from the solver.
func (s *ORCASolver) Unregister(h components.Handle) {
	delete(s.agents, h)
}

// SetPreferredVelocity sets the velocity an agent would take absent any
// neighbors, along with its current passive/focus-locked/attacking flags,
// which feed the reciprocity weighting.
func (s *ORCASolver) SetPreferredVelocity(h components.Handle, pref components.Velocity, pos components.Position, passive, focusLocked, attacking bool) {
	st, ok := s.agents[h]
	if !ok {
		return
	}
	st.pos = pos
	st.prefVel = pref
	st.passive = passive
	st.focusLocked = focusLocked
	st.attacking = attacking
}

// SetVelocity overrides an agent's committed velocity, e.g. when the
// host integrates physics externally and the solver should see the
// post-integration value rather than its own last solve.
func (s *ORCASolver) SetVelocity(h components.Handle, vel components.Velocity) {
	if st, ok := s.agents[h]; ok {
		st.vel = vel
	}
}

// Velocity returns an agent's last committed velocity.
func (s *ORCASolver) Velocity(h components.Handle) (components.Velocity, bool) {
	st, ok := s.agents[h]
	if !ok {
		return components.Velocity{}, false
	}
	return st.vel, true
}

// Advance accumulates elapsed time and runs Step once the fixed internal
// interval has elapsed, leaving committed velocities unchanged between
// solves.
func (s *ORCASolver) Advance(dt float64, tick int64) {
	s.elapsed += dt
	if s.cfg.UpdateIntervalSec <= 0 || s.elapsed >= s.cfg.UpdateIntervalSec {
		s.Step(float32(s.elapsed), tick)
		s.elapsed = 0
	}
}

// Step runs one ORCA solve for every registered agent. Every agent's new
// velocity is computed against the others' velocities as committed at
// the start of this step, then all new velocities are committed
// together, so map iteration order never influences the result.
func (s *ORCASolver) Step(dt float32, tick int64) {
	if dt <= 0 {
		dt = float32(s.cfg.UpdateIntervalSec)
	}
	next := make(map[components.Handle]components.Velocity, len(s.agents))
	for h, self := range s.agents {
		if self.focusLocked && vecLen(self.prefVel) < 1e-4 {
			next[h] = components.Velocity{}
			continue
		}
		lines := s.buildLines(h, self, dt)
		next[h] = solveORCA(lines, self.prefVel, self.maxSpeed, s.cfg.MaxIterations, s.cfg.Tolerance)
	}
	for h, v := range next {
		s.agents[h].vel = v
	}
}

func (s *ORCASolver) neighborDist(self *orcaAgentState) float32 {
	base := self.maxSpeed*s.cfg.TimeHorizon + self.radius*4
	switch self.etype {
	case components.TypeBoss:
		base *= 1.5
	case components.TypeElite:
		base *= 1.2
	}
	return base + s.cfg.NeighborDistBase
}

func (s *ORCASolver) buildLines(h components.Handle, self *orcaAgentState, dt float32) []orcaLine {
	dist := s.neighborDist(self)
	hits := s.grid.QueryRadius(self.pos, dist, QueryOptions{Ignore: h, HasIgnore: true, OnlyAlive: true})

	lines := make([]orcaLine, 0, len(hits))
	for _, hit := range hits {
		peer, ok := s.agents[hit.Entity]
		if !ok {
			continue
		}
		lines = append(lines, s.buildLine(h, self, hit.Entity, peer, dt))
	}
	return lines
}

// Reciprocity computes the single weight this agent concedes in a
// pairwise avoidance correction: 1.0 by default, set to
// ResistanceFactor when the agent is focus-locked or attacking (it
// stands its ground), raised by PassiveBoost when the peer is passive
// (this agent gives more room since the peer won't), then clamped to
// [0,2]. The peer's priority is not consulted; only its passive flag is.
func Reciprocity(selfFocusLockedOrAttacking, peerPassive bool, cfg ORCAConfig) float32 {
	r := float32(1)
	if selfFocusLockedOrAttacking {
		r = cfg.ResistanceFactor
	}
	if peerPassive {
		r += cfg.PassiveBoost
	}
	return clampRangeF(r, 0, 2)
}

func clampRangeF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func vecLen(v components.Velocity) float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y)))
}

func vecNormalized(v components.Velocity) components.Velocity {
	mag := vecLen(v)
	if mag < 1e-9 {
		return components.Velocity{}
	}
	return components.Velocity{X: v.X / mag, Y: v.Y / mag}
}

func vecSub(a, b components.Velocity) components.Velocity {
	return components.Velocity{X: a.X - b.X, Y: a.Y - b.Y}
}

func vecAdd(a, b components.Velocity) components.Velocity {
	return components.Velocity{X: a.X + b.X, Y: a.Y + b.Y}
}

func vecScale(v components.Velocity, s float32) components.Velocity {
	return components.Velocity{X: v.X * s, Y: v.Y * s}
}

func vecDot(a, b components.Velocity) float32 {
	return a.X*b.X + a.Y*b.Y
}

// buildLine computes one ORCA half-plane for the pair (self, peer).
func (s *ORCASolver) buildLine(selfH components.Handle, self *orcaAgentState, peerH components.Handle, peer *orcaAgentState, dt float32) orcaLine {
	relPos := vecSub(components.Velocity{X: peer.pos.X, Y: peer.pos.Y}, components.Velocity{X: self.pos.X, Y: self.pos.Y})
	relVel := vecSub(self.vel, peer.vel)
	combinedRadius := self.radius + peer.radius
	tau := s.cfg.TimeHorizon
	distRelPos := vecLen(relPos)

	var u components.Velocity
	var direction components.Velocity

	if distRelPos > combinedRadius {
		// Non-penetrating: truncated velocity-obstacle cone with apex relPos/tau.
		apex := vecScale(relPos, 1/tau)
		w := vecSub(relVel, apex)
		wLen := vecLen(w)
		coneHalfAngle := float32(math.Atan(float64(combinedRadius / distRelPos)))
		dot := vecDot(w, relPos)

		if wLen < 1e-9 {
			// Degenerate: pick a deterministic pseudo-random push direction.
			direction = randomTangent(selfH, peerH, 0, s.noise)
			u = vecScale(direction, combinedRadius/tau)
		} else {
			angleWithRelPos := float32(math.Acos(clampUnit(float64(dot / (wLen * distRelPos)))))
			if dot < 0 && angleWithRelPos > coneHalfAngle {
				// w points away from the apex, outside the cone: shortest push
				// is directly along the normalized w.
				direction = vecNormalized(w)
				u = vecScale(direction, combinedRadius/tau-wLen)
			} else {
				// Project relVel onto the nearer leg of the cone; u is the
				// residual from relVel to that projection.
				leg1, leg2 := coneLegs(relPos, coneHalfAngle)
				proj1 := vecDot(relVel, leg1)
				proj2 := vecDot(relVel, leg2)
				var leg components.Velocity
				var proj float32
				outward := perp(leg1)
				if proj1 > proj2 {
					leg, proj = leg1, proj1
				} else {
					leg, proj = leg2, proj2
					outward = vecScale(perp(leg2), -1)
				}
				onLeg := vecScale(leg, proj)
				u = vecSub(onLeg, relVel)
				direction = vecNormalized(u)
				if vecLen(u) < 1e-9 {
					// relVel sits exactly on the leg: push along the leg's
					// outward normal with zero magnitude.
					direction = outward
				}
			}
		}
	} else {
		// Overlapping: separation push over one step.
		sep := distRelPos
		var normal components.Velocity
		if sep < 1e-9 {
			normal = randomTangent(selfH, peerH, 1, s.noise)
		} else {
			normal = vecScale(relPos, 1/sep)
		}
		u = vecSub(vecScale(normal, (combinedRadius-sep)/dt), relVel)
		direction = vecNormalized(u)
		if vecLen(u) < 1e-9 {
			direction = normal
		}
	}

	// Perfectly head-on geometry (u anti-parallel to relPos) would push
	// the pair along the same axis forever; rotate the half-plane by a
	// pair-derived phase. The two agents see mirrored geometry, so the
	// same rotation angle sends them to opposite world-frame sides.
	if headOnDegenerate(u, relPos) {
		ang := headOnBias * pairSide(selfH, peerH, s.noise)
		direction = rotate(direction, ang)
		u = rotate(u, ang)
	}

	reciprocity := Reciprocity(self.focusLocked || self.attacking, peer.passive, s.cfg)
	point := vecAdd(self.vel, vecScale(u, 0.5*reciprocity))
	return orcaLine{Point: point, Direction: direction}
}

// headOnBias is the rotation applied to break perfectly symmetric
// head-on encounters.
const headOnBias = 0.35

// headOnDegenerate reports whether the correction u pushes straight
// back along the line between the two agents, the configuration in
// which both sides would otherwise mirror each other's correction.
func headOnDegenerate(u, relPos components.Velocity) bool {
	uLen := vecLen(u)
	rLen := vecLen(relPos)
	if uLen < 1e-9 || rLen < 1e-9 {
		return false
	}
	cross := u.X*relPos.Y - u.Y*relPos.X
	if absF(cross) > 1e-3*uLen*rLen {
		return false
	}
	return vecDot(u, relPos) < 0
}

func absF(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func rotate(v components.Velocity, angle float32) components.Velocity {
	c := float32(math.Cos(float64(angle)))
	sn := float32(math.Sin(float64(angle)))
	return components.Velocity{X: v.X*c - v.Y*sn, Y: v.X*sn + v.Y*c}
}

// pairSide derives a deterministic ±1 for an unordered agent pair from
// their handle ids, so which side a given pair breaks toward is stable
// across ticks and runs but varies across pairs.
func pairSide(self, peer components.Handle, noise opensimplex.Noise) float32 {
	lo, hi := self.ID(), peer.ID()
	if lo > hi {
		lo, hi = hi, lo
	}
	if noise.Eval2(float64(lo)*0.173, float64(hi)*0.131) < 0 {
		return -1
	}
	return 1
}

func clampUnit(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

// coneLegs returns unit vectors along the two tangent legs of the
// truncated velocity-obstacle cone whose apex direction is relPos and
// half-angle is halfAngle.
func coneLegs(relPos components.Velocity, halfAngle float32) (components.Velocity, components.Velocity) {
	baseAngle := float32(math.Atan2(float64(relPos.Y), float64(relPos.X)))
	leg1 := components.Velocity{X: float32(math.Cos(float64(baseAngle + halfAngle))), Y: float32(math.Sin(float64(baseAngle + halfAngle)))}
	leg2 := components.Velocity{X: float32(math.Cos(float64(baseAngle - halfAngle))), Y: float32(math.Sin(float64(baseAngle - halfAngle)))}
	return leg1, leg2
}

func perp(v components.Velocity) components.Velocity {
	return components.Velocity{X: -v.Y, Y: v.X}
}

// randomTangent derives a deterministic pseudo-random unit vector from
// the pair of entity handles (plus a salt to distinguish call sites),
// so a↔b never push along the same axis, and the result never depends
// on wall-clock time or map iteration order.
func randomTangent(a, b components.Handle, salt int, noise opensimplex.Noise) components.Velocity {
	x := float64(a.ID())*0.1009 + float64(b.ID())*0.0733 + float64(salt)
	y := float64(a.ID())*0.0617 - float64(b.ID())*0.0881 + float64(salt)*1.37
	n := noise.Eval2(x, y) // in [-1, 1]
	angle := (n + 1) * math.Pi
	return components.Velocity{X: float32(math.Cos(angle)), Y: float32(math.Sin(angle))}
}

// solveORCA iteratively projects pref onto the violated half-planes in
// decreasing-urgency order (urgency = how deep the current candidate
// violates a line), clamping to maxSpeed after each projection.
func solveORCA(lines []orcaLine, pref components.Velocity, maxSpeed float32, maxIterations int, tolerance float32) components.Velocity {
	candidate := clampToSpeed(pref, maxSpeed)
	if len(lines) == 0 {
		return candidate
	}

	for iter := 0; iter < maxIterations; iter++ {
		worstIdx := -1
		worstViolation := tolerance
		for i, line := range lines {
			violation := violationDepth(line, candidate)
			if violation > worstViolation {
				worstViolation = violation
				worstIdx = i
			}
		}
		if worstIdx < 0 {
			break
		}
		candidate = projectOntoLine(lines[worstIdx], candidate)
		candidate = clampToSpeed(candidate, maxSpeed)
	}
	return candidate
}

// violationDepth is how far candidate sits on the infeasible side of
// line (negative/zero means feasible): feasibility is
// (v - Point) . Direction >= 0 with Direction the outward normal.
func violationDepth(line orcaLine, candidate components.Velocity) float32 {
	rel := vecSub(candidate, line.Point)
	return -vecDot(rel, line.Direction)
}

// projectOntoLine drops v perpendicularly onto the half-plane's
// boundary, which runs along the perpendicular of Direction through
// Point.
func projectOntoLine(line orcaLine, v components.Velocity) components.Velocity {
	boundary := perp(line.Direction)
	rel := vecSub(v, line.Point)
	t := vecDot(rel, boundary)
	return vecAdd(line.Point, vecScale(boundary, t))
}

func clampToSpeed(v components.Velocity, maxSpeed float32) components.Velocity {
	mag := vecLen(v)
	if mag <= maxSpeed || mag < 1e-9 {
		return v
	}
	return vecScale(v, maxSpeed/mag)
}

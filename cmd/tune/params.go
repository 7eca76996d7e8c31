// Command tune searches ORCA/target-resolver parameters for a
// balanced, decisive fight.
package main

import "github.com/pthm-cable/combatcore/config"

// ParamSpec defines one optimizable config knob.
type ParamSpec struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
}

// ParamVector holds the set of all optimizable parameters, normalized
// to [0,1] so gonum's CmaEsChol always searches a unit cube regardless
// of each knob's natural scale.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector returns the ORCA/target-resolver knobs most
// responsible for how decisively and how evenly a fight resolves.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "orca_resistance_factor", Min: 0.0, Max: 0.6, Default: 0.15},
			{Name: "orca_passive_boost", Min: 0.0, Max: 1.2, Default: 0.5},
			{Name: "orca_time_horizon", Min: 0.5, Max: 4.0, Default: 2.0},
			{Name: "orca_neighbor_dist", Min: 4, Max: 16, Default: 8},
			{Name: "resolver_combat_priority_penalty", Min: 0.0, Max: 0.8, Default: 0.3},
			{Name: "resolver_locked_pair_penalty", Min: 0.0, Max: 0.8, Default: 0.2},
			{Name: "resolver_surround_bonus", Min: 0.5, Max: 4.0, Default: 2.0},
			{Name: "resolver_sector_crowding_penalty", Min: 0.0, Max: 0.8, Default: 0.2},
		},
	}
}

func (pv *ParamVector) Dim() int { return len(pv.Specs) }

func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, s := range pv.Specs {
		v[i] = s.Default
	}
	return v
}

func (pv *ParamVector) Normalize(raw []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, s := range pv.Specs {
		out[i] = (raw[i] - s.Min) / (s.Max - s.Min)
	}
	return out
}

func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, s := range pv.Specs {
		out[i] = s.Min + normalized[i]*(s.Max-s.Min)
	}
	return out
}

func (pv *ParamVector) Clamp(v []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, s := range pv.Specs {
		val := v[i]
		if val < s.Min {
			val = s.Min
		}
		if val > s.Max {
			val = s.Max
		}
		out[i] = val
	}
	return out
}

// ApplyToConfig writes clamped values into cfg's ORCA/TargetResolver
// sections, in the same positional order as Specs.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)
	cfg.ORCA.ResistanceFactor = c[0]
	cfg.ORCA.PassiveBoost = c[1]
	cfg.ORCA.TimeHorizon = c[2]
	cfg.ORCA.NeighborDist = c[3]
	cfg.TargetResolver.CombatPriorityPenalty = c[4]
	cfg.TargetResolver.LockedPairPenalty = c[5]
	cfg.TargetResolver.SurroundBonus = c[6]
	cfg.TargetResolver.SectorCrowdingPenalty = c[7]
}

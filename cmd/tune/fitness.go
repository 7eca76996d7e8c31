package main

import (
	"math"

	"github.com/pthm-cable/combatcore/components"
	"github.com/pthm-cable/combatcore/config"
	"github.com/pthm-cable/combatcore/game"
)

// FitnessEvaluator runs one headless fight per parameter vector and
// scores it. The core is single-threaded and deterministic: the same
// parameters and the same level always resolve the same fight, so one
// run per evaluation is exact rather than a sample.
type FitnessEvaluator struct {
	params   *ParamVector
	maxTicks int64
	baseCfg  *config.Config
	level    config.LevelDescriptor
	agents   config.AgentConfigTable
	factionA components.Faction
	factionB components.Faction
}

// NewFitnessEvaluator wires an evaluator against a base config and the
// level/agent descriptors to fight on every evaluation.
func NewFitnessEvaluator(params *ParamVector, maxTicks int64, baseCfg *config.Config, level config.LevelDescriptor, agents config.AgentConfigTable) *FitnessEvaluator {
	a, b := twoMainFactions(level)
	return &FitnessEvaluator{params: params, maxTicks: maxTicks, baseCfg: baseCfg, level: level, agents: agents, factionA: a, factionB: b}
}

// twoMainFactions returns the two distinct factions with the largest
// initial populations in the level descriptor, the two sides whose fight
// resolution the fitness function should judge.
func twoMainFactions(desc config.LevelDescriptor) (components.Faction, components.Faction) {
	counts := make(map[string]int)
	for _, k := range desc.Kinds {
		counts[k.Faction] += k.InitialCount
	}
	var first, second string
	var firstN, secondN int
	for name, n := range counts {
		if n > firstN {
			second, secondN = first, firstN
			first, firstN = name, n
		} else if n > secondN {
			second, secondN = name, n
		}
	}
	fa, _ := parseFactionName(first)
	fb, _ := parseFactionName(second)
	return fa, fb
}

func parseFactionName(name string) (components.Faction, bool) {
	for _, f := range components.AllFactions() {
		if f.String() == name {
			return f, true
		}
	}
	return 0, false
}

func (fe *FitnessEvaluator) copyBaseConfig() *config.Config {
	cfg := *fe.baseCfg
	return &cfg
}

// Evaluate runs one fight under raw's denormalized parameters and
// returns a score where lower is better (gonum's optimize.Minimize
// convention). It rewards a fight that resolves (one side wiped out)
// close to the halfway point of the tick budget (long enough to be a
// real contest, decisive enough not to stall) and penalizes an uneven
// survivor count on the winning side.
func (fe *FitnessEvaluator) Evaluate(raw []float64) float64 {
	cfg := fe.copyBaseConfig()
	fe.params.ApplyToConfig(cfg, raw)

	driver := game.NewDriver(cfg, nil, "")
	if err := driver.LoadLevel(fe.level, fe.agents); err != nil {
		return math.Inf(1)
	}

	resolvedAt := int64(-1)
	var tick int64
	for ; tick < fe.maxTicks; tick++ {
		driver.Tick()
		aliveA := driver.FactionAliveCount(fe.factionA)
		aliveB := driver.FactionAliveCount(fe.factionB)
		if aliveA == 0 || aliveB == 0 {
			resolvedAt = tick
			break
		}
	}

	aliveA := driver.FactionAliveCount(fe.factionA)
	aliveB := driver.FactionAliveCount(fe.factionB)
	imbalance := math.Abs(float64(aliveA - aliveB))

	if resolvedAt < 0 {
		// Neither side was wiped out within the tick budget: a stalemate
		// is worse than any resolved fight, regardless of imbalance.
		return float64(fe.maxTicks) + imbalance*100
	}

	target := float64(fe.maxTicks) / 2
	return math.Abs(float64(resolvedAt)-target) + imbalance*10
}

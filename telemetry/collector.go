package telemetry

import "github.com/pthm-cable/combatcore/components"

// Collector accumulates combat events within fixed-tick windows and
// flushes per-faction attacks attempted/landed, kill and death counters
// as WindowStats. Pool recycles are counted separately and not windowed.
type Collector struct {
	windowTicks     int64
	windowStartTick int64

	attacksAttempted map[components.Faction]int
	attacksLanded    map[components.Faction]int
	kills            map[components.Faction]int
	deaths           map[components.Faction]int
	recycles         int
}

// NewCollector builds a collector whose windows span windowTicks ticks.
func NewCollector(windowTicks int64) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{
		windowTicks:      windowTicks,
		attacksAttempted: make(map[components.Faction]int),
		attacksLanded:    make(map[components.Faction]int),
		kills:            make(map[components.Faction]int),
		deaths:           make(map[components.Faction]int),
	}
}

// RecordAttackAttempt records attacker's swing/shot regardless of outcome.
func (c *Collector) RecordAttackAttempt(attacker components.Faction) {
	c.attacksAttempted[attacker]++
}

// RecordDamageDealt records a landed hit and, if it killed, a kill for
// attacker and a death for the target's faction.
func (c *Collector) RecordDamageDealt(attacker, target components.Faction, killed bool) {
	c.attacksLanded[attacker]++
	if killed {
		c.kills[attacker]++
		c.deaths[target]++
	}
}

// RecordDeath records a death not already folded into RecordDamageDealt
// (e.g. apply_damage from a host-side source).
func (c *Collector) RecordDeath(faction components.Faction) {
	c.deaths[faction]++
}

// RecordPoolRecycle records one handle returned to its pool.
func (c *Collector) RecordPoolRecycle() {
	c.recycles++
}

// ShouldFlush reports whether the current window has elapsed.
func (c *Collector) ShouldFlush(tick int64) bool {
	return tick-c.windowStartTick >= c.windowTicks
}

// WindowStats is one flushed window's per-faction combat summary.
type WindowStats struct {
	WindowStartTick  int64   `csv:"window_start_tick"`
	WindowEndTick    int64   `csv:"window_end_tick"`
	Faction          string  `csv:"faction"`
	AttacksAttempted int     `csv:"attacks_attempted"`
	AttacksLanded    int     `csv:"attacks_landed"`
	Kills            int     `csv:"kills"`
	Deaths           int     `csv:"deaths"`
	HitRate          float64 `csv:"hit_rate"`
}

// Flush produces one WindowStats row per canonical faction and resets
// the counters for the next window.
func (c *Collector) Flush(tick int64) []WindowStats {
	out := make([]WindowStats, 0, len(components.AllFactions()))
	for _, f := range components.AllFactions() {
		attempted := c.attacksAttempted[f]
		landed := c.attacksLanded[f]
		var hitRate float64
		if attempted > 0 {
			hitRate = float64(landed) / float64(attempted)
		}
		out = append(out, WindowStats{
			WindowStartTick:  c.windowStartTick,
			WindowEndTick:    tick,
			Faction:          f.String(),
			AttacksAttempted: attempted,
			AttacksLanded:    landed,
			Kills:            c.kills[f],
			Deaths:           c.deaths[f],
			HitRate:          hitRate,
		})
	}

	c.windowStartTick = tick
	c.attacksAttempted = make(map[components.Faction]int)
	c.attacksLanded = make(map[components.Faction]int)
	c.kills = make(map[components.Faction]int)
	c.deaths = make(map[components.Faction]int)
	return out
}

// Recycles reports the running pool-recycle count (not windowed, since
// recycling has no natural per-faction split).
func (c *Collector) Recycles() int { return c.recycles }

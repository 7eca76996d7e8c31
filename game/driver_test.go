package game

import (
	"testing"

	"github.com/pthm-cable/combatcore/components"
	"github.com/pthm-cable/combatcore/config"
	"github.com/pthm-cable/combatcore/systems"
)

func duelLevel() (config.LevelDescriptor, config.AgentConfigTable) {
	level := config.LevelDescriptor{
		Name:       "duel",
		GridWidth:  800,
		GridHeight: 450,
		FlowFieldPairs: map[string]string{
			"Red":  "Blue",
			"Blue": "Red",
		},
		Kinds: []config.KindSpawn{
			{
				AgentKind:    "fighter",
				InitialCount: 1,
				MaxCount:     1,
				Faction:      "Red",
				Behavior:     "melee",
				SpawnPoints:  []config.Point{{X: 100, Y: 200}},
			},
			{
				AgentKind:    "fighter",
				InitialCount: 1,
				MaxCount:     1,
				Faction:      "Blue",
				Behavior:     "melee",
				SpawnPoints:  []config.Point{{X: 130, Y: 200}},
			},
		},
	}
	agents := config.AgentConfigTable{
		Agents: map[string]config.AgentConfig{
			"fighter": {
				ID:             "fighter",
				DisplayName:    "Fighter",
				EntityType:     "normal",
				MaxHP:          100,
				BaseAttack:     10,
				AttackRange:    40,
				AttackInterval: 0.5,
				DetectionRange: 300,
				PursuitRange:   400,
				MoveSpeed:      80,
				ColliderSize:   24,
			},
		},
	}
	return level, agents
}

func rangedDuelLevel() (config.LevelDescriptor, config.AgentConfigTable) {
	level := config.LevelDescriptor{
		Name:       "ranged-duel",
		GridWidth:  800,
		GridHeight: 450,
		Kinds: []config.KindSpawn{
			{
				AgentKind:    "lich",
				InitialCount: 1,
				MaxCount:     1,
				Faction:      "Red",
				Behavior:     "ranged",
				SpawnPoints:  []config.Point{{X: 100, Y: 200}},
			},
			{
				AgentKind:    "lich",
				InitialCount: 1,
				MaxCount:     1,
				Faction:      "Blue",
				Behavior:     "ranged",
				SpawnPoints:  []config.Point{{X: 300, Y: 200}},
			},
		},
	}
	agents := config.AgentConfigTable{
		Agents: map[string]config.AgentConfig{
			"lich": {
				ID:             "lich",
				DisplayName:    "Lich",
				EntityType:     "normal",
				MaxHP:          100,
				BaseAttack:     75,
				AttackRange:    250,
				AttackInterval: 1,
				DetectionRange: 300,
				PursuitRange:   400,
				MoveSpeed:      60,
				ColliderSize:   24,
				ProjectileID:   "fireball",
			},
		},
	}
	return level, agents
}

// Two ranged agents in the fully wired driver must actually get
// projectiles out of the pool: a spawn event carrying the shooter's
// damage, and eventually a landed hit for that amount.
func TestRangedAgentsFireProjectilesEndToEnd(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	driver := NewDriver(cfg, nil, "")
	level, agents := rangedDuelLevel()
	if err := driver.LoadLevel(level, agents); err != nil {
		t.Fatalf("LoadLevel failed: %v", err)
	}
	if driver.pool.Available(cfg.Projectile.Kind) == 0 {
		t.Fatalf("expected a pre-warmed %q pool bucket for the level's ranged kinds", cfg.Projectile.Kind)
	}

	spawned := false
	landed := false
	for i := 0; i < 300; i++ {
		for _, e := range driver.Tick() {
			switch e.Kind {
			case systems.EventProjectileSpawn:
				spawned = true
				if e.Amount != 75 {
					t.Fatalf("expected the projectile to carry the shooter's base attack 75, got %f", e.Amount)
				}
			case systems.EventDamageDealt:
				if e.Amount == 75 {
					landed = true
				}
			}
		}
		if spawned && landed {
			break
		}
	}
	if !spawned {
		t.Fatal("expected at least one projectile_spawn event from the wired driver")
	}
	if !landed {
		t.Fatal("expected a projectile hit to deal the shooter's damage")
	}
}

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	driver := NewDriver(cfg, nil, "")
	level, agents := duelLevel()
	if err := driver.LoadLevel(level, agents); err != nil {
		t.Fatalf("LoadLevel failed: %v", err)
	}
	return driver
}

func TestLoadLevelSpawnsInitialPopulation(t *testing.T) {
	driver := newTestDriver(t)
	if got := driver.FactionAliveCount(components.FactionRed); got != 1 {
		t.Fatalf("expected 1 alive Red fighter, got %d", got)
	}
	if got := driver.FactionAliveCount(components.FactionBlue); got != 1 {
		t.Fatalf("expected 1 alive Blue fighter, got %d", got)
	}
}

func TestTickRunsWithoutPanicking(t *testing.T) {
	driver := newTestDriver(t)
	for i := 0; i < 300; i++ {
		driver.Tick()
	}
	// Two hostile fighters spawned within pursuit/attack range of each
	// other fight for 300 ticks (5s at 60hz); at least one of them is
	// still alive afterwards.
	totalAlive := driver.FactionAliveCount(components.FactionRed) + driver.FactionAliveCount(components.FactionBlue)
	if totalAlive == 0 {
		t.Fatal("expected at least one fighter to still be alive")
	}
}

func TestSpawnRespectsMaxCount(t *testing.T) {
	driver := newTestDriver(t)
	// Each fighter entry has max_count 1 and LoadLevel sums max_count per
	// agent_kind, so fighter's max_count is 2 total (1 Red + 1 Blue already
	// spawned by LoadLevel): the pool for "fighter" has exactly 2 prewarmed
	// handles and 0 remain free after the initial population.
	if _, ok := driver.Spawn("fighter", components.Position{X: 400, Y: 200}, components.FactionRed); ok {
		t.Fatal("expected Spawn to fail once max_count handles are all in play")
	}
}

func TestApplyDamageKillsAndEmitsDeath(t *testing.T) {
	driver := newTestDriver(t)
	var target components.Handle
	driver.world.Each(func(h components.Handle) {
		if f, ok := driver.world.Faction(h); ok && f == components.FactionRed {
			target = h
		}
	})

	driver.ApplyDamage(target, 1000)
	driver.Tick()

	if driver.world.IsAlive(target) {
		t.Fatal("expected target to be dead after lethal ApplyDamage")
	}
}

func TestSetIntentOverridesAIAndIsSticky(t *testing.T) {
	driver := newTestDriver(t)
	var redHandle components.Handle
	driver.world.Each(func(h components.Handle) {
		if f, ok := driver.world.Faction(h); ok && f == components.FactionRed {
			redHandle = h
		}
	})

	driver.SetIntent(redHandle, components.Intent{Kind: components.IntentMarch, MarchDir: components.MarchRight})
	if _, ok := driver.manual[redHandle]; !ok {
		t.Fatal("expected SetIntent to install a manual override")
	}

	driver.SetIntent(redHandle, components.Intent{Kind: components.IntentNone})
	if _, ok := driver.manual[redHandle]; ok {
		t.Fatal("expected IntentNone to release manual control")
	}
}

func TestSetWalkableTogglesNavGridCells(t *testing.T) {
	driver := newTestDriver(t)
	rect := Rect{MinX: 0, MinY: 0, MaxX: 64, MaxY: 64}
	driver.SetWalkable(rect, false)

	gx, gy := driver.navGrid.WorldToGrid(components.Position{X: 32, Y: 32})
	if driver.navGrid.IsWalkable(gx, gy) {
		t.Fatal("expected cell under the blocked rect to be unwalkable")
	}

	driver.SetWalkable(rect, true)
	if !driver.navGrid.IsWalkable(gx, gy) {
		t.Fatal("expected cell to be walkable again after SetWalkable(true)")
	}
}

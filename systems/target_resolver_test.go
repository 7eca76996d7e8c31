package systems

import (
	"testing"

	"github.com/mlange-42/ark/ecs"
	"github.com/pthm-cable/combatcore/components"
)

// fakeAgentQuery is a minimal in-memory AgentQuery for resolver tests.
type fakeAgentQuery struct {
	pos     map[components.Handle]components.Position
	faction map[components.Handle]components.Faction
	etype   map[components.Handle]components.EntityType
	stats   map[components.Handle]components.Stats
	dead    map[components.Handle]bool
}

func newFakeAgentQuery() *fakeAgentQuery {
	return &fakeAgentQuery{
		pos:     make(map[components.Handle]components.Position),
		faction: make(map[components.Handle]components.Faction),
		etype:   make(map[components.Handle]components.EntityType),
		stats:   make(map[components.Handle]components.Stats),
		dead:    make(map[components.Handle]bool),
	}
}

func (f *fakeAgentQuery) add(h components.Handle, fac components.Faction, et components.EntityType, pos components.Position, st components.Stats) {
	f.pos[h] = pos
	f.faction[h] = fac
	f.etype[h] = et
	f.stats[h] = st
}

func (f *fakeAgentQuery) Position(h components.Handle) (components.Position, bool) {
	p, ok := f.pos[h]
	return p, ok
}
func (f *fakeAgentQuery) Faction(h components.Handle) (components.Faction, bool) {
	v, ok := f.faction[h]
	return v, ok
}
func (f *fakeAgentQuery) Type(h components.Handle) (components.EntityType, bool) {
	v, ok := f.etype[h]
	return v, ok
}
func (f *fakeAgentQuery) Stats(h components.Handle) (components.Stats, bool) {
	v, ok := f.stats[h]
	return v, ok
}
func (f *fakeAgentQuery) IsAlive(h components.Handle) bool                         { return !f.dead[h] }
func (f *fakeAgentQuery) SetPosition(h components.Handle, pos components.Position) { f.pos[h] = pos }

// testEntities mints real, distinct ecs.Entity handles from a scratch
// world, since Handle is a plain alias for ecs.Entity and its fields are
// not meant to be constructed directly.
func testEntities(n int) []components.Handle {
	world := ecs.NewWorld()
	mapper := ecs.NewMap1[components.Position](world)
	out := make([]components.Handle, n)
	for i := 0; i < n; i++ {
		out[i] = mapper.NewEntity(&components.Position{})
	}
	return out
}

func newTestGrid(alive AliveLookup) *Bucket2DGrid {
	return NewBucket2DGrid(2000, 2000, 50, 0, alive)
}

func TestFindBestPrefersWoundedAndCloser(t *testing.T) {
	q := newFakeAgentQuery()
	grid := newTestGrid(q)
	factions := NewFactionTable()

	ids := testEntities(3)
	attacker, healthy, wounded := ids[0], ids[1], ids[2]

	q.add(attacker, components.FactionPlayer, components.TypeNormal, components.Position{X: 0, Y: 0}, components.Stats{HP: 100, MaxHP: 100})
	q.add(healthy, components.FactionRed, components.TypeNormal, components.Position{X: 50, Y: 0}, components.Stats{HP: 100, MaxHP: 100, BaseAttack: 10})
	q.add(wounded, components.FactionRed, components.TypeNormal, components.Position{X: 50, Y: 10}, components.Stats{HP: 10, MaxHP: 100, BaseAttack: 10})

	grid.Register(attacker, components.FactionPlayer, components.TypeNormal, q.pos[attacker])
	grid.Register(healthy, components.FactionRed, components.TypeNormal, q.pos[healthy])
	grid.Register(wounded, components.FactionRed, components.TypeNormal, q.pos[wounded])

	cfg := DefaultResolverConfig()
	cfg.EnableSurround = false
	r := NewTargetResolver(grid, factions, q, nil, cfg)

	info, found := r.FindBest(attacker, q.pos[attacker], components.FactionPlayer, 200, 1)
	if !found {
		t.Fatal("expected a target")
	}
	if info.Entity != wounded {
		t.Fatalf("expected wounded target to win on score, got %v", info.Entity)
	}
}

func TestFindAndLockPreventsSecondAttacker(t *testing.T) {
	q := newFakeAgentQuery()
	grid := newTestGrid(q)
	factions := NewFactionTable()

	ids := testEntities(3)
	a1, a2, target := ids[0], ids[1], ids[2]

	q.add(a1, components.FactionPlayer, components.TypeNormal, components.Position{X: 0, Y: 0}, components.Stats{HP: 100, MaxHP: 100})
	q.add(a2, components.FactionPlayer, components.TypeNormal, components.Position{X: 5, Y: 0}, components.Stats{HP: 100, MaxHP: 100})
	q.add(target, components.FactionRed, components.TypeNormal, components.Position{X: 50, Y: 0}, components.Stats{HP: 100, MaxHP: 100})

	grid.Register(a1, components.FactionPlayer, components.TypeNormal, q.pos[a1])
	grid.Register(a2, components.FactionPlayer, components.TypeNormal, q.pos[a2])
	grid.Register(target, components.FactionRed, components.TypeNormal, q.pos[target])

	cfg := DefaultResolverConfig()
	cfg.EnableSurround = false
	r := NewTargetResolver(grid, factions, q, nil, cfg)

	info1, ok1 := r.FindAndLock(a1, q.pos[a1], components.FactionPlayer, 200, 1)
	if !ok1 || info1.Entity != target {
		t.Fatalf("expected a1 to lock target, got %v ok=%v", info1.Entity, ok1)
	}

	_, ok2 := r.FindAndLock(a2, q.pos[a2], components.FactionPlayer, 200, 1)
	if ok2 {
		t.Fatal("expected a2 to be refused the already-locked target")
	}

	// a1 dies: lock must release on sweep, letting a2 acquire it.
	q.dead[a1] = true
	r.Sweep(2)
	info2, ok2b := r.FindAndLock(a2, q.pos[a2], components.FactionPlayer, 200, 2)
	if !ok2b || info2.Entity != target {
		t.Fatalf("expected a2 to acquire target after a1's lock was swept, got %v ok=%v", info2.Entity, ok2b)
	}
}

// A target that slips out of detection range is still found by the
// memory search as long as it sits within search_radius of where it was
// last seen; once it escapes even that, the attempt budget drains and
// the memory entry is discarded.
func TestFindBestFallsBackToMemorySearch(t *testing.T) {
	q := newFakeAgentQuery()
	grid := newTestGrid(q)
	factions := NewFactionTable()

	ids := testEntities(2)
	attacker, target := ids[0], ids[1]
	q.add(attacker, components.FactionPlayer, components.TypeNormal, components.Position{X: 0, Y: 0}, components.Stats{HP: 100, MaxHP: 100})
	q.add(target, components.FactionRed, components.TypeNormal, components.Position{X: 150, Y: 0}, components.Stats{HP: 100, MaxHP: 100})
	grid.Register(attacker, components.FactionPlayer, components.TypeNormal, q.pos[attacker])
	grid.Register(target, components.FactionRed, components.TypeNormal, q.pos[target])

	cfg := DefaultResolverConfig()
	cfg.EnableSurround = false
	r := NewTargetResolver(grid, factions, q, nil, cfg)

	info, found := r.FindBest(attacker, q.pos[attacker], components.FactionPlayer, 200, 1)
	if !found || info.Entity != target || !info.Visible {
		t.Fatalf("expected a visible sighting first, got %+v found=%v", info, found)
	}

	// Slip out of detection range but stay near the last-seen position.
	q.SetPosition(target, components.Position{X: 220, Y: 0})
	grid.Register(target, components.FactionRed, components.TypeNormal, q.pos[target])

	info, found = r.FindBest(attacker, q.pos[attacker], components.FactionPlayer, 200, 2)
	if !found || info.Entity != target {
		t.Fatalf("expected the memory search to rediscover the target, got %+v found=%v", info, found)
	}
	if info.Visible {
		t.Fatal("expected a memory-search result to be reported as not currently visible")
	}

	// Escape beyond the search radius too: the attempt budget drains and
	// the entry is eventually dropped.
	q.SetPosition(target, components.Position{X: 1500, Y: 0})
	grid.Register(target, components.FactionRed, components.TypeNormal, q.pos[target])

	stillFound := false
	for tick := int64(3); tick < 3+int64(cfg.MaxSearchAttempts)+1; tick++ {
		if _, ok := r.FindBest(attacker, q.pos[attacker], components.FactionPlayer, 200, tick); ok {
			stillFound = true
		}
	}
	if stillFound {
		t.Fatal("expected no target once the remembered position no longer pans out")
	}
	if _, ok := r.Memory().Recall(attacker, target, 3+int64(cfg.MaxSearchAttempts)); ok {
		t.Fatal("expected the memory entry to be dropped after the search budget was exhausted")
	}
}

func TestTargetMemoryExpiresAndCapsSearchAttempts(t *testing.T) {
	m := NewTargetMemory(10, 2)
	ids := testEntities(2)
	observer, target := ids[0], ids[1]

	m.Observe(observer, target, components.Position{X: 5, Y: 5}, 0, true)
	if _, ok := m.Recall(observer, target, 5); !ok {
		t.Fatal("expected memory to still be valid within duration")
	}
	if _, ok := m.Recall(observer, target, 11); ok {
		t.Fatal("expected memory to expire after duration")
	}

	m.Observe(observer, target, components.Position{X: 5, Y: 5}, 0, false)
	if m.RegisterSearchAttempt(observer, target) {
		t.Fatal("first search attempt should not exhaust the budget")
	}
	if !m.RegisterSearchAttempt(observer, target) {
		t.Fatal("second search attempt should exhaust the budget of 2")
	}
	if _, ok := m.Recall(observer, target, 1); ok {
		t.Fatal("expected memory to be discarded once search attempts are exhausted")
	}
}

package systems

import (
	"testing"

	"github.com/pthm-cable/combatcore/components"
)

type fakeHPMutator struct {
	hp map[components.Handle]float32
}

func newFakeHPMutator() *fakeHPMutator {
	return &fakeHPMutator{hp: make(map[components.Handle]float32)}
}

func (m *fakeHPMutator) ApplyDamage(h components.Handle, amount float32) (float32, bool) {
	v := m.hp[h] - amount
	if v < 0 {
		v = 0
	}
	m.hp[h] = v
	return v, v <= 0
}

func TestCombatDealDamageNoopBetweenAllies(t *testing.T) {
	q := newFakeAgentQuery()
	grid := newTestGrid(q)
	factions := NewFactionTable()
	events := NewEventSink()
	hp := newFakeHPMutator()

	ids := testEntities(2)
	a, b := ids[0], ids[1]
	q.add(a, components.FactionPlayer, components.TypeNormal, components.Position{}, components.Stats{HP: 100, MaxHP: 100})
	q.add(b, components.FactionPlayer, components.TypeNormal, components.Position{}, components.Stats{HP: 100, MaxHP: 100})
	hp.hp[b] = 100

	combat := NewCombat(grid, factions, events, q, hp, q, NewPool(events), NewEventScheduler(), nil, ProjectileSpec{})
	combat.DealDamage(a, b, 50)

	if hp.hp[b] != 100 {
		t.Fatalf("expected no damage between allies, got hp %f", hp.hp[b])
	}
	if len(events.Drain()) != 0 {
		t.Fatal("expected no damage_dealt event between allies")
	}
}

func TestCombatDealDamageAppliesAndRecordsHitBetweenEnemies(t *testing.T) {
	q := newFakeAgentQuery()
	grid := newTestGrid(q)
	factions := NewFactionTable()
	events := NewEventSink()
	hp := newFakeHPMutator()

	ids := testEntities(2)
	a, b := ids[0], ids[1]
	q.add(a, components.FactionPlayer, components.TypeNormal, components.Position{}, components.Stats{HP: 100, MaxHP: 100})
	q.add(b, components.FactionRed, components.TypeNormal, components.Position{}, components.Stats{HP: 30, MaxHP: 100})
	hp.hp[b] = 30

	combat := NewCombat(grid, factions, events, q, hp, q, NewPool(events), NewEventScheduler(), nil, ProjectileSpec{})
	combat.DealDamage(a, b, 50)

	if hp.hp[b] != 0 {
		t.Fatalf("expected hp to floor at 0, got %f", hp.hp[b])
	}
	tookDamage, dead := combat.ConsumeHit(b)
	if !tookDamage || !dead {
		t.Fatalf("expected tookDamage=true dead=true, got %v %v", tookDamage, dead)
	}

	if _, dead2 := combat.ConsumeHit(b); dead2 {
		t.Fatal("expected the hit record to be one-shot")
	}

	found := false
	for _, e := range events.Drain() {
		if e.Kind == EventDamageDealt && e.Attacker == a && e.Target == b {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a damage_dealt event")
	}
}

func TestCombatSpawnProjectileAimsAtLiveTargetPosition(t *testing.T) {
	q := newFakeAgentQuery()
	grid := newTestGrid(q)
	factions := NewFactionTable()
	events := NewEventSink()
	hp := newFakeHPMutator()
	pool := NewPool(events)

	ids := testEntities(3)
	owner, target, proj := ids[0], ids[1], ids[2]
	q.add(owner, components.FactionPlayer, components.TypeNormal, components.Position{X: 0, Y: 0}, components.Stats{})
	q.add(target, components.FactionRed, components.TypeNormal, components.Position{X: 100, Y: 0}, components.Stats{})

	pool.RegisterKind("fireball", func(components.Handle, components.Position) {}, func(components.Handle) {})
	pool.Prewarm("fireball", []components.Handle{proj})

	spec := ProjectileSpec{Kind: "fireball", Speed: 20, LifetimeTicks: 60, Damage: 15, Radius: 4}
	combat := NewCombat(grid, factions, events, q, hp, q, pool, NewEventScheduler(), nil, spec)
	combat.SpawnProjectile(owner, target, components.FacingRight, 0, 15)

	found := false
	for _, e := range events.Drain() {
		if e.Kind == EventProjectileSpawn {
			found = true
			if e.Velocity.X <= 0 {
				t.Fatalf("expected the projectile to aim rightward at the target, got velocity %+v", e.Velocity)
			}
		}
	}
	if !found {
		t.Fatal("expected a projectile_spawn event")
	}
}

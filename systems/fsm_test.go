package systems

import (
	"testing"

	"github.com/pthm-cable/combatcore/components"
)

type stubDamageApplier struct {
	dealt      int
	projectile int
}

func (s *stubDamageApplier) DealDamage(attacker, target components.Handle, amount float32) { s.dealt++ }
func (s *stubDamageApplier) SpawnProjectile(owner, target components.Handle, facing components.Facing, tick int64, damage float32) {
	s.projectile++
}

func TestFSMIdleToWalkingToAttacking(t *testing.T) {
	events := NewEventSink()
	sched := NewEventScheduler()
	combat := &stubDamageApplier{}
	fsm := NewAgentFSM(DefaultFSMConfig(), events, sched, nil, combat, nil)

	ids := testEntities(2)
	agent, target := ids[0], ids[1]
	fsm.Register(agent, components.BehaviorMelee, 10)

	fsm.Step(agent, 0, 0, true, false, false, false, target, 1, 0, components.FacingRight)
	if fsm.State(agent) != StateWalking {
		t.Fatalf("expected Walking after movement intent, got %s", fsm.State(agent))
	}

	fsm.Step(agent, 1, 1, false, true, false, false, target, 1, 0, components.FacingRight)
	if fsm.State(agent) != StateAttacking {
		t.Fatalf("expected Attacking after attack intent, got %s", fsm.State(agent))
	}

	sched.Advance(100)
	if combat.dealt != 1 {
		t.Fatalf("expected deal_damage to fire once at the damage frame, got %d", combat.dealt)
	}

	fsm.Step(agent, 100, 2, false, false, false, false, target, 1, 0, components.FacingRight)
	if fsm.State(agent) != StateIdle {
		t.Fatalf("expected Idle once the attack animation finished with no movement, got %s", fsm.State(agent))
	}
}

func TestFSMDamageInterruptsIntoHurtThenRecovers(t *testing.T) {
	events := NewEventSink()
	sched := NewEventScheduler()
	fsm := NewAgentFSM(DefaultFSMConfig(), events, sched, nil, &stubDamageApplier{}, nil)

	ids := testEntities(1)
	agent := ids[0]
	fsm.Register(agent, components.BehaviorMelee, 10)

	fsm.Step(agent, 0, 0, true, false, true, false, components.Handle{}, 1, 0, components.FacingFront)
	if fsm.State(agent) != StateHurt {
		t.Fatalf("expected Hurt on damage, got %s", fsm.State(agent))
	}

	fsm.Step(agent, 100, 1, false, false, false, false, components.Handle{}, 1, 0, components.FacingFront)
	if fsm.State(agent) != StateIdle {
		t.Fatalf("expected Idle once the hurt animation finished, got %s", fsm.State(agent))
	}
}

func TestFSMDeathReleasesLocksAndSchedulesRecycle(t *testing.T) {
	events := NewEventSink()
	sched := NewEventScheduler()
	q := newFakeAgentQuery()
	grid := newTestGrid(q)
	factions := NewFactionTable()
	resolver := NewTargetResolver(grid, factions, q, nil, DefaultResolverConfig())
	pool := NewPool(events)

	ids := testEntities(2)
	agent, target := ids[0], ids[1]
	q.add(agent, components.FactionPlayer, components.TypeNormal, components.Position{}, components.Stats{HP: 100, MaxHP: 100})
	pool.RegisterKind("grunt", func(components.Handle, components.Position) {}, func(components.Handle) {})
	pool.Prewarm("grunt", nil)

	fsm := NewAgentFSM(DefaultFSMConfig(), events, sched, resolver, &stubDamageApplier{}, pool)
	fsm.Register(agent, components.BehaviorMelee, 10)

	fsm.Step(agent, 0, 0, false, false, false, true, target, 1, 0, components.FacingFront)
	if fsm.State(agent) != StateDead {
		t.Fatalf("expected Dead on hp<=0, got %s", fsm.State(agent))
	}

	deathSeen := false
	for _, e := range events.Drain() {
		if e.Kind == EventDeath && e.Handle == agent {
			deathSeen = true
		}
	}
	if !deathSeen {
		t.Fatal("expected a death event")
	}

	if sched.Len() != 1 {
		t.Fatalf("expected the auto-recycle timer to be scheduled, got %d pending events", sched.Len())
	}
}

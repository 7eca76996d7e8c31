package systems

import "github.com/pthm-cable/combatcore/components"

// TargetLock enforces at most one attacker per target for "one_vs_one"
// mode. A lock is released automatically when either side is
// reassigned, and a stale lock (the holder is dead or gone) never
// blocks a new attempt. The bookkeeping uses a bidirectional map so
// release by either handle is O(1).
type TargetLock struct {
	targetToAttacker map[components.Handle]components.Handle
	attackerToTarget map[components.Handle]components.Handle
}

// NewTargetLock returns an empty lock table.
func NewTargetLock() *TargetLock {
	return &TargetLock{
		targetToAttacker: make(map[components.Handle]components.Handle),
		attackerToTarget: make(map[components.Handle]components.Handle),
	}
}

// HolderOf returns the attacker currently locked onto target, if any.
func (l *TargetLock) HolderOf(target components.Handle) (components.Handle, bool) {
	h, ok := l.targetToAttacker[target]
	return h, ok
}

// TargetOf returns the target attacker currently holds, if any.
func (l *TargetLock) TargetOf(attacker components.Handle) (components.Handle, bool) {
	t, ok := l.attackerToTarget[attacker]
	return t, ok
}

// Acquire attempts to lock attacker onto target. It succeeds if the
// target is unlocked, already locked by attacker, or its current holder
// is no longer alive (a stale lock never blocks reassignment). On
// success any prior lock held by attacker is released first.
func (l *TargetLock) Acquire(target, attacker components.Handle, alive AliveLookup) bool {
	if holder, ok := l.targetToAttacker[target]; ok {
		if holder == attacker {
			return true
		}
		if alive != nil && alive.IsAlive(holder) {
			return false
		}
		l.ReleaseAttacker(holder)
	}
	l.ReleaseAttacker(attacker)
	l.targetToAttacker[target] = attacker
	l.attackerToTarget[attacker] = target
	return true
}

// ReleaseTarget drops the lock on target, freeing its attacker too.
func (l *TargetLock) ReleaseTarget(target components.Handle) {
	if attacker, ok := l.targetToAttacker[target]; ok {
		delete(l.targetToAttacker, target)
		delete(l.attackerToTarget, attacker)
	}
}

// ReleaseAttacker drops the lock held by attacker, freeing its target too.
func (l *TargetLock) ReleaseAttacker(attacker components.Handle) {
	if target, ok := l.attackerToTarget[attacker]; ok {
		delete(l.attackerToTarget, attacker)
		delete(l.targetToAttacker, target)
	}
}

// Sweep clears every lock where either side is no longer alive,
// releasing deadlocked pairs a per-query alive check would otherwise
// leave dangling forever: locks never survive the death of either
// participant.
func (l *TargetLock) Sweep(alive AliveLookup) {
	if alive == nil {
		return
	}
	for target, attacker := range l.targetToAttacker {
		if !alive.IsAlive(target) || !alive.IsAlive(attacker) {
			delete(l.targetToAttacker, target)
			delete(l.attackerToTarget, attacker)
		}
	}
}

// Package telemetry records the core's per-tick event stream and window
// stats for offline analysis.
package telemetry

import (
	"github.com/pthm-cable/combatcore/components"
)

// EventType identifies a recorded telemetry event.
type EventType uint8

const (
	EventAttackAttempted EventType = iota
	EventDamageDealt
	EventDeath
	EventPoolRecycle
	EventProjectileSpawn
)

// Event is one CSV-exportable row derived from a systems.Event (or a
// directly recorded attack attempt).
type Event struct {
	Type     EventType `csv:"type"`
	Tick     int64     `csv:"tick"`
	Attacker uint64    `csv:"attacker"`
	Target   uint64    `csv:"target"`
	Amount   float32   `csv:"amount"`
	Faction  uint8     `csv:"faction"`
}

func handleID(h components.Handle) uint64 {
	return uint64(h.ID())
}

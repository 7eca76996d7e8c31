package systems

import "github.com/pthm-cable/combatcore/components"

// EventKind tags a core→host event, one-shot per tick.
type EventKind uint8

const (
	EventAnimationRequest EventKind = iota
	EventDamageDealt
	EventDeath
	EventProjectileSpawn
	EventProjectileDespawn
	EventPoolRecycle
)

// Event is a single core→host notification. Only the fields relevant to
// Kind are populated; the rest are zero.
type Event struct {
	Kind EventKind

	Handle   components.Handle
	State    AgentState
	Facing   components.Facing
	Attacker components.Handle
	Target   components.Handle
	Amount   float32

	ProjectileKind string
	Origin         components.Position
	Velocity       components.Velocity
	OwnerFaction   components.Faction
}

// EventSink collects one tick's worth of core→host events. The driver
// drains it once per tick and hands the batch to the host; nothing in
// the core subsystems consumes its own events.
type EventSink struct {
	events []Event
}

// NewEventSink returns an empty sink.
func NewEventSink() *EventSink { return &EventSink{} }

func (s *EventSink) emit(e Event) { s.events = append(s.events, e) }

// Drain returns and clears the accumulated events.
func (s *EventSink) Drain() []Event {
	out := s.events
	s.events = nil
	return out
}

// Len reports how many events are pending.
func (s *EventSink) Len() int { return len(s.events) }

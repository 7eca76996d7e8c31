package components

// IntentKind enumerates the possible intents a host can publish for a
// manually-controlled agent via SetIntent.
type IntentKind uint8

const (
	IntentNone IntentKind = iota
	IntentAttackTarget
	IntentChaseTarget
	IntentMoveTo
	IntentMarch
	IntentIdle
)

// MarchDirection is the flow-field-driven global direction, in the
// host-facing Intent's wire format.
type MarchDirection uint8

const (
	MarchLeft MarchDirection = iota
	MarchRight
)

// Intent is the host's declared desire for a manually-controlled agent.
// The driver translates it into the systems package's internal Intent
// type, the same shape an AI-controlled agent's brain would have
// published, so the state machine never has to distinguish manual from
// AI agents.
type Intent struct {
	Kind       IntentKind
	Target     Handle
	HasTarget  bool
	MoveTarget Position
	MarchDir   MarchDirection
}

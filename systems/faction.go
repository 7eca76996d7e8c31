package systems

import "github.com/pthm-cable/combatcore/components"

// Relation is the static relationship between two factions.
type Relation uint8

const (
	RelationNeutral Relation = iota
	RelationAlly
	RelationEnemy
)

// FactionTable holds the static ally/enemy/neutral relations between
// factions, registered once at construction. relation(A,B) =
// relation(B,A) for every pair: Set always writes both directions.
type FactionTable struct {
	relations map[components.Faction]map[components.Faction]Relation
	masks     map[components.Faction]uint32
}

// NewFactionTable builds an empty table for the five canonical factions,
// defaulting every distinct pair to Enemy and every faction to itself as
// Ally (an agent never fights its own faction).
func NewFactionTable() *FactionTable {
	t := &FactionTable{
		relations: make(map[components.Faction]map[components.Faction]Relation),
		masks:     make(map[components.Faction]uint32),
	}
	for _, a := range components.AllFactions() {
		t.relations[a] = make(map[components.Faction]Relation)
		for _, b := range components.AllFactions() {
			if a == b {
				t.relations[a][b] = RelationAlly
			} else {
				t.relations[a][b] = RelationEnemy
			}
		}
		t.masks[a] = 1 << uint(a)
	}
	return t
}

// Set records the relation between a and b symmetrically.
func (t *FactionTable) Set(a, b components.Faction, rel Relation) {
	t.relations[a][b] = rel
	t.relations[b][a] = rel
}

// SetPhysicsGroupMask sets the collision-group mask for a faction.
func (t *FactionTable) SetPhysicsGroupMask(f components.Faction, mask uint32) {
	t.masks[f] = mask
}

// PhysicsGroupMask returns the faction's collision-group mask.
func (t *FactionTable) PhysicsGroupMask(f components.Faction) uint32 {
	return t.masks[f]
}

// Relation returns the relation of b as seen by a.
func (t *FactionTable) Relation(a, b components.Faction) Relation {
	if row, ok := t.relations[a]; ok {
		if rel, ok := row[b]; ok {
			return rel
		}
	}
	if a == b {
		return RelationAlly
	}
	return RelationEnemy
}

// IsHostile reports whether a and b are in the Enemy relation.
func (t *FactionTable) IsHostile(a, b components.Faction) bool {
	return t.Relation(a, b) == RelationEnemy
}

// IsAllied reports whether a and b are in the Ally relation.
func (t *FactionTable) IsAllied(a, b components.Faction) bool {
	return t.Relation(a, b) == RelationAlly
}

// Enemies returns every faction hostile to f.
func (t *FactionTable) Enemies(f components.Faction) []components.Faction {
	var out []components.Faction
	for _, other := range components.AllFactions() {
		if t.IsHostile(f, other) {
			out = append(out, other)
		}
	}
	return out
}

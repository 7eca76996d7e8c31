package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// LevelDescriptor is the host-provided level input: per-kind spawn
// populations, grid dimensions, and the flow field's faction pairs.
type LevelDescriptor struct {
	Name           string            `yaml:"name"`
	Kinds          []KindSpawn       `yaml:"kinds"`
	GridWidth      float64           `yaml:"grid_width"`
	GridHeight     float64           `yaml:"grid_height"`
	FlowFieldPairs map[string]string `yaml:"flow_field_pairs"` // attacker faction -> target faction, by name
}

// KindSpawn is one entry of the level descriptor's agent population:
// a kind's initial/max counts, owning faction, attack behavior, and
// spawn points.
type KindSpawn struct {
	AgentKind    string  `yaml:"agent_kind"`
	InitialCount int     `yaml:"initial_count"`
	MaxCount     int     `yaml:"max_count"`
	Faction      string  `yaml:"faction"`
	Behavior     string  `yaml:"behavior"` // "melee" | "ranged"
	SpawnPoints  []Point `yaml:"spawn_points"`
}

// Point is a plain 2D coordinate, used where importing components would
// create an unwanted dependency from config on the ECS layer.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// AgentConfig is one kind's per-agent record, keyed by AgentConfigTable
// under its ID.
type AgentConfig struct {
	ID                string           `yaml:"id"`
	DisplayName       string           `yaml:"display_name"`
	EntityType        string           `yaml:"entity_type,omitempty"` // "normal" (default) | "player" | "boss" | "elite"
	AssetNamePrefix   string           `yaml:"asset_name_prefix"`
	AnimationSpeedFPS float64          `yaml:"animation_speed"`
	AttackDamageFrame int              `yaml:"attack_damage_frame"`
	MaxHP             float64          `yaml:"max_hp"`
	BaseAttack        float64          `yaml:"base_attack"`
	AttackRange       float64          `yaml:"attack_range"`
	AttackInterval    float64          `yaml:"attack_interval"`
	DetectionRange    float64          `yaml:"detection_range"`
	PursuitRange      float64          `yaml:"pursuit_range"`
	MoveSpeed         float64          `yaml:"move_speed"`
	ColliderSize      float64          `yaml:"collider_size"`
	ProjectileID      string           `yaml:"projectile_id,omitempty"`
	ProjectileOffsets map[string]Point `yaml:"projectile_offsets,omitempty"` // facing name -> offset
	Skills            []string         `yaml:"skills,omitempty"`
}

// AgentConfigTable indexes AgentConfig by id.
type AgentConfigTable struct {
	Agents map[string]AgentConfig `yaml:"agents"`
}

// Get looks up an agent config by kind id.
func (t AgentConfigTable) Get(id string) (AgentConfig, bool) {
	a, ok := t.Agents[id]
	return a, ok
}

// LoadAgentConfigTable reads a YAML agent config table from path.
func LoadAgentConfigTable(path string) (AgentConfigTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AgentConfigTable{}, err
	}
	var t AgentConfigTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return AgentConfigTable{}, err
	}
	return t, nil
}

// LoadLevelDescriptor reads a YAML level descriptor from path.
func LoadLevelDescriptor(path string) (LevelDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LevelDescriptor{}, err
	}
	var l LevelDescriptor
	if err := yaml.Unmarshal(data, &l); err != nil {
		return LevelDescriptor{}, err
	}
	return l, nil
}

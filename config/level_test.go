package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadLevelDescriptor(t *testing.T) {
	yamlBody := `
name: test-arena
grid_width: 800
grid_height: 450
flow_field_pairs:
  Red: Player
kinds:
  - agent_kind: grunt
    initial_count: 2
    max_count: 10
    faction: Red
    behavior: melee
    spawn_points:
      - {x: 100, y: 100}
      - {x: 100, y: 200}
`
	path := filepath.Join(t.TempDir(), "level.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0644); err != nil {
		t.Fatalf("failed to write test fixture: %v", err)
	}

	desc, err := LoadLevelDescriptor(path)
	if err != nil {
		t.Fatalf("LoadLevelDescriptor failed: %v", err)
	}
	if desc.Name != "test-arena" {
		t.Fatalf("expected name=test-arena, got %q", desc.Name)
	}
	if len(desc.Kinds) != 1 || desc.Kinds[0].AgentKind != "grunt" {
		t.Fatalf("expected one kind %q, got %+v", "grunt", desc.Kinds)
	}
	if len(desc.Kinds[0].SpawnPoints) != 2 {
		t.Fatalf("expected 2 spawn points, got %d", len(desc.Kinds[0].SpawnPoints))
	}
	if desc.FlowFieldPairs["Red"] != "Player" {
		t.Fatalf("expected flow_field_pairs[Red]=Player, got %q", desc.FlowFieldPairs["Red"])
	}
}

func TestLoadAgentConfigTable(t *testing.T) {
	yamlBody := `
agents:
  grunt:
    id: grunt
    display_name: Grunt
    entity_type: normal
    max_hp: 100
    base_attack: 10
    attack_range: 32
    attack_interval: 1.0
    detection_range: 200
    pursuit_range: 300
    move_speed: 90
    collider_size: 24
  boss:
    id: boss
    display_name: Boss
    entity_type: boss
    max_hp: 2000
    base_attack: 40
    attack_range: 48
    attack_interval: 1.5
    detection_range: 400
    pursuit_range: 600
    move_speed: 60
    collider_size: 48
`
	path := filepath.Join(t.TempDir(), "agents.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0644); err != nil {
		t.Fatalf("failed to write test fixture: %v", err)
	}

	table, err := LoadAgentConfigTable(path)
	if err != nil {
		t.Fatalf("LoadAgentConfigTable failed: %v", err)
	}

	grunt, ok := table.Get("grunt")
	if !ok {
		t.Fatal("expected to find grunt in table")
	}
	if grunt.MaxHP != 100 {
		t.Fatalf("expected grunt.max_hp=100, got %v", grunt.MaxHP)
	}
	if grunt.EntityType != "normal" {
		t.Fatalf("expected grunt.entity_type=normal, got %q", grunt.EntityType)
	}

	boss, ok := table.Get("boss")
	if !ok {
		t.Fatal("expected to find boss in table")
	}
	if boss.EntityType != "boss" {
		t.Fatalf("expected boss.entity_type=boss, got %q", boss.EntityType)
	}

	if _, ok := table.Get("nonexistent"); ok {
		t.Fatal("expected Get(nonexistent) to report not-found")
	}
}

// Package config provides configuration loading and access for the
// combat simulation core: embedded defaults overridable by a YAML file.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds every enumerated configuration knob, one section per
// subsystem.
type Config struct {
	SpatialGrid    SpatialGridConfig    `yaml:"spatial_grid"`
	TargetResolver TargetResolverConfig `yaml:"target_resolver"`
	Pathfinder     PathfinderConfig     `yaml:"pathfinder"`
	ORCA           ORCAConfig           `yaml:"orca"`
	StateMachine   StateMachineConfig   `yaml:"state_machine"`
	Brain          BrainConfig          `yaml:"brain"`
	Pool           PoolConfig           `yaml:"pool"`
	Projectile     ProjectileConfig     `yaml:"projectile"`

	// Derived values computed after loading.
	Derived DerivedConfig `yaml:"-"`
}

// SpatialGridConfig selects and sizes a Grid variant.
type SpatialGridConfig struct {
	Variant          string  `yaml:"variant"` // "bucket2d", "nx3", "1d"
	CellSize         float64 `yaml:"cell_size"`
	UpdateIntervalMS float64 `yaml:"update_interval_ms"`
	Cols             int     `yaml:"cols"`
	Rows             int     `yaml:"rows"`
	WorldW           float64 `yaml:"world_w"`
	WorldH           float64 `yaml:"world_h"`
}

// TargetResolverConfig mirrors systems.ResolverConfig in yaml-loadable form.
type TargetResolverConfig struct {
	MemoryDurationTicks     int64   `yaml:"memory_duration_ticks"`
	MaxLineOfSightDistance  float64 `yaml:"max_line_of_sight_distance"`
	SearchRadius            float64 `yaml:"search_radius"`
	MaxSearchAttempts       int     `yaml:"max_search_attempts"`
	CombatDetectionRange    float64 `yaml:"combat_detection_range"`
	CombatPriorityPenalty   float64 `yaml:"combat_priority_penalty"`
	LockedPairPenalty       float64 `yaml:"locked_pair_penalty"`
	SectorCrowdingThreshold int     `yaml:"sector_crowding_threshold"`
	SectorCrowdingPenalty   float64 `yaml:"sector_crowding_penalty"`
	SurroundBonus           float64 `yaml:"surround_bonus"`
	AlliesBlockLOS          bool    `yaml:"allies_block_los"`
	EnemiesBlockLOS         bool    `yaml:"enemies_block_los"`
	EnableOneVsOne          bool    `yaml:"enable_one_vs_one"`
	EnableSurround          bool    `yaml:"enable_surround"`
	LOSCacheTimeoutTicks    int64   `yaml:"los_cache_timeout_ticks"`
}

// PathfinderConfig holds the A*/NavGrid/Scheduler knobs.
type PathfinderConfig struct {
	GridSize              float64 `yaml:"grid_size"`
	MapW                  float64 `yaml:"map_w"`
	MapH                  float64 `yaml:"map_h"`
	AllowDiagonal         bool    `yaml:"allow_diagonal"`
	PathCacheTimeTicks    int64   `yaml:"path_cache_time_ticks"`
	MaxCalcTimePerFrameMS float64 `yaml:"max_calc_time_per_frame_ms"`
	EnableSmoothing       bool    `yaml:"enable_smoothing"`
	RequestTimeoutTicks   int64   `yaml:"request_timeout_ticks"`
	MaxSolvesPerTick      int     `yaml:"max_solves_per_tick"`
}

// ORCAConfig mirrors systems.ORCAConfig in yaml-loadable form.
type ORCAConfig struct {
	NeighborDist     float64 `yaml:"neighbor_dist"`
	TimeHorizon      float64 `yaml:"time_horizon"`
	MaxIterations    int     `yaml:"max_iterations"`
	ConvergenceTol   float64 `yaml:"convergence_tolerance"`
	ResistanceFactor float64 `yaml:"resistance_factor"`
	PassiveBoost     float64 `yaml:"passive_boost"`
	UpdateHz         float64 `yaml:"update_hz"`
}

// StateMachineConfig mirrors systems.FSMConfig in yaml-loadable form.
type StateMachineConfig struct {
	AutoRecycleDelayTicks int64   `yaml:"auto_recycle_delay_ticks"`
	AttackDamageFrame     int     `yaml:"attack_damage_frame"`
	AnimationSpeedFPS     float64 `yaml:"animation_speed_fps"`
	HurtAnimTicks         int64   `yaml:"hurt_anim_ticks"`
	AttackAnimTicks       int64   `yaml:"attack_anim_ticks"`
}

// BrainConfig mirrors systems.BrainConfig in yaml-loadable form.
type BrainConfig struct {
	DecideIntervalTicks int64 `yaml:"decide_interval_ticks"`
	IntentValidityTicks int64 `yaml:"intent_validity_ticks"`
	CombatTimeoutTicks  int64 `yaml:"combat_timeout_ticks"`
}

// PoolConfig holds per-kind pre-warm counts, keyed by agent_kind /
// projectile_id from the level descriptor.
type PoolConfig struct {
	InitialCounts map[string]int `yaml:"initial_counts"`
	MaxCounts     map[string]int `yaml:"max_counts"`
}

// ProjectileConfig mirrors systems.ProjectileSpec in yaml-loadable form.
// Every ranged kind in a level shares this one projectile archetype's
// kinetics (only the muzzle offset varies per kind); each firing agent
// still deals its own configured base_attack as damage.
type ProjectileConfig struct {
	Kind          string  `yaml:"kind"`
	Speed         float64 `yaml:"speed"`
	LifetimeTicks int64   `yaml:"lifetime_ticks"`
	Radius        float64 `yaml:"radius"`
}

// DerivedConfig holds values computed after loading rather than read
// directly from YAML.
type DerivedConfig struct {
	TickRateHz    float64
	DT            float32
	ORCAIntervalS float64
}

func (c *Config) computeDerived() {
	c.Derived.TickRateHz = 60
	c.Derived.DT = float32(1.0 / c.Derived.TickRateHz)
	if c.ORCA.UpdateHz > 0 {
		c.Derived.ORCAIntervalS = 1.0 / c.ORCA.UpdateHz
	}
}

var global *Config

// Init loads configuration from path, or uses embedded defaults if path
// is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	cfg.computeDerived()
	return cfg, nil
}

// WriteYAML saves cfg to path, for experiment reproducibility.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

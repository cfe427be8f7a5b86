package game

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ErrInvalidConfig is returned by Validate and the loaders.
var ErrInvalidConfig = errors.New("invalid config")

// MaxSlots bounds both slot tables. Collision resolution tracks hits in
// 64-bit masks.
const MaxSlots = 64

// Config holds the static simulation parameters. It is supplied once at
// construction and must not be mutated while a simulation uses it.
type Config struct {
	ScreenWidth  int32 `toml:"screen_width"`
	ScreenHeight int32 `toml:"screen_height"`
	// Scale is only used by renderers.
	Scale int32 `toml:"scale"`

	CannonX      [NumCannons]int32 `toml:"cannon_x"`
	CannonY      int32             `toml:"cannon_y"`
	CannonWidth  int32             `toml:"cannon_width"`
	CannonHeight int32             `toml:"cannon_height"`

	LaneY [NumLanes]int32 `toml:"lane_y"`

	EnemyWidth  int32 `toml:"enemy_width"`
	EnemyHeight int32 `toml:"enemy_height"`

	BulletWidth  int32 `toml:"bullet_width"`
	BulletHeight int32 `toml:"bullet_height"`
	BulletSpeed  int32 `toml:"bullet_speed"`

	MaxBullets int32 `toml:"max_bullets"`
	MaxEnemies int32 `toml:"max_enemies"`

	FireCooldownFrames  int32 `toml:"fire_cooldown_frames"`
	EnemySpawnMinFrames int32 `toml:"enemy_spawn_min_frames"`
	EnemySpawnMaxFrames int32 `toml:"enemy_spawn_max_frames"`
	WaveEndCooldown     int32 `toml:"wave_end_cooldown"`
	WaveStartEnemyCount int32 `toml:"wave_start_enemy_count"`
	InitialWave         int32 `toml:"initial_wave"`

	Archetypes []Profile `toml:"archetypes"`
}

// DefaultConfig returns the arcade defaults.
func DefaultConfig() *Config {
	return &Config{
		ScreenWidth:  160,
		ScreenHeight: 250,
		Scale:        3,

		CannonX:      [NumCannons]int32{0, 72, 152},
		CannonY:      160,
		CannonWidth:  8,
		CannonHeight: 8,

		LaneY: [NumLanes]int32{60, 80, 100, 120},

		EnemyWidth:  15,
		EnemyHeight: 8,

		BulletWidth:  1,
		BulletHeight: 1,
		BulletSpeed:  3,

		MaxBullets: 2,
		MaxEnemies: 20,

		FireCooldownFrames:  9,
		EnemySpawnMinFrames: 5,
		EnemySpawnMaxFrames: 50,
		WaveEndCooldown:     150,
		WaveStartEnemyCount: 10,
		InitialWave:         0,

		Archetypes: DefaultArchetypes(),
	}
}

// LoadConfig reads a TOML file layered over DefaultConfig and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the config used by the binaries: DefaultConfig, optionally
// layered with a TOML file, optionally with its archetype table replaced by
// a YAML file. Empty paths are skipped.
func Load(configPath, archetypesPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath != "" {
		c, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if archetypesPath != "" {
		table, err := LoadArchetypes(archetypesPath)
		if err != nil {
			return nil, err
		}
		cfg.Archetypes = table
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("archetypes %s: %w", archetypesPath, err)
		}
	}
	return cfg, nil
}

// Validate checks that cfg describes a playable arena.
func (c *Config) Validate() error {
	switch {
	case c.ScreenWidth <= 0 || c.ScreenHeight <= 0:
		return fmt.Errorf("%w: screen %dx%d", ErrInvalidConfig, c.ScreenWidth, c.ScreenHeight)
	case c.EnemyWidth <= 0 || c.EnemyHeight <= 0:
		return fmt.Errorf("%w: enemy size %dx%d", ErrInvalidConfig, c.EnemyWidth, c.EnemyHeight)
	case c.BulletWidth <= 0 || c.BulletHeight <= 0:
		return fmt.Errorf("%w: bullet size %dx%d", ErrInvalidConfig, c.BulletWidth, c.BulletHeight)
	case c.BulletSpeed < 1:
		return fmt.Errorf("%w: bullet_speed %d", ErrInvalidConfig, c.BulletSpeed)
	case c.MaxBullets <= 0 || c.MaxEnemies <= 0 || c.MaxBullets > MaxSlots || c.MaxEnemies > MaxSlots:
		return fmt.Errorf("%w: max_bullets=%d max_enemies=%d (1..%d)", ErrInvalidConfig, c.MaxBullets, c.MaxEnemies, MaxSlots)
	case c.FireCooldownFrames < 0 || c.WaveEndCooldown < 0:
		return fmt.Errorf("%w: negative cooldown", ErrInvalidConfig)
	case c.EnemySpawnMinFrames < 0 || c.EnemySpawnMaxFrames < c.EnemySpawnMinFrames:
		return fmt.Errorf("%w: spawn frames [%d,%d]", ErrInvalidConfig, c.EnemySpawnMinFrames, c.EnemySpawnMaxFrames)
	case c.WaveStartEnemyCount < 0 || c.InitialWave < 0:
		return fmt.Errorf("%w: wave_start_enemy_count=%d initial_wave=%d", ErrInvalidConfig, c.WaveStartEnemyCount, c.InitialWave)
	case len(c.Archetypes) == 0:
		return fmt.Errorf("%w: no archetypes", ErrInvalidConfig)
	}
	for i, p := range c.Archetypes {
		if p.ID != Archetype(i) {
			return fmt.Errorf("%w: archetype at index %d has id %d", ErrInvalidConfig, i, p.ID)
		}
		if p.Width < 0 || p.Height < 0 || p.MaxSpeed < 0 {
			return fmt.Errorf("%w: archetype %q has negative dimensions", ErrInvalidConfig, p.Name)
		}
	}
	return nil
}

// QuotaForWave is the number of enemies spawned during wave n.
func (c *Config) QuotaForWave(n int32) int32 {
	return c.WaveStartEnemyCount + 2*n
}

package game

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Archetype is an enemy type id. It indexes Config.Archetypes.
type Archetype int32

const (
	// ArchetypeRaider is the only archetype the spawner produces today.
	ArchetypeRaider Archetype = 0
)

// Profile describes an enemy archetype. Zero Width/Height inherit the
// config-wide enemy size; zero MaxSpeed means the per-wave cap (wave+1).
type Profile struct {
	ID       Archetype `yaml:"id" toml:"id"`
	Name     string    `yaml:"name" toml:"name"`
	Width    int32     `yaml:"width" toml:"width"`
	Height   int32     `yaml:"height" toml:"height"`
	Points   int32     `yaml:"points" toml:"points"`
	MaxSpeed int32     `yaml:"max_speed" toml:"max_speed"`
}

type archetypeFile struct {
	Archetypes []Profile `yaml:"archetypes"`
}

// DefaultArchetypes returns the built-in archetype table.
func DefaultArchetypes() []Profile {
	return []Profile{
		{ID: ArchetypeRaider, Name: "raider", Points: 100},
	}
}

// LoadArchetypes loads an archetype table from a YAML file. Ids must be
// dense and start at 0 so that the enemy Type field can index the table.
func LoadArchetypes(path string) ([]Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read archetypes: %w", err)
	}
	var f archetypeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse archetypes: %w", err)
	}
	if len(f.Archetypes) == 0 {
		return nil, fmt.Errorf("parse archetypes: %w: empty table", ErrInvalidConfig)
	}
	out := make([]Profile, len(f.Archetypes))
	seen := make([]bool, len(f.Archetypes))
	for _, p := range f.Archetypes {
		if p.ID < 0 || int(p.ID) >= len(out) || seen[p.ID] {
			return nil, fmt.Errorf("parse archetypes: %w: id %d out of range or duplicated", ErrInvalidConfig, p.ID)
		}
		seen[p.ID] = true
		out[p.ID] = p
	}
	return out, nil
}

// EnemySize returns the collision box of archetype t.
func (c *Config) EnemySize(t Archetype) (w, h int32) {
	w, h = c.EnemyWidth, c.EnemyHeight
	if t >= 0 && int(t) < len(c.Archetypes) {
		p := &c.Archetypes[t]
		if p.Width > 0 {
			w = p.Width
		}
		if p.Height > 0 {
			h = p.Height
		}
	}
	return w, h
}

// Points returns the score awarded for destroying archetype t.
func (c *Config) Points(t Archetype) int32 {
	if t >= 0 && int(t) < len(c.Archetypes) {
		return c.Archetypes[t].Points
	}
	return 0
}

// SpeedCap returns the maximum spawn speed for archetype t during wave.
func (c *Config) SpeedCap(t Archetype, wave int32) int32 {
	limit := wave + 1
	if t >= 0 && int(t) < len(c.Archetypes) {
		if m := c.Archetypes[t].MaxSpeed; m > 0 && m < limit {
			limit = m
		}
	}
	return limit
}

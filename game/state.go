// Package game defines the core state types for the Atlantis simulation.
//
// Entities live in fixed-size slot tables: a row is reused once its occupant
// is deactivated, so a step never grows or shrinks a table. The state is
// designed to be cheaply clonable for search and replay.
package game

const (
	NumLanes   = 4
	NumCannons = 3

	CannonLeft   = 0
	CannonMiddle = 1
	CannonRight  = 2

	// NoPlasma is the PlasmaX sentinel when no enemy can project a beam.
	NoPlasma = -1
)

// Enemy is one row of the enemy table. When Active is false the remaining
// fields are stale and must be ignored.
type Enemy struct {
	X      int32     `msgpack:"x" json:"x"`
	Y      int32     `msgpack:"y" json:"y"`
	DX     int32     `msgpack:"dx" json:"dx"`
	Type   Archetype `msgpack:"type" json:"type"`
	Lane   int32     `msgpack:"lane" json:"lane"`
	Active bool      `msgpack:"active" json:"active"`
}

// Bullet is one row of the bullet table. Liveness is tracked separately in
// State.BulletsAlive.
type Bullet struct {
	X  int32 `msgpack:"x" json:"x"`
	Y  int32 `msgpack:"y" json:"y"`
	DX int32 `msgpack:"dx" json:"dx"`
	DY int32 `msgpack:"dy" json:"dy"`
}

// State is the complete simulation snapshot for one frame.
type State struct {
	Score      int32 `msgpack:"score" json:"score"`
	ScoreSpent int32 `msgpack:"score_spent" json:"score_spent"`
	Wave       int32 `msgpack:"wave" json:"wave"`

	Enemies      []Enemy  `msgpack:"enemies" json:"enemies"`
	Bullets      []Bullet `msgpack:"bullets" json:"bullets"`
	BulletsAlive []bool   `msgpack:"bullets_alive" json:"bullets_alive"`

	FireCooldown    int32 `msgpack:"fire_cooldown" json:"fire_cooldown"`
	FireButtonPrev  bool  `msgpack:"fire_button_prev" json:"fire_button_prev"`
	EnemySpawnTimer int32 `msgpack:"enemy_spawn_timer" json:"enemy_spawn_timer"`

	LanesFree    [NumLanes]bool   `msgpack:"lanes_free" json:"lanes_free"`
	CannonsAlive [NumCannons]bool `msgpack:"cannons_alive" json:"cannons_alive"`

	// WaveRemaining is the number of enemies still to be spawned this wave.
	WaveRemaining int32 `msgpack:"wave_remaining" json:"wave_remaining"`
	// WaveEndCooldown > 0 means the simulation is paused between waves.
	WaveEndCooldown int32 `msgpack:"wave_end_cooldown" json:"wave_end_cooldown"`

	PlasmaX       int32  `msgpack:"plasma_x" json:"plasma_x"`
	PlasmaAllowed []bool `msgpack:"plasma_allowed" json:"plasma_allowed"`

	RNG RNG `msgpack:"rng" json:"rng"`

	Frame int32 `msgpack:"frame" json:"frame"`
	Kills int32 `msgpack:"kills" json:"kills"`
}

// NewState allocates an empty state with tables sized for cfg.
func NewState(cfg *Config) *State {
	s := &State{
		Enemies:       make([]Enemy, cfg.MaxEnemies),
		Bullets:       make([]Bullet, cfg.MaxBullets),
		BulletsAlive:  make([]bool, cfg.MaxBullets),
		PlasmaAllowed: make([]bool, cfg.MaxEnemies),
		PlasmaX:       NoPlasma,
	}
	for i := range s.LanesFree {
		s.LanesFree[i] = true
	}
	for i := range s.CannonsAlive {
		s.CannonsAlive[i] = true
	}
	for i := range s.PlasmaAllowed {
		s.PlasmaAllowed[i] = true
	}
	return s
}

// Clone performs a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Enemies = append([]Enemy(nil), s.Enemies...)
	out.Bullets = append([]Bullet(nil), s.Bullets...)
	out.BulletsAlive = append([]bool(nil), s.BulletsAlive...)
	out.PlasmaAllowed = append([]bool(nil), s.PlasmaAllowed...)
	return &out
}

// CopyFrom overwrites s with src, reusing s's tables when they are large
// enough. It is the allocation-free counterpart of Clone for hot loops.
func (s *State) CopyFrom(src *State) {
	enemies, bullets, alive, allowed := s.Enemies, s.Bullets, s.BulletsAlive, s.PlasmaAllowed
	*s = *src
	s.Enemies = append(enemies[:0], src.Enemies...)
	s.Bullets = append(bullets[:0], src.Bullets...)
	s.BulletsAlive = append(alive[:0], src.BulletsAlive...)
	s.PlasmaAllowed = append(allowed[:0], src.PlasmaAllowed...)
}

// ActiveEnemies counts active enemy slots.
func (s *State) ActiveEnemies() int {
	n := 0
	for i := range s.Enemies {
		if s.Enemies[i].Active {
			n++
		}
	}
	return n
}

// AliveBullets counts live bullet slots.
func (s *State) AliveBullets() int {
	n := 0
	for _, a := range s.BulletsAlive {
		if a {
			n++
		}
	}
	return n
}

// AliveCannons counts cannons that have not been destroyed.
func (s *State) AliveCannons() int {
	n := 0
	for _, a := range s.CannonsAlive {
		if a {
			n++
		}
	}
	return n
}

// Paused reports whether the simulation is in the between-wave pause.
func (s *State) Paused() bool {
	return s.WaveEndCooldown > 0
}

package convert

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/brensch/atlantis/game"
)

// Feature grid: the default 160x250 screen quantised into 4x10 pixel cells.
const (
	Width         = 40
	Height        = 25
	Channels      = 10
	BytesPerFloat = 4
	BufferSize    = Channels * Width * Height * BytesPerFloat
	FloatSize     = Channels * Width * Height
)

// Channel layout (C,H,W):
// 0: right-moving enemies
// 1: left-moving enemies
// 2: enemy speed, |dx| / speedNorm, on enemy cells
// 3: armed terminal-lane enemies
// 4: bullets
// 5: live cannons
// 6: fire cooldown plane, cooldown / FireCooldownFrames
// 7: fire latch plane
// 8: wave quota plane, remaining / Q(wave)
// 9: plasma column
const (
	ChanEnemyRight = iota
	ChanEnemyLeft
	ChanEnemySpeed
	ChanArmed
	ChanBullets
	ChanCannons
	ChanCooldown
	ChanFireLatch
	ChanQuota
	ChanPlasma
)

const speedNorm = 8

var bufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, BufferSize)
		return &b
	},
}

var floatPool = sync.Pool{
	New: func() interface{} {
		b := make([]float32, FloatSize)
		return &b
	},
}

// GetBuffer returns a buffer from the pool.
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer returns a buffer to the pool.
func PutBuffer(b *[]byte) {
	bufferPool.Put(b)
}

func GetFloatBuffer() *[]float32 {
	return floatPool.Get().(*[]float32)
}

func PutFloatBuffer(b *[]float32) {
	floatPool.Put(b)
}

// StateToFloat32 encodes the state into a pooled float32 slice suitable for
// ONNX input. Output shape: [Channels, Height, Width].
// Caller must return it to the pool using PutFloatBuffer.
func StateToFloat32(cfg *game.Config, s *game.State) *[]float32 {
	dataPtr := GetFloatBuffer()
	Encode(cfg, s, *dataPtr)
	return dataPtr
}

// Encode writes the feature planes for s into data, which must hold
// FloatSize values.
func Encode(cfg *game.Config, s *game.State, data []float32) {
	clear(data[:FloatSize])

	cellX := func(x int32) int { return int(int64(x) * Width / int64(cfg.ScreenWidth)) }
	cellY := func(y int32) int { return int(int64(y) * Height / int64(cfg.ScreenHeight)) }
	set := func(c, x, y int, val float32) {
		if x < 0 || x >= Width || y < 0 || y >= Height {
			return
		}
		data[c*Height*Width+y*Width+x] = val
	}
	plane := func(c int, val float32) {
		start := c * Height * Width
		for i := start; i < start+Height*Width; i++ {
			data[i] = val
		}
	}
	box := func(c int, x, y, w, h int32, val float32) {
		x0, x1 := cellX(max(x, 0)), cellX(min(x+w, cfg.ScreenWidth)-1)
		y0, y1 := cellY(max(y, 0)), cellY(min(y+h, cfg.ScreenHeight)-1)
		for cy := y0; cy <= y1; cy++ {
			for cx := x0; cx <= x1; cx++ {
				set(c, cx, cy, val)
			}
		}
	}

	for i := range s.Enemies {
		e := &s.Enemies[i]
		if !e.Active {
			continue
		}
		w, h := cfg.EnemySize(e.Type)
		if e.X+w <= 0 || e.X >= cfg.ScreenWidth {
			continue
		}
		dir, speed := ChanEnemyRight, e.DX
		if e.DX < 0 {
			dir, speed = ChanEnemyLeft, -e.DX
		}
		box(dir, e.X, e.Y, w, h, 1)
		box(ChanEnemySpeed, e.X, e.Y, w, h, min(float32(speed)/speedNorm, 1))
		if e.Lane == game.NumLanes-1 && s.PlasmaAllowed[i] {
			box(ChanArmed, e.X, e.Y, w, h, 1)
		}
	}

	for i, alive := range s.BulletsAlive {
		if alive {
			set(ChanBullets, cellX(s.Bullets[i].X), cellY(s.Bullets[i].Y), 1)
		}
	}

	for c := 0; c < game.NumCannons; c++ {
		if s.CannonsAlive[c] {
			box(ChanCannons, cfg.CannonX[c], cfg.CannonY, cfg.CannonWidth, cfg.CannonHeight, 1)
		}
	}

	if cfg.FireCooldownFrames > 0 {
		plane(ChanCooldown, float32(s.FireCooldown)/float32(cfg.FireCooldownFrames))
	}
	if s.FireButtonPrev {
		plane(ChanFireLatch, 1)
	}
	if q := cfg.QuotaForWave(s.Wave); q > 0 {
		plane(ChanQuota, float32(s.WaveRemaining)/float32(q))
	}

	if s.PlasmaX >= 0 && s.PlasmaX < cfg.ScreenWidth {
		px := cellX(s.PlasmaX)
		for y := cellY(cfg.LaneY[game.NumLanes-1]); y <= cellY(cfg.CannonY); y++ {
			set(ChanPlasma, px, y, 1)
		}
	}
}

// StateToBytes is StateToFloat32 as little-endian float32 bytes, the layout
// stored in training rows. Caller must return it using PutBuffer.
func StateToBytes(cfg *game.Config, s *game.State) *[]byte {
	floatsPtr := StateToFloat32(cfg, s)
	defer PutFloatBuffer(floatsPtr)

	dataPtr := GetBuffer()
	data := *dataPtr
	for i, v := range *floatsPtr {
		binary.LittleEndian.PutUint32(data[i*BytesPerFloat:], math.Float32bits(v))
	}
	return dataPtr
}

// BytesToFloat32 decodes a StateToBytes buffer.
func BytesToFloat32(b []byte, out []float32) {
	n := min(len(b)/BytesPerFloat, len(out))
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*BytesPerFloat:]))
	}
}

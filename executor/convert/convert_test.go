package convert

import (
	"testing"

	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/rules"
)

func at(data []float32, c, x, y int) float32 {
	return data[c*Height*Width+y*Width+x]
}

func TestEncode_Entities(t *testing.T) {
	cfg := game.DefaultConfig()
	s := rules.Reset(cfg, 1)
	s.Enemies[0] = game.Enemy{X: 40, Y: cfg.LaneY[3], DX: -2, Lane: 3, Active: true}
	s.Bullets[1] = game.Bullet{X: 100, Y: 50, DY: -3}
	s.BulletsAlive[1] = true
	s.CannonsAlive[game.CannonLeft] = false
	s.PlasmaX = 47

	ptr := StateToFloat32(cfg, s)
	defer PutFloatBuffer(ptr)
	data := *ptr

	// x=40 -> cell 10, y=120 -> cell 12.
	if v := at(data, ChanEnemyLeft, 10, 12); v != 1 {
		t.Fatalf("left enemy plane=%v want=1", v)
	}
	if v := at(data, ChanEnemyRight, 10, 12); v != 0 {
		t.Fatalf("right enemy plane=%v want=0", v)
	}
	if v := at(data, ChanEnemySpeed, 10, 12); v != 2.0/speedNorm {
		t.Fatalf("speed plane=%v want=%v", v, 2.0/speedNorm)
	}
	if v := at(data, ChanArmed, 10, 12); v != 1 {
		t.Fatalf("armed plane=%v want=1", v)
	}
	if v := at(data, ChanBullets, 25, 5); v != 1 {
		t.Fatalf("bullet plane=%v want=1", v)
	}
	if v := at(data, ChanCannons, 0, 16); v != 0 {
		t.Fatalf("dead cannon encoded")
	}
	if v := at(data, ChanCannons, 18, 16); v != 1 {
		t.Fatalf("middle cannon plane=%v want=1", v)
	}
	if v := at(data, ChanPlasma, 11, 14); v != 1 {
		t.Fatalf("plasma plane=%v want=1", v)
	}
	if v := at(data, ChanQuota, 0, 0); v != 1 {
		t.Fatalf("quota plane=%v want=1 at wave start", v)
	}
}

func TestEncode_ClearsPooledBuffer(t *testing.T) {
	cfg := game.DefaultConfig()
	busy := rules.Reset(cfg, 1)
	busy.FireButtonPrev = true
	busy.Enemies[0] = game.Enemy{X: 60, Y: cfg.LaneY[0], DX: 1, Active: true}

	data := make([]float32, FloatSize)
	Encode(cfg, busy, data)
	Encode(cfg, rules.Reset(cfg, 1), data)

	if v := at(data, ChanFireLatch, 3, 3); v != 0 {
		t.Fatalf("stale latch plane=%v", v)
	}
	if v := at(data, ChanEnemyRight, 15, 6); v != 0 {
		t.Fatalf("stale enemy plane=%v", v)
	}
}

func TestStateToBytes_RoundTrip(t *testing.T) {
	cfg := game.DefaultConfig()
	s := rules.Reset(cfg, 3)
	for i := 0; i < 200; i++ {
		rules.StepInPlace(cfg, s, game.Action(i%game.NumActions))
	}

	fptr := StateToFloat32(cfg, s)
	defer PutFloatBuffer(fptr)
	bptr := StateToBytes(cfg, s)
	defer PutBuffer(bptr)

	decoded := make([]float32, FloatSize)
	BytesToFloat32(*bptr, decoded)
	for i, v := range *fptr {
		if decoded[i] != v {
			t.Fatalf("index %d: %v want=%v", i, decoded[i], v)
		}
	}
}

func BenchmarkStateToFloat32(b *testing.B) {
	cfg := game.DefaultConfig()
	s := rules.Reset(cfg, 1)
	for i := 0; i < 500; i++ {
		rules.StepInPlace(cfg, s, game.Action(i%game.NumActions))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ptr := StateToFloat32(cfg, s)
		PutFloatBuffer(ptr)
	}
}

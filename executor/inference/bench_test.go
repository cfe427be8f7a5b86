package inference

import (
	"os"
	"testing"

	"github.com/brensch/atlantis/executor/convert"
	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/rules"
)

func modelPath(tb testing.TB) string {
	tb.Helper()
	candidates := []string{
		"../../models/atlantis_net.onnx",
		"../../models/atlantis_net_fp16_f32io.onnx",
	}
	if p := os.Getenv("ATLANTIS_BENCH_ONNX_MODEL"); p != "" {
		candidates = append([]string{p}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	tb.Skip("ONNX model not found in models/; skipping")
	return ""
}

func playedStates(n int) (*game.Config, []*game.State) {
	cfg := game.DefaultConfig()
	states := make([]*game.State, 0, n)
	s := rules.Reset(cfg, 1)
	for i := 0; len(states) < n; i++ {
		rules.StepInPlace(cfg, s, game.Action(i%game.NumActions))
		if rules.IsGameOver(s) {
			s = rules.Reset(cfg, uint64(i))
		}
		states = append(states, s.Clone())
	}
	return cfg, states
}

func TestPool_Empty(t *testing.T) {
	p := &OnnxPool{}
	cfg := game.DefaultConfig()
	if _, _, err := p.Predict(cfg, rules.Reset(cfg, 1)); err == nil {
		t.Fatalf("expected error from empty pool")
	}
	if st := p.Stats(); st.TotalBatches != 0 || st.AvgBatchSize != 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestOnnxClient_Predict(t *testing.T) {
	path := modelPath(t)
	client, err := NewOnnxClientWithConfig(path, OnnxClientConfig{BatchSize: 4, DisableCUDA: true})
	if err != nil {
		t.Skipf("onnx runtime unavailable: %v", err)
	}
	defer client.Close()

	cfg, states := playedStates(8)
	for _, s := range states {
		logits, value, err := client.Predict(cfg, s)
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		if len(logits) != PolicySize || len(value) != ValueSize {
			t.Fatalf("logits=%d value=%d", len(logits), len(value))
		}
	}
	if st := client.Stats(); st.TotalItems != int64(len(states)) {
		t.Fatalf("items=%d want=%d", st.TotalItems, len(states))
	}
}

func BenchmarkStateToFloat32(b *testing.B) {
	cfg, states := playedStates(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ptr := convert.StateToFloat32(cfg, states[i%len(states)])
		convert.PutFloatBuffer(ptr)
	}
}

func BenchmarkOnnxPredict(b *testing.B) {
	path := modelPath(b)
	pool, err := NewOnnxClientPoolWithConfig(path, 1, OnnxClientConfig{BatchSize: DefaultBatchSize})
	if err != nil {
		b.Skipf("onnx runtime unavailable: %v", err)
	}
	defer pool.Close()

	cfg, states := playedStates(256)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, _, err := pool.Predict(cfg, states[i%len(states)]); err != nil {
				b.Errorf("predict: %v", err)
				return
			}
			i++
		}
	})
	b.StopTimer()
	if dt := b.Elapsed().Seconds(); dt > 0 {
		b.ReportMetric(float64(b.N)/dt, "inf/s")
	}
}

package mcts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/rules"
)

// MockPredictor returns uniform priors and a fixed value.
type MockPredictor struct {
	Calls int
	Err   error
}

func (m *MockPredictor) Predict(cfg *game.Config, state *game.State) ([]float32, []float32, error) {
	m.Calls++
	if m.Err != nil {
		return nil, nil, m.Err
	}
	return make([]float32, game.NumActions), []float32{0.5}, nil
}

func TestSearch(t *testing.T) {
	cfg := game.DefaultConfig()
	client := &MockPredictor{}
	m := MCTS{Config: DefaultConfig(), Game: cfg, Client: client}
	state := rules.Reset(cfg, 1)

	simulations := 10
	root, depth, err := m.Search(context.Background(), state, simulations)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if root.VisitCount != simulations {
		t.Fatalf("root visits=%d want=%d", root.VisitCount, simulations)
	}
	total := 0
	for _, c := range root.Children {
		if c == nil {
			t.Fatalf("root not fully expanded")
		}
		total += c.VisitCount
	}
	if total != simulations-1 {
		t.Fatalf("child visits=%d want=%d", total, simulations-1)
	}
	if depth < 1 {
		t.Fatalf("depth=%d", depth)
	}
	if client.Calls != simulations {
		t.Fatalf("predictor calls=%d want=%d", client.Calls, simulations)
	}
	if state.Frame != 0 {
		t.Fatalf("search mutated the root state")
	}
}

func TestSearch_PrefersScoringAction(t *testing.T) {
	cfg := game.DefaultConfig()
	s := rules.Reset(cfg, 1)
	s.EnemySpawnTimer = 1000
	// An enemy sits right above the middle cannon; only Fire scores.
	s.Enemies[0] = game.Enemy{X: 65, Y: 142, DX: 0, Lane: 1, Active: true}
	s.LanesFree[1] = false

	m := MCTS{Config: Config{Cpuct: 1, Discount: 0.97, FrameSkip: 8, RewardScale: 100}, Game: cfg, Client: &MockPredictor{}}
	root, _, err := m.Search(context.Background(), s, 64)
	if err != nil {
		t.Fatal(err)
	}
	if a := BestAction(root); a != game.ActionFire {
		t.Fatalf("best=%s want=fire, policy=%v", a, VisitPolicy(root))
	}
	if r := root.Children[game.ActionFire].Reward; r != 1 {
		t.Fatalf("fire edge reward=%v want=1", r)
	}
}

func TestSearch_TerminalRoot(t *testing.T) {
	cfg := game.DefaultConfig()
	s := rules.Reset(cfg, 1)
	s.CannonsAlive = [game.NumCannons]bool{}
	client := &MockPredictor{}
	m := MCTS{Game: cfg, Client: client}

	root, _, err := m.Search(context.Background(), s, 5)
	if err != nil {
		t.Fatal(err)
	}
	if client.Calls != 0 || root.IsExpanded {
		t.Fatalf("terminal root expanded, calls=%d", client.Calls)
	}
	if p := VisitPolicy(root); p[game.ActionNoop] != 1 {
		t.Fatalf("policy=%v want one-hot noop", p)
	}
}

func TestSearch_Errors(t *testing.T) {
	cfg := game.DefaultConfig()
	boom := errors.New("boom")
	m := MCTS{Game: cfg, Client: &MockPredictor{Err: boom}}
	if _, _, err := m.Search(context.Background(), rules.Reset(cfg, 1), 3); !errors.Is(err, boom) {
		t.Fatalf("err=%v want=boom", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Client = &MockPredictor{}
	if _, _, err := m.Search(ctx, rules.Reset(cfg, 1), 3); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want=context.Canceled", err)
	}
}

func TestRolloutPredictor_Deterministic(t *testing.T) {
	cfg := game.DefaultConfig()
	s := rules.Reset(cfg, 4)
	for i := 0; i < 100; i++ {
		rules.StepInPlace(cfg, s, game.Action(i%game.NumActions))
	}
	p := NewRolloutPredictor(200)
	_, a, _ := p.Predict(cfg, s)
	_, b, _ := p.Predict(cfg, s)
	if a[0] != b[0] {
		t.Fatalf("rollout values differ: %v vs %v", a[0], b[0])
	}
	if a[0] < 0 {
		t.Fatalf("negative rollout value %v", a[0])
	}
	if s.Frame != 100 {
		t.Fatalf("rollout mutated state")
	}
}

func TestResultHelpers(t *testing.T) {
	cfg := game.DefaultConfig()
	m := &MCTS{Game: cfg, Client: NewRolloutPredictor(20)}
	root, _, err := m.Search(context.Background(), rules.Reset(cfg, 2), 20)
	if err != nil {
		t.Fatal(err)
	}

	sum := float32(0)
	for _, p := range VisitPolicy(root) {
		sum += p
	}
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("policy sums to %v", sum)
	}

	var children []map[string]any
	if err := json.Unmarshal(RootSummaryJSON(root), &children); err != nil || len(children) != game.NumActions {
		t.Fatalf("root summary=%v err=%v", children, err)
	}

	tree := DebugTree(m, root, 1)
	if tree.Action != -1 || tree.VisitCount != 20 {
		t.Fatalf("debug root=%+v", tree)
	}
	for _, c := range tree.Children {
		if len(c.Children) != 0 {
			t.Fatalf("depth limit ignored")
		}
	}
}

func BenchmarkSearch(b *testing.B) {
	cfg := game.DefaultConfig()
	m := MCTS{Config: DefaultConfig(), Game: cfg, Client: &MockPredictor{}}
	state := rules.Reset(cfg, 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := m.Search(context.Background(), state, 200); err != nil {
			b.Fatalf("Search failed: %v", err)
		}
	}
}

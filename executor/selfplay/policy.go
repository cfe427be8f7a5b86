package selfplay

import (
	"context"
	"fmt"

	"github.com/brensch/atlantis/executor/mcts"
	"github.com/brensch/atlantis/executor/scripting"
	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/rules"
)

// Decision is a policy's choice for one frame. Probs and SearchRoot are
// optional and end up in the archive row.
type Decision struct {
	Action     game.Action
	Probs      []float32
	SearchRoot []byte
}

// Policy picks the action for the current frame. Implementations must be
// deterministic in the state so that seed plus actions replays an episode.
type Policy interface {
	Name() string
	Choose(ctx context.Context, s *game.State) (Decision, error)
}

const policySalt = 0x9e3779b97f4a7c15

// policyRNG derives per-frame randomness from the simulation's own stream
// without advancing it.
func policyRNG(s *game.State) game.RNG {
	return game.NewRNG(s.RNG.State ^ policySalt ^ uint64(s.Frame))
}

func oneHot(a game.Action) []float32 {
	p := make([]float32, game.NumActions)
	p[a] = 1
	return p
}

// RandomPolicy picks uniformly among the four actions.
type RandomPolicy struct{}

func (RandomPolicy) Name() string { return "random" }

func (RandomPolicy) Choose(_ context.Context, s *game.State) (Decision, error) {
	a, _ := policyRNG(s).IntRange(0, game.NumActions-1)
	p := make([]float32, game.NumActions)
	for i := range p {
		p[i] = 1 / float32(game.NumActions)
	}
	return Decision{Action: game.Action(a), Probs: p}, nil
}

// HeuristicPolicy fires from whichever cannon would add the most kills if it
// shot now and then waited Lookahead frames, and otherwise holds. Holding
// between shots releases the fire control so the edge trigger re-arms.
type HeuristicPolicy struct {
	Config    *game.Config
	Lookahead int

	scratch *game.State
}

func NewHeuristicPolicy(cfg *game.Config) *HeuristicPolicy {
	return &HeuristicPolicy{Config: cfg, Lookahead: 60}
}

func (h *HeuristicPolicy) Name() string { return "heuristic" }

func (h *HeuristicPolicy) Choose(_ context.Context, s *game.State) (Decision, error) {
	if s.FireButtonPrev || s.FireCooldown > 0 || s.Paused() {
		return Decision{Action: game.ActionNoop, Probs: oneHot(game.ActionNoop)}, nil
	}

	best, bestKills := game.ActionNoop, h.killsAfter(s, game.ActionNoop)
	for _, a := range []game.Action{game.ActionFire, game.ActionLeftFire, game.ActionRightFire} {
		if !s.CannonsAlive[a.Cannon()] {
			continue
		}
		if k := h.killsAfter(s, a); k > bestKills {
			best, bestKills = a, k
		}
	}
	return Decision{Action: best, Probs: oneHot(best)}, nil
}

// killsAfter plays first then Noop for the lookahead and returns the kills
// gained.
func (h *HeuristicPolicy) killsAfter(s *game.State, first game.Action) int32 {
	if h.scratch == nil {
		h.scratch = s.Clone()
	} else {
		h.scratch.CopyFrom(s)
	}
	sim := h.scratch
	a := first
	for f := 0; f < h.Lookahead && !rules.IsGameOver(sim); f++ {
		rules.StepInPlace(h.Config, sim, a)
		a = game.ActionNoop
	}
	return sim.Kills - s.Kills
}

// LuaPolicy delegates to a script's choose(state).
type LuaPolicy struct {
	Engine *scripting.Engine
}

func (p *LuaPolicy) Name() string { return "lua" }

func (p *LuaPolicy) Choose(_ context.Context, s *game.State) (Decision, error) {
	a, err := p.Engine.Choose(s)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Action: a, Probs: oneHot(a)}, nil
}

// SearchPolicy runs the planner every frame. During the first SampleFrames
// frames the action is sampled from the visit distribution; after that the
// most visited action is played.
type SearchPolicy struct {
	Search       *mcts.MCTS
	Sims         int
	SampleFrames int32
}

func (p *SearchPolicy) Name() string { return "mcts" }

func (p *SearchPolicy) Choose(ctx context.Context, s *game.State) (Decision, error) {
	sims := p.Sims
	if sims <= 0 {
		sims = 1
	}
	root, _, err := p.Search.Search(ctx, s, sims)
	if err != nil {
		return Decision{}, err
	}
	policy := mcts.VisitPolicy(root)

	var a game.Action
	if s.Frame < p.SampleFrames {
		a = game.Action(sampleMove(policyRNG(s), policy))
	} else {
		a = mcts.BestAction(root)
	}
	return Decision{Action: a, Probs: policy, SearchRoot: mcts.RootSummaryJSON(root)}, nil
}

// NetworkPolicy plays the argmax of the network's logits with no search.
type NetworkPolicy struct {
	Config *game.Config
	Client mcts.Predictor
}

func (p *NetworkPolicy) Name() string { return "onnx" }

func (p *NetworkPolicy) Choose(_ context.Context, s *game.State) (Decision, error) {
	logits, _, err := p.Client.Predict(p.Config, s)
	if err != nil {
		return Decision{}, err
	}
	if len(logits) < game.NumActions {
		return Decision{}, fmt.Errorf("predictor returned %d logits", len(logits))
	}
	probs := softmax(logits[:game.NumActions])
	return Decision{Action: game.Action(argmax(probs)), Probs: probs}, nil
}

package mcts

import (
	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/rules"
)

const rolloutSalt = 0x5bd1e9955bd1e995

// RolloutPredictor evaluates a state by playing uniformly random actions for
// Horizon frames and returning the discounted scaled score. Priors are
// uniform. The rollout's randomness is derived from the state's own stream,
// so evaluating the same state twice gives the same value.
type RolloutPredictor struct {
	Horizon     int
	Discount    float32
	RewardScale float32
}

func NewRolloutPredictor(horizon int) *RolloutPredictor {
	return &RolloutPredictor{Horizon: horizon, Discount: 0.99, RewardScale: 100}
}

func (p *RolloutPredictor) Predict(cfg *game.Config, state *game.State) ([]float32, []float32, error) {
	logits := make([]float32, game.NumActions)
	if rules.IsGameOver(state) || p.Horizon <= 0 {
		return logits, []float32{0}, nil
	}
	scale := p.RewardScale
	if scale <= 0 {
		scale = 1
	}

	s := state.Clone()
	r := game.NewRNG(s.RNG.State ^ rolloutSalt)
	ret, discount := float32(0), float32(1)
	for i := 0; i < p.Horizon && !rules.IsGameOver(s); i++ {
		var a int32
		a, r = r.IntRange(0, game.NumActions-1)
		before := s.Score
		rules.StepInPlace(cfg, s, game.Action(a))
		ret += discount * float32(s.Score-before) / scale
		discount *= p.Discount
	}
	return logits, []float32{ret}, nil
}

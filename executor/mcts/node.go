package mcts

import (
	"github.com/brensch/atlantis/game"
)

// Node is a state in the search tree. Reward is the scaled score gained on
// the edge from the parent into this node.
type Node struct {
	VisitCount int
	ValueSum   float32
	PriorProb  float32
	Reward     float32
	Children   [game.NumActions]*Node
	State      *game.State
	IsExpanded bool
	Terminal   bool
}

// NewNode creates a new search node
func NewNode(state *game.State, prior float32) *Node {
	return &Node{
		State:     state,
		PriorProb: prior,
	}
}

// Value is the mean backed-up value, or 0 before the first visit.
func (n *Node) Value() float32 {
	if n.VisitCount == 0 {
		return 0
	}
	return n.ValueSum / float32(n.VisitCount)
}

// Config holds search configuration
type Config struct {
	Cpuct float32
	// Discount applies per tree edge.
	Discount float32
	// FrameSkip is how many frames one edge covers: the chosen action, then
	// Noop for the remainder.
	FrameSkip int
	// RewardScale divides raw score deltas before they enter the tree.
	RewardScale float32
}

// DefaultConfig is the tuning used by self-play.
func DefaultConfig() Config {
	return Config{Cpuct: 1.25, Discount: 0.97, FrameSkip: 4, RewardScale: 100}
}

// WithDefaults fills unset or out-of-range fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Cpuct <= 0 {
		c.Cpuct = d.Cpuct
	}
	if c.Discount <= 0 || c.Discount > 1 {
		c.Discount = d.Discount
	}
	if c.FrameSkip <= 0 {
		c.FrameSkip = 1
	}
	if c.RewardScale <= 0 {
		c.RewardScale = d.RewardScale
	}
	return c
}

// Predictor supplies action logits and a value estimate (in scaled reward
// units) for a state.
type Predictor interface {
	Predict(cfg *game.Config, state *game.State) ([]float32, []float32, error)
}

// MCTS holds the search context
type MCTS struct {
	Config Config
	Game   *game.Config
	Client Predictor
}

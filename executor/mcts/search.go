package mcts

import (
	"context"
	"math"

	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/rules"
)

func softmax(logits []float32) [game.NumActions]float32 {
	var out [game.NumActions]float32
	if len(logits) < game.NumActions {
		for i := range out {
			out[i] = 1 / float32(game.NumActions)
		}
		return out
	}
	maxV := logits[0]
	for i := 1; i < game.NumActions; i++ {
		if logits[i] > maxV {
			maxV = logits[i]
		}
	}
	sum := float32(0)
	for i := 0; i < game.NumActions; i++ {
		e := float32(math.Exp(float64(logits[i] - maxV)))
		out[i] = e
		sum += e
	}
	if sum > 0 {
		inv := 1 / sum
		for i := range out {
			out[i] *= inv
		}
	}
	return out
}

// minMax tracks the range of edge values seen so far so Q can be normalised
// into [0,1] regardless of the score scale.
type minMax struct {
	lo, hi float32
	set    bool
}

func (m *minMax) update(v float32) {
	if !m.set {
		m.lo, m.hi, m.set = v, v, true
		return
	}
	m.lo = min(m.lo, v)
	m.hi = max(m.hi, v)
}

func (m *minMax) normalize(v float32) float32 {
	if !m.set || m.hi <= m.lo {
		return v
	}
	return (v - m.lo) / (m.hi - m.lo)
}

// advance applies action then Noop for the remaining skip frames and returns
// the raw score gained.
func advance(cfg *game.Config, s *game.State, action game.Action, skip int) int32 {
	before := s.Score
	rules.StepInPlace(cfg, s, action)
	for i := 1; i < skip && !rules.IsGameOver(s); i++ {
		rules.StepInPlace(cfg, s, game.ActionNoop)
	}
	return s.Score - before
}

func (m *MCTS) expand(node *Node, priors [game.NumActions]float32, cfg Config) {
	for a := 0; a < game.NumActions; a++ {
		next := node.State.Clone()
		gained := advance(m.Game, next, game.Action(a), cfg.FrameSkip)
		child := NewNode(next, priors[a])
		child.Reward = float32(gained) / cfg.RewardScale
		child.Terminal = rules.IsGameOver(next)
		node.Children[a] = child
	}
	node.IsExpanded = true
}

func (m *MCTS) ucb(parent, child *Node, bounds *minMax, cfg Config) float32 {
	q := float32(0)
	if child.VisitCount > 0 {
		q = bounds.normalize(child.Reward + cfg.Discount*child.Value())
	}
	// U(s,a) = Q(s,a) + C_puct * P(s,a) * sqrt(N(s)) / (1 + N(s,a))
	sqrtN := float32(math.Sqrt(float64(parent.VisitCount)))
	return q + cfg.Cpuct*child.PriorProb*sqrtN/(1+float32(child.VisitCount))
}

func (m *MCTS) selectChild(node *Node, bounds *minMax, cfg Config) game.Action {
	best := game.Action(0)
	bestScore := float32(math.Inf(-1))
	for a, child := range node.Children {
		if child == nil {
			continue
		}
		if u := m.ucb(node, child, bounds, cfg); u > bestScore {
			bestScore = u
			best = game.Action(a)
		}
	}
	return best
}

// Search runs the given number of simulations from rootState, which is not
// modified. It returns the root and the deepest path length reached.
func (m *MCTS) Search(ctx context.Context, rootState *game.State, simulations int) (*Node, int, error) {
	cfg := m.Config.WithDefaults()
	root := NewNode(rootState.Clone(), 1.0)
	root.Terminal = rules.IsGameOver(root.State)
	bounds := &minMax{}
	maxDepth := 0

	for i := 0; i < simulations; i++ {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return root, maxDepth, ctx.Err()
			default:
			}
		}

		node := root
		path := []*Node{node}

		// Selection
		for node.IsExpanded && !node.Terminal {
			node = node.Children[m.selectChild(node, bounds, cfg)]
			path = append(path, node)
		}
		if d := len(path) - 1; d > maxDepth {
			maxDepth = d
		}

		// Expansion & Evaluation
		value := float32(0)
		if !node.Terminal {
			logits, values, err := m.Client.Predict(m.Game, node.State)
			if err != nil {
				return nil, 0, err
			}
			if len(values) > 0 {
				value = values[0]
			}
			m.expand(node, softmax(logits), cfg)
		}

		// Backpropagation
		g := value
		for j := len(path) - 1; j >= 0; j-- {
			n := path[j]
			n.VisitCount++
			n.ValueSum += g
			if j > 0 {
				bounds.update(n.Reward + cfg.Discount*n.Value())
			}
			g = n.Reward + cfg.Discount*g
		}
	}

	return root, maxDepth, nil
}

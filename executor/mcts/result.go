package mcts

import (
	"encoding/json"

	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/scraper/store"
)

// VisitPolicy returns the normalised root visit counts. A root with no
// visited children yields a one-hot Noop.
func VisitPolicy(root *Node) []float32 {
	policy := make([]float32, game.NumActions)
	total := 0
	for _, c := range root.Children {
		if c != nil {
			total += c.VisitCount
		}
	}
	if total == 0 {
		policy[game.ActionNoop] = 1
		return policy
	}
	for a, c := range root.Children {
		if c != nil {
			policy[a] = float32(c.VisitCount) / float32(total)
		}
	}
	return policy
}

// BestAction is the most visited root action; ties go to the lower index.
func BestAction(root *Node) game.Action {
	best := game.ActionNoop
	bestN := -1
	for a, c := range root.Children {
		if c != nil && c.VisitCount > bestN {
			bestN = c.VisitCount
			best = game.Action(a)
		}
	}
	return best
}

type rootChild struct {
	Action string  `json:"action"`
	N      int     `json:"n"`
	Q      float32 `json:"q"`
	P      float32 `json:"p"`
	R      float32 `json:"r"`
}

// RootSummaryJSON encodes the root children for archive rows.
func RootSummaryJSON(root *Node) []byte {
	out := make([]rootChild, 0, game.NumActions)
	for a, c := range root.Children {
		if c == nil {
			continue
		}
		out = append(out, rootChild{Action: game.Action(a).String(), N: c.VisitCount, Q: c.Value(), P: c.PriorProb, R: c.Reward})
	}
	b, _ := json.Marshal(out)
	return b
}

// DebugTree converts the tree to its storage form, keeping children down to
// depth levels below root and only those that were visited.
func DebugTree(m *MCTS, root *Node, depth int) store.DebugNode {
	cfg := m.Config.WithDefaults()
	var walk func(n, parent *Node, action int32, d int) store.DebugNode
	walk = func(n, parent *Node, action int32, d int) store.DebugNode {
		out := store.DebugNode{
			Action:     action,
			VisitCount: int32(n.VisitCount),
			ValueSum:   n.ValueSum,
			PriorProb:  n.PriorProb,
			Reward:     n.Reward,
			Score:      n.State.Score,
			Terminal:   n.Terminal,
		}
		if parent != nil {
			out.UCB = m.ucb(parent, n, &minMax{}, cfg)
		}
		if d >= depth {
			return out
		}
		for a, c := range n.Children {
			if c != nil && c.VisitCount > 0 {
				out.Children = append(out.Children, walk(c, n, int32(a), d+1))
			}
		}
		return out
	}
	return walk(root, nil, -1, 0)
}

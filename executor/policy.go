package main

import (
	"fmt"

	"github.com/brensch/atlantis/executor/mcts"
	"github.com/brensch/atlantis/executor/scripting"
	"github.com/brensch/atlantis/executor/selfplay"
	"github.com/brensch/atlantis/game"
)

type policyOptions struct {
	Name           string
	Script         string
	Sims           int
	SampleFrames   int32
	Search         mcts.Config
	RolloutHorizon int
}

// policyFactory builds one policy per worker; lua engines and heuristic
// scratch states are not shared between goroutines.
type policyFactory func() (selfplay.Policy, func(), error)

// newPolicyFactory returns a factory for opts. predictor is the network
// client and may be nil for policies that do not need one.
func newPolicyFactory(cfg *game.Config, opts policyOptions, predictor mcts.Predictor) (policyFactory, error) {
	noop := func() {}
	switch opts.Name {
	case "random":
		return func() (selfplay.Policy, func(), error) { return selfplay.RandomPolicy{}, noop, nil }, nil
	case "heuristic":
		return func() (selfplay.Policy, func(), error) { return selfplay.NewHeuristicPolicy(cfg), noop, nil }, nil
	case "lua":
		if opts.Script == "" {
			return nil, fmt.Errorf("policy lua requires -script")
		}
		return func() (selfplay.Policy, func(), error) {
			e, err := scripting.NewEngine(cfg, opts.Script)
			if err != nil {
				return nil, nil, err
			}
			return &selfplay.LuaPolicy{Engine: e}, e.Close, nil
		}, nil
	case "mcts":
		client := predictor
		if client == nil {
			client = mcts.NewRolloutPredictor(opts.RolloutHorizon)
		}
		return func() (selfplay.Policy, func(), error) {
			return &selfplay.SearchPolicy{
				Search:       &mcts.MCTS{Config: opts.Search, Game: cfg, Client: client},
				Sims:         opts.Sims,
				SampleFrames: opts.SampleFrames,
			}, noop, nil
		}, nil
	case "onnx":
		if predictor == nil {
			return nil, fmt.Errorf("policy onnx requires -model")
		}
		return func() (selfplay.Policy, func(), error) {
			return &selfplay.NetworkPolicy{Config: cfg, Client: predictor}, noop, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q (want random, heuristic, lua, mcts or onnx)", opts.Name)
	}
}

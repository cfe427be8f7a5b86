package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/brensch/atlantis/executor/selfplay"
	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/rules"
)

func TestNewPolicyFactory(t *testing.T) {
	cfg := game.DefaultConfig()
	for _, name := range []string{"random", "heuristic", "mcts"} {
		f, err := newPolicyFactory(cfg, policyOptions{Name: name, Sims: 4, RolloutHorizon: 5}, nil)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		p, closeFn, err := f()
		if err != nil {
			t.Fatalf("%s: build: %v", name, err)
		}
		if p.Name() != name {
			t.Fatalf("name=%s want=%s", p.Name(), name)
		}
		if _, err := p.Choose(context.Background(), rules.Reset(cfg, 1)); err != nil {
			t.Fatalf("%s: choose: %v", name, err)
		}
		closeFn()
	}

	for _, bad := range []policyOptions{{Name: "lua"}, {Name: "onnx"}, {Name: "greedy"}} {
		if _, err := newPolicyFactory(cfg, bad, nil); err == nil {
			t.Fatalf("%+v: expected error", bad)
		}
	}
}

func TestNewPolicyFactory_Lua(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.lua")
	if err := os.WriteFile(path, []byte(`function choose(s) return "rightfire" end`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := game.DefaultConfig()
	f, err := newPolicyFactory(cfg, policyOptions{Name: "lua", Script: path}, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, closeFn, err := f()
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	d, err := p.Choose(context.Background(), rules.Reset(cfg, 1))
	if err != nil || d.Action != game.ActionRightFire {
		t.Fatalf("action=%s err=%v", d.Action, err)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	cfg := game.DefaultConfig()
	dir := t.TempDir()

	steps := 0
	out, err := selfplay.PlayEpisodeWithOptions(context.Background(), 0, cfg, selfplay.RandomPolicy{}, selfplay.PlayEpisodeOptions{
		Seed:          42,
		StopRequested: func() bool { return steps >= 20 },
		OnStep:        func() { steps++ },
	})
	if err != nil || out.Checkpoint == nil {
		t.Fatalf("checkpoint=%v err=%v", out.Checkpoint, err)
	}
	if _, err := saveCheckpoint(dir, out.Checkpoint); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, errs := loadCheckpoints(dir)
	if len(loaded) != 1 || len(errs) != 1 {
		t.Fatalf("loaded=%d errs=%v", len(loaded), errs)
	}
	cp := loaded[0]
	if cp.EpisodeID != out.Checkpoint.EpisodeID || cp.Seed != 42 || cp.State.Frame != 20 || len(cp.Rows) != 20 {
		t.Fatalf("checkpoint=%+v", cp)
	}
	if cp.State.RNG != out.Checkpoint.State.RNG {
		t.Fatalf("rng lost in round trip")
	}
	if _, err := os.Stat(filepath.Join(dir, cp.EpisodeID+".json")); !os.IsNotExist(err) {
		t.Fatalf("loaded checkpoint not removed")
	}
}

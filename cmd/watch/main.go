// Command watch opens a window and shows a self-play policy playing Atlantis.
//
// Keys: P pauses, R restarts with the next seed, Escape quits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/brensch/atlantis/executor/inference"
	"github.com/brensch/atlantis/executor/scripting"
	"github.com/brensch/atlantis/executor/selfplay"
	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/render"
	"github.com/brensch/atlantis/rules"
)

var errQuit = errors.New("quit")

type Watch struct {
	cfg    *game.Config
	policy selfplay.Policy
	seed   uint64

	state  *game.State
	frame  *image.RGBA
	screen *ebiten.Image
	dirty  bool
	paused bool
	last   game.Action
}

func newWatch(cfg *game.Config, policy selfplay.Policy, seed uint64) *Watch {
	w := &Watch{
		cfg:    cfg,
		policy: policy,
		seed:   seed,
		frame:  image.NewRGBA(image.Rect(0, 0, int(cfg.ScreenWidth), int(cfg.ScreenHeight))),
	}
	w.reset()
	return w
}

func (w *Watch) reset() {
	w.state = rules.Reset(w.cfg, w.seed)
	w.last = game.ActionNoop
	w.redraw()
}

func (w *Watch) redraw() {
	render.Draw(w.frame, w.cfg, w.state)
	w.dirty = true
}

func (w *Watch) Update() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		return errQuit
	case inpututil.IsKeyJustPressed(ebiten.KeyP):
		w.paused = !w.paused
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		w.seed++
		w.reset()
		return nil
	}
	if w.paused || rules.IsGameOver(w.state) {
		return nil
	}

	d, err := w.policy.Choose(context.Background(), w.state)
	if err != nil {
		return fmt.Errorf("policy %s at frame %d: %w", w.policy.Name(), w.state.Frame, err)
	}
	rules.StepInPlace(w.cfg, w.state, d.Action)
	w.last = d.Action
	w.redraw()
	return nil
}

func (w *Watch) Draw(screen *ebiten.Image) {
	// Created on first draw, inside the game loop.
	if w.screen == nil {
		w.screen = ebiten.NewImage(int(w.cfg.ScreenWidth), int(w.cfg.ScreenHeight))
	}
	if w.dirty {
		w.screen.WritePixels(w.frame.Pix)
		w.dirty = false
	}
	screen.DrawImage(w.screen, nil)

	status := fmt.Sprintf("%s seed=%d %s", w.policy.Name(), w.seed, w.last)
	switch {
	case rules.IsGameOver(w.state):
		status += " GAME OVER (R)"
	case w.paused:
		status += " PAUSED"
	}
	ebitenutil.DebugPrintAt(screen, status, 2, int(w.cfg.ScreenHeight)-16)
}

func (w *Watch) Layout(outsideWidth, outsideHeight int) (int, int) {
	return int(w.cfg.ScreenWidth), int(w.cfg.ScreenHeight)
}

func main() {
	configPath := flag.String("config", "", "Optional TOML simulation config")
	archetypesPath := flag.String("archetypes", "", "Optional YAML enemy archetype table")
	policyName := flag.String("policy", "heuristic", "Who plays: random, heuristic, lua or onnx")
	script := flag.String("script", "", "Lua policy script (for -policy lua)")
	modelPath := flag.String("model", "", "ONNX model (for -policy onnx)")
	seed := flag.Uint64("seed", 1, "Episode seed")
	tps := flag.Int("tps", 60, "Simulation frames per second")
	flag.Parse()

	cfg, err := game.Load(*configPath, *archetypesPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var policy selfplay.Policy
	switch *policyName {
	case "random":
		policy = selfplay.RandomPolicy{}
	case "heuristic":
		policy = selfplay.NewHeuristicPolicy(cfg)
	case "lua":
		e, err := scripting.NewEngine(cfg, *script)
		if err != nil {
			log.Fatalf("lua: %v", err)
		}
		defer e.Close()
		policy = &selfplay.LuaPolicy{Engine: e}
	case "onnx":
		pool, err := inference.NewOnnxClientPoolWithConfig(*modelPath, 1, inference.OnnxClientConfig{BatchSize: 1, DisableCUDA: true})
		if err != nil {
			log.Fatalf("model: %v", err)
		}
		defer pool.Close()
		policy = &selfplay.NetworkPolicy{Config: cfg, Client: pool}
	default:
		log.Fatalf("unknown policy %q", *policyName)
	}

	scale := max(int(cfg.Scale), 1)
	ebiten.SetWindowSize(int(cfg.ScreenWidth)*scale, int(cfg.ScreenHeight)*scale)
	ebiten.SetWindowTitle("Atlantis")
	ebiten.SetTPS(*tps)

	if err := ebiten.RunGame(newWatch(cfg, policy, *seed)); err != nil && !errors.Is(err, errQuit) {
		log.Fatal(err)
	}
}

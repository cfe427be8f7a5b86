package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/brensch/atlantis/executor/inference"
	"github.com/brensch/atlantis/executor/mcts"
	"github.com/brensch/atlantis/executor/selfplay"
	"github.com/brensch/atlantis/game"
)

func main() {
	modelPath := flag.String("model", "", "Path to ONNX model (empty uses random rollouts)")
	outDir := flag.String("out-dir", "debug_episodes", "Output directory for debug episodes")
	configPath := flag.String("config", "", "Optional TOML simulation config")
	archetypesPath := flag.String("archetypes", "", "Optional YAML enemy archetype table")
	seed := flag.Uint64("seed", 0, "Episode seed (0 picks one from the clock)")
	sims := flag.Int("sims", 100, "Number of MCTS simulations per frame")
	cpuct := flag.Float64("cpuct", float64(mcts.DefaultConfig().Cpuct), "MCTS exploration constant")
	depth := flag.Int("depth", 2, "Tree levels below the root saved per frame")
	maxFrames := flag.Int("max-frames", 3000, "Stop after this many frames (0 = until game over)")
	rolloutHorizon := flag.Int("rollout-horizon", 120, "Random rollout length when no model is given")
	cuda := flag.Bool("cuda", false, "Enable CUDA for inference")
	timeout := flag.Duration("timeout", 10*time.Minute, "Give up after this long")
	viewerURL := flag.String("viewer", "http://127.0.0.1:8080", "Viewer base URL")
	flag.Parse()

	cfg, err := game.Load(*configPath, *archetypesPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var client mcts.Predictor
	evaluator := fmt.Sprintf("rollout(%d)", *rolloutHorizon)
	if *modelPath != "" {
		if _, err := os.Stat(*modelPath); err != nil {
			log.Fatalf("model: %v", err)
		}
		log.Printf("Loading model: %s", *modelPath)
		pool, err := inference.NewOnnxClientPoolWithConfig(*modelPath, 1, inference.OnnxClientConfig{DisableCUDA: !*cuda})
		if err != nil {
			log.Fatalf("Failed to load model: %v", err)
		}
		defer pool.Close()
		client = pool
		abs, _ := filepath.Abs(*modelPath)
		evaluator = abs
	} else {
		client = mcts.NewRolloutPredictor(*rolloutHorizon)
	}

	m := &mcts.MCTS{
		Config: mcts.Config{Cpuct: float32(*cpuct)}.WithDefaults(),
		Game:   cfg,
		Client: client,
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Printf("Generating debug episode with %d sims, cpuct=%.2f, evaluator=%s", *sims, *cpuct, evaluator)

	onProgress := func(p selfplay.DebugProgress) {
		if p.Frame%60 == 0 {
			fmt.Printf("  Frame %5d | %-9s | score %6d | %d visits\n", p.Frame, p.Action, p.Score, p.Visits)
		}
	}

	result, err := selfplay.PlayDebugEpisode(ctx, cfg, m, selfplay.DebugOptions{
		Seed:      *seed,
		Sims:      *sims,
		MaxFrames: int32(*maxFrames),
		TreeDepth: *depth,
		ModelPath: *modelPath,
	}, onProgress)
	if err != nil {
		log.Fatalf("Failed to generate debug episode: %v", err)
	}

	log.Printf("Episode complete: %d frames, score %d, wave %d, game over %v",
		result.Result.Frames, result.Result.Score, result.Result.Wave, result.Result.GameOver)

	parquetPath, err := selfplay.WriteDebugEpisodeParquet(*outDir, result)
	if err != nil {
		log.Fatalf("Failed to write debug episode: %v", err)
	}
	log.Printf("Debug episode written to: %s", parquetPath)

	fmt.Println()
	fmt.Printf("  Debug episode ready: %s/api/debug_episodes/%s\n", *viewerURL, result.EpisodeID)
	fmt.Println()
}

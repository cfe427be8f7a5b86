package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brensch/atlantis/executor/inference"
	"github.com/brensch/atlantis/executor/mcts"
	"github.com/brensch/atlantis/executor/selfplay"
	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/persist"
	"github.com/brensch/atlantis/scraper/store"
	tea "github.com/charmbracelet/bubbletea"
)

var totalFrames atomic.Int64
var totalInferences atomic.Int64
var totalEpisodes atomic.Int64

type instrumentedClient struct {
	mcts.Predictor
}

func (c *instrumentedClient) Predict(cfg *game.Config, state *game.State) ([]float32, []float32, error) {
	totalInferences.Add(1)
	return c.Predictor.Predict(cfg, state)
}

func main() {
	configPath := flag.String("config", getEnvOrDefault("ATLANTIS_CONFIG", ""), "Optional TOML simulation config")
	archetypesPath := flag.String("archetypes", getEnvOrDefault("ATLANTIS_ARCHETYPES", ""), "Optional YAML enemy archetype table")
	outDir := flag.String("out-dir", getEnvOrDefault("OUT_DIR", "data/archive"), "Output directory for archive frame parquet batches")
	episodesDir := flag.String("episodes-dir", getEnvOrDefault("EPISODES_DIR", "data/episodes"), "Output directory for episode summary parquet batches")
	checkpointDir := flag.String("checkpoint-dir", getEnvOrDefault("CHECKPOINT_DIR", "data/inprogress"), "Directory for interrupted episodes; resumed on start")
	workers := flag.Int("workers", getEnvIntOrDefault("WORKERS", 16), "Number of self-play workers")
	episodesPerFlush := flag.Int("episodes-per-flush", getEnvIntOrDefault("EPISODES_PER_FLUSH", 50), "Number of episodes to buffer per parquet flush")
	maxEpisodes := flag.Int64("max-episodes", int64(getEnvIntOrDefault("MAX_EPISODES", 0)), "If > 0, stop after generating this many episodes (across all workers)")
	maxFrames := flag.Int("max-frames", getEnvIntOrDefault("MAX_FRAMES", 20000), "Truncate episodes after this many frames (0 = until game over)")
	policyName := flag.String("policy", getEnvOrDefault("POLICY", "heuristic"), "Policy: random, heuristic, lua, mcts or onnx")
	script := flag.String("script", getEnvOrDefault("POLICY_SCRIPT", ""), "Lua script for -policy lua")
	modelPath := flag.String("model", getEnvOrDefault("MODEL_PATH", ""), "ONNX model; required for onnx, optional for mcts (rollouts otherwise)")
	sims := flag.Int("sims", getEnvIntOrDefault("SIMS", 64), "Planner simulations per frame")
	cpuct := flag.Float64("cpuct", 1.25, "Planner exploration constant")
	frameSkip := flag.Int("frame-skip", 4, "Frames covered by one planner edge")
	rolloutHorizon := flag.Int("rollout-horizon", 120, "Random rollout length when no model is given")
	sampleFrames := flag.Int("sample-frames", 30, "Frames during which planner actions are sampled instead of argmax")
	onnxSessions := flag.Int("onnx-sessions", 1, "Number of ONNX Runtime sessions to run in parallel (each has its own batching loop)")
	onnxBatchSize := flag.Int("onnx-batch-size", inference.DefaultBatchSize, "ONNX inference batch size")
	onnxBatchTimeout := flag.Duration("onnx-batch-timeout", getEnvDurationOrDefault("ONNX_BATCH_TIMEOUT", inference.DefaultBatchTimeout), "Max time to wait for filling an ONNX batch")
	databaseURL := flag.String("database-url", getEnvOrDefault("DATABASE_URL", ""), "Optional Postgres DSN for episode summaries")
	useTUI := flag.Bool("tui", getEnvBoolOrDefault("TUI", false), "Show the bubbletea dashboard instead of log lines")
	check := flag.Bool("check", getEnvBoolOrDefault("CHECK_INVARIANTS", false), "Verify state invariants after every frame")
	trace := flag.Bool("trace", false, "Print worker 0's board every frame")
	flag.Parse()

	cfg, err := game.Load(*configPath, *archetypesPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	if *useTUI {
		f, err := os.OpenFile("executor.log", os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	var predictor mcts.Predictor
	var statsProvider any
	if *modelPath != "" {
		if _, err := os.Stat(*modelPath); err != nil {
			log.Fatalf("Model file not found: %s", *modelPath)
		}
		onnxCfg := inference.OnnxClientConfig{BatchSize: *onnxBatchSize, BatchTimeout: *onnxBatchTimeout}
		pool, err := inference.NewOnnxClientPoolWithConfig(*modelPath, *onnxSessions, onnxCfg)
		if err != nil {
			log.Fatalf("Failed to create ONNX client pool: %v", err)
		}
		defer pool.Close()
		predictor = &instrumentedClient{Predictor: pool}
		statsProvider = pool
		log.Printf("ONNX pool initialized (%d sessions, model=%s)", *onnxSessions, *modelPath)
	}

	factory, err := newPolicyFactory(cfg, policyOptions{
		Name:         *policyName,
		Script:       *script,
		Sims:         *sims,
		SampleFrames: int32(*sampleFrames),
		Search: mcts.Config{
			Cpuct:     float32(*cpuct),
			FrameSkip: *frameSkip,
		},
		RolloutHorizon: *rolloutHorizon,
	}, predictor)
	if err != nil {
		log.Fatalf("Invalid policy: %v", err)
	}

	var sink summarySink
	if *databaseURL != "" {
		db, err := persist.Open(ctx, *databaseURL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		sink = persist.NewEpisodeRepo(db)
	}

	resumeQueue := make(chan *selfplay.InProgressEpisode, 1024)
	resumed, errs := loadCheckpoints(*checkpointDir)
	for _, err := range errs {
		log.Printf("Skipping checkpoint: %v", err)
	}
	for _, cp := range resumed {
		select {
		case resumeQueue <- cp:
		default:
			log.Printf("Resume queue full; checkpoint %s dropped", cp.EpisodeID)
		}
	}
	if len(resumed) > 0 {
		log.Printf("Resuming %d interrupted episodes", len(resumed))
	}

	log.Printf("Starting self-play with %d workers (policy=%s)", *workers, *policyName)

	updates := make(chan EpisodeUpdate, *workers)
	writeReqs := make(chan episodeWriteRequest, (*workers)*4)

	writerDone := make(chan struct{})
	go func() {
		parquetWriterLoop(*outDir, *episodesDir, *episodesPerFlush, sink, writeReqs)
		close(writerDone)
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < *workers; i++ {
		workerWG.Add(1)
		go func(workerId int) {
			defer workerWG.Done()
			policy, closePolicy, err := factory()
			if err != nil {
				log.Printf("Worker %d: policy init failed: %v", workerId, err)
				return
			}
			defer closePolicy()

			for ctx.Err() == nil {
				opts := selfplay.PlayEpisodeOptions{
					MaxFrames: int32(*maxFrames),
					Verbose:   *trace && workerId == 0,
					Check:     *check,
					ModelPath: *modelPath,
					OnStep:    func() { totalFrames.Add(1) },
				}
				select {
				case cp := <-resumeQueue:
					opts.Resume = cp
				default:
				}

				out, err := selfplay.PlayEpisodeWithOptions(ctx, workerId, cfg, policy, opts)
				if err != nil {
					log.Printf("Worker %d: episode aborted: %v", workerId, err)
					continue
				}
				if !out.Completed {
					if out.Checkpoint != nil {
						if p, err := saveCheckpoint(*checkpointDir, out.Checkpoint); err != nil {
							log.Printf("Worker %d: checkpoint failed: %v", workerId, err)
						} else {
							log.Printf("Worker %d: checkpointed %s at frame %d", workerId, p, out.Checkpoint.PausedAt)
						}
					}
					return
				}

				summary, _ := store.Summarize(out.Rows)
				summary.CreatedNs = time.Now().UnixNano()
				writeReqs <- episodeWriteRequest{rows: out.Rows, summary: summary}

				total := totalEpisodes.Add(1)
				if *maxEpisodes > 0 && total >= *maxEpisodes {
					cancel()
				}
				select {
				case updates <- EpisodeUpdate{WorkerID: workerId, Policy: policy.Name(), Result: out.Result, Rows: len(out.Rows)}:
				default:
				}
			}
		}(i)
	}

	shutdown := func() {
		log.Printf("Shutdown requested; waiting for workers to checkpoint...")
		workerWG.Wait()
		close(writeReqs)
		<-writerDone
		log.Printf("Shutdown complete: final parquet flush done (episodes=%d)", totalEpisodes.Load())
	}

	if *useTUI {
		p := tea.NewProgram(initialModel(updates), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			log.Printf("TUI exited: %v", err)
		}
		cancel()
		shutdown()
		return
	}

	startTime := time.Now()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdown()
			return
		case u := <-updates:
			log.Print(formatUpdate(u))
		case <-ticker.C:
			secs := time.Since(startTime).Seconds()
			framesPerSec := float64(totalFrames.Load()) / secs
			infPerSec := float64(totalInferences.Load()) / secs
			if sp, ok := statsProvider.(interface{ Stats() inference.RuntimeStats }); ok {
				st := sp.Stats()
				log.Printf("Stats: Frames/s: %.2f, Inf/s: %.2f | batch avg=%.1f last=%d q=%d run avg=%.2fms", framesPerSec, infPerSec, st.AvgBatchSize, st.LastBatchSize, st.QueueLen, st.AvgRunMs)
			} else {
				log.Printf("Stats: Frames/s: %.2f (episodes=%d)", framesPerSec, totalEpisodes.Load())
			}
		}
	}
}

// Environment variable helpers
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

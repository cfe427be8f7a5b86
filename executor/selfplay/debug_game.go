package selfplay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brensch/atlantis/executor/mcts"
	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/rules"
	"github.com/brensch/atlantis/scraper/store"
)

// DebugProgress is passed to the progress callback after each frame.
type DebugProgress struct {
	Frame  int32
	Action game.Action
	Score  int32
	Visits int
}

// DebugEpisodeResult holds an episode played with full planner capture.
type DebugEpisodeResult struct {
	EpisodeID string
	Seed      uint64
	ModelPath string
	Rows      []store.DebugFrameRow
	Result    EpisodeResult
}

type DebugOptions struct {
	Seed      uint64
	Sims      int
	MaxFrames int32
	// TreeDepth bounds how many levels below the root are serialised.
	TreeDepth int
	ModelPath string
}

// PlayDebugEpisode plays greedily from the planner and captures the search
// tree at every frame. The optional onProgress callback is called after each
// frame.
func PlayDebugEpisode(ctx context.Context, cfg *game.Config, m *mcts.MCTS, opts DebugOptions, onProgress func(DebugProgress)) (*DebugEpisodeResult, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	sims := max(opts.Sims, 1)
	depth := opts.TreeDepth
	if depth <= 0 {
		depth = 2
	}

	state := rules.Reset(cfg, seed)
	episodeID := fmt.Sprintf("debug_%d", time.Now().UnixNano())
	result := &DebugEpisodeResult{
		EpisodeID: episodeID,
		Seed:      seed,
		ModelPath: opts.ModelPath,
		Rows:      make([]store.DebugFrameRow, 0, 1024),
	}
	searchCfg := m.Config.WithDefaults()

	for !rules.IsGameOver(state) && (opts.MaxFrames <= 0 || state.Frame < opts.MaxFrames) {
		if ctx != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		root, _, err := m.Search(ctx, state, sims)
		if err != nil {
			return nil, fmt.Errorf("search at frame %d: %w", state.Frame, err)
		}
		action := mcts.BestAction(root)

		rootJSON, err := json.Marshal(mcts.DebugTree(m, root, depth))
		if err != nil {
			return nil, fmt.Errorf("marshal tree: %w", err)
		}

		archive, err := store.FrameRow(episodeID, seed, state)
		if err != nil {
			return nil, err
		}
		row := store.DebugFrameFromArchive(&archive)
		row.Action = int32(action)
		row.RootJSON = rootJSON
		row.Sims = int32(sims)
		row.Cpuct = searchCfg.Cpuct
		result.Rows = append(result.Rows, row)

		rules.StepInPlace(cfg, state, action)

		if onProgress != nil {
			onProgress(DebugProgress{
				Frame:  row.Frame,
				Action: action,
				Score:  state.Score,
				Visits: root.VisitCount,
			})
		}
	}

	result.Result = resultOf(state)
	return result, nil
}

// WriteDebugEpisodeParquet writes a debug episode to outDir.
func WriteDebugEpisodeParquet(outDir string, result *DebugEpisodeResult) (string, error) {
	return store.WriteDebugEpisodeParquet(outDir, result.EpisodeID, result.Rows)
}

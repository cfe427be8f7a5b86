package selfplay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/rules"
	"github.com/brensch/atlantis/scraper/store"
)

const (
	// DefaultDiscount is the per-frame discount used for archive returns.
	DefaultDiscount = 0.99
	// RewardScale divides raw score deltas before they enter returns, so
	// a single raider kill is worth 1.
	RewardScale = 100
)

type EpisodeResult struct {
	Frames   int32
	Score    int32
	Wave     int32
	Kills    int32
	GameOver bool
}

// InProgressEpisode is a resumable self-play episode snapshot.
//
// It includes the current state plus any already-recorded per-frame archive
// rows. Returns are assigned only once the episode completes.
type InProgressEpisode struct {
	EpisodeID string                  `json:"episode_id"`
	Seed      uint64                  `json:"seed"`
	State     *game.State             `json:"state"`
	Rows      []store.ArchiveFrameRow `json:"rows"`
	PausedAt  int32                   `json:"paused_at"`
}

type EpisodeOutcome struct {
	Completed  bool
	Rows       []store.ArchiveFrameRow
	Result     EpisodeResult
	Checkpoint *InProgressEpisode
}

type PlayEpisodeOptions struct {
	// Seed starts a fresh episode. Zero derives one from the clock.
	Seed   uint64
	Resume *InProgressEpisode
	// MaxFrames truncates the episode; zero plays until game over.
	MaxFrames     int32
	Discount      float32
	Source        string
	ModelPath     string
	Verbose       bool
	Check         bool
	StopRequested func() bool
	OnStep        func()
}

// ErrStopped is returned by PlayEpisode when the episode was interrupted
// before it finished.
var ErrStopped = errors.New("selfplay: episode stopped")

// PlayEpisode is the simple API: it plays to the end or returns ErrStopped
// if the context is cancelled first.
func PlayEpisode(ctx context.Context, workerId int, cfg *game.Config, policy Policy, onStep func()) ([]store.ArchiveFrameRow, EpisodeResult, error) {
	out, err := PlayEpisodeWithOptions(ctx, workerId, cfg, policy, PlayEpisodeOptions{OnStep: onStep})
	if err != nil {
		return nil, out.Result, err
	}
	if !out.Completed {
		return nil, out.Result, ErrStopped
	}
	return out.Rows, out.Result, nil
}

// PlayEpisodeWithOptions plays one episode with policy, recording one row per
// frame before the action is applied plus a terminal row. If ctx is
// cancelled or StopRequested reports true the episode is checkpointed
// instead of discarded. A policy error or an invariant failure (with Check)
// aborts the episode.
func PlayEpisodeWithOptions(ctx context.Context, workerId int, cfg *game.Config, policy Policy, opts PlayEpisodeOptions) (EpisodeOutcome, error) {
	stopRequested := opts.StopRequested
	if stopRequested == nil {
		stopRequested = func() bool { return false }
	}
	discount := opts.Discount
	if discount <= 0 || discount > 1 {
		discount = DefaultDiscount
	}
	source := opts.Source
	if source == "" {
		source = "selfplay"
	}

	var state *game.State
	var episodeID string
	var seed uint64
	rows := make([]store.ArchiveFrameRow, 0, 1024)

	if r := opts.Resume; r != nil && r.State != nil && r.EpisodeID != "" {
		episodeID = r.EpisodeID
		seed = r.Seed
		state = r.State.Clone()
		rows = append(rows, r.Rows...)
	} else {
		seed = opts.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano()) + uint64(workerId)*1000003
		}
		state = rules.Reset(cfg, seed)
		episodeID = fmt.Sprintf("selfplay_%d_%d", time.Now().UnixNano(), workerId)
	}

	checkpoint := func() EpisodeOutcome {
		return EpisodeOutcome{
			Result: resultOf(state),
			Checkpoint: &InProgressEpisode{
				EpisodeID: episodeID,
				Seed:      seed,
				State:     state.Clone(),
				Rows:      append([]store.ArchiveFrameRow(nil), rows...),
				PausedAt:  state.Frame,
			},
		}
	}

	for !rules.IsGameOver(state) && (opts.MaxFrames <= 0 || state.Frame < opts.MaxFrames) {
		if ctx != nil && ctx.Err() != nil {
			return checkpoint(), nil
		}
		if stopRequested() {
			return checkpoint(), nil
		}

		if opts.Verbose {
			PrintBoard(cfg, state)
		}

		d, err := policy.Choose(ctx, state)
		if err != nil {
			if ctx != nil && ctx.Err() != nil {
				return checkpoint(), nil
			}
			return EpisodeOutcome{Result: resultOf(state)}, fmt.Errorf("%s policy at frame %d: %w", policy.Name(), state.Frame, err)
		}
		if !d.Action.Valid() {
			return EpisodeOutcome{Result: resultOf(state)}, fmt.Errorf("%s policy chose %s", policy.Name(), d.Action)
		}

		row, err := store.FrameRow(episodeID, seed, state)
		if err != nil {
			return EpisodeOutcome{Result: resultOf(state)}, err
		}
		row.Action = int32(d.Action)
		row.PolicyProbs = d.Probs
		row.SearchRootJSON = d.SearchRoot
		row.Policy = policy.Name()
		row.Source = source
		row.ModelPath = opts.ModelPath

		before := state.Score
		rules.StepInPlace(cfg, state, d.Action)
		row.Reward = float32(state.Score - before)
		rows = append(rows, row)

		if opts.Check {
			if err := rules.CheckInvariants(cfg, state); err != nil {
				return EpisodeOutcome{Result: resultOf(state)}, fmt.Errorf("episode %s frame %d: %w", episodeID, state.Frame, err)
			}
		}
		if opts.Verbose {
			log.Printf("[Worker %d] Frame %d: %s -> %s | score=%d probs=%v", workerId, row.Frame, policy.Name(), d.Action, state.Score, d.Probs)
		}
		if opts.OnStep != nil {
			opts.OnStep()
		}
	}

	// Terminal row, so completed episodes end on the final position.
	terminal, err := store.FrameRow(episodeID, seed, state)
	if err != nil {
		return EpisodeOutcome{Result: resultOf(state)}, err
	}
	terminal.Policy = policy.Name()
	terminal.Source = source
	terminal.ModelPath = opts.ModelPath
	rows = append(rows, terminal)

	AssignReturns(rows, discount)

	return EpisodeOutcome{Completed: true, Rows: rows, Result: resultOf(state)}, nil
}

// AssignReturns fills Return with the discounted scaled reward from each row
// to the end of the episode. Rows must be in frame order.
func AssignReturns(rows []store.ArchiveFrameRow, discount float32) {
	g := float32(0)
	for i := len(rows) - 1; i >= 0; i-- {
		g = rows[i].Reward/RewardScale + discount*g
		rows[i].Return = g
	}
}

func resultOf(s *game.State) EpisodeResult {
	return EpisodeResult{
		Frames:   s.Frame,
		Score:    s.Score,
		Wave:     s.Wave,
		Kills:    s.Kills,
		GameOver: rules.IsGameOver(s),
	}
}

func sampleMove(rng game.RNG, policy []float32) int {
	f, _ := rng.Float64()
	r := float32(f)
	sum := float32(0)
	for i, p := range policy {
		sum += p
		if r < sum {
			return i
		}
	}
	return len(policy) - 1
}

func argmax(policy []float32) int {
	bestIdx := -1
	bestVal := float32(math.Inf(-1))
	for i, p := range policy {
		if p > bestVal {
			bestVal = p
			bestIdx = i
		}
	}
	return bestIdx
}

func softmax(logits []float32) []float32 {
	out := make([]float32, len(logits))
	maxV := float32(math.Inf(-1))
	for _, l := range logits {
		maxV = max(maxV, l)
	}
	sum := float32(0)
	for i, l := range logits {
		out[i] = float32(math.Exp(float64(l - maxV)))
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

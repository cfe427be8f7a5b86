package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/brensch/atlantis/executor/selfplay"
)

// saveCheckpoint writes an interrupted episode to dir as JSON.
func saveCheckpoint(dir string, cp *selfplay.InProgressEpisode) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, cp.EpisodeID+".json")
	b, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return "", err
	}
	return path, os.Rename(tmp, path)
}

// loadCheckpoints reads and removes every checkpoint in dir. Unreadable
// files are left in place and reported.
func loadCheckpoints(dir string) ([]*selfplay.InProgressEpisode, []error) {
	matches, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	sort.Strings(matches)
	var out []*selfplay.InProgressEpisode
	var errs []error
	for _, p := range matches {
		b, err := os.ReadFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var cp selfplay.InProgressEpisode
		if err := json.Unmarshal(b, &cp); err != nil || cp.State == nil {
			errs = append(errs, fmt.Errorf("checkpoint %s: invalid (%v)", p, err))
			continue
		}
		_ = os.Remove(p)
		out = append(out, &cp)
	}
	return out, errs
}

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brensch/atlantis/executor/selfplay"
	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/scraper/store"
)

type memorySink struct {
	saved []store.EpisodeRow
}

func (m *memorySink) SaveBatch(_ context.Context, eps []store.EpisodeRow) error {
	m.saved = append(m.saved, eps...)
	return nil
}

func TestParquetWriterLoop(t *testing.T) {
	cfg := game.DefaultConfig()
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "archive")
	episodesDir := filepath.Join(dir, "episodes")

	in := make(chan episodeWriteRequest, 4)
	sink := &memorySink{}
	done := make(chan struct{})
	go func() {
		parquetWriterLoop(archiveDir, episodesDir, 2, sink, in)
		close(done)
	}()

	totalRows := 0
	for seed := uint64(1); seed <= 3; seed++ {
		out, err := selfplay.PlayEpisodeWithOptions(context.Background(), 0, cfg, selfplay.RandomPolicy{}, selfplay.PlayEpisodeOptions{Seed: seed, MaxFrames: 60})
		if err != nil {
			t.Fatal(err)
		}
		summary, _ := store.Summarize(out.Rows)
		in <- episodeWriteRequest{rows: out.Rows, summary: summary}
		totalRows += len(out.Rows)
	}
	close(in)
	<-done

	files, err := store.ListParquetFiles(archiveDir)
	if err != nil || len(files) != 2 {
		t.Fatalf("archive files=%v err=%v", files, err)
	}
	got := 0
	for _, f := range files {
		rows, err := store.ReadParquet[store.ArchiveFrameRow](f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		got += len(rows)
	}
	if got != totalRows {
		t.Fatalf("archive rows=%d want=%d", got, totalRows)
	}

	epFiles, _ := store.ListParquetFiles(episodesDir)
	if len(epFiles) != 2 {
		t.Fatalf("episode files=%v", epFiles)
	}
	if len(sink.saved) != 3 || sink.saved[2].Seed != 3 {
		t.Fatalf("sink saved=%+v", sink.saved)
	}
}

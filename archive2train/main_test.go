package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brensch/atlantis/executor/convert"
	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/rules"
	"github.com/brensch/atlantis/scraper/store"
)

func archiveRows(t *testing.T, cfg *game.Config, frames int) []store.ArchiveFrameRow {
	t.Helper()
	s := rules.Reset(cfg, 3)
	var rows []store.ArchiveFrameRow
	for i := 0; i <= frames; i++ {
		row, err := store.FrameRow("ep", 3, s)
		if err != nil {
			t.Fatal(err)
		}
		row.Source = "selfplay"
		if i < frames {
			row.Action = int32(game.ActionLeftFire)
			row.Return = float32(frames - i)
			if i%2 == 0 {
				row.PolicyProbs = []float32{0.1, 0.2, 0.3, 0.4}
			}
			rules.StepInPlace(cfg, s, game.ActionLeftFire)
		}
		rows = append(rows, row)
	}
	return rows
}

func TestConvertOne(t *testing.T) {
	cfg := game.DefaultConfig()
	dir := t.TempDir()
	inPath := filepath.Join(dir, "archive.parquet")
	if err := store.WriteParquet(inPath, store.SchemaArchive, archiveRows(t, cfg, 6)); err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(dir, "out", "archive.train.parquet")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		t.Fatal(err)
	}
	n, err := convertOne(cfg, inPath, outPath)
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Fatalf("rows=%d want=6 (terminal row skipped)", n)
	}

	got, err := store.ReadParquet[store.TrainingRow](outPath)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range got {
		if len(r.Features) != convert.BufferSize {
			t.Fatalf("row %d features=%d want=%d", i, len(r.Features), convert.BufferSize)
		}
		if r.Action != int32(game.ActionLeftFire) || r.Return != float32(6-i) || r.Source != "selfplay" {
			t.Fatalf("row %d=%+v", i, r.Action)
		}
	}
	if got[0].PolicyProbs[3] != 0.4 {
		t.Fatalf("probs=%v", got[0].PolicyProbs)
	}
	if p := got[1].PolicyProbs; p[game.ActionLeftFire] != 1 || p[game.ActionFire] != 0 {
		t.Fatalf("one-hot fallback=%v", p)
	}
}

func TestTrainingRow_RejectsInvalidAction(t *testing.T) {
	cfg := game.DefaultConfig()
	row := archiveRows(t, cfg, 1)[0]
	row.Action = 9
	if _, _, err := trainingRow(cfg, &row); err == nil {
		t.Fatalf("expected error for action 9")
	}
}

func TestFindInputs(t *testing.T) {
	cfg := game.DefaultConfig()
	dir := t.TempDir()
	rows := archiveRows(t, cfg, 1)
	for _, p := range []string{"a.parquet", "sub/b.parquet", "tmp/c.parquet", "x.train.parquet"} {
		path := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := store.WriteParquet(path, store.SchemaArchive, rows); err != nil {
			t.Fatal(err)
		}
	}
	if got := findInputs(dir); len(got) != 2 {
		t.Fatalf("inputs=%v want a and sub/b", got)
	}
}

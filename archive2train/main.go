package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/atlantis/executor/convert"
	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/scraper/store"
)

func main() {
	inDir := flag.String("in-dir", "", "Directory containing archive parquet shards")
	outDir := flag.String("out-dir", "", "Output directory for training parquet shards")
	configPath := flag.String("config", "", "Game config TOML (empty for defaults)")
	archetypesPath := flag.String("archetypes", "", "Enemy archetypes YAML (empty for defaults)")
	flag.Parse()

	if *inDir == "" || *outDir == "" {
		fmt.Fprintln(os.Stderr, "-in-dir and -out-dir are required")
		os.Exit(2)
	}

	cfg, err := game.Load(*configPath, *archetypesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}

	absIn, _ := filepath.Abs(*inDir)
	absOut, _ := filepath.Abs(*outDir)
	if absIn == absOut {
		fmt.Fprintln(os.Stderr, "out-dir must be different from in-dir")
		os.Exit(2)
	}

	if err := os.MkdirAll(absOut, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create out-dir: %v\n", err)
		os.Exit(2)
	}

	// Clean old outputs to avoid unbounded growth.
	_ = filepath.WalkDir(absOut, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".parquet") {
			_ = os.Remove(path)
		}
		return nil
	})

	inputs := findInputs(absIn)
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "no parquet inputs found")
		os.Exit(1)
	}

	convertedFiles, totalRows := 0, 0
	for _, inPath := range inputs {
		base := filepath.Base(inPath)
		outPath := filepath.Join(absOut, strings.TrimSuffix(base, filepath.Ext(base))+".train.parquet")
		n, err := convertOne(cfg, inPath, outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "convert %s: %v\n", inPath, err)
			continue
		}
		if n > 0 {
			convertedFiles++
			totalRows += n
		}
	}

	if convertedFiles == 0 {
		fmt.Fprintln(os.Stderr, "no output written (no convertible rows)")
		os.Exit(1)
	}
	fmt.Printf("wrote %d training rows across %d files\n", totalRows, convertedFiles)
}

// findInputs lists archive shards under dir, skipping temp and derived
// output directories.
func findInputs(dir string) []string {
	inputs := make([]string, 0, 1024)
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			switch d.Name() {
			case "tmp", "training", "debug":
				return filepath.SkipDir
			}
			return nil
		}
		name := strings.ToLower(d.Name())
		if strings.HasSuffix(name, ".parquet") && !strings.HasSuffix(name, ".train.parquet") {
			inputs = append(inputs, path)
		}
		return nil
	})
	return inputs
}

// trainingRow converts one archive frame. Terminal rows (Action -1) have no
// training target and report false.
func trainingRow(cfg *game.Config, row *store.ArchiveFrameRow) (store.TrainingRow, bool, error) {
	if row.Action < 0 {
		return store.TrainingRow{}, false, nil
	}
	if !game.Action(row.Action).Valid() {
		return store.TrainingRow{}, false, fmt.Errorf("invalid action %d for episode=%s frame=%d", row.Action, row.EpisodeID, row.Frame)
	}
	s, err := store.StateOf(row)
	if err != nil {
		return store.TrainingRow{}, false, fmt.Errorf("episode=%s frame=%d: %w", row.EpisodeID, row.Frame, err)
	}

	bPtr := convert.StateToBytes(cfg, s)
	features := make([]byte, len(*bPtr))
	copy(features, *bPtr)
	convert.PutBuffer(bPtr)

	probs := row.PolicyProbs
	if len(probs) != game.NumActions {
		// Policies without a distribution train on the chosen action.
		probs = make([]float32, game.NumActions)
		probs[row.Action] = 1
	}

	return store.TrainingRow{
		EpisodeID:   row.EpisodeID,
		Frame:       row.Frame,
		Features:    features,
		Action:      row.Action,
		PolicyProbs: probs,
		Return:      row.Return,
		Source:      row.Source,
	}, true, nil
}

func convertOne(cfg *game.Config, inPath string, outPath string) (int, error) {
	inF, err := os.Open(inPath)
	if err != nil {
		return 0, err
	}
	defer inF.Close()

	reader := parquet.NewGenericReader[store.ArchiveFrameRow](inF)
	defer reader.Close()

	outTmp := outPath + ".tmp"
	_ = os.Remove(outTmp)
	outF, err := os.OpenFile(outTmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}

	writer := parquet.NewGenericWriter[store.TrainingRow](
		outF,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	writer.SetKeyValueMetadata("schema", store.SchemaTraining)

	closed := false
	defer func() {
		if !closed {
			_ = writer.Close()
			_ = outF.Close()
			_ = os.Remove(outTmp)
		}
	}()

	buf := make([]store.ArchiveFrameRow, 256)
	outBuf := make([]store.TrainingRow, 0, 2048)
	rowsWritten := 0

	flush := func() error {
		if len(outBuf) == 0 {
			return nil
		}
		if _, err := writer.Write(outBuf); err != nil {
			return err
		}
		rowsWritten += len(outBuf)
		outBuf = outBuf[:0]
		return nil
	}

	for {
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			tr, ok, convErr := trainingRow(cfg, &buf[i])
			if convErr != nil {
				return 0, fmt.Errorf("%w (file=%s)", convErr, inPath)
			}
			if !ok {
				continue
			}
			outBuf = append(outBuf, tr)
			if len(outBuf) >= 2048 {
				if err := flush(); err != nil {
					return 0, err
				}
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
	}

	if err := flush(); err != nil {
		return 0, err
	}
	closed = true
	if err := writer.Close(); err != nil {
		_ = outF.Close()
		_ = os.Remove(outTmp)
		return 0, err
	}
	if err := outF.Sync(); err != nil {
		_ = outF.Close()
		_ = os.Remove(outTmp)
		return 0, err
	}
	if err := outF.Close(); err != nil {
		_ = os.Remove(outTmp)
		return 0, err
	}

	if rowsWritten == 0 {
		_ = os.Remove(outTmp)
		return 0, nil
	}

	if err := os.Rename(outTmp, outPath); err != nil {
		_ = os.Remove(outTmp)
		return 0, err
	}
	return rowsWritten, nil
}
